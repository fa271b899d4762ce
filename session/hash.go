// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/airlock/pathmap"
)

// workspaceDomainKey is the BLAKE3 key for workspace identity hashes:
// the ASCII domain name zero-padded to 32 bytes. Changing it renames
// every existing session.
var workspaceDomainKey = [32]byte{
	'a', 'i', 'r', 'l', 'o', 'c', 'k', '.', 'w', 'o', 'r', 'k', 's', 'p', 'a', 'c',
	'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// namePrefix prefixes compose project and container names.
const namePrefix = "airlock-"

// Hash returns the session identity for a workspace directory: the
// first eight bytes of the keyed hash of its absolute, cleaned path,
// as 16 lowercase hex characters. The directory's contents do not
// participate.
func Hash(workspace string) (string, error) {
	absolute, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("resolving workspace path: %w", err)
	}
	hasher, err := blake3.NewKeyed(workspaceDomainKey[:])
	if err != nil {
		panic("session: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(filepath.Clean(absolute)))
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:pathmap.HashLength/2]), nil
}

// ProjectName is the compose project name for a session hash.
func ProjectName(hash string) string { return namePrefix + hash }

// ContainerName is the sandbox container name for a session hash.
func ContainerName(hash string) string { return namePrefix + hash }
