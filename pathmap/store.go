// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileName is the mapping file inside a session data directory.
const FileName = "path-mappings.json"

// HashLength is the length of a workspace hash in hex characters.
const HashLength = 16

// ErrInvalidHash is returned for a workspace hash that is not 16
// lowercase hex characters.
var ErrInvalidHash = errors.New("workspace hash must be 16 lowercase hex characters")

// CheckHash validates a workspace hash. The hash names a directory
// under the data root, so nothing else may pass.
func CheckHash(hash string) error {
	if len(hash) != HashLength {
		return ErrInvalidHash
	}
	for _, character := range hash {
		if (character < '0' || character > '9') && (character < 'a' || character > 'f') {
			return ErrInvalidHash
		}
	}
	return nil
}

// Load reads a mapping file. A missing file yields an empty mapping.
// Keys must be absolute container paths and values absolute host
// paths; trailing slashes are dropped.
func Load(filePath string) (Mapping, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return Mapping{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading path mapping: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing path mapping %s: %w", filePath, err)
	}

	mapping := make(Mapping, len(raw))
	for containerPath, hostPath := range raw {
		if !path.IsAbs(containerPath) || !filepath.IsAbs(hostPath) {
			return nil, fmt.Errorf("path mapping %s: %q -> %q is not absolute", filePath, containerPath, hostPath)
		}
		mapping[trimSlash(containerPath)] = trimSlash(hostPath)
	}
	return mapping, nil
}

// Write replaces the mapping file atomically with mode 0600.
func Write(filePath string, mapping Mapping) error {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling path mapping: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := filePath + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary path mapping: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary path mapping: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary path mapping: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary path mapping: %w", err)
	}
	if err := os.Rename(temporaryPath, filePath); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming path mapping into place: %w", err)
	}
	return nil
}

// Remove deletes a mapping file. A file that is already gone is not
// an error.
func Remove(filePath string) error {
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing path mapping: %w", err)
	}
	return nil
}

// Store locates mapping files under the workspaces directory, one
// subdirectory per workspace hash.
type Store struct {
	Dir string
}

// Path returns the mapping file for a workspace hash.
func (s Store) Path(hash string) (string, error) {
	if err := CheckHash(hash); err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, hash, FileName), nil
}

// Load returns the current mapping for hash. An empty hash means the
// caller named no session and yields an empty mapping.
func (s Store) Load(hash string) (Mapping, error) {
	if hash == "" {
		return Mapping{}, nil
	}
	filePath, err := s.Path(hash)
	if err != nil {
		return nil, err
	}
	return Load(filePath)
}

// Write stores the mapping for hash. The session directory must exist.
func (s Store) Write(hash string, mapping Mapping) error {
	filePath, err := s.Path(hash)
	if err != nil {
		return err
	}
	return Write(filePath, mapping)
}

// Remove deletes the mapping for hash.
func (s Store) Remove(hash string) error {
	filePath, err := s.Path(hash)
	if err != nil {
		return err
	}
	return Remove(filePath)
}

func trimSlash(value string) string {
	if len(value) > 1 {
		return strings.TrimRight(value, "/")
	}
	return value
}
