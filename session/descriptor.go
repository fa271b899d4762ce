// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/airlock/lib/codec"
)

// DescriptorFileName is the CBOR session descriptor inside a session's
// data directory.
const DescriptorFileName = "session.cbor"

// Descriptor records what a session was launched with.
type Descriptor struct {
	Hash      string    `cbor:"hash" json:"hash"`
	Workspace string    `cbor:"workspace" json:"workspace"`
	Extras    []Mount   `cbor:"extras,omitempty" json:"extras,omitempty"`
	Project   string    `cbor:"project" json:"project"`
	Container string    `cbor:"container" json:"container"`
	Image     string    `cbor:"image" json:"image"`
	CreatedAt time.Time `cbor:"created_at" json:"created_at"`
}

func readDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, err
	}
	var descriptor Descriptor
	if err := codec.Unmarshal(data, &descriptor); err != nil {
		return Descriptor{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return descriptor, nil
}

func writeDescriptor(path string, descriptor Descriptor) error {
	data, err := codec.Marshal(descriptor)
	if err != nil {
		return fmt.Errorf("encoding session descriptor: %w", err)
	}
	return writeFile(path, data)
}

// writeFile replaces path atomically with mode 0600.
func writeFile(path string, data []byte) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	temporaryPath := temporary.Name()
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
