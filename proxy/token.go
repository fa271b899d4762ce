// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/airlock/lib/secret"
)

// tokenBytes is the entropy of a proxy token; it encodes to 64 hex
// characters.
const tokenBytes = 32

// GenerateToken returns a new random proxy token.
func GenerateToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating proxy token: %w", err)
	}
	defer secret.Zero(raw)
	return hex.EncodeToString(raw), nil
}

// WriteTokenFile stores token at path with mode 0600, creating the
// parent directory with mode 0700.
func WriteTokenFile(path, token string) error {
	if err := checkTokenFormat([]byte(token)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	temporaryPath := path + ".tmp"
	if err := os.WriteFile(temporaryPath, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming token file into place: %w", err)
	}
	return nil
}

// LoadToken reads and validates the token file.
func LoadToken(path string) (*secret.Buffer, error) {
	buffer, err := secret.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading proxy token: %w", err)
	}
	if err := checkTokenFormat(buffer.Bytes()); err != nil {
		buffer.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buffer, nil
}

func checkTokenFormat(token []byte) error {
	if len(token) != 2*tokenBytes {
		return fmt.Errorf("proxy token must be %d hex characters, got %d", 2*tokenBytes, len(token))
	}
	for _, character := range token {
		if (character < '0' || character > '9') && (character < 'a' || character > 'f') {
			return fmt.Errorf("proxy token must be lowercase hex")
		}
	}
	return nil
}
