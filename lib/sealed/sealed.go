// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts small secrets with age so they can sit in
// plain configuration files.
//
// The MCP registry uses it for header values: a value written as
// "age:<base64 ciphertext>" is decrypted with the host's identity file
// only when a request is forwarded. Decrypted values and identities
// live in [secret.Buffer] memory.
package sealed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/bureau-foundation/airlock/lib/secret"
)

// Prefix marks a sealed configuration value.
const Prefix = "age:"

// ErrNoIdentity is returned when a sealed value must be opened but no
// identity is available.
var ErrNoIdentity = errors.New("no age identity available to open sealed value")

// Keypair holds an age x25519 keypair. The caller must Close it.
type Keypair struct {
	// PrivateKey is the AGE-SECRET-KEY-1... string.
	PrivateKey *secret.Buffer

	// PublicKey is the age1... recipient string.
	PublicKey string
}

// Close releases the private key.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair creates a new x25519 identity.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}
	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// Encrypt encrypts plaintext to the given age1... recipients and
// returns standard base64 ciphertext.
func Encrypt(plaintext []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Decrypt opens base64 ciphertext with privateKey. privateKey is
// borrowed and not closed. The caller must Close the returned buffer.
func Decrypt(ciphertext string, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed value decrypted to an empty plaintext")
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Seal encrypts value and returns it in "age:<base64>" form.
func Seal(value string, recipientKeys []string) (string, error) {
	ciphertext, err := Encrypt([]byte(value), recipientKeys)
	if err != nil {
		return "", err
	}
	return Prefix + ciphertext, nil
}

// Open returns the plaintext of a configuration value. Values without
// the sealed prefix are returned unchanged and privateKey may be nil.
func Open(value string, privateKey *secret.Buffer) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if privateKey == nil {
		return "", ErrNoIdentity
	}
	buffer, err := Decrypt(strings.TrimPrefix(value, Prefix), privateKey)
	if err != nil {
		return "", err
	}
	defer buffer.Close()
	return buffer.String(), nil
}

// LoadIdentity reads an age identity file. Comment lines beginning
// with '#' are skipped (age-keygen writes them). A missing file
// returns an error satisfying errors.Is(err, os.ErrNotExist).
func LoadIdentity(path string) (*secret.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(data)

	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		key := make([]byte, len(line))
		copy(key, line)
		buffer, err := secret.NewFromBytes(key)
		if err != nil {
			return nil, err
		}
		if _, err := age.ParseX25519Identity(buffer.String()); err != nil {
			buffer.Close()
			return nil, fmt.Errorf("identity file %s: %w", path, err)
		}
		return buffer, nil
	}
	return nil, fmt.Errorf("identity file %s contains no key", path)
}

// PublicKeyOf returns the recipient for the identity in privateKey.
func PublicKeyOf(privateKey *secret.Buffer) (string, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}
	return identity.Recipient().String(), nil
}
