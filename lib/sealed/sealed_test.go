// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func generate(t *testing.T) *Keypair {
	t.Helper()
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	t.Cleanup(func() { keypair.Close() })
	return keypair
}

func TestSealOpenRoundTrip(t *testing.T) {
	keypair := generate(t)

	sealedValue, err := Seal("Bearer sk-live-123", []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !strings.HasPrefix(sealedValue, Prefix) {
		t.Fatalf("sealed value %q lacks prefix %q", sealedValue, Prefix)
	}
	if strings.Contains(sealedValue, "sk-live-123") {
		t.Fatal("sealed value contains the plaintext")
	}

	opened, err := Open(sealedValue, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "Bearer sk-live-123" {
		t.Errorf("Open = %q, want %q", opened, "Bearer sk-live-123")
	}
}

func TestOpenPlainValuePassesThrough(t *testing.T) {
	opened, err := Open("application/json", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "application/json" {
		t.Errorf("Open = %q", opened)
	}
}

func TestOpenSealedWithoutIdentity(t *testing.T) {
	keypair := generate(t)
	sealedValue, err := Seal("x", []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(sealedValue, nil); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("Open without identity: err = %v, want ErrNoIdentity", err)
	}
}

func TestOpenWithWrongIdentity(t *testing.T) {
	owner := generate(t)
	other := generate(t)
	sealedValue, err := Seal("x", []string{owner.PublicKey})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(sealedValue, other.PrivateKey); err == nil {
		t.Error("Open with the wrong identity succeeded")
	}
}

func TestEncryptRequiresRecipient(t *testing.T) {
	if _, err := Encrypt([]byte("x"), nil); err == nil {
		t.Error("Encrypt with no recipients succeeded")
	}
	if _, err := Encrypt([]byte("x"), []string{"not-a-key"}); err == nil {
		t.Error("Encrypt with an invalid recipient succeeded")
	}
}

func TestLoadIdentitySkipsComments(t *testing.T) {
	keypair := generate(t)
	path := filepath.Join(t.TempDir(), "identity.age")
	content := "# created: 2026-03-01\n# public key: " + keypair.PublicKey + "\n" + keypair.PrivateKey.String() + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadIdentity(path)
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	defer loaded.Close()

	publicKey, err := PublicKeyOf(loaded)
	if err != nil {
		t.Fatalf("PublicKeyOf: %v", err)
	}
	if publicKey != keypair.PublicKey {
		t.Errorf("public key = %q, want %q", publicKey, keypair.PublicKey)
	}
}

func TestLoadIdentityMissing(t *testing.T) {
	_, err := LoadIdentity(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLoadIdentityOnlyComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.age")
	if err := os.WriteFile(path, []byte("# nothing\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIdentity(path); err == nil {
		t.Error("LoadIdentity succeeded on a file with no key")
	}
}
