// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("ghp_example_token")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "ghp_example_token" {
		t.Errorf("String() = %q, want %q", got, "ghp_example_token")
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source[%d] = %d after NewFromBytes, want 0", index, value)
		}
	}
}

func TestNewFromBytesEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestEqual(t *testing.T) {
	buffer, err := NewFromBytes([]byte("abc123"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	tests := []struct {
		candidate string
		want      bool
	}{
		{"abc123", true},
		{"abc124", false},
		{"abc12", false},
		{"abc1234", false},
		{"", false},
	}
	for _, test := range tests {
		if got := buffer.Equal([]byte(test.candidate)); got != test.want {
			t.Errorf("Equal(%q) = %v, want %v", test.candidate, got, test.want)
		}
	}
}

func TestClosedBufferMatchesNothing(t *testing.T) {
	buffer, err := NewFromBytes([]byte("token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buffer.Equal([]byte("token")) {
		t.Error("closed buffer reported a match")
	}
	if err := buffer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestBytesPanicsAfterClose(t *testing.T) {
	buffer, err := NewFromBytes([]byte("token"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Error("Bytes() on closed buffer did not panic")
		}
	}()
	buffer.Bytes()
}

func TestReadFileTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  deadbeef\n"), 0600); err != nil {
		t.Fatal(err)
	}
	buffer, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	defer buffer.Close()
	if got := buffer.String(); got != "deadbeef" {
		t.Errorf("ReadFile contents = %q, want %q", got, "deadbeef")
	}
}

func TestReadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("\n\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected error for whitespace-only file")
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
