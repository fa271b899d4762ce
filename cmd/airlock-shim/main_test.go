// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseInvocation(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		stdin    string
		wantTool string
		wantArgs []string
		wantErr  bool
	}{
		{"multicall", []string{"/usr/local/bin/git", "status", "-s"}, "", "git", []string{"status", "-s"}, false},
		{"multicall no args", []string{"terraform"}, "", "terraform", []string{}, false},
		{"explicit tool", []string{"airlock-shim", "kubectl", "get", "pods"}, "", "kubectl", []string{"get", "pods"}, false},
		{"null args", []string{"airlock-shim", "--null-args", "git", "4"}, "commit\x00-m\x00two\nlines\x00\x00", "git", []string{"commit", "-m", "two\nlines", ""}, false},
		{"null args zero from printf", []string{"airlock-shim", "--null-args", "terraform", "0"}, "\x00", "terraform", []string{}, false},
		{"null args zero empty stdin", []string{"airlock-shim", "--null-args", "terraform", "0"}, "", "terraform", []string{}, false},
		{"null args one empty", []string{"airlock-shim", "--null-args", "git", "1"}, "\x00", "git", []string{""}, false},
		{"null args count mismatch", []string{"airlock-shim", "--null-args", "git", "2"}, "status\x00", "", nil, true},
		{"null args bad count", []string{"airlock-shim", "--null-args", "git", "two"}, "status\x00", "", nil, true},
		{"null args missing count", []string{"airlock-shim", "--null-args", "git"}, "status\x00", "", nil, true},
		{"null args missing tool", []string{"airlock-shim", "--null-args"}, "", "", nil, true},
		{"no tool", []string{"airlock-shim"}, "", "", nil, true},
		{"empty argv", nil, "", "", nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tool, args, err := parseInvocation(test.argv, strings.NewReader(test.stdin))
			if test.wantErr {
				if err == nil {
					t.Errorf("expected error, got tool %q args %q", tool, args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInvocation: %v", err)
			}
			if tool != test.wantTool || !reflect.DeepEqual(args, test.wantArgs) {
				t.Errorf("got %q %q, want %q %q", tool, args, test.wantTool, test.wantArgs)
			}
		})
	}
}

func TestRunAgainstProxy(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false,"stdout":"partial\n","stderr":"boom\n","exitCode":3}`)
	}))
	defer server.Close()

	tokenFile := filepath.Join(t.TempDir(), "token")
	os.WriteFile(tokenFile, []byte(strings.Repeat("ab", 32)), 0600)
	env := map[string]string{
		"AIRLOCK_PROXY_URL":      server.URL,
		"AIRLOCK_TOKEN_FILE":     tokenFile,
		"AIRLOCK_WORKSPACE_HASH": "00112233445566ff",
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{"terraform", "plan"}, strings.NewReader(""), &stdout, &stderr, func(key string) string { return env[key] })
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if stdout.String() != "partial\n" || stderr.String() != "boom\n" {
		t.Errorf("stdout %q stderr %q", stdout.String(), stderr.String())
	}
	if received["workspace_hash"] != "00112233445566ff" {
		t.Errorf("request = %v", received)
	}
}

func TestRunUnreachable(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tokenFile := filepath.Join(t.TempDir(), "token")
	os.WriteFile(tokenFile, []byte(strings.Repeat("ab", 32)), 0600)
	env := map[string]string{"AIRLOCK_PROXY_URL": closedURL, "AIRLOCK_TOKEN_FILE": tokenFile}

	var stdout, stderr bytes.Buffer
	code := run([]string{"git", "status"}, strings.NewReader(""), &stdout, &stderr, func(key string) string { return env[key] })
	if code != 128 {
		t.Errorf("exit code = %d, want 128", code)
	}
	if !strings.Contains(stderr.String(), "unreachable") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunNullArgsWithoutArguments(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"stdout":"Usage: terraform\n","stderr":"","exitCode":0}`)
	}))
	defer server.Close()

	tokenFile := filepath.Join(t.TempDir(), "token")
	os.WriteFile(tokenFile, []byte(strings.Repeat("ab", 32)), 0600)
	env := map[string]string{"AIRLOCK_PROXY_URL": server.URL, "AIRLOCK_TOKEN_FILE": tokenFile}

	// What printf '%s\0' "$@" writes when "$@" is empty.
	var stdout, stderr bytes.Buffer
	code := run([]string{"airlock-shim", "--null-args", "terraform", "0"}, strings.NewReader("\x00"), &stdout, &stderr, func(key string) string { return env[key] })
	if code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, stderr.String())
	}
	args, ok := received["args"].([]any)
	if !ok || len(args) != 0 {
		t.Errorf("args sent to proxy = %#v, want an empty list", received["args"])
	}
}
