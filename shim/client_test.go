// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestClient(t *testing.T, proxyURL string) *Client {
	t.Helper()
	tokenFile := filepath.Join(t.TempDir(), "proxy-token")
	if err := os.WriteFile(tokenFile, []byte(testToken+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	client, err := NewClient(Config{ProxyURL: proxyURL, TokenFile: tokenFile, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func jsonServer(t *testing.T, status int, body string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientRunSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotRequest Request
	server := jsonServer(t, http.StatusOK, `{"success":true,"stdout":"On branch main\n","stderr":"","exitCode":0}`, func(r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotRequest)
	})
	client := newTestClient(t, server.URL+"/")

	response, err := client.Run(context.Background(), "git", Request{
		Args:          []string{"status"},
		Cwd:           "/workspace",
		WorkspaceHash: "00112233445566ff",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if response.Stdout != "On branch main\n" || response.ExitCode != 0 || !response.Success {
		t.Errorf("response = %+v", response)
	}
	if gotPath != "/git" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer "+testToken {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotRequest.Cwd != "/workspace" || gotRequest.WorkspaceHash != "00112233445566ff" || len(gotRequest.Args) != 1 {
		t.Errorf("request = %+v", gotRequest)
	}
}

func TestClientRunSendsEmptyArgsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	server := jsonServer(t, http.StatusOK, `{"exitCode":0}`, func(r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
	})
	client := newTestClient(t, server.URL)
	if _, err := client.Run(context.Background(), "gh", Request{}); err != nil {
		t.Fatal(err)
	}
	if string(raw["args"]) != "[]" {
		t.Errorf("args = %s, want []", raw["args"])
	}
}

func TestClientRunBlocked(t *testing.T) {
	server := jsonServer(t, http.StatusForbidden, `{"success":false,"blocked":true,"reason":"terraform apply is not allowed","exitCode":126}`, nil)
	client := newTestClient(t, server.URL)
	response, err := client.Run(context.Background(), "terraform", Request{Args: []string{"apply"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !response.Blocked || response.ExitCode != 126 || response.Reason == "" {
		t.Errorf("response = %+v", response)
	}
}

func TestClientRunErrorWithoutExitCode(t *testing.T) {
	server := jsonServer(t, http.StatusUnauthorized, `{"success":false,"error":"unauthorized"}`, nil)
	client := newTestClient(t, server.URL)
	response, err := client.Run(context.Background(), "git", Request{Args: []string{"status"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if response.Error != "unauthorized" || response.ExitCode != 1 {
		t.Errorf("response = %+v", response)
	}
}

func TestClientRunUnreachable(t *testing.T) {
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html><body>502 Bad Gateway</body></html>")
	}))
	defer html.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		url  string
	}{
		{"html error page", html.URL},
		{"connection refused", closedURL},
		{"json array", jsonServer(t, http.StatusOK, `[1,2,3]`, nil).URL},
		{"json without result fields", jsonServer(t, http.StatusOK, `{"status":"ok"}`, nil).URL},
		{"truncated json", jsonServer(t, http.StatusOK, `{"exitCode":`, nil).URL},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, test.url)
			_, err := client.Run(context.Background(), "git", Request{Args: []string{"status"}})
			var unreachable *UnreachableError
			if !errors.As(err, &unreachable) {
				t.Fatalf("err = %v, want *UnreachableError", err)
			}
		})
	}
}

func TestNewClientMissingToken(t *testing.T) {
	_, err := NewClient(Config{ProxyURL: "http://127.0.0.1:1", TokenFile: filepath.Join(t.TempDir(), "absent")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}
