// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/airlock/lib/clock"
	"github.com/bureau-foundation/airlock/lib/secret"
	"github.com/bureau-foundation/airlock/pathmap"
)

const (
	testToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testHash  = "00112233445566ff"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tokenBuffer wraps testToken in a secret.Buffer released at cleanup.
func tokenBuffer(t *testing.T) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(testToken))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

// requireBinary returns the path of name or skips the test.
func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("binary %q not found in PATH: %v", name, err)
	}
	return path
}

// fakeExecutor records every command and returns a fixed result.
type fakeExecutor struct {
	mu       sync.Mutex
	commands []Command
	result   Result
}

func (e *fakeExecutor) Execute(ctx context.Context, command Command) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	return e.result
}

func (e *fakeExecutor) calls() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Command(nil), e.commands...)
}

// fakeCredentials returns a fixed token and counts calls.
type fakeCredentials struct {
	token string
	err   error
	mu    sync.Mutex
	count int
}

func (c *fakeCredentials) Get(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.token, c.err
}

// memoryAuditor keeps records in memory.
type memoryAuditor struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (a *memoryAuditor) Record(record AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return nil
}

func (a *memoryAuditor) all() []AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AuditRecord(nil), a.records...)
}

// testEnv is a Handler wired to fakes, with a workspace session whose
// mapping points /workspace at a real temporary directory.
type testEnv struct {
	handler      http.Handler
	executor     *fakeExecutor
	credentials  *fakeCredentials
	audit        *memoryAuditor
	store        pathmap.Store
	workspaceDir string
	homeDir      string
}

func newTestEnv(t *testing.T, mcp http.Handler) *testEnv {
	t.Helper()
	root := t.TempDir()
	workspaceDir := filepath.Join(root, "project")
	homeDir := filepath.Join(root, "home")
	for _, dir := range []string{workspaceDir, filepath.Join(workspaceDir, "infra"), homeDir, filepath.Join(root, "workspaces", testHash)} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			t.Fatal(err)
		}
	}
	store := pathmap.Store{Dir: filepath.Join(root, "workspaces")}
	if err := store.Write(testHash, pathmap.Mapping{"/workspace": workspaceDir}); err != nil {
		t.Fatal(err)
	}

	binaries := map[string]string{}
	for _, name := range []string{"git", "gh", "terraform", "kubectl", "aws"} {
		binaries[name] = "/usr/bin/" + name
	}
	tools, err := DefaultTools(binaries)
	if err != nil {
		t.Fatalf("DefaultTools: %v", err)
	}

	env := &testEnv{
		executor:     &fakeExecutor{result: Result{Stdout: "ok\n"}},
		credentials:  &fakeCredentials{token: "gho_test"},
		audit:        &memoryAuditor{},
		store:        store,
		workspaceDir: workspaceDir,
		homeDir:      homeDir,
	}
	handler, err := NewHandler(HandlerConfig{
		Tools:       tools,
		Mappings:    store,
		Executor:    env.executor,
		Credentials: env.credentials,
		Audit:       env.audit,
		MCP:         mcp,
		Token:       tokenBuffer(t),
		HomeDir:     homeDir,
		Clock:       clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	env.handler = handler.Routes()
	return env
}

// post sends an authenticated JSON request and decodes the result.
func (e *testEnv) post(t *testing.T, path string, body any) (int, CommandResult) {
	t.Helper()
	var payload []byte
	switch value := body.(type) {
	case string:
		payload = []byte(value)
	default:
		var err error
		payload, err = json.Marshal(value)
		if err != nil {
			t.Fatal(err)
		}
	}
	request := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	request.Header.Set("Authorization", "Bearer "+testToken)
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)

	if contentType := recorder.Header().Get("Content-Type"); !strings.HasPrefix(contentType, "application/json") {
		t.Fatalf("Content-Type = %q, want application/json (body %q)", contentType, recorder.Body.String())
	}
	var result CommandResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response %q: %v", recorder.Body.String(), err)
	}
	return recorder.Code, result
}
