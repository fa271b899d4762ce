// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/airlock/lib/clock"
)

// fakeRuntime keeps containers in memory. ComposeUp reads the compose
// file it is given, so mounts round-trip through the generated YAML.
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*ContainerState
	calls      []string

	// hostMountPrefix is prepended to reported mount sources, as
	// Docker Desktop does.
	hostMountPrefix string

	inspectErr error
	upErr      error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: make(map[string]*ContainerState)}
}

func (r *fakeRuntime) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *fakeRuntime) Inspect(ctx context.Context, name string) (*ContainerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inspectErr != nil {
		return nil, r.inspectErr
	}
	state, ok := r.containers[name]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (r *fakeRuntime) ComposeUp(ctx context.Context, project, composePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("up %s", project)
	if r.upErr != nil {
		return r.upErr
	}
	data, err := os.ReadFile(composePath)
	if err != nil {
		return err
	}
	var file composeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	service := file.Services[serviceName]
	state := &ContainerState{Running: true}
	for _, volume := range service.Volumes {
		state.Mounts = append(state.Mounts, Mount{Source: r.hostMountPrefix + volume.Source, Target: volume.Target})
	}
	r.containers[service.ContainerName] = state
	return nil
}

func (r *fakeRuntime) ComposeDown(ctx context.Context, project, composePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("down %s", project)
	delete(r.containers, project)
	return nil
}

func (r *fakeRuntime) RemoveContainer(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("rm %s", name)
	delete(r.containers, name)
	return nil
}

func (r *fakeRuntime) history() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRuntime) resetHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

type testManager struct {
	*Manager
	runtime *fakeRuntime
	dataDir string
	clock   *clock.FakeClock
}

func newTestManager(t *testing.T) *testManager {
	t.Helper()
	runtime := newFakeRuntime()
	dataDir := t.TempDir()
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	manager, err := NewManager(Config{
		DataDir:         dataDir,
		Image:           "airlock-sandbox:test",
		Network:         "airlock-internal",
		ProxyHost:       "host.docker.internal",
		ProxyURL:        "http://host.docker.internal:8765",
		LegacyContainer: "airlock",
		Runtime:         runtime,
		Clock:           fake,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &testManager{Manager: manager, runtime: runtime, dataDir: dataDir, clock: fake}
}

// makeDirs creates named directories under a fresh temporary root and
// returns their paths in order.
func makeDirs(t *testing.T, names ...string) []string {
	t.Helper()
	root := t.TempDir()
	paths := make([]string, len(names))
	for index, name := range names {
		paths[index] = root + "/" + name
		if err := os.MkdirAll(paths[index], 0755); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}
