// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bureau-foundation/airlock/lib/clock"
	"github.com/bureau-foundation/airlock/pathmap"
)

// ErrNoSession is returned by teardown when neither a data directory
// nor a container exists for the workspace.
var ErrNoSession = errors.New("no session for workspace")

// State is a session's position in its lifecycle.
type State int

const (
	StateAbsent State = iota
	StateStarting
	StateRunning
	StateReused
	StateRecreated
	StateStopped
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateReused:
		return "reused"
	case StateRecreated:
		return "recreated"
	case StateStopped:
		return "stopped"
	case StateTornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is a descriptor plus the state an operation left it in.
type Session struct {
	Descriptor
	State State `json:"state"`
}

// Config configures a Manager.
type Config struct {
	// DataDir holds one subdirectory per session, named by hash.
	DataDir string

	Image   string
	Network string

	// ProxyHost is the gateway host name the sandbox uses to reach
	// the proxy. ProxyURL is the full URL given to the shim.
	ProxyHost string
	ProxyURL  string

	// LegacyContainer is the fixed container name used before
	// sessions were per-workspace. It is removed on launch.
	LegacyContainer string

	Runtime Runtime
	Clock   clock.Clock
	Logger  *slog.Logger
}

// LaunchRequest names the workspace and any extra directories to
// mount under /extra/.
type LaunchRequest struct {
	Workspace string
	Extras    []string
}

// Manager launches, lists, and tears down workspace sessions.
type Manager struct {
	config Config
	store  pathmap.Store
}

// NewManager creates a Manager.
func NewManager(config Config) (*Manager, error) {
	if config.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if config.Runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}
	if config.Image == "" || config.Network == "" || config.ProxyURL == "" {
		return nil, fmt.Errorf("image, network, and proxy URL are required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Manager{config: config, store: pathmap.Store{Dir: config.DataDir}}, nil
}

func (m *Manager) sessionDir(hash string) string {
	return filepath.Join(m.config.DataDir, hash)
}

// Launch starts a session for a workspace or reuses the running one.
// The path mapping is written before the container is examined, so it
// always describes the directories requested last. If Launch fails
// after that point the mapping is removed again, along with the
// session directory when this call created it.
func (m *Manager) Launch(ctx context.Context, request LaunchRequest) (launched *Session, err error) {
	workspace, err := checkDirectory(request.Workspace)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	extras, err := planExtras(request.Extras)
	if err != nil {
		return nil, fmt.Errorf("extra directory: %w", err)
	}
	hash, err := Hash(workspace)
	if err != nil {
		return nil, err
	}
	logger := m.config.Logger.With("workspace", workspace, "hash", hash)

	if err := m.removeLegacy(ctx); err != nil {
		return nil, err
	}

	dir := m.sessionDir(hash)
	_, statErr := os.Stat(dir)
	createdDir := errors.Is(statErr, os.ErrNotExist)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	defer func() {
		if err != nil {
			m.abandon(hash, dir, createdDir, logger)
		}
	}()
	if err := m.store.Write(hash, mappingFor(workspace, extras)); err != nil {
		return nil, err
	}

	session := &Session{
		Descriptor: Descriptor{
			Hash:      hash,
			Workspace: workspace,
			Extras:    extras,
			Project:   ProjectName(hash),
			Container: ContainerName(hash),
			Image:     m.config.Image,
			CreatedAt: m.config.Clock.Now().UTC(),
		},
		State: StateAbsent,
	}

	live, err := m.config.Runtime.Inspect(ctx, session.Container)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", session.Container, err)
	}
	composePath := filepath.Join(dir, ComposeFileName)

	finalState := StateRunning
	if live != nil && live.Running {
		if sameExtras(live.Mounts, extras) {
			if previous, err := readDescriptor(filepath.Join(dir, DescriptorFileName)); err == nil {
				session.CreatedAt = previous.CreatedAt
			}
			session.State = StateReused
			logger.Info("reusing running sandbox", "container", session.Container)
			return session, nil
		}
		logger.Info("extra directories changed, recreating sandbox",
			"container", session.Container,
			"live", describeMounts(live.Mounts),
			"requested", describeMounts(extras),
		)
		if err := m.stop(ctx, session.Descriptor, composePath); err != nil {
			return nil, err
		}
		finalState = StateRecreated
	}

	session.State = StateStarting
	logger.Info("starting sandbox", "container", session.Container, "extras", describeMounts(extras))
	compose, err := renderCompose(session.Descriptor, m.config.Network, m.config.ProxyHost, m.config.ProxyURL)
	if err != nil {
		return nil, err
	}
	if err := writeFile(composePath, compose); err != nil {
		return nil, err
	}
	if err := writeDescriptor(filepath.Join(dir, DescriptorFileName), session.Descriptor); err != nil {
		return nil, err
	}
	if err := m.config.Runtime.ComposeUp(ctx, session.Project, composePath); err != nil {
		return nil, fmt.Errorf("starting sandbox: %w", err)
	}
	session.State = finalState
	logger.Info("sandbox running", "container", session.Container, "state", session.State.String())
	return session, nil
}

// abandon undoes the filesystem side of a failed Launch. No container
// is running for the session at this point, so its mapping must not
// stay behind.
func (m *Manager) abandon(hash, dir string, createdDir bool, logger *slog.Logger) {
	if err := m.store.Remove(hash); err != nil {
		logger.Error("removing path mapping after failed launch", "error", err)
	}
	if !createdDir {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Error("removing session directory after failed launch", "error", err)
	}
}

// stop brings a session's container down, through compose when the
// compose file is still present.
func (m *Manager) stop(ctx context.Context, descriptor Descriptor, composePath string) error {
	if _, err := os.Stat(composePath); err == nil {
		if err := m.config.Runtime.ComposeDown(ctx, descriptor.Project, composePath); err != nil {
			return fmt.Errorf("stopping sandbox: %w", err)
		}
		return nil
	}
	if err := m.config.Runtime.RemoveContainer(ctx, descriptor.Container); err != nil {
		return fmt.Errorf("removing sandbox container: %w", err)
	}
	return nil
}

func (m *Manager) removeLegacy(ctx context.Context) error {
	if m.config.LegacyContainer == "" {
		return nil
	}
	legacy, err := m.config.Runtime.Inspect(ctx, m.config.LegacyContainer)
	if err != nil {
		return fmt.Errorf("inspecting legacy container: %w", err)
	}
	if legacy == nil {
		return nil
	}
	m.config.Logger.Warn("removing legacy single-instance container", "container", m.config.LegacyContainer)
	if err := m.config.Runtime.RemoveContainer(ctx, m.config.LegacyContainer); err != nil {
		return fmt.Errorf("removing legacy container: %w", err)
	}
	return nil
}

// Teardown stops the session for a workspace and deletes its data
// directory. The workspace directory itself need not still exist.
func (m *Manager) Teardown(ctx context.Context, workspace string) (*Session, error) {
	hash, err := Hash(workspace)
	if err != nil {
		return nil, err
	}
	return m.TeardownHash(ctx, hash)
}

// TeardownHash is Teardown addressed by session hash. The path mapping
// is removed first; if stopping the container then fails the rest of
// the data directory is kept so the teardown can be retried.
func (m *Manager) TeardownHash(ctx context.Context, hash string) (*Session, error) {
	if err := pathmap.CheckHash(hash); err != nil {
		return nil, err
	}
	dir := m.sessionDir(hash)

	descriptor, err := readDescriptor(filepath.Join(dir, DescriptorFileName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.config.Logger.Warn("session descriptor unreadable", "hash", hash, "error", err)
		}
		descriptor = Descriptor{Hash: hash, Project: ProjectName(hash), Container: ContainerName(hash)}
	}

	_, dirErr := os.Stat(dir)
	live, err := m.config.Runtime.Inspect(ctx, descriptor.Container)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", descriptor.Container, err)
	}
	if errors.Is(dirErr, os.ErrNotExist) && live == nil {
		return nil, fmt.Errorf("%s: %w", hash, ErrNoSession)
	}

	if err := m.store.Remove(hash); err != nil {
		return nil, err
	}
	if live != nil {
		if err := m.stop(ctx, descriptor, filepath.Join(dir, ComposeFileName)); err != nil {
			return nil, err
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("removing session directory: %w", err)
	}

	m.config.Logger.Info("session torn down", "hash", hash, "workspace", descriptor.Workspace)
	return &Session{Descriptor: descriptor, State: StateTornDown}, nil
}

// List returns every session with a readable descriptor, ordered by
// workspace path, with its current container state.
func (m *Manager) List(ctx context.Context) ([]Session, error) {
	entries, err := os.ReadDir(m.config.DataDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.config.DataDir, err)
	}

	var sessions []Session
	for _, entry := range entries {
		if !entry.IsDir() || pathmap.CheckHash(entry.Name()) != nil {
			continue
		}
		descriptor, err := readDescriptor(filepath.Join(m.sessionDir(entry.Name()), DescriptorFileName))
		if err != nil {
			m.config.Logger.Warn("skipping session without descriptor", "hash", entry.Name(), "error", err)
			continue
		}
		live, err := m.config.Runtime.Inspect(ctx, descriptor.Container)
		if err != nil {
			return nil, fmt.Errorf("inspecting %s: %w", descriptor.Container, err)
		}
		state := StateAbsent
		if live != nil {
			state = StateStopped
			if live.Running {
				state = StateRunning
			}
		}
		sessions = append(sessions, Session{Descriptor: descriptor, State: state})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Workspace < sessions[j].Workspace })
	return sessions, nil
}
