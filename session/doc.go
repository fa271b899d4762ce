// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session manages workspace sessions: one sandbox container
// per host workspace directory, identified by a keyed hash of the
// directory's absolute path.
//
// Each session owns a private data directory under the configured
// workspaces root holding the path-mapping file the proxy reads on
// every request, the generated compose file, and a CBOR session
// descriptor. Launching against a workspace whose container is
// already running reuses it when the requested extra directories
// match the container's live bind mounts, and recreates it when they
// differ.
//
// Teardown removes the path-mapping file before anything else. The
// proxy treats a missing mapping as an empty one, so a later session
// that reuses the hash never inherits directories from an earlier
// one.
//
// Container operations go through the [Runtime] interface.
// [DockerRuntime] drives the docker CLI; tests substitute a fake.
package session
