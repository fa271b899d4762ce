// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/bureau-foundation/airlock/lib/clock"
	"github.com/bureau-foundation/airlock/lib/secret"
)

// CredentialProvider supplies the GitHub token injected into gh.
type CredentialProvider interface {
	Get(ctx context.Context) (string, error)
}

// FetchFunc obtains a fresh token.
type FetchFunc func(ctx context.Context) ([]byte, error)

// TokenCache holds one token for at most ttl after it was fetched.
//
// The mutex guards only the cached fields and is not held across a
// fetch, so two requests that find the entry expired at the same time
// may both fetch. Neither waits on the other.
type TokenCache struct {
	clock clock.Clock
	ttl   time.Duration
	fetch FetchFunc

	mu        sync.Mutex
	value     *secret.Buffer
	fetchedAt time.Time
}

// NewTokenCache creates an empty cache.
func NewTokenCache(clk clock.Clock, ttl time.Duration, fetch FetchFunc) *TokenCache {
	return &TokenCache{clock: clk, ttl: ttl, fetch: fetch}
}

// Get returns the cached token, fetching a new one when the cache is
// empty or older than the TTL.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.value != nil && clock.Since(c.clock, c.fetchedAt) < c.ttl {
		value := c.value.String()
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	raw, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		secret.Zero(raw)
		return "", fmt.Errorf("credential fetch returned an empty token")
	}
	buffer, err := secret.NewFromBytes(trimmed)
	secret.Zero(raw)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value != nil {
		c.value.Close()
	}
	c.value = buffer
	c.fetchedAt = c.clock.Now()
	return buffer.String(), nil
}

// Close releases the cached token.
func (c *TokenCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil {
		return nil
	}
	err := c.value.Close()
	c.value = nil
	return err
}

// GHAuthToken fetches the token of the host's logged-in gh session.
func GHAuthToken(binary string) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, binary, "auth", "token")
		cmd.Stderr = &stderr
		output, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("gh auth token: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return output, nil
	}
}

// credentialEnvironment names the variables gh reads its token from.
func credentialEnvironment(token string) []string {
	return []string{"GH_TOKEN=" + token, "GITHUB_TOKEN=" + token}
}

var _ CredentialProvider = (*TokenCache)(nil)
