// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bureau-foundation/airlock/lib/netutil"
	"github.com/bureau-foundation/airlock/lib/secret"
)

// Request is the body of POST /<tool>.
type Request struct {
	Args          []string `json:"args"`
	Cwd           string   `json:"cwd,omitempty"`
	WorkspaceHash string   `json:"workspace_hash,omitempty"`
}

// Response is the proxy's answer to a tool request.
type Response struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	Blocked  bool   `json:"blocked"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
}

// UnreachableError means no proxy response was obtained: the
// connection failed or timed out, or whatever answered was not the
// proxy (an HTML error page from an intermediary, say).
type UnreachableError struct {
	URL    string
	Reason string
	Err    error
}

func (e *UnreachableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("proxy unreachable at %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("proxy unreachable at %s: %s", e.URL, e.Reason)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Client sends tool requests to the proxy.
type Client struct {
	baseURL    string
	token      *secret.Buffer
	httpClient *http.Client
}

// NewClient reads the token file and creates a Client. Close releases
// the token.
func NewClient(config Config) (*Client, error) {
	token, err := secret.ReadFile(config.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading proxy token: %w", err)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(config.ProxyURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Close releases the token.
func (c *Client) Close() error {
	return c.token.Close()
}

// Run posts a tool request. Any outcome other than a well-formed proxy
// response is an *UnreachableError.
func (c *Client) Run(ctx context.Context, tool string, request Request) (*Response, error) {
	endpoint := c.baseURL + "/" + tool
	if request.Args == nil {
		request.Args = []string{}
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+c.token.String())

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, &UnreachableError{URL: c.baseURL, Reason: "request failed", Err: err}
	}
	defer response.Body.Close()

	if !netutil.IsJSONContentType(response.Header.Get("Content-Type")) {
		return nil, &UnreachableError{
			URL:    c.baseURL,
			Reason: fmt.Sprintf("HTTP %d with content type %q", response.StatusCode, response.Header.Get("Content-Type")),
		}
	}
	data, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &UnreachableError{URL: c.baseURL, Reason: "reading response", Err: err}
	}
	return parseResponse(c.baseURL, data)
}

// parseResponse accepts only a JSON object carrying exitCode or error.
func parseResponse(baseURL string, data []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &UnreachableError{URL: baseURL, Reason: "response is not a JSON object", Err: err}
	}
	_, hasExitCode := fields["exitCode"]
	_, hasError := fields["error"]
	if !hasExitCode && !hasError {
		return nil, &UnreachableError{URL: baseURL, Reason: "response lacks exitCode and error"}
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, &UnreachableError{URL: baseURL, Reason: "malformed proxy response", Err: err}
	}
	if !hasExitCode && response.ExitCode == 0 {
		response.ExitCode = 1
	}
	return &response, nil
}
