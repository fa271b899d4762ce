// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/airlock/lib/clock"
	"github.com/bureau-foundation/airlock/lib/netutil"
	"github.com/bureau-foundation/airlock/lib/sealed"
	"github.com/bureau-foundation/airlock/lib/secret"
)

// MCPServer is one registry entry.
type MCPServer struct {
	// URL is the absolute http(s) endpoint requests are forwarded to.
	// Any path after /mcp/{name}/ is appended to its path.
	URL string `json:"url"`

	// Headers are added to every forwarded request. Values of the form
	// "age:<base64>" are decrypted with the host identity.
	Headers map[string]string `json:"headers,omitempty"`
}

// MCPRegistry is the parsed registry file.
type MCPRegistry struct {
	// Servers is keyed by the name clients use in /mcp/{name}.
	Servers map[string]MCPServer `json:"servers"`
}

// Names returns the registered server names in sorted order.
func (r *MCPRegistry) Names() []string {
	names := make([]string, 0, len(r.Servers))
	for name := range r.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadMCPRegistry reads a JSONC registry file. Comments and trailing
// commas are allowed. A missing file is an empty registry.
func LoadMCPRegistry(path string) (*MCPRegistry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &MCPRegistry{Servers: map[string]MCPServer{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading MCP registry: %w", err)
	}

	var registry MCPRegistry
	if err := json.Unmarshal(jsonc.ToJSON(data), &registry); err != nil {
		return nil, fmt.Errorf("parsing MCP registry %s: %w", path, err)
	}
	if registry.Servers == nil {
		registry.Servers = map[string]MCPServer{}
	}
	for name, server := range registry.Servers {
		parsed, err := url.Parse(server.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("MCP server %q: url %q must be an absolute http(s) URL", name, server.URL)
		}
	}
	return &registry, nil
}

// mcpRequestHeaders are copied from the container's request.
var mcpRequestHeaders = []string{
	"Content-Type",
	"Accept",
	"Mcp-Session-Id",
	"Mcp-Protocol-Version",
	"Last-Event-ID",
}

// mcpResponseHeaders are copied back from the upstream response.
var mcpResponseHeaders = []string{
	"Content-Type",
	"Mcp-Session-Id",
	"Cache-Control",
}

const maxMCPRequestBodySize = 8 << 20

// MCPProxy forwards /mcp/{name}/{rest...} to registered servers.
type MCPProxy struct {
	registryPath string
	identityPath string
	client       *http.Client
	clock        clock.Clock
	logger       *slog.Logger
}

// MCPProxyConfig configures an MCPProxy.
type MCPProxyConfig struct {
	// RegistryPath is the JSONC registry file. It is re-read on every
	// request, so edits apply without a restart.
	RegistryPath string

	// IdentityPath is the age identity for sealed header values. It is
	// read only when a sealed value must be opened.
	IdentityPath string

	// Client defaults to a client without a timeout, since event
	// streams stay open indefinitely.
	Client *http.Client

	// Clock times each forwarded request. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewMCPProxy creates an MCPProxy.
func NewMCPProxy(config MCPProxyConfig) *MCPProxy {
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPProxy{
		registryPath: config.RegistryPath,
		identityPath: config.IdentityPath,
		client:       client,
		clock:        clk,
		logger:       logger,
	}
}

// ServeHTTP implements http.Handler. The route must bind {name} and
// may bind {rest...}.
func (p *MCPProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := p.clock.Now()
	name := r.PathValue("name")
	rest := r.PathValue("rest")

	registry, err := LoadMCPRegistry(p.registryPath)
	if err != nil {
		p.logger.Error("mcp registry unusable", "error", err)
		sendError(w, p.logger, http.StatusBadGateway, "MCP registry unusable: %v", err)
		return
	}
	server, ok := registry.Servers[name]
	if !ok {
		sendError(w, p.logger, http.StatusNotFound, "unknown MCP server: %s", name)
		return
	}

	headers, err := p.openHeaders(server.Headers)
	if err != nil {
		p.logger.Error("mcp header unusable", "server", name, "error", err)
		sendError(w, p.logger, http.StatusBadGateway, "MCP server %s: %v", name, err)
		return
	}

	// Validated by LoadMCPRegistry.
	upstream, _ := url.Parse(server.URL)
	upstreamURL := *upstream
	if rest != "" {
		upstreamURL.Path = singleJoiningSlash(upstream.Path, rest)
	}
	upstreamURL.RawQuery = r.URL.RawQuery

	body := http.MaxBytesReader(w, r.Body, maxMCPRequestBodySize)
	upstreamRequest, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL.String(), body)
	if err != nil {
		sendError(w, p.logger, http.StatusBadGateway, "building upstream request: %v", err)
		return
	}
	for _, header := range mcpRequestHeaders {
		if value := r.Header.Get(header); value != "" {
			upstreamRequest.Header.Set(header, value)
		}
	}
	for header, value := range headers {
		upstreamRequest.Header.Set(header, value)
	}

	response, err := p.client.Do(upstreamRequest)
	if err != nil {
		p.logger.Warn("mcp upstream failed",
			"server", name,
			"method", r.Method,
			"error", err,
			"duration", clock.Since(p.clock, startTime),
		)
		sendError(w, p.logger, http.StatusBadGateway, "MCP server %s unreachable", name)
		return
	}
	defer response.Body.Close()

	// The server's deadlines are sized for tool calls. An event stream
	// stays open as long as the upstream keeps it open.
	controller := http.NewResponseController(w)
	if err := controller.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		p.logger.Warn("clearing write deadline failed", "server", name, "error", err)
	}
	if err := controller.SetReadDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		p.logger.Warn("clearing read deadline failed", "server", name, "error", err)
	}

	for _, header := range mcpResponseHeaders {
		if value := response.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
	w.WriteHeader(response.StatusCode)

	written, err := relay(w, response.Body)
	if err != nil && !netutil.IsExpectedCloseError(err) {
		p.logger.Warn("mcp stream interrupted",
			"server", name,
			"bytes", written,
			"error", err,
			"duration", clock.Since(p.clock, startTime),
		)
		return
	}
	p.logger.Info("mcp proxy complete",
		"server", name,
		"method", r.Method,
		"status", response.StatusCode,
		"bytes", written,
		"duration", clock.Since(p.clock, startTime),
	)
}

// openHeaders decrypts sealed header values. The identity is loaded
// only if at least one value is sealed.
func (p *MCPProxy) openHeaders(configured map[string]string) (map[string]string, error) {
	var identity *secret.Buffer
	defer func() {
		if identity != nil {
			identity.Close()
		}
	}()

	opened := make(map[string]string, len(configured))
	for header, value := range configured {
		if sealed.IsSealed(value) && identity == nil {
			loaded, err := sealed.LoadIdentity(p.identityPath)
			if err != nil {
				return nil, fmt.Errorf("loading identity for sealed header %s: %w", header, err)
			}
			identity = loaded
		}
		plain, err := sealed.Open(value, identity)
		if err != nil {
			return nil, fmt.Errorf("opening header %s: %w", header, err)
		}
		opened[header] = plain
	}
	return opened, nil
}

// relay copies src to w, flushing after every read so event streams
// reach the client as they arrive.
func relay(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buffer := make([]byte, 4096)
	var total int64
	for {
		n, err := src.Read(buffer)
		if n > 0 {
			written, writeErr := w.Write(buffer[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// singleJoiningSlash joins two URL paths with exactly one slash.
func singleJoiningSlash(a, b string) string {
	aSlash := strings.HasSuffix(a, "/")
	bSlash := strings.HasPrefix(b, "/")
	switch {
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	}
	return a + b
}
