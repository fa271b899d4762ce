// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/airlock/lib/clock"
	"github.com/bureau-foundation/airlock/lib/secret"
	"github.com/bureau-foundation/airlock/pathmap"
	"github.com/bureau-foundation/airlock/policy"
)

// maxRequestBodySize bounds a tool request body.
const maxRequestBodySize = 1 << 20

// Handler serves the tool endpoints, the MCP route, and the health
// check.
type Handler struct {
	// tools is keyed by endpoint name.
	tools map[string]Tool

	// mappings is consulted on every request, so a relaunched session
	// takes effect without restarting the proxy.
	mappings pathmap.Store

	executor    Executor
	credentials CredentialProvider // nil disables credential injection
	audit       Auditor            // nil disables auditing
	mcp         http.Handler       // nil leaves /mcp unrouted

	// token is borrowed from the caller, who closes it after the
	// server stops.
	token *secret.Buffer

	homeDir string
	clock   clock.Clock
	logger  *slog.Logger
}

// HandlerConfig holds the collaborators of a Handler.
type HandlerConfig struct {
	// Tools are served at POST /{name}. Names must be unique and every
	// tool needs a binary and a validator.
	Tools []Tool

	// Mappings locates per-workspace path-mapping files.
	Mappings pathmap.Store

	// Executor runs allowed commands. Required.
	Executor Executor

	// Credentials supplies the token for tools with Credentials set.
	// Nil disables injection.
	Credentials CredentialProvider

	// Audit may be nil.
	Audit Auditor

	// MCP serves /mcp/{name}/... Nil leaves the route unregistered.
	MCP http.Handler

	// Token is the bearer token every privileged request must present.
	// The Handler borrows it.
	Token *secret.Buffer

	// HomeDir is the working directory for tools called without cwd.
	HomeDir string

	// Clock stamps audit records and times requests. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewHandler validates config and creates a Handler.
func NewHandler(config HandlerConfig) (*Handler, error) {
	if config.Token == nil {
		return nil, fmt.Errorf("proxy token is required")
	}
	if config.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if len(config.Tools) == 0 {
		return nil, fmt.Errorf("at least one tool is required")
	}

	tools := make(map[string]Tool, len(config.Tools))
	for _, tool := range config.Tools {
		if tool.Name == "" || tool.Binary == "" || tool.Validator == nil {
			return nil, fmt.Errorf("tool %q is missing a name, binary, or validator", tool.Name)
		}
		if _, exists := tools[tool.Name]; exists {
			return nil, fmt.Errorf("tool %q registered twice", tool.Name)
		}
		tools[tool.Name] = tool
	}

	homeDir := config.HomeDir
	if homeDir == "" {
		homeDir, _ = os.UserHomeDir()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tools:       tools,
		mappings:    config.Mappings,
		executor:    config.Executor,
		credentials: config.Credentials,
		audit:       config.Audit,
		mcp:         config.MCP,
		token:       config.Token,
		homeDir:     homeDir,
		clock:       clk,
		logger:      logger,
	}, nil
}

// Routes returns the complete request router, authentication included.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HandleHealth)
	for name, tool := range h.tools {
		mux.HandleFunc("POST /"+name, h.toolHandler(tool))
	}
	if h.mcp != nil {
		mux.Handle("/mcp/{name}", h.mcp)
		mux.Handle("/mcp/{name}/{rest...}", h.mcp)
	}
	return h.authenticate(mux)
}

// authenticate rejects every request except GET /health that lacks
// the bearer token. Nothing else about the request is examined first.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !h.token.Equal([]byte(presented)) {
			h.logger.Warn("unauthorized request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
			sendError(w, h.logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleHealth reports liveness. It requires no token.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

// requestError is a client mistake reported with HTTP 400.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func (h *Handler) toolHandler(tool Tool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := h.clock.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		record := AuditRecord{
			Time:      startTime.UTC(),
			RequestID: requestID,
			Tool:      tool.Name,
		}

		args, cwd, err := h.decodeRequest(w, r, tool, &record)
		if err != nil {
			h.reject(w, tool, err, record, startTime)
			return
		}

		decision := tool.Validator.Check(args)
		if !decision.Allowed {
			h.logger.Warn("command blocked",
				"request_id", requestID,
				"tool", tool.Name,
				"args", args,
				"reason", decision.Reason,
			)
			record.Blocked = true
			record.Reason = decision.Reason
			record.ExitCode = policy.BlockedExitCode
			h.record(record, startTime)
			writeJSON(w, h.logger, http.StatusForbidden, CommandResult{
				Success:  false,
				Blocked:  true,
				Reason:   decision.Reason,
				ExitCode: policy.BlockedExitCode,
			})
			return
		}

		command, err := h.prepare(r.Context(), tool, args, cwd, record.WorkspaceHash)
		if err != nil {
			h.reject(w, tool, err, record, startTime)
			return
		}

		h.logger.Info("command started",
			"request_id", requestID,
			"tool", tool.Name,
			"args", args,
			"dir", command.Dir,
		)
		result := h.executor.Execute(context.WithoutCancel(r.Context()), command)

		record.ExitCode = result.ExitCode
		if result.SpawnError != nil {
			record.Error = result.SpawnError.Error()
		}
		h.record(record, startTime)
		h.logger.Info("command complete",
			"request_id", requestID,
			"tool", tool.Name,
			"exit_code", result.ExitCode,
			"duration", h.clock.Now().Sub(startTime),
		)

		writeJSON(w, h.logger, http.StatusOK, CommandResult{
			Success:  result.ExitCode == 0,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
		})
	}
}

// decodeRequest parses and shape-checks the body. It fills the audit
// fields it learns along the way.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, tool Tool, record *AuditRecord) ([]string, *string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var request CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, &requestError{
				status:  http.StatusRequestEntityTooLarge,
				message: fmt.Sprintf("request body too large (max %d bytes)", maxRequestBodySize),
			}
		}
		return nil, nil, badRequest("invalid request: %v", err)
	}

	if len(request.Args) == 0 || string(request.Args) == "null" {
		return nil, nil, badRequest("args is required")
	}
	var args []string
	if err := json.Unmarshal(request.Args, &args); err != nil {
		return nil, nil, badRequest("args must be an array of strings")
	}
	record.Args = args

	if request.Cwd != nil {
		record.Cwd = *request.Cwd
	}
	if request.WorkspaceHash != "" {
		if err := pathmap.CheckHash(request.WorkspaceHash); err != nil {
			return nil, nil, badRequest("%v", err)
		}
		record.WorkspaceHash = request.WorkspaceHash
	}
	if tool.RequireCwd && (request.Cwd == nil || *request.Cwd == "") {
		return nil, nil, badRequest("cwd is required for %s", tool.Name)
	}
	return args, request.Cwd, nil
}

// prepare loads the workspace mapping fresh, resolves the working
// directory, translates arguments, and adds credentials.
func (h *Handler) prepare(ctx context.Context, tool Tool, args []string, cwd *string, hash string) (Command, error) {
	mapping, err := h.mappings.Load(hash)
	if err != nil {
		return Command{}, fmt.Errorf("loading path mapping: %w", err)
	}

	dir := h.homeDir
	if cwd != nil && *cwd != "" {
		dir = mapping.Resolve(*cwd)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return Command{}, badRequest("working directory does not exist on the host: %s", *cwd)
		}
	}

	if tool.Translate != nil {
		args = tool.Translate(mapping, args)
	}

	var env []string
	if tool.Credentials && h.credentials != nil {
		token, err := h.credentials.Get(ctx)
		if err != nil {
			h.logger.Warn("github token unavailable, running without it", "tool", tool.Name, "error", err)
		} else {
			env = credentialEnvironment(token)
		}
	}

	return Command{
		Tool:   tool.Name,
		Binary: tool.Binary,
		Args:   args,
		Dir:    dir,
		Env:    env,
	}, nil
}

func (h *Handler) reject(w http.ResponseWriter, tool Tool, err error, record AuditRecord, startTime time.Time) {
	status := http.StatusInternalServerError
	var requestErr *requestError
	if errors.As(err, &requestErr) {
		status = requestErr.status
	}
	h.logger.Warn("request rejected",
		"request_id", record.RequestID,
		"tool", tool.Name,
		"status", status,
		"error", err,
	)
	record.ExitCode = errorExitCode
	record.Error = err.Error()
	h.record(record, startTime)
	sendError(w, h.logger, status, "%v", err)
}

func (h *Handler) record(record AuditRecord, startTime time.Time) {
	if h.audit == nil {
		return
	}
	record.DurationMS = h.clock.Now().Sub(startTime).Milliseconds()
	if err := h.audit.Record(record); err != nil {
		h.logger.Error("audit write failed", "request_id", record.RequestID, "error", err)
	}
}

// sendError writes a CommandResult carrying only an error message.
func sendError(w http.ResponseWriter, logger *slog.Logger, status int, format string, args ...any) {
	writeJSON(w, logger, status, CommandResult{
		Success:  false,
		ExitCode: errorExitCode,
		Error:    fmt.Sprintf(format, args...),
	})
}

// writeJSON encodes value with the given status. An encoding failure
// means the client went away, so it is only logged.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logger.Warn("writing JSON response", "error", err, "status", status)
	}
}
