// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bureau-foundation/airlock/lib/config"
)

// Server is the loopback HTTP listener in front of a Handler.
type Server struct {
	listenAddress string
	httpServer    *http.Server
	listener      net.Listener
	logger        *slog.Logger
}

// ServerConfig holds configuration for creating a Server.
type ServerConfig struct {
	// ListenAddress must be a loopback host:port. Port 0 picks a free
	// port (see Addr).
	ListenAddress string

	// Handler serves every route. Required.
	Handler *Handler

	// ReadTimeout bounds reading a whole request. Defaults to
	// DefaultReadTimeout.
	ReadTimeout time.Duration

	// WriteTimeout bounds a tool call from the end of its request to
	// the end of its response. Defaults to DefaultWriteTimeout. MCP
	// responses clear both deadlines once the upstream answers.
	WriteTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

const (
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout covers a large terraform plan, whose response
	// is written only when it finishes.
	DefaultWriteTimeout = 15 * time.Minute
)

// NewServer creates a server. It refuses any non-loopback address.
func NewServer(serverConfig ServerConfig) (*Server, error) {
	if err := config.CheckLoopback(serverConfig.ListenAddress); err != nil {
		return nil, fmt.Errorf("listen address: %w", err)
	}
	if serverConfig.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	readTimeout := serverConfig.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	writeTimeout := serverConfig.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	logger := serverConfig.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		listenAddress: serverConfig.ListenAddress,
		httpServer: &http.Server{
			Handler:           serverConfig.Handler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
		},
		logger: logger,
	}, nil
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listenAddress, err)
	}
	s.listener = listener
	s.logger.Info("proxy server started", "address", listener.Addr().String())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("proxy server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.listenAddress
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down proxy server")
	return s.httpServer.Shutdown(ctx)
}
