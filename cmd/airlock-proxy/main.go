// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/airlock/lib/clock"
	"github.com/bureau-foundation/airlock/lib/config"
	"github.com/bureau-foundation/airlock/lib/process"
	"github.com/bureau-foundation/airlock/lib/version"
	"github.com/bureau-foundation/airlock/pathmap"
	"github.com/bureau-foundation/airlock/proxy"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var listenAddress string
	var showVersion bool

	flags := pflag.NewFlagSet("airlock-proxy", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to config file (default: $AIRLOCK_CONFIG, else built-in defaults)")
	flags.StringVar(&listenAddress, "listen", "", "loopback host:port to listen on (overrides proxy.listen_address)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("airlock-proxy %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listenAddress != "" {
		cfg.Proxy.ListenAddress = listenAddress
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger.Info("starting airlock-proxy",
		"version", version.Info(),
		"listen_address", cfg.Proxy.ListenAddress,
		"root", cfg.Paths.Root,
	)

	binaries := make(map[string]string, len(config.ToolNames))
	for _, name := range config.ToolNames {
		binary, err := cfg.ToolBinary(name)
		if err != nil {
			return err
		}
		binaries[name] = binary
		logger.Info("registered tool", "tool", name, "binary", binary)
	}
	tools, err := proxy.DefaultTools(binaries)
	if err != nil {
		return err
	}

	token, err := proxy.LoadToken(cfg.Paths.TokenFile)
	if err != nil {
		return fmt.Errorf("loading proxy token (run 'airlock token generate' first): %w", err)
	}
	defer token.Close()

	credentials := proxy.NewTokenCache(clock.Real(), cfg.Proxy.GitHubTokenTTL, proxy.GHAuthToken(binaries["gh"]))
	defer credentials.Close()

	audit, err := proxy.OpenAuditLog(proxy.AuditConfig{
		Path:        cfg.Paths.AuditLog,
		MaxBytes:    cfg.Audit.MaxBytes,
		Compression: cfg.Audit.Compression,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer audit.Close()

	mcp := proxy.NewMCPProxy(proxy.MCPProxyConfig{
		RegistryPath: cfg.Paths.MCPRegistry,
		IdentityPath: cfg.Paths.SealedIdentity,
		Clock:        clock.Real(),
		Logger:       logger,
	})

	handler, err := proxy.NewHandler(proxy.HandlerConfig{
		Tools:       tools,
		Mappings:    pathmap.Store{Dir: cfg.Paths.WorkspacesDir()},
		Executor:    &proxy.ProcessExecutor{MaxOutputBytes: cfg.Proxy.MaxOutputBytes, Logger: logger},
		Credentials: credentials,
		Audit:       audit,
		MCP:         mcp,
		Token:       token,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating handler: %w", err)
	}

	server, err := proxy.NewServer(proxy.ServerConfig{
		ListenAddress: cfg.Proxy.ListenAddress,
		Handler:       handler,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("received shutdown signal")

	// In-flight commands are not cancelled; give them time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
