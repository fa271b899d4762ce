// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config path.
const EnvConfig = "AIRLOCK_CONFIG"

// Config is the host configuration shared by airlock-proxy and the
// airlock CLI.
type Config struct {
	Paths   PathsConfig       `yaml:"paths"`
	Proxy   ProxyConfig       `yaml:"proxy"`
	Tools   map[string]string `yaml:"tools"`
	Audit   AuditConfig       `yaml:"audit"`
	Sandbox SandboxConfig     `yaml:"sandbox"`
}

// PathsConfig configures file locations on the host.
type PathsConfig struct {
	// Root holds the token, the audit log, and one data directory per
	// workspace under workspaces/.
	Root string `yaml:"root"`

	TokenFile      string `yaml:"token_file"`
	AuditLog       string `yaml:"audit_log"`
	MCPRegistry    string `yaml:"mcp_registry"`
	SealedIdentity string `yaml:"sealed_identity"`
}

// WorkspacesDir is the parent of every per-workspace data directory.
func (p PathsConfig) WorkspacesDir() string {
	return filepath.Join(p.Root, "workspaces")
}

// ProxyConfig configures the tool proxy daemon.
type ProxyConfig struct {
	// ListenAddress must be a loopback host:port. The container reaches
	// it through the gateway hostname, never a routable interface.
	ListenAddress string `yaml:"listen_address"`

	// GitHubTokenTTL bounds how long a fetched gh token is reused.
	GitHubTokenTTL time.Duration `yaml:"github_token_ttl"`

	// MaxOutputBytes caps each of stdout and stderr per command.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`
}

// Port returns the port component of ListenAddress.
func (p ProxyConfig) Port() string {
	_, port, err := net.SplitHostPort(p.ListenAddress)
	if err != nil {
		return ""
	}
	return port
}

// AuditConfig configures the audit log.
type AuditConfig struct {
	// MaxBytes is the size at which the live log is rotated. Zero
	// disables rotation.
	MaxBytes int64 `yaml:"max_bytes"`

	// Compression applies to rotated segments: zstd, lz4, or none.
	Compression string `yaml:"compression"`
}

// SandboxConfig describes the container side of a workspace session.
type SandboxConfig struct {
	Image string `yaml:"image"`

	// Network is the internal-only Docker network the container joins.
	// It is created outside airlock and referenced as external.
	Network string `yaml:"network"`

	// ProxyHost is the hostname the container uses to reach the proxy.
	ProxyHost string `yaml:"proxy_host"`

	// LegacyContainer is the fixed container name used before
	// per-workspace sessions existed. Launch removes it if present.
	LegacyContainer string `yaml:"legacy_container"`

	DockerBinary string `yaml:"docker_binary"`
}

// ToolNames lists the proxied tools in endpoint order.
var ToolNames = []string{"git", "gh", "terraform", "kubectl", "aws"}

func defaultTemplate() *Config {
	tools := make(map[string]string, len(ToolNames))
	for _, name := range ToolNames {
		tools[name] = name
	}
	return &Config{
		Paths: PathsConfig{
			Root:           "${HOME}/.airlock",
			TokenFile:      "${AIRLOCK_ROOT}/proxy-token",
			AuditLog:       "${AIRLOCK_ROOT}/audit.jsonl",
			MCPRegistry:    "${AIRLOCK_ROOT}/mcp-servers.jsonc",
			SealedIdentity: "${AIRLOCK_ROOT}/identity.age",
		},
		Proxy: ProxyConfig{
			ListenAddress:  "127.0.0.1:8765",
			GitHubTokenTTL: 5 * time.Minute,
			MaxOutputBytes: 32 << 20,
		},
		Tools: tools,
		Audit: AuditConfig{
			MaxBytes:    64 << 20,
			Compression: "zstd",
		},
		Sandbox: SandboxConfig{
			Image:           "airlock-sandbox:latest",
			Network:         "airlock-internal",
			ProxyHost:       "host.docker.internal",
			LegacyContainer: "airlock",
			DockerBinary:    "docker",
		},
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := defaultTemplate()
	cfg.expandVariables()
	return cfg
}

// Load reads the file at path, or the file named by AIRLOCK_CONFIG
// when path is empty. With neither, it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path on top of the defaults.
// Tool entries in the file are merged over the default tool set.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := defaultTemplate()
	defaultTools := cfg.Tools
	cfg.Tools = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	for name, binary := range defaultTools {
		if _, ok := cfg.Tools[name]; !ok {
			if cfg.Tools == nil {
				cfg.Tools = make(map[string]string)
			}
			cfg.Tools[name] = binary
		}
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	if vars["HOME"] == "" {
		vars["HOME"], _ = os.UserHomeDir()
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["AIRLOCK_ROOT"] = c.Paths.Root

	c.Paths.TokenFile = expandVars(c.Paths.TokenFile, vars)
	c.Paths.AuditLog = expandVars(c.Paths.AuditLog, vars)
	c.Paths.MCPRegistry = expandVars(c.Paths.MCPRegistry, vars)
	c.Paths.SealedIdentity = expandVars(c.Paths.SealedIdentity, vars)
	for name, binary := range c.Tools {
		c.Tools[name] = expandVars(binary, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. Names in vars win over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.TokenFile == "" {
		errs = append(errs, fmt.Errorf("paths.token_file is required"))
	}
	if c.Paths.AuditLog == "" {
		errs = append(errs, fmt.Errorf("paths.audit_log is required"))
	}

	if err := CheckLoopback(c.Proxy.ListenAddress); err != nil {
		errs = append(errs, fmt.Errorf("proxy.listen_address: %w", err))
	}
	if c.Proxy.GitHubTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("proxy.github_token_ttl must be positive, got %s", c.Proxy.GitHubTokenTTL))
	}
	if c.Proxy.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("proxy.max_output_bytes must be positive, got %d", c.Proxy.MaxOutputBytes))
	}

	for _, name := range sortedKeys(c.Tools) {
		if c.Tools[name] == "" {
			errs = append(errs, fmt.Errorf("tools.%s has an empty binary path", name))
		}
	}

	if c.Audit.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("audit.max_bytes must not be negative"))
	}
	switch c.Audit.Compression {
	case "zstd", "lz4", "none":
	default:
		errs = append(errs, fmt.Errorf("audit.compression must be one of zstd, lz4, none; got %q", c.Audit.Compression))
	}

	if c.Sandbox.Image == "" {
		errs = append(errs, fmt.Errorf("sandbox.image is required"))
	}
	if c.Sandbox.Network == "" {
		errs = append(errs, fmt.Errorf("sandbox.network is required"))
	}
	if c.Sandbox.ProxyHost == "" {
		errs = append(errs, fmt.Errorf("sandbox.proxy_host is required"))
	}
	if c.Sandbox.DockerBinary == "" {
		errs = append(errs, fmt.Errorf("sandbox.docker_binary is required"))
	}

	return errors.Join(errs...)
}

// CheckLoopback reports an error unless address is host:port on a
// loopback interface. "localhost" is accepted.
func CheckLoopback(address string) error {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if port == "" {
		return fmt.Errorf("missing port in %q", address)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%q is not a loopback address", host)
	}
	return nil
}

// ToolBinary resolves the real binary for a proxied tool. Absolute
// paths are used as given; bare names go through PATH.
func (c *Config) ToolBinary(name string) (string, error) {
	binary, ok := c.Tools[name]
	if !ok {
		return "", fmt.Errorf("no binary configured for tool %q", name)
	}
	if filepath.IsAbs(binary) {
		if _, err := os.Stat(binary); err != nil {
			return "", fmt.Errorf("tool %s: %w", name, err)
		}
		return binary, nil
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("tool %s: %s not found in PATH", name, binary)
	}
	return path, nil
}

// EnsurePaths creates the root and workspaces directories with owner
// only permissions.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.WorkspacesDir()} {
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
