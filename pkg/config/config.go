// Package config loads the hosted server's TOML configuration file. A
// fixed set of its keys can be overridden by TOOLSCRIPT_-prefixed
// environment variables read through viper; CLI flags only choose which
// file is loaded.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/alennartz/toolscript/pkg/mcpgateway"
)

// HTTPServer configures the hosted transport (chi router).
type HTTPServer struct {
	Address string `toml:"address"`
}

// Execution configures the executor's default per-request budgets.
type Execution struct {
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MemoryLimitBytes  uint64 `toml:"memory_limit_bytes"`
	CallCountLimit    int    `toml:"call_count_limit"`
	FilesystemEnabled bool   `toml:"filesystem_enabled"`
	SandboxRoot       string `toml:"sandbox_root"`
	MaxWriteBytes     int64  `toml:"max_write_bytes"`
}

// Auth configures the optional JWT/JWKS bearer-auth middleware.
type Auth struct {
	Enabled  bool   `toml:"enabled"`
	Issuer   string `toml:"issuer"`
	Audience string `toml:"audience"`
	JWKSURL  string `toml:"jwks_url"`
}

// MCPServer is one upstream MCP server entry in the config file.
type MCPServer struct {
	Name      string            `toml:"name"`
	Transport string            `toml:"transport"`
	Command   string            `toml:"command,omitempty"`
	Args      []string          `toml:"args,omitempty"`
	Env       map[string]string `toml:"env,omitempty"`
	URL       string            `toml:"url,omitempty"`
	Headers   map[string]string `toml:"headers,omitempty"`
}

// ToServerConfig converts a config-file MCP server entry to the gateway's
// runtime ServerConfig.
func (m MCPServer) ToServerConfig() mcpgateway.ServerConfig {
	return mcpgateway.ServerConfig{
		Name:      m.Name,
		Transport: mcpgateway.TransportKind(m.Transport),
		Command:   m.Command,
		Args:      m.Args,
		Env:       m.Env,
		URL:       m.URL,
		Headers:   m.Headers,
	}
}

// Config is the top-level hosted-server configuration.
type Config struct {
	ManifestPath string      `toml:"manifest_path"`
	HTTP         HTTPServer  `toml:"http_server"`
	Execution    Execution   `toml:"execution"`
	Auth         Auth        `toml:"auth"`
	MCPServers   []MCPServer `toml:"mcp_servers"`
}

// Timeout converts Execution.TimeoutSeconds to a time.Duration.
func (e Execution) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// defaults returns a Config with every ambient default applied.
func defaults() Config {
	return Config{
		HTTP: HTTPServer{Address: ":8080"},
		Execution: Execution{
			TimeoutSeconds:    30,
			MemoryLimitBytes:  64 * 1024 * 1024,
			CallCountLimit:    100,
			FilesystemEnabled: false,
			SandboxRoot:       "",
			MaxWriteBytes:     52_428_800,
		},
	}
}

// Load reads the TOML file at path, falling back to defaults for any
// field it does not set, then applies TOOLSCRIPT_-prefixed environment
// variable overrides through viper.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, toolerrors.NewNotFoundError(fmt.Sprintf("read config file %q", path), err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, toolerrors.NewInvalidArgumentError(fmt.Sprintf("parse config file %q", path), err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("TOOLSCRIPT")
	v.AutomaticEnv()

	if v.IsSet("http_server_address") {
		cfg.HTTP.Address = v.GetString("http_server_address")
	}
	if v.IsSet("manifest_path") {
		cfg.ManifestPath = v.GetString("manifest_path")
	}
	if v.IsSet("execution_timeout_seconds") {
		cfg.Execution.TimeoutSeconds = v.GetInt("execution_timeout_seconds")
	}
	if v.IsSet("execution_filesystem_enabled") {
		cfg.Execution.FilesystemEnabled = v.GetBool("execution_filesystem_enabled")
	}

	if cfg.ManifestPath == "" {
		return Config{}, toolerrors.NewInvalidArgumentError("manifest_path is required", nil)
	}
	return cfg, nil
}
