// Package config handles TOML/YAML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DownstreamURLEnv is the environment variable that carries the downstream webhook URL.
const DownstreamURLEnv = "APPS_SCRIPT_URL"

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/webhook-proxy/config.toml",
	"configs/config.toml",
}

// reservedPaths are routes served by the proxy itself.
var reservedPaths = []string{"/submit", "/healthz", "/proxy/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config         string   `kong:"short='c',help='Path to TOML or YAML config file.',env='CONFIG_PATH'"`
	Host           string   `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port           int      `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	DownstreamURL  string   `kong:"name='downstream-url',help='Downstream webhook URL (overrides config).',env='APPS_SCRIPT_URL'"`
	AllowedOrigins []string `kong:"help='Comma-separated CORS origin allow-list (overrides config).',env='ALLOWED_ORIGINS'"`
	LogLevel       string   `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `toml:"server" yaml:"server"`
	Downstream DownstreamConfig `toml:"downstream" yaml:"downstream"`
	CORS       CORSConfig       `toml:"cors" yaml:"cors"`
	Log        LogConfig        `toml:"log" yaml:"log"`
	Metrics    MetricsConfig    `toml:"metrics" yaml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host" yaml:"host"`
	Port         int    `toml:"port" yaml:"port"` // 0 means "use default" (8000)
	BodyMaxBytes int64  `toml:"body_max_bytes" yaml:"body_max_bytes"`
}

// DownstreamConfig holds the webhook endpoint and connection settings.
// An empty URL is accepted at load time; every POST then fails with a
// configuration error instead of the process refusing to start.
type DownstreamConfig struct {
	URL              string `toml:"url" yaml:"url"`
	TimeoutSeconds   int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	IdleConnections  int    `toml:"idle_connections" yaml:"idle_connections"`
	ResponseMaxBytes int64  `toml:"response_max_bytes" yaml:"response_max_bytes"`
}

// CORSConfig holds the origin allow-list. A single entry reproduces a
// fixed-origin policy.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Load reads the config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/webhook-proxy/config.toml then configs/config.toml. Finding nothing is
// not an error: the proxy can be configured entirely from the environment.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// decodeFile picks the decoder by file extension; anything that is not YAML is read as TOML.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.DownstreamURL != "" {
		c.Downstream.URL = cli.DownstreamURL
	}
	if len(cli.AllowedOrigins) > 0 {
		c.CORS.AllowedOrigins = cli.AllowedOrigins
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Downstream URL: optional, but must be absolute HTTP(S) when present.
	if c.Downstream.URL != "" {
		u, err := url.Parse(c.Downstream.URL)
		if err != nil {
			return fmt.Errorf("downstream.url is not a valid URL: %w", err)
		}
		if u.Scheme != "https" && u.Scheme != "http" {
			return fmt.Errorf("downstream.url must use http or https; got %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("downstream.url must include a host")
		}
	}

	for i, origin := range c.CORS.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("cors.allowed_origins[%d]: %w", i, err)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Downstream.TimeoutSeconds < 0 {
		return fmt.Errorf("downstream.timeout_seconds must be non-negative; got %d", c.Downstream.TimeoutSeconds)
	}
	if c.Downstream.IdleConnections < 0 {
		return fmt.Errorf("downstream.idle_connections must be non-negative; got %d", c.Downstream.IdleConnections)
	}
	if c.Downstream.ResponseMaxBytes < 0 {
		return fmt.Errorf("downstream.response_max_bytes must be non-negative; got %d", c.Downstream.ResponseMaxBytes)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedPaths {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// validateOrigin accepts serialized origins only: scheme://host[:port], no path, query or wildcard.
func validateOrigin(origin string) error {
	if origin == "*" {
		return fmt.Errorf("wildcard origin is not allowed; list each origin explicitly")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("origin %q must use http or https", origin)
	}
	if u.Host == "" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("origin %q must be of the form scheme://host[:port]", origin)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB
	}
	if c.Downstream.TimeoutSeconds == 0 {
		c.Downstream.TimeoutSeconds = 30
	}
	if c.Downstream.IdleConnections == 0 {
		c.Downstream.IdleConnections = 16
	}
	if c.Downstream.ResponseMaxBytes == 0 {
		c.Downstream.ResponseMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
