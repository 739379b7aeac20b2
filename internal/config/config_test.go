package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

// writeConfig writes data to name inside a fresh temp dir and returns the path.
func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 5242880

[downstream]
url = "https://script.google.com/macros/s/abc/exec"
timeout_seconds = 60
idle_connections = 50

[cors]
allowed_origins = ["https://example.com", "https://qa.example.com"]

[log]
level = "debug"
format = "text"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Downstream.URL != "https://script.google.com/macros/s/abc/exec" {
		t.Errorf("Downstream.URL = %q", cfg.Downstream.URL)
	}
	if cfg.Downstream.TimeoutSeconds != 60 {
		t.Errorf("Downstream.TimeoutSeconds = %d, want %d", cfg.Downstream.TimeoutSeconds, 60)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://qa.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
}

func TestLoad_YAMLConfig(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  port: 9100
downstream:
  url: https://hooks.example.com/submit
  timeout_seconds: 15
cors:
  allowed_origins:
    - https://example.com
metrics:
  enabled: true
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9100)
	}
	if cfg.Downstream.URL != "https://hooks.example.com/submit" {
		t.Errorf("Downstream.URL = %q", cfg.Downstream.URL)
	}
	if cfg.Downstream.TimeoutSeconds != 15 {
		t.Errorf("Downstream.TimeoutSeconds = %d, want 15", cfg.Downstream.TimeoutSeconds)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected Metrics.Enabled = true")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yml", "server: [unterminated\n")

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for malformed YAML, got nil")
	}
}

func TestLoad_MissingDownstreamURLAllowed(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[cors]
allowed_origins = ["https://example.com"]
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v; missing downstream.url must be reported per request, not at startup", err)
	}
	if cfg.Downstream.URL != "" {
		t.Errorf("Downstream.URL = %q, want empty", cfg.Downstream.URL)
	}
}

func TestLoad_NoFileUsesEnvironmentOnly(t *testing.T) {
	cli := &CLI{
		DownstreamURL:  "https://hooks.example.com/submit",
		AllowedOrigins: []string{"https://example.com"},
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Downstream.URL != "https://hooks.example.com/submit" {
		t.Errorf("Downstream.URL = %q", cfg.Downstream.URL)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default 8000", cfg.Server.Port)
	}
}

func TestLoad_InvalidDownstreamURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"ftp scheme", "ftp://hooks.example.com/submit"},
		{"relative", "/submit"},
		{"no host", "https:///submit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.toml", "[downstream]\nurl = \""+tt.url+"\"\n")

			_, err := Load(cliWithPath(path))
			if err == nil {
				t.Fatalf("Load() expected error for downstream.url=%q, got nil", tt.url)
			}
			if !strings.Contains(err.Error(), "downstream.url") {
				t.Errorf("error = %q, want mention of downstream.url", err)
			}
		})
	}
}

func TestLoad_InvalidOrigins(t *testing.T) {
	tests := []struct {
		name   string
		origin string
	}{
		{"wildcard", "*"},
		{"trailing slash", "https://example.com/"},
		{"path", "https://example.com/app"},
		{"no scheme", "example.com"},
		{"query", "https://example.com?x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.toml", "[cors]\nallowed_origins = [\""+tt.origin+"\"]\n")

			_, err := Load(cliWithPath(path))
			if err == nil {
				t.Fatalf("Load() expected error for origin %q, got nil", tt.origin)
			}
			if !strings.Contains(err.Error(), "cors.allowed_origins[0]") {
				t.Errorf("error = %q, want mention of cors.allowed_origins[0]", err)
			}
		})
	}
}

func TestLoad_OriginWithPort(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[cors]
allowed_origins = ["http://localhost:3000"]
`)

	if _, err := Load(cliWithPath(path)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[log]
level = "verbose"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for invalid log level, got nil")
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[log]
format = "xml"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for invalid log format, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[downstream]
url = "https://hooks.example.com/submit"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.Server.BodyMaxBytes != 1024*1024 {
		t.Errorf("default Server.BodyMaxBytes = %d, want %d", cfg.Server.BodyMaxBytes, 1024*1024)
	}
	if cfg.Downstream.TimeoutSeconds != 30 {
		t.Errorf("default Downstream.TimeoutSeconds = %d, want %d", cfg.Downstream.TimeoutSeconds, 30)
	}
	if cfg.Downstream.ResponseMaxBytes != 10*1024*1024 {
		t.Errorf("default Downstream.ResponseMaxBytes = %d, want %d", cfg.Downstream.ResponseMaxBytes, 10*1024*1024)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("default Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if len(cfg.CORS.AllowedOrigins) != 0 {
		t.Errorf("default CORS.AllowedOrigins = %v, want empty", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(cliWithPath("/nonexistent/config.toml"))
	if err == nil {
		t.Fatal("Load() expected error for missing explicit file, got nil")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
host = "0.0.0.0"
port = 8000

[downstream]
url = "https://toml.example.com/hook"

[cors]
allowed_origins = ["https://toml.example.com"]

[log]
level = "info"
`)

	cli := &CLI{
		Config:         path,
		Host:           "127.0.0.1",
		Port:           3000,
		DownstreamURL:  "https://cli.example.com/hook",
		AllowedOrigins: []string{"https://a.example.com", "https://b.example.com"},
		LogLevel:       "debug",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q (CLI override)", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d (CLI override)", cfg.Server.Port, 3000)
	}
	if cfg.Downstream.URL != "https://cli.example.com/hook" {
		t.Errorf("Downstream.URL = %q, want CLI override", cfg.Downstream.URL)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[0] != "https://a.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v, want CLI override", cfg.CORS.AllowedOrigins)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (CLI override)", cfg.Log.Level, "debug")
	}
}

func TestLoad_NegativeNumbers(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"port", "[server]\nport = -1\n", "server.port"},
		{"body_max_bytes", "[server]\nbody_max_bytes = -1\n", "server.body_max_bytes"},
		{"timeout", "[downstream]\ntimeout_seconds = -5\n", "downstream.timeout_seconds"},
		{"idle_connections", "[downstream]\nidle_connections = -1\n", "downstream.idle_connections"},
		{"response_max_bytes", "[downstream]\nresponse_max_bytes = -1\n", "downstream.response_max_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.toml", tt.data)

			_, err := Load(cliWithPath(path))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestWarnPermissions_Loose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if !strings.Contains(buf.String(), "readable by group/others") {
		t.Errorf("expected permission warning, got: %q", buf.String())
	}
}

func TestWarnPermissions_Strict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no warning for 0600 file, got: %q", buf.String())
	}
}

func TestWarnPermissions_NoFile(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	(&Config{}).WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no output without a config file, got: %q", buf.String())
	}
}

func TestFindConfigInPaths_NotFound(t *testing.T) {
	got := findConfigInPaths([]string{"/nonexistent/a.toml", "/nonexistent/b.toml"})
	if got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}

func TestFindConfigInPaths_Priority(t *testing.T) {
	path1 := writeConfig(t, "config.toml", "")
	path2 := writeConfig(t, "config.toml", "")

	got := findConfigInPaths([]string{"/nonexistent/a.toml", path1, path2})
	if got != path1 {
		t.Errorf("findConfigInPaths() = %q, want first match %q", got, path1)
	}
}

func TestLoad_MetricsPathDefault(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[metrics]
enabled = true
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_MetricsPathNoLeadingSlash(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[metrics]
enabled = true
path = "metrics"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for metrics.path without leading slash, got nil")
	}
	if !strings.Contains(err.Error(), "metrics.path") {
		t.Errorf("error = %q, want mention of metrics.path", err)
	}
}

func TestLoad_MetricsPathConflictsWithRoute(t *testing.T) {
	for _, p := range []string{"/submit", "/submit/metrics", "/healthz", "/proxy/status"} {
		t.Run(p, func(t *testing.T) {
			cfgPath := writeConfig(t, "config.toml", "[metrics]\nenabled = true\npath = \""+p+"\"\n")

			_, err := Load(cliWithPath(cfgPath))
			if err == nil {
				t.Fatalf("Load() expected error for metrics.path=%q conflicting with route, got nil", p)
			}
			if !strings.Contains(err.Error(), "conflicts") {
				t.Errorf("error = %q, want mention of conflict", err)
			}
		})
	}
}

func TestLoad_MetricsDisabledSkipsPathValidation(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[metrics]
enabled = false
path = "bad-no-slash"
`)

	if _, err := Load(cliWithPath(path)); err != nil {
		t.Fatalf("Load() error = %v; disabled metrics should skip path validation", err)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 3000}
	want := "127.0.0.1:3000"
	if got := sc.Addr(); got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}
