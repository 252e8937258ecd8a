package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/taskweaver.db")
	if cfg.Database.Path != "/tmp/taskweaver.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" || !cfg.Logging.DevFile.Enabled {
		t.Fatalf("unexpected logging defaults %#v", cfg.Logging)
	}
	if cfg.Priority.ActiveOnly {
		t.Fatal("expected propagation through every downstream task by default")
	}
	if cfg.Server.APIEndpoint != "/api/v1" || cfg.Server.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected server defaults %#v", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/taskweaver.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/taskweaver.db"

[logging]
level = "DEBUG"

[logging.dev_file]
enabled = false

[priority]
active_only = true

[server]
http_bind = "0.0.0.0:9090"

[snapshot]
format = "cbor"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/taskweaver.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.DevFile.Enabled {
		t.Fatalf("unexpected logging config %#v", cfg.Logging)
	}
	if cfg.Logging.DevFile.Dir != ".taskweaver/log" {
		t.Fatalf("expected default dev log dir to survive, got %q", cfg.Logging.DevFile.Dir)
	}
	if !cfg.Priority.ActiveOnly {
		t.Fatal("expected priority.active_only from config override")
	}
	if cfg.Server.HTTPBind != "0.0.0.0:9090" || cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("unexpected server config %#v", cfg.Server)
	}
	if cfg.Snapshot.Format != "cbor" {
		t.Fatalf("unexpected snapshot format %q", cfg.Snapshot.Format)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"level":    "[logging]\nlevel = \"loud\"\n",
		"format":   "[snapshot]\nformat = \"yaml\"\n",
		"endpoint": "[server]\napi_endpoint = \"api\"\n",
		"db path":  "[database]\npath = \"  \"\n",
		"dev dir":  "[logging.dev_file]\nenabled = true\ndir = \"\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/default.db")); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[database\npath="), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := Load(path, Default("/tmp/default.db"))
	if err == nil || !strings.Contains(err.Error(), "decode toml") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestResolvePathPrecedence(t *testing.T) {
	workDir := t.TempDir()
	platform := "/home/u/.config/taskweaver/config.toml"

	if got := ResolvePath("", "", workDir, platform); got != platform {
		t.Fatalf("expected platform path, got %q", got)
	}
	local := filepath.Join(workDir, ProjectFileName)
	if err := os.WriteFile(local, []byte(""), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if got := ResolvePath("", "", workDir, platform); got != local {
		t.Fatalf("expected project-local path, got %q", got)
	}
	if got := ResolvePath("", "/env.toml", workDir, platform); got != "/env.toml" {
		t.Fatalf("expected env path, got %q", got)
	}
	if got := ResolvePath("/flag.toml", "/env.toml", workDir, platform); got != "/flag.toml" {
		t.Fatalf("expected flag path, got %q", got)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	defaults := Default("/data/taskweaver.db")
	defaults.Priority.ActiveOnly = true
	if err := WriteDefault(path, defaults, false); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if err := WriteDefault(path, defaults, false); err == nil {
		t.Fatal("expected refusal to overwrite without force")
	}
	if err := WriteDefault(path, defaults, true); err != nil {
		t.Fatalf("WriteDefault(force) error = %v", err)
	}

	cfg, err := Load(path, Default("/other.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/data/taskweaver.db" || !cfg.Priority.ActiveOnly {
		t.Fatalf("unexpected reloaded config %#v", cfg)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(path); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist, err=%v", err)
	}
}
