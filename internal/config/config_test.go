package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snowz.json")
	content := `{
  "descriptor": {"path": "build.yaml", "models_path": "/abs/models.yaml"},
  "database": {"url": "jdbc:sqlite:app.db"},
  "logging": {"level": "debug", "audit": {"enabled": true}}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Descriptor.Path != filepath.Join(dir, "build.yaml") || cfg.Descriptor.ModelsPath != "/abs/models.yaml" {
		t.Fatalf("unexpected descriptor paths: %+v", cfg.Descriptor)
	}
	if cfg.History.Driver != "memory" || cfg.Lock.Driver != "memory" || cfg.Events.Driver != "none" {
		t.Fatalf("driver defaults not applied: %+v %+v %+v", cfg.History, cfg.Lock, cfg.Events)
	}
	if cfg.Lock.TTL() != 5*time.Minute {
		t.Fatalf("unexpected lock ttl: %s", cfg.Lock.TTL())
	}
	if cfg.Runtime.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir: %s", cfg.Runtime.DataDir)
	}
	if cfg.Logging.Audit.Path != filepath.Join(dir, "data", "audit.log") {
		t.Fatalf("unexpected audit path: %s", cfg.Logging.Audit.Path)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadOrDefaultFallsBackOnlyForDefaultPath(t *testing.T) {
	original := DefaultPath
	DefaultPath = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { DefaultPath = original })

	cfg, err := LoadOrDefault(DefaultPath)
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.History.Driver != "memory" {
		t.Fatalf("defaults not applied: %+v", cfg.History)
	}

	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "explicit.json")); err == nil {
		t.Fatalf("explicit missing path should fail")
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/snowz.json")
	if got := ResolvePath(""); got != "/etc/snowz.json" {
		t.Fatalf("env path not used: %s", got)
	}
	if got := ResolvePath("local.json"); got != "local.json" {
		t.Fatalf("explicit path not preferred: %s", got)
	}
}
