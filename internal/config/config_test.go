package config

import (
	"os"
	"path/filepath"
	"testing"

	"agentsim/internal/domain"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Simulator.Addr != ":8092" {
		t.Fatalf("unexpected default addr %q", cfg.Simulator.Addr)
	}
	if cfg.Simulator.BaselineErrorRate != 0.1 || cfg.Simulator.RunHistoryLimit != 100 {
		t.Fatalf("unexpected simulator defaults %+v", cfg.Simulator)
	}
	if cfg.Capabilities[domain.CapTokensPerTask] != domain.DefaultTokensPerTask {
		t.Fatalf("unexpected capability defaults %v", cfg.Capabilities)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
[simulator]
addr = ":9000"
db_path = "/tmp/sim.db"

[capabilities]
tokens_per_task = 250
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulator.Addr != ":9000" || cfg.Simulator.DBPath != "/tmp/sim.db" {
		t.Fatalf("unexpected simulator config %+v", cfg.Simulator)
	}
	// Untouched fields keep their defaults.
	if cfg.Simulator.BaselineErrorRate != 0.1 {
		t.Fatalf("expected default baseline error rate, got %g", cfg.Simulator.BaselineErrorRate)
	}
	if cfg.Capabilities[domain.CapTokensPerTask] != 250 {
		t.Fatalf("unexpected capabilities %v", cfg.Capabilities)
	}
	if cfg.Path != path {
		t.Fatalf("expected resolved path %q, got %q", path, cfg.Path)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("simulator = not-toml"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadTildeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, "conf")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[simulator]\naddr = \":7777\"\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load("~/conf/config.toml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulator.Addr != ":7777" {
		t.Fatalf("unexpected addr %q", cfg.Simulator.Addr)
	}
}

func TestLoadDefaultPathMissingFallsBack(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Simulator.Addr != Default().Simulator.Addr {
		t.Fatalf("expected built-in defaults, got %+v", cfg.Simulator)
	}
}
