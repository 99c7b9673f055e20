package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Output.Dir != "Headers" {
		t.Errorf("expected Output.Dir=Headers, got %s", cfg.Output.Dir)
	}
	if cfg.Generate.MissingLog != "missing_source.txt" {
		t.Errorf("expected MissingLog=missing_source.txt, got %s", cfg.Generate.MissingLog)
	}
	if cfg.Archives.Enabled {
		t.Error("expected archive scanning to default off")
	}
	if cfg.Decompiler.Enabled {
		t.Error("expected decompilation to default off")
	}
	if cfg.Decompiler.TimeoutSeconds != 30 {
		t.Errorf("expected TimeoutSeconds=30, got %d", cfg.Decompiler.TimeoutSeconds)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected Level=info, got %s", cfg.Logging.Level)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "phg.yaml")

	content := `
scan:
  names: ["dlc", "quest"]
archives:
  enabled: true
decompiler:
  enabled: true
  path: /opt/champollion
generate:
  workers: 4
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Scan.Names) != 2 || cfg.Scan.Names[0] != "dlc" {
		t.Errorf("expected names [dlc quest], got %v", cfg.Scan.Names)
	}
	if !cfg.Archives.Enabled {
		t.Error("expected archives to be enabled")
	}
	if cfg.Decompiler.Path != "/opt/champollion" {
		t.Errorf("expected decompiler path /opt/champollion, got %s", cfg.Decompiler.Path)
	}
	if cfg.Generate.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Generate.Workers)
	}
	// Untouched sections keep their defaults.
	if cfg.Output.Dir != "Headers" {
		t.Errorf("expected Output.Dir=Headers, got %s", cfg.Output.Dir)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "phg.yaml")

	content := `
output:
  dir: Stubs
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Output.Dir != "Stubs" {
		t.Errorf("expected Output.Dir=Stubs, got %s", cfg.Output.Dir)
	}
}

func TestLoadFromDirFallback(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".phg"), 0755); err != nil {
		t.Fatal(err)
	}

	content := `
generate:
  missing_log: unresolved.txt
`
	configPath := filepath.Join(tmpDir, ".phg", "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generate.MissingLog != "unresolved.txt" {
		t.Errorf("expected MissingLog=unresolved.txt, got %s", cfg.Generate.MissingLog)
	}
}

func TestManifestPath(t *testing.T) {
	path := ManifestPath("/games/skyrim/Data")
	expected := filepath.Join("/games/skyrim/Data", ".phg", "manifest.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
