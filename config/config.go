package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the header generator.
type Config struct {
	Scan       ScanConfig       `yaml:"scan"`
	Archives   ArchivesConfig   `yaml:"archives"`
	Decompiler DecompilerConfig `yaml:"decompiler"`
	Output     OutputConfig     `yaml:"output"`
	Generate   GenerateConfig   `yaml:"generate"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ScanConfig holds script discovery configuration.
type ScanConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Names    []string `yaml:"names"` // word-boundary patterns narrowing the scripts in scope
}

// ArchivesConfig holds BSA lookup configuration.
type ArchivesConfig struct {
	Enabled bool     `yaml:"enabled"`
	Files   []string `yaml:"files"` // explicit archive paths; empty means every .bsa in the data dir
}

// DecompilerConfig holds Champollion configuration.
type DecompilerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"` // binary or its directory; empty searches PATH and known install dirs
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// OutputConfig holds header emission configuration.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// GenerateConfig holds batch run configuration.
type GenerateConfig struct {
	Workers    int    `yaml:"workers"` // 0 means one per CPU
	MissingLog string `yaml:"missing_log"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // log lines are mirrored here when set
}

// DefaultConfig returns the default configuration. Archive scanning and
// decompilation are opt-in; both can be slow on large installs.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Includes: []string{"**/*"},
			Excludes: []string{},
		},
		Archives: ArchivesConfig{
			Enabled: false,
		},
		Decompiler: DecompilerConfig{
			Enabled:        false,
			TimeoutSeconds: 30,
		},
		Output: OutputConfig{
			Dir: "Headers",
		},
		Generate: GenerateConfig{
			Workers:    0,
			MissingLog: "missing_source.txt",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for phg.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try phg.yaml in the directory
	path := filepath.Join(dir, "phg.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .phg/config.yaml
	path = filepath.Join(dir, ".phg", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ManifestPath returns the path to the generation manifest database.
func ManifestPath(dataDir string) string {
	return filepath.Join(dataDir, ".phg", "manifest.db")
}

// EnsureStateDir ensures the .phg state directory exists.
func EnsureStateDir(dataDir string) error {
	stateDir := filepath.Join(dataDir, ".phg")
	return os.MkdirAll(stateDir, 0755)
}
