package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the tunables read from planline.yml, with every field
// resolved to a usable value.
type Config struct {
	DefaultDependencyType string
	DefaultLag            int
	SnapshotCache         bool
	MaxProjectTasks       int
	ReadTimeout           time.Duration
}

// fileConfig mirrors the on-disk YAML layout.
type fileConfig struct {
	Scheduling struct {
		DefaultDependencyType string `yaml:"default_dependency_type"`
		DefaultLag            *int   `yaml:"default_lag"`
	} `yaml:"scheduling"`
	Snapshot struct {
		Cache       *bool  `yaml:"cache"`
		ReadTimeout string `yaml:"read_timeout"`
	} `yaml:"snapshot"`
	Limits struct {
		MaxProjectTasks *int `yaml:"max_project_tasks"`
	} `yaml:"limits"`
}

// Default returns the configuration used when no planline.yml exists.
func Default() *Config {
	return &Config{
		DefaultDependencyType: "FS",
		DefaultLag:            0,
		SnapshotCache:         true,
		MaxProjectTasks:       1000,
		ReadTimeout:           5 * time.Second,
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "planline.yml")
}

// Load reads config from the workspace, falling back to defaults when
// the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Omitted
// fields keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg := Default()
	if fc.Scheduling.DefaultDependencyType != "" {
		cfg.DefaultDependencyType = fc.Scheduling.DefaultDependencyType
	}
	if fc.Scheduling.DefaultLag != nil {
		cfg.DefaultLag = *fc.Scheduling.DefaultLag
	}
	if fc.Snapshot.Cache != nil {
		cfg.SnapshotCache = *fc.Snapshot.Cache
	}
	if fc.Snapshot.ReadTimeout != "" {
		d, err := time.ParseDuration(fc.Snapshot.ReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot.read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if fc.Limits.MaxProjectTasks != nil {
		cfg.MaxProjectTasks = *fc.Limits.MaxProjectTasks
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the resolved config is usable.
func (c *Config) Validate() error {
	switch c.DefaultDependencyType {
	case "FS", "SS", "FF", "SF":
	default:
		return fmt.Errorf("scheduling.default_dependency_type must be one of FS, SS, FF, SF, got %q", c.DefaultDependencyType)
	}
	if c.MaxProjectTasks < 0 {
		return fmt.Errorf("limits.max_project_tasks must not be negative")
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("snapshot.read_timeout must not be negative")
	}
	return nil
}

// GenerateDefault returns the default config YAML, suitable for
// writing a fresh planline.yml.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `scheduling:
  # Dependency type used when none is given: FS, SS, FF or SF.
  default_dependency_type: FS
  # Lag in days applied when none is given. May be negative.
  default_lag: 0

snapshot:
  # Cache assembled snapshots until the next mutation.
  cache: true
  # Abort snapshot reads running longer than this.
  read_timeout: 5s

limits:
  # Reject task creation beyond this many tasks per project. 0 disables.
  max_project_tasks: 1000
`
