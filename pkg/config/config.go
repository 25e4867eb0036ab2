// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration defaults
const (
	DefaultVersion          = "1.0"
	DefaultModulesDir       = "./modules"
	DefaultDescriptorHeader = "Component-Descriptors"
	DefaultStateDir         = ".dmruntime/state"
	DefaultLogLevel         = "info"
	DefaultParallelism      = 4
	DefaultSettlingDelay    = 250
)

// DefaultConfigFiles are probed in order when no config path is given
var DefaultConfigFiles = []string{
	"dmruntime.yaml",
	"dmruntime.yml",
	"dmruntime.json",
}

// RuntimeConfig is the runtime configuration
type RuntimeConfig struct {
	Version          string              `json:"version" yaml:"version"`
	ModulesDir       string              `json:"modulesDir" yaml:"modulesDir"`
	DescriptorHeader string              `json:"descriptorHeader" yaml:"descriptorHeader"`
	StateDir         string              `json:"stateDir" yaml:"stateDir"`
	Logging          LoggingConfig       `json:"logging" yaml:"logging"`
	Activation       ActivationConfig    `json:"activation" yaml:"activation"`
	Watch            WatchConfig         `json:"watch" yaml:"watch"`
	Notifications    NotificationsConfig `json:"notifications" yaml:"notifications"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// ActivationConfig configures module activation
type ActivationConfig struct {
	Parallelism int `json:"parallelism" yaml:"parallelism"`
}

// WatchConfig configures module directory watching
type WatchConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	SettlingDelay int  `json:"settlingDelay" yaml:"settlingDelay"` // milliseconds
}

// NotificationsConfig configures desktop notifications
type NotificationsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// SettlingDelayDuration returns the settling delay as a duration
func (w WatchConfig) SettlingDelayDuration() time.Duration {
	return time.Duration(w.SettlingDelay) * time.Millisecond
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads configuration from a file. Keys missing from the file
// keep their default values.
func (m *Manager) LoadConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := m.GetDefaultConfig()

	// Try JSON first
	if err := json.Unmarshal(data, cfg); err == nil {
		return m.validateConfig(cfg)
	}

	cfg = m.GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return m.validateConfig(cfg)
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// FindConfig returns the first default config file present in dir
func (m *Manager) FindConfig(dir string) (string, bool) {
	for _, name := range DefaultConfigFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// SaveConfig writes cfg as YAML or JSON depending on the file extension
func (m *Manager) SaveConfig(path string, cfg *RuntimeConfig) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(config *RuntimeConfig) error {
	if config.Version != DefaultVersion {
		return fmt.Errorf("unsupported config version: %s", config.Version)
	}
	if strings.TrimSpace(config.ModulesDir) == "" {
		return fmt.Errorf("modulesDir must not be empty")
	}
	if strings.TrimSpace(config.DescriptorHeader) == "" {
		return fmt.Errorf("descriptorHeader must not be empty")
	}
	if strings.ContainsAny(config.DescriptorHeader, ":\r\n") {
		return fmt.Errorf("invalid descriptorHeader: %q", config.DescriptorHeader)
	}
	if config.Activation.Parallelism < 1 {
		return fmt.Errorf("activation.parallelism must be at least 1, got %d", config.Activation.Parallelism)
	}
	if config.Watch.SettlingDelay < 0 {
		return fmt.Errorf("watch.settlingDelay must not be negative, got %d", config.Watch.SettlingDelay)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDefaultConfig returns the default configuration
func (m *Manager) GetDefaultConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Version:          DefaultVersion,
		ModulesDir:       DefaultModulesDir,
		DescriptorHeader: DefaultDescriptorHeader,
		StateDir:         DefaultStateDir,
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
		Activation: ActivationConfig{
			Parallelism: DefaultParallelism,
		},
		Watch: WatchConfig{
			Enabled:       true,
			SettlingDelay: DefaultSettlingDelay,
		},
		Notifications: NotificationsConfig{
			Enabled: false,
		},
	}
}

// Private methods

func (m *Manager) validateConfig(cfg *RuntimeConfig) (*RuntimeConfig, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
