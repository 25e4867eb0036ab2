package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmruntime/dmruntime/pkg/config"
)

// envPrefix is prepended to every configuration key read from the environment
const envPrefix = "DMRUNTIME"

// skipConfigAnnotation marks commands that run without a runtime configuration
const skipConfigAnnotation = "dmruntime/skip-config"

// Config holds the command-line configuration
type Config struct {
	ConfigFile string
	ModulesDir string
	Verbosity  string
	LogFile    string
	Version    string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		Verbosity: config.DefaultLogLevel,
		Version:   "dev",
	}
}

// configPath returns the explicit config file or the first default file found
// in the working directory
func (c *Config) configPath() (string, bool) {
	if c.ConfigFile != "" {
		return c.ConfigFile, true
	}
	return config.NewManager().FindConfig(".")
}

// loadRuntimeConfig reads the runtime configuration and applies the flag and
// environment overrides. Relative paths from a config file are resolved
// against the directory holding it; overrides stay relative to the working
// directory.
func (c *CLI) loadRuntimeConfig() (*config.RuntimeConfig, error) {
	mgr := config.NewManager()
	cfg := mgr.GetDefaultConfig()

	if path, ok := c.config.configPath(); ok {
		loaded, err := mgr.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		cfg = loaded

		base := filepath.Dir(path)
		cfg.ModulesDir = resolvePath(base, cfg.ModulesDir)
		cfg.StateDir = resolvePath(base, cfg.StateDir)
		if cfg.Logging.File != "" {
			cfg.Logging.File = resolvePath(base, cfg.Logging.File)
		}
	}

	c.applyOverrides(cfg)

	if err := mgr.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *CLI) applyOverrides(cfg *config.RuntimeConfig) {
	v := c.viper

	if v.IsSet("modulesDir") {
		cfg.ModulesDir = v.GetString("modulesDir")
	}
	if v.IsSet("descriptorHeader") {
		cfg.DescriptorHeader = v.GetString("descriptorHeader")
	}
	if v.IsSet("stateDir") {
		cfg.StateDir = v.GetString("stateDir")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.file") {
		cfg.Logging.File = v.GetString("logging.file")
	}
	if v.IsSet("activation.parallelism") {
		cfg.Activation.Parallelism = v.GetInt("activation.parallelism")
	}
	if v.IsSet("watch.enabled") {
		cfg.Watch.Enabled = v.GetBool("watch.enabled")
	}
	if v.IsSet("watch.settlingDelay") {
		cfg.Watch.SettlingDelay = v.GetInt("watch.settlingDelay")
	}
	if v.IsSet("notifications.enabled") {
		cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	}
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
