// Package cli provides the command-line interface for dmruntime
package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmruntime/dmruntime/pkg/config"
	"github.com/dmruntime/dmruntime/pkg/logger"
)

// CLI holds the command tree together with its configuration and writers
type CLI struct {
	config   *Config
	viper    *viper.Viper
	rootCmd  *cobra.Command
	logger   logger.Logger
	console  *logger.ConsoleLogger
	runtime  *config.RuntimeConfig
	output   io.Writer
	errorOut io.Writer
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	cli := &CLI{
		config:   cfg,
		viper:    viper.New(),
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	cli.setupCommands()
	return cli
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	cli := NewCLI(cfg)
	cli.output = output
	cli.errorOut = errorOut
	cli.rootCmd.SetOut(output)
	cli.rootCmd.SetErr(errorOut)
	return cli
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.Execute()
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

// ExecuteWithVersion runs the CLI on the process arguments and exits with a
// non-zero status on failure
func ExecuteWithVersion(version string) {
	cfg := NewConfig()
	cfg.Version = version

	if err := NewCLI(cfg).Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "dmruntime",
		Short: "Descriptor-driven component runtime",
		Long: `dmruntime activates the components declared by module descriptors.

Every module directory carries a manifest whose Component-Descriptors header
lists descriptor files. When a module is activated its descriptors are parsed
and every entry is registered into the module's scope; deactivating the module
removes those components again.`,

		SilenceUsage:      true,
		PersistentPreRunE: c.initializeConfig,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("dmruntime v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newRunCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
	c.rootCmd.AddCommand(c.newInspectCmd())
	c.rootCmd.AddCommand(c.newListCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: dmruntime.yaml in the working directory)")
	flags.StringVar(&c.config.ModulesDir, "modules", "", "modules directory (overrides modulesDir)")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", c.config.Verbosity, "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.LogFile, "log-file", "", "also write logs to this file")

	_ = c.viper.BindPFlag("modulesDir", flags.Lookup("modules"))
	_ = c.viper.BindPFlag("logging.level", flags.Lookup("verbosity"))
	_ = c.viper.BindPFlag("logging.file", flags.Lookup("log-file"))
}

func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	c.viper.SetEnvPrefix(envPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.viper.AutomaticEnv()

	c.console = logger.NewConsoleLoggerWithOutput(c.output, c.errorOut)

	if cmd.Annotations[skipConfigAnnotation] == "true" {
		c.logger = c.createLogger(c.config.LogFile, c.config.Verbosity)
		return nil
	}

	cfg, err := c.loadRuntimeConfig()
	if err != nil {
		return err
	}
	c.runtime = cfg
	c.logger = c.createLogger(cfg.Logging.File, cfg.Logging.Level)

	if path, ok := c.config.configPath(); ok {
		c.logger.Debug("Using config file", logger.WithField("file", path))
	}
	return nil
}

func (c *CLI) createLogger(logFile, level string) logger.Logger {
	if c.errorOut == os.Stderr {
		return logger.CreateLogger(logFile, level)
	}
	return logger.CreateLoggerWithOutput(logFile, level, c.errorOut)
}

// Helper methods for structured output

func (c *CLI) printSuccess(message string) {
	c.console.Success(message)
}

func (c *CLI) printInfo(message string) {
	c.console.Info(message)
}

func (c *CLI) printWarning(message string) {
	c.console.Warn(message)
}
