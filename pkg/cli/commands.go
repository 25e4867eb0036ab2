package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmruntime/dmruntime/internal/host"
	"github.com/dmruntime/dmruntime/internal/state"
	"github.com/dmruntime/dmruntime/pkg/config"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/modsys"
	"github.com/dmruntime/dmruntime/pkg/process"
	"github.com/dmruntime/dmruntime/pkg/types"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Activate every module and keep the runtime running",
		Long: `Scans the modules directory, activates every primary module and keeps
running until interrupted. With --watch, module directories that appear, change
or disappear are activated, reloaded or deactivated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRuntime(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.Bool("watch", true, "watch the modules directory for changes")
	flags.Int("parallelism", config.DefaultParallelism, "maximum number of modules activated concurrently")
	flags.Bool("notify", false, "send desktop notifications for descriptor failures")

	_ = c.viper.BindPFlag("watch.enabled", flags.Lookup("watch"))
	_ = c.viper.BindPFlag("activation.parallelism", flags.Lookup("parallelism"))
	_ = c.viper.BindPFlag("notifications.enabled", flags.Lookup("notify"))

	return cmd
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse every descriptor without activating anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context())
		},
	}
}

func (c *CLI) newInspectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect <symbolic-name>",
		Short: "Print the component definitions a module would register",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the modules found in the modules directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList()
		},
	}
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recorded state of every module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus()
		},
	}
}

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration")
	return cmd
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "dmruntime v%s\n", c.config.Version)
		},
	}
}

// Implementation functions

func (c *CLI) runRuntime(ctx context.Context) error {
	h, err := host.New(c.runtime, c.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pm := process.NewManager(c.logger)
	pm.RegisterShutdownHandler(cancel)
	pm.Start(ctx)
	defer pm.Stop()

	c.logger.Info("Starting component runtime",
		logger.WithField("modules", c.runtime.ModulesDir),
		logger.WithField("watch", c.runtime.Watch.Enabled))

	return h.Run(ctx)
}

func (c *CLI) runValidate(ctx context.Context) error {
	h, err := host.New(c.runtime, c.logger)
	if err != nil {
		return err
	}

	results, err := h.Validate(ctx)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		c.printWarning(fmt.Sprintf("No modules found in %s", c.runtime.ModulesDir))
		return nil
	}

	failed := 0
	for _, result := range results {
		name := result.Module.SymbolicName()
		if len(result.Errors) == 0 {
			fmt.Fprintf(c.output, "%s %s: %d definition(s) from %d descriptor(s)\n",
				color.GreenString("✔"), name, len(result.Definitions), len(result.Descriptors))
			continue
		}

		failed++
		fmt.Fprintf(c.output, "%s %s: %d error(s)\n", color.RedString("✖"), name, len(result.Errors))
		for _, err := range result.Errors {
			fmt.Fprintf(c.output, "    %s\n", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d module(s) failed validation", failed, len(results))
	}
	c.printSuccess(fmt.Sprintf("All %d module(s) are valid", len(results)))
	return nil
}

// inspectReport is the printed form of a module inspection
type inspectReport struct {
	Module      string                       `json:"module" yaml:"module"`
	Version     string                       `json:"version,omitempty" yaml:"version,omitempty"`
	Descriptors []string                     `json:"descriptors" yaml:"descriptors"`
	Definitions []*types.ComponentDefinition `json:"definitions" yaml:"definitions"`
	Errors      []string                     `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (c *CLI) runInspect(ctx context.Context, name, format string) error {
	h, err := host.New(c.runtime, c.logger)
	if err != nil {
		return err
	}

	inspection, err := h.Inspect(ctx, name)
	if err != nil {
		return err
	}

	report := inspectReport{
		Module:      inspection.Module.SymbolicName(),
		Version:     inspection.Module.Version(),
		Descriptors: inspection.Descriptors,
		Definitions: inspection.Definitions,
	}
	for _, err := range inspection.Errors {
		report.Errors = append(report.Errors, err.Error())
	}

	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode inspection: %w", err)
		}
		fmt.Fprintln(c.output, string(data))
	case "yaml", "":
		enc := yaml.NewEncoder(c.output)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode inspection: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode inspection: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
	return nil
}

func (c *CLI) runList() error {
	modules, err := modsys.New(c.runtime.ModulesDir, c.logger)
	if err != nil {
		return err
	}
	all, err := modules.Scan()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		c.printWarning(fmt.Sprintf("No modules found in %s", c.runtime.ModulesDir))
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tVERSION\tHOST\tDESCRIPTORS\tDIRECTORY")
	fmt.Fprintln(w, "------\t-------\t----\t-----------\t---------")

	for _, mod := range all {
		hostName := "-"
		if types.IsFragment(mod) {
			hostName = mod.FragmentHost()
		}
		descriptors, ok := modules.Header(mod, c.runtime.DescriptorHeader)
		if !ok || descriptors == "" {
			descriptors = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			mod.SymbolicName(),
			valueOrDash(mod.Version()),
			hostName,
			descriptors,
			filepath.Base(mod.Dir()),
		)
	}

	return w.Flush()
}

func (c *CLI) runStatus() error {
	sm := state.NewStateManager(c.runtime.StateDir, c.logger)

	states, err := sm.DiscoverStates()
	if err != nil {
		return fmt.Errorf("failed to discover states: %w", err)
	}

	if len(states) == 0 {
		c.printInfo("No module state recorded yet")
		return nil
	}

	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tVERSION\tSTATUS\tCOMPONENTS\tACTIVATIONS\tFAILURES\tLAST CHANGE")
	fmt.Fprintln(w, "------\t-------\t------\t----------\t-----------\t--------\t-----------")

	for _, name := range names {
		st := states[name]

		status := string(st.Status)
		if st.Status == types.ModuleStatusActive && !st.IsLive() {
			status = "stale"
		}

		statusColor := color.WhiteString(status)
		switch status {
		case string(types.ModuleStatusActive):
			statusColor = color.GreenString(status)
		case "stale":
			statusColor = color.YellowString(status)
		}

		lastChange := "-"
		if !st.LastChange.IsZero() {
			lastChange = st.LastChange.Format(time.DateTime)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			st.Module,
			valueOrDash(st.Version),
			statusColor,
			st.Components,
			st.ActivationCount,
			st.FailureCount,
			lastChange,
		)
	}

	return w.Flush()
}

func (c *CLI) runInit(force bool) error {
	path := c.config.ConfigFile
	if path == "" {
		path = config.DefaultConfigFiles[0]
	}

	if fileExists(path) && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	mgr := config.NewManager()
	cfg := mgr.GetDefaultConfig()
	if c.config.ModulesDir != "" {
		cfg.ModulesDir = c.config.ModulesDir
	}
	if err := mgr.SaveConfig(path, cfg); err != nil {
		return err
	}

	c.printSuccess(fmt.Sprintf("Wrote %s", path))
	return nil
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
