package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmruntime/dmruntime/internal/host"
	"github.com/dmruntime/dmruntime/internal/state"
	"github.com/dmruntime/dmruntime/pkg/config"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// project is a temporary directory with a config file and a modules tree
type project struct {
	dir        string
	configPath string
}

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "modules"), 0755))

	cfg := "version: \"1.0\"\nmodulesDir: modules\nstateDir: state\nwatch:\n  enabled: false\n  settlingDelay: 20\n"
	path := filepath.Join(dir, "dmruntime.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return &project{dir: dir, configPath: path}
}

func (p *project) module(t *testing.T, dir, manifest, descriptor string) {
	t.Helper()
	path := filepath.Join(p.dir, "modules", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(path, "dm"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "MANIFEST.yaml"), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(path, "dm", "components.txt"), []byte(descriptor), 0644))
}

func manifest(name, fragmentHost string) string {
	out := "symbolicName: " + name + "\nversion: 1.0.0\n"
	if fragmentHost != "" {
		out += "fragmentHost: " + fragmentHost + "\n"
	}
	return out + "headers:\n  Component-Descriptors: dm/components.txt\n"
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr syncBuffer
	cli := NewCLIWithOutput(nil, &stdout, &stderr)
	err := cli.Execute(args)
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	cfg := NewConfig()
	cfg.Version = "1.2.3"

	var stdout, stderr syncBuffer
	cli := NewCLIWithOutput(cfg, &stdout, &stderr)
	require.NoError(t, cli.Execute([]string{"version"}))
	assert.Equal(t, "dmruntime v1.2.3\n", stdout.String())
}

func TestVersionIgnoresBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"9\"\n"), 0644))

	stdout, _, err := execute(t, "--config", path, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dmruntime v")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmruntime.yaml")

	stdout, _, err := execute(t, "--config", path, "--modules", "bundles", "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+path)

	cfg, err := config.NewManager().LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bundles", cfg.ModulesDir)
	assert.Equal(t, config.DefaultDescriptorHeader, cfg.DescriptorHeader)

	_, _, err = execute(t, "--config", path, "init")
	assert.ErrorContains(t, err, "already exists")

	_, _, err = execute(t, "--config", path, "init", "--force")
	assert.NoError(t, err)
}

func TestInitWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmruntime.json")

	_, _, err := execute(t, "--config", path, "init")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, config.DefaultModulesDir, raw["modulesDir"])
}

func TestValidateCommand(t *testing.T) {
	p := newProject(t)
	p.module(t, "greeter", manifest("greeter", ""), "Component\nimpl=Greeter\nComponent\nimpl=Formal\n")
	p.module(t, "greeter-extra", manifest("greeter.extra", "greeter"), "Aspect\nimpl=Audit\nservice=Greeting\nranking=10\n")

	stdout, _, err := execute(t, "--config", p.configPath, "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✔ greeter: 3 definition(s) from 2 descriptor(s)")
	assert.Contains(t, stdout, "All 1 module(s) are valid")
}

func TestValidateCommandReportsFailures(t *testing.T) {
	p := newProject(t)
	p.module(t, "greeter", manifest("greeter", ""), "Component\nimpl=Greeter\n")
	p.module(t, "broken", manifest("broken", ""), "Component\nimpl=Fine\nWidget\nimpl=Bad\n")

	stdout, _, err := execute(t, "--config", p.configPath, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 module(s) failed validation")
	assert.Contains(t, stdout, "✖ broken: 1 error(s)")
	assert.Contains(t, stdout, "✔ greeter")
}

func TestValidateWithoutModules(t *testing.T) {
	p := newProject(t)

	stdout, _, err := execute(t, "--config", p.configPath, "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No modules found")
}

func TestInspectCommand(t *testing.T) {
	p := newProject(t)
	p.module(t, "greeter", manifest("greeter", ""),
		"Component\nimpl=Greeter\nprovide=Greeting\nproperty.lang=en\n")

	t.Run("yaml", func(t *testing.T) {
		stdout, _, err := execute(t, "--config", p.configPath, "inspect", "greeter")
		require.NoError(t, err)
		assert.Contains(t, stdout, "module: greeter")
		assert.Contains(t, stdout, "version: 1.0.0")
		assert.Contains(t, stdout, "impl: Greeter")
		assert.Contains(t, stdout, "lang: en")
	})

	t.Run("json", func(t *testing.T) {
		stdout, _, err := execute(t, "--config", p.configPath, "inspect", "greeter", "-o", "json")
		require.NoError(t, err)

		var report inspectReport
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		assert.Equal(t, "greeter", report.Module)
		require.Len(t, report.Definitions, 1)
		assert.Equal(t, "Greeter", report.Definitions[0].Impl)
		assert.Equal(t, []string{"Greeting"}, report.Definitions[0].Provides)
		assert.Empty(t, report.Errors)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := execute(t, "--config", p.configPath, "inspect", "greeter", "-o", "toml")
		assert.ErrorContains(t, err, "unsupported output format")
	})

	t.Run("unknown module", func(t *testing.T) {
		_, _, err := execute(t, "--config", p.configPath, "inspect", "nobody")
		assert.ErrorIs(t, err, host.ErrUnknownModule)
	})

	t.Run("missing argument", func(t *testing.T) {
		_, _, err := execute(t, "--config", p.configPath, "inspect")
		assert.Error(t, err)
	})
}

func TestListCommand(t *testing.T) {
	p := newProject(t)
	p.module(t, "greeter", manifest("greeter", ""), "Component\nimpl=Greeter\n")
	p.module(t, "greeter-extra", manifest("greeter.extra", "greeter"), "Component\nimpl=Extra\n")

	stdout, _, err := execute(t, "--config", p.configPath, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "MODULE"))
	assert.Contains(t, lines[2], "greeter ")
	assert.Contains(t, lines[2], "dm/components.txt")
	assert.Contains(t, lines[3], "greeter.extra")
	assert.Contains(t, lines[3], "greeter-extra")
}

func TestModulesFlagOverridesConfig(t *testing.T) {
	p := newProject(t)
	other := filepath.Join(t.TempDir(), "elsewhere")
	require.NoError(t, os.MkdirAll(filepath.Join(other, "clock", "dm"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(other, "clock", "MANIFEST.yaml"), []byte(manifest("clock", "")), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(other, "clock", "dm", "components.txt"), []byte("Component\nimpl=Clock\n"), 0644))

	stdout, _, err := execute(t, "--config", p.configPath, "--modules", other, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "clock")
}

func TestEnvironmentOverridesConfig(t *testing.T) {
	p := newProject(t)
	t.Setenv("DMRUNTIME_DESCRIPTORHEADER", "Other-Descriptors")
	p.module(t, "greeter", "symbolicName: greeter\nheaders:\n  Other-Descriptors: dm/components.txt\n", "Component\nimpl=Greeter\n")

	stdout, _, err := execute(t, "--config", p.configPath, "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✔ greeter: 1 definition(s) from 1 descriptor(s)")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dmruntime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1.0\"\nactivation:\n  parallelism: 0\n"), 0644))

	_, _, err := execute(t, "--config", path, "validate")
	assert.ErrorContains(t, err, "parallelism")

	_, _, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "validate")
	assert.ErrorContains(t, err, "failed to load config")
}

func TestStatusCommand(t *testing.T) {
	p := newProject(t)

	stdout, _, err := execute(t, "--config", p.configPath, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No module state recorded yet")

	sm := state.NewStateManager(filepath.Join(p.dir, "state"), nil)
	require.NoError(t, sm.RecordModule(interfaces.ModuleReport{
		Module:     "greeter",
		Version:    "1.0.0",
		Status:     types.ModuleStatusActive,
		Components: 2,
	}))

	stdout, _, err = execute(t, "--config", p.configPath, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "MODULE")
	assert.Contains(t, stdout, "greeter")
	assert.Contains(t, stdout, "active")
}

func TestRunCommand(t *testing.T) {
	p := newProject(t)
	p.module(t, "greeter", manifest("greeter", ""), "Component\nimpl=Greeter\nComponent\nimpl=Formal\n")

	var stdout, stderr syncBuffer
	cli := NewCLIWithOutput(nil, &stdout, &stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cli.ExecuteContext(ctx, []string{"--config", p.configPath, "run", "--watch=false"})
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stderr.String(), "Activated 1 module(s)")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	status, _, err := execute(t, "--config", p.configPath, "status")
	require.NoError(t, err)
	assert.Contains(t, status, "greeter")
	assert.Contains(t, status, "inactive")
}

func TestRunFailsWithoutModulesDirectory(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(p.dir, "modules")))

	_, _, err := execute(t, "--config", p.configPath, "run", "--watch=false")
	assert.ErrorContains(t, err, "failed to read modules directory")
}
