package host

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmruntime/dmruntime/internal/watcher"
	"github.com/dmruntime/dmruntime/pkg/config"
	"github.com/dmruntime/dmruntime/pkg/descriptor"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/mocks"
	"github.com/dmruntime/dmruntime/pkg/types"
)

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

func testConfig(t *testing.T, watch bool) *config.RuntimeConfig {
	t.Helper()
	cfg := config.NewManager().GetDefaultConfig()
	cfg.ModulesDir = filepath.Join(t.TempDir(), "modules")
	cfg.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.Watch.Enabled = watch
	cfg.Watch.SettlingDelay = 20
	require.NoError(t, os.MkdirAll(cfg.ModulesDir, 0755))
	return cfg
}

// writeModule creates a module directory whose single descriptor declares impls
func writeModule(t *testing.T, cfg *config.RuntimeConfig, dir, manifest string, impls ...string) string {
	t.Helper()
	path := filepath.Join(cfg.ModulesDir, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(path, "dm"), 0755))

	var text string
	for _, impl := range impls {
		text += "Component\nimpl=" + impl + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(path, "dm", "components.txt"), []byte(text), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(path, "MANIFEST.yaml"), []byte(manifest), 0644))
	return path
}

func primary(name string) string {
	return "symbolicName: " + name + "\nversion: 1.0.0\nheaders:\n  Component-Descriptors: dm/components.txt\n"
}

func fragment(name, host string) string {
	return "symbolicName: " + name + "\nfragmentHost: " + host + "\nheaders:\n  Component-Descriptors: dm/components.txt\n"
}

func scopeImpls(t *testing.T, h *Host, name string) []string {
	t.Helper()
	mod, ok := h.Modules().Lookup(name)
	if !ok {
		return nil
	}
	scope, ok := h.Runtime().Scope(mod)
	if !ok {
		return nil
	}
	var impls []string
	for _, c := range scope.Components() {
		impls = append(impls, c.Definition().Impl)
	}
	return impls
}

func TestStartActivatesModules(t *testing.T) {
	cfg := testConfig(t, false)
	writeModule(t, cfg, "greeter", primary("greeter"), "Greeter", "Formal")
	writeModule(t, cfg, "greeter-extra", fragment("greeter.extra", "greeter"), "Extra")
	writeModule(t, cfg, "clock", primary("clock"), "Clock")
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.ModulesDir, "not-a-module"), 0755))

	h, err := New(cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, h.Start(ctx))

	assert.True(t, h.Runtime().IsRunning())
	assert.Equal(t, []string{"Greeter", "Formal", "Extra"}, scopeImpls(t, h, "greeter"))
	assert.Equal(t, []string{"Clock"}, scopeImpls(t, h, "clock"))
	assert.Len(t, h.Runtime().ActiveModules(), 2)

	assert.Error(t, h.Start(ctx), "starting twice fails")

	st, err := h.States().ReadState("greeter")
	require.NoError(t, err)
	assert.Equal(t, types.ModuleStatusActive, st.Status)
	assert.Equal(t, 3, st.Components)

	require.NoError(t, h.Stop(ctx))
	assert.False(t, h.Runtime().IsRunning())
	assert.Empty(t, h.Runtime().ActiveModules())

	st, err = h.States().ReadState("greeter")
	require.NoError(t, err)
	assert.Equal(t, types.ModuleStatusInactive, st.Status)
	assert.Zero(t, st.ProcessID)
}

func TestStartWithoutModulesDirectory(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.ModulesDir = filepath.Join(t.TempDir(), "absent")

	h, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Error(t, h.Start(context.Background()))
}

func TestHandleEvent(t *testing.T) {
	cfg := testConfig(t, false)
	writeModule(t, cfg, "greeter", primary("greeter"), "Greeter")

	h, err := New(cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, h.Start(ctx))
	t.Cleanup(func() { _ = h.Stop(ctx) })

	t.Run("new module is activated", func(t *testing.T) {
		dir := writeModule(t, cfg, "clock", primary("clock"), "Clock")
		h.HandleEvent(ctx, watcher.ModuleEvent{Type: watcher.ModuleChanged, Dir: dir})
		assert.Equal(t, []string{"Clock"}, scopeImpls(t, h, "clock"))
	})

	t.Run("changed module is reloaded", func(t *testing.T) {
		dir := writeModule(t, cfg, "clock", primary("clock"), "Clock", "Alarm")
		h.HandleEvent(ctx, watcher.ModuleEvent{Type: watcher.ModuleChanged, Dir: dir})
		assert.Equal(t, []string{"Clock", "Alarm"}, scopeImpls(t, h, "clock"))
	})

	t.Run("fragment reloads its host", func(t *testing.T) {
		dir := writeModule(t, cfg, "greeter-extra", fragment("greeter.extra", "greeter"), "Extra")
		h.HandleEvent(ctx, watcher.ModuleEvent{Type: watcher.ModuleChanged, Dir: dir})
		assert.Equal(t, []string{"Greeter", "Extra"}, scopeImpls(t, h, "greeter"))

		require.NoError(t, os.RemoveAll(dir))
		h.HandleEvent(ctx, watcher.ModuleEvent{Type: watcher.ModuleRemoved, Dir: dir})
		assert.Equal(t, []string{"Greeter"}, scopeImpls(t, h, "greeter"))
	})

	t.Run("removed module is deactivated", func(t *testing.T) {
		dir := filepath.Join(cfg.ModulesDir, "clock")
		clock, ok := h.Modules().Lookup("clock")
		require.True(t, ok)

		require.NoError(t, os.RemoveAll(dir))
		h.HandleEvent(ctx, watcher.ModuleEvent{Type: watcher.ModuleRemoved, Dir: dir})

		_, ok = h.Runtime().Scope(clock)
		assert.False(t, ok)
		_, ok = h.Modules().Lookup("clock")
		assert.False(t, ok)
	})

	t.Run("directory without manifest is ignored", func(t *testing.T) {
		dir := filepath.Join(cfg.ModulesDir, "pending")
		require.NoError(t, os.MkdirAll(dir, 0755))
		h.HandleEvent(ctx, watcher.ModuleEvent{Type: watcher.ModuleChanged, Dir: dir})
		assert.Len(t, h.Runtime().ActiveModules(), 1)
	})
}

func TestHandleEventAfterStopIsIgnored(t *testing.T) {
	cfg := testConfig(t, false)
	h, err := New(cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, h.Start(ctx))
	require.NoError(t, h.Stop(ctx))

	dir := writeModule(t, cfg, "late", primary("late"), "Late")
	h.HandleEvent(ctx, watcher.ModuleEvent{Type: watcher.ModuleChanged, Dir: dir})
	assert.Empty(t, h.Runtime().ActiveModules())
}

func TestWatchActivatesNewModules(t *testing.T) {
	cfg := testConfig(t, true)

	h, err := New(cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, h.Start(ctx))
	t.Cleanup(func() { _ = h.Stop(ctx) })

	writeModule(t, cfg, "greeter", primary("greeter"), "Greeter")

	require.Eventually(t, func() bool {
		return len(scopeImpls(t, h, "greeter")) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, false)
	writeModule(t, cfg, "greeter", primary("greeter"), "Greeter")

	h, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(h.Runtime().ActiveModules()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, h.Runtime().ActiveModules())
}

func TestValidateAndInspect(t *testing.T) {
	cfg := testConfig(t, false)
	writeModule(t, cfg, "greeter", primary("greeter"), "Greeter")
	broken := writeModule(t, cfg, "broken", primary("broken"), "Fine")
	require.NoError(t, os.WriteFile(filepath.Join(broken, "dm", "components.txt"),
		[]byte("Component\nimpl=Fine\nService\nimpl=Bad\n"), 0644))

	var logs syncBuffer
	notifier := mocks.NewMockNotifier()
	h, err := NewWithOverrides(cfg, logger.CreateLoggerWithOutput("", "info", &logs),
		interfaces.RuntimeDependencies{Notifier: notifier})
	require.NoError(t, err)
	ctx := context.Background()

	results, err := h.Validate(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "broken", results[0].Module.SymbolicName())
	assert.True(t, results[0].HasError(descriptor.ErrDescriptorFormat))
	assert.Len(t, results[0].Definitions, 1)
	assert.Empty(t, results[1].Errors)

	inspection, err := h.Inspect(ctx, "greeter")
	require.NoError(t, err)
	require.Len(t, inspection.Definitions, 1)
	assert.Equal(t, "Greeter", inspection.Definitions[0].Impl)

	_, err = h.Inspect(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUnknownModule)

	// inspection never activates anything
	assert.Empty(t, h.Runtime().ActiveModules())
	assert.Empty(t, notifier.Activations())
}
