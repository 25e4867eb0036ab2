package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmruntime/dmruntime/internal/state"
	"github.com/dmruntime/dmruntime/pkg/config"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/mocks"
	"github.com/dmruntime/dmruntime/pkg/modsys"
	"github.com/dmruntime/dmruntime/pkg/notifier"
	"github.com/dmruntime/dmruntime/pkg/types"
)

func testConfig(t *testing.T) *config.RuntimeConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.NewManager().GetDefaultConfig()
	cfg.ModulesDir = filepath.Join(root, "modules")
	cfg.StateDir = filepath.Join(root, "state")
	require.NoError(t, os.MkdirAll(cfg.ModulesDir, 0755))
	return cfg
}

// TestDependencyFactory tests the dependency factory
func TestDependencyFactory(t *testing.T) {
	tests := []struct {
		name          string
		notifications bool
	}{
		{name: "notifications disabled", notifications: false},
		{name: "notifications enabled", notifications: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Notifications.Enabled = tt.notifications
			log := logger.CreateLoggerWithOutput("", "debug", nil)
			factory := NewDependencyFactory(cfg, log)

			deps, err := factory.CreateDefaults()
			require.NoError(t, err)

			assert.IsType(t, &modsys.System{}, deps.ModuleSystem)
			assert.NotNil(t, deps.Framework)
			assert.NotNil(t, deps.Builders)
			assert.Len(t, deps.Builders.Kinds(), len(types.KnownEntryKinds()))
			assert.IsType(t, &state.StateManager{}, deps.StateRecorder)

			if tt.notifications {
				assert.IsType(t, &notifier.RuntimeNotifier{}, deps.Notifier)
			} else {
				assert.Nil(t, deps.Notifier)
			}

			// Shared instances are created once
			modules, err := factory.ModuleSystem()
			require.NoError(t, err)
			assert.Same(t, modules, deps.ModuleSystem)
			assert.Same(t, factory.StateManager(), deps.StateRecorder)
		})
	}
}

func TestDependencyFactory_CreateWithOverrides(t *testing.T) {
	factory := NewDependencyFactory(testConfig(t), nil)

	modules := mocks.NewMockModuleSystem()
	fw := mocks.NewMockFramework()
	recorder := mocks.NewMockStateRecorder()
	notify := mocks.NewMockNotifier()

	deps, err := factory.CreateWithOverrides(interfaces.RuntimeDependencies{
		ModuleSystem:  modules,
		Framework:     fw,
		StateRecorder: recorder,
		Notifier:      notify,
	})
	require.NoError(t, err)

	assert.Same(t, modules, deps.ModuleSystem)
	assert.Same(t, fw, deps.Framework)
	assert.Same(t, recorder, deps.StateRecorder)
	assert.Same(t, notify, deps.Notifier)
	assert.NotNil(t, deps.Builders, "builders keep their default")
}

func TestDependencyFactory_CreateRuntime(t *testing.T) {
	cfg := testConfig(t)
	cfg.DescriptorHeader = "X-Components"
	cfg.Activation.Parallelism = 7

	dir := filepath.Join(cfg.ModulesDir, "greeter")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dm"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, modsys.ManifestFile), []byte(
		"symbolicName: com.example.greeter\nversion: 1.0.0\nheaders:\n  X-Components: dm/c.txt\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dm", "c.txt"), []byte("Component\nimpl=com.example.Greeter\n"), 0644))

	factory := NewDependencyFactory(cfg, nil)
	deps, err := factory.CreateDefaults()
	require.NoError(t, err)
	r := factory.CreateRuntime(deps)
	assert.Equal(t, 7, r.parallelism)
	assert.Equal(t, "X-Components", r.locator.Header())

	modules, err := factory.ModuleSystem()
	require.NoError(t, err)
	scanned, err := modules.Scan()
	require.NoError(t, err)
	require.Len(t, scanned, 1)

	ctx := context.Background()
	require.NoError(t, r.OnModuleActivated(ctx, scanned[0]))
	scope, ok := r.Scope(scanned[0])
	require.True(t, ok)
	require.Len(t, scope.Components(), 1)
	assert.Equal(t, "com.example.Greeter", scope.Components()[0].Definition().Impl)

	st, err := factory.StateManager().ReadState("com.example.greeter")
	require.NoError(t, err)
	assert.Equal(t, types.ModuleStatusActive, st.Status)

	require.NoError(t, r.Shutdown(ctx))
	st, err = factory.StateManager().ReadState("com.example.greeter")
	require.NoError(t, err)
	assert.Equal(t, types.ModuleStatusInactive, st.Status)
}
