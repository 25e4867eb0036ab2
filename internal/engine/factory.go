package engine

import (
	"fmt"
	"sync"

	"github.com/dmruntime/dmruntime/internal/state"
	"github.com/dmruntime/dmruntime/pkg/builders"
	"github.com/dmruntime/dmruntime/pkg/config"
	"github.com/dmruntime/dmruntime/pkg/framework"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/modsys"
	"github.com/dmruntime/dmruntime/pkg/notifier"
)

// DependencyFactory creates default implementations of the runtime
// dependencies from a configuration.
type DependencyFactory struct {
	config *config.RuntimeConfig
	logger logger.Logger

	modules *modsys.System
	states  *state.StateManager
	mu      sync.Mutex
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(cfg *config.RuntimeConfig, log logger.Logger) *DependencyFactory {
	if cfg == nil {
		cfg = config.NewManager().GetDefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &DependencyFactory{
		config: cfg,
		logger: log,
	}
}

// CreateDefaults creates all default dependencies
func (f *DependencyFactory) CreateDefaults() (interfaces.RuntimeDependencies, error) {
	modules, err := f.ModuleSystem()
	if err != nil {
		return interfaces.RuntimeDependencies{}, err
	}

	deps := interfaces.RuntimeDependencies{
		ModuleSystem:  modules,
		Framework:     framework.New(f.logger),
		Builders:      builders.DefaultRegistry(f.logger),
		StateRecorder: f.StateManager(),
	}

	if f.config.Notifications.Enabled {
		deps.Notifier = f.createNotifier()
	}

	return deps, nil
}

// CreateWithOverrides creates dependencies with specific overrides.
// Non-nil override values replace the defaults.
func (f *DependencyFactory) CreateWithOverrides(overrides interfaces.RuntimeDependencies) (interfaces.RuntimeDependencies, error) {
	var deps interfaces.RuntimeDependencies
	if overrides.ModuleSystem == nil {
		defaults, err := f.CreateDefaults()
		if err != nil {
			return interfaces.RuntimeDependencies{}, err
		}
		deps = defaults
	} else {
		deps = interfaces.RuntimeDependencies{
			ModuleSystem:  overrides.ModuleSystem,
			Framework:     framework.New(f.logger),
			Builders:      builders.DefaultRegistry(f.logger),
			StateRecorder: f.StateManager(),
		}
		if f.config.Notifications.Enabled {
			deps.Notifier = f.createNotifier()
		}
	}

	if overrides.Framework != nil {
		deps.Framework = overrides.Framework
	}
	if overrides.Builders != nil {
		deps.Builders = overrides.Builders
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.StateRecorder != nil {
		deps.StateRecorder = overrides.StateRecorder
	}

	return deps, nil
}

// CreateRuntime creates a runtime over deps tuned by the configuration
func (f *DependencyFactory) CreateRuntime(deps interfaces.RuntimeDependencies) *Runtime {
	return New(deps, Options{
		DescriptorHeader: f.config.DescriptorHeader,
		Parallelism:      f.config.Activation.Parallelism,
	}, f.logger)
}

// ModuleSystem returns the directory-backed module system, creating it once
func (f *DependencyFactory) ModuleSystem() (*modsys.System, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.modules == nil {
		modules, err := modsys.New(f.config.ModulesDir, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create module system: %w", err)
		}
		f.modules = modules
	}
	return f.modules, nil
}

// StateManager returns the state manager, creating it once
func (f *DependencyFactory) StateManager() *state.StateManager {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.states == nil {
		f.states = state.NewStateManager(f.config.StateDir, f.logger)
	}
	return f.states
}

// Individual factory methods

func (f *DependencyFactory) createNotifier() interfaces.Notifier {
	return notifier.New(notifier.Config{
		Enabled:      true,
		FailureSound: true,
	}, f.logger)
}
