// Package host drives the component runtime from the directory-backed module
// system: it activates the modules found at startup, follows module
// directories appearing and disappearing, and shuts everything down.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmruntime/dmruntime/internal/engine"
	"github.com/dmruntime/dmruntime/internal/state"
	"github.com/dmruntime/dmruntime/internal/watcher"
	"github.com/dmruntime/dmruntime/pkg/config"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/modsys"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// ErrUnknownModule is returned for symbolic names no primary module carries
var ErrUnknownModule = errors.New("unknown module")

// Host owns the runtime and the module system feeding it
type Host struct {
	config  *config.RuntimeConfig
	logger  logger.Logger
	modules *modsys.System
	states  *state.StateManager
	runtime *engine.Runtime
	watcher *watcher.Watcher

	// serializes reactions to directory events
	mu      sync.Mutex
	started bool
}

// New creates a host with the default dependencies for cfg
func New(cfg *config.RuntimeConfig, log logger.Logger) (*Host, error) {
	return NewWithOverrides(cfg, log, interfaces.RuntimeDependencies{})
}

// NewWithOverrides creates a host whose framework, builders, notifier or
// state recorder are replaced by the non-nil overrides. The module system is
// always the directory-backed one.
func NewWithOverrides(cfg *config.RuntimeConfig, log logger.Logger, overrides interfaces.RuntimeDependencies) (*Host, error) {
	if cfg == nil {
		cfg = config.NewManager().GetDefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	factory := engine.NewDependencyFactory(cfg, log)
	modules, err := factory.ModuleSystem()
	if err != nil {
		return nil, err
	}

	overrides.ModuleSystem = modules
	deps, err := factory.CreateWithOverrides(overrides)
	if err != nil {
		return nil, err
	}

	return &Host{
		config:  cfg,
		logger:  log,
		modules: modules,
		states:  factory.StateManager(),
		runtime: factory.CreateRuntime(deps),
	}, nil
}

// Runtime returns the runtime driven by the host
func (h *Host) Runtime() *engine.Runtime {
	return h.runtime
}

// Modules returns the module system
func (h *Host) Modules() *modsys.System {
	return h.modules
}

// States returns the state manager
func (h *Host) States() *state.StateManager {
	return h.states
}

// Start scans the modules directory, activates every primary module and,
// when enabled, starts watching the directory
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return fmt.Errorf("host already started")
	}

	if _, err := h.modules.Scan(); err != nil {
		return err
	}

	h.runtime.Start()

	primaries := h.modules.Modules()
	mods := make([]types.Module, 0, len(primaries))
	for _, m := range primaries {
		mods = append(mods, m)
	}
	if err := h.runtime.ActivateAll(ctx, mods); err != nil {
		return fmt.Errorf("failed to activate modules: %w", err)
	}

	h.states.StartHeartbeat(ctx)

	if h.config.Watch.Enabled {
		w, err := watcher.New(h.modules.Root(), h.logger)
		if err != nil {
			return err
		}
		w.SetSettlingDelay(h.config.Watch.SettlingDelayDuration())
		if err := w.Start(func(ev watcher.ModuleEvent) {
			h.HandleEvent(context.Background(), ev)
		}); err != nil {
			_ = w.Close()
			return err
		}
		h.watcher = w
	}

	h.started = true
	h.logger.Success(fmt.Sprintf("Activated %d module(s)", len(mods)))
	return nil
}

// Stop stops watching and shuts the runtime down
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	w := h.watcher
	h.watcher = nil
	h.started = false
	h.mu.Unlock()

	if w != nil {
		if err := w.Close(); err != nil {
			h.logger.Warn("Failed to close watcher", logger.WithError(err))
		}
	}

	// waits for an event reaction that is still running
	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.runtime.Shutdown(ctx)
	if cleanupErr := h.states.Cleanup(); cleanupErr != nil {
		h.logger.Warn("Failed to clean up state", logger.WithError(cleanupErr))
	}
	return err
}

// Run starts the host and blocks until ctx is done, then stops it
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		if stopErr := h.Stop(context.Background()); stopErr != nil {
			h.logger.Warn("Failed to stop after startup failure", logger.WithError(stopErr))
		}
		return err
	}
	<-ctx.Done()
	return h.Stop(context.Background())
}

// HandleEvent reacts to a settled module directory event. A changed module is
// deactivated and activated again; fragments reload their host.
func (h *Host) HandleEvent(ctx context.Context, ev watcher.ModuleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.runtime.IsRunning() {
		return
	}

	log := h.logger.WithModule(ev.Dir)

	previous, known := h.modules.Remove(ev.Dir)
	if known {
		h.deactivate(ctx, log, previous)
	}

	var current *modsys.Module
	if ev.Type == watcher.ModuleChanged {
		mod, err := h.modules.Add(ev.Dir)
		switch {
		case err == nil:
			current = mod
		case errors.Is(err, modsys.ErrNoManifest):
			log.Debug("Directory has no manifest yet")
		default:
			log.Warn("Failed to load module", logger.WithError(err))
		}
	}

	if current != nil {
		h.activate(ctx, log, current)
	}

	// a fragment host loses or gains resources
	hosts := make(map[string]bool)
	for _, m := range []*modsys.Module{previous, current} {
		if m != nil && types.IsFragment(m) {
			hosts[m.FragmentHost()] = true
		}
	}
	for name := range hosts {
		if host, ok := h.modules.Lookup(name); ok {
			log.Info(fmt.Sprintf("Reloading fragment host %s", name))
			h.deactivate(ctx, log, host)
			h.activate(ctx, log, host)
		}
	}
}

// Validate parses every descriptor of every primary module into throwaway
// scopes. It does not need a started host.
func (h *Host) Validate(ctx context.Context) ([]*engine.Inspection, error) {
	if _, err := h.modules.Scan(); err != nil {
		return nil, err
	}

	var results []*engine.Inspection
	for _, mod := range h.modules.Modules() {
		result, err := h.runtime.Inspect(ctx, mod)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Inspect parses the descriptors of the primary module with symbolicName
// into a throwaway scope
func (h *Host) Inspect(ctx context.Context, symbolicName string) (*engine.Inspection, error) {
	if _, err := h.modules.Scan(); err != nil {
		return nil, err
	}

	mod, ok := h.modules.Lookup(symbolicName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, symbolicName)
	}
	return h.runtime.Inspect(ctx, mod)
}

func (h *Host) activate(ctx context.Context, log logger.Logger, mod *modsys.Module) {
	if types.IsFragment(mod) {
		return
	}
	if err := h.runtime.OnModuleActivated(ctx, mod); err != nil {
		log.Error("Failed to activate module", logger.WithField("module", mod.SymbolicName()), logger.WithError(err))
	}
}

func (h *Host) deactivate(ctx context.Context, log logger.Logger, mod *modsys.Module) {
	if err := h.runtime.OnModuleDeactivated(ctx, mod); err != nil {
		log.Error("Failed to deactivate module", logger.WithField("module", mod.SymbolicName()), logger.WithError(err))
	}
}
