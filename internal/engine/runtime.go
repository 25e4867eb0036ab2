package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rtcontext "github.com/dmruntime/dmruntime/pkg/context"
	"github.com/dmruntime/dmruntime/pkg/descriptor"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/locator"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// DefaultParallelism bounds concurrent activations and teardowns
const DefaultParallelism = 4

// Options tunes a Runtime
type Options struct {
	// DescriptorHeader names the module header listing descriptor paths
	DescriptorHeader string
	// Parallelism bounds ActivateAll and Shutdown; values below 1 use DefaultParallelism
	Parallelism int
}

// Runtime drives component scopes from module lifecycle events.
//
// Every active module with at least one readable descriptor owns exactly one
// Scope. Descriptor, resource and builder failures are logged and absorbed;
// only invariant violations are returned to the caller.
type Runtime struct {
	modules     interfaces.ModuleSystem
	framework   interfaces.ComponentFramework
	locator     *locator.Locator
	parser      *descriptor.Parser
	notifier    interfaces.Notifier
	state       interfaces.StateRecorder
	logger      logger.Logger
	registry    *scopeRegistry
	parallelism int

	isRunning bool
	mu        sync.RWMutex
}

// New creates a new Runtime
func New(deps interfaces.RuntimeDependencies, opts Options, log logger.Logger) *Runtime {
	if deps.ModuleSystem == nil {
		panic("ModuleSystem dependency is required")
	}
	if deps.Framework == nil {
		panic("Framework dependency is required")
	}
	if deps.Builders == nil {
		panic("Builders dependency is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}

	return &Runtime{
		modules:     deps.ModuleSystem,
		framework:   deps.Framework,
		locator:     locator.New(deps.ModuleSystem, opts.DescriptorHeader, log),
		parser:      descriptor.NewParser(deps.Builders, log),
		notifier:    deps.Notifier,
		state:       deps.StateRecorder,
		logger:      log,
		registry:    newScopeRegistry(),
		parallelism: parallelism,
	}
}

// Start marks the runtime as running
func (r *Runtime) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return
	}
	r.isRunning = true
	r.logger.Info("Starting component runtime",
		logger.WithField("header", r.locator.Header()),
		logger.WithField("parallelism", r.parallelism))
}

// IsRunning reports whether Start was called without a following Shutdown
func (r *Runtime) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRunning
}

// OnModuleActivated loads every descriptor of mod and its fragments into the
// scope of mod. A repeated activation of an active module is ignored.
func (r *Runtime) OnModuleActivated(ctx context.Context, mod types.Module) error {
	if mod == nil {
		return invariant("", "activation of nil module")
	}
	if types.IsFragment(mod) {
		r.logger.Debug("Ignoring fragment activation; fragments contribute through their host",
			logger.WithField("module", mod.SymbolicName()),
			logger.WithField("host", mod.FragmentHost()))
		return nil
	}

	ctx = rtcontext.NewEvent(ctx, rtcontext.OperationActivate)
	log := logger.WithContext(ctx, r.logger.WithModule(mod.SymbolicName()))

	entry, err := r.registry.acquire(mod)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.retired {
		log.Debug("Module was deactivated before its activation ran")
		return nil
	}
	if entry.active {
		log.Warn("Module already active, ignoring duplicate activation")
		return nil
	}
	entry.active = true

	locations, locateErrs := r.locator.LocateForActivation(mod)
	report := interfaces.ModuleReport{
		Module:  mod.SymbolicName(),
		Version: mod.Version(),
		Status:  types.ModuleStatusActive,
	}
	for _, err := range locateErrs {
		report.Failures = append(report.Failures, err.Error())
	}

	for _, loc := range locations {
		defs, err := r.loadDescriptor(log, entry.module, loc, entry.ensureScope(r.framework))
		report.Descriptors = append(report.Descriptors, loc.String())
		report.Components += len(defs)
		if err == nil {
			continue
		}
		if IsInvariantViolation(err) {
			entry.active = false
			if entry.scope == nil {
				entry.retired = true
				r.registry.release(entry)
			}
			return err
		}
		log.Error(fmt.Sprintf("Runtime: Error while parsing descriptor %s from module %s", loc, mod.SymbolicName()),
			logger.WithError(err))
		report.Failures = append(report.Failures, err.Error())
		if r.notifier != nil {
			r.notifier.NotifyDescriptorFailure(mod.SymbolicName(), loc.String(), err)
		}
	}

	if entry.scope == nil {
		// nothing was opened, so the module keeps no scope
		entry.retired = true
		r.registry.release(entry)
	}

	report.Duration = rtcontext.Duration(ctx)
	log.Info(fmt.Sprintf("Module activated with %d component(s)", report.Components),
		logger.WithField("descriptors", len(locations)),
		logger.WithField("duration", report.Duration.Round(time.Millisecond)))
	r.record(log, report)
	if r.notifier != nil && report.Components > 0 {
		r.notifier.NotifyModuleActivated(mod.SymbolicName(), report.Components, report.Duration)
	}
	return nil
}

// OnModuleDeactivated removes every component of the scope of mod and
// discards the scope. Unknown modules are ignored.
func (r *Runtime) OnModuleDeactivated(ctx context.Context, mod types.Module) error {
	if mod == nil {
		return invariant("", "deactivation of nil module")
	}

	ctx = rtcontext.NewEvent(ctx, rtcontext.OperationDeactivate)
	log := logger.WithContext(ctx, r.logger.WithModule(mod.SymbolicName()))

	entry, ok, err := r.registry.remove(mod)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("No component scope for stopping module")
		return nil
	}

	log.Info(fmt.Sprintf("Runtime: Removing components from stopping module: %s", mod.SymbolicName()))
	removed := r.teardown(log, entry)

	r.record(log, interfaces.ModuleReport{
		Module:     mod.SymbolicName(),
		Version:    mod.Version(),
		Status:     types.ModuleStatusInactive,
		Components: removed,
		Duration:   rtcontext.Duration(ctx),
	})
	return nil
}

// ActivateAll activates mods concurrently, bounded by the configured parallelism
func (r *Runtime) ActivateAll(ctx context.Context, mods []types.Module) error {
	g, _ := NewSafeGroup(ctx, r.logger)
	g.SetLimit(r.parallelism)

	for _, mod := range mods {
		mod := mod
		name := ""
		if mod != nil {
			name = mod.SymbolicName()
		}
		g.GoModule(name, func() error {
			return r.OnModuleActivated(ctx, mod)
		})
	}
	return g.Wait()
}

// Shutdown tears down every scope. Activations racing with Shutdown either
// complete before their entry is drained or find it retired.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.isRunning = false
	r.mu.Unlock()

	ctx = rtcontext.NewEvent(ctx, rtcontext.OperationShutdown)
	log := logger.WithContext(ctx, r.logger)

	entries := r.registry.drain()
	log.Info("Runtime: stopping components", logger.WithField("modules", len(entries)))

	g, _ := NewSafeGroup(ctx, r.logger)
	g.SetLimit(r.parallelism)

	for _, entry := range entries {
		entry := entry
		g.GoModule(entry.module.SymbolicName(), func() error {
			mod := entry.module
			modLog := logger.WithContext(ctx, r.logger.WithModule(mod.SymbolicName()))
			removed := r.teardown(modLog, entry)
			r.record(modLog, interfaces.ModuleReport{
				Module:     mod.SymbolicName(),
				Version:    mod.Version(),
				Status:     types.ModuleStatusInactive,
				Components: removed,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return invariant("", "shutdown: %v", err)
	}
	log.Success("Component runtime stopped")
	return nil
}

// Scope returns the scope of an active module
func (r *Runtime) Scope(mod types.Module) (interfaces.Scope, bool) {
	if mod == nil {
		return nil, false
	}
	entry, ok := r.registry.lookup(mod)
	if !ok {
		return nil, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.scope == nil {
		return nil, false
	}
	return entry.scope, true
}

// ActiveModules returns the modules that currently own a scope, ordered by id
func (r *Runtime) ActiveModules() []types.Module {
	var mods []types.Module
	for _, entry := range r.registry.snapshot() {
		entry.mu.Lock()
		if entry.scope != nil && !entry.retired {
			mods = append(mods, entry.module)
		}
		entry.mu.Unlock()
	}
	return mods
}

// Inspection is the result of loading the descriptors of one module into a
// scope that is not registered with the runtime
type Inspection struct {
	Module      types.Module
	Scope       interfaces.Scope
	Descriptors []string
	Definitions []*types.ComponentDefinition
	Errors      []error
}

// Inspect loads the descriptors of mod and its fragments into a throwaway
// scope. The runtime registry is left untouched.
func (r *Runtime) Inspect(ctx context.Context, mod types.Module) (*Inspection, error) {
	if mod == nil {
		return nil, invariant("", "inspection of nil module")
	}

	ctx = rtcontext.NewEvent(ctx, rtcontext.OperationValidate)
	log := logger.WithContext(ctx, r.logger.WithModule(mod.SymbolicName()))

	result := &Inspection{Module: mod}
	locations, locateErrs := r.locator.LocateForActivation(mod)
	result.Errors = append(result.Errors, locateErrs...)

	var scope interfaces.Scope
	provide := func() (interfaces.Scope, error) {
		if scope == nil {
			scope = r.framework.NewScope(mod)
			if scope == nil {
				return nil, invariant(mod.SymbolicName(), "component framework returned a nil scope")
			}
		}
		return scope, nil
	}

	for _, loc := range locations {
		result.Descriptors = append(result.Descriptors, loc.String())
		defs, err := r.loadDescriptor(log, mod, loc, provide)
		result.Definitions = append(result.Definitions, defs...)
		if err == nil {
			continue
		}
		if IsInvariantViolation(err) {
			return nil, err
		}
		result.Errors = append(result.Errors, fmt.Errorf("%s: %w", loc, err))
	}
	result.Scope = scope
	return result, nil
}

// loadDescriptor opens loc, obtains the scope and parses the stream into it.
// The scope is requested only after the stream opened.
func (r *Runtime) loadDescriptor(
	log logger.Logger,
	mod types.Module,
	loc types.DescriptorLocation,
	scopeFor func() (interfaces.Scope, error),
) ([]*types.ComponentDefinition, error) {
	log.Debug(fmt.Sprintf("Parsing descriptor %s from module %s", loc, mod.SymbolicName()))

	rc, err := r.modules.OpenResource(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", descriptor.ErrIO, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			log.Debug("Failed to close descriptor", logger.WithField("resource", loc.String()), logger.WithError(cerr))
		}
	}()

	scope, err := scopeFor()
	if err != nil {
		return nil, err
	}
	return r.parser.Parse(rc, mod, scope, loc.Path)
}

// teardown retires entry and removes every component of its scope
func (r *Runtime) teardown(log logger.Logger, entry *moduleEntry) int {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.retired = true
	entry.active = false
	scope := entry.scope
	entry.scope = nil
	if scope == nil {
		return 0
	}

	components := append([]interfaces.Component(nil), scope.Components()...)
	for _, c := range components {
		log.Info(fmt.Sprintf("Runtime: Removing component: %s", describe(c)))
		if err := scope.Remove(c); err != nil {
			log.Warn("Failed to remove component",
				logger.WithField("component", c.ID()),
				logger.WithError(err))
		}
	}
	return len(components)
}

func (r *Runtime) record(log logger.Logger, report interfaces.ModuleReport) {
	if r.state == nil {
		return
	}
	if err := r.state.RecordModule(report); err != nil {
		log.Warn("Failed to record module state", logger.WithError(err))
	}
}

// ensureScope returns a provider creating the entry scope on first use.
// The caller holds entry.mu.
func (e *moduleEntry) ensureScope(framework interfaces.ComponentFramework) func() (interfaces.Scope, error) {
	return func() (interfaces.Scope, error) {
		if e.scope != nil {
			return e.scope, nil
		}
		scope := framework.NewScope(e.module)
		if scope == nil {
			return nil, invariant(e.module.SymbolicName(), "component framework returned a nil scope")
		}
		e.scope = scope
		return scope, nil
	}
}

func describe(c interfaces.Component) string {
	if c == nil {
		return "<nil>"
	}
	def := c.Definition()
	if def == nil {
		return c.ID()
	}
	return fmt.Sprintf("%s %s", def.Kind, def.DisplayName())
}

// HasError reports whether any collected error wraps target
func (i *Inspection) HasError(target error) bool {
	for _, err := range i.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
