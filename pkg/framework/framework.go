// Package framework provides an in-memory component framework: one Manager
// per module scope, tracking the components registered from descriptors.
// It performs no dependency injection.
package framework

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// Framework errors
var (
	ErrComponentNotFound = errors.New("component not found")
	ErrInvalidDefinition = errors.New("invalid component definition")
	ErrDuplicateName     = errors.New("duplicate component name")
)

// ComponentError describes a failed component operation
type ComponentError struct {
	Component string
	Operation string
	Err       error
}

func (e ComponentError) Error() string {
	return fmt.Sprintf("component '%s' %s failed: %v", e.Component, e.Operation, e.Err)
}

func (e ComponentError) Unwrap() error {
	return e.Err
}

// Framework creates managers
type Framework struct {
	logger logger.Logger
}

var _ interfaces.ComponentFramework = (*Framework)(nil)

// New creates a new in-memory framework
func New(log logger.Logger) *Framework {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Framework{logger: log}
}

// NewScope creates a manager for mod
func (f *Framework) NewScope(mod types.Module) interfaces.Scope {
	return NewManager(mod, f.logger)
}

// Component is a registered component
type Component struct {
	id           string
	definition   *types.ComponentDefinition
	registeredAt time.Time
	state        types.ComponentState
	mu           sync.RWMutex
}

var _ interfaces.Component = (*Component)(nil)

// ID returns the unique component id
func (c *Component) ID() string {
	return c.id
}

// Definition returns the definition the component was built from
func (c *Component) Definition() *types.ComponentDefinition {
	return c.definition
}

// State returns the current component state
func (c *Component) State() types.ComponentState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RegisteredAt returns when the component was registered
func (c *Component) RegisteredAt() time.Time {
	return c.registeredAt
}

func (c *Component) setState(state types.ComponentState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *Component) String() string {
	return fmt.Sprintf("%s %s (%s)", c.definition.Kind, c.definition.DisplayName(), c.id)
}

// Manager is the per-module component scope
type Manager struct {
	module     types.Module
	logger     logger.Logger
	components []*Component
	mu         sync.RWMutex
}

var _ interfaces.Scope = (*Manager)(nil)

// NewManager creates an empty manager owned by mod
func NewManager(mod types.Module, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	name := ""
	if mod != nil {
		name = mod.SymbolicName()
	}
	return &Manager{
		module: mod,
		logger: log.WithModule(name),
	}
}

// Module returns the module owning this manager
func (m *Manager) Module() types.Module {
	return m.module
}

// Register adds a component built from def and starts it
func (m *Manager) Register(def *types.ComponentDefinition) (interfaces.Component, error) {
	if err := validateDefinition(def); err != nil {
		name := ""
		if def != nil {
			name = def.DisplayName()
		}
		return nil, ComponentError{Component: name, Operation: "register", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if def.Name != "" {
		for _, c := range m.components {
			if c.definition.Name == def.Name {
				return nil, ComponentError{
					Component: def.Name,
					Operation: "register",
					Err:       ErrDuplicateName,
				}
			}
		}
	}

	c := &Component{
		id:           uuid.New().String(),
		definition:   def,
		registeredAt: time.Now(),
		state:        types.ComponentStateRegistered,
	}
	m.components = append(m.components, c)
	c.setState(types.ComponentStateStarted)

	m.logger.Debug(fmt.Sprintf("Component registered: %s", c),
		logger.WithField("components", len(m.components)))
	return c, nil
}

// Components returns a copy of the live components in registration order
func (m *Manager) Components() []interfaces.Component {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]interfaces.Component, 0, len(m.components))
	for _, c := range m.components {
		out = append(out, c)
	}
	return out
}

// Len returns the number of live components
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.components)
}

// Remove stops and removes a component
func (m *Manager) Remove(component interfaces.Component) error {
	if component == nil {
		return ComponentError{Operation: "remove", Err: ErrComponentNotFound}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.components {
		if c.id != component.ID() {
			continue
		}
		m.components = append(m.components[:i], m.components[i+1:]...)
		c.setState(types.ComponentStateRemoved)
		m.logger.Debug(fmt.Sprintf("Component removed: %s", c))
		return nil
	}

	return ComponentError{
		Component: component.ID(),
		Operation: "remove",
		Err:       ErrComponentNotFound,
	}
}

func validateDefinition(def *types.ComponentDefinition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	if def.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidDefinition)
	}
	if def.Impl == "" {
		return fmt.Errorf("%w: missing implementation", ErrInvalidDefinition)
	}
	for _, dep := range def.Dependencies {
		if dep.Service == "" {
			return fmt.Errorf("%w: dependency without service", ErrInvalidDefinition)
		}
	}
	return nil
}
