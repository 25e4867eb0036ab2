// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"io"
	"time"

	"github.com/dmruntime/dmruntime/pkg/types"
)

//go:generate mockgen -destination=../mocks/mock_interfaces.go -package=mocks -mock_names=ModuleSystem=MockModuleSystemInterface,ComponentFramework=MockComponentFrameworkInterface,Scope=MockScopeInterface,Component=MockComponentInterface github.com/dmruntime/dmruntime/pkg/interfaces ModuleSystem,ComponentFramework,Scope,Component

// ModuleSystem is the host module system consumed by the runtime
type ModuleSystem interface {
	// Header returns a metadata header of the module
	Header(mod types.Module, name string) (string, bool)
	// Fragments returns the fragments attached to mod, in attachment order
	Fragments(mod types.Module) []types.Module
	// ResolveResource resolves a path relative to the module's resources.
	// It reports false when no such resource exists.
	ResolveResource(mod types.Module, path string) (types.DescriptorLocation, bool)
	// OpenResource opens a resolved resource for reading
	OpenResource(loc types.DescriptorLocation) (io.ReadCloser, error)
}

// ComponentFramework creates per-module scopes
type ComponentFramework interface {
	NewScope(mod types.Module) Scope
}

// Scope is one component manager owned by exactly one active module
type Scope interface {
	Register(def *types.ComponentDefinition) (Component, error)
	// Components returns a point-in-time copy of the live components
	Components() []Component
	Remove(c Component) error
}

// Component is a live component managed by a scope
type Component interface {
	ID() string
	Definition() *types.ComponentDefinition
	State() types.ComponentState
}

// Builder turns one descriptor entry into a component definition and
// registers it into the scope
type Builder interface {
	Kind() types.EntryKind
	Build(entry *types.DescriptorEntry, mod types.Module, scope Scope) (*types.ComponentDefinition, error)
}

// Notifier reports descriptor failures to an operator
type Notifier interface {
	NotifyDescriptorFailure(module string, resource string, err error)
	NotifyModuleActivated(module string, components int, duration time.Duration)
}

// ModuleReport summarizes one activation or deactivation
type ModuleReport struct {
	Module      string
	Version     string
	Status      types.ModuleStatus
	Components  int
	Descriptors []string
	Failures    []string
	Duration    time.Duration
}

// StateRecorder persists module status for inspection
type StateRecorder interface {
	RecordModule(report ModuleReport) error
}

// RuntimeDependencies contains all injectable dependencies of the runtime
type RuntimeDependencies struct {
	ModuleSystem  ModuleSystem
	Framework     ComponentFramework
	Builders      BuilderLookup
	Notifier      Notifier
	StateRecorder StateRecorder
}

// BuilderLookup resolves a builder by entry kind
type BuilderLookup interface {
	Lookup(kind types.EntryKind) (Builder, bool)
	Kinds() []types.EntryKind
}
