// Package types provides core types shared by the component runtime
package types

import (
	"fmt"
	"sort"
	"strings"
)

// EntryKind identifies which builder interprets a descriptor entry
type EntryKind string

const (
	EntryKindComponent                   EntryKind = "Component"
	EntryKindAspect                      EntryKind = "Aspect"
	EntryKindAdapter                     EntryKind = "Adapter"
	EntryKindBundleAdapter               EntryKind = "BundleAdapter"
	EntryKindFactoryConfigurationAdapter EntryKind = "FactoryConfigurationAdapter"
	EntryKindResourceAdapter             EntryKind = "ResourceAdapter"
)

// KnownEntryKinds lists every entry kind the default builder registry serves
func KnownEntryKinds() []EntryKind {
	return []EntryKind{
		EntryKindComponent,
		EntryKindAspect,
		EntryKindAdapter,
		EntryKindBundleAdapter,
		EntryKindFactoryConfigurationAdapter,
		EntryKindResourceAdapter,
	}
}

// ModuleStatus represents the lifecycle state of a module as seen by the runtime
type ModuleStatus string

const (
	ModuleStatusInactive ModuleStatus = "inactive"
	ModuleStatusActive   ModuleStatus = "active"
)

// ComponentState represents the state of a component inside a scope
type ComponentState string

const (
	ComponentStateRegistered ComponentState = "registered"
	ComponentStateStarted    ComponentState = "started"
	ComponentStateRemoved    ComponentState = "removed"
)

// Module is a dynamically loadable unit owned by the host module system.
// The runtime only reads it.
type Module interface {
	// ID returns the stable identity used as the registry key
	ID() string
	SymbolicName() string
	Version() string
	// Headers returns a copy of the module metadata headers
	Headers() map[string]string
	// FragmentHost returns the symbolic name of the host module for
	// fragments, or "" for primary modules
	FragmentHost() string
}

// IsFragment reports whether a module only contributes resources to a host
func IsFragment(m Module) bool {
	return m != nil && m.FragmentHost() != ""
}

// DescriptorLocation points at descriptor text carried by a module or fragment
type DescriptorLocation struct {
	Module Module
	Path   string
	URL    string
}

// String returns the printable resource identity
func (l DescriptorLocation) String() string {
	if l.URL != "" {
		return l.URL
	}
	if l.Module == nil {
		return l.Path
	}
	return fmt.Sprintf("%s!/%s", l.Module.SymbolicName(), l.Path)
}

// KeyValue is one key=value line of a descriptor entry
type KeyValue struct {
	Key   string
	Value string
	Line  int
}

// DescriptorEntry is an ordered block of key/value lines tagged with a kind
type DescriptorEntry struct {
	Kind     EntryKind
	Resource string
	Line     int
	Lines    []KeyValue
}

// Get returns the last value recorded for key
func (e *DescriptorEntry) Get(key string) (string, bool) {
	for i := len(e.Lines) - 1; i >= 0; i-- {
		if e.Lines[i].Key == key {
			return e.Lines[i].Value, true
		}
	}
	return "", false
}

// All returns every value recorded for key, in file order
func (e *DescriptorEntry) All(key string) []string {
	var values []string
	for _, kv := range e.Lines {
		if kv.Key == key {
			values = append(values, kv.Value)
		}
	}
	return values
}

// WithPrefix returns the values whose key starts with prefix, keyed by the
// remainder of the key
func (e *DescriptorEntry) WithPrefix(prefix string) map[string]string {
	result := make(map[string]string)
	for _, kv := range e.Lines {
		if name, ok := strings.CutPrefix(kv.Key, prefix); ok && name != "" {
			result[name] = kv.Value
		}
	}
	return result
}

// Dependency describes a service dependency of a component
type Dependency struct {
	Service  string `json:"service" yaml:"service"`
	Filter   string `json:"filter,omitempty" yaml:"filter,omitempty"`
	Required bool   `json:"required" yaml:"required"`
}

// Callbacks names the lifecycle methods invoked on a component instance
type Callbacks struct {
	Init    string `json:"init,omitempty" yaml:"init,omitempty"`
	Start   string `json:"start,omitempty" yaml:"start,omitempty"`
	Stop    string `json:"stop,omitempty" yaml:"stop,omitempty"`
	Destroy string `json:"destroy,omitempty" yaml:"destroy,omitempty"`
}

// Factory describes how the implementation instance is obtained
type Factory struct {
	Set    string `json:"set,omitempty" yaml:"set,omitempty"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
}

// Source records where a definition was declared
type Source struct {
	Module   string `json:"module" yaml:"module"`
	Resource string `json:"resource" yaml:"resource"`
	Line     int    `json:"line" yaml:"line"`
}

// ComponentDefinition is what a builder hands to the component framework.
// The runtime never inspects it.
type ComponentDefinition struct {
	Kind         EntryKind         `json:"kind" yaml:"kind"`
	Name         string            `json:"name,omitempty" yaml:"name,omitempty"`
	Impl         string            `json:"impl" yaml:"impl"`
	Provides     []string          `json:"provides,omitempty" yaml:"provides,omitempty"`
	Properties   map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	Dependencies []Dependency      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Callbacks    Callbacks         `json:"callbacks,omitempty" yaml:"callbacks,omitempty"`
	Factory      Factory           `json:"factory,omitempty" yaml:"factory,omitempty"`
	Composition  string            `json:"composition,omitempty" yaml:"composition,omitempty"`

	// Aspect
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	Ranking int    `json:"ranking,omitempty" yaml:"ranking,omitempty"`
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`

	// Adapter
	AdapteeService string `json:"adapteeService,omitempty" yaml:"adapteeService,omitempty"`
	AdapteeFilter  string `json:"adapteeFilter,omitempty" yaml:"adapteeFilter,omitempty"`

	// Aspect, BundleAdapter, ResourceAdapter
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`

	// BundleAdapter
	StateMask int `json:"stateMask,omitempty" yaml:"stateMask,omitempty"`

	// BundleAdapter, FactoryConfigurationAdapter, ResourceAdapter
	Propagate bool `json:"propagate,omitempty" yaml:"propagate,omitempty"`

	// FactoryConfigurationAdapter
	FactoryPID string `json:"factoryPid,omitempty" yaml:"factoryPid,omitempty"`
	Updated    string `json:"updated,omitempty" yaml:"updated,omitempty"`

	// Aspect and ResourceAdapter service callbacks
	Added   string `json:"added,omitempty" yaml:"added,omitempty"`
	Changed string `json:"changed,omitempty" yaml:"changed,omitempty"`
	Removed string `json:"removed,omitempty" yaml:"removed,omitempty"`

	Source Source `json:"source" yaml:"source"`
}

// DisplayName returns the name used in logs
func (d *ComponentDefinition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Impl
}

// SortedPropertyKeys returns the property keys in lexical order
func (d *ComponentDefinition) SortedPropertyKeys() []string {
	keys := make([]string, 0, len(d.Properties))
	for k := range d.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
