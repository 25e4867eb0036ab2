// Package mocks provides mock implementations of interfaces for testing.
package mocks

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// MockModule is an in-memory module
type MockModule struct {
	id           string
	symbolicName string
	version      string
	fragmentHost string
	headers      map[string]string
	mu           sync.RWMutex
}

var _ types.Module = (*MockModule)(nil)

// NewMockModule creates a primary module whose id equals its symbolic name
func NewMockModule(symbolicName string) *MockModule {
	return &MockModule{
		id:           symbolicName,
		symbolicName: symbolicName,
		version:      "1.0.0",
		headers:      make(map[string]string),
	}
}

// NewMockFragment creates a fragment attached to host
func NewMockFragment(symbolicName, host string) *MockModule {
	m := NewMockModule(symbolicName)
	m.fragmentHost = host
	return m
}

// ID returns the module identity
func (m *MockModule) ID() string { return m.id }

// SymbolicName returns the module name
func (m *MockModule) SymbolicName() string { return m.symbolicName }

// Version returns the module version
func (m *MockModule) Version() string { return m.version }

// FragmentHost returns the host name of a fragment
func (m *MockModule) FragmentHost() string { return m.fragmentHost }

// Headers returns a copy of the headers
func (m *MockModule) Headers() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.headers))
	for k, v := range m.headers {
		out[k] = v
	}
	return out
}

// SetHeader sets a metadata header
func (m *MockModule) SetHeader(name, value string) *MockModule {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[name] = value
	return m
}

// SetID overrides the module identity
func (m *MockModule) SetID(id string) *MockModule {
	m.id = id
	return m
}

// MockModuleSystem is an in-memory module system
type MockModuleSystem struct {
	mu         sync.Mutex
	resources  map[string]map[string]string
	fragments  map[string][]types.Module
	openErrors map[string]error
	readErrors map[string]error
	openHook   func(loc types.DescriptorLocation)
	opened     int
	closed     int
}

var _ interfaces.ModuleSystem = (*MockModuleSystem)(nil)

// NewMockModuleSystem creates a new mock module system
func NewMockModuleSystem() *MockModuleSystem {
	return &MockModuleSystem{
		resources:  make(map[string]map[string]string),
		fragments:  make(map[string][]types.Module),
		openErrors: make(map[string]error),
		readErrors: make(map[string]error),
	}
}

// AddResource stores descriptor text at path inside mod
func (s *MockModuleSystem) AddResource(mod types.Module, path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resources[mod.ID()] == nil {
		s.resources[mod.ID()] = make(map[string]string)
	}
	s.resources[mod.ID()][path] = content
}

// AttachFragment attaches fragment to host
func (s *MockModuleSystem) AttachFragment(host, fragment types.Module) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments[host.ID()] = append(s.fragments[host.ID()], fragment)
}

// SetOpenError makes OpenResource fail for path inside mod
func (s *MockModuleSystem) SetOpenError(mod types.Module, path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErrors[resourceKey(mod, path)] = err
}

// SetReadError makes the stream of path fail after its content was read
func (s *MockModuleSystem) SetReadError(mod types.Module, path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErrors[resourceKey(mod, path)] = err
}

// SetOpenHook installs a function called on every OpenResource
func (s *MockModuleSystem) SetOpenHook(fn func(loc types.DescriptorLocation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openHook = fn
}

// Header returns a metadata header of mod
func (s *MockModuleSystem) Header(mod types.Module, name string) (string, bool) {
	if mod == nil {
		return "", false
	}
	value, ok := mod.Headers()[name]
	return value, ok
}

// Fragments returns the fragments attached to mod
func (s *MockModuleSystem) Fragments(mod types.Module) []types.Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Module(nil), s.fragments[mod.ID()]...)
}

// ResolveResource resolves path inside mod
func (s *MockModuleSystem) ResolveResource(mod types.Module, path string) (types.DescriptorLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[mod.ID()][path]; !ok {
		return types.DescriptorLocation{}, false
	}
	return types.DescriptorLocation{
		Module: mod,
		Path:   path,
		URL:    fmt.Sprintf("mock://%s/%s", mod.ID(), path),
	}, true
}

// OpenResource opens a resolved resource
func (s *MockModuleSystem) OpenResource(loc types.DescriptorLocation) (io.ReadCloser, error) {
	s.mu.Lock()
	hook := s.openHook
	s.mu.Unlock()
	if hook != nil {
		hook(loc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := resourceKey(loc.Module, loc.Path)
	if err := s.openErrors[key]; err != nil {
		return nil, err
	}
	content, ok := s.resources[loc.Module.ID()][loc.Path]
	if !ok {
		return nil, fmt.Errorf("resource vanished: %s", loc)
	}

	s.opened++
	var r io.Reader = strings.NewReader(content)
	if err := s.readErrors[key]; err != nil {
		r = io.MultiReader(r, &failingReader{err: err})
	}
	return &trackedStream{Reader: r, system: s}, nil
}

// OpenCount returns how many streams were opened
func (s *MockModuleSystem) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// OpenStreams returns how many opened streams are not closed yet
func (s *MockModuleSystem) OpenStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened - s.closed
}

func resourceKey(mod types.Module, path string) string {
	return mod.ID() + "!" + path
}

type trackedStream struct {
	io.Reader
	system *MockModuleSystem
	once   sync.Once
}

func (t *trackedStream) Close() error {
	t.once.Do(func() {
		t.system.mu.Lock()
		t.system.closed++
		t.system.mu.Unlock()
	})
	return nil
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}

// MockComponent is a component held by a MockScope
type MockComponent struct {
	id         string
	definition *types.ComponentDefinition
	state      types.ComponentState
	mu         sync.Mutex
}

var _ interfaces.Component = (*MockComponent)(nil)

// ID returns the component id
func (c *MockComponent) ID() string { return c.id }

// Definition returns the component definition
func (c *MockComponent) Definition() *types.ComponentDefinition { return c.definition }

// State returns the component state
func (c *MockComponent) State() types.ComponentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MockScope is an in-memory scope recording registrations and removals
type MockScope struct {
	module      types.Module
	components  []*MockComponent
	registered  []*types.ComponentDefinition
	removed     []string
	registerErr error
	removeErr   error
	removeHook  func(c interfaces.Component)
	nextID      int
	mu          sync.Mutex
}

var _ interfaces.Scope = (*MockScope)(nil)

// NewMockScope creates an empty scope owned by mod
func NewMockScope(mod types.Module) *MockScope {
	return &MockScope{module: mod}
}

// Module returns the owning module
func (s *MockScope) Module() types.Module {
	return s.module
}

// Register adds a component for def
func (s *MockScope) Register(def *types.ComponentDefinition) (interfaces.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registerErr != nil {
		return nil, s.registerErr
	}
	if def == nil {
		return nil, errors.New("nil definition")
	}

	s.nextID++
	c := &MockComponent{
		id:         fmt.Sprintf("%s#%d", s.moduleName(), s.nextID),
		definition: def,
		state:      types.ComponentStateStarted,
	}
	s.components = append(s.components, c)
	s.registered = append(s.registered, def)
	return c, nil
}

// Components returns a copy of the live components
func (s *MockScope) Components() []interfaces.Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interfaces.Component, 0, len(s.components))
	for _, c := range s.components {
		out = append(out, c)
	}
	return out
}

// Remove removes a component
func (s *MockScope) Remove(c interfaces.Component) error {
	s.mu.Lock()
	hook := s.removeHook
	s.mu.Unlock()
	if hook != nil {
		hook(c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removed = append(s.removed, c.ID())
	if s.removeErr != nil {
		return s.removeErr
	}
	for i, existing := range s.components {
		if existing.id == c.ID() {
			s.components = append(s.components[:i], s.components[i+1:]...)
			existing.mu.Lock()
			existing.state = types.ComponentStateRemoved
			existing.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("component not found: %s", c.ID())
}

// SetRegisterError makes Register fail
func (s *MockScope) SetRegisterError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerErr = err
}

// SetRemoveError makes Remove fail after recording the call
func (s *MockScope) SetRemoveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeErr = err
}

// SetRemoveHook installs a function called before every Remove
func (s *MockScope) SetRemoveHook(fn func(c interfaces.Component)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeHook = fn
}

// Len returns the number of live components
func (s *MockScope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.components)
}

// Registered returns every definition ever registered, in order
func (s *MockScope) Registered() []*types.ComponentDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.ComponentDefinition(nil), s.registered...)
}

// Removed returns the ids passed to Remove, in order
func (s *MockScope) Removed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removed...)
}

func (s *MockScope) moduleName() string {
	if s.module == nil {
		return "scope"
	}
	return s.module.SymbolicName()
}

// MockFramework creates MockScopes and remembers them
type MockFramework struct {
	scopes   map[string][]*MockScope
	nilScope bool
	created  int
	mu       sync.Mutex
}

var _ interfaces.ComponentFramework = (*MockFramework)(nil)

// NewMockFramework creates a new mock framework
func NewMockFramework() *MockFramework {
	return &MockFramework{scopes: make(map[string][]*MockScope)}
}

// NewScope creates a scope for mod
func (f *MockFramework) NewScope(mod types.Module) interfaces.Scope {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created++
	if f.nilScope {
		return nil
	}
	scope := NewMockScope(mod)
	f.scopes[mod.ID()] = append(f.scopes[mod.ID()], scope)
	return scope
}

// SetNilScope makes NewScope return nil
func (f *MockFramework) SetNilScope(nilScope bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nilScope = nilScope
}

// ScopesFor returns every scope created for mod
func (f *MockFramework) ScopesFor(mod types.Module) []*MockScope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockScope(nil), f.scopes[mod.ID()]...)
}

// CreatedCount returns how many times NewScope was called
func (f *MockFramework) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// DescriptorFailure is one recorded failure notification
type DescriptorFailure struct {
	Module   string
	Resource string
	Err      error
}

// MockNotifier records notifications
type MockNotifier struct {
	failures    []DescriptorFailure
	activations map[string]int
	mu          sync.Mutex
}

var _ interfaces.Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{activations: make(map[string]int)}
}

// NotifyDescriptorFailure records a descriptor failure
func (n *MockNotifier) NotifyDescriptorFailure(module string, resource string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, DescriptorFailure{Module: module, Resource: resource, Err: err})
}

// NotifyModuleActivated records an activation
func (n *MockNotifier) NotifyModuleActivated(module string, components int, duration time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activations[module] = components
}

// Failures returns the recorded failures
func (n *MockNotifier) Failures() []DescriptorFailure {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]DescriptorFailure(nil), n.failures...)
}

// Activations returns the component count per activated module
func (n *MockNotifier) Activations() map[string]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]int, len(n.activations))
	for k, v := range n.activations {
		out[k] = v
	}
	return out
}

// MockStateRecorder records module reports
type MockStateRecorder struct {
	reports []interfaces.ModuleReport
	err     error
	mu      sync.Mutex
}

var _ interfaces.StateRecorder = (*MockStateRecorder)(nil)

// NewMockStateRecorder creates a new mock state recorder
func NewMockStateRecorder() *MockStateRecorder {
	return &MockStateRecorder{}
}

// RecordModule records report
func (r *MockStateRecorder) RecordModule(report interfaces.ModuleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return r.err
}

// SetError makes RecordModule fail after recording
func (r *MockStateRecorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Reports returns the recorded reports
func (r *MockStateRecorder) Reports() []interfaces.ModuleReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interfaces.ModuleReport(nil), r.reports...)
}

// Last returns the most recent report for module
func (r *MockStateRecorder) Last(module string) (interfaces.ModuleReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.reports) - 1; i >= 0; i-- {
		if r.reports[i].Module == module {
			return r.reports[i], true
		}
	}
	return interfaces.ModuleReport{}, false
}
