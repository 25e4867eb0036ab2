// Package modsys provides a directory-backed host module system.
//
// Every direct subdirectory of the modules root holding a MANIFEST.yaml is a
// module. A module whose manifest names a fragmentHost is a fragment of the
// primary module with that symbolic name; it contributes resources only.
package modsys

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// ManifestFile is the name of the module manifest inside a module directory
const ManifestFile = "MANIFEST.yaml"

// Sentinel errors for module system operations
var (
	ErrNoManifest      = errors.New("module manifest not found")
	ErrInvalidManifest = errors.New("invalid module manifest")
	ErrForeignModule   = errors.New("module does not belong to this module system")
)

// Manifest is the YAML metadata of a module directory
type Manifest struct {
	SymbolicName string            `yaml:"symbolicName"`
	Version      string            `yaml:"version,omitempty"`
	FragmentHost string            `yaml:"fragmentHost,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
}

// Module is a module backed by a directory
type Module struct {
	dir      string
	manifest Manifest
}

var _ types.Module = (*Module)(nil)

// ID returns the absolute module directory
func (m *Module) ID() string { return m.dir }

// SymbolicName returns the manifest symbolic name
func (m *Module) SymbolicName() string { return m.manifest.SymbolicName }

// Version returns the manifest version
func (m *Module) Version() string { return m.manifest.Version }

// FragmentHost returns the host symbolic name of a fragment
func (m *Module) FragmentHost() string { return m.manifest.FragmentHost }

// Dir returns the module directory
func (m *Module) Dir() string { return m.dir }

// Headers returns a copy of the manifest headers
func (m *Module) Headers() map[string]string {
	out := make(map[string]string, len(m.manifest.Headers))
	for k, v := range m.manifest.Headers {
		out[k] = v
	}
	return out
}

func (m *Module) String() string {
	if m.manifest.Version == "" {
		return m.manifest.SymbolicName
	}
	return fmt.Sprintf("%s@%s", m.manifest.SymbolicName, m.manifest.Version)
}

// LoadModule reads the manifest of a module directory
func LoadModule(dir string) (*Module, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module directory: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(abs, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, abs)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, abs, err)
	}
	manifest.SymbolicName = strings.TrimSpace(manifest.SymbolicName)
	if manifest.SymbolicName == "" {
		return nil, fmt.Errorf("%w: %s: missing symbolicName", ErrInvalidManifest, abs)
	}
	if manifest.FragmentHost == manifest.SymbolicName {
		return nil, fmt.Errorf("%w: %s: module cannot be its own fragment host", ErrInvalidManifest, abs)
	}

	return &Module{dir: abs, manifest: manifest}, nil
}

// System is a module system rooted at a directory
type System struct {
	root    string
	logger  logger.Logger
	modules map[string]*Module
	mu      sync.RWMutex
}

var _ interfaces.ModuleSystem = (*System)(nil)

// New creates a module system rooted at root
func New(root string, log logger.Logger) (*System, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve modules directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &System{
		root:    abs,
		logger:  log,
		modules: make(map[string]*Module),
	}, nil
}

// Root returns the modules directory
func (s *System) Root() string {
	return s.root
}

// Scan (re)loads every module directory under the root. Directories with a
// missing or invalid manifest are logged and skipped.
func (s *System) Scan() ([]*Module, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read modules directory: %w", err)
	}

	modules := make(map[string]*Module)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		mod, err := LoadModule(filepath.Join(s.root, entry.Name()))
		if err != nil {
			if !errors.Is(err, ErrNoManifest) {
				s.logger.Warn("Skipping module directory", logger.WithField("dir", entry.Name()), logger.WithError(err))
			}
			continue
		}
		modules[mod.ID()] = mod
	}

	s.mu.Lock()
	s.modules = modules
	s.mu.Unlock()

	return s.sorted(func(*Module) bool { return true }), nil
}

// Add loads the module in dir and makes it known to the system
func (s *System) Add(dir string) (*Module, error) {
	mod, err := LoadModule(dir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.modules[mod.ID()] = mod
	s.mu.Unlock()
	return mod, nil
}

// Remove forgets the module in dir and returns it
func (s *System) Remove(dir string) (*Module, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mod, ok := s.modules[abs]
	if ok {
		delete(s.modules, abs)
	}
	return mod, ok
}

// Modules returns the primary modules ordered by symbolic name
func (s *System) Modules() []*Module {
	return s.sorted(func(m *Module) bool { return !types.IsFragment(m) })
}

// Lookup returns the primary module with the given symbolic name
func (s *System) Lookup(symbolicName string) (*Module, bool) {
	for _, m := range s.Modules() {
		if m.SymbolicName() == symbolicName {
			return m, true
		}
	}
	return nil, false
}

// Header returns a manifest header of mod
func (s *System) Header(mod types.Module, name string) (string, bool) {
	if mod == nil {
		return "", false
	}
	value, ok := mod.Headers()[name]
	return value, ok
}

// Fragments returns the fragments attached to mod, ordered by directory name
func (s *System) Fragments(mod types.Module) []types.Module {
	if mod == nil || types.IsFragment(mod) {
		return nil
	}

	s.mu.RLock()
	var fragments []*Module
	for _, m := range s.modules {
		if m.FragmentHost() == mod.SymbolicName() {
			fragments = append(fragments, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(fragments, func(i, j int) bool {
		return filepath.Base(fragments[i].dir) < filepath.Base(fragments[j].dir)
	})

	out := make([]types.Module, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, f)
	}
	return out
}

// ResolveResource resolves a path relative to the module directory. Absolute
// paths and paths leaving the module directory never resolve.
func (s *System) ResolveResource(mod types.Module, path string) (types.DescriptorLocation, bool) {
	m, ok := mod.(*Module)
	if !ok {
		return types.DescriptorLocation{}, false
	}

	full, ok := m.resourcePath(path)
	if !ok {
		return types.DescriptorLocation{}, false
	}
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return types.DescriptorLocation{}, false
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(full)}
	return types.DescriptorLocation{
		Module: m,
		Path:   path,
		URL:    u.String(),
	}, true
}

// OpenResource opens a resolved resource
func (s *System) OpenResource(loc types.DescriptorLocation) (io.ReadCloser, error) {
	m, ok := loc.Module.(*Module)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrForeignModule, loc)
	}
	full, ok := m.resourcePath(loc.Path)
	if !ok {
		return nil, fmt.Errorf("resource path escapes module directory: %s", loc.Path)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", loc, err)
	}
	return f, nil
}

func (m *Module) resourcePath(path string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", false
	}
	full := filepath.Join(m.dir, filepath.FromSlash(path))
	rel, err := filepath.Rel(m.dir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

func (s *System) sorted(keep func(*Module) bool) []*Module {
	s.mu.RLock()
	out := make([]*Module, 0, len(s.modules))
	for _, m := range s.modules {
		if keep(m) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SymbolicName() != out[j].SymbolicName() {
			return out[i].SymbolicName() < out[j].SymbolicName()
		}
		return out[i].dir < out[j].dir
	})
	return out
}
