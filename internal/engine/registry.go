package engine

import (
	"sort"
	"sync"

	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// moduleEntry tracks the scope of one module. Its mutex serializes
// activation and teardown of that module only.
type moduleEntry struct {
	module  types.Module
	scope   interfaces.Scope
	active  bool
	retired bool
	mu      sync.Mutex
}

// scopeRegistry maps module identities to entries. The lock guards map
// operations only and is never held while an entry lock is taken or while
// descriptors are read.
type scopeRegistry struct {
	entries map[string]*moduleEntry
	mu      sync.Mutex
}

func newScopeRegistry() *scopeRegistry {
	return &scopeRegistry{entries: make(map[string]*moduleEntry)}
}

// acquire returns the entry for mod, creating it if absent
func (r *scopeRegistry) acquire(mod types.Module) (*moduleEntry, error) {
	key := mod.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		if e.module == nil || e.module.ID() != key {
			return nil, invariant(mod.SymbolicName(), "registry entry %q belongs to another module", key)
		}
		return e, nil
	}

	e := &moduleEntry{module: mod}
	r.entries[key] = e
	return e, nil
}

// remove detaches and returns the entry for mod
func (r *scopeRegistry) remove(mod types.Module) (*moduleEntry, bool, error) {
	key := mod.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, false, nil
	}
	delete(r.entries, key)

	if e.module == nil || e.module.ID() != key {
		return nil, false, invariant(mod.SymbolicName(), "registry entry %q belongs to another module", key)
	}
	return e, true, nil
}

// release detaches e only if it is still the registered entry for its module
func (r *scopeRegistry) release(e *moduleEntry) {
	key := e.module.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.entries[key]; ok && current == e {
		delete(r.entries, key)
	}
}

func (r *scopeRegistry) lookup(mod types.Module) (*moduleEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[mod.ID()]
	return e, ok
}

// drain empties the registry and returns the entries it held
func (r *scopeRegistry) drain() []*moduleEntry {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*moduleEntry)
	r.mu.Unlock()

	return sortEntries(entries)
}

// snapshot returns the registered entries without detaching them
func (r *scopeRegistry) snapshot() []*moduleEntry {
	r.mu.Lock()
	entries := make(map[string]*moduleEntry, len(r.entries))
	for k, v := range r.entries {
		entries[k] = v
	}
	r.mu.Unlock()

	return sortEntries(entries)
}

func (r *scopeRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func sortEntries(entries map[string]*moduleEntry) []*moduleEntry {
	out := make([]*moduleEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].module.ID() < out[j].module.ID()
	})
	return out
}
