package builders

import (
	"fmt"
	"sort"

	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// Registry maps entry kinds to builders. It is populated once by
// NewRegistry and never mutated afterwards, so concurrent lookups need no
// locking.
type Registry struct {
	builders map[types.EntryKind]interfaces.Builder
	order    []types.EntryKind
}

var _ interfaces.BuilderLookup = (*Registry)(nil)

// NewRegistry creates a registry serving the given builders
func NewRegistry(builders ...interfaces.Builder) (*Registry, error) {
	r := &Registry{
		builders: make(map[types.EntryKind]interfaces.Builder, len(builders)),
	}

	for _, b := range builders {
		if b == nil {
			return nil, fmt.Errorf("nil builder")
		}
		kind := b.Kind()
		if kind == "" {
			return nil, fmt.Errorf("builder %T has an empty kind", b)
		}
		if _, exists := r.builders[kind]; exists {
			return nil, fmt.Errorf("builder for kind %q already registered", kind)
		}
		r.builders[kind] = b
		r.order = append(r.order, kind)
	}

	return r, nil
}

// DefaultRegistry creates the registry with the six built-in kinds
func DefaultRegistry(log logger.Logger) *Registry {
	r, err := NewRegistry(
		NewComponentBuilder(log),
		NewAspectServiceBuilder(log),
		NewAdapterServiceBuilder(log),
		NewBundleAdapterServiceBuilder(log),
		NewFactoryConfigurationAdapterServiceBuilder(log),
		NewResourceAdapterServiceBuilder(log),
	)
	if err != nil {
		// The built-in set has distinct kinds.
		panic(err)
	}
	return r
}

// Lookup returns the builder registered for kind
func (r *Registry) Lookup(kind types.EntryKind) (interfaces.Builder, bool) {
	b, ok := r.builders[kind]
	return b, ok
}

// Kinds returns the registered kinds in registration order
func (r *Registry) Kinds() []types.EntryKind {
	kinds := make([]types.EntryKind, len(r.order))
	copy(kinds, r.order)
	return kinds
}

// SortedKinds returns the registered kinds in lexical order
func (r *Registry) SortedKinds() []string {
	names := make([]string, 0, len(r.order))
	for _, k := range r.order {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}
