package builders

import (
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// AdapterServiceBuilder builds Adapter entries: one component per matching
// adaptee service, providing a new service on top of it
type AdapterServiceBuilder struct {
	*BaseBuilder
}

// NewAdapterServiceBuilder creates a new adapter builder
func NewAdapterServiceBuilder(log logger.Logger) *AdapterServiceBuilder {
	return &AdapterServiceBuilder{
		BaseBuilder: NewBaseBuilder(types.EntryKindAdapter, log),
	}
}

// Build builds the definition and registers it into scope
func (b *AdapterServiceBuilder) Build(
	entry *types.DescriptorEntry,
	mod types.Module,
	scope interfaces.Scope,
) (*types.ComponentDefinition, error) {
	def, err := b.newDefinition(entry, mod)
	if err != nil {
		return nil, err
	}

	if def.AdapteeService, err = required(entry, KeyAdapteeService); err != nil {
		return nil, err
	}
	if len(def.Provides) == 0 {
		return nil, missing(entry, KeyProvide)
	}
	def.AdapteeFilter = optional(entry, KeyAdapteeFilter)

	return b.register(def, entry, scope)
}

// BundleAdapterServiceBuilder builds BundleAdapter entries: one component per
// module whose state matches the state mask
type BundleAdapterServiceBuilder struct {
	*BaseBuilder
}

// NewBundleAdapterServiceBuilder creates a new module adapter builder
func NewBundleAdapterServiceBuilder(log logger.Logger) *BundleAdapterServiceBuilder {
	return &BundleAdapterServiceBuilder{
		BaseBuilder: NewBaseBuilder(types.EntryKindBundleAdapter, log),
	}
}

// Build builds the definition and registers it into scope
func (b *BundleAdapterServiceBuilder) Build(
	entry *types.DescriptorEntry,
	mod types.Module,
	scope interfaces.Scope,
) (*types.ComponentDefinition, error) {
	def, err := b.newDefinition(entry, mod)
	if err != nil {
		return nil, err
	}

	if def.StateMask, err = requiredInt(entry, KeyStateMask); err != nil {
		return nil, err
	}
	if len(def.Provides) == 0 {
		return nil, missing(entry, KeyProvide)
	}
	if def.Propagate, err = optionalBool(entry, KeyPropagate); err != nil {
		return nil, err
	}
	def.Filter = optional(entry, KeyFilter)

	return b.register(def, entry, scope)
}

// FactoryConfigurationAdapterServiceBuilder builds FactoryConfigurationAdapter
// entries: one component per factory configuration instance
type FactoryConfigurationAdapterServiceBuilder struct {
	*BaseBuilder
}

// NewFactoryConfigurationAdapterServiceBuilder creates a new factory configuration adapter builder
func NewFactoryConfigurationAdapterServiceBuilder(log logger.Logger) *FactoryConfigurationAdapterServiceBuilder {
	return &FactoryConfigurationAdapterServiceBuilder{
		BaseBuilder: NewBaseBuilder(types.EntryKindFactoryConfigurationAdapter, log),
	}
}

// Build builds the definition and registers it into scope
func (b *FactoryConfigurationAdapterServiceBuilder) Build(
	entry *types.DescriptorEntry,
	mod types.Module,
	scope interfaces.Scope,
) (*types.ComponentDefinition, error) {
	def, err := b.newDefinition(entry, mod)
	if err != nil {
		return nil, err
	}

	if def.FactoryPID, err = required(entry, KeyFactoryPID); err != nil {
		return nil, err
	}
	if def.Updated, err = required(entry, KeyUpdated); err != nil {
		return nil, err
	}
	if def.Propagate, err = optionalBool(entry, KeyPropagate); err != nil {
		return nil, err
	}

	return b.register(def, entry, scope)
}

// ResourceAdapterServiceBuilder builds ResourceAdapter entries: one component
// per resource matching the filter
type ResourceAdapterServiceBuilder struct {
	*BaseBuilder
}

// NewResourceAdapterServiceBuilder creates a new resource adapter builder
func NewResourceAdapterServiceBuilder(log logger.Logger) *ResourceAdapterServiceBuilder {
	return &ResourceAdapterServiceBuilder{
		BaseBuilder: NewBaseBuilder(types.EntryKindResourceAdapter, log),
	}
}

// Build builds the definition and registers it into scope
func (b *ResourceAdapterServiceBuilder) Build(
	entry *types.DescriptorEntry,
	mod types.Module,
	scope interfaces.Scope,
) (*types.ComponentDefinition, error) {
	def, err := b.newDefinition(entry, mod)
	if err != nil {
		return nil, err
	}

	if def.Filter, err = required(entry, KeyFilter); err != nil {
		return nil, err
	}
	if def.Propagate, err = optionalBool(entry, KeyPropagate); err != nil {
		return nil, err
	}
	def.Changed = optional(entry, KeyChanged)

	return b.register(def, entry, scope)
}
