package builders

import (
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// ComponentBuilder builds plain Component entries
type ComponentBuilder struct {
	*BaseBuilder
}

// NewComponentBuilder creates a new component builder
func NewComponentBuilder(log logger.Logger) *ComponentBuilder {
	return &ComponentBuilder{
		BaseBuilder: NewBaseBuilder(types.EntryKindComponent, log),
	}
}

// Build builds the definition and registers it into scope
func (b *ComponentBuilder) Build(
	entry *types.DescriptorEntry,
	mod types.Module,
	scope interfaces.Scope,
) (*types.ComponentDefinition, error) {
	def, err := b.newDefinition(entry, mod)
	if err != nil {
		return nil, err
	}
	return b.register(def, entry, scope)
}

// AspectServiceBuilder builds Aspect entries: a component interposed in front
// of an existing service, ordered by ranking
type AspectServiceBuilder struct {
	*BaseBuilder
}

// NewAspectServiceBuilder creates a new aspect builder
func NewAspectServiceBuilder(log logger.Logger) *AspectServiceBuilder {
	return &AspectServiceBuilder{
		BaseBuilder: NewBaseBuilder(types.EntryKindAspect, log),
	}
}

// Build builds the definition and registers it into scope
func (b *AspectServiceBuilder) Build(
	entry *types.DescriptorEntry,
	mod types.Module,
	scope interfaces.Scope,
) (*types.ComponentDefinition, error) {
	def, err := b.newDefinition(entry, mod)
	if err != nil {
		return nil, err
	}

	if def.Service, err = required(entry, KeyService); err != nil {
		return nil, err
	}
	if def.Ranking, err = requiredInt(entry, KeyRanking); err != nil {
		return nil, err
	}
	def.Filter = optional(entry, KeyFilter)
	def.Field = optional(entry, KeyField)
	def.Added = optional(entry, KeyAdded)
	def.Changed = optional(entry, KeyChanged)
	def.Removed = optional(entry, KeyRemoved)

	return b.register(def, entry, scope)
}
