// Package builders provides the descriptor entry builders, one per entry kind
package builders

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmruntime/dmruntime/pkg/descriptor"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// Keys understood by every builder
const (
	KeyImpl          = "impl"
	KeyName          = "name"
	KeyProvide       = "provide"
	KeyDependency    = "dependency"
	KeyComposition   = "composition"
	KeyInit          = "init"
	KeyStart         = "start"
	KeyStop          = "stop"
	KeyDestroy       = "destroy"
	KeyFactorySet    = "factorySet"
	KeyFactoryMethod = "factoryMethod"
	PropertyPrefix   = "property."
)

// Kind-specific keys
const (
	KeyService        = "service"
	KeyRanking        = "ranking"
	KeyField          = "field"
	KeyFilter         = "filter"
	KeyAdded          = "added"
	KeyChanged        = "changed"
	KeyRemoved        = "removed"
	KeyAdapteeService = "adapteeService"
	KeyAdapteeFilter  = "adapteeFilter"
	KeyStateMask      = "stateMask"
	KeyPropagate      = "propagate"
	KeyFactoryPID     = "factoryPid"
	KeyUpdated        = "updated"
)

// BaseBuilder provides the parsing shared by all builders
type BaseBuilder struct {
	kind   types.EntryKind
	logger logger.Logger
}

// NewBaseBuilder creates a new base builder for kind
func NewBaseBuilder(kind types.EntryKind, log logger.Logger) *BaseBuilder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &BaseBuilder{
		kind:   kind,
		logger: log,
	}
}

// Kind returns the entry kind this builder serves
func (b *BaseBuilder) Kind() types.EntryKind {
	return b.kind
}

// newDefinition parses the keys common to every kind
func (b *BaseBuilder) newDefinition(entry *types.DescriptorEntry, mod types.Module) (*types.ComponentDefinition, error) {
	if entry.Kind != b.kind {
		return nil, fmt.Errorf("%s builder cannot build %s entries", b.kind, entry.Kind)
	}

	impl, err := required(entry, KeyImpl)
	if err != nil {
		return nil, err
	}

	def := &types.ComponentDefinition{
		Kind:        entry.Kind,
		Impl:        impl,
		Name:        optional(entry, KeyName),
		Provides:    splitList(entry.All(KeyProvide)),
		Composition: optional(entry, KeyComposition),
		Callbacks: types.Callbacks{
			Init:    optional(entry, KeyInit),
			Start:   optional(entry, KeyStart),
			Stop:    optional(entry, KeyStop),
			Destroy: optional(entry, KeyDestroy),
		},
		Factory: types.Factory{
			Set:    optional(entry, KeyFactorySet),
			Method: optional(entry, KeyFactoryMethod),
		},
		Source: types.Source{
			Resource: entry.Resource,
			Line:     entry.Line,
		},
	}
	if mod != nil {
		def.Source.Module = mod.SymbolicName()
	}

	if props := entry.WithPrefix(PropertyPrefix); len(props) > 0 {
		def.Properties = props
	}

	for _, raw := range entry.All(KeyDependency) {
		dep, err := parseDependency(raw)
		if err != nil {
			return nil, descriptor.InvalidValue(entry, KeyDependency, raw, err)
		}
		def.Dependencies = append(def.Dependencies, dep)
	}

	if def.Factory.Method != "" && def.Factory.Set == "" {
		return nil, descriptor.MissingKey(entry, KeyFactorySet)
	}

	return def, nil
}

// register hands a finished definition to the scope
func (b *BaseBuilder) register(def *types.ComponentDefinition, entry *types.DescriptorEntry, scope interfaces.Scope) (*types.ComponentDefinition, error) {
	if scope == nil {
		return nil, &descriptor.BuilderError{
			Kind: entry.Kind,
			Line: entry.Line,
			Err:  fmt.Errorf("no scope to register %s into", def.DisplayName()),
		}
	}

	component, err := scope.Register(def)
	if err != nil {
		return nil, &descriptor.BuilderError{
			Kind: entry.Kind,
			Line: entry.Line,
			Err:  err,
		}
	}

	b.logger.Debug(fmt.Sprintf("Built %s component %s", b.kind, def.DisplayName()),
		logger.WithField("component", component.ID()),
		logger.WithField("module", def.Source.Module))
	return def, nil
}

func required(entry *types.DescriptorEntry, key string) (string, error) {
	value, ok := entry.Get(key)
	if !ok || value == "" {
		return "", descriptor.MissingKey(entry, key)
	}
	return value, nil
}

func missing(entry *types.DescriptorEntry, key string) error {
	return descriptor.MissingKey(entry, key)
}

func optional(entry *types.DescriptorEntry, key string) string {
	value, _ := entry.Get(key)
	return value
}

func requiredInt(entry *types.DescriptorEntry, key string) (int, error) {
	raw, err := required(entry, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, descriptor.InvalidValue(entry, key, raw, err)
	}
	return n, nil
}

func optionalBool(entry *types.DescriptorEntry, key string) (bool, error) {
	raw, ok := entry.Get(key)
	if !ok || raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, descriptor.InvalidValue(entry, key, raw, err)
	}
	return v, nil
}

// splitList flattens comma-separated values, dropping empty items
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// parseDependency parses "Service[;filter=...][;required=true|false]"
func parseDependency(raw string) (types.Dependency, error) {
	parts := strings.Split(raw, ";")
	dep := types.Dependency{
		Service:  strings.TrimSpace(parts[0]),
		Required: true,
	}
	if dep.Service == "" {
		return dep, fmt.Errorf("missing service name")
	}

	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		if attr == "" {
			continue
		}
		name, value, ok := strings.Cut(attr, "=")
		if !ok {
			return dep, fmt.Errorf("attribute %q is not name=value", attr)
		}
		switch strings.TrimSpace(name) {
		case "filter":
			dep.Filter = strings.TrimSpace(value)
		case "required":
			b, err := strconv.ParseBool(strings.TrimSpace(value))
			if err != nil {
				return dep, fmt.Errorf("required: %w", err)
			}
			dep.Required = b
		default:
			return dep, fmt.Errorf("unknown attribute %q", name)
		}
	}
	return dep, nil
}
