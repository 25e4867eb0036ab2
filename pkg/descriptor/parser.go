// Package descriptor parses line-oriented component descriptors and
// dispatches their entries to the registered builders.
//
// A descriptor is a sequence of entries. An entry starts at a line naming a
// kind tag (for example "Component") and owns every following key=value line
// until the next kind tag or the end of the stream:
//
//	# greeter components
//	Component
//	impl=com.example.Greeter
//	provide=com.example.Greeting
//
//	Aspect
//	impl=com.example.LoggingAspect
//	service=com.example.Greeting
//	ranking=10
//
// Blank lines and lines starting with '#' are ignored.
package descriptor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// maxLineSize bounds a single descriptor line
const maxLineSize = 1024 * 1024

// Parser reads descriptors and feeds the resulting definitions into a scope
type Parser struct {
	builders interfaces.BuilderLookup
	logger   logger.Logger
}

// NewParser creates a new descriptor parser
func NewParser(builders interfaces.BuilderLookup, log logger.Logger) *Parser {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Parser{
		builders: builders,
		logger:   log,
	}
}

// Parse consumes r fully and registers one definition per entry into scope.
//
// Parsing stops at the first entry that fails; definitions registered before
// it stay in the scope. The returned slice holds every definition that was
// registered, including on error.
func (p *Parser) Parse(
	r io.Reader,
	mod types.Module,
	scope interfaces.Scope,
	resource string,
) ([]*types.ComponentDefinition, error) {
	moduleName := ""
	if mod != nil {
		moduleName = mod.SymbolicName()
	}

	var (
		registered []*types.ComponentDefinition
		current    *types.DescriptorEntry
		lineNo     int
	)

	flush := func() error {
		if current == nil {
			return nil
		}
		entry := current
		current = nil

		def, err := p.dispatch(entry, mod, scope)
		if err != nil {
			return withSource(err, moduleName, resource, entry.Kind, entry.Line)
		}
		registered = append(registered, def)
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, isPair := strings.Cut(line, "=")
		if !isPair {
			if err := flush(); err != nil {
				return registered, err
			}

			kind := types.EntryKind(line)
			if _, ok := p.builders.Lookup(kind); !ok {
				return registered, &FormatError{
					Module:   moduleName,
					Resource: resource,
					Line:     lineNo,
					Content:  line,
					Tag:      kind,
				}
			}
			current = &types.DescriptorEntry{
				Kind:     kind,
				Resource: resource,
				Line:     lineNo,
			}
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return registered, &FormatError{
				Module:   moduleName,
				Resource: resource,
				Line:     lineNo,
				Content:  line,
				Reason:   "empty key",
			}
		}
		if current == nil {
			return registered, &FormatError{
				Module:   moduleName,
				Resource: resource,
				Line:     lineNo,
				Content:  line,
				Reason:   "key/value line outside of any entry",
			}
		}
		current.Lines = append(current.Lines, types.KeyValue{
			Key:   key,
			Value: strings.TrimSpace(value),
			Line:  lineNo,
		})
	}

	if err := scanner.Err(); err != nil {
		return registered, fmt.Errorf("%w: reading %s: %v", ErrIO, resource, err)
	}

	if err := flush(); err != nil {
		return registered, err
	}

	p.logger.Debug(fmt.Sprintf("Parsed descriptor %s", resource),
		logger.WithField("module", moduleName),
		logger.WithField("definitions", len(registered)))

	return registered, nil
}

func (p *Parser) dispatch(
	entry *types.DescriptorEntry,
	mod types.Module,
	scope interfaces.Scope,
) (*types.ComponentDefinition, error) {
	builder, ok := p.builders.Lookup(entry.Kind)
	if !ok {
		// Lookup already succeeded when the tag line was read.
		return nil, &FormatError{Line: entry.Line, Content: string(entry.Kind), Tag: entry.Kind}
	}

	def, err := builder.Build(entry, mod, scope)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errors.New("builder returned no definition")
	}

	p.logger.Debug(fmt.Sprintf("Registered %s %s", entry.Kind, def.DisplayName()),
		logger.WithField("resource", entry.Resource),
		logger.WithField("line", entry.Line))
	return def, nil
}
