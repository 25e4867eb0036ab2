// Package locator resolves the descriptor resources a module declares
package locator

import (
	"fmt"
	"strings"

	"github.com/dmruntime/dmruntime/pkg/descriptor"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// DefaultHeader is the module header listing descriptor paths
const DefaultHeader = "Component-Descriptors"

// Locator reads the descriptor header of modules and resolves its paths
type Locator struct {
	modules interfaces.ModuleSystem
	header  string
	logger  logger.Logger
}

// New creates a new locator reading header (DefaultHeader when empty)
func New(modules interfaces.ModuleSystem, header string, log logger.Logger) *Locator {
	if header == "" {
		header = DefaultHeader
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Locator{
		modules: modules,
		header:  header,
		logger:  log,
	}
}

// Header returns the header name this locator reads
func (l *Locator) Header() string {
	return l.header
}

// Locate returns the descriptor locations declared by mod alone.
//
// Unresolvable paths are logged and reported in the returned errors; they do
// not prevent the remaining paths from being located.
func (l *Locator) Locate(mod types.Module) ([]types.DescriptorLocation, []error) {
	value, ok := l.modules.Header(mod, l.header)
	if !ok {
		return nil, nil
	}

	var (
		locations []types.DescriptorLocation
		errs      []error
	)
	for _, path := range SplitHeader(value) {
		loc, found := l.modules.ResolveResource(mod, path)
		if !found {
			err := fmt.Errorf("%w: %s in module %s", descriptor.ErrResourceNotFound, path, mod.SymbolicName())
			l.logger.Error("Runtime: component descriptor not found",
				logger.WithField("module", mod.SymbolicName()),
				logger.WithField("path", path))
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}
	return locations, errs
}

// LocateForActivation returns the locations of mod followed by those of each
// attached fragment, in fragment order
func (l *Locator) LocateForActivation(mod types.Module) ([]types.DescriptorLocation, []error) {
	locations, errs := l.Locate(mod)

	for _, fragment := range l.modules.Fragments(mod) {
		fragLocations, fragErrs := l.Locate(fragment)
		locations = append(locations, fragLocations...)
		errs = append(errs, fragErrs...)
	}

	if len(locations) > 0 {
		l.logger.Debug(fmt.Sprintf("Located %d descriptor(s)", len(locations)),
			logger.WithField("module", mod.SymbolicName()))
	}
	return locations, errs
}

// SplitHeader splits a comma-separated header value into trimmed, non-empty paths
func SplitHeader(value string) []string {
	var paths []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
