package descriptor

import (
	"errors"
	"fmt"

	"github.com/dmruntime/dmruntime/pkg/types"
)

// Sentinel errors for descriptor processing. All of them are recoverable:
// the runtime logs them and skips the affected path or descriptor.
var (
	// ErrResourceNotFound indicates a declared descriptor path does not resolve
	ErrResourceNotFound = errors.New("descriptor resource not found")

	// ErrDescriptorFormat indicates a malformed entry, unknown kind tag or
	// missing required key
	ErrDescriptorFormat = errors.New("descriptor format error")

	// ErrBuilder indicates a builder could not construct a definition from
	// otherwise well-formed input
	ErrBuilder = errors.New("component builder error")

	// ErrIO indicates a descriptor stream could not be opened or read
	ErrIO = errors.New("descriptor i/o error")
)

// FormatError describes a descriptor format problem with its full context
type FormatError struct {
	Module   string
	Resource string
	Line     int
	Content  string
	Tag      types.EntryKind
	Reason   string
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Tag != "" && e.Reason == "" {
		msg = fmt.Sprintf("unknown kind tag %q", e.Tag)
	}
	loc := e.Resource
	if loc == "" {
		loc = "descriptor"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Module != "" {
		loc = fmt.Sprintf("%s (module %s)", loc, e.Module)
	}
	if e.Content != "" {
		return fmt.Sprintf("%s: %s: %s: %q", ErrDescriptorFormat, loc, msg, e.Content)
	}
	return fmt.Sprintf("%s: %s: %s", ErrDescriptorFormat, loc, msg)
}

// Unwrap allows errors.Is(err, ErrDescriptorFormat)
func (e *FormatError) Unwrap() error {
	return ErrDescriptorFormat
}

// IsUnknownTag reports whether the error was caused by an unrecognized kind tag
func (e *FormatError) IsUnknownTag() bool {
	return e.Tag != "" && e.Reason == ""
}

// BuilderError wraps a failure of a builder or of the scope it registers into
type BuilderError struct {
	Module   string
	Resource string
	Kind     types.EntryKind
	Line     int
	Err      error
}

func (e *BuilderError) Error() string {
	return fmt.Sprintf("%s: %s entry at %s:%d (module %s): %v",
		ErrBuilder, e.Kind, e.Resource, e.Line, e.Module, e.Err)
}

// Is allows errors.Is(err, ErrBuilder)
func (e *BuilderError) Is(target error) bool {
	return target == ErrBuilder
}

func (e *BuilderError) Unwrap() error {
	return e.Err
}

// MissingKey creates the format error reported for a missing required key
func MissingKey(entry *types.DescriptorEntry, key string) *FormatError {
	return &FormatError{
		Line:    entry.Line,
		Content: string(entry.Kind),
		Reason:  fmt.Sprintf("%s entry is missing required key %q", entry.Kind, key),
	}
}

// InvalidValue creates the format error reported for a malformed value
func InvalidValue(entry *types.DescriptorEntry, key, value string, cause error) *FormatError {
	line := entry.Line
	for _, kv := range entry.Lines {
		if kv.Key == key && kv.Value == value {
			line = kv.Line
		}
	}
	reason := fmt.Sprintf("invalid value for %q", key)
	if cause != nil {
		reason = fmt.Sprintf("%s: %v", reason, cause)
	}
	return &FormatError{
		Line:    line,
		Content: key + "=" + value,
		Reason:  reason,
	}
}

// withSource fills in the module and resource of errors raised by builders,
// which do not know which resource they are reading
func withSource(err error, module, resource string, kind types.EntryKind, line int) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		if fe.Module == "" {
			fe.Module = module
		}
		if fe.Resource == "" {
			fe.Resource = resource
		}
		if fe.Line == 0 {
			fe.Line = line
		}
		return fe
	}

	var be *BuilderError
	if errors.As(err, &be) {
		if be.Module == "" {
			be.Module = module
		}
		if be.Resource == "" {
			be.Resource = resource
		}
		return be
	}

	return &BuilderError{
		Module:   module,
		Resource: resource,
		Kind:     kind,
		Line:     line,
		Err:      err,
	}
}
