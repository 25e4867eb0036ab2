// Package engine provides the component lifecycle orchestrator.
//
// The Runtime reacts to module activation and deactivation. On activation it
// locates the descriptors a module (and its fragments) declares, creates the
// module's scope on the first descriptor that opens, and parses every
// descriptor into it. On deactivation and shutdown it removes every component
// of the scope and forgets it.
//
// The implementation is split across:
//   - runtime.go: lifecycle entry points
//   - registry.go: module to scope registry
//   - factory.go: dependency injection factory
//   - safegroup.go: panic-safe bounded concurrency
//   - errors.go: invariant violations
package engine
