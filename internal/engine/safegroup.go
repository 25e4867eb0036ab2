package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/dmruntime/dmruntime/pkg/logger"
)

// SafeGroup runs activations and teardowns of several modules on an
// errgroup. A panic in one module's work is recovered and returned as that
// module's error so that the remaining scopes are still processed.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a SafeGroup bound to ctx
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{
		group:  g,
		logger: log,
	}, ctx
}

// Go runs fn with panic recovery
func (sg *SafeGroup) Go(fn func() error) {
	sg.GoModule("", fn)
}

// GoModule runs fn on behalf of the named module. A recovered panic is
// logged with the module and its stack and reported as
// "module <name>: goroutine panic: <value>".
func (sg *SafeGroup) GoModule(module string, fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log := sg.logger
			if module != "" {
				log = log.WithModule(module)
			}
			log.Error("Recovered panic while processing module scope",
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))

			if module == "" {
				err = fmt.Errorf("goroutine panic: %v", r)
				return
			}
			err = fmt.Errorf("module %s: goroutine panic: %v", module, r)
		}()

		return fn()
	})
}

// SetLimit bounds the number of modules processed at once
func (sg *SafeGroup) SetLimit(n int) {
	sg.group.SetLimit(n)
}

// Wait blocks until every module is processed and returns the first error
func (sg *SafeGroup) Wait() (err error) {
	defer func() {
		if r := recover(); r != nil {
			sg.logger.Error("Panic while waiting for module scopes",
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))
			err = fmt.Errorf("wait panic: %v", r)
		}
	}()

	return sg.group.Wait()
}
