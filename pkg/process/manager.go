// Package process provides process lifecycle and signal handling
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmruntime/dmruntime/pkg/logger"
)

// Manager handles process lifecycle and signals
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	signals          []os.Signal
	done             chan struct{}
	doneOnce         sync.Once
	stop             chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

// NewManager creates a new process manager reacting to SIGINT, SIGTERM and SIGHUP
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		logger:           log,
		shutdownHandlers: make([]func(), 0),
		signals:          []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP},
		done:             make(chan struct{}),
	}
}

// RegisterShutdownHandler adds a shutdown handler. Handlers run in reverse
// registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start starts the process manager with the given context.
// Shutdown runs when ctx is done or a signal arrives.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, m.signals...)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-ctx.Done():
			m.handleShutdown()
		case sig := <-sigChan:
			m.logger.Info("Received signal", logger.WithField("signal", sig))
			m.handleShutdown()
		case <-stop:
		}
	}()
}

// Stop stops the process manager without running the shutdown handlers
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
}

// Done is closed once the shutdown handlers have run
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Private methods

func (m *Manager) handleShutdown() {
	m.logger.Info("Initiating graceful shutdown...")

	m.mu.Lock()
	handlers := make([]func(), len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.running = false
	m.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}

	m.doneOnce.Do(func() { close(m.done) })
}

// IsProcessAlive reports whether a process with pid exists
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
