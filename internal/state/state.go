// Package state provides persistent per-module status for the runtime
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/logger"
	"github.com/dmruntime/dmruntime/pkg/types"
)

// heartbeatInterval is how often live module states are touched
const heartbeatInterval = 10 * time.Second

// staleAfter is the heartbeat age after which a state is considered orphaned
const staleAfter = 30 * time.Second

// ModuleState represents the persistent state of a module
type ModuleState struct {
	Module          string             `json:"module"`
	Version         string             `json:"version,omitempty"`
	Status          types.ModuleStatus `json:"status"`
	Components      int                `json:"components"`
	Descriptors     []string           `json:"descriptors,omitempty"`
	LastFailures    []string           `json:"lastFailures,omitempty"`
	ActivationCount int                `json:"activationCount"`
	FailureCount    int                `json:"failureCount"`
	LastChange      time.Time          `json:"lastChange"`
	LastDuration    time.Duration      `json:"lastDuration,omitempty"`
	ProcessID       int                `json:"processId"`
	Heartbeat       time.Time          `json:"heartbeat"`
}

// IsLive reports whether the owning process refreshed the state recently
func (s *ModuleState) IsLive() bool {
	return s.ProcessID != 0 && time.Since(s.Heartbeat) <= staleAfter
}

// StateManager handles persistent state files
type StateManager struct {
	stateDir       string
	logger         logger.Logger
	mu             sync.RWMutex
	states         map[string]*ModuleState
	heartbeatStop  chan struct{}
	heartbeatTimer *time.Ticker
}

var _ interfaces.StateRecorder = (*StateManager)(nil)

// NewStateManager creates a new state manager writing into stateDir
func NewStateManager(stateDir string, log logger.Logger) *StateManager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &StateManager{
		stateDir: stateDir,
		logger:   log,
		states:   make(map[string]*ModuleState),
	}
}

// StateDir returns the directory holding the state files
func (sm *StateManager) StateDir() string {
	return sm.stateDir
}

// RecordModule merges report into the state of its module and persists it
func (sm *StateManager) RecordModule(report interfaces.ModuleReport) error {
	if report.Module == "" {
		return fmt.Errorf("module report without module name")
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	state, ok := sm.states[report.Module]
	if !ok {
		existing, err := sm.loadStateFile(report.Module)
		if err == nil && existing != nil {
			state = existing
		} else {
			state = &ModuleState{Module: report.Module}
		}
		sm.states[report.Module] = state
	}

	now := time.Now()
	state.Version = report.Version
	state.Status = report.Status
	state.Components = report.Components
	state.LastChange = now
	state.LastDuration = report.Duration
	state.Heartbeat = now
	state.ProcessID = os.Getpid()

	if report.Status == types.ModuleStatusActive {
		state.ActivationCount++
		state.Descriptors = report.Descriptors
		state.LastFailures = report.Failures
		state.FailureCount += len(report.Failures)
	} else {
		state.Components = 0
	}

	return sm.saveStateFile(state)
}

// ReadState reads the state for a module
func (sm *StateManager) ReadState(module string) (*ModuleState, error) {
	sm.mu.RLock()
	if state, ok := sm.states[module]; ok {
		copied := *state
		sm.mu.RUnlock()
		return &copied, nil
	}
	sm.mu.RUnlock()

	return sm.loadStateFile(module)
}

// RemoveState removes the state for a module
func (sm *StateManager) RemoveState(module string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, module)

	if err := os.Remove(sm.getStateFilePath(module)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// DiscoverStates finds all existing state files
func (sm *StateManager) DiscoverStates() (map[string]*ModuleState, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	states := make(map[string]*ModuleState)

	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		state, err := sm.readStateFile(filepath.Join(sm.stateDir, file.Name()))
		if err != nil {
			sm.logger.Warn("Failed to load state file",
				logger.WithField("file", file.Name()),
				logger.WithError(err))
			continue
		}
		states[state.Module] = state
	}

	return states, nil
}

// StartHeartbeat starts the heartbeat updater
func (sm *StateManager) StartHeartbeat(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		return
	}

	stop := make(chan struct{})
	ticker := time.NewTicker(heartbeatInterval)
	sm.heartbeatStop = stop
	sm.heartbeatTimer = ticker

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				sm.updateHeartbeats()
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat updater
func (sm *StateManager) StopHeartbeat() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.heartbeatTimer != nil {
		sm.heartbeatTimer.Stop()
		sm.heartbeatTimer = nil
	}

	if sm.heartbeatStop != nil {
		close(sm.heartbeatStop)
		sm.heartbeatStop = nil
	}
}

// Cleanup stops the heartbeat and releases every state owned by this process
func (sm *StateManager) Cleanup() error {
	sm.StopHeartbeat()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, state := range sm.states {
		state.ProcessID = 0
		if err := sm.saveStateFile(state); err != nil {
			sm.logger.Warn("Failed to save final state",
				logger.WithField("module", state.Module),
				logger.WithError(err))
		}
	}

	return nil
}

// Private methods

func (sm *StateManager) getStateFilePath(module string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(module)
	return filepath.Join(sm.stateDir, name+".json")
}

func (sm *StateManager) loadStateFile(module string) (*ModuleState, error) {
	return sm.readStateFile(sm.getStateFilePath(module))
}

func (sm *StateManager) readStateFile(path string) (*ModuleState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var state ModuleState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Module == "" {
		return nil, fmt.Errorf("state file without module name: %s", filepath.Base(path))
	}

	return &state, nil
}

func (sm *StateManager) saveStateFile(state *ModuleState) error {
	if err := os.MkdirAll(sm.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	stateFile := sm.getStateFilePath(state.Module)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically
	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

func (sm *StateManager) updateHeartbeats() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for _, state := range sm.states {
		if state.Status != types.ModuleStatusActive {
			continue
		}
		state.Heartbeat = now
		if err := sm.saveStateFile(state); err != nil {
			sm.logger.Debug("Failed to update heartbeat",
				logger.WithField("module", state.Module),
				logger.WithError(err))
		}
	}
}
