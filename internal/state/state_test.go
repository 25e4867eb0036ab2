package state_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmruntime/dmruntime/internal/state"
	"github.com/dmruntime/dmruntime/pkg/interfaces"
	"github.com/dmruntime/dmruntime/pkg/types"
)

func activeReport(module string, components int, failures ...string) interfaces.ModuleReport {
	return interfaces.ModuleReport{
		Module:      module,
		Version:     "1.0.0",
		Status:      types.ModuleStatusActive,
		Components:  components,
		Descriptors: []string{"dm/components.txt"},
		Failures:    failures,
		Duration:    5 * time.Millisecond,
	}
}

func TestStateManager_RecordModule(t *testing.T) {
	tmpDir := t.TempDir()
	sm := state.NewStateManager(tmpDir, nil)

	if err := sm.RecordModule(activeReport("com.example.greeter", 3)); err != nil {
		t.Fatalf("failed to record module: %v", err)
	}

	s, err := sm.ReadState("com.example.greeter")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}

	if s.Status != types.ModuleStatusActive {
		t.Errorf("expected active status, got %s", s.Status)
	}
	if s.Components != 3 {
		t.Errorf("expected 3 components, got %d", s.Components)
	}
	if s.ActivationCount != 1 {
		t.Errorf("expected activation count 1, got %d", s.ActivationCount)
	}
	if s.ProcessID != os.Getpid() {
		t.Errorf("expected current PID, got %d", s.ProcessID)
	}

	stateFile := filepath.Join(tmpDir, "com.example.greeter.json")
	if _, err := os.Stat(stateFile); os.IsNotExist(err) {
		t.Error("state file was not created")
	}
}

func TestStateManager_RecordModule_MissingName(t *testing.T) {
	sm := state.NewStateManager(t.TempDir(), nil)

	if err := sm.RecordModule(interfaces.ModuleReport{}); err == nil {
		t.Error("expected error for report without module")
	}
}

func TestStateManager_Deactivation(t *testing.T) {
	sm := state.NewStateManager(t.TempDir(), nil)

	if err := sm.RecordModule(activeReport("mod", 2, "dm/bad.txt: boom")); err != nil {
		t.Fatal(err)
	}
	err := sm.RecordModule(interfaces.ModuleReport{
		Module:     "mod",
		Status:     types.ModuleStatusInactive,
		Components: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	s, err := sm.ReadState("mod")
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != types.ModuleStatusInactive {
		t.Errorf("expected inactive status, got %s", s.Status)
	}
	if s.Components != 0 {
		t.Errorf("expected no live components, got %d", s.Components)
	}
	if s.FailureCount != 1 || len(s.LastFailures) != 1 {
		t.Errorf("expected failures of the last activation to be kept, got %d / %v", s.FailureCount, s.LastFailures)
	}
}

func TestStateManager_ReadStateFromDisk(t *testing.T) {
	tmpDir := t.TempDir()

	writer := state.NewStateManager(tmpDir, nil)
	if err := writer.RecordModule(activeReport("mod", 1)); err != nil {
		t.Fatal(err)
	}

	// A fresh manager has nothing cached and reads the file
	reader := state.NewStateManager(tmpDir, nil)
	s, err := reader.ReadState("mod")
	if err != nil {
		t.Fatalf("failed to read state: %v", err)
	}
	if s.Components != 1 {
		t.Errorf("expected 1 component, got %d", s.Components)
	}

	if _, err := reader.ReadState("nonexistent"); err == nil {
		t.Error("expected error reading non-existent state")
	}

	// Counters continue across managers
	if err := reader.RecordModule(activeReport("mod", 1)); err != nil {
		t.Fatal(err)
	}
	s, _ = reader.ReadState("mod")
	if s.ActivationCount != 2 {
		t.Errorf("expected activation count 2, got %d", s.ActivationCount)
	}
}

func TestStateManager_RemoveState(t *testing.T) {
	tmpDir := t.TempDir()
	sm := state.NewStateManager(tmpDir, nil)

	if err := sm.RecordModule(activeReport("mod", 1)); err != nil {
		t.Fatal(err)
	}
	if err := sm.RemoveState("mod"); err != nil {
		t.Fatalf("failed to remove state: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "mod.json")); !os.IsNotExist(err) {
		t.Error("state file should be removed")
	}

	// Removing twice is fine
	if err := sm.RemoveState("mod"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStateManager_DiscoverStates(t *testing.T) {
	tmpDir := t.TempDir()
	sm := state.NewStateManager(tmpDir, nil)

	states, err := sm.DiscoverStates()
	if err != nil {
		t.Fatalf("unexpected error on empty dir: %v", err)
	}
	if len(states) != 0 {
		t.Errorf("expected no states, got %d", len(states))
	}

	for _, name := range []string{"a", "b", "c/d"} {
		if err := sm.RecordModule(activeReport(name, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	states, err = sm.DiscoverStates()
	if err != nil {
		t.Fatalf("failed to discover states: %v", err)
	}
	if len(states) != 3 {
		t.Errorf("expected 3 states, got %d", len(states))
	}
	if _, ok := states["c/d"]; !ok {
		t.Error("expected module name to survive file name sanitizing")
	}
}

func TestStateManager_Heartbeat(t *testing.T) {
	sm := state.NewStateManager(t.TempDir(), nil)
	if err := sm.RecordModule(activeReport("mod", 1)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sm.StartHeartbeat(ctx)
	sm.StartHeartbeat(ctx) // second start is a no-op
	sm.StopHeartbeat()
	sm.StopHeartbeat()

	s, err := sm.ReadState("mod")
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsLive() {
		t.Error("freshly recorded state should be live")
	}
}

func TestStateManager_Cleanup(t *testing.T) {
	tmpDir := t.TempDir()
	sm := state.NewStateManager(tmpDir, nil)
	if err := sm.RecordModule(activeReport("mod", 1)); err != nil {
		t.Fatal(err)
	}

	if err := sm.Cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	s, err := state.NewStateManager(tmpDir, nil).ReadState("mod")
	if err != nil {
		t.Fatal(err)
	}
	if s.ProcessID != 0 {
		t.Errorf("expected process id to be cleared, got %d", s.ProcessID)
	}
	if s.IsLive() {
		t.Error("state should not be live after cleanup")
	}
}

func TestStateManager_Concurrency(t *testing.T) {
	sm := state.NewStateManager(t.TempDir(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := sm.RecordModule(activeReport(fmt.Sprintf("mod-%d", i%3), j)); err != nil {
					t.Errorf("record failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	states, err := sm.DiscoverStates()
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 3 {
		t.Errorf("expected 3 states, got %d", len(states))
	}
}

func BenchmarkStateManager_RecordModule(b *testing.B) {
	sm := state.NewStateManager(b.TempDir(), nil)
	report := activeReport("bench", 4)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sm.RecordModule(report)
	}
}
