package worker

import (
	"context"
	"testing"
	"time"
)

func TestSweeper_Lifecycle(t *testing.T) {
	store := newFakeSyncStore(records("b1", 1, 3)...)
	w := NewSyncWorker(store, fixedTables{now: testNow}, &fakeSheets{}, 10, nil)
	s := NewSweeper(w, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if s.IsRunning() {
		t.Fatal("sweeper should not be running initially")
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("expected error when starting a running sweeper")
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.syncedCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.syncedCount() != 3 {
		t.Fatalf("synced = %d, want 3", store.syncedCount())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("sweeper should be stopped")
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
