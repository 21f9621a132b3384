package services

import (
	"testing"
	"time"
)

func TestNewSyncScheduler_Validation(t *testing.T) {
	source := &fakeSource{}
	svc, _ := newTestService(t, source)

	if _, err := NewSyncScheduler(svc, 0, SyncModeInterval, ""); err == nil {
		t.Error("expected error for non-positive interval")
	}
	if _, err := NewSyncScheduler(svc, time.Minute, "sometimes", ""); err == nil {
		t.Error("expected error for unknown mode")
	}
	if _, err := NewSyncScheduler(svc, time.Minute, SyncModeInterval, "not a cron"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if _, err := NewSyncScheduler(svc, time.Minute, "", "*/5 * * * *"); err != nil {
		t.Errorf("valid cron rejected: %v", err)
	}
}

func TestSyncScheduler_DelayModeRunsPasses(t *testing.T) {
	source := &fakeSource{}
	svc, _ := newTestService(t, source)

	sched, err := NewSyncScheduler(svc, 10*time.Millisecond, SyncModeDelay, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for source.commandLoads.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("scheduler never ran two passes")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := sched.Stop(); err != nil {
		t.Fatal(err)
	}

	// No new passes after Stop
	settled := source.commandLoads.Load()
	time.Sleep(50 * time.Millisecond)
	if source.commandLoads.Load() != settled {
		t.Error("scheduler kept running after Stop")
	}
}

func TestSyncScheduler_StartStopAreIdempotent(t *testing.T) {
	source := &fakeSource{}
	svc, _ := newTestService(t, source)

	sched, err := NewSyncScheduler(svc, time.Hour, SyncModeInterval, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(); err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(); err != nil {
		t.Errorf("second Start must be a no-op, got %v", err)
	}
	if err := sched.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := sched.Stop(); err != nil {
		t.Errorf("second Stop must be a no-op, got %v", err)
	}
}
