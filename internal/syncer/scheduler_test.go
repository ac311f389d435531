package syncer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// countingRunner records SyncIncremental calls and can return a fixed error.
type countingRunner struct {
	calls atomic.Int64
	err   error
}

func (r *countingRunner) SyncIncremental(ctx context.Context) (*Result, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &Result{RunID: uuid.New(), Kind: KindIncremental}, nil
}

// TestSchedulerTicks verifies the loop fires incremental syncs on the
// interval and stops cleanly.
func TestSchedulerTicks(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, 10*time.Millisecond, testLogger())
	s.Start()

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d syncs fired within deadline", runner.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()
}

// TestSchedulerStopHalts verifies no syncs fire after Stop returns.
func TestSchedulerStopHalts(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, 10*time.Millisecond, testLogger())
	s.Start()
	time.Sleep(25 * time.Millisecond)
	s.Stop()

	after := runner.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := runner.calls.Load(); got != after {
		t.Errorf("%d syncs fired after Stop", got-after)
	}
}

// TestSchedulerSurvivesBusyEngine verifies a tick landing while the engine
// is busy is skipped and the loop keeps running.
func TestSchedulerSurvivesBusyEngine(t *testing.T) {
	runner := &countingRunner{err: ErrSyncInProgress}
	s := NewScheduler(runner, 10*time.Millisecond, testLogger())
	s.Start()

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("loop stalled after %d busy ticks", runner.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()
}
