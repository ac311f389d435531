package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// runner is the slice of Engine the scheduler needs.
type runner interface {
	SyncIncremental(ctx context.Context) (*Result, error)
}

// Scheduler triggers an incremental sync on a fixed interval. Its lifetime
// is tied to the process: Start launches the loop, Stop tears it down and
// waits for it to exit. A tick that lands while a manual run holds the
// engine is skipped, not queued.
type Scheduler struct {
	engine   runner
	interval time.Duration
	log      *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a Scheduler. The default interval is 15 minutes.
func NewScheduler(engine runner, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic loop in a goroutine.
func (s *Scheduler) Start() {
	s.log.Info("sync scheduler starting", "interval", s.interval.String())
	go s.loop()
}

// Stop signals the loop to exit and waits for it.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	s.log.Info("sync scheduler stopped")
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			result, err := s.engine.SyncIncremental(context.Background())
			if errors.Is(err, ErrSyncInProgress) {
				s.log.Info("scheduled sync skipped, another run in progress")
				continue
			}
			if err != nil {
				s.log.Error("scheduled sync failed", "error", err)
				continue
			}
			s.log.Info("scheduled sync complete",
				"run_id", result.RunID, "imported", result.Imported, "errors", len(result.Errors))
		}
	}
}
