// Package syncer reconciles the remote workout history with local storage.
// It drives the remote client page by page, normalizes each payload, and
// persists one page per transaction, so a failure partway through a
// backfill keeps everything committed so far and a re-run converges on the
// same state.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/repsync/internal/hevy"
	"github.com/meltforce/repsync/internal/models"
	"github.com/meltforce/repsync/internal/normalize"
	"github.com/meltforce/repsync/internal/storage"
)

// ErrSyncInProgress is returned when a run is requested while another run
// holds the engine. Requests are rejected, never queued: two interleaved
// upserts of the same session would corrupt the delete-then-reinsert step.
var ErrSyncInProgress = errors.New("sync already running")

// Run kinds as recorded in the journal.
const (
	KindIncremental = "incremental"
	KindFull        = "full"
	KindReset       = "reset"
)

// Fetcher retrieves one page of raw workout payloads from the remote API.
type Fetcher interface {
	FetchPage(ctx context.Context, page, pageSize int) ([]json.RawMessage, bool, error)
}

// Store is the persistence surface the engine writes through.
type Store interface {
	ImportPage(ctx context.Context, bundles []models.SessionBundle) (int, error)
	ResetAll(ctx context.Context) error
	InsertSyncRun(ctx context.Context, run storage.SyncRun) error
	UpdateSyncRun(ctx context.Context, run storage.SyncRun) error
}

// SeenCache lets a caller skip re-importing sessions whose raw payload is
// byte-identical to what was already imported. Purely an optimization: the
// upsert is idempotent with or without it.
type SeenCache interface {
	IsCurrent(sessionID, hash string) (bool, error)
	MarkCurrent(sessionID, hash string) error
	Clear() error
}

// Result is the outcome of one sync run.
type Result struct {
	RunID         uuid.UUID `json:"run_id"`
	Kind          string    `json:"kind"`
	Imported      int       `json:"imported"`
	Pages         int       `json:"pages"`
	Aborted       bool      `json:"aborted"`
	Reason        string    `json:"reason,omitempty"`
	TablesCleared bool      `json:"tables_cleared"`
	Errors        []string  `json:"errors,omitempty"`
}

// Engine orchestrates sync runs. At most one run executes at a time; the
// exclusion lock is owned here, not by callers.
type Engine struct {
	client   Fetcher
	store    Store
	seen     SeenCache // optional
	log      *slog.Logger
	pageSize int
	maxIncr  int // page bound for incremental runs

	mu sync.Mutex
}

// New creates an Engine. pageSize is the remote page size; incrementalPages
// bounds how many recent pages an incremental run fetches.
func New(client Fetcher, store Store, pageSize, incrementalPages int, log *slog.Logger) *Engine {
	if pageSize <= 0 {
		pageSize = 10
	}
	if incrementalPages <= 0 {
		incrementalPages = 2
	}
	return &Engine{
		client:   client,
		store:    store,
		log:      log,
		pageSize: pageSize,
		maxIncr:  incrementalPages,
	}
}

// SetSeenCache installs an optional unchanged-payload skip cache.
func (e *Engine) SetSeenCache(c SeenCache) {
	e.seen = c
}

// SyncIncremental fetches the most recent page(s) and upserts them.
func (e *Engine) SyncIncremental(ctx context.Context) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.mu.Unlock()
	return e.run(ctx, KindIncremental, e.maxIncr, false), nil
}

// SyncFull paginates from the start until the remote signals no more pages.
func (e *Engine) SyncFull(ctx context.Context) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.mu.Unlock()
	return e.run(ctx, KindFull, 0, false), nil
}

// ResetAndResync clears all four tables transactionally, then runs a full
// backfill. If the backfill aborts partway the cleared state keeps whatever
// was re-imported; that is reported as a partial success, not a failure.
func (e *Engine) ResetAndResync(ctx context.Context) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.mu.Unlock()
	return e.run(ctx, KindReset, 0, true), nil
}

// run executes one sync run while the exclusion lock is held.
// maxPages == 0 means paginate until the remote is exhausted.
func (e *Engine) run(ctx context.Context, kind string, maxPages int, reset bool) *Result {
	result := &Result{RunID: uuid.New(), Kind: kind}
	started := time.Now()

	if err := e.store.InsertSyncRun(ctx, storage.SyncRun{
		ID:        result.RunID,
		Kind:      kind,
		Status:    "running",
		StartedAt: started,
	}); err != nil {
		e.log.Error("failed to record sync run", "run_id", result.RunID, "error", err)
	}

	if reset {
		if err := e.store.ResetAll(ctx); err != nil {
			result.Aborted = true
			result.Reason = fmt.Sprintf("reset failed: %v", err)
			e.finalize(ctx, result, started)
			return result
		}
		result.TablesCleared = true
		if e.seen != nil {
			// The cache must not survive a reset: a stale entry would
			// make the resync skip a session the clear just removed.
			if err := e.seen.Clear(); err != nil {
				e.log.Warn("failed to clear seen cache", "error", err)
			}
		}
	}

	for page := 1; ; page++ {
		items, hasMore, err := e.client.FetchPage(ctx, page, e.pageSize)
		if err != nil {
			result.Aborted = true
			result.Reason = err.Error()
			e.log.Warn("sync aborted", "run_id", result.RunID, "page", page, "error", err)
			break
		}

		bundles, marks := e.normalizePage(items, result)
		n, err := e.store.ImportPage(ctx, bundles)
		if err != nil {
			result.Aborted = true
			result.Reason = err.Error()
			e.log.Error("page import failed", "run_id", result.RunID, "page", page, "error", err)
			break
		}
		result.Imported += n
		result.Pages++

		// Only mark payloads as seen once their page has committed.
		for id, hash := range marks {
			if err := e.seen.MarkCurrent(id, hash); err != nil {
				e.log.Warn("failed to mark session seen", "session", id, "error", err)
			}
		}

		if !hasMore || (maxPages > 0 && page >= maxPages) {
			break
		}
	}

	e.finalize(ctx, result, started)
	return result
}

// normalizePage converts raw payloads into bundles, collecting per-record
// failures into the result instead of failing the page. Returns the
// bundles to persist plus the seen-cache marks to apply after commit.
func (e *Engine) normalizePage(items []json.RawMessage, result *Result) ([]models.SessionBundle, map[string]string) {
	var bundles []models.SessionBundle
	marks := map[string]string{}

	for _, raw := range items {
		bundle, err := normalize.Session(raw)
		if err != nil {
			var protoErr *hevy.ProtocolError
			var valErr *hevy.ValidationError
			if errors.As(err, &protoErr) || errors.As(err, &valErr) {
				result.Errors = append(result.Errors, err.Error())
				e.log.Warn("skipping session", "error", err)
				continue
			}
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		if e.seen != nil {
			hash := payloadHash(raw)
			current, err := e.seen.IsCurrent(bundle.Session.ID, hash)
			if err != nil {
				e.log.Warn("seen cache lookup failed", "session", bundle.Session.ID, "error", err)
			} else if current {
				continue
			}
			marks[bundle.Session.ID] = hash
		}

		bundles = append(bundles, *bundle)
	}
	return bundles, marks
}

// finalize writes the run's terminal journal row and logs the outcome.
func (e *Engine) finalize(ctx context.Context, result *Result, started time.Time) {
	status := "success"
	switch {
	case result.Aborted && result.Pages == 0 && !result.TablesCleared:
		status = "error"
	case result.Aborted:
		status = "partial"
	}

	finished := time.Now()
	var reason *string
	if result.Reason != "" {
		reason = &result.Reason
	}
	if err := e.store.UpdateSyncRun(ctx, storage.SyncRun{
		ID:            result.RunID,
		Kind:          result.Kind,
		Status:        status,
		StartedAt:     started,
		FinishedAt:    &finished,
		Imported:      result.Imported,
		Pages:         result.Pages,
		TablesCleared: result.TablesCleared,
		ErrorCount:    len(result.Errors),
		Reason:        reason,
	}); err != nil {
		e.log.Error("failed to finalize sync run", "run_id", result.RunID, "error", err)
	}

	e.log.Info("sync run finished",
		"run_id", result.RunID,
		"kind", result.Kind,
		"status", status,
		"imported", result.Imported,
		"pages", result.Pages,
		"errors", len(result.Errors),
		"duration", time.Since(started).String(),
	)
}

// payloadHash fingerprints a raw session payload for the seen cache.
func payloadHash(raw json.RawMessage) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
