package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/meltforce/repsync/internal/hevy"
	"github.com/meltforce/repsync/internal/models"
	"github.com/meltforce/repsync/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawSession(id string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id": %q, "start_time": "2026-03-02T18:00:00Z", "exercises": []}`, id))
}

// fakeFetcher serves a fixed sequence of pages, optionally failing at a
// given page, and can block to hold the engine's lock open.
type fakeFetcher struct {
	pages      [][]json.RawMessage
	failAt     int   // 1-based page to fail on; 0 = never
	failErr    error // error returned at failAt
	calls      int
	blockUntil chan struct{} // if set, FetchPage waits on it
	started    chan struct{} // if set, closed on first call
}

func (f *fakeFetcher) FetchPage(ctx context.Context, page, pageSize int) ([]json.RawMessage, bool, error) {
	f.calls++
	if f.started != nil && f.calls == 1 {
		close(f.started)
	}
	if f.blockUntil != nil {
		<-f.blockUntil
	}
	if f.failAt != 0 && page == f.failAt {
		return nil, false, f.failErr
	}
	if page > len(f.pages) {
		return nil, false, nil
	}
	return f.pages[page-1], page < len(f.pages), nil
}

// fakeStore records writes in memory.
type fakeStore struct {
	mu        sync.Mutex
	imported  []string
	resets    int
	resetErr  error
	importErr error // returned on the importErrAt-th ImportPage call
	importErrAt int
	importCalls int
	runs      map[string]storage.SyncRun
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: map[string]storage.SyncRun{}}
}

func (s *fakeStore) ImportPage(ctx context.Context, bundles []models.SessionBundle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.importCalls++
	if s.importErr != nil && s.importCalls == s.importErrAt {
		return 0, s.importErr
	}
	for _, b := range bundles {
		s.imported = append(s.imported, b.Session.ID)
	}
	return len(bundles), nil
}

func (s *fakeStore) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetErr != nil {
		return s.resetErr
	}
	s.resets++
	s.imported = nil
	return nil
}

func (s *fakeStore) InsertSyncRun(ctx context.Context, run storage.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID.String()] = run
	return nil
}

func (s *fakeStore) UpdateSyncRun(ctx context.Context, run storage.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID.String()] = run
	return nil
}

func (s *fakeStore) runStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id].Status
}

// fakeSeen is an in-memory SeenCache.
type fakeSeen struct {
	entries map[string]string
	cleared int
}

func newFakeSeen() *fakeSeen { return &fakeSeen{entries: map[string]string{}} }

func (c *fakeSeen) IsCurrent(sessionID, hash string) (bool, error) {
	return c.entries[sessionID] == hash, nil
}

func (c *fakeSeen) MarkCurrent(sessionID, hash string) error {
	c.entries[sessionID] = hash
	return nil
}

func (c *fakeSeen) Clear() error {
	c.entries = map[string]string{}
	c.cleared++
	return nil
}

// TestSyncFullImportsAllPages verifies a full sync walks every page and the
// journal records a success with the right counters.
func TestSyncFullImportsAllPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]json.RawMessage{
		{rawSession("a"), rawSession("b")},
		{rawSession("c")},
	}}
	store := newFakeStore()
	engine := New(fetcher, store, 10, 2, testLogger())

	result, err := engine.SyncFull(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Imported != 3 || result.Pages != 2 {
		t.Errorf("imported=%d pages=%d, want 3 and 2", result.Imported, result.Pages)
	}
	if result.Aborted {
		t.Errorf("aborted with reason %q, want clean run", result.Reason)
	}
	if got := store.runStatus(result.RunID.String()); got != "success" {
		t.Errorf("journal status = %q, want success", got)
	}
	if len(store.imported) != 3 {
		t.Errorf("store has %d sessions, want 3", len(store.imported))
	}
}

// TestSyncIncrementalPageBound verifies an incremental run stops at its page
// bound even when the remote reports more pages.
func TestSyncIncrementalPageBound(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]json.RawMessage{
		{rawSession("a")}, {rawSession("b")}, {rawSession("c")}, {rawSession("d")},
	}}
	store := newFakeStore()
	engine := New(fetcher, store, 10, 2, testLogger())

	result, err := engine.SyncIncremental(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Pages != 2 || result.Imported != 2 {
		t.Errorf("pages=%d imported=%d, want 2 and 2", result.Pages, result.Imported)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetcher called %d times, want 2", fetcher.calls)
	}
}

// TestTransientFailureKeepsCommittedPages verifies a mid-backfill transient
// failure aborts the remaining pages but keeps everything already committed,
// and the journal records a partial run with the failure reason.
func TestTransientFailureKeepsCommittedPages(t *testing.T) {
	fetcher := &fakeFetcher{
		pages:   [][]json.RawMessage{{rawSession("a")}, {rawSession("b")}, {rawSession("c")}},
		failAt:  2,
		failErr: &hevy.TransientError{Status: 503},
	}
	store := newFakeStore()
	engine := New(fetcher, store, 10, 0, testLogger())

	result, err := engine.SyncFull(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Aborted {
		t.Fatal("expected aborted run")
	}
	if result.Pages != 1 || result.Imported != 1 {
		t.Errorf("pages=%d imported=%d, want 1 and 1 (page one committed)", result.Pages, result.Imported)
	}
	if len(store.imported) != 1 || store.imported[0] != "a" {
		t.Errorf("store has %v, want [a]", store.imported)
	}
	if result.Reason == "" {
		t.Error("aborted run has no reason")
	}
	if got := store.runStatus(result.RunID.String()); got != "partial" {
		t.Errorf("journal status = %q, want partial", got)
	}
}

// TestFailureOnFirstPageIsError verifies a run that commits nothing is
// recorded as an error, not a partial.
func TestFailureOnFirstPageIsError(t *testing.T) {
	fetcher := &fakeFetcher{failAt: 1, failErr: &hevy.AuthError{Status: 401}}
	store := newFakeStore()
	engine := New(fetcher, store, 10, 0, testLogger())

	result, err := engine.SyncFull(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.runStatus(result.RunID.String()); got != "error" {
		t.Errorf("journal status = %q, want error", got)
	}
}

// TestMalformedRecordSkipped verifies a bad record in a page is skipped and
// counted while the rest of the page imports normally.
func TestMalformedRecordSkipped(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]json.RawMessage{{
		rawSession("good-1"),
		json.RawMessage(`{"id": "bad", "start_time": "2026-03-02T18:00:00Z"}`), // no exercise list
		rawSession("good-2"),
	}}}
	store := newFakeStore()
	engine := New(fetcher, store, 10, 0, testLogger())

	result, err := engine.SyncFull(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("imported = %d, want 2", result.Imported)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("got %d record errors, want 1", len(result.Errors))
	}
	if result.Aborted {
		t.Error("record-level failure must not abort the run")
	}
	if got := store.runStatus(result.RunID.String()); got != "success" {
		t.Errorf("journal status = %q, want success", got)
	}
}

// TestImportFailureAborts verifies a storage failure aborts the run with the
// pages before it intact.
func TestImportFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]json.RawMessage{
		{rawSession("a")}, {rawSession("b")},
	}}
	store := newFakeStore()
	store.importErr = errors.New("connection lost")
	store.importErrAt = 2

	engine := New(fetcher, store, 10, 0, testLogger())
	result, err := engine.SyncFull(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Aborted || result.Pages != 1 {
		t.Errorf("aborted=%v pages=%d, want aborted after one committed page", result.Aborted, result.Pages)
	}
}

// TestConcurrentSyncRejected verifies a second request while a run holds the
// engine returns ErrSyncInProgress instead of queueing.
func TestConcurrentSyncRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	fetcher := &fakeFetcher{
		pages:      [][]json.RawMessage{{rawSession("a")}},
		blockUntil: release,
		started:    started,
	}
	store := newFakeStore()
	engine := New(fetcher, store, 10, 0, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.SyncFull(context.Background())
	}()
	<-started

	if _, err := engine.SyncIncremental(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("incremental during run: err = %v, want ErrSyncInProgress", err)
	}
	if _, err := engine.ResetAndResync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("reset during run: err = %v, want ErrSyncInProgress", err)
	}

	close(release)
	<-done

	// With the run finished the engine accepts requests again.
	if _, err := engine.SyncIncremental(context.Background()); err != nil {
		t.Errorf("sync after release: unexpected error %v", err)
	}
}

// TestResetClearsTablesAndCache verifies a reset wipes storage and the seen
// cache before re-importing. A surviving cache entry would make the resync
// skip sessions the reset just removed.
func TestResetClearsTablesAndCache(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]json.RawMessage{{rawSession("a")}}}
	store := newFakeStore()
	seen := newFakeSeen()
	engine := New(fetcher, store, 10, 0, testLogger())
	engine.SetSeenCache(seen)

	// Prime the cache with a stale entry as if "a" had been imported before.
	if _, err := engine.SyncFull(context.Background()); err != nil {
		t.Fatalf("priming sync: %v", err)
	}
	if len(seen.entries) != 1 {
		t.Fatalf("cache has %d entries after priming, want 1", len(seen.entries))
	}

	result, err := engine.ResetAndResync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TablesCleared {
		t.Error("TablesCleared = false, want true")
	}
	if seen.cleared != 1 {
		t.Errorf("cache cleared %d times, want 1", seen.cleared)
	}
	if result.Imported != 1 {
		t.Errorf("imported = %d, want 1 (cache cleared, so session re-imports)", result.Imported)
	}
	if store.resets != 1 {
		t.Errorf("store reset %d times, want 1", store.resets)
	}
}

// TestResetFailureAborts verifies a failed clear aborts before any fetching.
func TestResetFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]json.RawMessage{{rawSession("a")}}}
	store := newFakeStore()
	store.resetErr = errors.New("lock timeout")
	engine := New(fetcher, store, 10, 0, testLogger())

	result, err := engine.ResetAndResync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Aborted {
		t.Fatal("expected aborted run")
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times after failed reset, want 0", fetcher.calls)
	}
	if got := store.runStatus(result.RunID.String()); got != "error" {
		t.Errorf("journal status = %q, want error", got)
	}
}

// TestSeenCacheSkipsUnchangedPayloads verifies a second sync of identical
// payloads imports nothing, and marks happen only after the page commits.
func TestSeenCacheSkipsUnchangedPayloads(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]json.RawMessage{{rawSession("a"), rawSession("b")}}}
	store := newFakeStore()
	seen := newFakeSeen()
	engine := New(fetcher, store, 10, 0, testLogger())
	engine.SetSeenCache(seen)

	first, err := engine.SyncFull(context.Background())
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.Imported != 2 {
		t.Fatalf("first sync imported %d, want 2", first.Imported)
	}

	second, err := engine.SyncFull(context.Background())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Imported != 0 {
		t.Errorf("second sync imported %d, want 0 (payloads unchanged)", second.Imported)
	}
}

// TestSeenCacheNotMarkedOnImportFailure verifies a failed page leaves no
// marks behind, so the next run retries those sessions.
func TestSeenCacheNotMarkedOnImportFailure(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]json.RawMessage{{rawSession("a")}}}
	store := newFakeStore()
	store.importErr = errors.New("connection lost")
	store.importErrAt = 1
	seen := newFakeSeen()
	engine := New(fetcher, store, 10, 0, testLogger())
	engine.SetSeenCache(seen)

	if _, err := engine.SyncFull(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen.entries) != 0 {
		t.Errorf("cache has %d entries after failed import, want 0", len(seen.entries))
	}
}
