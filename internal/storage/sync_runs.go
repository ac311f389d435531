package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncRun records a single sync operation's outcome in the journal.
type SyncRun struct {
	ID            uuid.UUID  `json:"id"`
	Kind          string     `json:"kind"` // "incremental", "full", "reset"
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	Imported      int        `json:"imported"`
	Pages         int        `json:"pages"`
	TablesCleared bool       `json:"tables_cleared"`
	ErrorCount    int        `json:"error_count"`
	Reason        *string    `json:"reason"`
}

// InsertSyncRun creates a journal row for a run that just started.
func (db *DB) InsertSyncRun(ctx context.Context, run SyncRun) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO sync_runs (id, kind, status, started_at, imported, pages, tables_cleared, error_count, reason)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		run.ID, run.Kind, run.Status, run.StartedAt,
		run.Imported, run.Pages, run.TablesCleared, run.ErrorCount, run.Reason)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	return nil
}

// UpdateSyncRun records a run's final state (typically running → success,
// partial, or error).
func (db *DB) UpdateSyncRun(ctx context.Context, run SyncRun) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE sync_runs SET
		 status = $2, finished_at = $3, imported = $4, pages = $5,
		 tables_cleared = $6, error_count = $7, reason = $8
		 WHERE id = $1`,
		run.ID, run.Status, run.FinishedAt, run.Imported, run.Pages,
		run.TablesCleared, run.ErrorCount, run.Reason)
	if err != nil {
		return fmt.Errorf("updating sync run %s: %w", run.ID, err)
	}
	return nil
}

// QuerySyncRuns returns the most recent sync runs.
func (db *DB) QuerySyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, kind, status, started_at, finished_at, imported, pages, tables_cleared, error_count, reason
		 FROM sync_runs
		 ORDER BY started_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var result []SyncRun
	for rows.Next() {
		var r SyncRun
		if err := rows.Scan(&r.ID, &r.Kind, &r.Status, &r.StartedAt, &r.FinishedAt,
			&r.Imported, &r.Pages, &r.TablesCleared, &r.ErrorCount, &r.Reason); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
