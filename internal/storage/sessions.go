package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/meltforce/repsync/internal/models"
)

// ImportPage upserts a batch of normalized sessions in a single
// transaction. Either every session in the batch is committed or none is,
// so a crash mid-page never leaves a half-written session subtree.
// Returns the number of sessions upserted.
func (db *DB) ImportPage(ctx context.Context, bundles []models.SessionBundle) (int, error) {
	if len(bundles) == 0 {
		return 0, nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range bundles {
		if err := replaceSession(ctx, tx, b); err != nil {
			return 0, fmt.Errorf("upserting session %s: %w", b.Session.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing import transaction: %w", err)
	}
	return len(bundles), nil
}

// replaceSession writes one session and its subtree. The session scalars
// are upserted in place; the instance/set subtree is deleted and reinserted
// wholesale, so repeated imports of the same remote data converge on an
// identical local state and remote edits always win.
func replaceSession(ctx context.Context, tx pgx.Tx, b models.SessionBundle) error {
	s := b.Session
	_, err := tx.Exec(ctx,
		`INSERT INTO sessions (id, title, start_time, end_time, notes)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title, start_time = EXCLUDED.start_time,
		   end_time = EXCLUDED.end_time, notes = EXCLUDED.notes`,
		s.ID, s.Title, s.StartTime, s.EndTime, s.Notes)
	if err != nil {
		return fmt.Errorf("upserting session row: %w", err)
	}

	for _, ex := range b.Exercises {
		// Latest write wins on name so remote renames propagate.
		_, err := tx.Exec(ctx,
			`INSERT INTO exercises (id, name) VALUES ($1,$2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			ex.ID, ex.Name)
		if err != nil {
			return fmt.Errorf("upserting exercise %s: %w", ex.ID, err)
		}
	}

	// Set rows go with their instances via ON DELETE CASCADE.
	if _, err := tx.Exec(ctx,
		`DELETE FROM session_exercises WHERE session_id = $1`, s.ID); err != nil {
		return fmt.Errorf("clearing session subtree: %w", err)
	}

	for _, inst := range b.Instances {
		var instanceID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO session_exercises (session_id, exercise_id, position)
			 VALUES ($1,$2,$3) RETURNING id`,
			s.ID, inst.ExerciseID, inst.Position).Scan(&instanceID)
		if err != nil {
			return fmt.Errorf("inserting exercise instance: %w", err)
		}

		if err := insertSets(ctx, tx, instanceID, inst.Sets); err != nil {
			return err
		}
	}

	return nil
}

// insertSets batch-inserts the sets for one exercise instance.
func insertSets(ctx context.Context, tx pgx.Tx, instanceID int64, sets []models.SetRow) error {
	if len(sets) == 0 {
		return nil
	}

	query := `INSERT INTO set_entries (session_exercise_id, set_number, weight_kg, reps, rpe) VALUES `
	args := make([]any, 0, len(sets)*5)
	valueStrings := make([]string, 0, len(sets))

	for i, set := range sets {
		base := i * 5
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, instanceID, set.SetNumber, set.WeightKg, set.Reps, set.RPE)
	}

	if _, err := tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
		return fmt.Errorf("inserting set entries: %w", err)
	}
	return nil
}

// ResetAll clears all four tables in one transaction. The sync-run journal
// is deliberately left intact so the reset itself stays auditable.
func (db *DB) ResetAll(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning reset transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"set_entries", "session_exercises", "exercises", "sessions"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reset: %w", err)
	}
	return nil
}

// GetSession retrieves a single session row by id.
func (db *DB) GetSession(ctx context.Context, id string) (*models.SessionRow, error) {
	var s models.SessionRow
	err := db.Pool.QueryRow(ctx,
		`SELECT id, title, start_time, end_time, notes FROM sessions WHERE id = $1`,
		id).Scan(&s.ID, &s.Title, &s.StartTime, &s.EndTime, &s.Notes)
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, err)
	}
	return &s, nil
}

// QuerySessions retrieves session rows ordered by start time descending.
func (db *DB) QuerySessions(ctx context.Context, limit int) ([]models.SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, title, start_time, end_time, notes
		 FROM sessions ORDER BY start_time DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		var s models.SessionRow
		if err := rows.Scan(&s.ID, &s.Title, &s.StartTime, &s.EndTime, &s.Notes); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
