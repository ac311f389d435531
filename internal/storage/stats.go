package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/meltforce/repsync/internal/models"
)

// ExerciseSessions pairs an exercise with the number of distinct sessions
// it appears in. Counted via the instance table, never by scanning raw
// payloads, so inconsistently named legacy data cannot skew the count.
type ExerciseSessions struct {
	ExerciseID   string `json:"exercise_id"`
	Name         string `json:"name"`
	SessionCount int    `json:"session_count"`
}

// SessionStartTimes returns the start time of every stored session in
// ascending order. The statistics engine derives calendar aggregates
// (heatmap buckets, ISO-week streaks) from these in Go.
func (db *DB) SessionStartTimes(ctx context.Context) ([]time.Time, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT start_time FROM sessions ORDER BY start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying session start times: %w", err)
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning start time: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// ExerciseSessionCounts returns, for every exercise in the dimension table,
// how many distinct sessions contain at least one instance of it. Ordering
// is left to the caller.
func (db *DB) ExerciseSessionCounts(ctx context.Context) ([]ExerciseSessions, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT e.id, e.name, COUNT(DISTINCT se.session_id)::int
		 FROM exercises e
		 JOIN session_exercises se ON se.exercise_id = e.id
		 GROUP BY e.id, e.name`)
	if err != nil {
		return nil, fmt.Errorf("querying exercise session counts: %w", err)
	}
	defer rows.Close()

	var result []ExerciseSessions
	for rows.Next() {
		var es ExerciseSessions
		if err := rows.Scan(&es.ExerciseID, &es.Name, &es.SessionCount); err != nil {
			return nil, fmt.Errorf("scanning exercise session count: %w", err)
		}
		result = append(result, es)
	}
	return result, rows.Err()
}

// SetEntries returns every stored set. Volume totals are computed from
// these in Go so the nil-handling rule (missing weight or reps contributes
// zero, never an error) lives in tested code rather than in SQL.
func (db *DB) SetEntries(ctx context.Context) ([]models.SetRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT set_number, weight_kg, reps, rpe FROM set_entries`)
	if err != nil {
		return nil, fmt.Errorf("querying set entries: %w", err)
	}
	defer rows.Close()

	var result []models.SetRow
	for rows.Next() {
		var s models.SetRow
		if err := rows.Scan(&s.SetNumber, &s.WeightKg, &s.Reps, &s.RPE); err != nil {
			return nil, fmt.Errorf("scanning set entry: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
