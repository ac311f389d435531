// Package stats computes derived statistics from persisted session data.
// Everything here is read-only and computed on demand; a read during a
// running sync simply reflects whatever is committed at that moment.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/meltforce/repsync/internal/models"
	"github.com/meltforce/repsync/internal/storage"
)

// Source is the slice of the storage layer the engine reads from.
type Source interface {
	SessionStartTimes(ctx context.Context) ([]time.Time, error)
	ExerciseSessionCounts(ctx context.Context) ([]storage.ExerciseSessions, error)
	SetEntries(ctx context.Context) ([]models.SetRow, error)
}

// Summary holds the aggregate counters for the whole stored history.
type Summary struct {
	TotalSessions   int     `json:"total_sessions"`
	UniqueExercises int     `json:"unique_exercises"`
	TotalSets       int     `json:"total_sets"`
	TotalVolumeKg   float64 `json:"total_volume_kg"`
	ActiveWeeks     int     `json:"active_weeks"`
}

// HeatmapEntry is one calendar day in the activity heatmap.
type HeatmapEntry struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// StreakSummary holds the week-based streak counters.
type StreakSummary struct {
	CurrentWeeks int `json:"current_weeks"`
	LongestWeeks int `json:"longest_weeks"`
}

// ExerciseRank is one entry in the top-exercises ranking.
type ExerciseRank struct {
	ExerciseName string `json:"exercise_name"`
	SessionCount int    `json:"session_count"`
}

// Engine computes statistics over a Source. The clock is injectable so
// window and streak math is testable against fixed dates.
type Engine struct {
	db  Source
	now func() time.Time
}

// New creates a statistics engine reading from db.
func New(db Source) *Engine {
	return &Engine{db: db, now: time.Now}
}

// Summary returns the aggregate counters.
func (e *Engine) Summary(ctx context.Context) (*Summary, error) {
	starts, err := e.db.SessionStartTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading session times: %w", err)
	}
	counts, err := e.db.ExerciseSessionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading exercise counts: %w", err)
	}
	sets, err := e.db.SetEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading set entries: %w", err)
	}

	return &Summary{
		TotalSessions:   len(starts),
		UniqueExercises: len(counts),
		TotalSets:       len(sets),
		TotalVolumeKg:   totalVolume(sets),
		ActiveWeeks:     len(activeWeeks(starts)),
	}, nil
}

// Heatmap returns one entry per calendar date for the trailing windowDays
// days ending today, zero-filled, so a renderer can draw a fixed grid.
func (e *Engine) Heatmap(ctx context.Context, windowDays int) ([]HeatmapEntry, error) {
	if windowDays <= 0 {
		windowDays = 365
	}
	starts, err := e.db.SessionStartTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading session times: %w", err)
	}
	return heatmapBuckets(starts, windowDays, e.now().UTC()), nil
}

// Streaks returns the current and longest runs of consecutive active weeks.
func (e *Engine) Streaks(ctx context.Context) (*StreakSummary, error) {
	starts, err := e.db.SessionStartTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading session times: %w", err)
	}
	current, longest := weekStreaks(starts)
	return &StreakSummary{CurrentWeeks: current, LongestWeeks: longest}, nil
}

// TopExercises returns the limit exercises appearing in the most distinct
// sessions, ordered by count descending with ties broken by name ascending.
// The ordering happens here rather than in SQL so it is deterministic and
// unit-tested.
func (e *Engine) TopExercises(ctx context.Context, limit int) ([]ExerciseRank, error) {
	if limit <= 0 {
		limit = 10
	}
	counts, err := e.db.ExerciseSessionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading exercise counts: %w", err)
	}
	return rankExercises(counts, limit), nil
}

// totalVolume sums weight × reps over all sets. A set missing either value
// contributes zero; it is never an error.
func totalVolume(sets []models.SetRow) float64 {
	var total float64
	for _, s := range sets {
		if s.WeightKg == nil || s.Reps == nil {
			continue
		}
		total += *s.WeightKg * float64(*s.Reps)
	}
	return total
}

// heatmapBuckets counts sessions per calendar date over the window ending
// at today (inclusive). Dates are bucketed in UTC.
func heatmapBuckets(starts []time.Time, windowDays int, today time.Time) []HeatmapEntry {
	first := today.AddDate(0, 0, -(windowDays - 1))
	firstDay := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)

	counts := map[string]int{}
	for _, t := range starts {
		counts[t.UTC().Format("2006-01-02")]++
	}

	entries := make([]HeatmapEntry, windowDays)
	for i := range entries {
		date := firstDay.AddDate(0, 0, i).Format("2006-01-02")
		entries[i] = HeatmapEntry{Date: date, Count: counts[date]}
	}
	return entries
}

// weekStart maps a time to the Monday (UTC midnight) of its ISO week.
// Comparing weeks by their start date makes consecutive-week arithmetic a
// plain 7-day difference and sidesteps year-boundary bugs in week numbers.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// activeWeeks returns the sorted, deduplicated week-start dates that
// contain at least one session.
func activeWeeks(starts []time.Time) []time.Time {
	set := map[time.Time]bool{}
	for _, t := range starts {
		set[weekStart(t)] = true
	}
	weeks := make([]time.Time, 0, len(set))
	for w := range set {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	return weeks
}

// weekStreaks computes the current and longest streaks of consecutive
// active weeks. The current streak counts back from the most recent active
// week even if the current calendar week has no session yet, so a user is
// not penalized mid-week.
func weekStreaks(starts []time.Time) (current, longest int) {
	weeks := activeWeeks(starts)
	if len(weeks) == 0 {
		return 0, 0
	}

	run := 1
	longest = 1
	for i := 1; i < len(weeks); i++ {
		if weeks[i].Sub(weeks[i-1]) == 7*24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	// weeks is sorted, so the final run is the one ending at the most
	// recent active week.
	current = run
	return current, longest
}

// rankExercises orders exercises by session count descending, name
// ascending on ties, and truncates to limit.
func rankExercises(counts []storage.ExerciseSessions, limit int) []ExerciseRank {
	sorted := make([]storage.ExerciseSessions, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SessionCount != sorted[j].SessionCount {
			return sorted[i].SessionCount > sorted[j].SessionCount
		}
		return sorted[i].Name < sorted[j].Name
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	ranks := make([]ExerciseRank, len(sorted))
	for i, es := range sorted {
		ranks[i] = ExerciseRank{ExerciseName: es.Name, SessionCount: es.SessionCount}
	}
	return ranks
}
