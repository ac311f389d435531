package models

import (
	"encoding/json"
	"time"
)

// RawSession is one workout as returned by the Hevy API. Exercises is the
// primary per-workout exercise list; Logs is the legacy detail shape that
// older API revisions exposed and that may be absent or stale. Exercise
// identity is always resolved from Exercises — Logs is decoded only so a
// legacy-shaped payload can be recognized and reported as such.
type RawSession struct {
	ID        string            `json:"id"`
	Title     *string           `json:"title"`
	StartTime string            `json:"start_time"`
	EndTime   *string           `json:"end_time"`
	Notes     *string           `json:"notes"`
	Exercises []RawExerciseLog  `json:"exercises"`
	Logs      []json.RawMessage `json:"logs"`
}

// RawExerciseLog is one exercise performance within a workout, in the
// primary shape: the template id and display title live directly on the
// log entry, not on a nested exercise object.
type RawExerciseLog struct {
	TemplateID string   `json:"exercise_template_id"`
	Title      string   `json:"title"`
	Index      *int     `json:"index"`
	Sets       []RawSet `json:"sets"`
}

// RawSet is one set within an exercise log. All fields are nullable on the
// wire: a timed or bodyweight set legitimately has neither weight nor reps.
type RawSet struct {
	WeightKg *float64 `json:"weight_kg"`
	Reps     *int     `json:"reps"`
	RPE      *float64 `json:"rpe"`
}

// timestampLayouts are the formats Hevy has been observed to emit.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
}

// ParseTimestamp parses a Hevy timestamp string, trying the known layouts.
func ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
