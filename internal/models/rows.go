package models

import "time"

// SessionRow is one training session as stored in the sessions table.
type SessionRow struct {
	ID        string     `json:"id"`
	Title     *string    `json:"title"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Notes     *string    `json:"notes"`
}

// ExerciseRow is one entry in the exercise dimension table, keyed by the
// remote template id. Name follows the remote system on rename.
type ExerciseRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InstanceRow is one performance of an exercise within a session, with its
// sets nested. Position preserves the in-session ordering for display.
type InstanceRow struct {
	ExerciseID string   `json:"exercise_id"`
	Position   int      `json:"position"`
	Sets       []SetRow `json:"sets"`
}

// SetRow is one set within an exercise instance. Weight is kilograms, the
// canonical storage unit; nil weight or reps means the value was not
// recorded, which is distinct from zero.
type SetRow struct {
	SetNumber int      `json:"set_number"`
	WeightKg  *float64 `json:"weight_kg"`
	Reps      *int     `json:"reps"`
	RPE       *float64 `json:"rpe"`
}

// SessionBundle is a fully normalized session ready for persistence:
// the session row, the exercise dimension rows it references, and the
// ordered instance subtree.
type SessionBundle struct {
	Session   SessionRow
	Exercises []ExerciseRow
	Instances []InstanceRow
}
