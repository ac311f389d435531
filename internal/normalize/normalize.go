// Package normalize converts raw Hevy workout payloads into the row shapes
// the storage layer persists. Exercise identity is resolved exclusively from
// the primary per-workout exercise list: the API has historically exposed
// the same data under a second, legacy shape whose ids and names drift, so
// a payload carrying only that shape is rejected rather than guessed at.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/meltforce/repsync/internal/hevy"
	"github.com/meltforce/repsync/internal/models"
)

// SessionShape classifies a raw workout payload before field access.
type SessionShape int

const (
	ShapePrimary SessionShape = iota // has the "exercises" list
	ShapeLegacy                      // only the legacy "logs" list
	ShapeUnknown                     // neither list present
)

// DetectShape probes a raw payload for the exercise list keys without
// committing to a full decode.
func DetectShape(raw json.RawMessage) SessionShape {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ShapeUnknown
	}
	if v, ok := probe["exercises"]; ok && string(v) != "null" {
		return ShapePrimary
	}
	if v, ok := probe["logs"]; ok && string(v) != "null" {
		return ShapeLegacy
	}
	return ShapeUnknown
}

// Session converts one raw workout payload into a SessionBundle.
//
// A *hevy.ProtocolError means the payload shape is unusable (skip the
// record, keep the batch); a *hevy.ValidationError means it decoded but
// violates a data invariant (likewise skipped and counted by the caller).
func Session(raw json.RawMessage) (*models.SessionBundle, error) {
	if shape := DetectShape(raw); shape != ShapePrimary {
		var rs models.RawSession
		_ = json.Unmarshal(raw, &rs) // best-effort, for the error message
		detail := "payload has no primary exercise list"
		if shape == ShapeLegacy {
			detail = "payload carries only the legacy exercise shape"
		}
		return nil, &hevy.ProtocolError{Detail: fmt.Sprintf("session %q: %s", rs.ID, detail)}
	}

	var rs models.RawSession
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, &hevy.ProtocolError{Detail: "decoding session", Err: err}
	}
	if rs.ID == "" {
		return nil, &hevy.ProtocolError{Detail: "session has no id"}
	}

	start, err := models.ParseTimestamp(rs.StartTime)
	if err != nil {
		return nil, &hevy.ProtocolError{Detail: fmt.Sprintf("session %q: unparseable start_time %q", rs.ID, rs.StartTime), Err: err}
	}

	session := models.SessionRow{
		ID:        rs.ID,
		Title:     rs.Title,
		StartTime: start,
		Notes:     rs.Notes,
	}
	if rs.EndTime != nil && *rs.EndTime != "" {
		end, err := models.ParseTimestamp(*rs.EndTime)
		if err != nil {
			return nil, &hevy.ProtocolError{Detail: fmt.Sprintf("session %q: unparseable end_time %q", rs.ID, *rs.EndTime), Err: err}
		}
		if end.Before(start) {
			return nil, &hevy.ValidationError{SessionID: rs.ID, Detail: "end time before start time"}
		}
		session.EndTime = &end
	}

	bundle := &models.SessionBundle{Session: session}
	seen := map[string]bool{}

	for i, log := range rs.Exercises {
		if log.TemplateID == "" {
			return nil, &hevy.ProtocolError{Detail: fmt.Sprintf("session %q: exercise %d has no template id", rs.ID, i)}
		}

		if !seen[log.TemplateID] {
			bundle.Exercises = append(bundle.Exercises, models.ExerciseRow{
				ID:   log.TemplateID,
				Name: log.Title,
			})
			seen[log.TemplateID] = true
		}

		position := i
		if log.Index != nil {
			position = *log.Index
		}
		instance := models.InstanceRow{
			ExerciseID: log.TemplateID,
			Position:   position,
		}

		for n, set := range log.Sets {
			if set.WeightKg != nil && *set.WeightKg < 0 {
				return nil, &hevy.ValidationError{SessionID: rs.ID, Detail: fmt.Sprintf("negative weight %v", *set.WeightKg)}
			}
			if set.Reps != nil && *set.Reps < 0 {
				return nil, &hevy.ValidationError{SessionID: rs.ID, Detail: fmt.Sprintf("negative rep count %d", *set.Reps)}
			}
			// A set with neither weight nor reps (timed or bodyweight
			// work) is still a real set and is kept.
			instance.Sets = append(instance.Sets, models.SetRow{
				SetNumber: n,
				WeightKg:  set.WeightKg,
				Reps:      set.Reps,
				RPE:       set.RPE,
			})
		}

		bundle.Instances = append(bundle.Instances, instance)
	}

	return bundle, nil
}
