package assembler

import (
	"time"

	"github.com/mnemo-ai/mnemo-go-sdk/memory"
)

// Fixed relevance weights. They sum to 1.0 so the aggregate stays in [0,1].
const (
	weightSemantic   = 0.35
	weightTemporal   = 0.20
	weightLocation   = 0.10
	weightEmotion    = 0.20
	weightImportance = 0.15
)

// decayWindow is the linear temporal decay horizon: one week old scores
// zero on the temporal factor.
const decayWindow = 168 * time.Hour

// Score is the ephemeral ranking result for one candidate against one
// query. Computed fresh per query, never persisted.
type Score struct {
	Semantic   float64
	Temporal   float64
	Location   float64
	Emotion    float64
	Importance float64
	Aggregate  float64
}

// scoreHit computes the five sub-scores and their weighted aggregate.
//
// Two hard overrides apply: identity records always score importance 0.9
// (who the agent is never goes stale), and working-focus records always
// score temporal 1.0 (the active focus is "now" by definition).
func scoreHit(hit memory.Hit, location string, now time.Time) Score {
	rec := hit.Record

	s := Score{
		Semantic: hit.Similarity,
		Emotion:  rec.EmotionIntensity,
	}

	age := now.Sub(rec.CreatedAt)
	s.Temporal = 1 - age.Hours()/decayWindow.Hours()
	if s.Temporal < 0 {
		s.Temporal = 0
	}
	if rec.Module == memory.ModuleActive {
		s.Temporal = 1.0
	}

	if location != "" && rec.Location == location {
		s.Location = 1.0
	}

	s.Importance = rec.Importance
	if rec.Module == memory.ModuleCore {
		s.Importance = 0.9
	}

	s.Aggregate = weightSemantic*s.Semantic +
		weightTemporal*s.Temporal +
		weightLocation*s.Location +
		weightEmotion*s.Emotion +
		weightImportance*s.Importance
	return s
}
