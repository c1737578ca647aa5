package assembler

import (
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo-go-sdk/memory"
)

func hit(module memory.Module, similarity, importance float64, age time.Duration) memory.Hit {
	return memory.Hit{
		Record: memory.Record{
			Module:     module,
			Importance: importance,
			CreatedAt:  time.Now().Add(-age),
		},
		Similarity: similarity,
	}
}

func TestScoreHit_WeightsSumToAggregate(t *testing.T) {
	now := time.Now()
	h := memory.Hit{
		Record: memory.Record{
			Module:           memory.ModuleNotes,
			Importance:       0.6,
			EmotionIntensity: 0.4,
			Location:         "harbor",
			CreatedAt:        now,
		},
		Similarity: 0.8,
	}

	s := scoreHit(h, "harbor", now)

	want := 0.35*0.8 + 0.20*1.0 + 0.10*1.0 + 0.20*0.4 + 0.15*0.6
	if diff := s.Aggregate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("aggregate = %f, want %f", s.Aggregate, want)
	}
}

func TestScoreHit_CoreImportanceOverride(t *testing.T) {
	now := time.Now()
	core := scoreHit(hit(memory.ModuleCore, 0.5, 0.1, time.Hour), "", now)
	note := scoreHit(hit(memory.ModuleNotes, 0.5, 0.1, time.Hour), "", now)

	if core.Importance != 0.9 {
		t.Errorf("core importance = %f, want forced 0.9", core.Importance)
	}
	if core.Aggregate <= note.Aggregate {
		t.Errorf("core aggregate %f must beat identical non-core %f", core.Aggregate, note.Aggregate)
	}
}

func TestScoreHit_ActiveTemporalOverride(t *testing.T) {
	now := time.Now()
	// Two weeks old: temporal would be floored at zero without the override.
	s := scoreHit(hit(memory.ModuleActive, 0.5, 0.5, 14*24*time.Hour), "", now)
	if s.Temporal != 1.0 {
		t.Errorf("active temporal = %f, want forced 1.0", s.Temporal)
	}
}

func TestScoreHit_TemporalDecay(t *testing.T) {
	now := time.Now()

	fresh := scoreHit(hit(memory.ModuleNotes, 0.5, 0.5, 0), "", now)
	if fresh.Temporal < 0.99 {
		t.Errorf("fresh temporal = %f, want ~1.0", fresh.Temporal)
	}

	halfWeek := scoreHit(hit(memory.ModuleNotes, 0.5, 0.5, 84*time.Hour), "", now)
	if halfWeek.Temporal < 0.49 || halfWeek.Temporal > 0.51 {
		t.Errorf("half-week temporal = %f, want ~0.5", halfWeek.Temporal)
	}

	old := scoreHit(hit(memory.ModuleNotes, 0.5, 0.5, 400*time.Hour), "", now)
	if old.Temporal != 0 {
		t.Errorf("stale temporal = %f, want floored 0", old.Temporal)
	}
}

func TestScoreHit_LocationExactMatchOnly(t *testing.T) {
	now := time.Now()
	h := hit(memory.ModuleNotes, 0.5, 0.5, time.Hour)
	h.Record.Location = "harbor"

	if s := scoreHit(h, "harbor", now); s.Location != 1.0 {
		t.Errorf("exact location match = %f, want 1.0", s.Location)
	}
	if s := scoreHit(h, "harbor district", now); s.Location != 0.0 {
		t.Errorf("near-miss location = %f, want 0.0", s.Location)
	}
	if s := scoreHit(h, "", now); s.Location != 0.0 {
		t.Errorf("empty query location = %f, want 0.0", s.Location)
	}
}
