// Package consolidate turns raw conversation text into durable memory.
// A model pass extracts stable facts (Mem0-style fact extraction) with
// candidate relationships; each extracted fact is then remembered as a
// consolidated fact, which is the only item type allowed to write to the
// relationship graph.
package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mnemo-ai/mnemo-go-sdk/engine"
	"github.com/mnemo-ai/mnemo-go-sdk/graph"
	"github.com/mnemo-ai/mnemo-go-sdk/memory"
)

// systemPrompt instructs the model to emit extraction JSON and nothing else.
const systemPrompt = `You extract durable facts from conversation transcripts.

Return ONLY a JSON array. Each element:
{
  "content": "one self-contained factual statement",
  "importance": 0.0-1.0,
  "relationships": [
    {"subject": "snake_case_concept", "predicate": "verb", "object": "snake_case_concept", "confidence": 0.0-1.0}
  ]
}

Rules:
- Extract only stable, reusable facts (preferences, attributes, commitments, corrections).
- Skip small talk, one-off logistics, and anything the speaker marked as uncertain.
- An empty array is a valid answer.`

// Completer abstracts the model call so consolidation is testable without
// network access.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Triple is one candidate relationship attached to an extracted fact.
type Triple struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// Fact is one extracted, self-contained factual statement.
type Fact struct {
	Content       string   `json:"content"`
	Importance    float64  `json:"importance"`
	Relationships []Triple `json:"relationships"`
}

// Consolidator runs fact extraction and feeds the results into the engine.
type Consolidator struct {
	completer Completer
	engine    *engine.Engine
}

// New creates a consolidator over a completer and an engine.
func New(completer Completer, eng *engine.Engine) *Consolidator {
	return &Consolidator{completer: completer, engine: eng}
}

// Consolidate extracts facts from a transcript and remembers each one as a
// consolidated fact. A fact whose Remember call fails entirely is logged
// and skipped; the surviving facts are still returned.
func (c *Consolidator) Consolidate(ctx context.Context, transcript, subjectID string) ([]Fact, error) {
	out, err := c.completer.Complete(ctx, systemPrompt, transcript)
	if err != nil {
		return nil, fmt.Errorf("fact extraction: %w", err)
	}

	facts, err := parseFacts(out)
	if err != nil {
		return nil, fmt.Errorf("parse extraction output: %w", err)
	}

	remembered := make([]Fact, 0, len(facts))
	for _, fact := range facts {
		if strings.TrimSpace(fact.Content) == "" {
			continue
		}
		rels := make([]engine.Relationship, 0, len(fact.Relationships))
		for _, t := range fact.Relationships {
			if t.Subject == "" || t.Predicate == "" || t.Object == "" {
				continue
			}
			rels = append(rels, engine.Relationship{
				Subject:    t.Subject,
				Predicate:  t.Predicate,
				Object:     t.Object,
				Confidence: t.Confidence,
				Kind:       graph.KindContent,
			})
		}

		_, err := c.engine.Remember(ctx, &engine.RememberInput{
			Content:       fact.Content,
			ItemType:      memory.TypeConsolidatedFact,
			SubjectID:     subjectID,
			Importance:    clamp01(fact.Importance),
			Relationships: rels,
		})
		if err != nil {
			log.Printf("[CONSOLIDATE] Remember failed for fact %q: %v (skipping)", fact.Content, err)
			continue
		}
		remembered = append(remembered, fact)
	}
	return remembered, nil
}

// parseFacts decodes the model output, tolerating markdown code fences.
func parseFacts(out string) ([]Fact, error) {
	out = strings.TrimSpace(out)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```json")
		out = strings.TrimPrefix(out, "```")
		out = strings.TrimSuffix(strings.TrimSpace(out), "```")
		out = strings.TrimSpace(out)
	}

	var facts []Fact
	if err := json.Unmarshal([]byte(out), &facts); err != nil {
		return nil, err
	}
	return facts, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
