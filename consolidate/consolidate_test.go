package consolidate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mnemo-ai/mnemo-go-sdk/consolidate"
	"github.com/mnemo-ai/mnemo-go-sdk/engine"
	"github.com/mnemo-ai/mnemo-go-sdk/graph"
	"github.com/mnemo-ai/mnemo-go-sdk/memory"
	"github.com/mnemo-ai/mnemo-go-sdk/memory/embedder/mock"
	"github.com/mnemo-ai/mnemo-go-sdk/memory/store/chromem"
	"github.com/mnemo-ai/mnemo-go-sdk/memory/store/markdown"
)

// stubCompleter returns a canned extraction response.
type stubCompleter struct {
	out string
	err error
}

func (s stubCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return s.out, s.err
}

func newEngine(t *testing.T) (*engine.Engine, *graph.Graph) {
	t.Helper()
	records, err := markdown.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	vectors, err := chromem.New()
	if err != nil {
		t.Fatal(err)
	}
	g := graph.New(nil)
	return engine.New(records, vectors, g, mock.New(), memory.DefaultIndexConfig()), g
}

const extraction = `[
  {
    "content": "The user prefers morning meetings.",
    "importance": 0.7,
    "relationships": [
      {"subject": "user", "predicate": "prefers", "object": "morning_meetings", "confidence": 0.9}
    ]
  },
  {
    "content": "The user works from the harbor office on Fridays.",
    "importance": 0.5,
    "relationships": []
  }
]`

func TestConsolidate_RemembersFactsAndTriples(t *testing.T) {
	ctx := context.Background()
	eng, g := newEngine(t)

	c := consolidate.New(stubCompleter{out: extraction}, eng)
	facts, err := c.Consolidate(ctx, "User: let's always meet at 9am...", "user")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 2 {
		t.Fatalf("got %d facts, want 2", len(facts))
	}

	// One supplied triple plus one record->vector reference per fact.
	if g.TripleCount() != 3 {
		t.Errorf("triple count = %d, want 3", g.TripleCount())
	}
	if got := len(g.QueryByPredicate("prefers", 0)); got != 1 {
		t.Errorf("got %d prefers edges, want 1", got)
	}
	if got := len(g.QueryByPredicate("indexed_as", 0)); got != 2 {
		t.Errorf("got %d cross-layer references, want 2", got)
	}
}

func TestConsolidate_FencedJSONAccepted(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	fenced := "```json\n" + extraction + "\n```"
	c := consolidate.New(stubCompleter{out: fenced}, eng)
	facts, err := c.Consolidate(ctx, "transcript", "user")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 2 {
		t.Errorf("got %d facts from fenced output, want 2", len(facts))
	}
}

func TestConsolidate_EmptyArrayIsValid(t *testing.T) {
	ctx := context.Background()
	eng, g := newEngine(t)

	c := consolidate.New(stubCompleter{out: "[]"}, eng)
	facts, err := c.Consolidate(ctx, "User: hi\nAssistant: hello", "user")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 0 {
		t.Errorf("got %d facts, want 0", len(facts))
	}
	if g.TripleCount() != 0 {
		t.Errorf("small talk wrote %d triples", g.TripleCount())
	}
}

func TestConsolidate_MalformedOutputErrors(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	c := consolidate.New(stubCompleter{out: "I could not find any facts."}, eng)
	if _, err := c.Consolidate(ctx, "transcript", "user"); err == nil {
		t.Error("non-JSON model output must error")
	}
}

func TestConsolidate_CompleterErrorPropagates(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	c := consolidate.New(stubCompleter{err: errors.New("rate limited")}, eng)
	if _, err := c.Consolidate(ctx, "transcript", "user"); err == nil {
		t.Error("completer failure must propagate")
	}
}

func TestConsolidate_IncompleteTriplesDropped(t *testing.T) {
	ctx := context.Background()
	eng, g := newEngine(t)

	out := `[{"content": "Fact.", "importance": 0.5,
		"relationships": [{"subject": "a", "predicate": "", "object": "b", "confidence": 0.9}]}]`
	c := consolidate.New(stubCompleter{out: out}, eng)
	if _, err := c.Consolidate(ctx, "transcript", "user"); err != nil {
		t.Fatal(err)
	}

	// Only the cross-layer reference should land.
	if g.TripleCount() != 1 {
		t.Errorf("triple count = %d, want 1 (reference only)", g.TripleCount())
	}
}
