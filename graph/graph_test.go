package graph_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mnemo-ai/mnemo-go-sdk/graph"
)

func TestAddTriple_MultigraphAppendOnly(t *testing.T) {
	g := graph.New(nil)

	id1 := g.AddTriple("go", "supports", "concurrency", 0.9, 0.5, graph.KindContent, "test", "")
	id2 := g.AddTriple("go", "supports", "concurrency", 0.7, 0.5, graph.KindContent, "test", "")

	if id1 == id2 {
		t.Error("repeated claims must create distinct edges")
	}
	if got := g.TripleCount(); got != 2 {
		t.Errorf("triple count = %d, want 2", got)
	}

	// Concepts are created lazily and only once.
	if got := g.ConceptCount(); got != 2 {
		t.Errorf("concept count = %d, want 2", got)
	}
}

func TestFindRelated_ConfidenceFilterAndOrdering(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("alpha", "supports", "beta", 0.9, 0.5, graph.KindContent, "test", "")
	g.AddTriple("alpha", "relates_to", "gamma", 0.4, 0.5, graph.KindAssociative, "test", "")
	g.AddTriple("beta", "enables", "delta", 0.8, 0.5, graph.KindContent, "test", "")

	results := g.FindRelated("alpha", 2, 0.5)

	for _, r := range results {
		if r.Confidence < 0.5 {
			t.Errorf("result %q below confidence threshold: %f", r.Concept, r.Confidence)
		}
		if r.Concept == "gamma" {
			t.Error("gamma should have been pruned at confidence 0.4")
		}
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (beta, delta)", len(results))
	}
	// Ordered by confidence descending.
	if results[0].Concept != "beta" || results[1].Concept != "delta" {
		t.Errorf("unexpected order: %q then %q", results[0].Concept, results[1].Concept)
	}
	if results[1].Distance != 2 {
		t.Errorf("delta distance = %d, want 2", results[1].Distance)
	}
}

func TestFindRelated_InverseLabelOnReverseTraversal(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("evidence", "supports", "theory", 0.9, 0.5, graph.KindContent, "test", "")

	results := g.FindRelated("theory", 1, 0.1)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Relationship != "inverse_supports" {
		t.Errorf("relationship = %q, want inverse_supports", results[0].Relationship)
	}
}

func TestFindRelated_MaxDepthStopsTraversal(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("a", "enables", "b", 0.9, 0.5, graph.KindContent, "test", "")
	g.AddTriple("b", "enables", "c", 0.9, 0.5, graph.KindContent, "test", "")
	g.AddTriple("c", "enables", "d", 0.9, 0.5, graph.KindContent, "test", "")

	results := g.FindRelated("a", 2, 0.1)
	for _, r := range results {
		if r.Concept == "d" {
			t.Error("d is 3 hops out and should not appear at maxDepth 2")
		}
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestFindRelated_UnknownConceptReturnsEmpty(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("a", "supports", "b", 0.9, 0.5, graph.KindContent, "test", "")

	if results := g.FindRelated("never-seen", 3, 0.0); len(results) != 0 {
		t.Errorf("expected empty result for unknown concept, got %d", len(results))
	}
}

func TestDetectContradictions_OpposingClaims(t *testing.T) {
	g := graph.New(nil)
	e1 := g.AddTriple("X", "supports", "Y", 0.9, 0.5, graph.KindContent, "test", "")
	e2 := g.AddTriple("X", "contradicts", "Y", 0.85, 0.5, graph.KindContent, "test", "")

	found := g.DetectContradictions(0.7)
	if len(found) != 1 {
		t.Fatalf("got %d contradictions, want exactly 1", len(found))
	}
	c := found[0]
	if c.ConceptA != "X" || c.ConceptB != "Y" {
		t.Errorf("contradiction pair = (%s, %s), want (X, Y)", c.ConceptA, c.ConceptB)
	}
	got := map[string]bool{c.EdgeA: true, c.EdgeB: true}
	if !got[e1] || !got[e2] {
		t.Errorf("contradiction must reference both edges %s and %s, got %s and %s", e1, e2, c.EdgeA, c.EdgeB)
	}
}

func TestDetectContradictions_BelowThresholdIgnored(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("X", "enables", "Y", 0.9, 0.5, graph.KindContent, "test", "")
	g.AddTriple("X", "prevents", "Y", 0.5, 0.5, graph.KindContent, "test", "")

	if found := g.DetectContradictions(0.7); len(found) != 0 {
		t.Errorf("low-confidence opposition should not be flagged, got %d", len(found))
	}
}

func TestDetectContradictions_NonOpposingPredicates(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("X", "supports", "Y", 0.9, 0.5, graph.KindContent, "test", "")
	g.AddTriple("X", "enables", "Y", 0.9, 0.5, graph.KindContent, "test", "")

	if found := g.DetectContradictions(0.5); len(found) != 0 {
		t.Errorf("supports/enables are not opposing, got %d contradictions", len(found))
	}
}

func TestConceptSummary(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("hub", "supports", "spoke1", 0.9, 0.5, graph.KindContent, "test", "")
	g.AddTriple("spoke2", "enables", "hub", 0.8, 0.5, graph.KindContent, "test", "")

	s, err := g.ConceptSummary("hub")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(s.Outgoing) != 1 || len(s.Incoming) != 1 {
		t.Errorf("summary edges = %d out, %d in; want 1, 1", len(s.Outgoing), len(s.Incoming))
	}
	if s.FirstSeen.IsZero() {
		t.Error("first-seen time must be set")
	}

	if _, err := g.ConceptSummary("missing"); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryByPredicate(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("a", "supports", "b", 0.9, 0.5, graph.KindContent, "test", "")
	g.AddTriple("c", "supports", "d", 0.3, 0.5, graph.KindContent, "test", "")
	g.AddTriple("e", "enables", "f", 0.9, 0.5, graph.KindContent, "test", "")

	edges := g.QueryByPredicate("supports", 0.5)
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}
	if edges[0].Subject != "a" {
		t.Errorf("edge subject = %s, want a", edges[0].Subject)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.snapshot")

	g := graph.New(&graph.Config{SnapshotPath: path})
	g.AddTriple("sun", "causes", "daylight", 0.95, 0.8, graph.KindContent, "test", "observed daily")
	g.AddTriple("clouds", "prevents", "daylight", 0.6, 0.4, graph.KindContent, "test", "")
	if err := g.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := graph.Load(&graph.Config{SnapshotPath: path})
	if got := loaded.TripleCount(); got != 2 {
		t.Fatalf("loaded triple count = %d, want 2", got)
	}

	results := loaded.FindRelated("daylight", 1, 0.5)
	if len(results) != 2 {
		t.Fatalf("traversal after reload returned %d results, want 2: %+v", len(results), results)
	}
	if results[0].Relationship != "inverse_causes" || results[1].Relationship != "inverse_prevents" {
		t.Errorf("traversal after reload broken: %+v", results)
	}

	// Sidecar metadata is written alongside the snapshot.
	data, err := os.ReadFile(path + ".meta.json")
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var meta struct {
		TotalTriples      int      `json:"total_triples"`
		RelationshipKinds []string `json:"relationship_kinds"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if meta.TotalTriples != 2 {
		t.Errorf("sidecar total_triples = %d, want 2", meta.TotalTriples)
	}
	if len(meta.RelationshipKinds) != 1 || meta.RelationshipKinds[0] != "content" {
		t.Errorf("sidecar kinds = %v", meta.RelationshipKinds)
	}
}

func TestLoad_CorruptSnapshotFallsBackEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snapshot")
	if err := os.WriteFile(path, []byte("definitely not gob"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := graph.Load(&graph.Config{SnapshotPath: path})
	if g == nil {
		t.Fatal("corrupt snapshot must yield an empty graph, not nil")
	}
	if got := g.TripleCount(); got != 0 {
		t.Errorf("triple count = %d, want 0", got)
	}

	// The fallback graph stays writable.
	g.AddTriple("a", "supports", "b", 0.9, 0.5, graph.KindContent, "test", "")
	if got := g.TripleCount(); got != 1 {
		t.Errorf("triple count after write = %d, want 1", got)
	}
}

func TestCheckpoint_FlushesOnInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snapshot")
	g := graph.New(&graph.Config{SnapshotPath: path, CheckpointEvery: 3})

	g.AddTriple("a", "supports", "b", 0.9, 0.5, graph.KindContent, "test", "")
	g.AddTriple("b", "supports", "c", 0.9, 0.5, graph.KindContent, "test", "")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("snapshot should not exist before the checkpoint interval")
	}

	g.AddTriple("c", "supports", "d", 0.9, 0.5, graph.KindContent, "test", "")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot missing after checkpoint interval: %v", err)
	}
}

func TestConfidenceClamped(t *testing.T) {
	g := graph.New(nil)
	g.AddTriple("a", "supports", "b", 1.7, -0.2, graph.KindContent, "test", "")

	edges := g.QueryByPredicate("supports", 0.0)
	if len(edges) != 1 {
		t.Fatal("expected one edge")
	}
	if edges[0].Confidence != 1.0 {
		t.Errorf("confidence = %f, want clamped 1.0", edges[0].Confidence)
	}
	if edges[0].Importance != 0.0 {
		t.Errorf("importance = %f, want clamped 0.0", edges[0].Importance)
	}
}
