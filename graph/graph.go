// Package graph implements the relationship graph store: typed,
// confidence-scored relationships between named concepts.
//
// The graph is a multigraph with append-only edges. Repeated or
// overlapping claims between the same concept pair are a feature, not a
// conflict: each claim lands as its own edge, disambiguated by predicate
// and creation timestamp. Edges are never mutated or reordered.
//
// Concepts are created lazily on first reference and never deleted.
package graph

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a relationship edge.
type Kind string

const (
	KindStructural  Kind = "structural"  // bookkeeping, e.g. cross-layer references
	KindAssociative Kind = "associative" // loose association between concepts
	KindContent     Kind = "content"     // substantive claim about the world
)

// ErrNotFound is returned when a concept does not exist in the graph.
var ErrNotFound = errors.New("concept not found")

// Concept is a named node.
type Concept struct {
	ID        string
	FirstSeen time.Time
}

// Edge is a directed, typed relationship between two concepts.
// The pair (Predicate, CreatedAt) disambiguates multiple edges between
// the same concepts; ID gives each edge a stable handle.
type Edge struct {
	ID         string
	Subject    string
	Predicate  string
	Object     string
	Confidence float64 // [0,1]
	Importance float64 // [0,1]
	Kind       Kind
	Source     string
	Context    string
	CreatedAt  time.Time
}

// RelatedConcept is one traversal result from FindRelated.
type RelatedConcept struct {
	Concept      string
	Relationship string // predicate, or inverse_<predicate> when traversed against edge direction
	Confidence   float64
	Distance     int // hops from the start concept
}

// Contradiction flags two opposing claims between the same concept pair.
type Contradiction struct {
	ConceptA    string
	ConceptB    string
	PredicateA  string
	PredicateB  string
	EdgeA       string
	EdgeB       string
	ConfidenceA float64
	ConfidenceB float64
}

// Summary describes one concept: every edge touching it plus first-seen time.
type Summary struct {
	Concept   string
	FirstSeen time.Time
	Outgoing  []Edge
	Incoming  []Edge
}

// opposingPredicates is the fixed table DetectContradictions compares
// edge pairs against.
var opposingPredicates = [][2]string{
	{"supports", "contradicts"},
	{"enables", "prevents"},
	{"confirms", "refutes"},
	{"causes", "prevents"},
	{"increases", "decreases"},
}

// Config configures the graph store.
type Config struct {
	// SnapshotPath is where checkpoints are written. Empty disables
	// persistence entirely (useful for tests).
	SnapshotPath string

	// CheckpointEvery batches persistence: a snapshot is flushed once per
	// this many writes, not per write, to bound I/O. A crash can lose at
	// most one checkpoint interval of writes. Default: 25.
	CheckpointEvery int
}

// Graph is the in-memory relationship graph with adjacency-list structure:
// an append-only edge arena plus per-concept in/out index slices.
type Graph struct {
	mu       sync.RWMutex
	concepts map[string]Concept
	edges    []Edge
	out      map[string][]int // concept -> edge arena indices where concept is subject
	in       map[string][]int // concept -> edge arena indices where concept is object

	createdAt       time.Time
	writesSinceSave int
	cfg             Config
}

// New creates an empty graph.
func New(cfg *Config) *Graph {
	g := &Graph{
		concepts:  make(map[string]Concept),
		out:       make(map[string][]int),
		in:        make(map[string][]int),
		createdAt: time.Now(),
	}
	if cfg != nil {
		g.cfg = *cfg
	}
	if g.cfg.CheckpointEvery <= 0 {
		g.cfg.CheckpointEvery = 25
	}
	return g
}

// AddTriple appends a new edge, creating missing concept nodes. It never
// fails on duplicate predicates between the same pair; every call adds a
// distinct edge. Returns the new edge's ID.
//
// Every CheckpointEvery writes the graph flushes a snapshot; a failed
// flush is logged and does not roll back in-memory state.
func (g *Graph) AddTriple(subject, predicate, object string, confidence, importance float64, kind Kind, source, context string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.touchConceptLocked(subject, now)
	g.touchConceptLocked(object, now)

	edge := Edge{
		ID:         uuid.New().String(),
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Confidence: clamp01(confidence),
		Importance: clamp01(importance),
		Kind:       kind,
		Source:     source,
		Context:    context,
		CreatedAt:  now,
	}

	idx := len(g.edges)
	g.edges = append(g.edges, edge)
	g.out[subject] = append(g.out[subject], idx)
	g.in[object] = append(g.in[object], idx)

	g.writesSinceSave++
	if g.cfg.SnapshotPath != "" && g.writesSinceSave >= g.cfg.CheckpointEvery {
		if err := g.saveLocked(); err != nil {
			log.Printf("[GRAPH] Checkpoint failed: %v", err)
		}
		g.writesSinceSave = 0
	}

	return edge.ID
}

func (g *Graph) touchConceptLocked(id string, now time.Time) {
	if _, ok := g.concepts[id]; !ok {
		g.concepts[id] = Concept{ID: id, FirstSeen: now}
	}
}

// FindRelated walks outward from a concept, breadth first, following
// edges in both directions. Edges below minConfidence are pruned and the
// walk stops at maxDepth hops. Results are ordered by confidence
// descending, then distance ascending. A nonexistent start concept
// returns an empty list.
func (g *Graph) FindRelated(concept string, maxDepth int, minConfidence float64) []RelatedConcept {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.concepts[concept]; !ok {
		return nil
	}

	visited := map[string]bool{concept: true}
	frontier := []string{concept}
	var results []RelatedConcept

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			for _, idx := range g.out[current] {
				e := g.edges[idx]
				if e.Confidence < minConfidence || visited[e.Object] {
					continue
				}
				visited[e.Object] = true
				results = append(results, RelatedConcept{
					Concept:      e.Object,
					Relationship: e.Predicate,
					Confidence:   e.Confidence,
					Distance:     depth,
				})
				next = append(next, e.Object)
			}
			for _, idx := range g.in[current] {
				e := g.edges[idx]
				if e.Confidence < minConfidence || visited[e.Subject] {
					continue
				}
				visited[e.Subject] = true
				results = append(results, RelatedConcept{
					Concept:      e.Subject,
					Relationship: "inverse_" + e.Predicate,
					Confidence:   e.Confidence,
					Distance:     depth,
				})
				next = append(next, e.Subject)
			}
		}
		frontier = next
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Concept < results[j].Concept
	})
	return results
}

// DetectContradictions compares every edge pair between the same concept
// pair against the opposing-predicate table and flags pairs where both
// sides exceed minConfidence.
//
// This is O(pairs x edges^2) and meant for offline or batch use, not the
// request path.
func (g *Graph) DetectContradictions(minConfidence float64) []Contradiction {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Group edge indices by ordered concept pair.
	pairs := make(map[[2]string][]int)
	for idx, e := range g.edges {
		key := [2]string{e.Subject, e.Object}
		pairs[key] = append(pairs[key], idx)
	}

	var found []Contradiction
	for _, idxs := range pairs {
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				a, b := g.edges[idxs[i]], g.edges[idxs[j]]
				if a.Confidence < minConfidence || b.Confidence < minConfidence {
					continue
				}
				if !predicatesOppose(a.Predicate, b.Predicate) {
					continue
				}
				found = append(found, Contradiction{
					ConceptA:    a.Subject,
					ConceptB:    a.Object,
					PredicateA:  a.Predicate,
					PredicateB:  b.Predicate,
					EdgeA:       a.ID,
					EdgeB:       b.ID,
					ConfidenceA: a.Confidence,
					ConfidenceB: b.Confidence,
				})
			}
		}
	}
	return found
}

func predicatesOppose(a, b string) bool {
	for _, pair := range opposingPredicates {
		if (a == pair[0] && b == pair[1]) || (a == pair[1] && b == pair[0]) {
			return true
		}
	}
	return false
}

// ConceptSummary returns every relationship touching a concept plus its
// first-seen time, or ErrNotFound.
func (g *Graph) ConceptSummary(concept string) (*Summary, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.concepts[concept]
	if !ok {
		return nil, ErrNotFound
	}

	s := &Summary{Concept: concept, FirstSeen: c.FirstSeen}
	for _, idx := range g.out[concept] {
		s.Outgoing = append(s.Outgoing, g.edges[idx])
	}
	for _, idx := range g.in[concept] {
		s.Incoming = append(s.Incoming, g.edges[idx])
	}
	return s, nil
}

// QueryByPredicate returns every edge with the given predicate at or
// above minConfidence, in insertion order.
func (g *Graph) QueryByPredicate(predicate string, minConfidence float64) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []Edge
	for _, e := range g.edges {
		if e.Predicate == predicate && e.Confidence >= minConfidence {
			edges = append(edges, e)
		}
	}
	return edges
}

// TripleCount returns the total number of edges.
func (g *Graph) TripleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// ConceptCount returns the total number of concept nodes.
func (g *Graph) ConceptCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.concepts)
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
