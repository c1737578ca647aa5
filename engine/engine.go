// Package engine is the single entry point of the memory substrate. It
// fans writes and reads out across the three storage layers — record
// store, vector index, relationship graph — and keeps them mutually
// consistent without cross-layer transactions: a layer that fails is
// logged and reported in a partial result, never rolled back.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mnemo-ai/mnemo-go-sdk/graph"
	"github.com/mnemo-ai/mnemo-go-sdk/memory"
)

// Result map keys for the layers touched by Remember.
const (
	LayerRecord = "record"
	LayerVector = "vector"
	LayerGraph  = "graph"
)

// defaultVectorTimeout bounds external vector and embedding I/O per call.
const defaultVectorTimeout = 10 * time.Second

// Engine orchestrates the record store, the vector index and the
// relationship graph.
type Engine struct {
	records  memory.RecordStore
	vectors  memory.VectorStore
	graph    *graph.Graph
	embedder memory.Embedder
	cfg      *memory.IndexConfig

	vectorTimeout time.Duration
}

// Option configures the engine.
type Option func(*Engine)

// WithVectorTimeout caps how long a single vector-layer or embedding call
// may take before the engine degrades. Default: 10s.
func WithVectorTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.vectorTimeout = d
	}
}

// New creates an engine over the three layers.
func New(records memory.RecordStore, vectors memory.VectorStore, g *graph.Graph, embedder memory.Embedder, cfg *memory.IndexConfig, opts ...Option) *Engine {
	if cfg == nil {
		cfg = memory.DefaultIndexConfig()
	}
	e := &Engine{
		records:       records,
		vectors:       vectors,
		graph:         g,
		embedder:      embedder,
		cfg:           cfg,
		vectorTimeout: defaultVectorTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Relationship is one candidate triple supplied alongside remembered
// content. It only reaches the graph when the content passes the quality
// gate.
type Relationship struct {
	Subject    string
	Predicate  string
	Object     string
	Confidence float64
	Kind       graph.Kind
}

// RememberInput carries one piece of content into the memory substrate.
type RememberInput struct {
	Content   string
	ItemType  string // "note", "transcript", "consolidated_fact", ...
	SubjectID string
	Location  string

	Importance       float64
	Emotion          string
	EmotionIntensity float64

	Metadata      map[string]string
	Relationships []Relationship
}

// Remember persists content across the layers. The record store and the
// vector index are always written; relationship triples are written only
// when the item type is "consolidated_fact" — raw notes and transcripts
// never pollute the graph, even when relationships are supplied.
//
// The returned map holds one entry per layer that succeeded. A failed
// layer is logged and omitted; there is no rollback. The call as a whole
// errors only when both the record store and the vector index failed.
func (e *Engine) Remember(ctx context.Context, in *RememberInput) (map[string]string, error) {
	results := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	module := moduleForItemType(in.ItemType)

	// Record store and vector index are independent; write them in
	// parallel and join before any graph bookkeeping that needs their IDs.
	wg.Add(2)

	go func() {
		defer wg.Done()
		meta := map[string]string{
			"type":    in.ItemType,
			"subject": in.SubjectID,
		}
		for k, v := range in.Metadata {
			meta[k] = v
		}
		id, err := e.records.Write(ctx, in.Content, meta)
		if err != nil {
			log.Printf("[ENGINE] Record store write failed: %v", err)
			return
		}
		mu.Lock()
		results[LayerRecord] = id
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		vctx, cancel := context.WithTimeout(ctx, e.vectorTimeout)
		defer cancel()

		embedding, err := e.embedder.Embed(vctx, in.Content)
		if err != nil {
			log.Printf("[ENGINE] Embedding failed: %v", err)
			return
		}
		rec := memory.Record{
			ID:               memory.DeterministicID(module, "remember:"+in.SubjectID, in.Content),
			Module:           module,
			Content:          in.Content,
			Embedding:        embedding,
			Importance:       in.Importance,
			Emotion:          in.Emotion,
			EmotionIntensity: in.EmotionIntensity,
			Location:         in.Location,
			Source:           "remember",
			CreatedAt:        time.Now(),
		}
		if err := e.vectors.Upsert(vctx, e.cfg.Module(module).TableName, rec); err != nil {
			log.Printf("[ENGINE] Vector index write failed: %v", err)
			return
		}
		mu.Lock()
		results[LayerVector] = rec.ID
		mu.Unlock()
	}()

	// Quality gate: only consolidated facts may write triples.
	gated := in.ItemType == memory.TypeConsolidatedFact
	if gated && len(in.Relationships) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			written := 0
			for _, rel := range in.Relationships {
				kind := rel.Kind
				if kind == "" {
					kind = graph.KindContent
				}
				e.graph.AddTriple(rel.Subject, rel.Predicate, rel.Object,
					rel.Confidence, in.Importance, kind, "remember", snippet(in.Content))
				written++
			}
			mu.Lock()
			results[LayerGraph] = fmt.Sprintf("%d triples", written)
			mu.Unlock()
		}()
	}

	wg.Wait()

	// Cross-layer reference: link the record artifact to its vector twin.
	// Structural bookkeeping only, and only for consolidated writes.
	if gated {
		recordID, hasRecord := results[LayerRecord]
		vectorID, hasVector := results[LayerVector]
		if hasRecord && hasVector {
			e.graph.AddTriple(recordID, "indexed_as", vectorID,
				1.0, 0.1, graph.KindStructural, "remember", "")
		}
	}

	if _, ok := results[LayerRecord]; !ok {
		if _, ok := results[LayerVector]; !ok {
			return results, fmt.Errorf("remember failed: no durable layer accepted the write")
		}
	}
	return results, nil
}

// ReconstructedContext is the merged retrieval result of Reconstruct.
type ReconstructedContext struct {
	Query         string
	Semantic      []memory.Hit
	Relationships map[string][]graph.RelatedConcept
	Synthesis     string
	Confidence    float64
}

// Reconstruct rebuilds context for a query from the vector index and the
// relationship graph. The graph side is seeded with stop-word-filtered
// top-3 query terms. A vector-layer timeout or error degrades to
// graph-only context instead of failing the call.
func (e *Engine) Reconstruct(ctx context.Context, query, subjectID string, contextDepth, relationshipDepth int) (*ReconstructedContext, error) {
	if contextDepth <= 0 {
		contextDepth = 5
	}
	if relationshipDepth <= 0 {
		relationshipDepth = 1
	}

	rc := &ReconstructedContext{
		Query:         query,
		Relationships: make(map[string][]graph.RelatedConcept),
	}

	// The two layers are independent reads; query them in parallel and
	// join before merging.
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		hits, err := e.semanticSearch(ctx, query, nil, contextDepth)
		if err != nil {
			log.Printf("[ENGINE] Semantic search failed: %v (degrading to graph-only)", err)
			return
		}
		rc.Semantic = hits
	}()

	go func() {
		defer wg.Done()
		for _, concept := range keywordConcepts(query, 3) {
			related := e.graph.FindRelated(concept, relationshipDepth, 0.3)
			if len(related) > 0 {
				rc.Relationships[concept] = related
			}
		}
	}()

	wg.Wait()

	rc.Synthesis = e.synthesizeReconstruction(rc)

	rc.Confidence = 0.3 + 0.1*float64(len(rc.Semantic))
	if rc.Confidence > 0.9 {
		rc.Confidence = 0.9
	}
	if len(rc.Relationships) > 0 {
		rc.Confidence += 0.2
	}
	if rc.Confidence > 1.0 {
		rc.Confidence = 1.0
	}
	return rc, nil
}

// SearchResult is one unified search hit, tagged with its source layer.
type SearchResult struct {
	Layer   string // "vector" or "graph"
	ID      string
	Module  memory.Module
	Content string
	Score   float64
}

// UnifiedSearch merges vector-index hits and, optionally, graph-derived
// hits into one relevance-sorted list truncated to maxResults.
func (e *Engine) UnifiedSearch(ctx context.Context, query string, filters map[string]string, includeRelationships bool, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	var results []SearchResult

	hits, err := e.semanticSearch(ctx, query, filters, maxResults)
	if err != nil {
		log.Printf("[ENGINE] Vector search failed: %v (graph results only)", err)
	}
	for _, hit := range hits {
		results = append(results, SearchResult{
			Layer:   "vector",
			ID:      hit.Record.ID,
			Module:  hit.Record.Module,
			Content: hit.Record.Content,
			Score:   hit.Similarity,
		})
	}

	if includeRelationships {
		for _, concept := range keywordConcepts(query, 3) {
			for _, rel := range e.graph.FindRelated(concept, 1, 0.3) {
				results = append(results, SearchResult{
					Layer:   "graph",
					ID:      concept + ":" + rel.Relationship + ":" + rel.Concept,
					Content: fmt.Sprintf("%s %s %s", concept, rel.Relationship, rel.Concept),
					Score:   rel.Confidence,
				})
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// DetectContradictions delegates to the graph store.
func (e *Engine) DetectContradictions(minConfidence float64) []graph.Contradiction {
	return e.graph.DetectContradictions(minConfidence)
}

// semanticSearch embeds the query and collects the best hits across every
// enabled module, sorted by similarity.
func (e *Engine) semanticSearch(ctx context.Context, query string, filters map[string]string, limit int) ([]memory.Hit, error) {
	vctx, cancel := context.WithTimeout(ctx, e.vectorTimeout)
	defer cancel()

	queryVec, err := e.embedder.Embed(vctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []memory.Hit
	for _, module := range memory.AllModules {
		mc := e.cfg.Module(module)
		if !mc.Enabled {
			continue
		}
		moduleHits, err := e.vectors.Query(vctx, mc.TableName, queryVec, filters, limit)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", module, err)
		}
		hits = append(hits, moduleHits...)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// synthesizeReconstruction renders merged retrieval deterministically.
func (e *Engine) synthesizeReconstruction(rc *ReconstructedContext) string {
	var parts []string

	if len(rc.Semantic) > 0 {
		var b strings.Builder
		b.WriteString("=== RECALLED MEMORIES ===\n")
		for i, hit := range rc.Semantic {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, strings.TrimSpace(hit.Record.Content)))
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}

	if len(rc.Relationships) > 0 {
		concepts := make([]string, 0, len(rc.Relationships))
		for c := range rc.Relationships {
			concepts = append(concepts, c)
		}
		sort.Strings(concepts)

		var b strings.Builder
		b.WriteString("=== RELATED CONCEPTS ===\n")
		for _, concept := range concepts {
			for _, rel := range rc.Relationships[concept] {
				b.WriteString(fmt.Sprintf("%s %s %s (confidence %.2f)\n",
					concept, rel.Relationship, rel.Concept, rel.Confidence))
			}
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(parts, "\n\n")
}

// moduleForItemType routes remembered content to its home module.
func moduleForItemType(itemType string) memory.Module {
	switch itemType {
	case memory.TypeConsolidatedFact:
		return memory.ModuleSemantic
	case "transcript", "conversation":
		return memory.ModuleTranscripts
	case "episode", "event":
		return memory.ModuleEpisodic
	case "document":
		return memory.ModuleDocuments
	case "person":
		return memory.ModulePeople
	default:
		return memory.ModuleNotes
	}
}

func snippet(content string) string {
	const max = 120
	content = strings.TrimSpace(content)
	if len(content) <= max {
		return content
	}
	// Back up to a rune boundary so the cut never leaves invalid UTF-8.
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
