// Package chromem implements the vector index store on chromem-go,
// a pure Go embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mnemo-ai/mnemo-go-sdk/memory"
)

// Store wraps chromem-go behind the memory.VectorStore contract.
// Each module gets its own collection; record IDs are tracked per
// collection so the indexer's idempotency check is a map lookup.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	ids         map[string]map[string]struct{}
	mu          sync.RWMutex
}

// New creates an in-memory chromem store.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		ids:         make(map[string]map[string]struct{}),
	}, nil
}

func (s *Store) getOrCreateCollection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[name]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[name]; exists {
		return col, nil
	}

	col, err := s.db.CreateCollection(
		name,
		nil, // no collection metadata
		nil, // embeddings are provided by the caller, no embedding func
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[name] = col
	s.ids[name] = make(map[string]struct{})
	return col, nil
}

// Upsert writes a record into a collection, keyed by its ID.
func (s *Store) Upsert(ctx context.Context, collection string, rec memory.Record) error {
	col, err := s.getOrCreateCollection(collection)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Content,
		Embedding: rec.Embedding,
		Metadata:  recordMetadata(rec),
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.mu.Lock()
	s.ids[collection][rec.ID] = struct{}{}
	s.mu.Unlock()

	return nil
}

// Query retrieves records by vector similarity, highest first.
func (s *Store) Query(ctx context.Context, collection string, embedding []float32, filter map[string]string, limit int) ([]memory.Hit, error) {
	col, err := s.getOrCreateCollection(collection)
	if err != nil {
		return nil, err
	}

	// chromem-go rejects nResults larger than the collection size, so
	// retry with smaller limits until a query succeeds or the collection
	// turns out to be empty.
	var results []chromem.Result
	for currentLimit := limit; currentLimit >= 1; currentLimit-- {
		results, err = col.QueryEmbedding(ctx, embedding, currentLimit, filter, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if currentLimit == 1 {
				return nil, nil // collection is empty
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]memory.Hit, 0, len(results))
	for i, result := range results {
		rec, err := recordFromResult(collection, result)
		if err != nil {
			log.Printf("[CHROMEM] Skipping result #%d: %v", i+1, err)
			continue
		}
		hits = append(hits, memory.Hit{Record: rec, Similarity: float64(result.Similarity)})
	}
	return hits, nil
}

// Has reports whether a record ID is present in a collection.
func (s *Store) Has(ctx context.Context, collection, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.ids[collection]
	if !ok {
		return false
	}
	_, ok = set[id]
	return ok
}

// Drop removes an entire collection. Missing collections are not an error.
func (s *Store) Drop(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection]; !ok {
		return nil
	}
	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	delete(s.collections, collection)
	delete(s.ids, collection)
	return nil
}

// Close releases resources. chromem-go keeps everything in memory,
// so there is nothing to release.
func (s *Store) Close() error {
	return nil
}

// recordMetadata flattens record fields into chromem's string metadata.
func recordMetadata(rec memory.Record) map[string]string {
	md := map[string]string{
		"module":     string(rec.Module),
		"source":     rec.Source,
		"importance": strconv.FormatFloat(rec.Importance, 'f', -1, 64),
		"created_at": rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.Emotion != "" {
		md["emotion"] = rec.Emotion
		md["emotion_intensity"] = strconv.FormatFloat(rec.EmotionIntensity, 'f', -1, 64)
	}
	if rec.Location != "" {
		md["location"] = rec.Location
	}
	if len(rec.Tags) > 0 {
		md["tags"] = strings.Join(rec.Tags, ",")
	}
	return md
}

// recordFromResult rebuilds a memory.Record from a chromem result.
func recordFromResult(collection string, result chromem.Result) (memory.Record, error) {
	if result.ID == "" {
		return memory.Record{}, fmt.Errorf("result without ID in collection %s", collection)
	}

	rec := memory.Record{
		ID:        result.ID,
		Module:    memory.Module(result.Metadata["module"]),
		Content:   result.Content,
		Embedding: result.Embedding,
		Source:    result.Metadata["source"],
		Emotion:   result.Metadata["emotion"],
		Location:  result.Metadata["location"],
	}
	rec.Importance, _ = strconv.ParseFloat(result.Metadata["importance"], 64)
	rec.EmotionIntensity, _ = strconv.ParseFloat(result.Metadata["emotion_intensity"], 64)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, result.Metadata["created_at"])
	if tags := result.Metadata["tags"]; tags != "" {
		rec.Tags = strings.Split(tags, ",")
	}
	return rec, nil
}

// isInsufficientDocsError checks if a query failed only because the
// collection holds fewer documents than requested.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
