package graph

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"
)

// snapshot is the gob-encoded on-disk form of the graph.
type snapshot struct {
	Concepts  map[string]Concept
	Edges     []Edge
	CreatedAt time.Time
}

// sidecar is the JSON metadata written next to every snapshot.
type sidecar struct {
	CreatedAt         time.Time `json:"created_at"`
	LastUpdated       time.Time `json:"last_updated"`
	TotalTriples      int       `json:"total_triples"`
	RelationshipKinds []string  `json:"relationship_kinds"`
}

// Load opens a persisted graph. A missing snapshot starts fresh; a
// corrupt one falls back to an empty graph with a logged warning.
// Startup never fails on bad graph state.
func Load(cfg *Config) *Graph {
	g := New(cfg)
	if g.cfg.SnapshotPath == "" {
		return g
	}

	f, err := os.Open(g.cfg.SnapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[GRAPH] Failed to open snapshot %s: %v (starting empty)", g.cfg.SnapshotPath, err)
		}
		return g
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		log.Printf("[GRAPH] Corrupt snapshot %s: %v (starting empty)", g.cfg.SnapshotPath, err)
		return g
	}

	g.concepts = snap.Concepts
	if g.concepts == nil {
		g.concepts = make(map[string]Concept)
	}
	g.edges = snap.Edges
	if !snap.CreatedAt.IsZero() {
		g.createdAt = snap.CreatedAt
	}
	for idx, e := range g.edges {
		g.out[e.Subject] = append(g.out[e.Subject], idx)
		g.in[e.Object] = append(g.in[e.Object], idx)
	}

	log.Printf("[GRAPH] Loaded %d concepts, %d triples from %s", len(g.concepts), len(g.edges), g.cfg.SnapshotPath)
	return g
}

// Save flushes a snapshot immediately, regardless of the checkpoint
// counter. Call on shutdown to avoid losing the tail interval.
func (g *Graph) Save() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.saveLocked()
	if err == nil {
		g.writesSinceSave = 0
	}
	return err
}

func (g *Graph) saveLocked() error {
	if g.cfg.SnapshotPath == "" {
		return nil
	}

	tmp := g.cfg.SnapshotPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	snap := snapshot{Concepts: g.concepts, Edges: g.edges, CreatedAt: g.createdAt}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, g.cfg.SnapshotPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	if err := g.writeSidecarLocked(); err != nil {
		// Sidecar is informational; a failed write never fails the checkpoint.
		log.Printf("[GRAPH] Sidecar write failed: %v", err)
	}
	return nil
}

func (g *Graph) writeSidecarLocked() error {
	kindSet := make(map[Kind]bool)
	for _, e := range g.edges {
		kindSet[e.Kind] = true
	}
	kinds := make([]string, 0, len(kindSet))
	for k := range kindSet {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	meta := sidecar{
		CreatedAt:         g.createdAt,
		LastUpdated:       time.Now(),
		TotalTriples:      len(g.edges),
		RelationshipKinds: kinds,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.cfg.SnapshotPath+".meta.json", data, 0o644)
}
