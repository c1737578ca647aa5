// Package indexer keeps the vector index synchronized with on-disk memory
// sources. It runs independently of the live write path: content authored
// outside the engine (externally edited notes, appended transcripts)
// becomes searchable on the next indexing pass.
//
// Indexing is idempotent. Every discovered item gets a deterministic
// identifier, and the indexer does a point lookup before embedding, so a
// second pass over unchanged sources writes nothing and the dominant cost
// (embedding) is paid at most once per unique item.
package indexer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/mnemo-ai/mnemo-go-sdk/memory"
)

// Item is one unit of content discovered by an extractor, before it is
// assigned its deterministic identifier and embedded.
type Item struct {
	Source           string // path (plus fragment) relative to the memory root
	Content          string
	Importance       float64
	Emotion          string
	EmotionIntensity float64
	Tags             []string
}

// Extractor walks one module's source content under dir and returns the
// items it contains. Each module has its own parsing policy.
type Extractor func(dir string) ([]Item, error)

// Indexer performs incremental indexing of all memory source modules.
type Indexer struct {
	root       string
	cfg        *memory.IndexConfig
	cfgPath    string // empty disables config persistence
	store      memory.VectorStore
	embedder   memory.Embedder
	extractors map[memory.Module]Extractor
}

// New creates an indexer over a memory root directory. Each module reads
// from the subdirectory named after it. The extractor registry is
// resolved once here, so dispatch is a map lookup and the module set is
// fixed at construction.
func New(root string, cfg *memory.IndexConfig, cfgPath string, store memory.VectorStore, embedder memory.Embedder) *Indexer {
	if cfg == nil {
		cfg = memory.DefaultIndexConfig()
	}
	return &Indexer{
		root:     root,
		cfg:      cfg,
		cfgPath:  cfgPath,
		store:    store,
		embedder: embedder,
		extractors: map[memory.Module]Extractor{
			memory.ModuleCore:        extractPerFile(0.9),
			memory.ModuleActive:      extractBullets(0.6),
			memory.ModuleNotes:       extractNotes,
			memory.ModuleEpisodic:    extractHeaderBlocks(0.5),
			memory.ModuleSemantic:    extractHeaderBlocks(0.5),
			memory.ModuleDocuments:   extractHeaderBlocks(0.4),
			memory.ModulePeople:      extractBullets(0.5),
			memory.ModuleTranscripts: extractTranscripts,
			memory.ModuleLinks:       extractBullets(0.3),
		},
	}
}

// IndexModule indexes one module and returns how many new items were
// written. A disabled module returns 0 without error. With forceReindex
// false, items already present in the vector index are skipped after a
// point lookup; forceReindex re-embeds and rewrites everything.
func (ix *Indexer) IndexModule(ctx context.Context, module memory.Module, forceReindex bool) (int, error) {
	mc := ix.cfg.Module(module)
	if !mc.Enabled {
		return 0, nil
	}

	extract, ok := ix.extractors[module]
	if !ok {
		return 0, fmt.Errorf("no extractor registered for module %q", module)
	}

	items, err := extract(filepath.Join(ix.root, string(module)))
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", module, err)
	}

	indexed := 0
	for _, item := range items {
		id := memory.DeterministicID(module, item.Source, item.Content)

		if !forceReindex && ix.store.Has(ctx, mc.TableName, id) {
			continue
		}

		embedding, err := ix.embedder.Embed(ctx, item.Content)
		if err != nil {
			log.Printf("[INDEXER] Failed to embed %s item %s: %v", module, item.Source, err)
			continue
		}

		rec := memory.Record{
			ID:               id,
			Module:           module,
			Content:          item.Content,
			Embedding:        embedding,
			Importance:       item.Importance,
			Emotion:          item.Emotion,
			EmotionIntensity: item.EmotionIntensity,
			Tags:             item.Tags,
			Source:           item.Source,
			CreatedAt:        time.Now(),
		}
		if err := ix.store.Upsert(ctx, mc.TableName, rec); err != nil {
			log.Printf("[INDEXER] Failed to index %s item %s: %v", module, item.Source, err)
			continue
		}
		indexed++
	}

	mc.LastIndexed = time.Now()
	mc.IndexCount += indexed
	ix.saveConfig()

	if indexed > 0 {
		log.Printf("[INDEXER] Indexed %d new items for module %s", indexed, module)
	}
	return indexed, nil
}

// IndexAllEnabled indexes every enabled module. A failure in one module
// is logged and recorded as 0 for that module; it never aborts the rest.
func (ix *Indexer) IndexAllEnabled(ctx context.Context, forceReindex bool) map[memory.Module]int {
	counts := make(map[memory.Module]int, len(memory.AllModules))
	for _, module := range memory.AllModules {
		if !ix.cfg.Module(module).Enabled {
			continue
		}
		n, err := ix.IndexModule(ctx, module, forceReindex)
		if err != nil {
			log.Printf("[INDEXER] Module %s failed: %v", module, err)
			counts[module] = 0
			continue
		}
		counts[module] = n
	}
	return counts
}

// RebuildIndex drops the module's collection (best effort) and performs a
// forced full reindex. This is the only operation that deletes indexed
// data.
func (ix *Indexer) RebuildIndex(ctx context.Context, module memory.Module) (int, error) {
	mc := ix.cfg.Module(module)
	if err := ix.store.Drop(ctx, mc.TableName); err != nil {
		log.Printf("[INDEXER] Drop %s before rebuild failed: %v (continuing)", mc.TableName, err)
	}
	mc.IndexCount = 0
	return ix.IndexModule(ctx, module, true)
}

// saveConfig persists module stats. Failures are logged, never fatal:
// losing a stat update means at worst a little redundant lookup work on
// the next pass.
func (ix *Indexer) saveConfig() {
	if ix.cfgPath == "" {
		return
	}
	if err := ix.cfg.Save(ix.cfgPath); err != nil {
		log.Printf("[INDEXER] Failed to save index config: %v", err)
	}
}
