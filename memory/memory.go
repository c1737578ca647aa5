package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Module identifies one named category of memory source.
type Module string

// The fixed module set. Identity outranks working focus, which outranks
// everything retrieved from disk.
const (
	ModuleCore        Module = "core"        // identity components
	ModuleActive      Module = "active"      // current working focus
	ModuleNotes       Module = "notes"       // free-form notes with emotion markers
	ModuleEpisodic    Module = "episodic"    // header-delimited event log
	ModuleSemantic    Module = "semantic"    // header-delimited knowledge
	ModuleDocuments   Module = "documents"   // header-delimited document excerpts
	ModulePeople      Module = "people"      // bullet-list person facts
	ModuleTranscripts Module = "transcripts" // role-marked conversation logs
	ModuleLinks       Module = "links"       // bullet-list associative links
)

// AllModules lists every module in assembly priority order (highest first).
// The assembler's global budget pass trims in exactly this order.
var AllModules = []Module{
	ModuleCore,
	ModuleActive,
	ModuleNotes,
	ModuleEpisodic,
	ModuleSemantic,
	ModuleDocuments,
	ModulePeople,
	ModuleTranscripts,
	ModuleLinks,
}

// TypeConsolidatedFact is the only item type that passes the quality gate
// for relationship-graph writes. Raw notes and transcripts never carry it.
const TypeConsolidatedFact = "consolidated_fact"

// Record is one unit of retrievable content: a note, a document excerpt,
// a conversation turn, or a core-identity component.
//
// Records are re-creatable but never updated in place: the identifier is
// deterministic from (module, source, content), so a changed source
// produces a new record rather than mutating an old one.
type Record struct {
	ID               string
	Module           Module
	Content          string
	Embedding        []float32
	Importance       float64 // [0,1]
	Emotion          string
	EmotionIntensity float64 // [0,1]
	Location         string
	Tags             []string
	Source           string // source path or origin marker
	CreatedAt        time.Time
}

// DeterministicID computes the stable record identifier from the module,
// the source path (or origin marker) and the raw content. Re-indexing the
// same item always yields the same ID, which is what makes indexing
// idempotent.
func DeterministicID(module Module, source, content string) string {
	h := sha256.New()
	h.Write([]byte(module))
	h.Write([]byte{0})
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// EstimateTokens approximates the token cost of content for budget checks.
// The engine uses a fixed length/4 heuristic everywhere so budget math is
// deterministic and independent of any tokenizer.
func EstimateTokens(content string) int {
	return len(content) / 4
}

// Hit is one vector query result: the stored record plus its similarity
// to the query embedding, in [0,1] with 1 meaning identical.
type Hit struct {
	Record     Record
	Similarity float64
}

// VectorStore is the vector index contract. The engine and the indexer
// depend only on this interface; ANN internals live behind it.
//
// Upsert is keyed by Record.ID: writing the same ID twice replaces the
// stored record, it never duplicates it.
type VectorStore interface {
	// Upsert writes a record (with embedding set) into a collection.
	Upsert(ctx context.Context, collection string, rec Record) error

	// Query returns up to limit records by similarity, highest first.
	// filter restricts results by exact metadata match; nil means no filter.
	Query(ctx context.Context, collection string, embedding []float32, filter map[string]string, limit int) ([]Hit, error)

	// Has reports whether a record ID is already present in a collection.
	// This is the point lookup the indexer's idempotency check relies on.
	Has(ctx context.Context, collection, id string) bool

	// Drop removes an entire collection. Dropping a missing collection
	// is not an error.
	Drop(ctx context.Context, collection string) error

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: mock (tests), onnx (local), cached (ristretto decorator).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// RecordStore persists human-readable artifacts append-only and returns a
// stable identifier for each. The engine treats it as a collaborator; the
// markdown implementation under memory/store/markdown is the local default.
type RecordStore interface {
	Write(ctx context.Context, content string, meta map[string]string) (string, error)
}
