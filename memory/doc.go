// Package memory defines the core types and contracts of the cross-layer
// memory engine: indexed records, the vector index store, the embedding
// provider, the record store, and the per-module index configuration.
//
// The engine persists everything an agent learns across three layers:
//   - Record store: append-only human-readable artifacts
//   - Vector index: embedding-based semantic retrieval
//   - Relationship graph: typed, confidence-scored concept edges
//
// Architecture:
//   - VectorStore: vector index backend (chromem-go for local, pgvector-class
//     stores for production)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX for local,
//     API embedders for production)
//   - RecordStore: human-readable artifact persistence
//
// The engine package orchestrates writes and reads across all three layers;
// the indexer package keeps the vector index synchronized with on-disk
// memory sources; the assembler package builds token-bounded context windows
// from ranked candidates.
package memory
