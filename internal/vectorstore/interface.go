// Package vectorstore defines the interface for vector storage operations
// and provides embedded (chromem-go) and external (Qdrant) implementations.
//
// Callers supply precomputed embeddings; the store never embeds text
// itself. Scores returned from Query are cosine similarities in [0, 1]
// where higher means more similar.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrDimensionMismatch indicates an embedding whose dimension does not
	// match the collection's vector size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConnectionFailed indicates the backing store is unreachable.
	ErrConnectionFailed = errors.New("vector store connection failed")
)

// Store is the interface for vector storage operations.
//
// Implementations are transport-agnostic. Collections are namespaces for
// documents: agentd keeps framework documentation and semantic cache
// entries in separate collections of the same store.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	// Existing collections are left untouched.
	EnsureCollection(ctx context.Context, name string, vectorSize int) error

	// AddDocuments inserts documents with precomputed embeddings into the
	// collection. Existing documents with the same ID are overwritten.
	AddDocuments(ctx context.Context, collection string, docs []Document) error

	// Query returns up to topK documents nearest to the embedding by
	// cosine similarity, ordered by descending score. Filters match
	// document metadata exactly; all conditions must hold.
	Query(ctx context.Context, collection string, embedding []float32, topK int, filters map[string]string) ([]SearchResult, error)

	// DeleteDocuments removes documents by ID from the collection.
	DeleteDocuments(ctx context.Context, collection string, ids []string) error

	// Close releases the store's resources.
	Close() error
}
