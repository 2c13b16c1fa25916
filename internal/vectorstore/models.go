package vectorstore

// Document represents a document to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the text content of the document.
	Content string

	// Embedding is the precomputed vector for the content.
	Embedding []float32

	// Metadata contains additional key-value pairs for filtering.
	// Common fields: framework, source, cached_at, trace_id.
	Metadata map[string]string
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the document text content.
	Content string

	// Score is the cosine similarity (higher = more similar).
	Score float32

	// Metadata contains the document metadata.
	Metadata map[string]string
}
