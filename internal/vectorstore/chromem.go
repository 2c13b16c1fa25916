package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("agentd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means
	// in-memory only (used by tests).
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	VectorSize int
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database. It needs no external service and persists to gob files
// when a path is configured.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// collections caches *chromem.Collection handles by name.
	collections sync.Map
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

// noEmbedding rejects server-side embedding. agentd always supplies
// precomputed vectors, so this function must never be reached.
func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("%w: embeddings must be precomputed", ErrInvalidConfig)
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	if c, ok := s.collections.Load(name); ok {
		return c.(*chromem.Collection), nil
	}
	c, err := s.db.GetOrCreateCollection(name, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	s.collections.Store(name, c)
	return c, nil
}

// EnsureCollection creates the collection if missing.
func (s *ChromemStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()

	if vectorSize != s.config.VectorSize {
		return fmt.Errorf("%w: collection wants %d, store configured for %d",
			ErrDimensionMismatch, vectorSize, s.config.VectorSize)
	}
	_, err := s.collection(name)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// AddDocuments inserts documents with precomputed embeddings.
func (s *ChromemStore) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("count", len(docs)),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	c, err := s.collection(collection)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) != s.config.VectorSize {
			return fmt.Errorf("%w: document %s has dimension %d, want %d",
				ErrDimensionMismatch, doc.ID, len(doc.Embedding), s.config.VectorSize)
		}
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  doc.Metadata,
		}
	}

	if err := c.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to %s: %w", collection, err)
	}

	s.logger.Debug("documents added",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query returns the topK nearest documents by cosine similarity.
func (s *ChromemStore) Query(ctx context.Context, collection string, embedding []float32, topK int, filters map[string]string) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", ErrInvalidConfig)
	}
	if len(embedding) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			ErrDimensionMismatch, len(embedding), s.config.VectorSize)
	}

	c, err := s.collection(collection)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// chromem rejects nResults larger than the collection size.
	count := c.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := c.QueryEmbedding(ctx, embedding, topK, filters, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}
	return out, nil
}

// DeleteDocuments removes documents by ID.
func (s *ChromemStore) DeleteDocuments(ctx context.Context, collection string, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteDocuments")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}
	c, err := s.collection(collection)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// Close releases resources. chromem persists eagerly, so this is a no-op.
func (s *ChromemStore) Close() error {
	return nil
}
