// Package ingest loads framework documentation into the vector store:
// chunk, embed, add.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/vectorstore"
)

var tracer = otel.Tracer("agentd.ingest")

// Embedder is the batch embedding surface ingestion needs.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is one documentation source to ingest.
type Document struct {
	// Content is the raw documentation text.
	Content string `json:"content"`

	// Framework tags every chunk for search-time filtering.
	Framework string `json:"framework"`

	// Source identifies where the documentation came from, usually a URL.
	Source string `json:"source"`
}

// Result summarizes one ingestion run.
type Result struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// Config holds ingestion settings.
type Config struct {
	// Collection is the vector store collection for documentation chunks.
	Collection string

	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// ChunkOverlap is how many characters adjacent chunks share.
	ChunkOverlap int
}

// Service chunks documentation, embeds the chunks, and writes them into
// the vector store with framework and source metadata.
type Service struct {
	embedder Embedder
	store    vectorstore.Store
	splitter textsplitter.TextSplitter
	config   Config
	logger   *zap.Logger
}

// New wires the ingestion service.
func New(embedder Embedder, store vectorstore.Store, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "framework_docs"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	return &Service{
		embedder: embedder,
		store:    store,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		config: cfg,
		logger: logger,
	}
}

// Ingest chunks and stores the given documents. All chunks of the batch
// are embedded in one call; a failure anywhere rejects the whole batch
// so partial documents never end up searchable.
func (s *Service) Ingest(ctx context.Context, docs []Document) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Ingest.Ingest")
	defer span.End()

	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to ingest")
	}

	var (
		texts []string
		metas []map[string]string
	)
	for i, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			return nil, fmt.Errorf("document %d has empty content", i)
		}
		chunks, err := s.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting document %d: %w", i, err)
		}
		for ci, chunk := range chunks {
			texts = append(texts, chunk)
			metas = append(metas, map[string]string{
				"framework":   doc.Framework,
				"source":      doc.Source,
				"chunk_index": strconv.Itoa(ci),
			})
		}
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(texts))
	}

	stored := make([]vectorstore.Document, len(texts))
	for i, text := range texts {
		stored[i] = vectorstore.Document{
			ID:        uuid.NewString(),
			Content:   text,
			Embedding: embeddings[i],
			Metadata:  metas[i],
		}
	}

	if err := s.store.AddDocuments(ctx, s.config.Collection, stored); err != nil {
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetAttributes(
		attribute.Int("documents", len(docs)),
		attribute.Int("chunks", len(stored)),
	)
	s.logger.Info("documentation ingested",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(stored)),
		zap.String("collection", s.config.Collection),
	)
	return &Result{Documents: len(docs), Chunks: len(stored)}, nil
}
