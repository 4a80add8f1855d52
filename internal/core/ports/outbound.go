package ports

import (
	"context"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

// SignalStore is the structured fact store. Reads are index-backed; writes
// are append-only and happen only during ingestion.
type SignalStore interface {
	Insert(ctx context.Context, signal *domain.Signal) error
	GetLatest(ctx context.Context, subjectID string, factType domain.FactType, period string) (*domain.Signal, error)
	GetHistory(ctx context.Context, subjectID string, factType domain.FactType, limit int) ([]domain.Signal, error)
	GetBySourceDocument(ctx context.Context, documentID string) ([]domain.Signal, error)
}

// RetrievalEngine is the external semantic engine: the sole source of
// synthesized answers and raw evidence. A failure here is fatal for the
// current query.
type RetrievalEngine interface {
	Query(ctx context.Context, text, mode string) (*domain.RetrievalResult, error)
}

// SemanticIndexer hands an enriched document to the retrieval engine's
// index, completing the dual-write.
type SemanticIndexer interface {
	Index(ctx context.Context, doc domain.EnrichedDocument) error
}

// Embedder builds vectors for answer sentences and chunk contents.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// MessageQueue publishes/consumes enriched documents awaiting indexing.
type MessageQueue interface {
	PublishDocumentEnriched(ctx context.Context, doc domain.EnrichedDocument) error
	SubscribeDocumentEnriched(ctx context.Context, handler func(context.Context, domain.EnrichedDocument) error) error
}
