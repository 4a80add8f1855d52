package ports

import (
	"context"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

// QueryService is the inbound contract for attributed question answering.
type QueryService interface {
	Answer(ctx context.Context, question string) (*domain.AttributedAnswer, error)
}

// DocumentIngestor is the inbound contract for dual-write ingestion.
type DocumentIngestor interface {
	Ingest(ctx context.Context, doc domain.EnrichedDocument, signals []domain.Signal) (*domain.IngestReceipt, error)
}

// DocumentIndexer is the inbound contract for the asynchronous indexing
// leg of the dual-write, driven by the queue worker.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, doc domain.EnrichedDocument) error
}
