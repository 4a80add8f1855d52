package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
	"github.com/kirillkom/provenance-rag/internal/core/ports"
)

// IndexDocumentUseCase is the asynchronous leg of the dual-write: the
// worker drains the queue and hands each enriched document to the
// retrieval engine's indexer.
type IndexDocumentUseCase struct {
	indexer ports.SemanticIndexer
}

func NewIndexDocumentUseCase(indexer ports.SemanticIndexer) *IndexDocumentUseCase {
	return &IndexDocumentUseCase{indexer: indexer}
}

func (uc *IndexDocumentUseCase) IndexDocument(ctx context.Context, doc domain.EnrichedDocument) error {
	if doc.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "index document", fmt.Errorf("missing document id"))
	}
	if err := uc.indexer.Index(ctx, doc); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	return nil
}
