package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

type indexerFake struct {
	indexed []domain.EnrichedDocument
	err     error
}

func (f *indexerFake) Index(_ context.Context, doc domain.EnrichedDocument) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, doc)
	return nil
}

func TestIndexDocument(t *testing.T) {
	indexer := &indexerFake{}
	uc := NewIndexDocumentUseCase(indexer)

	if err := uc.IndexDocument(context.Background(), enrichedDoc()); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if len(indexer.indexed) != 1 || indexer.indexed[0].ID != "doc1" {
		t.Fatalf("expected doc1 indexed, got %+v", indexer.indexed)
	}
}

func TestIndexDocumentRejectsMissingID(t *testing.T) {
	uc := NewIndexDocumentUseCase(&indexerFake{})

	err := uc.IndexDocument(context.Background(), domain.EnrichedDocument{Content: "x"})
	if err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestIndexDocumentPropagatesIndexerError(t *testing.T) {
	uc := NewIndexDocumentUseCase(&indexerFake{err: errors.New("engine down")})

	if err := uc.IndexDocument(context.Background(), enrichedDoc()); err == nil {
		t.Fatalf("expected indexer error")
	}
}
