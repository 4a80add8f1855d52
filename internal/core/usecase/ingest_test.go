package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

type insertRecordingStore struct {
	signalStoreFake
	inserted  []domain.Signal
	insertErr error
}

func (f *insertRecordingStore) Insert(_ context.Context, signal *domain.Signal) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *signal)
	return nil
}

type queueFake struct {
	published []domain.EnrichedDocument
	err       error
}

func (f *queueFake) PublishDocumentEnriched(_ context.Context, doc domain.EnrichedDocument) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, doc)
	return nil
}

func (f *queueFake) SubscribeDocumentEnriched(context.Context, func(context.Context, domain.EnrichedDocument) error) error {
	return nil
}

func enrichedDoc() domain.EnrichedDocument {
	return domain.EnrichedDocument{
		ID:           "doc1",
		ArtifactPath: "email:doc1.eml",
		Content:      "NVDA upgraded to BUY. [EMAIL:doc1.eml|date=2024-07-12]",
	}
}

func TestIngestWritesSignalsAndQueuesDocument(t *testing.T) {
	store := &insertRecordingStore{}
	queue := &queueFake{}
	uc := NewIngestUseCase(store, queue)

	receipt, err := uc.Ingest(context.Background(), enrichedDoc(), []domain.Signal{
		{SubjectID: "NVDA", FactType: domain.FactRating, Value: "BUY", Confidence: 0.90},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if receipt.SignalsWritten != 1 || receipt.SignalsFailed != 0 {
		t.Fatalf("expected 1 written 0 failed, got %+v", receipt)
	}
	if !receipt.IndexQueued {
		t.Fatalf("expected index queued")
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one stored signal, got %d", len(store.inserted))
	}
	if store.inserted[0].SourceDocumentID != "doc1" {
		t.Fatalf("expected source document backfilled, got %q", store.inserted[0].SourceDocumentID)
	}
	if store.inserted[0].ID == "" {
		t.Fatalf("expected signal id assigned")
	}
	if len(queue.published) != 1 || queue.published[0].ID != "doc1" {
		t.Fatalf("expected document published, got %+v", queue.published)
	}
}

// Structured store failures never block the semantic leg of the dual-write.
func TestIngestSignalFailureIsNonFatal(t *testing.T) {
	store := &insertRecordingStore{insertErr: errors.New("store down")}
	queue := &queueFake{}
	uc := NewIngestUseCase(store, queue)

	receipt, err := uc.Ingest(context.Background(), enrichedDoc(), []domain.Signal{
		{SubjectID: "NVDA", FactType: domain.FactRating, Value: "BUY"},
		{SubjectID: "NVDA", FactType: domain.FactPriceTarget, Value: "150"},
	})
	if err != nil {
		t.Fatalf("expected ingestion to proceed, got %v", err)
	}
	if receipt.SignalsWritten != 0 || receipt.SignalsFailed != 2 {
		t.Fatalf("expected 0 written 2 failed, got %+v", receipt)
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected document still published, got %d", len(queue.published))
	}
}

func TestIngestQueueFailureIsFatal(t *testing.T) {
	store := &insertRecordingStore{}
	queue := &queueFake{err: errors.New("queue down")}
	uc := NewIngestUseCase(store, queue)

	_, err := uc.Ingest(context.Background(), enrichedDoc(), nil)
	if err == nil {
		t.Fatalf("expected error when the indexing leg cannot be queued")
	}
}

func TestIngestRejectsMissingArtifactPath(t *testing.T) {
	uc := NewIngestUseCase(&insertRecordingStore{}, &queueFake{})

	doc := enrichedDoc()
	doc.ArtifactPath = ""
	_, err := uc.Ingest(context.Background(), doc, nil)
	if err == nil {
		t.Fatalf("expected error for missing artifact path")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestAssignsDocumentID(t *testing.T) {
	queue := &queueFake{}
	uc := NewIngestUseCase(&insertRecordingStore{}, queue)

	doc := enrichedDoc()
	doc.ID = ""
	receipt, err := uc.Ingest(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if receipt.DocumentID == "" {
		t.Fatalf("expected generated document id")
	}
	if queue.published[0].ID != receipt.DocumentID {
		t.Fatalf("expected published id to match receipt")
	}
}
