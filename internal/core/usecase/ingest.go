package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
	"github.com/kirillkom/provenance-rag/internal/core/ports"
)

// IngestUseCase is the dual-write coordinator. Signals land in the
// structured store on a best-effort basis; the enriched document is always
// queued for semantic indexing. The semantic index is the system of
// record, the structured store an optimization layer, so a signal write
// failure never blocks ingestion.
type IngestUseCase struct {
	signals ports.SignalStore
	queue   ports.MessageQueue
}

func NewIngestUseCase(signals ports.SignalStore, queue ports.MessageQueue) *IngestUseCase {
	return &IngestUseCase{signals: signals, queue: queue}
}

func (uc *IngestUseCase) Ingest(ctx context.Context, doc domain.EnrichedDocument, signals []domain.Signal) (*domain.IngestReceipt, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("empty document content"))
	}
	if strings.TrimSpace(doc.ArtifactPath) == "" {
		// The artifact path is the fallback attribution key; a document
		// without one would produce unattributable chunks.
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("missing artifact path"))
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	written, failed := 0, 0
	for i := range signals {
		signal := signals[i]
		if signal.ID == "" {
			signal.ID = uuid.NewString()
		}
		if signal.SourceDocumentID == "" {
			signal.SourceDocumentID = doc.ID
		}
		if signal.ObservedAt.IsZero() {
			signal.ObservedAt = doc.CreatedAt
		}

		if err := uc.signals.Insert(ctx, &signal); err != nil {
			failed++
			slog.Warn("signal write failed, ingestion continues",
				"document_id", doc.ID,
				"subject", signal.SubjectID,
				"fact_type", signal.FactType,
				"error", err,
			)
			continue
		}
		written++
	}

	if err := uc.queue.PublishDocumentEnriched(ctx, doc); err != nil {
		return nil, fmt.Errorf("queue document for indexing: %w", err)
	}

	return &domain.IngestReceipt{
		DocumentID:     doc.ID,
		SignalsWritten: written,
		SignalsFailed:  failed,
		IndexQueued:    true,
	}, nil
}
