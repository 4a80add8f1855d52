package domain

import "time"

// EnrichedDocument is the unit handed to ingestion: annotated text with
// inline provenance markers already embedded by the upstream tagger, plus
// the artifact path used for fallback attribution.
type EnrichedDocument struct {
	ID           string    `json:"id"`
	ArtifactPath string    `json:"artifact_path"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// IngestReceipt reports the outcome of a dual-write ingestion. Signal
// write failures are counted, not propagated; indexing always proceeds.
type IngestReceipt struct {
	DocumentID     string `json:"document_id"`
	SignalsWritten int    `json:"signals_written"`
	SignalsFailed  int    `json:"signals_failed"`
	IndexQueued    bool   `json:"index_queued"`
}
