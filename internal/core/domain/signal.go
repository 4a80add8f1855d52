package domain

import "time"

type FactType string

const (
	FactRating      FactType = "rating"
	FactMetric      FactType = "metric"
	FactPriceTarget FactType = "price_target"
)

// Signal is a discrete structured fact extracted during ingestion.
// Signals are append-only: multiple signals may exist for the same
// (subject, fact type, period), one per source document.
type Signal struct {
	ID               string    `json:"id"`
	SubjectID        string    `json:"subject_id"`
	FactType         FactType  `json:"fact_type"`
	Value            string    `json:"value"`
	Period           string    `json:"period,omitempty"`
	Confidence       float64   `json:"confidence"`
	ObservedAt       time.Time `json:"observed_at"`
	SourceDocumentID string    `json:"source_document_id"`
}
