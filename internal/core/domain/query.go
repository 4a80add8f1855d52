package domain

type QueryType string

const (
	QueryStructured QueryType = "structured"
	QuerySemantic   QueryType = "semantic"
	QueryHybrid     QueryType = "hybrid"
	QueryUnknown    QueryType = "unknown"
)

type QueryClassification struct {
	QueryType        QueryType `json:"query_type"`
	Confidence       float64   `json:"confidence"`
	ExtractedSubject string    `json:"extracted_subject,omitempty"`
	ExtractedFact    FactType  `json:"extracted_fact_type,omitempty"`
	ExtractedPeriod  string    `json:"extracted_period,omitempty"`
}

// AttributedSentence maps one sentence of a synthesized answer to the
// chunks that plausibly support it. AttributionConfidence is the max
// similarity achieved and is reported even when below the threshold.
type AttributedSentence struct {
	Text                  string            `json:"text"`
	AttributedChunks      []AttributedChunk `json:"attributed_chunks,omitempty"`
	AttributionConfidence float64           `json:"attribution_confidence"`
	HasAttribution        bool              `json:"has_attribution"`
}

// AttributedAnswer is the full query result: the synthesized (or
// structured) answer text plus the provenance trail behind it.
type AttributedAnswer struct {
	Text           string               `json:"text"`
	Classification QueryClassification  `json:"classification"`
	Signals        []Signal             `json:"signals,omitempty"`
	Sources        []AttributedChunk    `json:"sources,omitempty"`
	Sentences      []AttributedSentence `json:"sentences,omitempty"`
	Paths          []AttributedPath     `json:"paths,omitempty"`
}
