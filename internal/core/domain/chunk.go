package domain

import "time"

type SourceType string

const (
	SourceEmail   SourceType = "email"
	SourceAPI     SourceType = "api"
	SourceFiling  SourceType = "filing"
	SourceWeb     SourceType = "web"
	SourceUnknown SourceType = "unknown"
)

// AttributionMethod records which fallback tier resolved a chunk's source.
type AttributionMethod string

const (
	AttributionMarker  AttributionMethod = "marker"
	AttributionDerived AttributionMethod = "derived"
	AttributionDefault AttributionMethod = "default"
)

// Chunk is a raw evidence unit returned by the retrieval engine. The
// artifact path follows the "source_type:details" convention; markers, if
// any, sit inline in the content.
type Chunk struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	ArtifactPath string `json:"artifact_path"`
}

// AttributedChunk is the per-query enriched view of a Chunk. Confidence is
// a statement about the source artifact, not about which tier detected it:
// chunks from the same artifact carry the same confidence regardless of
// whether an inline marker was present.
type AttributedChunk struct {
	ID            string            `json:"id"`
	Content       string            `json:"content"`
	ArtifactPath  string            `json:"artifact_path"`
	SourceType    SourceType        `json:"source_type"`
	SourceDetails map[string]string `json:"source_details,omitempty"`
	Method        AttributionMethod `json:"attribution_method"`
	Confidence    float64           `json:"confidence"`
	ObservedAt    *time.Time        `json:"observed_at,omitempty"`
	RelevanceRank int               `json:"relevance_rank"`
}
