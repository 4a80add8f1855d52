package domain

import "time"

// RelationshipHop is one edge of a reasoning path supplied by the
// retrieval engine's multi-hop result.
type RelationshipHop struct {
	Entity1  string `json:"entity1"`
	Relation string `json:"relation"`
	Entity2  string `json:"entity2"`
}

type AttributedHop struct {
	HopNumber        int               `json:"hop_number"`
	RelationshipText string            `json:"relationship_text"`
	SupportingChunks []AttributedChunk `json:"supporting_chunks"`
	Confidence       float64           `json:"confidence"`
	SourceTypes      []string          `json:"source_types"`
	ObservedAt       *time.Time        `json:"observed_at,omitempty"`
}

// AttributedPath aggregates hop confidences with the weakest-link rule:
// OverallConfidence is always the minimum hop confidence, never an average.
type AttributedPath struct {
	PathID            string          `json:"path_id"`
	Hops              []AttributedHop `json:"hops"`
	OverallConfidence float64         `json:"overall_confidence"`
}
