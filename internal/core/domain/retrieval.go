package domain

// Retrieval modes are opaque strings passed through to the retrieval
// engine; this system does not interpret them beyond router dispatch.
const (
	ModeNarrow   = "narrow"
	ModeBroad    = "broad"
	ModeMultiHop = "multi_hop"
)

// RetrievalResult is the raw output of the external retrieval engine: a
// synthesized answer, the evidence chunks it used, and any multi-hop
// reasoning paths behind the answer.
type RetrievalResult struct {
	Answer string              `json:"answer"`
	Chunks []Chunk             `json:"chunks"`
	Paths  [][]RelationshipHop `json:"paths,omitempty"`
}
