package usecase

import (
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

// Inline provenance markers are embedded by the upstream tagger before a
// document reaches the retrieval engine's index. The grammar is a stable
// contract:
//
//	[API:<provider>|subject=<id>|date=<YYYY-MM-DD>]
//	[EMAIL:<filename>|from=<addr>|date=<YYYY-MM-DD>]
//	[SRC:<source_type>|<key>=<value>|...]
//
// Marker families are tried in priority order: API, then email, then the
// generic form, then the artifact-path fallback, then the default tier.
var (
	apiMarkerPattern     = regexp.MustCompile(`\[API:([^|\]]+)((?:\|[^|\]]+)*)\]`)
	emailMarkerPattern   = regexp.MustCompile(`\[EMAIL:([^|\]]+)((?:\|[^|\]]+)*)\]`)
	genericMarkerPattern = regexp.MustCompile(`\[SRC:([a-z_]+)((?:\|[^|\]]+)*)\]`)
)

// Source-class confidence is a property of the artifact, not of how the
// source was detected: tier 2 assigns the same score as tier 1 so sibling
// chunks from one artifact never diverge.
var sourceConfidence = map[domain.SourceType]float64{
	domain.SourceEmail:   0.90,
	domain.SourceAPI:     0.85,
	domain.SourceFiling:  0.90,
	domain.SourceWeb:     0.65,
	domain.SourceUnknown: 0.30,
}

const defaultConfidence = 0.30

// ContextParser resolves chunk provenance through the three-tier fallback.
// It is pure and never fails: the worst case is the unknown-source default.
type ContextParser struct{}

func NewContextParser() *ContextParser {
	return &ContextParser{}
}

// Enrich converts a raw chunk into an attributed one. The relevance rank
// is the chunk's 1-based position in the retrieval result.
func (p *ContextParser) Enrich(chunk domain.Chunk, relevanceRank int) domain.AttributedChunk {
	if relevanceRank < 1 {
		relevanceRank = 1
	}

	out := domain.AttributedChunk{
		ID:            chunk.ID,
		Content:       chunk.Content,
		ArtifactPath:  chunk.ArtifactPath,
		RelevanceRank: relevanceRank,
	}

	if sourceType, details, observedAt, ok := parseInlineMarker(chunk.Content); ok {
		out.SourceType = sourceType
		out.SourceDetails = details
		out.ObservedAt = observedAt
		out.Method = domain.AttributionMarker
		out.Confidence = sourceConfidence[sourceType]
		return out
	}

	if sourceType, details, ok := parseArtifactPath(chunk.ArtifactPath); ok {
		out.SourceType = sourceType
		out.SourceDetails = details
		out.Method = domain.AttributionDerived
		out.Confidence = sourceConfidence[sourceType]
		return out
	}

	out.SourceType = domain.SourceUnknown
	out.Method = domain.AttributionDefault
	out.Confidence = defaultConfidence
	return out
}

func parseInlineMarker(content string) (domain.SourceType, map[string]string, *time.Time, bool) {
	if m := apiMarkerPattern.FindStringSubmatch(content); m != nil {
		details := parseMarkerFields(m[2])
		details["provider"] = strings.TrimSpace(m[1])
		return domain.SourceAPI, details, popMarkerDate(details), true
	}
	if m := emailMarkerPattern.FindStringSubmatch(content); m != nil {
		details := parseMarkerFields(m[2])
		details["filename"] = strings.TrimSpace(m[1])
		return domain.SourceEmail, details, popMarkerDate(details), true
	}
	if m := genericMarkerPattern.FindStringSubmatch(content); m != nil {
		details := parseMarkerFields(m[2])
		return normalizeSourceType(m[1]), details, popMarkerDate(details), true
	}
	return "", nil, nil, false
}

func parseMarkerFields(raw string) map[string]string {
	details := make(map[string]string)
	for _, field := range strings.Split(raw, "|") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		details[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return details
}

func popMarkerDate(details map[string]string) *time.Time {
	raw, ok := details["date"]
	if !ok {
		return nil
	}
	delete(details, "date")
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// parseArtifactPath handles the "source_type:details" fallback key, e.g.
// "email:ACME_Q2_Earnings.eml" or "api:refinitiv:NVDA".
func parseArtifactPath(path string) (domain.SourceType, map[string]string, bool) {
	prefix, rest, found := strings.Cut(path, ":")
	if !found || strings.TrimSpace(rest) == "" {
		return "", nil, false
	}
	sourceType := normalizeSourceType(prefix)
	if sourceType == domain.SourceUnknown {
		return "", nil, false
	}
	return sourceType, map[string]string{"reference": strings.TrimSpace(rest)}, true
}

func normalizeSourceType(raw string) domain.SourceType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "email", "eml":
		return domain.SourceEmail
	case "api", "feed":
		return domain.SourceAPI
	case "filing", "sec":
		return domain.SourceFiling
	case "web", "http", "https", "url":
		return domain.SourceWeb
	default:
		return domain.SourceUnknown
	}
}
