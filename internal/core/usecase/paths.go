package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

const (
	// Confidence for a hop with no direct textual evidence.
	inferredHopConfidence = 0.40
	redundancyStep        = 0.05
	redundancyCap         = 0.15
)

// PathAttributor scores multi-hop reasoning paths against retrieved
// evidence. Pure and goroutine-safe.
type PathAttributor struct{}

func NewPathAttributor() *PathAttributor {
	return &PathAttributor{}
}

func (a *PathAttributor) AttributePaths(paths [][]domain.RelationshipHop, chunks []domain.AttributedChunk) []domain.AttributedPath {
	out := make([]domain.AttributedPath, 0, len(paths))
	for _, hops := range paths {
		if len(hops) == 0 {
			continue
		}
		attributed := domain.AttributedPath{
			PathID: uuid.NewString(),
			Hops:   make([]domain.AttributedHop, 0, len(hops)),
		}
		for i, hop := range hops {
			attributed.Hops = append(attributed.Hops, attributeHop(i+1, hop, chunks))
		}

		// Weakest link: the least-confident hop bounds the whole chain.
		overall := attributed.Hops[0].Confidence
		for _, hop := range attributed.Hops[1:] {
			if hop.Confidence < overall {
				overall = hop.Confidence
			}
		}
		attributed.OverallConfidence = overall
		out = append(out, attributed)
	}
	return out
}

func attributeHop(hopNumber int, hop domain.RelationshipHop, chunks []domain.AttributedChunk) domain.AttributedHop {
	supporting := supportingChunks(hop, chunks)

	out := domain.AttributedHop{
		HopNumber:        hopNumber,
		RelationshipText: fmt.Sprintf("%s %s %s", hop.Entity1, hop.Relation, hop.Entity2),
		SupportingChunks: supporting,
		Confidence:       hopConfidence(supporting),
		SourceTypes:      uniqueSourceTypes(supporting),
		ObservedAt:       latestObservedAt(supporting),
	}
	return out
}

// supportingChunks selects chunks whose content mentions both entities.
func supportingChunks(hop domain.RelationshipHop, chunks []domain.AttributedChunk) []domain.AttributedChunk {
	e1 := strings.ToLower(hop.Entity1)
	e2 := strings.ToLower(hop.Entity2)
	if e1 == "" || e2 == "" {
		return nil
	}

	var out []domain.AttributedChunk
	for _, chunk := range chunks {
		content := strings.ToLower(chunk.Content)
		if strings.Contains(content, e1) && strings.Contains(content, e2) {
			out = append(out, chunk)
		}
	}
	return out
}

func hopConfidence(supporting []domain.AttributedChunk) float64 {
	switch n := len(supporting); {
	case n == 0:
		return inferredHopConfidence
	case n == 1:
		return supporting[0].Confidence
	default:
		sum := 0.0
		for _, chunk := range supporting {
			sum += chunk.Confidence
		}
		boost := redundancyStep * float64(n-1)
		if boost > redundancyCap {
			boost = redundancyCap
		}
		confidence := sum/float64(n) + boost
		if confidence > 1.0 {
			confidence = 1.0
		}
		return confidence
	}
}

func uniqueSourceTypes(supporting []domain.AttributedChunk) []string {
	seen := make(map[string]struct{}, len(supporting))
	var out []string
	for _, chunk := range supporting {
		sourceType := string(chunk.SourceType)
		if _, ok := seen[sourceType]; ok {
			continue
		}
		seen[sourceType] = struct{}{}
		out = append(out, sourceType)
	}
	return out
}

func latestObservedAt(supporting []domain.AttributedChunk) *time.Time {
	var latest *time.Time
	for _, chunk := range supporting {
		if chunk.ObservedAt == nil {
			continue
		}
		if latest == nil || chunk.ObservedAt.After(*latest) {
			latest = chunk.ObservedAt
		}
	}
	return latest
}
