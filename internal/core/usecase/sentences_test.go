package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

// vectorEmbedderFake returns canned vectors by exact text match.
type vectorEmbedderFake struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *vectorEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.vectors[text])
	}
	return out, nil
}

func attributedChunk(id, content string) domain.AttributedChunk {
	return domain.AttributedChunk{
		ID:         id,
		Content:    content,
		SourceType: domain.SourceEmail,
		Confidence: 0.90,
	}
}

func TestAttributeSentencesAboveThreshold(t *testing.T) {
	embedder := &vectorEmbedderFake{vectors: map[string][]float32{
		"NVDA was upgraded to BUY.": {1, 0},
		"upgrade note content":      {1, 0.1},
	}}
	attributor := NewSentenceAttributor(embedder, 0.70)

	got, err := attributor.AttributeSentences(context.Background(), "NVDA was upgraded to BUY.", []domain.AttributedChunk{
		attributedChunk("c1", "upgrade note content"),
	})
	if err != nil {
		t.Fatalf("AttributeSentences() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one sentence, got %d", len(got))
	}
	if !got[0].HasAttribution {
		t.Fatalf("expected attribution above threshold")
	}
	if len(got[0].AttributedChunks) != 1 || got[0].AttributedChunks[0].ID != "c1" {
		t.Fatalf("expected chunk c1 attributed, got %+v", got[0].AttributedChunks)
	}
}

// Similarity below threshold still gets reported for diagnostics.
func TestAttributeSentencesBelowThresholdStillReported(t *testing.T) {
	// cos(angle) = 0.65 between these two unit-ish vectors.
	embedder := &vectorEmbedderFake{vectors: map[string][]float32{
		"Margins may compress next year.": {0.65, 0.7599671},
		"chunk about something else":      {1, 0},
	}}
	attributor := NewSentenceAttributor(embedder, 0.70)

	got, err := attributor.AttributeSentences(context.Background(), "Margins may compress next year.", []domain.AttributedChunk{
		attributedChunk("c1", "chunk about something else"),
	})
	if err != nil {
		t.Fatalf("AttributeSentences() error = %v", err)
	}
	if got[0].HasAttribution {
		t.Fatalf("expected no attribution below threshold")
	}
	if got[0].AttributionConfidence < 0.64 || got[0].AttributionConfidence > 0.66 {
		t.Fatalf("expected confidence near 0.65 reported, got %v", got[0].AttributionConfidence)
	}
	if len(got[0].AttributedChunks) != 0 {
		t.Fatalf("expected no attributed chunks, got %d", len(got[0].AttributedChunks))
	}
}

// Chunk embeddings are computed once per query in a single batched call:
// two Embed calls total, one for chunks and one for sentences.
func TestAttributeSentencesBatchesEmbedCalls(t *testing.T) {
	embedder := &vectorEmbedderFake{vectors: map[string][]float32{
		"First.":  {1, 0},
		"Second.": {0, 1},
		"chunk a": {1, 0},
		"chunk b": {0, 1},
	}}
	attributor := NewSentenceAttributor(embedder, 0.70)

	_, err := attributor.AttributeSentences(context.Background(), "First. Second.", []domain.AttributedChunk{
		attributedChunk("c1", "chunk a"),
		attributedChunk("c2", "chunk b"),
	})
	if err != nil {
		t.Fatalf("AttributeSentences() error = %v", err)
	}
	if embedder.calls != 2 {
		t.Fatalf("expected 2 batched embed calls, got %d", embedder.calls)
	}
}

// A full provider outage fails the attribution step but the sentence list
// still comes back, all unattributed.
func TestAttributeSentencesProviderOutage(t *testing.T) {
	embedder := &vectorEmbedderFake{err: errors.New("provider down")}
	attributor := NewSentenceAttributor(embedder, 0.70)

	got, err := attributor.AttributeSentences(context.Background(), "One. Two.", []domain.AttributedChunk{
		attributedChunk("c1", "chunk"),
	})
	if err == nil {
		t.Fatalf("expected error on provider outage")
	}
	if !domain.IsKind(err, domain.ErrEmbeddingsUnavailable) {
		t.Fatalf("expected ErrEmbeddingsUnavailable, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both sentences returned, got %d", len(got))
	}
	for _, sentence := range got {
		if sentence.HasAttribution {
			t.Fatalf("expected unattributed sentences on outage")
		}
	}
}

func TestAttributeSentencesNoChunks(t *testing.T) {
	attributor := NewSentenceAttributor(&vectorEmbedderFake{}, 0.70)

	got, err := attributor.AttributeSentences(context.Background(), "A claim.", nil)
	if err != nil {
		t.Fatalf("AttributeSentences() error = %v", err)
	}
	if len(got) != 1 || got[0].HasAttribution {
		t.Fatalf("expected one unattributed sentence, got %+v", got)
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First sentence. Second one! A third? trailing fragment")
	want := []string{"First sentence.", "Second one!", "A third?", "trailing fragment"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitSentencesEmpty(t *testing.T) {
	if got := SplitSentences("   "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}
