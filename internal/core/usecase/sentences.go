package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
	"github.com/kirillkom/provenance-rag/internal/core/ports"
)

const DefaultAttributionThreshold = 0.70

// SentenceAttributor maps answer sentences to the chunks that most
// plausibly support them via embedding cosine similarity. Chunk vectors
// are memoized per query, keyed by chunk ID.
type SentenceAttributor struct {
	embedder  ports.Embedder
	threshold float64
}

func NewSentenceAttributor(embedder ports.Embedder, threshold float64) *SentenceAttributor {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultAttributionThreshold
	}
	return &SentenceAttributor{embedder: embedder, threshold: threshold}
}

// AttributeSentences splits the answer and scores every sentence against
// every chunk. On a total embedding outage it still returns the sentence
// list, all unattributed, alongside the error so the caller can surface a
// degraded-but-usable answer.
func (a *SentenceAttributor) AttributeSentences(ctx context.Context, answerText string, chunks []domain.AttributedChunk) ([]domain.AttributedSentence, error) {
	sentences := SplitSentences(answerText)
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(chunks) == 0 {
		return unattributed(sentences), nil
	}

	chunkVectors, err := a.embedChunks(ctx, chunks)
	if err != nil {
		return unattributed(sentences), domain.WrapError(domain.ErrEmbeddingsUnavailable, "embed chunks", err)
	}

	sentenceVectors, err := a.embedder.Embed(ctx, sentences)
	if err != nil {
		return unattributed(sentences), domain.WrapError(domain.ErrEmbeddingsUnavailable, "embed sentences", err)
	}
	if len(sentenceVectors) != len(sentences) {
		return unattributed(sentences), domain.WrapError(
			domain.ErrEmbeddingsUnavailable,
			"embed sentences",
			fmt.Errorf("vectors/sentences mismatch: %d/%d", len(sentenceVectors), len(sentences)),
		)
	}

	out := make([]domain.AttributedSentence, 0, len(sentences))
	for i, sentence := range sentences {
		out = append(out, a.attributeOne(sentence, sentenceVectors[i], chunks, chunkVectors))
	}
	return out, nil
}

func (a *SentenceAttributor) attributeOne(sentence string, vector []float32, chunks []domain.AttributedChunk, chunkVectors map[string][]float32) domain.AttributedSentence {
	out := domain.AttributedSentence{Text: sentence}
	if len(vector) == 0 {
		return out
	}

	for _, chunk := range chunks {
		chunkVector, ok := chunkVectors[chunk.ID]
		if !ok {
			continue
		}
		similarity := cosineSimilarity(vector, chunkVector)
		if similarity > out.AttributionConfidence {
			out.AttributionConfidence = similarity
		}
		if similarity >= a.threshold {
			out.AttributedChunks = append(out.AttributedChunks, chunk)
			out.HasAttribution = true
		}
	}
	return out
}

// embedChunks builds the per-query memo of chunk vectors. Each unique
// chunk is embedded once in a single batched call.
func (a *SentenceAttributor) embedChunks(ctx context.Context, chunks []domain.AttributedChunk) (map[string][]float32, error) {
	ids := make([]string, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.ID]; ok {
			continue
		}
		seen[chunk.ID] = struct{}{}
		ids = append(ids, chunk.ID)
		texts = append(texts, chunk.Content)
	}

	vectors, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts))
	}

	memo := make(map[string][]float32, len(ids))
	for i, id := range ids {
		if len(vectors[i]) == 0 {
			// Partial failure: this chunk just can't attribute anything.
			slog.Warn("empty chunk embedding", "chunk_id", id)
			continue
		}
		memo[id] = vectors[i]
	}
	return memo, nil
}

func unattributed(sentences []string) []domain.AttributedSentence {
	out := make([]domain.AttributedSentence, 0, len(sentences))
	for _, sentence := range sentences {
		out = append(out, domain.AttributedSentence{Text: sentence})
	}
	return out
}

// SplitSentences segments text on terminal punctuation followed by
// whitespace. Finite and restartable: a pure function of its input.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		atEnd := i == len(runes)-1
		followedBySpace := !atEnd && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t')
		if atEnd || followedBySpace {
			sentence := strings.TrimSpace(b.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			b.Reset()
		}
	}
	if rest := strings.TrimSpace(b.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
