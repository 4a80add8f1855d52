package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
	"github.com/kirillkom/provenance-rag/internal/core/ports"
)

// AnswerUseCase routes a question to the structured store, the retrieval
// engine, or both, and attaches the provenance trail to the result.
type AnswerUseCase struct {
	router    *Router
	signals   ports.SignalStore
	engine    ports.RetrievalEngine
	parser    *ContextParser
	paths     *PathAttributor
	sentences *SentenceAttributor
}

func NewAnswerUseCase(
	router *Router,
	signals ports.SignalStore,
	engine ports.RetrievalEngine,
	parser *ContextParser,
	paths *PathAttributor,
	sentences *SentenceAttributor,
) *AnswerUseCase {
	return &AnswerUseCase{
		router:    router,
		signals:   signals,
		engine:    engine,
		parser:    parser,
		paths:     paths,
		sentences: sentences,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question string) (*domain.AttributedAnswer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("empty question"))
	}

	classification := uc.router.Classify(question, uc.signals != nil)

	switch classification.QueryType {
	case domain.QueryStructured:
		answer, err := uc.answerStructured(ctx, classification)
		if err == nil {
			return answer, nil
		}
		// Store miss or store failure degrades to the semantic path, never
		// fails the query.
		slog.Warn("structured path degraded to semantic",
			"subject", classification.ExtractedSubject,
			"fact_type", classification.ExtractedFact,
			"error", err,
		)
		return uc.answerSemantic(ctx, question, classification, domain.ModeNarrow)

	case domain.QueryHybrid:
		return uc.answerHybrid(ctx, question, classification)

	default:
		// Semantic, plus unknown as the safe fallback.
		return uc.answerSemantic(ctx, question, classification, domain.ModeBroad)
	}
}

func (uc *AnswerUseCase) answerStructured(ctx context.Context, classification domain.QueryClassification) (*domain.AttributedAnswer, error) {
	if classification.ExtractedSubject == "" || classification.ExtractedFact == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "structured lookup", fmt.Errorf("missing subject or fact type"))
	}

	signal, err := uc.signals.GetLatest(ctx, classification.ExtractedSubject, classification.ExtractedFact, classification.ExtractedPeriod)
	if err != nil {
		return nil, fmt.Errorf("structured lookup: %w", err)
	}

	return &domain.AttributedAnswer{
		Text:           formatSignal(*signal),
		Classification: classification,
		Signals:        []domain.Signal{*signal},
	}, nil
}

func (uc *AnswerUseCase) answerSemantic(ctx context.Context, question string, classification domain.QueryClassification, mode string) (*domain.AttributedAnswer, error) {
	result, err := uc.engine.Query(ctx, question, mode)
	if err != nil {
		// No fallback data source exists once the semantic engine is
		// unreachable: fatal for this query.
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "semantic query", err)
	}

	chunks := make([]domain.AttributedChunk, 0, len(result.Chunks))
	for i, chunk := range result.Chunks {
		chunks = append(chunks, uc.parser.Enrich(chunk, i+1))
	}

	answer := &domain.AttributedAnswer{
		Text:           result.Answer,
		Classification: classification,
		Sources:        chunks,
	}

	if len(result.Paths) > 0 {
		answer.Paths = uc.paths.AttributePaths(result.Paths, chunks)
	}

	sentences, err := uc.sentences.AttributeSentences(ctx, result.Answer, chunks)
	if err != nil {
		// Attribution degrades, the answer does not: sentences come back
		// unattributed and the outage is logged.
		slog.Warn("sentence attribution unavailable", "error", err)
	}
	answer.Sentences = sentences

	return answer, nil
}

// answerHybrid runs both legs concurrently; the merge waits on both. If
// the structured and semantic results disagree, the leg with the more
// recent observed_at wins the headline; when the semantic evidence is
// dateless the structured signal wins and the narrative stays as context.
func (uc *AnswerUseCase) answerHybrid(ctx context.Context, question string, classification domain.QueryClassification) (*domain.AttributedAnswer, error) {
	type structuredLeg struct {
		answer *domain.AttributedAnswer
		err    error
	}

	structuredCh := make(chan structuredLeg, 1)
	go func() {
		answer, err := uc.answerStructured(ctx, classification)
		structuredCh <- structuredLeg{answer: answer, err: err}
	}()

	semantic, semanticErr := uc.answerSemantic(ctx, question, classification, domain.ModeMultiHop)
	structured := <-structuredCh

	if semanticErr != nil {
		return nil, semanticErr
	}
	if structured.err != nil {
		slog.Warn("hybrid structured leg unavailable", "error", structured.err)
		return semantic, nil
	}

	return mergeHybrid(structured.answer, semantic), nil
}

func mergeHybrid(structured, semantic *domain.AttributedAnswer) *domain.AttributedAnswer {
	merged := *semantic
	merged.Signals = structured.Signals

	if structuredIsFresher(structured, semantic) {
		merged.Text = structured.Text + "\n\n" + semantic.Text
	} else {
		merged.Text = semantic.Text + "\n\n" + structured.Text
	}
	return &merged
}

func structuredIsFresher(structured, semantic *domain.AttributedAnswer) bool {
	if len(structured.Signals) == 0 {
		return false
	}
	observed := structured.Signals[0].ObservedAt

	var newest *time.Time
	for _, chunk := range semantic.Sources {
		if chunk.ObservedAt == nil {
			continue
		}
		if newest == nil || chunk.ObservedAt.After(*newest) {
			newest = chunk.ObservedAt
		}
	}
	if newest == nil {
		return true
	}
	return !observed.Before(*newest)
}

func formatSignal(signal domain.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", signal.SubjectID, signal.FactType, signal.Value)
	if signal.Period != "" {
		fmt.Fprintf(&b, " (%s)", signal.Period)
	}
	fmt.Fprintf(&b, ", observed %s, source %s", signal.ObservedAt.Format("2006-01-02"), signal.SourceDocumentID)
	return b.String()
}
