package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

type signalStoreFake struct {
	latest  *domain.Signal
	history []domain.Signal
	err     error

	latestCalls int
}

func (f *signalStoreFake) Insert(context.Context, *domain.Signal) error { return f.err }
func (f *signalStoreFake) GetLatest(_ context.Context, _ string, _ domain.FactType, _ string) (*domain.Signal, error) {
	f.latestCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, domain.WrapError(domain.ErrSignalNotFound, "get latest", errors.New("no rows"))
	}
	return f.latest, nil
}
func (f *signalStoreFake) GetHistory(context.Context, string, domain.FactType, int) ([]domain.Signal, error) {
	return f.history, f.err
}
func (f *signalStoreFake) GetBySourceDocument(context.Context, string) ([]domain.Signal, error) {
	return f.history, f.err
}

type engineFake struct {
	result *domain.RetrievalResult
	err    error

	calls int
	modes []string
}

func (f *engineFake) Query(_ context.Context, _ string, mode string) (*domain.RetrievalResult, error) {
	f.calls++
	f.modes = append(f.modes, mode)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newAnswerUseCase(store *signalStoreFake, engine *engineFake, embedder *vectorEmbedderFake) *AnswerUseCase {
	return NewAnswerUseCase(
		NewRouter(DefaultRouterRules()),
		store,
		engine,
		NewContextParser(),
		NewPathAttributor(),
		NewSentenceAttributor(embedder, 0.70),
	)
}

func ratingSignal(observedAt time.Time) *domain.Signal {
	return &domain.Signal{
		ID:               "s1",
		SubjectID:        "NVDA",
		FactType:         domain.FactRating,
		Value:            "BUY",
		Confidence:       0.90,
		ObservedAt:       observedAt,
		SourceDocumentID: "doc1",
	}
}

// Structured fast path: the retrieval engine is never touched.
func TestAnswerStructuredPathSkipsEngine(t *testing.T) {
	store := &signalStoreFake{latest: ratingSignal(time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC))}
	engine := &engineFake{}
	uc := newAnswerUseCase(store, engine, &vectorEmbedderFake{})

	answer, err := uc.Answer(context.Background(), "What is NVDA's rating?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if engine.calls != 0 {
		t.Fatalf("expected zero retrieval engine calls, got %d", engine.calls)
	}
	if len(answer.Signals) != 1 || answer.Signals[0].Value != "BUY" {
		t.Fatalf("expected BUY signal, got %+v", answer.Signals)
	}
	if answer.Classification.QueryType != domain.QueryStructured {
		t.Fatalf("expected structured classification, got %s", answer.Classification.QueryType)
	}
	if !strings.Contains(answer.Text, "BUY") {
		t.Fatalf("expected answer text to carry the value, got %q", answer.Text)
	}
}

func TestAnswerSemanticPathAttributesChunks(t *testing.T) {
	engine := &engineFake{result: &domain.RetrievalResult{
		Answer: "NVDA is rated BUY because of data center growth.",
		Chunks: []domain.Chunk{
			{ID: "c1", Content: "Data center growth justifies the BUY call.", ArtifactPath: "email:doc1.eml"},
		},
	}}
	embedder := &vectorEmbedderFake{vectors: map[string][]float32{
		"NVDA is rated BUY because of data center growth.": {1, 0},
		"Data center growth justifies the BUY call.":       {1, 0},
	}}
	uc := newAnswerUseCase(&signalStoreFake{}, engine, embedder)

	answer, err := uc.Answer(context.Background(), "Why is NVDA rated BUY?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if engine.calls != 1 {
		t.Fatalf("expected one engine call, got %d", engine.calls)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected one attributed source, got %d", len(answer.Sources))
	}
	source := answer.Sources[0]
	if source.SourceType != domain.SourceEmail || source.Confidence != 0.90 {
		t.Fatalf("expected email source at 0.90, got %s %v", source.SourceType, source.Confidence)
	}
	if len(answer.Sentences) == 0 || !answer.Sentences[0].HasAttribution {
		t.Fatalf("expected attributed sentences, got %+v", answer.Sentences)
	}
}

func TestAnswerUnknownFallsBackToSemantic(t *testing.T) {
	engine := &engineFake{result: &domain.RetrievalResult{Answer: "Some answer."}}
	uc := newAnswerUseCase(&signalStoreFake{}, engine, &vectorEmbedderFake{})

	answer, err := uc.Answer(context.Background(), "tell me about the semiconductor market")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if engine.calls != 1 {
		t.Fatalf("expected semantic fallback to call the engine, got %d calls", engine.calls)
	}
	if answer.Classification.QueryType != domain.QueryUnknown {
		t.Fatalf("expected unknown classification preserved, got %s", answer.Classification.QueryType)
	}
}

func TestAnswerStructuredMissFallsBackToSemantic(t *testing.T) {
	engine := &engineFake{result: &domain.RetrievalResult{Answer: "Semantic answer."}}
	uc := newAnswerUseCase(&signalStoreFake{}, engine, &vectorEmbedderFake{})

	answer, err := uc.Answer(context.Background(), "What is NVDA's rating?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if engine.calls != 1 {
		t.Fatalf("expected fallback engine call, got %d", engine.calls)
	}
	if answer.Text != "Semantic answer." {
		t.Fatalf("expected semantic answer, got %q", answer.Text)
	}
}

func TestAnswerEngineFailureIsFatal(t *testing.T) {
	engine := &engineFake{err: errors.New("timeout")}
	uc := newAnswerUseCase(&signalStoreFake{}, engine, &vectorEmbedderFake{})

	_, err := uc.Answer(context.Background(), "Why did margins fall?")
	if err == nil {
		t.Fatalf("expected error when engine is unreachable")
	}
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestAnswerEmbeddingOutageStillReturnsAnswer(t *testing.T) {
	engine := &engineFake{result: &domain.RetrievalResult{
		Answer: "NVDA rose on guidance.",
		Chunks: []domain.Chunk{{ID: "c1", Content: "guidance note", ArtifactPath: "email:doc1.eml"}},
	}}
	embedder := &vectorEmbedderFake{err: errors.New("provider down")}
	uc := newAnswerUseCase(&signalStoreFake{}, engine, embedder)

	answer, err := uc.Answer(context.Background(), "Why did NVDA rise?")
	if err != nil {
		t.Fatalf("expected degraded answer, got error %v", err)
	}
	if len(answer.Sentences) == 0 {
		t.Fatalf("expected unattributed sentences present")
	}
	for _, sentence := range answer.Sentences {
		if sentence.HasAttribution {
			t.Fatalf("expected unattributed sentences on outage")
		}
	}
}

func TestAnswerHybridMergesBothLegs(t *testing.T) {
	observed := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &signalStoreFake{latest: ratingSignal(observed)}
	engine := &engineFake{result: &domain.RetrievalResult{
		Answer: "The rating changed after strong earnings.",
		Chunks: []domain.Chunk{
			{ID: "c1", Content: "Earnings beat. [EMAIL:doc1.eml|date=2024-07-12]", ArtifactPath: "email:doc1.eml"},
		},
		Paths: [][]domain.RelationshipHop{
			{{Entity1: "earnings", Relation: "drove", Entity2: "rating"}},
		},
	}}
	uc := newAnswerUseCase(store, engine, &vectorEmbedderFake{vectors: map[string][]float32{}})

	answer, err := uc.Answer(context.Background(), "What's NVDA's latest rating and why did it change?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Classification.QueryType != domain.QueryHybrid {
		t.Fatalf("expected hybrid classification, got %s", answer.Classification.QueryType)
	}
	if engine.calls != 1 || store.latestCalls != 1 {
		t.Fatalf("expected one call per leg, got engine=%d store=%d", engine.calls, store.latestCalls)
	}
	if len(answer.Signals) != 1 {
		t.Fatalf("expected structured signal in merged answer, got %d", len(answer.Signals))
	}
	if len(answer.Paths) != 1 {
		t.Fatalf("expected attributed path, got %d", len(answer.Paths))
	}
	// Signal (2024-08-01) is fresher than the chunk (2024-07-12): the
	// structured fact leads the merged text.
	if !strings.HasPrefix(answer.Text, "NVDA rating: BUY") {
		t.Fatalf("expected structured headline, got %q", answer.Text)
	}
}

func TestAnswerHybridStructuredLegFailureNonFatal(t *testing.T) {
	store := &signalStoreFake{err: errors.New("store down")}
	engine := &engineFake{result: &domain.RetrievalResult{Answer: "Semantic only."}}
	uc := newAnswerUseCase(store, engine, &vectorEmbedderFake{})

	answer, err := uc.Answer(context.Background(), "What's NVDA's latest rating and why did it change?")
	if err != nil {
		t.Fatalf("expected semantic result despite store failure, got %v", err)
	}
	if answer.Text != "Semantic only." {
		t.Fatalf("expected semantic answer, got %q", answer.Text)
	}
}

func TestAnswerEmptyQuestion(t *testing.T) {
	uc := newAnswerUseCase(&signalStoreFake{}, &engineFake{}, &vectorEmbedderFake{})

	_, err := uc.Answer(context.Background(), "   ")
	if err == nil {
		t.Fatalf("expected error for empty question")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
