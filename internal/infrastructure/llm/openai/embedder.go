package openai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kirillkom/provenance-rag/internal/infrastructure/resilience"
)

// Embedder wraps the OpenAI embeddings API behind the ports.Embedder
// contract. Calls are rate limited and cached by content hash: an
// embedding is a pure function of its text, so content-keyed entries can
// never serve a stale vector after a document update.
type Embedder struct {
	client   *openai.Client
	model    openai.EmbeddingModel
	limiter  *rate.Limiter
	cache    *gocache.Cache
	executor *resilience.Executor
}

type Options struct {
	BaseURL            string
	RequestsPerSecond  float64
	Burst              int
	CacheTTL           time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewEmbedder(apiKey, model string, options Options) *Embedder {
	config := openai.DefaultConfig(apiKey)
	if options.BaseURL != "" {
		config.BaseURL = options.BaseURL
	}

	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := options.Burst
	if burst <= 0 {
		burst = 5
	}
	ttl := options.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Embedder{
		client:   openai.NewClientWithConfig(config),
		model:    openai.EmbeddingModel(model),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		cache:    gocache.New(ttl, 2*ttl),
		executor: options.ResilienceExecutor,
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	missing := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		if vector, ok := e.cachedVector(text); ok {
			out[i] = vector
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}

	vectors, err := e.requestEmbeddings(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, idx := range missingIdx {
		out[idx] = vectors[j]
		e.cache.SetDefault(contentKey(missing[j]), vectors[j])
	}
	return out, nil
}

func (e *Embedder) requestEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	var response openai.EmbeddingResponse
	call := func(callCtx context.Context) error {
		resp, err := e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: e.model,
		})
		if err != nil {
			return fmt.Errorf("create embeddings: %w", err)
		}
		response = resp
		return nil
	}

	var err error
	if e.executor != nil {
		err = e.executor.Execute(ctx, "openai.embed", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d/%d", len(response.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index out of range: %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (e *Embedder) cachedVector(text string) ([]float32, bool) {
	entry, ok := e.cache.Get(contentKey(text))
	if !ok {
		return nil, false
	}
	vector, ok := entry.([]float32)
	return vector, ok
}

func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
