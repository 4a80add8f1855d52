package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEmbeddingsServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode embeddings request: %v", err)
		}

		data := make([]map[string]any, 0, len(req.Input))
		for i := range req.Input {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i) + 1, 0.5},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
		})
	}))
}

func TestEmbedReturnsVectorsInOrder(t *testing.T) {
	calls := 0
	server := newEmbeddingsServer(t, &calls)
	defer server.Close()

	embedder := NewEmbedder("test-key", "text-embedding-3-small", Options{BaseURL: server.URL})
	got, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(got))
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Fatalf("vectors out of order: %v", got)
	}
}

func TestEmbedCachesByContent(t *testing.T) {
	calls := 0
	server := newEmbeddingsServer(t, &calls)
	defer server.Close()

	embedder := NewEmbedder("test-key", "text-embedding-3-small", Options{BaseURL: server.URL})

	if _, err := embedder.Embed(context.Background(), []string{"repeat me"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if _, err := embedder.Embed(context.Background(), []string{"repeat me"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one upstream call with cache hit, got %d", calls)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	embedder := NewEmbedder("test-key", "text-embedding-3-small", Options{})
	got, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result for empty input, got %v", got)
	}
}

func TestEmbedSurfacesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder := NewEmbedder("test-key", "text-embedding-3-small", Options{BaseURL: server.URL})
	if _, err := embedder.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("expected provider error")
	}
}
