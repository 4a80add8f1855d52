package graphrag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
	"github.com/kirillkom/provenance-rag/internal/infrastructure/resilience"
)

// Client talks to the external retrieval engine over HTTP. The engine is
// the sole source of semantic answers and raw evidence; query failures
// here surface to the caller rather than degrade.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	QueryTimeout       time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type queryResponse struct {
	Answer string `json:"answer"`
	Chunks []struct {
		ID           string `json:"id"`
		Content      string `json:"content"`
		ArtifactPath string `json:"artifact_path"`
	} `json:"chunks"`
	Paths [][]struct {
		Entity1  string `json:"entity1"`
		Relation string `json:"relation"`
		Entity2  string `json:"entity2"`
	} `json:"paths"`
}

func (c *Client) Query(ctx context.Context, text, mode string) (*domain.RetrievalResult, error) {
	var response queryResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/query", queryRequest{Query: text, Mode: mode}, &response, "query")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "graphrag.query", call, classifyEngineError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	result := &domain.RetrievalResult{Answer: response.Answer}
	for _, chunk := range response.Chunks {
		result.Chunks = append(result.Chunks, domain.Chunk{
			ID:           chunk.ID,
			Content:      chunk.Content,
			ArtifactPath: chunk.ArtifactPath,
		})
	}
	for _, path := range response.Paths {
		hops := make([]domain.RelationshipHop, 0, len(path))
		for _, hop := range path {
			hops = append(hops, domain.RelationshipHop{
				Entity1:  hop.Entity1,
				Relation: hop.Relation,
				Entity2:  hop.Entity2,
			})
		}
		result.Paths = append(result.Paths, hops)
	}
	return result, nil
}

type indexRequest struct {
	ID           string    `json:"id"`
	ArtifactPath string    `json:"artifact_path"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c *Client) Index(ctx context.Context, doc domain.EnrichedDocument) error {
	call := func(callCtx context.Context) error {
		var response struct {
			Status string `json:"status"`
		}
		return c.postJSON(callCtx, "/v1/index", indexRequest{
			ID:           doc.ID,
			ArtifactPath: doc.ArtifactPath,
			Content:      doc.Content,
			CreatedAt:    doc.CreatedAt,
		}, &response, "index")
	}

	if c.executor != nil {
		return c.executor.Execute(ctx, "graphrag.index", call, classifyEngineError)
	}
	return call(ctx)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphrag %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
