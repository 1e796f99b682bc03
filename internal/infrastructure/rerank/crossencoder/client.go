package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/megachat/sales-assistant/internal/infrastructure/resilience"
)

// Client calls a text-embeddings-inference style /rerank endpoint serving a
// cross-encoder such as a multilingual ms-marco model.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type rerankRequest struct {
	Model    string   `json:"model,omitempty"`
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one score per candidate, aligned with candidates.
func (c *Client) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Texts: candidates, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	var results []rerankResult
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("cross-encoder rerank request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("cross-encoder", "rerank", resp)
		}
		results = nil
		if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
			return fmt.Errorf("decode rerank response: %w", err)
		}
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "crossencoder.rerank", call, resilience.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, resilience.WrapTemporary("crossencoder.rerank", err, resilience.ClassifyHTTPError)
	}
	return alignScores(results, len(candidates))
}

// alignScores maps index-tagged results back to candidate order; the server
// returns them sorted by score.
func alignScores(results []rerankResult, n int) ([]float64, error) {
	if len(results) != n {
		return nil, fmt.Errorf("cross-encoder returned %d scores for %d candidates", len(results), n)
	}
	scores := make([]float64, n)
	seen := make([]bool, n)
	for _, r := range results {
		if r.Index < 0 || r.Index >= n || seen[r.Index] {
			return nil, fmt.Errorf("cross-encoder returned invalid index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}
	return scores, nil
}

func (c *Client) Name() string {
	return "reranker"
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cross-encoder health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("cross-encoder", "health", resp)
	}
	return nil
}
