package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/infrastructure/resilience"
)

const (
	defaultTimeout     = 120 * time.Second
	defaultTemperature = 0.7
	defaultMaxTokens   = 500
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor

	temperature float64
	maxTokens   int
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	// Temperature and MaxTokens apply to answer generation.
	Temperature float64
	MaxTokens   int
}

func New(baseURL, genModel, embedModel string) *Client {
	return NewWithOptions(baseURL, genModel, embedModel, Options{})
}

func NewWithOptions(baseURL, genModel, embedModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	temperature := options.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		genModel:    genModel,
		embedModel:  embedModel,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.ResilienceExecutor,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Embedder prepends the e5-style role prefixes before embedding.
type Embedder struct {
	client         *Client
	queryPrefix    string
	documentPrefix string
}

func NewEmbedder(client *Client, queryPrefix, documentPrefix string) *Embedder {
	return &Embedder{client: client, queryPrefix: queryPrefix, documentPrefix: documentPrefix}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d vectors, got %d", len(texts), len(response.Embeddings))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, e.queryPrefix+text)
}

func (e *Embedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(ctx, e.documentPrefix+text)
}

func (e *Embedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Completer sends raw prompts, used for query expansion.
type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

func (c *Completer) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return c.client.generateText(ctx, prompt, temperature)
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, query string, intent domain.Intent, docs []domain.RetrievedDocument) (string, error) {
	answer, err := g.client.generateText(ctx, buildAnswerPrompt(query, intent, docs), g.client.temperature)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", fmt.Errorf("ollama generate: empty response")
	}
	return answer, nil
}

// Name and Ping make the client usable as a health probe.
func (c *Client) Name() string {
	return "ollama"
}

func (c *Client) Ping(ctx context.Context) error {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	return c.getJSON(ctx, "/api/tags", &response, "tags")
}

func (c *Client) generateText(ctx context.Context, prompt string, temperature float64) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": temperature,
			"num_predict": c.maxTokens,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
