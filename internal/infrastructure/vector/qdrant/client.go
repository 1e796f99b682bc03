package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, collection string) *Client {
	return NewWithOptions(baseURL, collection, Options{})
}

func NewWithOptions(baseURL, collection string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// productPayload is what each point carries, so search results can be
// rendered without a database round trip.
type productPayload struct {
	ProductID    string            `json:"product_id"`
	Name         string            `json:"name"`
	Price        float64           `json:"price"`
	Currency     string            `json:"currency,omitempty"`
	Brand        string            `json:"brand,omitempty"`
	Color        string            `json:"color,omitempty"`
	Availability bool              `json:"availability"`
	Description  string            `json:"description,omitempty"`
	Features     map[string]string `json:"features,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
}

func payloadFromProduct(p domain.Product) productPayload {
	return productPayload{
		ProductID:    p.ID,
		Name:         p.Name,
		Price:        p.Price,
		Currency:     p.Currency,
		Brand:        p.Brand,
		Color:        p.Color,
		Availability: p.Availability,
		Description:  p.Description,
		Features:     p.Features,
		Metadata:     p.Metadata,
	}
}

func (p productPayload) product() domain.Product {
	return domain.Product{
		ID:           p.ProductID,
		Name:         p.Name,
		Price:        p.Price,
		Currency:     p.Currency,
		Brand:        p.Brand,
		Color:        p.Color,
		Availability: p.Availability,
		Description:  p.Description,
		Features:     p.Features,
		Metadata:     p.Metadata,
	}
}

// PointID derives a stable point id so re-indexing a product overwrites it.
func PointID(productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("product:"+productID)).String()
}

func (c *Client) Upsert(ctx context.Context, product domain.Product, vector []float32) error {
	if strings.TrimSpace(product.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", fmt.Errorf("product id is required"))
	}
	if len(vector) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", fmt.Errorf("empty vector"))
	}
	if err := c.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload productPayload `json:"payload"`
	}
	reqBody := map[string]any{
		"points": []point{{
			ID:      PointID(product.ID),
			Vector:  vector,
			Payload: payloadFromProduct(product),
		}},
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.doJSON(ctx, http.MethodPut, path, reqBody, nil, "upsert")
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.VectorHit, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if must := buildMustFilter(filter); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload productPayload `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.VectorHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.VectorHit{
			ProductID: r.Payload.ProductID,
			Score:     r.Score,
			Product:   r.Payload.product(),
		})
	}
	return out, nil
}

func buildMustFilter(filter domain.SearchFilter) []map[string]any {
	var must []map[string]any
	add := func(key, value string) {
		if value == "" {
			return
		}
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	add("brand", filter.Brand)
	add("color", filter.Color)
	return must
}

func (c *Client) Name() string {
	return "qdrant"
}

func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/collections", nil, nil, "ping")
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure_collection")
	// 409 means the collection already exists.
	if statusErr, ok := asStatusError(err); ok && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
	}

	call := func(callCtx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("qdrant."+operation, err, classifyQdrantError)
}
