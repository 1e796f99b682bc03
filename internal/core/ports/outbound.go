package ports

import (
	"context"
	"time"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

// CacheStore is a namespaced byte store with per-key expiry.
// A missing key is reported as found=false with a nil error.
type CacheStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Embedder maps text to a fixed-length vector. Query and document
// embeddings may use different encoder prefixes.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex performs cosine nearest-neighbour search over products.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.VectorHit, error)
	Upsert(ctx context.Context, product domain.Product, vector []float32) error
}

// TextGenerator completes a raw prompt.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// AnswerGenerator renders the final reply for an intent and its context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, query string, intent domain.Intent, docs []domain.RetrievedDocument) (string, error)
}

// RerankScorer scores (query, candidate) pairs. The result is aligned
// with candidates.
type RerankScorer interface {
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// ProductRepository persists the product catalog.
type ProductRepository interface {
	Upsert(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// ProductQueue publishes/consumes product indexing events.
type ProductQueue interface {
	PublishProduct(ctx context.Context, product domain.Product) error
	SubscribeProducts(ctx context.Context, handler func(context.Context, domain.Product) error) error
}

// HealthProbe reports reachability of one dependency.
type HealthProbe interface {
	Name() string
	Ping(ctx context.Context) error
}
