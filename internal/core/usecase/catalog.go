package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/ports"
)

const DefaultCurrency = "تومان"

// AttributeCanonicalizer folds product attributes into the form query
// slots carry, so exact-match search filters line up with indexed payloads.
type AttributeCanonicalizer interface {
	CanonicalBrand(brand string) string
	CanonicalColor(color string) string
}

// CatalogUseCase owns product writes, reads and vector indexing.
type CatalogUseCase struct {
	repo     ports.ProductRepository
	queue    ports.ProductQueue
	embedder ports.Embedder
	index    ports.VectorIndex
	cache    ports.CacheStore
	cacheTTL time.Duration
	attrs    AttributeCanonicalizer
}

func NewCatalogUseCase(
	repo ports.ProductRepository,
	queue ports.ProductQueue,
	embedder ports.Embedder,
	index ports.VectorIndex,
	cache ports.CacheStore,
	cacheTTL time.Duration,
) *CatalogUseCase {
	return &CatalogUseCase{
		repo:     repo,
		queue:    queue,
		embedder: embedder,
		index:    index,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (uc *CatalogUseCase) WithAttributeCanonicalizer(attrs AttributeCanonicalizer) *CatalogUseCase {
	uc.attrs = attrs
	return uc
}

// AddProduct persists the product and queues it for indexing.
func (uc *CatalogUseCase) AddProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	saved, err := uc.save(ctx, product)
	if err != nil {
		return nil, err
	}
	if err := uc.queue.PublishProduct(ctx, *saved); err != nil {
		return nil, fmt.Errorf("publish product: %w", err)
	}
	return saved, nil
}

// ImportProduct persists and indexes the product in the caller's goroutine,
// bypassing the queue.
func (uc *CatalogUseCase) ImportProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	saved, err := uc.save(ctx, product)
	if err != nil {
		return nil, err
	}
	if err := uc.IndexProduct(ctx, *saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (uc *CatalogUseCase) save(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	if product.Currency == "" {
		product.Currency = DefaultCurrency
	}

	if err := uc.repo.Upsert(ctx, &product); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}
	return &product, nil
}

// GetProduct reads through the product cache.
func (uc *CatalogUseCase) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get product", errors.New("product id is required"))
	}

	if cached, ok := uc.cachedProduct(ctx, id); ok {
		return cached, nil
	}

	product, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	uc.cacheProduct(ctx, *product)
	return product, nil
}

// IndexProduct embeds the product text and upserts it into the vector index.
func (uc *CatalogUseCase) IndexProduct(ctx context.Context, product domain.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	vector, err := uc.embedder.EmbedDocument(ctx, product.SearchText())
	if err != nil {
		return fmt.Errorf("embed product: %w", err)
	}
	if err := uc.index.Upsert(ctx, uc.canonical(product), vector); err != nil {
		return fmt.Errorf("upsert product vector: %w", err)
	}
	uc.cacheProduct(ctx, product)
	return nil
}

// canonical returns the copy stored in the vector index. The repository and
// product cache keep the attributes as submitted.
func (uc *CatalogUseCase) canonical(product domain.Product) domain.Product {
	if uc.attrs == nil {
		return product
	}
	if product.Brand != "" {
		product.Brand = uc.attrs.CanonicalBrand(product.Brand)
	}
	if product.Color != "" {
		product.Color = uc.attrs.CanonicalColor(product.Color)
	}
	return product
}

func (uc *CatalogUseCase) cachedProduct(ctx context.Context, id string) (*domain.Product, bool) {
	if uc.cache == nil {
		return nil, false
	}
	raw, found, err := uc.cache.Get(ctx, ProductCacheKey(id))
	if err != nil {
		slog.Warn("product_cache_get_failed", "product_id", id, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var product domain.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		slog.Warn("product_cache_decode_failed", "product_id", id, "error", err)
		return nil, false
	}
	return &product, true
}

func (uc *CatalogUseCase) cacheProduct(ctx context.Context, product domain.Product) {
	if uc.cache == nil {
		return
	}
	raw, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := uc.cache.Set(ctx, ProductCacheKey(product.ID), raw, uc.cacheTTL); err != nil {
		slog.Warn("product_cache_set_failed", "product_id", product.ID, "error", err)
	}
}

func validateProduct(product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate product", errors.New("product id is required"))
	}
	if strings.TrimSpace(product.Name) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate product", errors.New("product name is required"))
	}
	if product.Price < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate product", errors.New("price must not be negative"))
	}
	return nil
}
