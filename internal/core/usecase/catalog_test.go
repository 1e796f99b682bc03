package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/nlu"
)

type productRepoFake struct {
	products map[string]domain.Product
	upserts  int
	gets     int
	err      error
}

func (f *productRepoFake) Upsert(_ context.Context, product *domain.Product) error {
	f.upserts++
	if f.err != nil {
		return f.err
	}
	if f.products == nil {
		f.products = map[string]domain.Product{}
	}
	f.products[product.ID] = *product
	return nil
}

func (f *productRepoFake) GetByID(_ context.Context, id string) (*domain.Product, error) {
	f.gets++
	p, ok := f.products[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrProductNotFound, "get product", errors.New(id))
	}
	return &p, nil
}

type productQueueFake struct {
	published []domain.Product
	err       error
}

func (f *productQueueFake) PublishProduct(_ context.Context, product domain.Product) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, product)
	return nil
}

func (f *productQueueFake) SubscribeProducts(context.Context, func(context.Context, domain.Product) error) error {
	return nil
}

func newCatalogFixture() (*CatalogUseCase, *productRepoFake, *productQueueFake, *embedderFake, *vectorIndexFake, *cacheStoreFake) {
	repo := &productRepoFake{}
	queue := &productQueueFake{}
	embedder := &embedderFake{vectors: map[string]float32{}}
	index := &vectorIndexFake{}
	cache := newCacheStoreFake()
	return NewCatalogUseCase(repo, queue, embedder, index, cache, time.Hour), repo, queue, embedder, index, cache
}

func TestAddProductPersistsAndPublishes(t *testing.T) {
	uc, repo, queue, _, _, _ := newCatalogFixture()

	product, err := uc.AddProduct(context.Background(), domain.Product{ID: "p1", Name: "گوشی", Price: 100})
	if err != nil {
		t.Fatalf("AddProduct() error = %v", err)
	}
	if product.Currency != DefaultCurrency || product.CreatedAt.IsZero() || product.UpdatedAt.IsZero() {
		t.Fatalf("expected defaults to be filled, got %+v", product)
	}
	if repo.upserts != 1 || len(queue.published) != 1 || queue.published[0].ID != "p1" {
		t.Fatalf("expected save and publish, got upserts=%d published=%d", repo.upserts, len(queue.published))
	}
}

func TestAddProductValidates(t *testing.T) {
	uc, repo, _, _, _, _ := newCatalogFixture()
	for _, p := range []domain.Product{{Name: "x"}, {ID: "p1"}, {ID: "p1", Name: "x", Price: -1}} {
		if _, err := uc.AddProduct(context.Background(), p); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for %+v, got %v", p, err)
		}
	}
	if repo.upserts != 0 {
		t.Fatalf("invalid products must not be saved")
	}
}

func TestAddProductSurfacesQueueFailure(t *testing.T) {
	uc, _, queue, _, _, _ := newCatalogFixture()
	queue.err = domain.WrapError(domain.ErrTemporary, "publish", errUnavailable)

	_, err := uc.AddProduct(context.Background(), domain.Product{ID: "p1", Name: "x"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestGetProductReadsThroughCache(t *testing.T) {
	uc, repo, _, _, _, cache := newCatalogFixture()
	repo.products = map[string]domain.Product{"p1": {ID: "p1", Name: "گوشی"}}

	for i := 0; i < 2; i++ {
		product, err := uc.GetProduct(context.Background(), "p1")
		if err != nil {
			t.Fatalf("GetProduct() error = %v", err)
		}
		if product.Name != "گوشی" {
			t.Fatalf("unexpected product: %+v", product)
		}
	}
	if repo.gets != 1 {
		t.Fatalf("expected single repository read, got %d", repo.gets)
	}
	if _, ok := cache.data[ProductCacheKey("p1")]; !ok {
		t.Fatalf("expected product to be cached")
	}
}

func TestGetProductNotFound(t *testing.T) {
	uc, _, _, _, _, _ := newCatalogFixture()
	if _, err := uc.GetProduct(context.Background(), "missing"); !domain.IsKind(err, domain.ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIndexProductEmbedsSearchTextAndCaches(t *testing.T) {
	uc, _, _, embedder, index, cache := newCatalogFixture()
	product := domain.Product{ID: "p1", Name: "گوشی", Description: "گوشی هوشمند", Brand: "سامسونگ"}

	if err := uc.IndexProduct(context.Background(), product); err != nil {
		t.Fatalf("IndexProduct() error = %v", err)
	}
	if len(embedder.texts) != 1 || embedder.texts[0] != "گوشی گوشی هوشمند سامسونگ" {
		t.Fatalf("unexpected embedded text: %q", embedder.texts)
	}
	if len(index.upserted) != 1 || index.upserted[0].ID != "p1" {
		t.Fatalf("expected product upsert")
	}
	var cached domain.Product
	if err := json.Unmarshal(cache.data[ProductCacheKey("p1")], &cached); err != nil || cached.Brand != "سامسونگ" {
		t.Fatalf("expected cached product, got %+v err=%v", cached, err)
	}
}

func TestIndexProductPropagatesEmbedFailure(t *testing.T) {
	uc, _, _, embedder, index, _ := newCatalogFixture()
	embedder.failOn = map[string]error{"x": errUnavailable}

	if err := uc.IndexProduct(context.Background(), domain.Product{ID: "p1", Name: "x"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(index.upserted) != 0 {
		t.Fatalf("nothing must be upserted on embed failure")
	}
}

func TestImportProductSavesAndIndexesWithoutQueue(t *testing.T) {
	uc, repo, queue, _, index, _ := newCatalogFixture()

	product, err := uc.ImportProduct(context.Background(), domain.Product{ID: "shop_7", Name: "هدفون", Price: 2500000})
	if err != nil {
		t.Fatalf("ImportProduct() error = %v", err)
	}
	if product.Currency != DefaultCurrency {
		t.Fatalf("expected default currency, got %q", product.Currency)
	}
	if repo.upserts != 1 || len(index.upserted) != 1 || index.upserted[0].ID != "shop_7" {
		t.Fatalf("expected save and index, got upserts=%d indexed=%d", repo.upserts, len(index.upserted))
	}
	if len(queue.published) != 0 {
		t.Fatalf("import must not publish, got %d", len(queue.published))
	}
}

func TestIndexProductCanonicalizesFilterAttributes(t *testing.T) {
	uc, _, _, _, index, cache := newCatalogFixture()
	classifier, err := nlu.NewClassifier(nlu.DefaultRules())
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	uc.WithAttributeCanonicalizer(classifier)

	product := domain.Product{ID: "p1", Name: "گلکسی", Brand: "Samsung", Color: "نقره\u200cای", Price: 100}
	if err := uc.IndexProduct(context.Background(), product); err != nil {
		t.Fatalf("IndexProduct() error = %v", err)
	}
	if len(index.upserted) != 1 {
		t.Fatalf("expected one upsert, got %d", len(index.upserted))
	}

	slots := classifier.ExtractSlots(nlu.Normalize("گوشی نقره\u200cای سامسونگ"))
	got := index.upserted[0]
	if got.Brand != slots.Brand || got.Color != slots.Color {
		t.Fatalf("indexed brand=%q color=%q, query slots brand=%q color=%q", got.Brand, got.Color, slots.Brand, slots.Color)
	}

	raw, found, _ := cache.Get(context.Background(), ProductCacheKey("p1"))
	if !found {
		t.Fatalf("expected product to be cached")
	}
	var cached domain.Product
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatalf("decode cached product: %v", err)
	}
	if cached.Brand != "Samsung" {
		t.Fatalf("expected cache to keep submitted brand, got %q", cached.Brand)
	}
}
