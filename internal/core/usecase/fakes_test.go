package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

type cacheStoreFake struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
	gets   int
	sets   int
}

func newCacheStoreFake() *cacheStoreFake {
	return &cacheStoreFake{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *cacheStoreFake) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *cacheStoreFake) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *cacheStoreFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

type textGeneratorFake struct {
	mu          sync.Mutex
	out         string
	err         error
	calls       int
	prompt      string
	temperature float64
}

func (f *textGeneratorFake) Complete(_ context.Context, prompt string, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompt = prompt
	f.temperature = temperature
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

// embedderFake maps each known text to a one-dimensional vector.
type embedderFake struct {
	mu      sync.Mutex
	vectors map[string]float32
	failOn  map[string]error
	calls   int
	texts   []string
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, text)
	if err, ok := f.failOn[text]; ok {
		return nil, err
	}
	return []float32{f.vectors[text]}, nil
}

func (f *embedderFake) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return f.EmbedQuery(ctx, text)
}

type vectorIndexFake struct {
	mu       sync.Mutex
	hits     map[float32][]domain.VectorHit
	errs     map[float32]error
	calls    int
	filters  []domain.SearchFilter
	topKs    []int
	upserted []domain.Product
}

func (f *vectorIndexFake) Search(_ context.Context, vector []float32, topK int, filter domain.SearchFilter) ([]domain.VectorHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.filters = append(f.filters, filter)
	f.topKs = append(f.topKs, topK)
	if err, ok := f.errs[vector[0]]; ok {
		return nil, err
	}
	return f.hits[vector[0]], nil
}

func (f *vectorIndexFake) Upsert(_ context.Context, product domain.Product, _ []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, product)
	return nil
}

type rerankScorerFake struct {
	scores     func(query string, candidates []string) []float64
	err        error
	calls      int
	query      string
	candidates []string
}

func (f *rerankScorerFake) Score(_ context.Context, query string, candidates []string) ([]float64, error) {
	f.calls++
	f.query = query
	f.candidates = candidates
	if f.err != nil {
		return nil, f.err
	}
	return f.scores(query, candidates), nil
}

type answerGeneratorFake struct {
	out    string
	err    error
	calls  int
	intent domain.Intent
	docs   []domain.RetrievedDocument
}

func (f *answerGeneratorFake) GenerateAnswer(_ context.Context, _ string, intent domain.Intent, docs []domain.RetrievedDocument) (string, error) {
	f.calls++
	f.intent = intent
	f.docs = docs
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

var errUnavailable = errors.New("service unavailable")

func hit(id string, score float64) domain.VectorHit {
	return domain.VectorHit{
		ProductID: id,
		Score:     score,
		Product:   domain.Product{ID: id, Name: "product " + id},
	}
}
