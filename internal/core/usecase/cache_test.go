package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestResponseCacheKeyIsStableHashOfRawText(t *testing.T) {
	a := ResponseCacheKey("قیمت گوشی")
	if a != ResponseCacheKey("قیمت گوشی") {
		t.Fatalf("key must be stable")
	}
	if a == ResponseCacheKey("قیمت  گوشی") {
		t.Fatalf("key must be derived from the exact raw text")
	}
	if !strings.HasPrefix(a, "response:") || len(a) != len("response:")+64 {
		t.Fatalf("unexpected key format: %s", a)
	}
}

func TestResponseCacheRoundTrip(t *testing.T) {
	store := newCacheStoreFake()
	cache := NewResponseCache(store, time.Hour)

	if _, found, _ := cache.Get(context.Background(), "q"); found {
		t.Fatalf("expected miss")
	}
	if err := cache.Set(context.Background(), "q", "answer"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, found, err := cache.Get(context.Background(), "q")
	if err != nil || !found || got != "answer" {
		t.Fatalf("unexpected get: %q %v %v", got, found, err)
	}
	if store.ttls[ResponseCacheKey("q")] != time.Hour {
		t.Fatalf("expected ttl to be applied")
	}
	if err := cache.Invalidate(context.Background(), "q"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, found, _ := cache.Get(context.Background(), "q"); found {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestCachedEmbedderReusesStoredVector(t *testing.T) {
	store := newCacheStoreFake()
	inner := &embedderFake{vectors: map[string]float32{"q": 4}}
	embedder := NewCachedEmbedder(inner, store, time.Hour)

	for i := 0; i < 3; i++ {
		v, err := embedder.EmbedQuery(context.Background(), "q")
		if err != nil {
			t.Fatalf("EmbedQuery() error = %v", err)
		}
		if len(v) != 1 || v[0] != 4 {
			t.Fatalf("unexpected vector: %v", v)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one upstream embed, got %d", inner.calls)
	}
	if _, err := embedder.EmbedDocument(context.Background(), "q"); err != nil {
		t.Fatalf("EmbedDocument() error = %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("document embeddings must not share query cache entries, got %d calls", inner.calls)
	}
}

func TestCachedEmbedderSurvivesCacheFailures(t *testing.T) {
	store := newCacheStoreFake()
	store.getErr = errUnavailable
	store.setErr = errUnavailable
	inner := &embedderFake{vectors: map[string]float32{"q": 1}}
	embedder := NewCachedEmbedder(inner, store, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := embedder.EmbedQuery(context.Background(), "q"); err != nil {
				t.Errorf("EmbedQuery() error = %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestCachedEmbedderPropagatesUpstreamError(t *testing.T) {
	inner := &embedderFake{failOn: map[string]error{"q": errUnavailable}}
	embedder := NewCachedEmbedder(inner, newCacheStoreFake(), time.Hour)

	if _, err := embedder.EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatalf("expected error")
	}
}

// gatedEmbedder blocks every call until release is closed.
type gatedEmbedder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu      sync.Mutex
	calls   int
	ctxErrs []error
}

func newGatedEmbedder() *gatedEmbedder {
	return &gatedEmbedder{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedEmbedder) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.once.Do(func() { close(g.started) })

	<-g.release
	g.mu.Lock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []float32{0.5}, nil
}

func (g *gatedEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return g.EmbedQuery(ctx, text)
}

func TestCachedEmbedderCancelledCallerDoesNotFailSharedWaiters(t *testing.T) {
	inner := newGatedEmbedder()
	store := newCacheStoreFake()
	embedder := NewCachedEmbedder(inner, store, time.Hour)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := embedder.EmbedQuery(ctxA, "گوشی")
		errA <- err
	}()
	<-inner.started

	type result struct {
		vector []float32
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := embedder.EmbedQuery(context.Background(), "گوشی")
		resB <- result{v, err}
	}()
	waitForCacheGets(t, store, 2)
	time.Sleep(10 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected first caller to see its own cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled caller did not return")
	}

	close(inner.release)
	select {
	case got := <-resB:
		if got.err != nil {
			t.Fatalf("second caller error = %v", got.err)
		}
		if len(got.vector) != 1 || got.vector[0] != 0.5 {
			t.Fatalf("unexpected vector %v", got.vector)
		}
	case <-time.After(time.Second):
		t.Fatalf("second caller did not return")
	}

	inner.mu.Lock()
	defer inner.mu.Unlock()
	for _, err := range inner.ctxErrs {
		if err != nil {
			t.Fatalf("shared embedding call saw cancelled context: %v", err)
		}
	}
}

func waitForCacheGets(t *testing.T, store *cacheStoreFake, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		gets := store.gets
		store.mu.Unlock()
		if gets >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d cache lookups", n)
}
