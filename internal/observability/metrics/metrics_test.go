package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/v1/products/shop_42": "/api/v1/products/{id}",
		"/api/v1/sessions/user-1":  "/api/v1/sessions/{user_id}",
		"/api/v1/chat":             "/api/v1/chat",
		"/api/v1/health":           "/api/v1/health",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected scrape status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestHTTPServerMetricsExposeChatAndStages(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	confidence := 0.8
	m.RecordChat("api", "price_check", false, 3, &confidence, 200*time.Millisecond)
	m.RecordChat("api", "price_check", true, 0, nil, time.Millisecond)
	m.ObserveStage("api", "retrieve", 50*time.Millisecond)

	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/products", nil))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`megachat_chat_requests_total{from_cache="false",intent="price_check",service="api"} 1`,
		`megachat_chat_requests_total{from_cache="true",intent="price_check",service="api"} 1`,
		`megachat_chat_retrieved_products_count{intent="price_check",service="api"} 1`,
		`megachat_pipeline_stage_duration_seconds_count{service="api",stage="retrieve"} 1`,
		`megachat_http_requests_total{method="POST",path="/api/v1/products",service="api",status="202"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestWorkerMetricsCountStatuses(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartProduct()
	m.FinishProduct("worker", time.Second, nil)
	m.StartProduct()
	m.FinishProduct("worker", time.Second, errors.New("boom"))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`megachat_worker_product_index_total{service="worker",status="success"} 1`,
		`megachat_worker_product_index_total{service="worker",status="error"} 1`,
		`megachat_worker_product_index_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestResilienceMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")
	r := NewResilienceMetrics(m.Registerer(), "worker")
	r.OnRetry("qdrant.upsert", 1)
	r.OnStateChange("qdrant.upsert", "closed", "open")

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`megachat_resilience_retries_total{operation="qdrant.upsert",service="worker"} 1`,
		`megachat_resilience_breaker_open{operation="qdrant.upsert",service="worker"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}
