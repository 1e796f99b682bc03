package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"RETRIEVAL_TOP_K", "RERANK_TOP_K", "QUERY_VARIATIONS", "PIPELINE_TIMEOUT",
		"CACHE_RESPONSE_TTL", "LLM_TEMPERATURE", "EXPANSION_TEMPERATURE", "NATS_SUBJECT",
		"EMBED_QUERY_PREFIX", "RERANKER_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.RetrievalTopK != 10 || cfg.RerankTopK != 3 || cfg.QueryVariations != 3 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg)
	}
	if cfg.PipelineTimeout != 30*time.Second {
		t.Fatalf("expected 30s pipeline timeout, got %v", cfg.PipelineTimeout)
	}
	if cfg.CacheResponseTTL != time.Hour {
		t.Fatalf("expected 1h response ttl, got %v", cfg.CacheResponseTTL)
	}
	if cfg.LLMTemperature != 0.7 || cfg.ExpansionTemperature != 0.3 {
		t.Fatalf("unexpected temperatures: %v %v", cfg.LLMTemperature, cfg.ExpansionTemperature)
	}
	if cfg.NATSSubject != "products.ingest" {
		t.Fatalf("unexpected subject %q", cfg.NATSSubject)
	}
	if cfg.EmbedQueryPrefix != "query: " {
		t.Fatalf("unexpected query prefix %q", cfg.EmbedQueryPrefix)
	}
	if cfg.RerankerURL != "" {
		t.Fatalf("expected lexical reranker by default, got %q", cfg.RerankerURL)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "20")
	t.Setenv("PIPELINE_TIMEOUT", "5s")
	t.Setenv("CACHE_RESPONSE_TTL", "120")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.RetrievalTopK != 20 {
		t.Fatalf("expected top k 20, got %d", cfg.RetrievalTopK)
	}
	if cfg.PipelineTimeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %v", cfg.PipelineTimeout)
	}
	if cfg.CacheResponseTTL != 2*time.Minute {
		t.Fatalf("expected bare seconds to parse, got %v", cfg.CacheResponseTTL)
	}
	if cfg.LLMTemperature != 0.2 || cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("unexpected floats: %v %v", cfg.LLMTemperature, cfg.APIRateLimitRPS)
	}
	if cfg.ResilienceConfig().BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("RERANK_TOP_K", "three")
	t.Setenv("PIPELINE_TIMEOUT", "soon")
	t.Setenv("OTEL_SAMPLE_RATE", "all")

	cfg := Load()
	if cfg.RerankTopK != 3 || cfg.PipelineTimeout != 30*time.Second || cfg.OTelSampleRate != 1 {
		t.Fatalf("expected fallbacks, got %+v", cfg)
	}
}

func TestResilienceConfigClampsNegativeCounts(t *testing.T) {
	cfg := Config{ResilienceBreakerMinRequests: -1, ResilienceBreakerHalfOpenMax: -5}
	rc := cfg.ResilienceConfig()
	if rc.BreakerMinRequests != 0 || rc.BreakerHalfOpenMaxCalls != 0 {
		t.Fatalf("expected zero counts, got %+v", rc)
	}
}
