package httpadapter

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/megachat/sales-assistant/internal/config"
	"github.com/megachat/sales-assistant/internal/core/domain"
)

const chatBody = `{"text":"سلام","user_id":"u1","session_id":"s1"}`

func TestChatRateLimitRejectsBurstWithRetryAfter(t *testing.T) {
	deps := newTestDeps()
	handler := deps.router(config.Config{APIRateLimitRPS: 0.5, APIRateLimitBurst: 1}).Handler()

	first := doJSON(t, handler, http.MethodPost, "/api/v1/chat", chatBody)
	if first.Code != http.StatusOK {
		t.Fatalf("first chat expected 200, got %d", first.Code)
	}
	deps.chat.last = domain.Query{}

	second := doJSON(t, handler, http.MethodPost, "/api/v1/chat", chatBody)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second chat expected 429, got %d", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2 for 0.5 rps, got %q", got)
	}
	if body := decodeBody(t, second); body["error"] != "rate limit exceeded" {
		t.Fatalf("unexpected 429 body %v", body)
	}
	if deps.chat.last.Text != "" {
		t.Fatalf("limited request reached the pipeline: %+v", deps.chat.last)
	}
}

func TestRateLimitDisabledForNonPositiveRate(t *testing.T) {
	handler := newTestHandler(config.Config{APIRateLimitRPS: 0, APIRateLimitBurst: 1})
	for i := 0; i < 5; i++ {
		if res := doJSON(t, handler, http.MethodPost, "/api/v1/chat", chatBody); res.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i, res.Code)
		}
	}
}

// stalledChat holds every Run until release is closed.
type stalledChat struct {
	entered chan struct{}
	release chan struct{}
}

func (s *stalledChat) Run(_ context.Context, query domain.Query) (*domain.ChatResult, error) {
	s.entered <- struct{}{}
	<-s.release
	return &domain.ChatResult{Response: "ok", Intent: domain.IntentGreeting, SessionID: query.SessionID}, nil
}

func TestChatBackpressureShedsWhenPipelineSaturated(t *testing.T) {
	deps := newTestDeps()
	chat := &stalledChat{entered: make(chan struct{}, 1), release: make(chan struct{})}
	cfg := config.Config{APIMaxInFlight: 1, APIBackpressureWait: 20 * time.Millisecond}
	handler := NewRouter(cfg, chat, deps.catalog, deps.sessions, deps.health).Handler()

	done := make(chan int, 1)
	go func() {
		done <- doJSON(t, handler, http.MethodPost, "/api/v1/chat", chatBody).Code
	}()
	<-chat.entered

	shed := doJSON(t, handler, http.MethodPost, "/api/v1/chat", chatBody)
	if shed.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the only slot is held, got %d", shed.Code)
	}
	if body := decodeBody(t, shed); body["error"] != overloadMessage {
		t.Fatalf("unexpected overload body %v", body)
	}

	close(chat.release)
	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Fatalf("in-flight chat expected 200, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("in-flight chat did not finish")
	}

	// The slot is free again once the first request returns.
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/chat", chatBody); res.Code != http.StatusOK {
		t.Fatalf("expected 200 after release, got %d", res.Code)
	}
}
