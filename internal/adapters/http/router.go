package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/megachat/sales-assistant/internal/config"
	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/ports"
	"github.com/megachat/sales-assistant/internal/observability/metrics"
)

const (
	apiVersion      = "1.0.0"
	maxRequestBytes = 1 << 20

	welcomeMessage      = "به مگاچت خوش آمدید!"
	productAddedMessage = "محصول با موفقیت اضافه شد"
	productNotFound     = "محصول پیدا نشد"
)

type Router struct {
	cfg      config.Config
	chat     ports.ChatService
	catalog  ports.ProductCatalog
	sessions ports.SessionStore
	health   ports.HealthChecker
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	chat ports.ChatService,
	catalog ports.ProductCatalog,
	sessions ports.SessionStore,
	health ports.HealthChecker,
) *Router {
	return &Router{
		cfg:      cfg,
		chat:     chat,
		catalog:  catalog,
		sessions: sessions,
		health:   health,
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.root)
	mux.HandleFunc("POST /api/v1/chat", rt.handleChat)
	mux.HandleFunc("GET /api/v1/health", rt.handleHealth)
	mux.HandleFunc("POST /api/v1/products", rt.addProduct)
	mux.HandleFunc("GET /api/v1/products/{id}", rt.getProduct)
	mux.HandleFunc("DELETE /api/v1/sessions/{user_id}", rt.clearSession)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.serviceName(), handler)
	}
	handler = accessLogMiddleware(handler)
	handler = tracingMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) serviceName() string {
	if rt.cfg.ServiceName == "" {
		return "api"
	}
	return rt.cfg.ServiceName
}

func (rt *Router) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": welcomeMessage,
		"version": apiVersion,
		"status":  "running",
	})
}

type chatRequest struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

func (rt *Router) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}

	start := time.Now()
	result, err := rt.chat.Run(r.Context(), domain.Query{
		Text:      req.Text,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	})
	if err != nil {
		rt.writeDomainError(w, r, "chat", err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordChat(
			rt.serviceName(),
			string(result.Intent),
			result.FromCache,
			len(result.RetrievedProducts),
			result.Confidence,
			time.Since(start),
		)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := rt.health.Check(r.Context())
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) addProduct(w http.ResponseWriter, r *http.Request) {
	var product domain.Product
	if err := decodeJSON(w, r, &product); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := rt.catalog.AddProduct(r.Context(), product)
	if err != nil {
		rt.writeDomainError(w, r, "add_product", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordProductAdded(rt.serviceName())
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"product": saved,
		"message": productAddedMessage,
	})
}

func (rt *Router) getProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	product, err := rt.catalog.GetProduct(r.Context(), id)
	if err != nil {
		if domain.IsKind(err, domain.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, productNotFound)
			return
		}
		rt.writeDomainError(w, r, "get_product", err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (rt *Router) clearSession(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.PathValue("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := rt.sessions.Clear(r.Context(), userID); err != nil {
		rt.writeDomainError(w, r, "clear_session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, publicErrorMessage(status, err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid json")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
