package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/megachat/sales-assistant/internal/adapters/http"
	"github.com/megachat/sales-assistant/internal/bootstrap"
	"github.com/megachat/sales-assistant/internal/config"
	"github.com/megachat/sales-assistant/internal/core/usecase"
	"github.com/megachat/sales-assistant/internal/observability/logging"
	"github.com/megachat/sales-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(cfg.ServiceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.ServiceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Registerer: httpMetrics.Registerer(),
		StageObserver: func(stage usecase.Stage, duration time.Duration) {
			httpMetrics.ObserveStage(cfg.ServiceName, string(stage), duration)
		},
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Chat, app.Catalog, app.Sessions, app.Health).
		WithMetrics(httpMetrics).
		Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.PipelineTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
