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

	"github.com/megachat/sales-assistant/internal/bootstrap"
	"github.com/megachat/sales-assistant/internal/config"
	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/observability/logging"
	"github.com/megachat/sales-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	service := cfg.ServiceName + "-worker"
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Registerer: workerMetrics.Registerer()})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_addr", metricsServer.Addr)
	err = app.Queue.SubscribeProducts(ctx, func(handlerCtx context.Context, product domain.Product) error {
		if !product.UpdatedAt.IsZero() {
			workerMetrics.ObserveIndexLag(service, time.Since(product.UpdatedAt))
		}

		indexCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerIndexTimeout)
		defer cancel()

		workerMetrics.StartProduct()
		start := time.Now()
		err := app.Indexer.IndexProduct(indexCtx, product)
		workerMetrics.FinishProduct(service, time.Since(start), err)
		if err != nil {
			return err
		}
		slog.Info("product_indexed", "product_id", product.ID, "duration_ms", time.Since(start).Milliseconds())
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
