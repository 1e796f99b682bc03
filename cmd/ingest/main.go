package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/megachat/sales-assistant/internal/bootstrap"
	"github.com/megachat/sales-assistant/internal/config"
	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/ingest"
	"github.com/megachat/sales-assistant/internal/observability/logging"
)

func main() {
	app := &cli.App{
		Name:  "ingest",
		Usage: "Load channel post exports into the product catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: func(c *cli.Context) error {
			slog.SetDefault(logging.NewJSONLogger("ingest", c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "load",
				Usage:  "Convert every *.json export in a directory into products",
				Action: loadCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Aliases:  []string{"d"},
						Usage:    "Directory containing channel export files",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "direct",
						Usage: "Index products in-process instead of publishing them to the queue",
					},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("ingest_failed", "error", err)
		os.Exit(1)
	}
}

func loadCommand(c *cli.Context) error {
	dataset := c.String("dataset")
	info, err := os.Stat(dataset)
	if err != nil {
		return fmt.Errorf("dataset directory not found: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("dataset %s is not a directory", dataset)
	}

	cfg := config.Load()
	app, err := bootstrap.New(c.Context, cfg, bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	sink := ingest.Sink(func(ctx context.Context, product domain.Product) error {
		_, err := app.Catalog.AddProduct(ctx, product)
		return err
	})
	if c.Bool("direct") {
		sink = func(ctx context.Context, product domain.Product) error {
			_, err := app.Catalog.ImportProduct(ctx, product)
			return err
		}
	}

	stats, err := ingest.NewLoader(sink).LoadDir(c.Context, dataset)
	slog.Info("ingest_complete",
		"files", stats.Files,
		"posts", stats.Posts,
		"products", stats.Products,
		"failed", stats.Failed,
		"direct", c.Bool("direct"),
	)
	return err
}
