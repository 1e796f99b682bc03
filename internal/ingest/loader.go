package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

// Sink receives converted products, either publishing or indexing them.
type Sink func(ctx context.Context, product domain.Product) error

type Stats struct {
	Files    int
	Posts    int
	Products int
	Failed   int
}

type Loader struct {
	sink Sink
	now  func() time.Time
}

func NewLoader(sink Sink) *Loader {
	return &Loader{sink: sink, now: time.Now}
}

// LoadDir converts every *.json file in dir. A broken file or post is logged
// and skipped; cancellation stops the run.
func (l *Loader) LoadDir(ctx context.Context, dir string) (Stats, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return Stats{}, fmt.Errorf("list dataset: %w", err)
	}
	sort.Strings(files)
	slog.Info("ingest_dataset_found", "dir", dir, "files", len(files))

	var stats Stats
	for _, path := range files {
		channel, posts, err := ReadChannel(path)
		if err != nil {
			slog.Error("ingest_file_failed", "file", path, "error", err)
			continue
		}
		stats.Files++
		stats.Posts += len(posts)

		ingested := 0
		for _, post := range posts {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			product := PostToProduct(post, channel, l.now().UTC())
			if err := l.sink(ctx, product); err != nil {
				stats.Failed++
				slog.Error("ingest_post_failed", "channel", channel, "post_id", post.ID, "error", err)
				continue
			}
			ingested++
		}
		stats.Products += ingested
		slog.Info("ingest_channel_done", "channel", channel, "posts", len(posts), "products", ingested)
	}
	return stats, nil
}
