package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

func TestExtractPrice(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"قیمت 2,500,000 تومان", 2500000},
		{"فقط 15 میلیون", 15000000},
		{"15 میلیون تومان", 15000000},
		{"بدون قیمت", 0},
		{"سال 1402 عرضه شد", 0},
	}
	for _, tc := range cases {
		if got := ExtractPrice(tc.text); got != tc.want {
			t.Fatalf("ExtractPrice(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestPostToProduct(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	text := strings.Repeat("ب", 120) + " 3 میلیون"
	product := PostToProduct(Post{ID: "42", Text: text, Date: "2024-01-01", Views: float64(9)}, "shop", now)

	if product.ID != "shop_42" {
		t.Fatalf("unexpected id %q", product.ID)
	}
	if got := len([]rune(product.Name)); got != maxNameRunes {
		t.Fatalf("expected name truncated to %d runes, got %d", maxNameRunes, got)
	}
	if product.Description != text || product.Price != 3000000 || product.Currency != "تومان" || !product.Availability {
		t.Fatalf("unexpected product: %+v", product)
	}
	if product.Metadata["channel"] != "shop" || product.Metadata["post_id"] != "42" || product.Metadata["views"] != float64(9) {
		t.Fatalf("unexpected metadata: %+v", product.Metadata)
	}
	if !product.CreatedAt.Equal(now) || !product.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps from clock")
	}
}

func TestPostToProductWithoutTextOrID(t *testing.T) {
	product := PostToProduct(Post{}, "shop", time.Now())
	postID, _ := product.Metadata["post_id"].(string)
	if postID == "" || product.ID != "shop_"+postID {
		t.Fatalf("expected generated post id, got %+v", product)
	}
	if product.Name != "محصول "+postID {
		t.Fatalf("unexpected placeholder name %q", product.Name)
	}
}

func TestReadChannelFormats(t *testing.T) {
	channel, posts, err := ReadChannel(filepath.Join("testdata", "shop_tehran.json"))
	if err != nil {
		t.Fatalf("ReadChannel() error = %v", err)
	}
	if channel != "shop_tehran" || len(posts) != 3 {
		t.Fatalf("unexpected channel=%q posts=%d", channel, len(posts))
	}
	if posts[0].ID != "101" {
		t.Fatalf("expected numeric id rendered as string, got %q", posts[0].ID)
	}
	if posts[1].Text != "هدفون بی سیم 2,500,000 تومان" {
		t.Fatalf("expected flattened entity text, got %q", posts[1].Text)
	}

	channel, posts, err = ReadChannel(filepath.Join("testdata", "gadgets.json"))
	if err != nil {
		t.Fatalf("ReadChannel() error = %v", err)
	}
	if channel != "gadgets" || len(posts) != 1 || posts[0].ID != "7" {
		t.Fatalf("unexpected messages export: %q %+v", channel, posts)
	}

	if _, _, err := ReadChannel(filepath.Join("testdata", "broken.json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoaderLoadDir(t *testing.T) {
	var got []domain.Product
	loader := NewLoader(func(_ context.Context, product domain.Product) error {
		if product.ID == "shop_tehran_103" {
			return errors.New("queue down")
		}
		got = append(got, product)
		return nil
	})

	stats, err := loader.LoadDir(context.Background(), "testdata")
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if stats.Files != 2 || stats.Posts != 4 || stats.Products != 3 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got[0].ID != "gadgets_7" || got[1].ID != "shop_tehran_101" || got[2].Price != 2500000 {
		t.Fatalf("unexpected products: %+v", got)
	}
}

func TestLoaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loader := NewLoader(func(context.Context, domain.Product) error { return nil })
	if _, err := loader.LoadDir(ctx, "testdata"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
