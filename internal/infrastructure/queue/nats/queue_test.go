package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

func TestProductEventRoundTrip(t *testing.T) {
	in := domain.Product{
		ID:           "shop_42",
		Name:         "گوشی سامسونگ",
		Price:        15000000,
		Currency:     "تومان",
		Availability: true,
		Metadata:     map[string]any{"channel": "shop", "post_id": float64(42)},
	}
	data, err := encodeProduct(in)
	if err != nil {
		t.Fatalf("encodeProduct() error = %v", err)
	}
	out, err := decodeProduct(data)
	if err != nil {
		t.Fatalf("decodeProduct() error = %v", err)
	}
	if out.ID != in.ID || out.Name != in.Name || out.Price != in.Price || out.Metadata["post_id"] != float64(42) {
		t.Fatalf("unexpected product: %+v", out)
	}
}

func TestEncodeProductRequiresID(t *testing.T) {
	if _, err := encodeProduct(domain.Product{Name: "x"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDecodeProductRejectsGarbage(t *testing.T) {
	if _, err := decodeProduct([]byte("doc-1")); err == nil {
		t.Fatalf("expected error for non-json payload")
	}
	if _, err := decodeProduct([]byte(`{"name":"x"}`)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing id, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"no servers", fmt.Errorf("nats publish: %w", nats.ErrNoServers), true, true},
		{"disconnected", nats.ErrDisconnected, true, true},
		{"canceled", context.Canceled, false, false},
		{"max payload", nats.ErrMaxPayload, false, false},
		{"other", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		class := classifyNATSError(tc.err)
		if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
			t.Fatalf("%s: unexpected classification %+v", tc.name, class)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrNoServers); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nats.ErrBadSubject); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent, got %v", err)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestPingWithoutConnection(t *testing.T) {
	q := &Queue{}
	if err := q.Ping(context.Background()); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
