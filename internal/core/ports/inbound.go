package ports

import (
	"context"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

// ChatService answers one user turn.
type ChatService interface {
	Run(ctx context.Context, query domain.Query) (*domain.ChatResult, error)
}

// ProductCatalog is the inbound contract for catalog writes and reads.
type ProductCatalog interface {
	AddProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// ProductIndexer embeds and indexes one product.
type ProductIndexer interface {
	IndexProduct(ctx context.Context, product domain.Product) error
}

// SessionStore keeps short conversational history per user.
type SessionStore interface {
	Append(ctx context.Context, userID string, messages ...domain.SessionMessage) error
	History(ctx context.Context, userID string) (*domain.Session, error)
	Clear(ctx context.Context, userID string) error
}

// HealthChecker aggregates dependency probes into one report.
type HealthChecker interface {
	Check(ctx context.Context) domain.HealthReport
}
