package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

const schemaLockID int64 = 2026101601

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ProductRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/ingest startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT NOT NULL,
	brand TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '',
	availability BOOLEAN NOT NULL DEFAULT TRUE,
	description TEXT NOT NULL DEFAULT '',
	features JSONB NOT NULL DEFAULT '{}'::jsonb,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand);
CREATE INDEX IF NOT EXISTS idx_products_updated_at ON products(updated_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert inserts the product or replaces every mutable column.
// created_at of an existing row is preserved.
func (r *ProductRepository) Upsert(ctx context.Context, p *domain.Product) error {
	featuresJSON, err := marshalJSONObject(p.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	metadataJSON, err := marshalJSONObject(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO products (
	id, name, price, currency, brand, color, availability, description, features, metadata, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	price = EXCLUDED.price,
	currency = EXCLUDED.currency,
	brand = EXCLUDED.brand,
	color = EXCLUDED.color,
	availability = EXCLUDED.availability,
	description = EXCLUDED.description,
	features = EXCLUDED.features,
	metadata = EXCLUDED.metadata,
	updated_at = EXCLUDED.updated_at
`,
		p.ID, p.Name, p.Price, p.Currency, p.Brand, p.Color, p.Availability, p.Description,
		featuresJSON, metadataJSON, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, price, currency, brand, color, availability, description, features, metadata, created_at, updated_at
FROM products
WHERE id = $1
`, id)

	var p domain.Product
	var featuresRaw, metadataRaw []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Currency, &p.Brand, &p.Color, &p.Availability, &p.Description,
		&featuresRaw, &metadataRaw, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrProductNotFound, "get product", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	if err := unmarshalJSONObject(featuresRaw, &p.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	if err := unmarshalJSONObject(metadataRaw, &p.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &p, nil
}

// Name and Ping expose the database as a health probe.
func (r *ProductRepository) Name() string {
	return "postgres"
}

func (r *ProductRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func marshalJSONObject[T any](v map[string]T) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unmarshalJSONObject[T any](raw []byte, out *map[string]T) error {
	if len(raw) == 0 {
		return nil
	}
	var decoded map[string]T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	if len(decoded) > 0 {
		*out = decoded
	}
	return nil
}
