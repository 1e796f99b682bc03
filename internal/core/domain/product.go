package domain

import (
	"strings"
	"time"
)

type Product struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Price        float64           `json:"price"`
	Currency     string            `json:"currency"`
	Brand        string            `json:"brand,omitempty"`
	Color        string            `json:"color,omitempty"`
	Availability bool              `json:"availability"`
	Description  string            `json:"description,omitempty"`
	Features     map[string]string `json:"features,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// SearchText is the text embedded for indexing and scored by rerankers.
func (p Product) SearchText() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.Name, p.Description, p.Brand} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// SearchFilter holds exact-match payload constraints for vector search.
type SearchFilter struct {
	Brand string
	Color string
}

func (f SearchFilter) Empty() bool {
	return f.Brand == "" && f.Color == ""
}

// VectorHit is one nearest-neighbour result as returned by the index.
type VectorHit struct {
	ProductID string
	Score     float64
	Product   Product
}

type RetrievedDocument struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}
