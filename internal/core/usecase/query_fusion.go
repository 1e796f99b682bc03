package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/ports"
)

const (
	defaultRetrievalTopK        = 10
	defaultRetrievalConcurrency = 3
)

// FusionRetriever runs one vector search per query variation and merges the
// hits by product id, keeping the best score per product.
type FusionRetriever struct {
	embedder    ports.Embedder
	index       ports.VectorIndex
	topK        int
	concurrency int
}

func NewFusionRetriever(embedder ports.Embedder, index ports.VectorIndex, topK, concurrency int) *FusionRetriever {
	if topK <= 0 {
		topK = defaultRetrievalTopK
	}
	if concurrency <= 0 {
		concurrency = defaultRetrievalConcurrency
	}
	return &FusionRetriever{
		embedder:    embedder,
		index:       index,
		topK:        topK,
		concurrency: concurrency,
	}
}

// Retrieve never fails because of a single variation: failed searches are
// logged and skipped. An empty result is valid. Only cancellation of ctx is
// returned as an error.
func (r *FusionRetriever) Retrieve(ctx context.Context, variations []string, filter domain.SearchFilter) ([]domain.RetrievedDocument, error) {
	lists := make([][]domain.VectorHit, len(variations))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, variation := range variations {
		g.Go(func() error {
			hits, err := r.searchVariation(ctx, variation, filter)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("variation_search_failed", "variation_index", i, "error", err)
				}
				return nil
			}
			lists[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return fuseByMaxScore(lists, r.topK), nil
}

func (r *FusionRetriever) searchVariation(ctx context.Context, text string, filter domain.SearchFilter) ([]domain.VectorHit, error) {
	vector, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed variation: %w", err)
	}
	hits, err := r.index.Search(ctx, vector, r.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	return hits, nil
}

// fuseByMaxScore merges hit lists in list order. A later hit replaces an
// earlier one only with a strictly higher score, so the merge is a pure
// max-by-key reduction and independent of search completion order.
func fuseByMaxScore(lists [][]domain.VectorHit, topK int) []domain.RetrievedDocument {
	index := make(map[string]int)
	out := make([]domain.RetrievedDocument, 0)
	for _, hits := range lists {
		for _, hit := range hits {
			id := hit.ProductID
			if id == "" {
				id = hit.Product.ID
			}
			if id == "" {
				continue
			}
			product := hit.Product
			product.ID = id

			pos, ok := index[id]
			if !ok {
				index[id] = len(out)
				out = append(out, domain.RetrievedDocument{Product: product, Score: hit.Score})
				continue
			}
			if hit.Score > out[pos].Score {
				out[pos].Product = product
				out[pos].Score = hit.Score
			}
		}
	}

	sortDocuments(out)
	out = trimCandidates(out, topK)
	assignRanks(out)
	return out
}

func sortDocuments(docs []domain.RetrievedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].Product.ID < docs[j].Product.ID
	})
}

func trimCandidates(docs []domain.RetrievedDocument, limit int) []domain.RetrievedDocument {
	if limit <= 0 || len(docs) <= limit {
		return docs
	}
	return docs[:limit]
}

func assignRanks(docs []domain.RetrievedDocument) {
	for i := range docs {
		docs[i].Rank = i + 1
	}
}

func searchFilterFromSlots(slots domain.Slots) domain.SearchFilter {
	return domain.SearchFilter{
		Brand: slots.Brand,
		Color: slots.Color,
	}
}
