package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/ports"
)

const defaultRerankTopK = 3

// Reranker rescores fused candidates against the non-expanded query with a
// pairwise scorer and keeps the top candidates.
type Reranker struct {
	scorer ports.RerankScorer
	topK   int
}

func NewReranker(scorer ports.RerankScorer, topK int) *Reranker {
	if topK <= 0 {
		topK = defaultRerankTopK
	}
	return &Reranker{scorer: scorer, topK: topK}
}

// Rerank does not modify docs. If the scorer fails the fused order is kept,
// truncated and re-ranked; only cancellation of ctx is returned as an error.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []domain.RetrievedDocument) ([]domain.RetrievedDocument, error) {
	if len(docs) == 0 {
		return []domain.RetrievedDocument{}, nil
	}

	out := make([]domain.RetrievedDocument, len(docs))
	copy(out, docs)

	texts := make([]string, len(out))
	for i := range out {
		texts[i] = out[i].Product.SearchText()
	}

	scores, err := r.scorer.Score(ctx, query, texts)
	if err == nil && len(scores) != len(texts) {
		err = fmt.Errorf("scorer returned %d scores for %d candidates", len(scores), len(texts))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("rerank: %w", ctxErr)
		}
		slog.Warn("rerank_fallback", "candidates", len(out), "error", err)
		out = trimCandidates(out, r.topK)
		assignRanks(out)
		return out, nil
	}

	for i := range out {
		out[i].Score = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	out = trimCandidates(out, r.topK)
	assignRanks(out)
	return out, nil
}
