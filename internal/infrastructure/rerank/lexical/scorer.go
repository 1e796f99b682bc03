package lexical

import (
	"context"
	"strings"
	"unicode"
)

// Scorer is the offline fallback for a cross-encoder: it scores each
// candidate by the share of query tokens it contains, plus a bonus when the
// whole query appears verbatim.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

func (s *Scorer) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := toTokenSet(query)
	phrase := strings.Join(splitWordsLower(query), " ")

	scores := make([]float64, len(candidates))
	for i, candidate := range candidates {
		words := splitWordsLower(candidate)
		score := 0.9 * tokenOverlap(queryTokens, toTokenSetFromWords(words))
		if phrase != "" && strings.Contains(strings.Join(words, " "), phrase) {
			score += 0.1
		}
		scores[i] = score
	}
	return scores, nil
}

func tokenOverlap(query, candidate map[string]struct{}) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := candidate[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	return toTokenSetFromWords(splitWordsLower(s))
}

func toTokenSetFromWords(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, word := range words {
		out[word] = struct{}{}
	}
	return out
}

// splitWordsLower splits on anything that is not a letter, digit or
// combining mark, so Persian words survive intact.
func splitWordsLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
