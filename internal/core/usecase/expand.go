package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/megachat/sales-assistant/internal/core/ports"
)

const defaultQueryVariations = 3

const expansionPromptTemplate = `شما یک دستیار هوشمند هستید. یک سوال فارسی دریافت می‌کنید و باید %d نسخه متفاوت از آن سوال را بسازید که همان معنی را داشته باشند اما با کلمات متفاوت بیان شوند.

سوال اصلی: %s

لطفاً %d نسخه متفاوت از این سوال را به صورت یک لیست شماره‌دار بنویسید:`

var enumerationMarker = regexp.MustCompile(`^(?:\p{Nd}+\s*[.)\-:]|[-•*])\s*`)

// QueryExpander widens retrieval recall with LLM paraphrases of a query.
type QueryExpander struct {
	generator   ports.TextGenerator
	variations  int
	temperature float64
}

func NewQueryExpander(generator ports.TextGenerator, variations int, temperature float64) *QueryExpander {
	if variations <= 0 {
		variations = defaultQueryVariations
	}
	return &QueryExpander{
		generator:   generator,
		variations:  variations,
		temperature: temperature,
	}
}

// Expand returns the original query followed by at most variations-1
// paraphrases. Generation failures degrade to the original query alone;
// only cancellation of ctx is returned as an error.
func (e *QueryExpander) Expand(ctx context.Context, query string) ([]string, error) {
	out := []string{query}
	if e.variations <= 1 || e.generator == nil || strings.TrimSpace(query) == "" {
		return out, nil
	}

	want := e.variations - 1
	raw, err := e.generator.Complete(ctx, fmt.Sprintf(expansionPromptTemplate, want, query, want), e.temperature)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("expand query: %w", ctxErr)
		}
		slog.Warn("query_expansion_failed", "error", err)
		return out, nil
	}

	seen := map[string]struct{}{strings.TrimSpace(query): {}}
	for _, variation := range parseVariations(raw) {
		if _, dup := seen[variation]; dup {
			continue
		}
		seen[variation] = struct{}{}
		out = append(out, variation)
		if len(out) == e.variations {
			break
		}
	}
	return out, nil
}

// parseVariations extracts one candidate per line. When the output carries
// any enumerated or bulleted line, unmarked lines are treated as prose and
// dropped.
func parseVariations(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	marked := make([]string, 0, len(lines))
	plain := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if loc := enumerationMarker.FindStringIndex(line); loc != nil {
			if v := cleanVariation(line[loc[1]:]); v != "" {
				marked = append(marked, v)
			}
			continue
		}
		if v := cleanVariation(line); v != "" {
			plain = append(plain, v)
		}
	}
	if len(marked) > 0 {
		return marked
	}
	return plain
}

func cleanVariation(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'«»`))
}
