package nlu

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

type compiledIntent struct {
	intent   domain.Intent
	patterns []*regexp.Regexp
}

type compiledRules struct {
	intents      []compiledIntent
	quantity     *regexp.Regexp
	price        *regexp.Regexp
	priceUnits   map[string]int64
	color        *regexp.Regexp
	brand        *regexp.Regexp
	brandAliases map[string]string
	connectors   map[string]struct{}
}

// Classifier is a deterministic rule-based intent and slot extractor.
// It holds only compiled rules and is safe for concurrent use.
type Classifier struct {
	rules compiledRules
}

func NewClassifier(rules Rules) (*Classifier, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Classifier{rules: compiled}, nil
}

// Classify builds a ParsedQuery from the original text and its normalized form.
func (c *Classifier) Classify(original, normalized string) domain.ParsedQuery {
	text := strings.ToLower(normalized)
	intent := c.DetectIntent(text)
	slots := c.ExtractSlots(text)
	return domain.ParsedQuery{
		Original:   original,
		Normalized: normalized,
		Intent:     intent,
		Slots:      slots,
		Confidence: Confidence(intent, slots),
	}
}

// DetectIntent scores each intent by the number of its patterns that match.
// The first intent in rule order with the highest positive score wins.
func (c *Classifier) DetectIntent(text string) domain.Intent {
	text = strings.ToLower(text)
	best := domain.IntentGeneral
	bestScore := 0
	for _, candidate := range c.rules.intents {
		score := 0
		for _, pattern := range candidate.patterns {
			if pattern.MatchString(text) {
				score++
			}
		}
		if score > bestScore {
			best = candidate.intent
			bestScore = score
		}
	}
	return best
}

func (c *Classifier) ExtractSlots(text string) domain.Slots {
	text = strings.ToLower(text)
	var slots domain.Slots

	if c.rules.quantity != nil {
		if m := c.rules.quantity.FindStringSubmatch(text); len(m) > 1 {
			if n, err := strconv.Atoi(m[1]); err == nil {
				slots.Quantity = &n
			}
		}
	}
	slots.PriceRange = c.extractPriceRange(text)
	slots.Color = firstGroup(c.rules.color, text)
	if brand := firstGroup(c.rules.brand, text); brand != "" {
		if alias, ok := c.rules.brandAliases[brand]; ok {
			brand = alias
		}
		slots.Brand = brand
	}
	slots.ComparisonItems = c.extractComparisonItems(text)
	return slots
}

func (c *Classifier) extractPriceRange(text string) *domain.PriceRange {
	if c.rules.price == nil {
		return nil
	}
	matches := c.rules.price.FindAllStringSubmatch(text, -1)
	values := make([]int64, 0, len(matches))
	for _, m := range matches {
		if len(m) < 3 {
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		multiplier, ok := c.rules.priceUnits[m[2]]
		if !ok {
			multiplier = 1
		}
		value := math.Round(amount * float64(multiplier))
		if math.IsNaN(value) || math.IsInf(value, 0) || value >= math.MaxInt64 {
			continue
		}
		values = append(values, int64(value))
	}

	switch len(values) {
	case 0:
		return nil
	case 1:
		return &domain.PriceRange{Min: 0, Max: values[0]}
	}
	out := &domain.PriceRange{Min: values[0], Max: values[0]}
	for _, v := range values[1:] {
		out.Min = min(out.Min, v)
		out.Max = max(out.Max, v)
	}
	return out
}

func (c *Classifier) extractComparisonItems(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) < 3 || len(c.rules.connectors) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for i := 1; i < len(tokens)-1; i++ {
		if _, ok := c.rules.connectors[tokens[i]]; !ok {
			continue
		}
		seen[tokens[i-1]] = struct{}{}
		seen[tokens[i+1]] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	items := make([]string, 0, len(seen))
	for item := range seen {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}

// CanonicalBrand folds a stored brand name into the form ExtractSlots
// reports, mapping Latin aliases onto their Persian names.
func (c *Classifier) CanonicalBrand(brand string) string {
	brand = strings.ToLower(Normalize(brand))
	if alias, ok := c.rules.brandAliases[brand]; ok {
		return alias
	}
	return brand
}

func (c *Classifier) CanonicalColor(color string) string {
	return strings.ToLower(Normalize(color))
}

// Confidence is a completeness heuristic in [0.5, 1.0]: 0.5 base, 0.2 for a
// matched intent, 0.1 per filled slot up to 0.3.
func Confidence(intent domain.Intent, slots domain.Slots) float64 {
	tenths := 5
	if intent != domain.IntentGeneral {
		tenths += 2
	}
	tenths += min(slots.FilledCount(), 3)
	return min(float64(tenths)/10, 1.0)
}

func firstGroup(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.Join(strings.Fields(m[1]), " ")
}

func compileRules(rules Rules) (compiledRules, error) {
	out := compiledRules{
		intents:      make([]compiledIntent, 0, len(rules.Intents)),
		priceUnits:   rules.Slots.PriceUnits,
		brandAliases: make(map[string]string, len(rules.Slots.BrandAliases)),
		connectors:   make(map[string]struct{}, len(rules.Slots.Connectors)),
	}

	seen := make(map[domain.Intent]struct{}, len(rules.Intents))
	for _, rule := range rules.Intents {
		if !rule.Intent.Valid() || rule.Intent == domain.IntentGeneral {
			return compiledRules{}, domain.WrapError(domain.ErrInvalidInput, "compile rules", fmt.Errorf("unknown intent %q", rule.Intent))
		}
		if _, dup := seen[rule.Intent]; dup {
			return compiledRules{}, domain.WrapError(domain.ErrInvalidInput, "compile rules", fmt.Errorf("duplicate intent %q", rule.Intent))
		}
		seen[rule.Intent] = struct{}{}

		compiled := compiledIntent{intent: rule.Intent, patterns: make([]*regexp.Regexp, 0, len(rule.Patterns))}
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return compiledRules{}, domain.WrapError(domain.ErrInvalidInput, "compile intent "+string(rule.Intent), err)
			}
			compiled.patterns = append(compiled.patterns, re)
		}
		out.intents = append(out.intents, compiled)
	}

	slotPatterns := []struct {
		name    string
		pattern string
		target  **regexp.Regexp
	}{
		{"quantity", rules.Slots.Quantity, &out.quantity},
		{"price", rules.Slots.Price, &out.price},
		{"color", rules.Slots.Color, &out.color},
		{"brand", rules.Slots.Brand, &out.brand},
	}
	for _, slot := range slotPatterns {
		if slot.pattern == "" {
			continue
		}
		re, err := regexp.Compile(slot.pattern)
		if err != nil {
			return compiledRules{}, domain.WrapError(domain.ErrInvalidInput, "compile slot "+slot.name, err)
		}
		*slot.target = re
	}
	if out.price != nil && out.price.NumSubexp() < 2 {
		return compiledRules{}, domain.WrapError(domain.ErrInvalidInput, "compile slot price", fmt.Errorf("pattern needs amount and unit groups"))
	}

	for alias, canonical := range rules.Slots.BrandAliases {
		out.brandAliases[strings.ToLower(alias)] = canonical
	}
	for _, connector := range rules.Slots.Connectors {
		out.connectors[connector] = struct{}{}
	}
	return out, nil
}
