package nlu

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

// Rules is the classifier's rule table. Intent order is the tie-break order.
type Rules struct {
	Intents []IntentRule `yaml:"intents"`
	Slots   SlotRules    `yaml:"slots"`
}

type IntentRule struct {
	Intent   domain.Intent `yaml:"intent"`
	Patterns []string      `yaml:"patterns"`
}

// SlotRules holds one pattern per slot. Price must capture the amount and
// the unit as groups 1 and 2; the others capture their value as group 1.
type SlotRules struct {
	Quantity     string            `yaml:"quantity"`
	Price        string            `yaml:"price"`
	PriceUnits   map[string]int64  `yaml:"price_units"`
	Color        string            `yaml:"color"`
	Brand        string            `yaml:"brand"`
	BrandAliases map[string]string `yaml:"brand_aliases"`
	Connectors   []string          `yaml:"connectors"`
}

// standalone matches a token only when surrounded by whitespace or text edges.
func standalone(token string) string {
	return `(?:^|\s)` + token + `(?:\s|$)`
}

func DefaultRules() Rules {
	return Rules{
		Intents: []IntentRule{
			{Intent: domain.IntentPriceCheck, Patterns: []string{
				`قیمت`, `چقدر`, `چند تومان`, `چنده`, `هزینه`, `چند پول`,
			}},
			{Intent: domain.IntentAvailability, Patterns: []string{
				`موجود`, `در دسترس`, `دارید`, `هست`, `وجود دار`, `می\s*تونم\s+بخرم`,
			}},
			{Intent: domain.IntentFeatureInquiry, Patterns: []string{
				`مشخصات`, `ویژگی`, `دوربین`, `باتری`, `حافظه`, standalone(`رم`), `مگاپیکسل`, `اینچ`, `نسخه`, `مدل`,
			}},
			{Intent: domain.IntentComparison, Patterns: []string{
				`فرق`, `تفاوت`, `مقایسه`, `بهتر`, standalone(`یا`), `کدوم`, `کدام`,
			}},
			{Intent: domain.IntentShipping, Patterns: []string{
				`ارسال`, `تحویل`, `چند روز`, `زمان`, `پست`, `می\s*رسه`,
			}},
			{Intent: domain.IntentPurchase, Patterns: []string{
				`می\s*خوام\s+بخرم`, `خرید`, `سفارش`, `بخرم`,
			}},
			{Intent: domain.IntentGreeting, Patterns: []string{
				`سلام`, `درود`, `صبح بخیر`, `عصر بخیر`, `ممنون`, `تشکر`,
			}},
		},
		Slots: SlotRules{
			Quantity: `(\d+)\s*(?:عدد|تا)`,
			Price:    `(\d[\d,]*(?:\.\d+)?)\s*(تومان|میلیون|هزار)`,
			PriceUnits: map[string]int64{
				"تومان":  1,
				"هزار":   1_000,
				"میلیون": 1_000_000,
			},
			Color: `(سفید|سیاه|مشکی|قرمز|آبی|سبز|طلایی|نقره\s*ای|صورتی)`,
			Brand: `(سامسونگ|اپل|شیائومی|ال\s*جی|ایسوس|نوکیا|هواوی|\b(?:samsung|apple|xiaomi|lg|asus|nokia|huawei)\b)`,
			BrandAliases: map[string]string{
				"samsung": "سامسونگ",
				"apple":   "اپل",
				"xiaomi":  "شیائومی",
				"lg":      "ال جی",
				"asus":    "ایسوس",
				"nokia":   "نوکیا",
				"huawei":  "هواوی",
			},
			Connectors: []string{"و", "یا"},
		},
	}
}

// LoadRules reads a YAML rule table. An empty path yields DefaultRules.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, domain.WrapError(domain.ErrInvalidInput, "parse rules", err)
	}
	if len(rules.Intents) == 0 {
		return Rules{}, domain.WrapError(domain.ErrInvalidInput, "parse rules", fmt.Errorf("no intent rules"))
	}
	if _, err := compileRules(rules); err != nil {
		return Rules{}, err
	}
	return rules, nil
}
