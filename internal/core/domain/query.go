package domain

type Intent string

const (
	IntentPriceCheck     Intent = "price_check"
	IntentAvailability   Intent = "availability"
	IntentFeatureInquiry Intent = "feature_inquiry"
	IntentComparison     Intent = "comparison"
	IntentShipping       Intent = "shipping"
	IntentPurchase       Intent = "purchase"
	IntentGreeting       Intent = "greeting"
	IntentGeneral        Intent = "general"
)

// Intents lists the rule-matchable intents in tie-break order.
// GENERAL is absent because it is never inferred by matching.
var Intents = []Intent{
	IntentPriceCheck,
	IntentAvailability,
	IntentFeatureInquiry,
	IntentComparison,
	IntentShipping,
	IntentPurchase,
	IntentGreeting,
}

func (i Intent) Valid() bool {
	if i == IntentGeneral {
		return true
	}
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

type Query struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Slots holds extracted entities. A nil or empty field means "not mentioned".
type Slots struct {
	Quantity        *int        `json:"quantity,omitempty"`
	PriceRange      *PriceRange `json:"price_range,omitempty"`
	Color           string      `json:"color,omitempty"`
	Brand           string      `json:"brand,omitempty"`
	ComparisonItems []string    `json:"comparison_items,omitempty"`
}

func (s Slots) FilledCount() int {
	n := 0
	if s.Quantity != nil {
		n++
	}
	if s.PriceRange != nil {
		n++
	}
	if s.Color != "" {
		n++
	}
	if s.Brand != "" {
		n++
	}
	if len(s.ComparisonItems) > 0 {
		n++
	}
	return n
}

type ParsedQuery struct {
	Original   string  `json:"original"`
	Normalized string  `json:"normalized"`
	Intent     Intent  `json:"intent"`
	Slots      Slots   `json:"slots"`
	Confidence float64 `json:"confidence"`
}
