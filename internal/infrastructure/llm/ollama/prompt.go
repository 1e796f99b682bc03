package ollama

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

const (
	sellerIntro = "شما یک فروشنده حرفه‌ای هستید."
	noProducts  = "هیچ محصول مرتبطی پیدا نشد."
)

type promptTemplate struct {
	situation    string
	instructions []string
	withContext  bool
	queryLabel   string
}

var intentTemplates = map[domain.Intent]promptTemplate{
	domain.IntentPriceCheck: {
		situation: "کاربر در مورد قیمت محصول سوال کرده است.",
		instructions: []string{
			"لطفاً یک پاسخ مفید و دقیق به فارسی بدهید که شامل قیمت محصولات باشد. اگر چند محصول مرتبط وجود دارد، همه را ذکر کنید.",
			"پاسخ خود را کوتاه، واضح و دوستانه بنویسید.",
		},
		withContext: true,
	},
	domain.IntentAvailability: {
		situation: "کاربر در مورد موجودی محصول سوال کرده است.",
		instructions: []string{
			"لطفاً یک پاسخ مفید به فارسی بدهید که وضعیت موجودی را مشخص کند.",
			"اگر محصول موجود است، این را به کاربر اطلاع دهید. اگر موجود نیست، پیشنهادهای جایگزین ارائه کنید.",
			"پاسخ خود را کوتاه و واضح بنویسید.",
		},
		withContext: true,
	},
	domain.IntentFeatureInquiry: {
		situation: "کاربر در مورد مشخصات و ویژگی‌های محصول سوال کرده است.",
		instructions: []string{
			"لطفاً یک پاسخ جامع به فارسی بدهید که ویژگی‌های مهم محصول را توضیح دهد.",
			"بر روی ویژگی‌هایی که کاربر سوال کرده تمرکز کنید.",
			"پاسخ خود را واضح و مفید بنویسید.",
		},
		withContext: true,
	},
	domain.IntentComparison: {
		situation: "کاربر می‌خواهد چند محصول را با هم مقایسه کند.",
		instructions: []string{
			"لطفاً یک مقایسه دقیق و بی‌طرفانه به فارسی ارائه دهید.",
			"تفاوت‌های کلیدی را مشخص کنید و به کاربر کمک کنید تا بهترین انتخاب را داشته باشد.",
			"پاسخ خود را ساختاریافته و قابل فهم بنویسید.",
		},
		withContext: true,
	},
	domain.IntentShipping: {
		situation: "کاربر در مورد ارسال و تحویل سوال کرده است.",
		instructions: []string{
			"لطفاً اطلاعات دقیق در مورد زمان و نحوه ارسال را به فارسی ارائه دهید.",
			"اگر اطلاعات ارسال در داده‌ها موجود نیست، شرایط عمومی ارسال را توضیح دهید (معمولاً ۳ تا ۵ روز کاری).",
			"پاسخ خود را واضح بنویسید.",
		},
		withContext: true,
	},
	domain.IntentPurchase: {
		situation: "کاربر می‌خواهد محصول را خریداری کند.",
		instructions: []string{
			"لطفاً یک پاسخ مفید به فارسی بدهید که اطلاعات محصول، قیمت و نحوه خرید را شامل شود.",
			"کاربر را برای تکمیل خرید راهنمایی کنید.",
			"پاسخ خود را دوستانه و تشویق‌کننده بنویسید.",
		},
		withContext: true,
	},
	domain.IntentGreeting: {
		situation: "کاربر با شما احوالپرسی کرده است.",
		instructions: []string{
			"لطفاً یک پاسخ گرم و دوستانه به فارسی بدهید.",
			"خود را معرفی کنید و بپرسید چگونه می‌توانید کمک کنید.",
			"پاسخ خود را کوتاه و صمیمی بنویسید.",
		},
		queryLabel: "پیام کاربر",
	},
	domain.IntentGeneral: {
		situation: "کاربر یک سوال عمومی پرسیده است.",
		instructions: []string{
			"لطفاً بهترین پاسخ ممکن را به فارسی بدهید.",
			"اگر محصولات مرتبطی پیدا شد، آن‌ها را معرفی کنید.",
			"اگر نیاز به اطلاعات بیشتر دارید، از کاربر بپرسید.",
			"پاسخ خود را مفید و دوستانه بنویسید.",
		},
		withContext: true,
	},
}

func buildAnswerPrompt(query string, intent domain.Intent, docs []domain.RetrievedDocument) string {
	tmpl, ok := intentTemplates[intent]
	if !ok {
		tmpl = intentTemplates[domain.IntentGeneral]
	}
	label := tmpl.queryLabel
	if label == "" {
		label = "سوال کاربر"
	}

	var b strings.Builder
	b.WriteString(sellerIntro)
	b.WriteString(" ")
	b.WriteString(tmpl.situation)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %s\n\n", label, query)
	if tmpl.withContext {
		b.WriteString("محصولات مرتبط:\n")
		b.WriteString(formatContext(docs))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Join(tmpl.instructions, "\n"))
	return b.String()
}

func formatContext(docs []domain.RetrievedDocument) string {
	if len(docs) == 0 {
		return noProducts
	}

	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		p := doc.Product
		fields := []string{fmt.Sprintf("%d. %s", i+1, p.Name)}
		if p.Price > 0 {
			currency := p.Currency
			if currency == "" {
				currency = "تومان"
			}
			fields = append(fields, fmt.Sprintf("قیمت: %s %s", formatPrice(p.Price), currency))
		}
		if p.Brand != "" {
			fields = append(fields, "برند: "+p.Brand)
		}
		if p.Availability {
			fields = append(fields, "موجود")
		} else {
			fields = append(fields, "ناموجود")
		}

		entry := strings.Join(fields, " - ")
		if desc := strings.TrimSpace(p.Description); desc != "" {
			entry += "\n   توضیحات: " + desc
		}
		if len(p.Features) > 0 {
			entry += "\n   ویژگی‌ها: " + formatFeatures(p.Features)
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, "\n\n")
}

func formatFeatures(features map[string]string) string {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+": "+features[k])
	}
	return strings.Join(pairs, ", ")
}

// formatPrice renders a whole price with thousands separators, e.g. 15000000 -> 15,000,000.
func formatPrice(price float64) string {
	digits := strconv.FormatInt(int64(math.Round(price)), 10)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
