package ollama

import (
	"strings"
	"testing"

	"github.com/megachat/sales-assistant/internal/core/domain"
)

func TestFormatContextEmpty(t *testing.T) {
	if got := formatContext(nil); got != noProducts {
		t.Fatalf("expected %q, got %q", noProducts, got)
	}
}

func TestFormatContextListsProductDetails(t *testing.T) {
	docs := []domain.RetrievedDocument{
		{Product: domain.Product{
			Name:         "لپ تاپ ایسوس",
			Price:        42500000,
			Brand:        "ایسوس",
			Availability: false,
			Description:  "مناسب برنامه نویسی",
			Features:     map[string]string{"رم": "16GB", "cpu": "i7"},
		}},
		{Product: domain.Product{Name: "ماوس", Availability: true}},
	}

	got := formatContext(docs)
	want := "1. لپ تاپ ایسوس - قیمت: 42,500,000 تومان - برند: ایسوس - ناموجود\n" +
		"   توضیحات: مناسب برنامه نویسی\n" +
		"   ویژگی‌ها: cpu: i7, رم: 16GB\n\n" +
		"2. ماوس - موجود"
	if got != want {
		t.Fatalf("unexpected context:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildAnswerPromptGreetingHasNoContext(t *testing.T) {
	prompt := buildAnswerPrompt("سلام", domain.IntentGreeting, []domain.RetrievedDocument{{Product: domain.Product{Name: "گوشی"}}})
	if strings.Contains(prompt, "محصولات مرتبط") || strings.Contains(prompt, "گوشی") {
		t.Fatalf("greeting prompt must not include products:\n%s", prompt)
	}
	if !strings.Contains(prompt, "پیام کاربر: سلام") {
		t.Fatalf("unexpected greeting prompt:\n%s", prompt)
	}
}

func TestBuildAnswerPromptUnknownIntentFallsBackToGeneral(t *testing.T) {
	prompt := buildAnswerPrompt("سوال", domain.Intent("unknown"), nil)
	if !strings.Contains(prompt, intentTemplates[domain.IntentGeneral].situation) {
		t.Fatalf("expected general template:\n%s", prompt)
	}
	if !strings.Contains(prompt, noProducts) {
		t.Fatalf("expected empty context marker:\n%s", prompt)
	}
}

func TestEveryIntentHasTemplate(t *testing.T) {
	for _, intent := range domain.Intents {
		if _, ok := intentTemplates[intent]; !ok {
			t.Fatalf("missing template for %s", intent)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[float64]string{0: "0", 999: "999", 1000: "1,000", 15000000: "15,000,000", 1234.6: "1,235"}
	for in, want := range cases {
		if got := formatPrice(in); got != want {
			t.Fatalf("formatPrice(%v) = %q, want %q", in, got, want)
		}
	}
}
