package nlu

import "testing"

func TestNormalizeFoldsArabicLettersAndDigits(t *testing.T) {
	got := Normalize("قيمت  گوشي   ۲ ميليون")
	if got != "قیمت گوشی 2 میلیون" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalizeRemovesDiacriticsAndTatweel(t *testing.T) {
	got := Normalize("قیمَت كـالا")
	if got != "قیمت کالا" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalizeSplitsOnZeroWidthNonJoiner(t *testing.T) {
	got := Normalize("نقره‌ای می‌خوام")
	if got != "نقره ای می خوام" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	in := " سلام   ٣ تا  گوشي "
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Fatalf("normalize not idempotent: %q vs %q", once, twice)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := Normalize("   \t "); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
