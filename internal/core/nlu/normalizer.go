package nlu

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	zeroWidthNonJoiner = '\u200c'
	tatweel            = '\u0640'
)

// Normalize folds Persian text into the canonical form the rule table is
// written against. It is pure and idempotent.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	folded := strings.Map(foldRune, norm.NFKC.String(text))
	return strings.Join(strings.Fields(folded), " ")
}

func foldRune(r rune) rune {
	switch {
	case r == 'ي' || r == 'ى':
		return 'ی'
	case r == 'ك':
		return 'ک'
	case r == 'ة':
		return 'ه'
	case r == tatweel:
		return -1
	case r >= '\u064b' && r <= '\u065f', r == '\u0670':
		return -1
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r == zeroWidthNonJoiner:
		return ' '
	case r == '\u200e' || r == '\u200f' || r == '\ufeff':
		return -1
	default:
		return r
	}
}
