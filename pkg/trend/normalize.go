package trend

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a trend title into the identity string used for
// deduplication: invisible code points removed, Unicode compatibility
// normalization applied, lowercased, whitespace collapsed. Deterministic, so
// the same topic always maps to the same dedupe key.
func Normalize(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		if isInvisible(r) {
			return -1
		}
		return r
	}, title)

	cleaned = norm.NFKC.String(cleaned)
	cleaned = strings.ToLower(cleaned)

	return strings.Join(strings.Fields(cleaned), " ")
}

// isInvisible reports zero-width and formatting code points that sources
// sometimes embed inside otherwise identical titles.
func isInvisible(r rune) bool {
	switch {
	case r >= 0x200B && r <= 0x200F:
		return true
	case r >= 0x2028 && r <= 0x202F:
		return true
	case r == 0xFEFF || r == 0x00AD:
		return true
	}
	return false
}
