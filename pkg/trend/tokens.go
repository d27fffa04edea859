package trend

import (
	"regexp"
	"strings"
)

// tokenKind classifies the free-floating strings inside a trend row. The
// source does not keep fields at stable positions, so they are recognized
// by shape instead of index.
type tokenKind int

const (
	tokenUnknown tokenKind = iota
	tokenVolume
	tokenGrowth
	tokenStarted
	tokenDuration
	tokenStatus
)

var (
	volumeRe      = regexp.MustCompile(`^\d+[KMB]?\+?$`)
	volumeCommaRe = regexp.MustCompile(`^[\d,]+\+?$`)
	growthRe      = regexp.MustCompile(`^[+↑]\s?\d+%$`)
)

// tokenClassifiers is evaluated in order and the first match wins. New
// upstream format variants should become new entries here, not new parsing
// branches.
var tokenClassifiers = []struct {
	kind  tokenKind
	match func(string) bool
}{
	{tokenVolume, isVolumeToken},
	{tokenGrowth, isGrowthToken},
	{tokenStarted, isStartedToken},
	{tokenDuration, isDurationToken},
	{tokenStatus, isStatusToken},
}

func classifyToken(s string) tokenKind {
	for _, c := range tokenClassifiers {
		if c.match(s) {
			return c.kind
		}
	}
	return tokenUnknown
}

// isVolumeToken matches magnitude strings like "500+", "2K+", "1,200+".
func isVolumeToken(s string) bool {
	return volumeRe.MatchString(s) || volumeCommaRe.MatchString(s)
}

// isGrowthToken matches growth strings like "+200%", "↑ 200%", "1,000%".
func isGrowthToken(s string) bool {
	return growthRe.MatchString(s) || strings.HasSuffix(s, "%")
}

func isStartedToken(s string) bool {
	return strings.Contains(strings.ToLower(s), "ago")
}

func isDurationToken(s string) bool {
	return strings.Contains(strings.ToLower(s), "lasted")
}

func isStatusToken(s string) bool {
	lower := strings.ToLower(s)
	return lower == "active" || lower == "ended"
}
