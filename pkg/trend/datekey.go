package trend

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// regionZones maps monitored market codes to the IANA zone whose calendar
// defines "today" for that market.
var regionZones = map[string]string{
	"US": "America/New_York",
	"GB": "Europe/London",
	"ID": "Asia/Jakarta",
	"JP": "Asia/Tokyo",
	"IN": "Asia/Kolkata",
	"BR": "America/Sao_Paulo",
	"DE": "Europe/Berlin",
	"FR": "Europe/Paris",
	"CA": "America/Toronto",
	"AU": "Australia/Sydney",
	"MX": "America/Mexico_City",
	"KR": "Asia/Seoul",
}

var (
	daysAgoRe  = regexp.MustCompile(`(\d+)\s*days?\s*ago`)
	hoursAgoRe = regexp.MustCompile(`(\d+)\s*hours?\s*ago`)
)

// DateKeyResolver buckets a trend into the regional calendar day it belongs
// to, based on the free-text "started" description shown by the source.
type DateKeyResolver struct {
	defaultZone string
}

// NewDateKeyResolver creates a resolver that falls back to defaultZone for
// regions missing from the zone table.
func NewDateKeyResolver(defaultZone string) *DateKeyResolver {
	if defaultZone == "" {
		defaultZone = "UTC"
	}
	return &DateKeyResolver{defaultZone: defaultZone}
}

// ResolveDateKey returns the YYYY-MM-DD date the trend belongs to in the
// region's local calendar. Empty or unparseable text resolves to today.
func (d *DateKeyResolver) ResolveDateKey(startedText, region string) string {
	return d.resolveAt(startedText, region, time.Now())
}

func (d *DateKeyResolver) resolveAt(startedText, region string, now time.Time) string {
	local := now.In(d.location(region))

	text := strings.ToLower(startedText)
	days := firstSubmatchInt(daysAgoRe, text)
	hours := firstSubmatchInt(hoursAgoRe, text)

	// Minutes-ago and any hours value under 24 still count as today, even
	// just past local midnight.
	switch {
	case days > 0:
		local = local.AddDate(0, 0, -days)
	case hours >= 24:
		local = local.Add(-time.Duration(hours) * time.Hour)
	}

	return local.Format("2006-01-02")
}

func (d *DateKeyResolver) location(region string) *time.Location {
	if name, ok := regionZones[region]; ok {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(d.defaultZone); err == nil {
		return loc
	}
	return time.UTC
}

func firstSubmatchInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
