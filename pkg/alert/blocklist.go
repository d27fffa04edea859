package alert

import "strings"

// defaultBlockedKeywords drops the recurring off-topic noise that floods the
// trending feed: lottery and gambling traffic, daily word games, horoscopes,
// weather, stock tickers.
var defaultBlockedKeywords = []string{
	// Lottery
	"powerball", "lottery", "togel", "mega millions", "lotto", "jackpot",
	"numbers today", "winning numbers", "lottery results",
	// Gambling
	"fanduel", "draftkings", "bet365", "betway", "sportsbook", "betting odds",
	"casino", "slots", "poker online",
	// Word games and trivia
	"wordle", "connections hint", "connections nyt", "quordle", "strands hint",
	"crossword", "nyt crossword", "spelling bee", "sudoku",
	// Other recurring noise
	"horoscope", "zodiac", "weather today", "stock price",
}

// Blocklist suppresses trends whose titles mention unwanted topics.
type Blocklist struct {
	keywords []string
}

// NewBlocklist combines the built-in keywords with configured extras. Extras
// are lowercased and blank entries dropped.
func NewBlocklist(extra []string) *Blocklist {
	keywords := make([]string, 0, len(defaultBlockedKeywords)+len(extra))
	keywords = append(keywords, defaultBlockedKeywords...)
	for _, k := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Blocklist{keywords: keywords}
}

// Match returns the first keyword contained in the title, case-insensitively.
func (b *Blocklist) Match(title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, keyword := range b.keywords {
		if strings.Contains(lower, keyword) {
			return keyword, true
		}
	}
	return "", false
}
