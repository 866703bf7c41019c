package scanner

import (
	"regexp"
	"strings"
)

// Late-market candidates are short-horizon directional markets on a
// spot asset, e.g. "Bitcoin Up or Down - August 24, 3:05PM ET". The
// classifier is intentionally generous; false positives are filtered
// downstream by the entry window and the price gates.

//nolint:gochecknoglobals // compiled once
var assetPatterns = []struct {
	re     *regexp.Regexp
	symbol string
}{
	{regexp.MustCompile(`\b(bitcoin|btc)\b`), "btcusdt"},
	{regexp.MustCompile(`\b(ethereum|eth)\b`), "ethusdt"},
	{regexp.MustCompile(`\b(solana|sol)\b`), "solusdt"},
	{regexp.MustCompile(`\b(ripple|xrp)\b`), "xrpusdt"},
}

//nolint:gochecknoglobals // compiled once
var directionPhrases = []string{"up or down", "up/down"}

// SymbolFor maps a market question to the spot-feed symbol it tracks.
// Returns "" when the question is not a late-market candidate.
func SymbolFor(question string) string {
	q := strings.ToLower(question)

	hasDirection := false
	for _, phrase := range directionPhrases {
		if strings.Contains(q, phrase) {
			hasDirection = true
			break
		}
	}
	if !hasDirection {
		return ""
	}

	for _, asset := range assetPatterns {
		if asset.re.MatchString(q) {
			return asset.symbol
		}
	}
	return ""
}

// IsLateCandidate reports whether a question matches the late-market
// classifier.
func IsLateCandidate(question string) bool {
	return SymbolFor(question) != ""
}
