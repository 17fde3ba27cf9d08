package translation

import (
	"math"
	"strings"
	"unicode/utf8"
)

// QualityScore is a crude heuristic in [0, 1]: the mean of the
// translated/original length ratio (capped at 1), a non-empty indicator
// and an indicator that the output does not mention "error". The model
// client already fails blank replies, so the non-empty factor only drops
// for text that reaches here by other paths.
func QualityScore(original, translated string) float64 {
	var ratio float64
	if n := utf8.RuneCountInString(original); n > 0 {
		ratio = math.Min(float64(utf8.RuneCountInString(translated))/float64(n), 1)
	}

	var nonEmpty float64
	if strings.TrimSpace(translated) != "" {
		nonEmpty = 1
	}

	var noError float64
	if !strings.Contains(strings.ToLower(translated), "error") {
		noError = 1
	}

	return math.Round((ratio+nonEmpty+noError)/3*100) / 100
}
