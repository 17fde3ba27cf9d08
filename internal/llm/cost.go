package llm

import (
	"math"
	"strings"
)

// Rate is USD per 1000 tokens.
type Rate struct {
	Input  float64
	Output float64
}

// DefaultRate prices models missing from the table.
var DefaultRate = Rate{Input: 0.003, Output: 0.015}

// Most specific prefix first.
var rates = []struct {
	prefix string
	rate   Rate
}{
	{"claude-3-5-haiku", Rate{Input: 0.0008, Output: 0.004}},
	{"claude-3-haiku", Rate{Input: 0.00025, Output: 0.00125}},
	{"claude-haiku-4", Rate{Input: 0.001, Output: 0.005}},
	{"claude-3-5-sonnet", Rate{Input: 0.003, Output: 0.015}},
	{"claude-3-7-sonnet", Rate{Input: 0.003, Output: 0.015}},
	{"claude-sonnet-4", Rate{Input: 0.003, Output: 0.015}},
	{"claude-3-opus", Rate{Input: 0.015, Output: 0.075}},
	{"claude-opus-4", Rate{Input: 0.015, Output: 0.075}},
}

// RateFor returns the per-1000-token rate for model.
func RateFor(model string) Rate {
	for _, r := range rates {
		if strings.HasPrefix(model, r.prefix) {
			return r.rate
		}
	}
	return DefaultRate
}

// EstimateCost approximates the USD cost of a call, rounded to 6 decimals.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	r := RateFor(model)
	cost := float64(inputTokens)/1000*r.Input + float64(outputTokens)/1000*r.Output
	return math.Round(cost*1e6) / 1e6
}
