package llm

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Usage accumulates token counters across the lifetime of one client.
// Counters are process-lifetime, not transactional: a rolled-back
// iteration does not refund tokens already counted.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add merges another usage delta into the counters.
func (u *Usage) Add(in, out int64) {
	u.InputTokens += in
	u.OutputTokens += out
}

// Sub returns the delta between this snapshot and an earlier one.
func (u Usage) Sub(earlier Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens - earlier.InputTokens,
		OutputTokens: u.OutputTokens - earlier.OutputTokens,
	}
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// CostUSD prices the counters with two per-1000-token rates.
func (u Usage) CostUSD(pricePer1KInput, pricePer1KOutput float64) float64 {
	return float64(u.InputTokens)/1000.0*pricePer1KInput +
		float64(u.OutputTokens)/1000.0*pricePer1KOutput
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// estimateTokens approximates the token count of text with the cl100k_base
// encoding. Used only when the provider omits usage counts so accounting
// stays populated; estimates are flagged in logs by the caller.
func estimateTokens(text string) int64 {
	codecOnce.Do(func() {
		codec, _ = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if codec == nil {
		// Rough fallback when the encoding is unavailable.
		return int64(len(text) / 4)
	}
	n, err := codec.Count(text)
	if err != nil {
		return int64(len(text) / 4)
	}
	return int64(n)
}
