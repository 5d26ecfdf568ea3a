// Package cost prices the model and search usage a lead generator reports
// alongside a batch.
package cost

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Rates holds generator pricing.
type Rates struct {
	Models    map[string]ModelRate `yaml:"models" mapstructure:"models"`
	WebSearch float64              `yaml:"web_search" mapstructure:"web_search"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Usage is one line of generator usage as reported in a batch payload.
type Usage struct {
	Model            string `json:"model"`
	Batch            bool   `json:"batch,omitempty"`
	InputTokens      int    `json:"input_tokens"`
	OutputTokens     int    `json:"output_tokens"`
	CacheWriteTokens int    `json:"cache_write_tokens,omitempty"`
	CacheReadTokens  int    `json:"cache_read_tokens,omitempty"`
	WebSearches      int    `json:"web_searches,omitempty"`
}

// Validate rejects negative counts.
func (u Usage) Validate() error {
	if u.InputTokens < 0 || u.OutputTokens < 0 || u.CacheWriteTokens < 0 ||
		u.CacheReadTokens < 0 || u.WebSearches < 0 {
		return eris.Wrapf(model.ErrSchemaValidation, "usage %q: counts must be non-negative", u.Model)
	}
	return nil
}

// Calculator computes costs for generator usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Tokens computes the token cost of one model call. Unknown models cost 0.
func (c *Calculator) Tokens(modelName string, isBatch bool, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Models[modelName]
	if !ok {
		return 0
	}

	batchMul := 1.0
	if isBatch && rate.BatchDiscount > 0 {
		batchMul = rate.BatchDiscount
	}

	inCost := (float64(input) / 1e6) * rate.Input * batchMul
	outCost := (float64(output) / 1e6) * rate.Output * batchMul
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul * batchMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul * batchMul

	return inCost + outCost + cwCost + crCost
}

// Cost prices one usage line.
func (c *Calculator) Cost(u Usage) float64 {
	return c.Tokens(u.Model, u.Batch, u.InputTokens, u.OutputTokens, u.CacheWriteTokens, u.CacheReadTokens) +
		float64(u.WebSearches)*c.rates.WebSearch
}

// Total prices every usage line.
func (c *Calculator) Total(usage []Usage) float64 {
	var total float64
	for _, u := range usage {
		total += c.Cost(u)
	}
	return total
}

// Known reports whether modelName has a rate.
func (c *Calculator) Known(modelName string) bool {
	_, ok := c.rates.Models[modelName]
	return ok
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-haiku-4-5": {
				Input: 1.00, Output: 5.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"gpt-4o-mini": {
				Input: 0.15, Output: 0.60,
				BatchDiscount: 0.5, CacheReadMul: 0.5,
			},
			"gpt-4o": {
				Input: 2.50, Output: 10.00,
				BatchDiscount: 0.5, CacheReadMul: 0.5,
			},
		},
		WebSearch: 0.01,
	}
}
