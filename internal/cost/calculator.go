// Package cost prices model token usage and keeps a per-company running total.
package cost

// Rates holds per-model pricing configuration.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Known reports whether the model has a configured rate.
func (c *Calculator) Known(model string) bool {
	_, ok := c.rates.Models[model]
	return ok
}

// Tokens computes the cost of one model call. Unknown models cost 0.
func (c *Calculator) Tokens(model string, input, output int64) float64 {
	rate, ok := c.rates.Models[model]
	if !ok {
		return 0
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	return inCost + outCost
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 5.00, Output: 25.00},
		},
	}
}

// Merge returns the default rates overlaid with the given overrides.
func Merge(base, overrides Rates) Rates {
	out := Rates{Models: make(map[string]ModelRate, len(base.Models)+len(overrides.Models))}
	for k, v := range base.Models {
		out.Models[k] = v
	}
	for k, v := range overrides.Models {
		out.Models[k] = v
	}
	return out
}
