package cost

import "github.com/sells-group/leadgen/internal/config"

// Rates holds per-provider pricing configuration (USD per call).
type Rates struct {
	SearchPerCall float64 `yaml:"search_per_call" mapstructure:"search_per_call"`
	EnrichPerCall float64 `yaml:"enrich_per_call" mapstructure:"enrich_per_call"`
}

// Usage counts billable provider calls for one run.
type Usage struct {
	SearchCalls int `json:"search_calls"`
	EnrichCalls int `json:"enrich_calls"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// FromConfig builds rates from the pricing config section.
func FromConfig(cfg config.PricingConfig) Rates {
	return Rates{SearchPerCall: cfg.SearchPerCall, EnrichPerCall: cfg.EnrichPerCall}
}

// Search computes the cost of n Places Text Search calls.
func (c *Calculator) Search(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) * c.rates.SearchPerCall
}

// Enrich computes the cost of n enrichment calls.
func (c *Calculator) Enrich(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) * c.rates.EnrichPerCall
}

// Estimate sums search and enrichment spend, rounded to 4 decimals.
func (c *Calculator) Estimate(u Usage) float64 {
	total := c.Search(u.SearchCalls) + c.Enrich(u.EnrichCalls)
	return float64(int64(total*1e4+0.5)) / 1e4
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		SearchPerCall: 0.032,
		EnrichPerCall: 0.01,
	}
}
