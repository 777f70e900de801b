package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadgen/internal/config"
)

func testRates() Rates {
	return Rates{SearchPerCall: 0.032, EnrichPerCall: 0.01}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.032, calc.Search(1), 1e-9)
	assert.InDelta(t, 0.064, calc.Search(2), 1e-9)
	assert.Equal(t, 0.0, calc.Search(0))
	assert.Equal(t, 0.0, calc.Search(-3))
}

func TestEnrich(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.2, calc.Enrich(20), 1e-9)
	assert.Equal(t, 0.0, calc.Enrich(0))
}

func TestEstimate(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name  string
		usage Usage
		want  float64
	}{
		{name: "nothing", usage: Usage{}, want: 0},
		{name: "search only", usage: Usage{SearchCalls: 1}, want: 0.032},
		{name: "full run", usage: Usage{SearchCalls: 1, EnrichCalls: 12}, want: 0.152},
		{name: "rounded", usage: Usage{EnrichCalls: 3}, want: 0.03},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.Estimate(tt.usage), 1e-9)
		})
	}
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	r := FromConfig(config.PricingConfig{SearchPerCall: 0.05, EnrichPerCall: 0.002})
	assert.Equal(t, Rates{SearchPerCall: 0.05, EnrichPerCall: 0.002}, r)
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	r := DefaultRates()
	assert.Greater(t, r.SearchPerCall, 0.0)
	assert.Greater(t, r.EnrichPerCall, 0.0)
}
