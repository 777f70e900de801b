// Package scoring turns candidate and enrichment signals into a 0-100
// composite score, a letter grade and a recommendation.
package scoring

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights assigns points to each scoring component. Weights sum to 100.
type Weights struct {
	Rating  float64 `yaml:"rating"`
	Reviews float64 `yaml:"reviews"`
	Website float64 `yaml:"website"`
	Phone   float64 `yaml:"phone"`
	Email   float64 `yaml:"email"`

	// ReviewSaturation is the review count at which the reviews component
	// earns full points.
	ReviewSaturation int `yaml:"review_saturation"`
}

// DefaultWeights returns the stock component weights.
func DefaultWeights() Weights {
	return Weights{
		Rating:           30,
		Reviews:          25,
		Website:          20,
		Phone:            10,
		Email:            15,
		ReviewSaturation: 200,
	}
}

// Sum returns the total of all component weights.
func (w Weights) Sum() float64 {
	return w.Rating + w.Reviews + w.Website + w.Phone + w.Email
}

// ValidateWeights checks that the weights are usable.
func ValidateWeights(w Weights) error {
	var errs []string

	components := []struct {
		name  string
		value float64
	}{
		{"rating", w.Rating},
		{"reviews", w.Reviews},
		{"website", w.Website},
		{"phone", w.Phone},
		{"email", w.Email},
	}
	for _, c := range components {
		if c.value < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", c.name))
		}
	}

	if sum := w.Sum(); math.Abs(sum-100) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights must sum to 100, got %.2f", sum))
	}

	if w.ReviewSaturation <= 0 {
		errs = append(errs, "review_saturation must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: invalid weights: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadWeights reads weights from a YAML file. Components missing from the
// file keep their default values.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: read weights %s", path)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: parse weights %s", path)
	}
	if err := ValidateWeights(w); err != nil {
		return Weights{}, err
	}
	return w, nil
}
