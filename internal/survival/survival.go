// Package survival computes treatment success and mortality statistics from
// survived/total fish counts.
package survival

import (
	"fmt"
	"math"

	"shoalcore/pkg/domain"
)

// Effectiveness tiers for a success rate percentage.
const (
	EffectivenessExcellent = "excellent"
	EffectivenessGood      = "good"
	EffectivenessFair      = "fair"
	EffectivenessPoor      = "poor"
)

// DefaultSuccessThreshold is the minimum rate IsSuccessful accepts when the
// caller passes no explicit threshold.
const DefaultSuccessThreshold = 80.0

// Outcome is one shipment's survival result, used for weighted aggregation.
type Outcome struct {
	Survived int
	Total    int
}

// Category is the full interpretation of a success rate.
type Category struct {
	Tier           string
	Description    string
	Recommendation string
	ShouldRepeat   bool
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rate returns the survival percentage (0-100) rounded to two decimals.
func Rate(survived, total int) (float64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("total must be positive, got %d: %w", total, domain.ErrInvalidArgument)
	}
	if survived < 0 {
		return 0, fmt.Errorf("survived count cannot be negative, got %d: %w", survived, domain.ErrInvalidArgument)
	}
	if survived > total {
		return 0, fmt.Errorf("survived count %d exceeds total %d: %w", survived, total, domain.ErrInvalidArgument)
	}
	return round2(float64(survived) / float64(total) * 100), nil
}

// MortalityRate returns the death percentage, the complement of Rate.
func MortalityRate(survived, total int) (float64, error) {
	r, err := Rate(survived, total)
	if err != nil {
		return 0, err
	}
	return round2(100 - r), nil
}

// Effectiveness classifies a success rate percentage.
func Effectiveness(rate float64) string {
	switch {
	case rate >= 90:
		return EffectivenessExcellent
	case rate >= 80:
		return EffectivenessGood
	case rate >= 70:
		return EffectivenessFair
	default:
		return EffectivenessPoor
	}
}

// AverageRate returns the plain mean of the rates rounded to two decimals.
// An empty slice yields 0.
func AverageRate(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	return round2(sum / float64(len(rates)))
}

// WeightedRate aggregates outcomes by pooling counts before dividing, so
// larger shipments weigh more than small ones. Empty input or all-zero
// totals yield 0.
func WeightedRate(outcomes []Outcome) (float64, error) {
	if len(outcomes) == 0 {
		return 0, nil
	}
	var survived, total int
	for _, o := range outcomes {
		survived += o.Survived
		total += o.Total
	}
	if total == 0 {
		return 0, nil
	}
	return Rate(survived, total)
}

// IsSuccessful reports whether rate meets the threshold.
func IsSuccessful(rate, threshold float64) bool {
	return rate >= threshold
}

// LossCount returns the number of fish lost.
func LossCount(survived, total int) int {
	return total - survived
}

// Categorize returns the tiered interpretation of a success rate.
func Categorize(rate float64) Category {
	switch {
	case rate >= 90:
		return Category{
			Tier:           EffectivenessExcellent,
			Description:    "Outstanding survival rate",
			Recommendation: "Protocol highly effective, recommend for future use",
			ShouldRepeat:   true,
		}
	case rate >= 80:
		return Category{
			Tier:           EffectivenessGood,
			Description:    "Good survival rate",
			Recommendation: "Protocol effective, suitable for reuse",
			ShouldRepeat:   true,
		}
	case rate >= 70:
		return Category{
			Tier:           EffectivenessFair,
			Description:    "Acceptable survival rate",
			Recommendation: "Protocol moderately effective, consider improvements",
			ShouldRepeat:   true,
		}
	default:
		return Category{
			Tier:           EffectivenessPoor,
			Description:    "Below acceptable survival rate",
			Recommendation: "Protocol needs significant modification",
			ShouldRepeat:   false,
		}
	}
}
