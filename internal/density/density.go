// Package density computes fish-per-liter ratios and classifies the crowding
// risk they represent. All functions are pure; invalid numeric input fails
// with domain.ErrInvalidArgument, never a clamped result.
package density

import (
	"fmt"
	"math"

	"shoalcore/pkg/domain"
)

// Risk classifies a density value into a crowding tier.
type Risk string

// Risk tiers. Boundaries are inclusive-lower: exactly 0.10 is medium and
// exactly 0.20 is high.
const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

const (
	mediumThreshold = 0.10
	highThreshold   = 0.20

	// OvercrowdThreshold is the default strict cutoff for IsOvercrowded.
	OvercrowdThreshold = 0.20
)

// round2 rounds half away from zero to two decimals. The same mode is used by
// every calculator in the module so cross-function aggregates stay consistent.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Calculate returns the fish-per-liter density rounded to two decimals.
func Calculate(quantity, volume int) (float64, error) {
	if volume <= 0 {
		return 0, fmt.Errorf("volume must be positive, got %d: %w", volume, domain.ErrInvalidArgument)
	}
	if quantity < 0 {
		return 0, fmt.Errorf("quantity cannot be negative, got %d: %w", quantity, domain.ErrInvalidArgument)
	}
	return round2(float64(quantity) / float64(volume)), nil
}

// ForShipment derives the density of a shipment. Shipments with non-positive
// volume report false; stored shipments always have positive volume, so the
// flag only matters for records built outside the store.
func ForShipment(s domain.Shipment) (float64, bool) {
	d, err := Calculate(s.Quantity, s.VolumeLiters)
	if err != nil {
		return 0, false
	}
	return d, true
}

// AssessRisk maps a density value to its risk tier.
func AssessRisk(d float64) Risk {
	switch {
	case d < mediumThreshold:
		return RiskLow
	case d < highThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RecommendIntensity returns the fixed advisory string for the risk tier of
// the supplied density.
func RecommendIntensity(d float64) string {
	switch AssessRisk(d) {
	case RiskLow:
		return "Standard monitoring protocol"
	case RiskMedium:
		return "Enhanced monitoring, daily observations critical"
	default:
		return "Intensive treatment required, consider splitting into multiple tanks"
	}
}

// RecommendedVolume returns the tank volume in liters needed to hold quantity
// fish at the target density, floored to whole liters.
func RecommendedVolume(quantity int, targetDensity float64) (int, error) {
	if targetDensity <= 0 {
		return 0, fmt.Errorf("target density must be positive, got %v: %w", targetDensity, domain.ErrInvalidArgument)
	}
	if quantity < 0 {
		return 0, fmt.Errorf("quantity cannot be negative, got %d: %w", quantity, domain.ErrInvalidArgument)
	}
	return int(float64(quantity) / targetDensity), nil
}

// IsOvercrowded reports whether the density strictly exceeds the threshold.
// A tank sitting exactly on the threshold is not overcrowded.
func IsOvercrowded(quantity, volume int, threshold float64) (bool, error) {
	d, err := Calculate(quantity, volume)
	if err != nil {
		return false, err
	}
	return d > threshold, nil
}

// Format renders a density with its risk interpretation, e.g.
// "0.15 fish/L (Medium risk)".
func Format(d float64) string {
	var label string
	switch AssessRisk(d) {
	case RiskLow:
		label = "Low risk"
	case RiskMedium:
		label = "Medium risk"
	default:
		label = "High risk"
	}
	return fmt.Sprintf("%.2f fish/L (%s)", d, label)
}
