// Package supplier ranks and rates shipment sources by the follow-up success
// rates recorded against their shipments.
package supplier

import (
	"sort"

	"shoalcore/internal/survival"
	"shoalcore/pkg/domain"
)

// Rating tiers. InsufficientData overrides every score when the sample is
// smaller than MinSampleSize.
const (
	RatingExcellent        = "excellent"
	RatingGood             = "good"
	RatingFair             = "fair"
	RatingPoor             = "poor"
	RatingInsufficientData = "insufficient_data"
	RatingNoData           = "no_data"
)

// MinSampleSize is the shipment count below which no quality rating is issued.
const MinSampleSize = 3

// Records is the read surface the analyzer consumes. domain.PersistentStore
// satisfies it.
type Records interface {
	ListShipments() []domain.Shipment
	ListTreatmentsForShipment(shipmentID string) []domain.Treatment
	FollowupForTreatment(treatmentID string) (domain.FollowupAssessment, bool)
}

// Stats summarizes one source's track record.
type Stats struct {
	Source         string  `json:"source"`
	ShipmentCount  int     `json:"shipment_count"`
	AvgSuccessRate float64 `json:"avg_success_rate"`
	TotalFish      int     `json:"total_fish"`
	SpeciesCount   int     `json:"species_count"`
	Rating         string  `json:"rating"`
}

// SpeciesStats summarizes one source's record for a single species.
type SpeciesStats struct {
	Source         string  `json:"source"`
	ScientificName string  `json:"scientific_name"`
	ShipmentCount  int     `json:"shipment_count"`
	AvgSuccessRate float64 `json:"avg_success_rate"`
	TotalFish      int     `json:"total_fish"`
}

// Analyzer derives supplier performance from stored records.
type Analyzer struct {
	records Records
}

// NewAnalyzer constructs an analyzer over the given records.
func NewAnalyzer(records Records) *Analyzer {
	return &Analyzer{records: records}
}

// Rate maps an average success rate and sample size to a rating tier.
func Rate(avgSuccessRate float64, sampleSize int) string {
	if sampleSize < MinSampleSize {
		return RatingInsufficientData
	}
	switch {
	case avgSuccessRate >= 90:
		return RatingExcellent
	case avgSuccessRate >= 80:
		return RatingGood
	case avgSuccessRate >= 70:
		return RatingFair
	default:
		return RatingPoor
	}
}

// successRates collects the recorded follow-up success rates for a set of
// shipments. Treatments without a follow-up, and follow-ups without a
// computed rate, are skipped.
func (a *Analyzer) successRates(shipments []domain.Shipment) []float64 {
	var rates []float64
	for _, s := range shipments {
		for _, tr := range a.records.ListTreatmentsForShipment(s.ID) {
			fu, ok := a.records.FollowupForTreatment(tr.ID)
			if !ok || fu.SuccessRate == nil {
				continue
			}
			rates = append(rates, *fu.SuccessRate)
		}
	}
	return rates
}

// Stats computes the full statistics block for one source.
func (a *Analyzer) Stats(source string) Stats {
	var shipments []domain.Shipment
	for _, s := range a.records.ListShipments() {
		if s.Source == source {
			shipments = append(shipments, s)
		}
	}
	if len(shipments) == 0 {
		return Stats{Source: source, Rating: RatingNoData}
	}

	rates := a.successRates(shipments)
	avg := survival.AverageRate(rates)

	totalFish := 0
	species := make(map[string]struct{})
	for _, s := range shipments {
		totalFish += s.Quantity
		species[s.ScientificName] = struct{}{}
	}

	return Stats{
		Source:         source,
		ShipmentCount:  len(shipments),
		AvgSuccessRate: avg,
		TotalFish:      totalFish,
		SpeciesCount:   len(species),
		Rating:         Rate(avg, len(shipments)),
	}
}

// AnalyzePerformance returns stats for every source with at least one
// shipment, sorted by average success rate descending.
func (a *Analyzer) AnalyzePerformance() []Stats {
	seen := make(map[string]struct{})
	var out []Stats
	for _, s := range a.records.ListShipments() {
		if _, ok := seen[s.Source]; ok {
			continue
		}
		seen[s.Source] = struct{}{}
		stats := a.Stats(s.Source)
		if stats.ShipmentCount > 0 {
			out = append(out, stats)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvgSuccessRate > out[j].AvgSuccessRate
	})
	return out
}

// SourceSpeciesStats computes the record for one source-species pair.
func (a *Analyzer) SourceSpeciesStats(source, scientificName string) SpeciesStats {
	var shipments []domain.Shipment
	for _, s := range a.records.ListShipments() {
		if s.Source == source && s.ScientificName == scientificName {
			shipments = append(shipments, s)
		}
	}
	if len(shipments) == 0 {
		return SpeciesStats{Source: source, ScientificName: scientificName}
	}

	rates := a.successRates(shipments)
	totalFish := 0
	for _, s := range shipments {
		totalFish += s.Quantity
	}
	return SpeciesStats{
		Source:         source,
		ScientificName: scientificName,
		ShipmentCount:  len(shipments),
		AvgSuccessRate: survival.AverageRate(rates),
		TotalFish:      totalFish,
	}
}

// BestSourceForSpecies returns the highest-rated source for a species, or
// false when no shipments of that species exist.
func (a *Analyzer) BestSourceForSpecies(scientificName string) (SpeciesStats, bool) {
	seen := make(map[string]struct{})
	var candidates []SpeciesStats
	for _, s := range a.records.ListShipments() {
		if s.ScientificName != scientificName {
			continue
		}
		if _, ok := seen[s.Source]; ok {
			continue
		}
		seen[s.Source] = struct{}{}
		stats := a.SourceSpeciesStats(s.Source, scientificName)
		if stats.ShipmentCount > 0 {
			candidates = append(candidates, stats)
		}
	}
	if len(candidates) == 0 {
		return SpeciesStats{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].AvgSuccessRate > candidates[j].AvgSuccessRate
	})
	return candidates[0], true
}

// Compare returns stats for the named sources in caller order. Sources with
// no shipments appear with a no_data rating rather than being dropped.
func (a *Analyzer) Compare(sources []string) []Stats {
	out := make([]Stats, 0, len(sources))
	for _, source := range sources {
		out = append(out, a.Stats(source))
	}
	return out
}

// Recommendation returns the advisory text for a stats block's rating.
func Recommendation(stats Stats) string {
	switch stats.Rating {
	case RatingExcellent:
		return "Highly recommended supplier with excellent track record"
	case RatingGood:
		return "Reliable supplier, recommended for regular use"
	case RatingFair:
		return "Acceptable supplier, but monitor closely"
	case RatingPoor:
		return "Not recommended - consider alternative sources"
	case RatingInsufficientData:
		return "Insufficient data for recommendation - proceed with caution"
	case RatingNoData:
		return "No historical data available"
	default:
		return "No data available"
	}
}
