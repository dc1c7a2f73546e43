// Package history aggregates treatment records for a species and source pair
// into the context blocks used by the knowledge layer.
package history

import (
	"fmt"
	"math"
	"sort"
	"time"

	"shoalcore/internal/density"
	"shoalcore/internal/survival"
	"shoalcore/pkg/domain"
)

// ProtocolSuccessThreshold is the minimum follow-up success rate for a
// treatment's protocol to count as successful.
const ProtocolSuccessThreshold = 80.0

// Records is the read surface the aggregator consumes. domain.PersistentStore
// satisfies it.
type Records interface {
	ListShipments() []domain.Shipment
	GetTreatment(id string) (domain.Treatment, bool)
	ListTreatmentsForShipment(shipmentID string) []domain.Treatment
	ListObservationsForTreatment(treatmentID string) []domain.DailyObservation
	FollowupForTreatment(treatmentID string) (domain.FollowupAssessment, bool)
	ListDrugProtocols() []domain.DrugProtocol
}

// DrugUse is one drug applied during a treatment.
type DrugUse struct {
	Name      string   `json:"name"`
	Dosage    *float64 `json:"dosage"`
	Unit      string   `json:"unit,omitempty"`
	Frequency *string  `json:"frequency"`
}

// Protocol is the drug regimen of a successful treatment.
type Protocol struct {
	Drugs        []DrugUse `json:"drugs"`
	DurationDays *int      `json:"duration_days"`
}

// SymptomCounts tallies symptom occurrences across observations.
type SymptomCounts struct {
	Lethargy        int `json:"lethargy"`
	LossOfAppetite  int `json:"loss_of_appetite"`
	Spots           int `json:"spots"`
	FinDamage       int `json:"fin_damage"`
	BreathingIssues int `json:"breathing_issues"`
}

// TreatmentSummary condenses one treatment and its outcome.
type TreatmentSummary struct {
	TreatmentID   string        `json:"treatment_id"`
	ShipmentID    string        `json:"shipment_id"`
	FishQuantity  int           `json:"fish_quantity"`
	Density       *float64      `json:"density"`
	DrugsUsed     []DrugUse     `json:"drugs_used"`
	DurationDays  *int          `json:"treatment_duration_days"`
	SuccessRate   *float64      `json:"success_rate"`
	SymptomCounts SymptomCounts `json:"symptom_counts"`
	AvgCondition  *float64      `json:"overall_condition_avg"`
}

// Context is the full aggregate for a species and source pair.
type Context struct {
	ShipmentCount       int                `json:"shipment_count"`
	ScientificName      string             `json:"scientific_name"`
	SourceCountry       string             `json:"source_country"`
	AvgSuccessRate      *float64           `json:"avg_success_rate"`
	Treatments          []TreatmentSummary `json:"treatments"`
	SuccessfulProtocols []Protocol         `json:"successful_protocols"`
	TotalFish           int                `json:"total_fish"`
	AvgDensity          *float64           `json:"avg_density"`
}

// Event is one entry on a treatment timeline.
type Event struct {
	Date        time.Time      `json:"date"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// Timeline event types.
const (
	EventTreatmentStart = "treatment_start"
	EventObservation    = "observation"
	EventTreatmentEnd   = "treatment_end"
	EventFollowup       = "followup"
)

// Aggregator builds historical contexts from stored records.
type Aggregator struct {
	records Records
}

// NewAggregator constructs an aggregator over the given records.
func NewAggregator(records Records) *Aggregator {
	return &Aggregator{records: records}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// protocolByID resolves a drug protocol reference.
func (a *Aggregator) protocolByID(id string) (domain.DrugProtocol, bool) {
	for _, p := range a.records.ListDrugProtocols() {
		if p.ID == id {
			return p, true
		}
	}
	return domain.DrugProtocol{}, false
}

// CountSymptoms tallies symptom flags across observations. One observation
// with several flags increments several counters.
func CountSymptoms(observations []domain.DailyObservation) SymptomCounts {
	var c SymptomCounts
	for _, o := range observations {
		if o.Lethargy {
			c.Lethargy++
		}
		if o.LossOfAppetite {
			c.LossOfAppetite++
		}
		if o.Spots {
			c.Spots++
		}
		if o.FinDamage {
			c.FinDamage++
		}
		if o.BreathingIssues {
			c.BreathingIssues++
		}
	}
	return c
}

// AvgCondition averages the recorded condition scores, skipping observations
// without one. No scored observations yields nil.
func AvgCondition(observations []domain.DailyObservation) *float64 {
	var sum, n float64
	for _, o := range observations {
		if o.ConditionScore == nil {
			continue
		}
		sum += float64(*o.ConditionScore)
		n++
	}
	if n == 0 {
		return nil
	}
	avg := round2(sum / n)
	return &avg
}

// avgDensity averages derivable shipment densities, nil when none derive.
func avgDensity(shipments []domain.Shipment) *float64 {
	var sum, n float64
	for _, s := range shipments {
		d, ok := density.ForShipment(s)
		if !ok {
			continue
		}
		sum += d
		n++
	}
	if n == 0 {
		return nil
	}
	avg := round2(sum / n)
	return &avg
}

// day truncates t to its UTC calendar day.
func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// durationDays returns the calendar-day span of a treatment, nil while open.
// Both ends are truncated to their UTC day so clock-of-day drift between the
// start and end timestamps cannot shift the count.
func durationDays(t domain.Treatment) *int {
	if t.EndDate == nil {
		return nil
	}
	days := int(day(*t.EndDate).Sub(day(t.StartDate)).Hours() / 24)
	return &days
}

// drugsUsed resolves a treatment's drug references into named uses.
// Unresolvable references are skipped.
func (a *Aggregator) drugsUsed(t domain.Treatment) []DrugUse {
	var out []DrugUse
	for _, td := range t.Drugs {
		p, ok := a.protocolByID(td.ProtocolID)
		if !ok {
			continue
		}
		out = append(out, DrugUse{
			Name:      p.Name,
			Dosage:    td.Dosage,
			Unit:      p.Unit,
			Frequency: td.Frequency,
		})
	}
	return out
}

// Summarize builds the condensed record of one treatment.
func (a *Aggregator) Summarize(t domain.Treatment, shipment domain.Shipment) TreatmentSummary {
	observations := a.records.ListObservationsForTreatment(t.ID)

	var rate *float64
	if fu, ok := a.records.FollowupForTreatment(t.ID); ok && fu.SuccessRate != nil {
		r := *fu.SuccessRate
		rate = &r
	}

	var d *float64
	if dv, ok := density.ForShipment(shipment); ok {
		d = &dv
	}

	return TreatmentSummary{
		TreatmentID:   t.ID,
		ShipmentID:    shipment.ID,
		FishQuantity:  shipment.Quantity,
		Density:       d,
		DrugsUsed:     a.drugsUsed(t),
		DurationDays:  durationDays(t),
		SuccessRate:   rate,
		SymptomCounts: CountSymptoms(observations),
		AvgCondition:  AvgCondition(observations),
	}
}

// ExtractProtocol returns the drug regimen of a treatment, or false when the
// treatment used no resolvable drugs.
func (a *Aggregator) ExtractProtocol(t domain.Treatment) (Protocol, bool) {
	drugs := a.drugsUsed(t)
	if len(drugs) == 0 {
		return Protocol{}, false
	}
	return Protocol{Drugs: drugs, DurationDays: durationDays(t)}, true
}

// Aggregate assembles the full historical context for a species and source
// pair. A pair with no shipments returns the zero-valued context with the
// identifying fields set and a nil average rate.
func (a *Aggregator) Aggregate(scientificName, sourceCountry string) Context {
	var shipments []domain.Shipment
	for _, s := range a.records.ListShipments() {
		if s.ScientificName == scientificName && s.Source == sourceCountry {
			shipments = append(shipments, s)
		}
	}
	ctx := Context{
		ScientificName: scientificName,
		SourceCountry:  sourceCountry,
	}
	if len(shipments) == 0 {
		return ctx
	}

	ctx.ShipmentCount = len(shipments)
	var rates []float64
	for _, s := range shipments {
		ctx.TotalFish += s.Quantity
		for _, t := range a.records.ListTreatmentsForShipment(s.ID) {
			summary := a.Summarize(t, s)
			ctx.Treatments = append(ctx.Treatments, summary)
			if summary.SuccessRate == nil {
				continue
			}
			rates = append(rates, *summary.SuccessRate)
			if *summary.SuccessRate >= ProtocolSuccessThreshold {
				if protocol, ok := a.ExtractProtocol(t); ok {
					ctx.SuccessfulProtocols = append(ctx.SuccessfulProtocols, protocol)
				}
			}
		}
	}
	if len(rates) > 0 {
		avg := survival.AverageRate(rates)
		ctx.AvgSuccessRate = &avg
	}
	ctx.AvgDensity = avgDensity(shipments)
	return ctx
}

// Timeline builds the date-sorted event sequence of a treatment. Unknown
// treatment IDs yield an empty timeline.
func (a *Aggregator) Timeline(treatmentID string) []Event {
	t, ok := a.records.GetTreatment(treatmentID)
	if !ok {
		return nil
	}

	events := []Event{{
		Date:        t.StartDate,
		Type:        EventTreatmentStart,
		Description: "Treatment started",
	}}

	for _, o := range a.records.ListObservationsForTreatment(t.ID) {
		score := "n/a"
		if o.ConditionScore != nil {
			score = fmt.Sprintf("%d", *o.ConditionScore)
		}
		events = append(events, Event{
			Date:        o.ObservedAt,
			Type:        EventObservation,
			Description: fmt.Sprintf("Observation - Score: %s", score),
			Data: map[string]any{
				"score":        o.ConditionScore,
				"has_symptoms": o.HasSymptoms(),
			},
		})
	}

	if t.EndDate != nil {
		events = append(events, Event{
			Date:        *t.EndDate,
			Type:        EventTreatmentEnd,
			Description: "Treatment ended",
		})
	}

	if fu, ok := a.records.FollowupForTreatment(t.ID); ok {
		desc := "Follow-up"
		if fu.SuccessRate != nil {
			desc = fmt.Sprintf("Follow-up - Success: %v%%", *fu.SuccessRate)
		}
		events = append(events, Event{
			Date:        fu.FollowupAt,
			Type:        EventFollowup,
			Description: desc,
			Data: map[string]any{
				"success_rate":    fu.SuccessRate,
				"stability_score": fu.StabilityScore,
			},
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events
}
