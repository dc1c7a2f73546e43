// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by shoalcore.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityShipment identifies a fish shipment record.
	EntityShipment EntityType = "shipment"
	// EntityTreatment identifies a treatment record.
	EntityTreatment EntityType = "treatment"
	// EntityObservation identifies a daily observation record.
	EntityObservation EntityType = "observation"
	// EntityFollowup identifies a follow-up assessment record.
	EntityFollowup EntityType = "followup"
	// EntityDrugProtocol identifies a drug protocol record.
	EntityDrugProtocol EntityType = "drug_protocol"
	// EntityKnowledge identifies a derived knowledge record.
	EntityKnowledge EntityType = "knowledge"
)

// TreatmentStatus enumerates treatment lifecycle states.
type TreatmentStatus string

// Canonical treatment statuses. The active to completed transition is
// one-way; a completed treatment is never reactivated.
const (
	TreatmentStatusActive    TreatmentStatus = "active"
	TreatmentStatusCompleted TreatmentStatus = "completed"
	TreatmentStatusModified  TreatmentStatus = "modified"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Shipment represents a batch of fish received from a source country.
// Density is never stored; it is always derived from Quantity and
// VolumeLiters by the density package.
type Shipment struct {
	Base
	ReceivedAt     time.Time `json:"received_at"`
	ScientificName string    `json:"scientific_name"`
	CommonName     string    `json:"common_name"`
	Source         string    `json:"source"`
	Quantity       int       `json:"quantity"`
	FishSize       *string   `json:"fish_size,omitempty"`
	VolumeLiters   int       `json:"volume_liters"`
	PricePerFish   *float64  `json:"price_per_fish,omitempty"`
	TotalPrice     *float64  `json:"total_price,omitempty"`
}

// Treatment captures a medication period applied to a shipment, its drug
// administrations, and the outcome annotations recorded at completion.
type Treatment struct {
	Base
	ShipmentID      string          `json:"shipment_id"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	Status          TreatmentStatus `json:"status"`
	Drugs           []TreatmentDrug `json:"drugs"`
	OutcomeCategory *string         `json:"outcome_category,omitempty"`
	OutcomeScore    *int            `json:"outcome_score,omitempty"`
	MortalityCount  *int            `json:"mortality_count,omitempty"`
}

// TreatmentDrug records the actual administration of a drug protocol within a
// treatment: the dosage and frequency really used, which may deviate from the
// protocol's recommended range.
type TreatmentDrug struct {
	ProtocolID string   `json:"protocol_id"`
	Dosage     *float64 `json:"dosage,omitempty"`
	Frequency  *string  `json:"frequency,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// DrugProtocol describes a known medication with its recommended dosage range.
type DrugProtocol struct {
	Base
	Name              string   `json:"name"`
	DosageMin         *float64 `json:"dosage_min,omitempty"`
	DosageMax         *float64 `json:"dosage_max,omitempty"`
	Unit              string   `json:"unit"`
	Frequency         *string  `json:"frequency,omitempty"`
	TypicalPeriodDays *int     `json:"typical_period_days,omitempty"`
	Notes             *string  `json:"notes,omitempty"`
}

// DailyObservation records one day's health check during a treatment.
type DailyObservation struct {
	Base
	TreatmentID         string    `json:"treatment_id"`
	ObservedAt          time.Time `json:"observed_at"`
	ConditionScore      *int      `json:"condition_score,omitempty"`
	Lethargy            bool      `json:"lethargy"`
	LossOfAppetite      bool      `json:"loss_of_appetite"`
	Spots               bool      `json:"spots"`
	FinDamage           bool      `json:"fin_damage"`
	BreathingIssues     bool      `json:"breathing_issues"`
	OtherSymptoms       *string   `json:"other_symptoms,omitempty"`
	TreatmentsCompleted bool      `json:"treatments_completed"`
	Notes               *string   `json:"notes,omitempty"`
}

// HasSymptoms reports whether any symptom flag is set or a free-text symptom
// was recorded.
func (o DailyObservation) HasSymptoms() bool {
	if o.Lethargy || o.LossOfAppetite || o.Spots || o.FinDamage || o.BreathingIssues {
		return true
	}
	return o.OtherSymptoms != nil && strings.TrimSpace(*o.OtherSymptoms) != ""
}

// FollowupAssessment is the authoritative outcome signal for a treatment,
// recorded five days after the treatment ends. SuccessRate is always computed
// from SurvivalCount and the shipment quantity; the store rejects
// contradictory values.
type FollowupAssessment struct {
	Base
	TreatmentID      string    `json:"treatment_id"`
	FollowupAt       time.Time `json:"followup_at"`
	StabilityScore   *int      `json:"stability_score,omitempty"`
	SymptomsReturned bool      `json:"symptoms_returned"`
	ReturnedSymptoms *string   `json:"returned_symptoms,omitempty"`
	SurvivalCount    int       `json:"survival_count"`
	SuccessRate      *float64  `json:"success_rate,omitempty"`
	Recommendation   *string   `json:"recommendation,omitempty"`
	Insights         *string   `json:"insights,omitempty"`
}

// KnowledgeRecord accumulates historical outcomes for a (species, source)
// pair. It is derived by the aggregation layer and persisted by callers; it
// is never authoritative over the raw records it summarizes.
// SuccessfulProtocols holds the JSON-encoded protocol list produced by the
// aggregator so durable backends can store it as an opaque payload.
type KnowledgeRecord struct {
	Base
	Source              string   `json:"source"`
	ScientificName      string   `json:"scientific_name"`
	SuccessfulProtocols []byte   `json:"successful_protocols,omitempty"`
	SuccessRate         *float64 `json:"success_rate,omitempty"`
	SampleSize          int      `json:"sample_size"`
	Insights            *string  `json:"insights,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
