package core

import (
	"context"
	"fmt"
)

const (
	scoreMin = 1
	scoreMax = 5
)

// NewScoreBoundsRule blocks condition, stability, and outcome scores outside
// the 1..5 scale. Absent scores are valid; scoring is always optional.
func NewScoreBoundsRule() Rule {
	return scoreBoundsRule{}
}

type scoreBoundsRule struct{}

func (scoreBoundsRule) Name() string { return "score_bounds" }

func (scoreBoundsRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	res := Result{}
	for _, obs := range view.ListObservations() {
		if outOfScale(obs.ConditionScore) {
			res.Violations = append(res.Violations, scoreViolation(EntityObservation, obs.ID, "condition score", *obs.ConditionScore))
		}
	}
	for _, followup := range view.ListFollowups() {
		if outOfScale(followup.StabilityScore) {
			res.Violations = append(res.Violations, scoreViolation(EntityFollowup, followup.ID, "stability score", *followup.StabilityScore))
		}
	}
	for _, treatment := range view.ListTreatments() {
		if outOfScale(treatment.OutcomeScore) {
			res.Violations = append(res.Violations, scoreViolation(EntityTreatment, treatment.ID, "outcome score", *treatment.OutcomeScore))
		}
	}
	return res, nil
}

func outOfScale(score *int) bool {
	if score == nil {
		return false
	}
	return *score < scoreMin || *score > scoreMax
}

func scoreViolation(entity EntityType, id, label string, score int) Violation {
	return Violation{
		Rule:     "score_bounds",
		Severity: SeverityBlock,
		Message:  fmt.Sprintf("%s %s has %s %d outside %d..%d", entity, id, label, score, scoreMin, scoreMax),
		Entity:   entity,
		EntityID: id,
	}
}
