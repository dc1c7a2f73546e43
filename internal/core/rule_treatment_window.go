package core

import (
	"context"
	"fmt"
)

// NewTreatmentWindowRule blocks treatments whose end date precedes their
// start date. Open-ended treatments are always valid.
func NewTreatmentWindowRule() Rule {
	return treatmentWindowRule{}
}

type treatmentWindowRule struct{}

func (treatmentWindowRule) Name() string { return "treatment_window" }

func (treatmentWindowRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	res := Result{}
	for _, treatment := range view.ListTreatments() {
		if treatment.EndDate == nil {
			continue
		}
		if treatment.EndDate.Before(treatment.StartDate) {
			res.Violations = append(res.Violations, Violation{
				Rule:     "treatment_window",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("treatment %s ends %s before it starts %s", treatment.ID, treatment.EndDate.Format("2006-01-02"), treatment.StartDate.Format("2006-01-02")),
				Entity:   EntityTreatment,
				EntityID: treatment.ID,
			})
		}
	}
	return res, nil
}
