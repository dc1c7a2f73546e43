package core

import (
	"context"
	"fmt"
	"math"

	"shoalcore/internal/survival"
)

// successRateTolerance absorbs the rounding applied when rates are computed.
const successRateTolerance = 0.005

// NewFollowupConsistencyRule blocks follow-up assessments whose stored
// success rate contradicts the rate derived from the survival count and the
// shipment quantity. Follow-ups without a stored rate are exempt.
func NewFollowupConsistencyRule() Rule {
	return followupConsistencyRule{}
}

type followupConsistencyRule struct{}

func (followupConsistencyRule) Name() string { return "followup_consistency" }

func (followupConsistencyRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	res := Result{}
	for _, followup := range view.ListFollowups() {
		if followup.SuccessRate == nil {
			continue
		}
		treatment, ok := view.FindTreatment(followup.TreatmentID)
		if !ok {
			continue
		}
		shipment, ok := view.FindShipment(treatment.ShipmentID)
		if !ok {
			continue
		}
		derived, err := survival.Rate(followup.SurvivalCount, shipment.Quantity)
		if err != nil {
			res.Violations = append(res.Violations, Violation{
				Rule:     "followup_consistency",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("followup %s survival count %d is invalid for shipment of %d: %v", followup.ID, followup.SurvivalCount, shipment.Quantity, err),
				Entity:   EntityFollowup,
				EntityID: followup.ID,
			})
			continue
		}
		if math.Abs(*followup.SuccessRate-derived) > successRateTolerance {
			res.Violations = append(res.Violations, Violation{
				Rule:     "followup_consistency",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("followup %s stores success rate %.2f but %d/%d survivors yields %.2f", followup.ID, *followup.SuccessRate, followup.SurvivalCount, shipment.Quantity, derived),
				Entity:   EntityFollowup,
				EntityID: followup.ID,
			})
		}
	}
	return res, nil
}
