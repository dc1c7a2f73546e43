package core

import (
	"context"
	"fmt"

	"shoalcore/internal/density"
)

// NewOvercrowdingRule warns when a shipment's stocking density exceeds the
// overcrowding threshold. It never blocks; overcrowded intakes are legal but
// flagged for operator attention.
func NewOvercrowdingRule() Rule {
	return overcrowdingRule{}
}

type overcrowdingRule struct{}

func (overcrowdingRule) Name() string { return "overcrowding" }

func (overcrowdingRule) Evaluate(_ context.Context, view RuleView, _ []Change) (Result, error) {
	res := Result{}
	for _, shipment := range view.ListShipments() {
		d, ok := density.ForShipment(shipment)
		if !ok {
			continue
		}
		if d > density.OvercrowdThreshold {
			res.Violations = append(res.Violations, Violation{
				Rule:     "overcrowding",
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("shipment %s at %.2f fish/L exceeds %.2f fish/L", shipment.ID, d, density.OvercrowdThreshold),
				Entity:   EntityShipment,
				EntityID: shipment.ID,
			})
		}
	}
	return res, nil
}
