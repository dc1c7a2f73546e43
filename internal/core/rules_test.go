package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"shoalcore/internal/infra/persistence/memory"
	"shoalcore/pkg/domain"
)

func seedTreatedShipment(t *testing.T, store *memory.Store) (Shipment, Treatment) {
	t.Helper()
	var shipment Shipment
	var treatment Treatment
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		shipment, err = tx.CreateShipment(Shipment{
			ScientificName: "Betta splendens",
			Source:         "Thailand",
			Quantity:       50,
			VolumeLiters:   500,
			ReceivedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			return err
		}
		end := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
		treatment, err = tx.CreateTreatment(Treatment{
			ShipmentID: shipment.ID,
			StartDate:  time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
			EndDate:    &end,
			Status:     TreatmentStatusCompleted,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return shipment, treatment
}

func TestFollowupConsistencyRuleBlocksTamperedRate(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	_, treatment := seedTreatedShipment(t, store)

	tampered := 99.0
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateFollowup(FollowupAssessment{
			TreatmentID:   treatment.ID,
			FollowupAt:    time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			SurvivalCount: 44,
			SuccessRate:   &tampered,
		})
		return err
	})
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want RuleViolationError", err)
	}
	if violation.Result.Violations[0].Rule != "followup_consistency" {
		t.Fatalf("rule = %q", violation.Result.Violations[0].Rule)
	}
}

func TestFollowupConsistencyRuleAcceptsDerivedRate(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	_, treatment := seedTreatedShipment(t, store)

	derived := 88.0
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateFollowup(FollowupAssessment{
			TreatmentID:   treatment.ID,
			FollowupAt:    time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			SurvivalCount: 44,
			SuccessRate:   &derived,
		})
		return err
	})
	if err != nil {
		t.Fatalf("expected derived rate to pass, got %v", err)
	}
}

func TestFollowupConsistencyRuleBlocksImpossibleSurvivalCount(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	_, treatment := seedTreatedShipment(t, store)

	claimed := 100.0
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateFollowup(FollowupAssessment{
			TreatmentID:   treatment.ID,
			FollowupAt:    time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			SurvivalCount: 60,
			SuccessRate:   &claimed,
		})
		return err
	})
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want RuleViolationError", err)
	}
	if violation.Result.Violations[0].Rule != "followup_consistency" {
		t.Fatalf("rule = %q", violation.Result.Violations[0].Rule)
	}
}

func TestTreatmentWindowRuleAllowsOpenEnd(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		shipment, err := tx.CreateShipment(Shipment{
			ScientificName: "Betta splendens",
			Source:         "Thailand",
			Quantity:       10,
			VolumeLiters:   100,
			ReceivedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			return err
		}
		_, err = tx.CreateTreatment(Treatment{
			ShipmentID: shipment.ID,
			StartDate:  time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		})
		return err
	})
	if err != nil {
		t.Fatalf("open-ended treatment must pass: %v", err)
	}
}

func TestOvercrowdingRuleWarnsAboveThresholdOnly(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())

	// 100 fish in 500 L sits exactly at 0.20; the cutoff is strict.
	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateShipment(Shipment{
			ScientificName: "Betta splendens",
			Source:         "Thailand",
			Quantity:       100,
			VolumeLiters:   500,
			ReceivedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		return err
	})
	if err != nil {
		t.Fatalf("at-threshold shipment: %v", err)
	}
	for _, v := range res.Violations {
		if v.Rule == "overcrowding" {
			t.Fatalf("density 0.20 must not warn, got %+v", v)
		}
	}

	res, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateShipment(Shipment{
			ScientificName: "Paracheirodon innesi",
			Source:         "Brazil",
			Quantity:       150,
			VolumeLiters:   500,
			ReceivedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		return err
	})
	if err != nil {
		t.Fatalf("overcrowded shipment must still commit: %v", err)
	}
	found := false
	for _, v := range res.Violations {
		if v.Rule == "overcrowding" && v.Severity == SeverityWarn {
			found = true
		}
	}
	if !found {
		t.Fatalf("density 0.30 should warn, violations = %+v", res.Violations)
	}
}

func TestScoreBoundsRuleCoversStabilityScore(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	_, treatment := seedTreatedShipment(t, store)

	bad := 0
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateFollowup(FollowupAssessment{
			TreatmentID:    treatment.ID,
			FollowupAt:     time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			StabilityScore: &bad,
			SurvivalCount:  50,
		})
		return err
	})
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want RuleViolationError", err)
	}
	found := false
	for _, v := range violation.Result.Violations {
		if v.Rule == "score_bounds" && v.Entity == domain.EntityFollowup {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected score_bounds violation, got %+v", violation.Result.Violations)
	}
}
