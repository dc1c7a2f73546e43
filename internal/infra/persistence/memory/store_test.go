package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"shoalcore/pkg/domain"
)

func newTestStore() *Store {
	return NewStore(domain.NewRulesEngine())
}

func seedShipment(t *testing.T, store *Store) Shipment {
	t.Helper()
	var created Shipment
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateShipment(Shipment{
			ScientificName: "Betta splendens",
			CommonName:     "Siamese fighting fish",
			Source:         "Thailand",
			Quantity:       50,
			VolumeLiters:   500,
			ReceivedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed shipment: %v", err)
	}
	return created
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	store := newTestStore()
	created := seedShipment(t, store)

	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %+v", created.Base)
	}
	got, ok := store.GetShipment(created.ID)
	if !ok {
		t.Fatalf("shipment not found after commit")
	}
	if got.ScientificName != "Betta splendens" {
		t.Fatalf("ScientificName = %q", got.ScientificName)
	}
}

func TestFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := newTestStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateShipment(Shipment{ScientificName: "Betta splendens", Source: "Thailand", Quantity: 10, VolumeLiters: 100}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := store.ListShipments(); len(got) != 0 {
		t.Fatalf("aborted transaction leaked %d shipments", len(got))
	}
}

func TestBlockingRuleAbortsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	store := NewStore(engine)

	res, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateShipment(Shipment{ScientificName: "Betta splendens", Source: "Thailand", Quantity: 10, VolumeLiters: 100})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("result should report the blocking violation")
	}
	if got := store.ListShipments(); len(got) != 0 {
		t.Fatalf("blocked transaction leaked %d shipments", len(got))
	}
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block-all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for range changes {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "block-all",
			Severity: domain.SeverityBlock,
			Message:  "nothing may change",
		})
	}
	return res, nil
}

func TestUpdateMutatesAndBumpsTimestamp(t *testing.T) {
	store := newTestStore()
	created := seedShipment(t, store)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateShipment(created.ID, func(s *Shipment) error {
			s.Quantity = 48
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.GetShipment(created.ID)
	if got.Quantity != 48 {
		t.Fatalf("Quantity = %d, want 48", got.Quantity)
	}
	if !got.UpdatedAt.Equal(fixed) {
		t.Fatalf("UpdatedAt = %v, want %v", got.UpdatedAt, fixed)
	}
	if got.CreatedAt.Equal(fixed) {
		t.Fatalf("CreatedAt should not change on update")
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	store := newTestStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateShipment("missing", func(s *Shipment) error { return nil })
		return err
	})
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if nf.Entity != domain.EntityShipment || nf.ID != "missing" {
		t.Fatalf("ErrNotFound = %+v", nf)
	}
}

func TestTreatmentRequiresShipmentAndProtocols(t *testing.T) {
	store := newTestStore()
	shipment := seedShipment(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateTreatment(Treatment{ShipmentID: "missing", StartDate: time.Now()})
		return err
	})
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound for missing shipment, got %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateTreatment(Treatment{
			ShipmentID: shipment.ID,
			StartDate:  time.Now(),
			Drugs:      []domain.TreatmentDrug{{ProtocolID: "missing"}},
		})
		return err
	})
	if !errors.As(err, &nf) || nf.Entity != domain.EntityDrugProtocol {
		t.Fatalf("expected drug protocol ErrNotFound, got %v", err)
	}
}

func TestDeleteShipmentBlockedByTreatment(t *testing.T) {
	store := newTestStore()
	shipment := seedShipment(t, store)

	var treatment Treatment
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		treatment, err = tx.CreateTreatment(Treatment{ShipmentID: shipment.ID, StartDate: time.Now()})
		return err
	})
	if err != nil {
		t.Fatalf("create treatment: %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteShipment(shipment.ID)
	})
	if err == nil {
		t.Fatalf("delete should fail while treatment references shipment")
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if err := tx.DeleteTreatment(treatment.ID); err != nil {
			return err
		}
		return tx.DeleteShipment(shipment.ID)
	})
	if err != nil {
		t.Fatalf("cascading delete in one transaction: %v", err)
	}
	if got := store.ListShipments(); len(got) != 0 {
		t.Fatalf("shipment not deleted")
	}
}

func TestFollowupUniquePerTreatment(t *testing.T) {
	store := newTestStore()
	shipment := seedShipment(t, store)

	var treatment Treatment
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		treatment, err = tx.CreateTreatment(Treatment{ShipmentID: shipment.ID, StartDate: time.Now()})
		if err != nil {
			return err
		}
		_, err = tx.CreateFollowup(Followup{TreatmentID: treatment.ID, FollowupAt: time.Now(), SurvivalCount: 48})
		return err
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateFollowup(Followup{TreatmentID: treatment.ID, FollowupAt: time.Now(), SurvivalCount: 40})
		return err
	})
	if err == nil {
		t.Fatalf("second followup for the same treatment should fail")
	}

	fu, ok := store.FollowupForTreatment(treatment.ID)
	if !ok || fu.SurvivalCount != 48 {
		t.Fatalf("FollowupForTreatment = (%+v, %v)", fu, ok)
	}
}

func TestPutKnowledgeUpserts(t *testing.T) {
	store := newTestStore()
	rate1, rate2 := 88.0, 91.0

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.PutKnowledge(Knowledge{Source: "Thailand", ScientificName: "Betta splendens", SuccessRate: &rate1, SampleSize: 4})
		return err
	})
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	first := store.ListKnowledge()[0]

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.PutKnowledge(Knowledge{Source: "Thailand", ScientificName: "Betta splendens", SuccessRate: &rate2, SampleSize: 6})
		return err
	})
	if err != nil {
		t.Fatalf("second put: %v", err)
	}

	records := store.ListKnowledge()
	if len(records) != 1 {
		t.Fatalf("upsert created %d records, want 1", len(records))
	}
	if records[0].ID != first.ID {
		t.Fatalf("upsert changed record identity")
	}
	if records[0].SampleSize != 6 || *records[0].SuccessRate != 91.0 {
		t.Fatalf("record not updated: %+v", records[0])
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore()
	shipment := seedShipment(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateTreatment(Treatment{ShipmentID: shipment.ID, StartDate: time.Now().UTC()})
		return err
	})
	if err != nil {
		t.Fatalf("create treatment: %v", err)
	}

	snapshot := store.ExportState()
	restored := newTestStore()
	restored.ImportState(snapshot)

	if len(restored.ListShipments()) != 1 || len(restored.ListTreatments()) != 1 {
		t.Fatalf("restored state incomplete")
	}
}

func TestImportDropsOrphans(t *testing.T) {
	store := newTestStore()
	store.ImportState(Snapshot{
		Treatments: map[string]Treatment{
			"t1": {Base: domain.Base{ID: "t1"}, ShipmentID: "missing"},
		},
		Observations: map[string]Observation{
			"o1": {Base: domain.Base{ID: "o1"}, TreatmentID: "t1"},
		},
	})
	if got := store.ListTreatments(); len(got) != 0 {
		t.Fatalf("orphan treatment survived import: %+v", got)
	}
	if got := store.ListObservationsForTreatment("t1"); len(got) != 0 {
		t.Fatalf("orphan observation survived import")
	}
}

func TestChildQueriesSorted(t *testing.T) {
	store := newTestStore()
	shipment := seedShipment(t, store)

	var treatment Treatment
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		treatment, err = tx.CreateTreatment(Treatment{ShipmentID: shipment.ID, StartDate: time.Now().UTC()})
		if err != nil {
			return err
		}
		for _, day := range []int{3, 1, 2} {
			if _, err := tx.CreateObservation(Observation{
				TreatmentID: treatment.ID,
				ObservedAt:  time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	obs := store.ListObservationsForTreatment(treatment.ID)
	if len(obs) != 3 {
		t.Fatalf("got %d observations", len(obs))
	}
	for i := 1; i < len(obs); i++ {
		if obs[i].ObservedAt.Before(obs[i-1].ObservedAt) {
			t.Fatalf("observations not sorted by date")
		}
	}
}
