package memory

import (
	"errors"
	"fmt"
	"time"

	"shoalcore/pkg/domain"
)

// transaction is a mutation set applied to a clone of the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of transactional state to
// rules and aggregation.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListShipments() []Shipment {
	out := make([]Shipment, 0, len(v.state.shipments))
	for _, s := range v.state.shipments {
		out = append(out, cloneShipment(s))
	}
	sortByCreation(out, func(s Shipment) (time.Time, string) { return s.CreatedAt, s.ID })
	return out
}

func (v transactionView) ListTreatments() []Treatment {
	out := make([]Treatment, 0, len(v.state.treatments))
	for _, t := range v.state.treatments {
		out = append(out, cloneTreatment(t))
	}
	sortByCreation(out, func(t Treatment) (time.Time, string) { return t.CreatedAt, t.ID })
	return out
}

func (v transactionView) ListObservations() []Observation {
	out := make([]Observation, 0, len(v.state.observations))
	for _, o := range v.state.observations {
		out = append(out, cloneObservation(o))
	}
	sortByCreation(out, func(o Observation) (time.Time, string) { return o.CreatedAt, o.ID })
	return out
}

func (v transactionView) ListFollowups() []Followup {
	out := make([]Followup, 0, len(v.state.followups))
	for _, f := range v.state.followups {
		out = append(out, cloneFollowup(f))
	}
	sortByCreation(out, func(f Followup) (time.Time, string) { return f.CreatedAt, f.ID })
	return out
}

func (v transactionView) ListDrugProtocols() []DrugProtocol {
	out := make([]DrugProtocol, 0, len(v.state.protocols))
	for _, p := range v.state.protocols {
		out = append(out, cloneDrugProtocol(p))
	}
	sortByCreation(out, func(p DrugProtocol) (time.Time, string) { return p.CreatedAt, p.ID })
	return out
}

func (v transactionView) ListKnowledge() []Knowledge {
	out := make([]Knowledge, 0, len(v.state.knowledge))
	for _, k := range v.state.knowledge {
		out = append(out, cloneKnowledge(k))
	}
	sortByCreation(out, func(k Knowledge) (time.Time, string) { return k.CreatedAt, k.ID })
	return out
}

func (v transactionView) FindShipment(id string) (Shipment, bool) {
	s, ok := v.state.shipments[id]
	if !ok {
		return Shipment{}, false
	}
	return cloneShipment(s), true
}

func (v transactionView) FindTreatment(id string) (Treatment, bool) {
	t, ok := v.state.treatments[id]
	if !ok {
		return Treatment{}, false
	}
	return cloneTreatment(t), true
}

func (v transactionView) FindObservation(id string) (Observation, bool) {
	o, ok := v.state.observations[id]
	if !ok {
		return Observation{}, false
	}
	return cloneObservation(o), true
}

func (v transactionView) FindFollowup(id string) (Followup, bool) {
	f, ok := v.state.followups[id]
	if !ok {
		return Followup{}, false
	}
	return cloneFollowup(f), true
}

func (v transactionView) FindDrugProtocol(id string) (DrugProtocol, bool) {
	p, ok := v.state.protocols[id]
	if !ok {
		return DrugProtocol{}, false
	}
	return cloneDrugProtocol(p), true
}

func (v transactionView) FindKnowledge(source, scientificName string) (Knowledge, bool) {
	for _, k := range v.state.knowledge {
		if k.Source == source && k.ScientificName == scientificName {
			return cloneKnowledge(k), true
		}
	}
	return Knowledge{}, false
}

func (v transactionView) ListTreatmentsForShipment(shipmentID string) []Treatment {
	return treatmentsForShipment(v.state, shipmentID)
}

func (v transactionView) ListObservationsForTreatment(treatmentID string) []Observation {
	return observationsForTreatment(v.state, treatmentID)
}

func (v transactionView) FollowupForTreatment(treatmentID string) (Followup, bool) {
	return followupForTreatment(v.state, treatmentID)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindShipment(id string) (Shipment, bool) {
	s, ok := tx.state.shipments[id]
	if !ok {
		return Shipment{}, false
	}
	return cloneShipment(s), true
}

func (tx *transaction) FindTreatment(id string) (Treatment, bool) {
	t, ok := tx.state.treatments[id]
	if !ok {
		return Treatment{}, false
	}
	return cloneTreatment(t), true
}

func (tx *transaction) FindDrugProtocol(id string) (DrugProtocol, bool) {
	p, ok := tx.state.protocols[id]
	if !ok {
		return DrugProtocol{}, false
	}
	return cloneDrugProtocol(p), true
}

// CreateShipment stores a new shipment within the transaction.
func (tx *transaction) CreateShipment(s Shipment) (Shipment, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.shipments[s.ID]; exists {
		return Shipment{}, alreadyExists(domain.EntityShipment, s.ID)
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.shipments[s.ID] = cloneShipment(s)
	tx.recordChange(Change{Entity: domain.EntityShipment, Action: domain.ActionCreate, After: cloneShipment(s)})
	return cloneShipment(s), nil
}

// UpdateShipment mutates a shipment using the provided mutator.
func (tx *transaction) UpdateShipment(id string, mutator func(*Shipment) error) (Shipment, error) {
	current, ok := tx.state.shipments[id]
	if !ok {
		return Shipment{}, notFound(domain.EntityShipment, id)
	}
	before := cloneShipment(current)
	if err := mutator(&current); err != nil {
		return Shipment{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.shipments[id] = cloneShipment(current)
	tx.recordChange(Change{Entity: domain.EntityShipment, Action: domain.ActionUpdate, Before: before, After: cloneShipment(current)})
	return cloneShipment(current), nil
}

// DeleteShipment removes a shipment. It fails while treatments still
// reference it; cascades are the service layer's responsibility.
func (tx *transaction) DeleteShipment(id string) error {
	current, ok := tx.state.shipments[id]
	if !ok {
		return notFound(domain.EntityShipment, id)
	}
	for _, t := range tx.state.treatments {
		if t.ShipmentID == id {
			return fmt.Errorf("shipment %q still referenced by treatment %q", id, t.ID)
		}
	}
	delete(tx.state.shipments, id)
	tx.recordChange(Change{Entity: domain.EntityShipment, Action: domain.ActionDelete, Before: cloneShipment(current)})
	return nil
}

// CreateTreatment stores a new treatment. The parent shipment and every
// referenced drug protocol must exist.
func (tx *transaction) CreateTreatment(t Treatment) (Treatment, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.treatments[t.ID]; exists {
		return Treatment{}, alreadyExists(domain.EntityTreatment, t.ID)
	}
	if t.ShipmentID == "" {
		return Treatment{}, errors.New("treatment requires shipment id")
	}
	if _, ok := tx.state.shipments[t.ShipmentID]; !ok {
		return Treatment{}, notFound(domain.EntityShipment, t.ShipmentID)
	}
	for _, d := range t.Drugs {
		if _, ok := tx.state.protocols[d.ProtocolID]; !ok {
			return Treatment{}, notFound(domain.EntityDrugProtocol, d.ProtocolID)
		}
	}
	if t.Status == "" {
		t.Status = domain.TreatmentStatusActive
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.treatments[t.ID] = cloneTreatment(t)
	tx.recordChange(Change{Entity: domain.EntityTreatment, Action: domain.ActionCreate, After: cloneTreatment(t)})
	return cloneTreatment(t), nil
}

// UpdateTreatment mutates a treatment using the provided mutator.
func (tx *transaction) UpdateTreatment(id string, mutator func(*Treatment) error) (Treatment, error) {
	current, ok := tx.state.treatments[id]
	if !ok {
		return Treatment{}, notFound(domain.EntityTreatment, id)
	}
	before := cloneTreatment(current)
	if err := mutator(&current); err != nil {
		return Treatment{}, err
	}
	for _, d := range current.Drugs {
		if _, ok := tx.state.protocols[d.ProtocolID]; !ok {
			return Treatment{}, notFound(domain.EntityDrugProtocol, d.ProtocolID)
		}
	}
	current.ID = id
	current.ShipmentID = before.ShipmentID
	current.UpdatedAt = tx.now
	tx.state.treatments[id] = cloneTreatment(current)
	tx.recordChange(Change{Entity: domain.EntityTreatment, Action: domain.ActionUpdate, Before: before, After: cloneTreatment(current)})
	return cloneTreatment(current), nil
}

// DeleteTreatment removes a treatment. It fails while observations or a
// follow-up still reference it.
func (tx *transaction) DeleteTreatment(id string) error {
	current, ok := tx.state.treatments[id]
	if !ok {
		return notFound(domain.EntityTreatment, id)
	}
	for _, o := range tx.state.observations {
		if o.TreatmentID == id {
			return fmt.Errorf("treatment %q still referenced by observation %q", id, o.ID)
		}
	}
	for _, f := range tx.state.followups {
		if f.TreatmentID == id {
			return fmt.Errorf("treatment %q still referenced by followup %q", id, f.ID)
		}
	}
	delete(tx.state.treatments, id)
	tx.recordChange(Change{Entity: domain.EntityTreatment, Action: domain.ActionDelete, Before: cloneTreatment(current)})
	return nil
}

// CreateObservation stores a new daily observation against an existing
// treatment.
func (tx *transaction) CreateObservation(o Observation) (Observation, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.observations[o.ID]; exists {
		return Observation{}, alreadyExists(domain.EntityObservation, o.ID)
	}
	if _, ok := tx.state.treatments[o.TreatmentID]; !ok {
		return Observation{}, notFound(domain.EntityTreatment, o.TreatmentID)
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.observations[o.ID] = cloneObservation(o)
	tx.recordChange(Change{Entity: domain.EntityObservation, Action: domain.ActionCreate, After: cloneObservation(o)})
	return cloneObservation(o), nil
}

// UpdateObservation mutates an observation using the provided mutator.
func (tx *transaction) UpdateObservation(id string, mutator func(*Observation) error) (Observation, error) {
	current, ok := tx.state.observations[id]
	if !ok {
		return Observation{}, notFound(domain.EntityObservation, id)
	}
	before := cloneObservation(current)
	if err := mutator(&current); err != nil {
		return Observation{}, err
	}
	current.ID = id
	current.TreatmentID = before.TreatmentID
	current.UpdatedAt = tx.now
	tx.state.observations[id] = cloneObservation(current)
	tx.recordChange(Change{Entity: domain.EntityObservation, Action: domain.ActionUpdate, Before: before, After: cloneObservation(current)})
	return cloneObservation(current), nil
}

// DeleteObservation removes an observation.
func (tx *transaction) DeleteObservation(id string) error {
	current, ok := tx.state.observations[id]
	if !ok {
		return notFound(domain.EntityObservation, id)
	}
	delete(tx.state.observations, id)
	tx.recordChange(Change{Entity: domain.EntityObservation, Action: domain.ActionDelete, Before: cloneObservation(current)})
	return nil
}

// CreateFollowup stores a follow-up assessment. A treatment carries at most
// one.
func (tx *transaction) CreateFollowup(f Followup) (Followup, error) {
	if f.ID == "" {
		f.ID = tx.store.newID()
	}
	if _, exists := tx.state.followups[f.ID]; exists {
		return Followup{}, alreadyExists(domain.EntityFollowup, f.ID)
	}
	if _, ok := tx.state.treatments[f.TreatmentID]; !ok {
		return Followup{}, notFound(domain.EntityTreatment, f.TreatmentID)
	}
	if existing, ok := followupForTreatment(&tx.state, f.TreatmentID); ok {
		return Followup{}, fmt.Errorf("treatment %q already has followup %q", f.TreatmentID, existing.ID)
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.followups[f.ID] = cloneFollowup(f)
	tx.recordChange(Change{Entity: domain.EntityFollowup, Action: domain.ActionCreate, After: cloneFollowup(f)})
	return cloneFollowup(f), nil
}

// UpdateFollowup mutates a follow-up using the provided mutator.
func (tx *transaction) UpdateFollowup(id string, mutator func(*Followup) error) (Followup, error) {
	current, ok := tx.state.followups[id]
	if !ok {
		return Followup{}, notFound(domain.EntityFollowup, id)
	}
	before := cloneFollowup(current)
	if err := mutator(&current); err != nil {
		return Followup{}, err
	}
	current.ID = id
	current.TreatmentID = before.TreatmentID
	current.UpdatedAt = tx.now
	tx.state.followups[id] = cloneFollowup(current)
	tx.recordChange(Change{Entity: domain.EntityFollowup, Action: domain.ActionUpdate, Before: before, After: cloneFollowup(current)})
	return cloneFollowup(current), nil
}

// DeleteFollowup removes a follow-up.
func (tx *transaction) DeleteFollowup(id string) error {
	current, ok := tx.state.followups[id]
	if !ok {
		return notFound(domain.EntityFollowup, id)
	}
	delete(tx.state.followups, id)
	tx.recordChange(Change{Entity: domain.EntityFollowup, Action: domain.ActionDelete, Before: cloneFollowup(current)})
	return nil
}

// CreateDrugProtocol stores a new drug protocol.
func (tx *transaction) CreateDrugProtocol(p DrugProtocol) (DrugProtocol, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.protocols[p.ID]; exists {
		return DrugProtocol{}, alreadyExists(domain.EntityDrugProtocol, p.ID)
	}
	if p.Name == "" {
		return DrugProtocol{}, errors.New("drug protocol requires a name")
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.protocols[p.ID] = cloneDrugProtocol(p)
	tx.recordChange(Change{Entity: domain.EntityDrugProtocol, Action: domain.ActionCreate, After: cloneDrugProtocol(p)})
	return cloneDrugProtocol(p), nil
}

// UpdateDrugProtocol mutates a drug protocol using the provided mutator.
func (tx *transaction) UpdateDrugProtocol(id string, mutator func(*DrugProtocol) error) (DrugProtocol, error) {
	current, ok := tx.state.protocols[id]
	if !ok {
		return DrugProtocol{}, notFound(domain.EntityDrugProtocol, id)
	}
	before := cloneDrugProtocol(current)
	if err := mutator(&current); err != nil {
		return DrugProtocol{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.protocols[id] = cloneDrugProtocol(current)
	tx.recordChange(Change{Entity: domain.EntityDrugProtocol, Action: domain.ActionUpdate, Before: before, After: cloneDrugProtocol(current)})
	return cloneDrugProtocol(current), nil
}

// DeleteDrugProtocol removes a drug protocol. It fails while treatments
// still reference it.
func (tx *transaction) DeleteDrugProtocol(id string) error {
	current, ok := tx.state.protocols[id]
	if !ok {
		return notFound(domain.EntityDrugProtocol, id)
	}
	for _, t := range tx.state.treatments {
		for _, d := range t.Drugs {
			if d.ProtocolID == id {
				return fmt.Errorf("drug protocol %q still referenced by treatment %q", id, t.ID)
			}
		}
	}
	delete(tx.state.protocols, id)
	tx.recordChange(Change{Entity: domain.EntityDrugProtocol, Action: domain.ActionDelete, Before: cloneDrugProtocol(current)})
	return nil
}

// PutKnowledge creates or replaces the knowledge record for its species and
// source pair. Replacement preserves the original ID and creation time.
func (tx *transaction) PutKnowledge(k Knowledge) (Knowledge, error) {
	if k.Source == "" || k.ScientificName == "" {
		return Knowledge{}, errors.New("knowledge record requires source and scientific name")
	}
	if existing, ok := func() (Knowledge, bool) {
		for _, cand := range tx.state.knowledge {
			if cand.Source == k.Source && cand.ScientificName == k.ScientificName {
				return cand, true
			}
		}
		return Knowledge{}, false
	}(); ok {
		before := cloneKnowledge(existing)
		k.ID = existing.ID
		k.CreatedAt = existing.CreatedAt
		k.UpdatedAt = tx.now
		tx.state.knowledge[k.ID] = cloneKnowledge(k)
		tx.recordChange(Change{Entity: domain.EntityKnowledge, Action: domain.ActionUpdate, Before: before, After: cloneKnowledge(k)})
		return cloneKnowledge(k), nil
	}
	if k.ID == "" {
		k.ID = tx.store.newID()
	}
	k.CreatedAt = tx.now
	k.UpdatedAt = tx.now
	tx.state.knowledge[k.ID] = cloneKnowledge(k)
	tx.recordChange(Change{Entity: domain.EntityKnowledge, Action: domain.ActionCreate, After: cloneKnowledge(k)})
	return cloneKnowledge(k), nil
}

// DeleteKnowledge removes a knowledge record by ID.
func (tx *transaction) DeleteKnowledge(id string) error {
	current, ok := tx.state.knowledge[id]
	if !ok {
		return notFound(domain.EntityKnowledge, id)
	}
	delete(tx.state.knowledge, id)
	tx.recordChange(Change{Entity: domain.EntityKnowledge, Action: domain.ActionDelete, Before: cloneKnowledge(current)})
	return nil
}
