// Package memory provides the in-memory implementation of the core
// persistence store used for tests and ephemeral environments. Durable
// backends delegate to it and persist its snapshots.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"shoalcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

type (
	// Shipment aliases domain.Shipment for persistence operations.
	Shipment = domain.Shipment
	// Treatment aliases domain.Treatment.
	Treatment = domain.Treatment
	// Observation aliases domain.DailyObservation.
	Observation = domain.DailyObservation
	// Followup aliases domain.FollowupAssessment.
	Followup = domain.FollowupAssessment
	// DrugProtocol aliases domain.DrugProtocol.
	DrugProtocol = domain.DrugProtocol
	// Knowledge aliases domain.KnowledgeRecord.
	Knowledge = domain.KnowledgeRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	shipments    map[string]Shipment
	treatments   map[string]Treatment
	observations map[string]Observation
	followups    map[string]Followup
	protocols    map[string]DrugProtocol
	knowledge    map[string]Knowledge
}

// Snapshot captures a point-in-time clone of the store state. Durable
// backends serialize it as a single JSON document.
type Snapshot struct {
	Shipments    map[string]Shipment     `json:"shipments"`
	Treatments   map[string]Treatment    `json:"treatments"`
	Observations map[string]Observation  `json:"observations"`
	Followups    map[string]Followup     `json:"followups"`
	Protocols    map[string]DrugProtocol `json:"drug_protocols"`
	Knowledge    map[string]Knowledge    `json:"knowledge"`
}

func newMemoryState() memoryState {
	return memoryState{
		shipments:    make(map[string]Shipment),
		treatments:   make(map[string]Treatment),
		observations: make(map[string]Observation),
		followups:    make(map[string]Followup),
		protocols:    make(map[string]DrugProtocol),
		knowledge:    make(map[string]Knowledge),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneShipment(s Shipment) Shipment {
	cp := s
	cp.FishSize = clonePtr(s.FishSize)
	cp.PricePerFish = clonePtr(s.PricePerFish)
	cp.TotalPrice = clonePtr(s.TotalPrice)
	return cp
}

func cloneTreatment(t Treatment) Treatment {
	cp := t
	cp.EndDate = clonePtr(t.EndDate)
	cp.OutcomeCategory = clonePtr(t.OutcomeCategory)
	cp.OutcomeScore = clonePtr(t.OutcomeScore)
	cp.MortalityCount = clonePtr(t.MortalityCount)
	if len(t.Drugs) != 0 {
		cp.Drugs = make([]domain.TreatmentDrug, len(t.Drugs))
		for i, d := range t.Drugs {
			dc := d
			dc.Dosage = clonePtr(d.Dosage)
			dc.Frequency = clonePtr(d.Frequency)
			dc.Notes = clonePtr(d.Notes)
			cp.Drugs[i] = dc
		}
	}
	return cp
}

func cloneObservation(o Observation) Observation {
	cp := o
	cp.ConditionScore = clonePtr(o.ConditionScore)
	cp.OtherSymptoms = clonePtr(o.OtherSymptoms)
	cp.Notes = clonePtr(o.Notes)
	return cp
}

func cloneFollowup(f Followup) Followup {
	cp := f
	cp.StabilityScore = clonePtr(f.StabilityScore)
	cp.ReturnedSymptoms = clonePtr(f.ReturnedSymptoms)
	cp.SuccessRate = clonePtr(f.SuccessRate)
	cp.Insights = clonePtr(f.Insights)
	return cp
}

func cloneDrugProtocol(p DrugProtocol) DrugProtocol {
	cp := p
	cp.DosageMin = clonePtr(p.DosageMin)
	cp.DosageMax = clonePtr(p.DosageMax)
	cp.Frequency = clonePtr(p.Frequency)
	cp.TypicalPeriodDays = clonePtr(p.TypicalPeriodDays)
	cp.Notes = clonePtr(p.Notes)
	return cp
}

func cloneKnowledge(k Knowledge) Knowledge {
	cp := k
	cp.SuccessRate = clonePtr(k.SuccessRate)
	cp.Insights = clonePtr(k.Insights)
	if len(k.SuccessfulProtocols) != 0 {
		cp.SuccessfulProtocols = append([]byte(nil), k.SuccessfulProtocols...)
	}
	return cp
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.shipments {
		cloned.shipments[k] = cloneShipment(v)
	}
	for k, v := range s.treatments {
		cloned.treatments[k] = cloneTreatment(v)
	}
	for k, v := range s.observations {
		cloned.observations[k] = cloneObservation(v)
	}
	for k, v := range s.followups {
		cloned.followups[k] = cloneFollowup(v)
	}
	for k, v := range s.protocols {
		cloned.protocols[k] = cloneDrugProtocol(v)
	}
	for k, v := range s.knowledge {
		cloned.knowledge[k] = cloneKnowledge(v)
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Shipments:    make(map[string]Shipment, len(state.shipments)),
		Treatments:   make(map[string]Treatment, len(state.treatments)),
		Observations: make(map[string]Observation, len(state.observations)),
		Followups:    make(map[string]Followup, len(state.followups)),
		Protocols:    make(map[string]DrugProtocol, len(state.protocols)),
		Knowledge:    make(map[string]Knowledge, len(state.knowledge)),
	}
	for k, v := range state.shipments {
		s.Shipments[k] = cloneShipment(v)
	}
	for k, v := range state.treatments {
		s.Treatments[k] = cloneTreatment(v)
	}
	for k, v := range state.observations {
		s.Observations[k] = cloneObservation(v)
	}
	for k, v := range state.followups {
		s.Followups[k] = cloneFollowup(v)
	}
	for k, v := range state.protocols {
		s.Protocols[k] = cloneDrugProtocol(v)
	}
	for k, v := range state.knowledge {
		s.Knowledge[k] = cloneKnowledge(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Shipments {
		state.shipments[k] = cloneShipment(v)
	}
	for k, v := range s.Treatments {
		state.treatments[k] = cloneTreatment(v)
	}
	for k, v := range s.Observations {
		state.observations[k] = cloneObservation(v)
	}
	for k, v := range s.Followups {
		state.followups[k] = cloneFollowup(v)
	}
	for k, v := range s.Protocols {
		state.protocols[k] = cloneDrugProtocol(v)
	}
	for k, v := range s.Knowledge {
		state.knowledge[k] = cloneKnowledge(v)
	}
	return state
}

// migrateSnapshot normalizes persisted snapshots: nil maps become empty and
// records whose parents vanished are dropped so referential integrity holds
// after import.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Shipments == nil {
		snapshot.Shipments = map[string]Shipment{}
	}
	if snapshot.Treatments == nil {
		snapshot.Treatments = map[string]Treatment{}
	}
	if snapshot.Observations == nil {
		snapshot.Observations = map[string]Observation{}
	}
	if snapshot.Followups == nil {
		snapshot.Followups = map[string]Followup{}
	}
	if snapshot.Protocols == nil {
		snapshot.Protocols = map[string]DrugProtocol{}
	}
	if snapshot.Knowledge == nil {
		snapshot.Knowledge = map[string]Knowledge{}
	}

	for id, treatment := range snapshot.Treatments {
		if _, ok := snapshot.Shipments[treatment.ShipmentID]; !ok {
			delete(snapshot.Treatments, id)
		}
	}
	treatmentExists := func(id string) bool {
		_, ok := snapshot.Treatments[id]
		return ok
	}
	for id, observation := range snapshot.Observations {
		if !treatmentExists(observation.TreatmentID) {
			delete(snapshot.Observations, id)
		}
	}
	seenFollowup := make(map[string]string, len(snapshot.Followups))
	for id, followup := range snapshot.Followups {
		if !treatmentExists(followup.TreatmentID) {
			delete(snapshot.Followups, id)
			continue
		}
		// One follow-up per treatment; keep the lexically first on conflict.
		if prev, ok := seenFollowup[followup.TreatmentID]; ok {
			if id < prev {
				delete(snapshot.Followups, prev)
				seenFollowup[followup.TreatmentID] = id
			} else {
				delete(snapshot.Followups, id)
			}
			continue
		}
		seenFollowup[followup.TreatmentID] = id
	}
	return snapshot
}

// Store provides the in-memory transactional store for the quarantine domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs a store backed by the provided rules engine. A nil
// engine means no rules run.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the store's time provider.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the store's time provider. Passing nil restores UTC
// system time.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// RunInTransaction executes fn within a transactional copy of the state.
// Registered rules evaluate against the candidate state; a blocking
// violation aborts the commit with domain.RuleViolationError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn().UTC(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot))
}

// GetShipment returns a shipment by ID.
func (s *Store) GetShipment(id string) (Shipment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.state.shipments[id]
	if !ok {
		return Shipment{}, false
	}
	return cloneShipment(sh), true
}

// ListShipments returns all shipments ordered by creation time.
func (s *Store) ListShipments() []Shipment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Shipment, 0, len(s.state.shipments))
	for _, sh := range s.state.shipments {
		out = append(out, cloneShipment(sh))
	}
	sortByCreation(out, func(sh Shipment) (time.Time, string) { return sh.CreatedAt, sh.ID })
	return out
}

// GetTreatment returns a treatment by ID.
func (s *Store) GetTreatment(id string) (Treatment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.treatments[id]
	if !ok {
		return Treatment{}, false
	}
	return cloneTreatment(t), true
}

// ListTreatments returns all treatments ordered by creation time.
func (s *Store) ListTreatments() []Treatment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Treatment, 0, len(s.state.treatments))
	for _, t := range s.state.treatments {
		out = append(out, cloneTreatment(t))
	}
	sortByCreation(out, func(t Treatment) (time.Time, string) { return t.CreatedAt, t.ID })
	return out
}

// ListDrugProtocols returns all drug protocols ordered by creation time.
func (s *Store) ListDrugProtocols() []DrugProtocol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DrugProtocol, 0, len(s.state.protocols))
	for _, p := range s.state.protocols {
		out = append(out, cloneDrugProtocol(p))
	}
	sortByCreation(out, func(p DrugProtocol) (time.Time, string) { return p.CreatedAt, p.ID })
	return out
}

// ListKnowledge returns all knowledge records ordered by creation time.
func (s *Store) ListKnowledge() []Knowledge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Knowledge, 0, len(s.state.knowledge))
	for _, k := range s.state.knowledge {
		out = append(out, cloneKnowledge(k))
	}
	sortByCreation(out, func(k Knowledge) (time.Time, string) { return k.CreatedAt, k.ID })
	return out
}

// ListTreatmentsForShipment returns a shipment's treatments ordered by start
// date.
func (s *Store) ListTreatmentsForShipment(shipmentID string) []Treatment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return treatmentsForShipment(&s.state, shipmentID)
}

// ListObservationsForTreatment returns a treatment's observations ordered by
// observation date.
func (s *Store) ListObservationsForTreatment(treatmentID string) []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return observationsForTreatment(&s.state, treatmentID)
}

// FollowupForTreatment returns the follow-up recorded for a treatment, if
// any.
func (s *Store) FollowupForTreatment(treatmentID string) (Followup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return followupForTreatment(&s.state, treatmentID)
}

func sortByCreation[T any](items []T, key func(T) (time.Time, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if ti.Equal(tj) {
			return idi < idj
		}
		return ti.Before(tj)
	})
}

func treatmentsForShipment(state *memoryState, shipmentID string) []Treatment {
	var out []Treatment
	for _, t := range state.treatments {
		if t.ShipmentID == shipmentID {
			out = append(out, cloneTreatment(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

func observationsForTreatment(state *memoryState, treatmentID string) []Observation {
	var out []Observation
	for _, o := range state.observations {
		if o.TreatmentID == treatmentID {
			out = append(out, cloneObservation(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out
}

func followupForTreatment(state *memoryState, treatmentID string) (Followup, bool) {
	for _, f := range state.followups {
		if f.TreatmentID == treatmentID {
			return cloneFollowup(f), true
		}
	}
	return Followup{}, false
}

func notFound(entity domain.EntityType, id string) error {
	return domain.ErrNotFound{Entity: entity, ID: id}
}

func alreadyExists(entity domain.EntityType, id string) error {
	return fmt.Errorf("%s %q already exists", entity, id)
}
