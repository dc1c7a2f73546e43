package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateShipment(Shipment) (Shipment, error)
	UpdateShipment(id string, mutator func(*Shipment) error) (Shipment, error)
	DeleteShipment(id string) error
	CreateTreatment(Treatment) (Treatment, error)
	UpdateTreatment(id string, mutator func(*Treatment) error) (Treatment, error)
	DeleteTreatment(id string) error
	CreateObservation(DailyObservation) (DailyObservation, error)
	UpdateObservation(id string, mutator func(*DailyObservation) error) (DailyObservation, error)
	DeleteObservation(id string) error
	CreateFollowup(FollowupAssessment) (FollowupAssessment, error)
	UpdateFollowup(id string, mutator func(*FollowupAssessment) error) (FollowupAssessment, error)
	DeleteFollowup(id string) error
	CreateDrugProtocol(DrugProtocol) (DrugProtocol, error)
	UpdateDrugProtocol(id string, mutator func(*DrugProtocol) error) (DrugProtocol, error)
	DeleteDrugProtocol(id string) error
	PutKnowledge(KnowledgeRecord) (KnowledgeRecord, error)
	DeleteKnowledge(id string) error
	FindShipment(id string) (Shipment, bool)
	FindTreatment(id string) (Treatment, bool)
	FindDrugProtocol(id string) (DrugProtocol, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// aggregation. It is the persistence-agnostic record shape the scoring core
// reads through; durable backends normalize into it before the core runs.
type TransactionView interface {
	RuleView
	ListKnowledge() []KnowledgeRecord
	FindObservation(id string) (DailyObservation, bool)
	FindFollowup(id string) (FollowupAssessment, bool)
	FindKnowledge(source, scientificName string) (KnowledgeRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetShipment(id string) (Shipment, bool)
	ListShipments() []Shipment
	GetTreatment(id string) (Treatment, bool)
	ListTreatments() []Treatment
	ListDrugProtocols() []DrugProtocol
	ListKnowledge() []KnowledgeRecord
	ListTreatmentsForShipment(shipmentID string) []Treatment
	ListObservationsForTreatment(treatmentID string) []DailyObservation
	FollowupForTreatment(treatmentID string) (FollowupAssessment, bool)
}
