package core

import "shoalcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	TreatmentStatus    = domain.TreatmentStatus
	Severity           = domain.Severity
	Base               = domain.Base
	Shipment           = domain.Shipment
	Treatment          = domain.Treatment
	TreatmentDrug      = domain.TreatmentDrug
	DrugProtocol       = domain.DrugProtocol
	DailyObservation   = domain.DailyObservation
	FollowupAssessment = domain.FollowupAssessment
	KnowledgeRecord    = domain.KnowledgeRecord
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityShipment     = domain.EntityShipment
	EntityTreatment    = domain.EntityTreatment
	EntityObservation  = domain.EntityObservation
	EntityFollowup     = domain.EntityFollowup
	EntityDrugProtocol = domain.EntityDrugProtocol
	EntityKnowledge    = domain.EntityKnowledge
)

const (
	TreatmentStatusActive    = domain.TreatmentStatusActive
	TreatmentStatusCompleted = domain.TreatmentStatusCompleted
	TreatmentStatusModified  = domain.TreatmentStatusModified
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
