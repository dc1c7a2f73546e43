package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"shoalcore/internal/density"
	"shoalcore/internal/history"
	"shoalcore/internal/infra/persistence/memory"
	"shoalcore/internal/knowledge"
	"shoalcore/internal/schedule"
	"shoalcore/internal/sources"
	"shoalcore/internal/supplier"
	"shoalcore/internal/survival"
	"shoalcore/pkg/domain"
)

// Service exposes the transactional operations of the quarantine tracking
// core: shipment intake, treatment lifecycle, observation and follow-up
// recording, and the derived scheduling, supplier, and knowledge views.
type Service struct {
	store    PersistentStore
	clock    schedule.Clock
	logger   Logger
	metrics  MetricsRecorder
	sources  sources.Config
	archiver *knowledge.Archiver

	scheduler *schedule.Scheduler
	analyzer  *supplier.Analyzer
	historian *history.Aggregator
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithClock fixes the clock used for date defaulting and scheduling.
func WithClock(clock schedule.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger routes service logging to the supplied logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics routes operation observations to the supplied recorder.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithSources replaces the accepted source-country configuration.
func WithSources(cfg sources.Config) Option {
	return func(s *Service) { s.sources = cfg }
}

// WithArchiver enables knowledge archiving to a blob store.
func WithArchiver(a *knowledge.Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		sources: sources.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = schedule.ClockFunc(nil)
	}
	s.scheduler = schedule.NewScheduler(store, s.clock)
	s.analyzer = supplier.NewAnalyzer(store)
	s.historian = history.NewAggregator(store)
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) run(ctx context.Context, op string, fn func(Transaction) error) (Result, error) {
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err)
		return res, err
	}
	for _, v := range res.Violations {
		if v.Severity == SeverityWarn {
			s.logger.Warn(v.Message, "operation", op, "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID)
		}
	}
	return res, nil
}

func (s *Service) validateShipment(shipment Shipment) error {
	if shipment.ScientificName == "" {
		return fmt.Errorf("scientific name required: %w", domain.ErrInvalidArgument)
	}
	if !s.sources.Contains(shipment.Source) {
		return fmt.Errorf("source %q not in accepted list: %w", shipment.Source, domain.ErrInvalidArgument)
	}
	if shipment.Quantity <= 0 {
		return fmt.Errorf("quantity %d must be positive: %w", shipment.Quantity, domain.ErrInvalidArgument)
	}
	if shipment.VolumeLiters <= 0 {
		return fmt.Errorf("volume %d must be positive: %w", shipment.VolumeLiters, domain.ErrInvalidArgument)
	}
	return nil
}

// CreateShipment validates and persists a new shipment record.
func (s *Service) CreateShipment(ctx context.Context, shipment Shipment) (Shipment, Result, error) {
	var created Shipment
	res, err := s.run(ctx, "create_shipment", func(tx Transaction) error {
		if err := s.validateShipment(shipment); err != nil {
			return err
		}
		if shipment.ReceivedAt.IsZero() {
			shipment.ReceivedAt = s.now()
		}
		var err error
		created, err = tx.CreateShipment(shipment)
		return err
	})
	if err == nil {
		if d, ok := density.ForShipment(created); ok {
			s.logger.Info("shipment received",
				"shipment_id", created.ID,
				"source", created.Source,
				"density", density.Format(d),
			)
		}
	}
	return created, res, err
}

// UpdateShipment mutates a shipment and revalidates the result.
func (s *Service) UpdateShipment(ctx context.Context, id string, mutator func(*Shipment) error) (Shipment, Result, error) {
	var updated Shipment
	res, err := s.run(ctx, "update_shipment", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateShipment(id, func(sh *Shipment) error {
			if err := mutator(sh); err != nil {
				return err
			}
			return s.validateShipment(*sh)
		})
		return err
	})
	return updated, res, err
}

// DeleteShipment removes a shipment and everything recorded under it:
// treatments, their observations, and their follow-ups, in one transaction.
func (s *Service) DeleteShipment(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_shipment", func(tx Transaction) error {
		view := tx.Snapshot()
		for _, treatment := range view.ListTreatmentsForShipment(id) {
			if followup, ok := view.FollowupForTreatment(treatment.ID); ok {
				if err := tx.DeleteFollowup(followup.ID); err != nil {
					return err
				}
			}
			for _, obs := range view.ListObservationsForTreatment(treatment.ID) {
				if err := tx.DeleteObservation(obs.ID); err != nil {
					return err
				}
			}
			if err := tx.DeleteTreatment(treatment.ID); err != nil {
				return err
			}
		}
		return tx.DeleteShipment(id)
	})
}

// CreateDrugProtocol persists a new drug protocol.
func (s *Service) CreateDrugProtocol(ctx context.Context, protocol DrugProtocol) (DrugProtocol, Result, error) {
	var created DrugProtocol
	res, err := s.run(ctx, "create_drug_protocol", func(tx Transaction) error {
		var err error
		created, err = tx.CreateDrugProtocol(protocol)
		return err
	})
	return created, res, err
}

// UpdateDrugProtocol mutates a drug protocol.
func (s *Service) UpdateDrugProtocol(ctx context.Context, id string, mutator func(*DrugProtocol) error) (DrugProtocol, Result, error) {
	var updated DrugProtocol
	res, err := s.run(ctx, "update_drug_protocol", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDrugProtocol(id, mutator)
		return err
	})
	return updated, res, err
}

// DeleteDrugProtocol removes a drug protocol. The store rejects the delete
// while any treatment still references it.
func (s *Service) DeleteDrugProtocol(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_drug_protocol", func(tx Transaction) error {
		return tx.DeleteDrugProtocol(id)
	})
}

// StartTreatment opens a treatment on a shipment. The treatment starts
// active; a zero start date defaults to the current day.
func (s *Service) StartTreatment(ctx context.Context, treatment Treatment) (Treatment, Result, error) {
	var created Treatment
	res, err := s.run(ctx, "start_treatment", func(tx Transaction) error {
		treatment.Status = TreatmentStatusActive
		treatment.EndDate = nil
		if treatment.StartDate.IsZero() {
			treatment.StartDate = s.now()
		}
		var err error
		created, err = tx.CreateTreatment(treatment)
		return err
	})
	return created, res, err
}

// TreatmentOutcome carries the optional completion annotations.
type TreatmentOutcome struct {
	Category       *string
	Score          *int
	MortalityCount *int
}

// CompleteTreatment closes a treatment. Completion is one-way: a completed
// treatment is terminal and cannot be completed again or amended.
func (s *Service) CompleteTreatment(ctx context.Context, id string, endDate time.Time, outcome TreatmentOutcome) (Treatment, Result, error) {
	if endDate.IsZero() {
		endDate = s.now()
	}
	var updated Treatment
	res, err := s.run(ctx, "complete_treatment", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateTreatment(id, func(t *Treatment) error {
			if t.Status == TreatmentStatusCompleted {
				return fmt.Errorf("treatment %s already completed: %w", id, domain.ErrInvalidArgument)
			}
			end := endDate.UTC()
			t.EndDate = &end
			t.Status = TreatmentStatusCompleted
			if outcome.Category != nil {
				t.OutcomeCategory = outcome.Category
			}
			if outcome.Score != nil {
				t.OutcomeScore = outcome.Score
			}
			if outcome.MortalityCount != nil {
				t.MortalityCount = outcome.MortalityCount
			}
			return nil
		})
		return err
	})
	return updated, res, err
}

// AmendTreatment applies a correction to an open treatment and marks it
// modified. Completed treatments cannot be amended.
func (s *Service) AmendTreatment(ctx context.Context, id string, mutator func(*Treatment) error) (Treatment, Result, error) {
	var updated Treatment
	res, err := s.run(ctx, "amend_treatment", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateTreatment(id, func(t *Treatment) error {
			if t.Status == TreatmentStatusCompleted {
				return fmt.Errorf("treatment %s already completed: %w", id, domain.ErrInvalidArgument)
			}
			if err := mutator(t); err != nil {
				return err
			}
			t.Status = TreatmentStatusModified
			return nil
		})
		return err
	})
	return updated, res, err
}

// RecordObservation stores a daily health check against a treatment.
func (s *Service) RecordObservation(ctx context.Context, obs DailyObservation) (DailyObservation, Result, error) {
	var created DailyObservation
	res, err := s.run(ctx, "record_observation", func(tx Transaction) error {
		if obs.ObservedAt.IsZero() {
			obs.ObservedAt = s.now()
		}
		var err error
		created, err = tx.CreateObservation(obs)
		return err
	})
	return created, res, err
}

// RecordFollowup stores the follow-up assessment for a treatment. The success
// rate is always computed from the survival count and the shipment quantity;
// a caller-supplied rate that contradicts the computed one is rejected.
func (s *Service) RecordFollowup(ctx context.Context, followup FollowupAssessment) (FollowupAssessment, Result, error) {
	var created FollowupAssessment
	res, err := s.run(ctx, "record_followup", func(tx Transaction) error {
		treatment, ok := tx.FindTreatment(followup.TreatmentID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityTreatment, ID: followup.TreatmentID}
		}
		shipment, ok := tx.FindShipment(treatment.ShipmentID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityShipment, ID: treatment.ShipmentID}
		}
		rate, err := survival.Rate(followup.SurvivalCount, shipment.Quantity)
		if err != nil {
			return err
		}
		if followup.SuccessRate != nil && math.Abs(*followup.SuccessRate-rate) > successRateTolerance {
			return fmt.Errorf("success rate %.2f contradicts %d/%d survivors (%.2f): %w",
				*followup.SuccessRate, followup.SurvivalCount, shipment.Quantity, rate, domain.ErrInvalidArgument)
		}
		followup.SuccessRate = &rate
		if followup.FollowupAt.IsZero() {
			followup.FollowupAt = s.now()
		}
		created, err = tx.CreateFollowup(followup)
		return err
	})
	return created, res, err
}

// UpsertKnowledge rebuilds the knowledge record for a (species, source) pair
// from the historical record and persists it.
func (s *Service) UpsertKnowledge(ctx context.Context, scientificName, source string) (KnowledgeRecord, Result, error) {
	hctx := s.historian.Aggregate(scientificName, source)
	record, err := knowledge.Build(hctx)
	if err != nil {
		return KnowledgeRecord{}, Result{}, err
	}
	var stored KnowledgeRecord
	res, err := s.run(ctx, "upsert_knowledge", func(tx Transaction) error {
		var err error
		stored, err = tx.PutKnowledge(record)
		return err
	})
	return stored, res, err
}

// Tasks returns the daily treatment checklist for the service clock's today.
func (s *Service) Tasks() schedule.DailyTasks {
	return s.scheduler.Tasks()
}

// OverdueFollowups lists completed treatments whose follow-up window has
// lapsed by at least graceDays beyond the lead time.
func (s *Service) OverdueFollowups(graceDays int) []Treatment {
	return s.scheduler.OverdueFollowups(graceDays)
}

// EstimateWorkload estimates today's treatment workload.
func (s *Service) EstimateWorkload() schedule.Workload {
	return s.scheduler.EstimateWorkload()
}

// SupplierPerformance ranks all known sources by average success rate.
func (s *Service) SupplierPerformance() []supplier.Stats {
	return s.analyzer.AnalyzePerformance()
}

// SupplierStats reports one source's track record.
func (s *Service) SupplierStats(source string) supplier.Stats {
	return s.analyzer.Stats(source)
}

// BestSourceForSpecies returns the strongest source for a species, if any
// source has shipped it.
func (s *Service) BestSourceForSpecies(scientificName string) (supplier.SpeciesStats, bool) {
	return s.analyzer.BestSourceForSpecies(scientificName)
}

// HistoricalContext aggregates the treatment history for a (species, source)
// pair.
func (s *Service) HistoricalContext(scientificName, source string) history.Context {
	return s.historian.Aggregate(scientificName, source)
}

// TreatmentTimeline returns the chronological event list for one treatment.
func (s *Service) TreatmentTimeline(treatmentID string) []history.Event {
	return s.historian.Timeline(treatmentID)
}

// ArchiveContext aggregates a (species, source) pair and writes the result to
// the configured blob archive, returning the object key.
func (s *Service) ArchiveContext(ctx context.Context, scientificName, source string) (string, error) {
	start := time.Now()
	key, err := s.archiveContext(ctx, scientificName, source)
	s.metrics.Observe(ctx, "archive_context", err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("operation failed", "operation", "archive_context", "error", err)
		return "", err
	}
	s.logger.Info("knowledge archived", "key", key, "species", scientificName, "source", source)
	return key, nil
}

func (s *Service) archiveContext(ctx context.Context, scientificName, source string) (string, error) {
	if s.archiver == nil {
		return "", fmt.Errorf("no archiver configured: %w", domain.ErrInvalidArgument)
	}
	hctx := s.historian.Aggregate(scientificName, source)
	return s.archiver.Archive(ctx, hctx)
}
