// Package schedule derives daily quarantine task lists from treatment
// records. All date comparisons operate on UTC calendar days supplied by an
// injectable clock.
package schedule

import (
	"time"

	"shoalcore/pkg/domain"
)

// FollowupLeadDays is the gap between a treatment's end date and its
// follow-up assessment.
const FollowupLeadDays = 5

// DefaultOverdueGraceDays is how many days past the follow-up date a missing
// assessment is tolerated before it counts as overdue.
const DefaultOverdueGraceDays = 2

// Clock yields the current time. Implementations must be safe for concurrent
// use.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface. A nil ClockFunc falls
// back to the UTC system time.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Records is the read surface the scheduler consumes. domain.PersistentStore
// satisfies it.
type Records interface {
	ListTreatments() []domain.Treatment
	FollowupForTreatment(treatmentID string) (domain.FollowupAssessment, bool)
}

// DailyTasks groups the treatment work due on a given day.
type DailyTasks struct {
	Date            time.Time          `json:"date"`
	Active          []domain.Treatment `json:"active"`
	EndingToday     []domain.Treatment `json:"ending_today"`
	FollowupsNeeded []domain.Treatment `json:"followups_needed"`
}

// Workload estimates the day's effort.
type Workload struct {
	TotalActive          int `json:"total_active"`
	EndingToday          int `json:"ending_today"`
	FollowupsToday       int `json:"followups_today"`
	ObservationsNeeded   int `json:"observations_needed"`
	EstimatedTimeMinutes int `json:"estimated_time_minutes"`
}

// Scheduler computes task lists against an injectable clock.
type Scheduler struct {
	records Records
	clock   Clock
}

// NewScheduler constructs a scheduler. A nil clock means UTC system time.
func NewScheduler(records Records, clock Clock) *Scheduler {
	if clock == nil {
		clock = ClockFunc(nil)
	}
	return &Scheduler{records: records, clock: clock}
}

// day truncates t to its UTC calendar day.
func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sameDay reports whether two instants fall on the same UTC day.
func sameDay(a, b time.Time) bool {
	return day(a).Equal(day(b))
}

// Today returns the scheduler's current UTC day.
func (s *Scheduler) Today() time.Time {
	return day(s.clock.Now())
}

// Active returns all treatments currently in active status.
func (s *Scheduler) Active() []domain.Treatment {
	var out []domain.Treatment
	for _, t := range s.records.ListTreatments() {
		if t.Status == domain.TreatmentStatusActive {
			out = append(out, t)
		}
	}
	return out
}

// EndingToday returns active treatments whose end date is today.
func (s *Scheduler) EndingToday() []domain.Treatment {
	today := s.Today()
	var out []domain.Treatment
	for _, t := range s.records.ListTreatments() {
		if t.Status != domain.TreatmentStatusActive || t.EndDate == nil {
			continue
		}
		if sameDay(*t.EndDate, today) {
			out = append(out, t)
		}
	}
	return out
}

// NeedingFollowup returns completed treatments whose end date is exactly
// FollowupLeadDays ago and which have no recorded assessment yet. The match
// is exact by day: a treatment surfaces here on its follow-up day only, and
// recording the assessment removes it.
func (s *Scheduler) NeedingFollowup() []domain.Treatment {
	target := s.Today().AddDate(0, 0, -FollowupLeadDays)
	var out []domain.Treatment
	for _, t := range s.records.ListTreatments() {
		if t.Status != domain.TreatmentStatusCompleted || t.EndDate == nil {
			continue
		}
		if !sameDay(*t.EndDate, target) {
			continue
		}
		if _, ok := s.records.FollowupForTreatment(t.ID); ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// OverdueFollowups returns completed treatments whose follow-up window has
// lapsed by at least graceDays beyond FollowupLeadDays and which still have
// no recorded assessment.
func (s *Scheduler) OverdueFollowups(graceDays int) []domain.Treatment {
	cutoff := s.Today().AddDate(0, 0, -(FollowupLeadDays + graceDays))
	var out []domain.Treatment
	for _, t := range s.records.ListTreatments() {
		if t.Status != domain.TreatmentStatusCompleted || t.EndDate == nil {
			continue
		}
		if day(*t.EndDate).After(cutoff) {
			continue
		}
		if _, ok := s.records.FollowupForTreatment(t.ID); ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Tasks assembles the complete task list for today.
func (s *Scheduler) Tasks() DailyTasks {
	return DailyTasks{
		Date:            s.Today(),
		Active:          s.Active(),
		EndingToday:     s.EndingToday(),
		FollowupsNeeded: s.NeedingFollowup(),
	}
}

// DaysRemaining returns the whole days left in a treatment. Treatments with
// no end date report false; end dates in the past report zero, never a
// negative value.
func (s *Scheduler) DaysRemaining(t domain.Treatment) (int, bool) {
	if t.EndDate == nil {
		return 0, false
	}
	days := int(day(*t.EndDate).Sub(s.Today()).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, true
}

// ShouldSendReminder reports whether a daily reminder applies: the treatment
// is active and has not already passed its end date.
func (s *Scheduler) ShouldSendReminder(t domain.Treatment) bool {
	if t.Status != domain.TreatmentStatusActive {
		return false
	}
	if t.EndDate != nil && day(*t.EndDate).Before(s.Today()) {
		return false
	}
	return true
}

// EstimateWorkload sizes today's effort: five minutes per active treatment
// observation plus ten per follow-up assessment.
func (s *Scheduler) EstimateWorkload() Workload {
	active := s.Active()
	ending := s.EndingToday()
	followups := s.NeedingFollowup()
	return Workload{
		TotalActive:          len(active),
		EndingToday:          len(ending),
		FollowupsToday:       len(followups),
		ObservationsNeeded:   len(active),
		EstimatedTimeMinutes: len(active)*5 + len(followups)*10,
	}
}

// FollowupDate returns the scheduled follow-up day for an end date.
func FollowupDate(endDate time.Time) time.Time {
	return day(endDate).AddDate(0, 0, FollowupLeadDays)
}
