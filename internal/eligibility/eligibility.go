// Package eligibility decides which mandates may be terminated for being
// unused and which ended mandates may be anonymized.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/types"
)

// Windows are the retention windows in days.
type Windows struct {
	GracePeriodDays       int
	IdleMandateDays       int
	RecentActivityDays    int
	AnonymizeAfterEndDays int
	AnonymizeIdleDays     int
}

var DefaultWindows = Windows{
	GracePeriodDays:       180,
	IdleMandateDays:       720,
	RecentActivityDays:    90,
	AnonymizeAfterEndDays: 60,
	AnonymizeIdleDays:     500,
}

// Snapshot is everything the predicates look at.
type Snapshot struct {
	Mandates    []types.Mandate
	Schedule    []types.ScheduledInstruction
	Memberships []types.Membership
	Activity    []types.PersonActivity
}

type Evaluator struct {
	windows Windows
	loc     *time.Location
}

func NewEvaluator(windows Windows, loc *time.Location) *Evaluator {
	return &Evaluator{windows: windows, loc: loc}
}

type index struct {
	executions map[int64][]time.Time
	members    map[int64][]types.Membership
	activity   map[int64]types.PersonActivity
}

func (e *Evaluator) newIndex(s *Snapshot) *index {
	idx := &index{
		executions: make(map[int64][]time.Time),
		members:    make(map[int64][]types.Membership),
		activity:   make(map[int64]types.PersonActivity),
	}

	for _, i := range s.Schedule {
		idx.executions[i.MandateID] = append(idx.executions[i.MandateID], helpers.CalendarDay(i.ExecutionDate, e.loc))
	}
	for _, m := range s.Memberships {
		idx.members[m.PersonID] = append(idx.members[m.PersonID], m)
	}
	for _, a := range s.Activity {
		idx.activity[a.PersonID] = a
	}

	return idx
}

// executesSince reports whether the mandate has an instruction executing on
// or after day.
func (idx *index) executesSince(mandateID int64, day time.Time) bool {
	for _, d := range idx.executions[mandateID] {
		if !d.Before(day) {
			return true
		}
	}
	return false
}

func (idx *index) positiveBalance(personID *int64) bool {
	if personID == nil {
		return false
	}
	return idx.activity[*personID].BalanceSinceEpoch.IsPositive()
}

func (idx *index) activeSince(personID *int64, t time.Time) bool {
	if personID == nil {
		return false
	}

	last := idx.activity[*personID].LastTransactionDate
	return last != nil && !last.Before(t)
}

// currentOrGraceMember: a membership not ended before the grace period and
// of the association year of the start of the grace period or later.
func (e *Evaluator) currentOrGraceMember(idx *index, personID *int64, now time.Time) bool {
	if personID == nil {
		return false
	}

	graceStart := now.AddDate(0, 0, -e.windows.GracePeriodDays)
	year := types.AssociationYear(graceStart.In(e.loc))

	for _, m := range idx.members[*personID] {
		if m.Year < year {
			continue
		}
		if m.Ended == nil || !m.Ended.Before(graceStart) {
			return true
		}
	}

	return false
}

// ToTerminate returns the ids of active mandates that are no longer used.
func (e *Evaluator) ToTerminate(s *Snapshot, now time.Time) []int64 {
	idx := e.newIndex(s)
	today := helpers.Midnight(now, e.loc)

	idleCutoff := today.AddDate(0, 0, -e.windows.IdleMandateDays)
	recentDay := today.AddDate(0, 0, -e.windows.RecentActivityDays)
	recentTime := now.AddDate(0, 0, -e.windows.RecentActivityDays)

	var ids []int64
	for _, m := range s.Mandates {
		if !m.IsActive() {
			continue
		}

		if m.Type.Kind() == types.KindGeneral {
			if idx.activeSince(m.PersonID, recentTime) ||
				idx.executesSince(m.ID, recentDay) ||
				idx.positiveBalance(m.PersonID) {
				continue
			}
		}

		notMember := !e.currentOrGraceMember(idx, m.PersonID, now)
		idle := helpers.CalendarDay(m.StartDate, e.loc).Before(idleCutoff) && !idx.executesSince(m.ID, idleCutoff)

		if notMember || idle {
			ids = append(ids, m.ID)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// ToAnonymize returns the ids of ended mandates whose personal data may be
// removed.
func (e *Evaluator) ToAnonymize(s *Snapshot, now time.Time) []int64 {
	idx := e.newIndex(s)
	today := helpers.Midnight(now, e.loc)

	endedCutoff := today.AddDate(0, 0, -e.windows.AnonymizeAfterEndDays)
	idleCutoff := today.AddDate(0, 0, -e.windows.AnonymizeIdleDays)

	var ids []int64
	for _, m := range s.Mandates {
		if m.IsAnonymized() || m.EndDate == nil {
			continue
		}
		if helpers.CalendarDay(*m.EndDate, e.loc).After(endedCutoff) {
			continue
		}

		if idx.executesSince(m.ID, idleCutoff) {
			continue
		}

		if m.Type.Kind() == types.KindGeneral {
			if idx.positiveBalance(m.PersonID) || idx.executesSince(m.ID, today) {
				continue
			}
		}

		ids = append(ids, m.ID)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

type Repository interface {
	InTx(context.Context, func(context.Context) error) error
	AllMandates(context.Context) ([]types.Mandate, error)
	InstructionSchedule(context.Context) ([]types.ScheduledInstruction, error)
	MembershipsSince(ctx context.Context, year int) ([]types.Membership, error)
	PersonActivities(ctx context.Context, epoch time.Time) ([]types.PersonActivity, error)
}

type Config struct {
	Windows  Windows
	Epoch    time.Time
	Location *time.Location
}

// Service evaluates the predicates over the current state of the repository.
type Service struct {
	config    *Config
	evaluator *Evaluator
	repo      Repository
	log       *slog.Logger
}

func NewService(config *Config, repo Repository) *Service {
	return &Service{
		config:    config,
		evaluator: NewEvaluator(config.Windows, config.Location),
		repo:      repo,
		log:       slog.With("component", "eligibility"),
	}
}

// Load reads the snapshot in one unit of work. The unit of work runs read
// committed: each query sees what was committed when that query started.
func (s *Service) Load(ctx context.Context, now time.Time) (*Snapshot, error) {
	snapshot := &Snapshot{}

	// Memberships older than the grace period can never count.
	graceStart := now.AddDate(0, 0, -s.config.Windows.GracePeriodDays)
	minYear := types.AssociationYear(graceStart.In(s.config.Location))

	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error

		if snapshot.Mandates, err = s.repo.AllMandates(ctx); err != nil {
			return fmt.Errorf("mandates: %w", err)
		}
		if snapshot.Schedule, err = s.repo.InstructionSchedule(ctx); err != nil {
			return fmt.Errorf("instruction schedule: %w", err)
		}
		if snapshot.Memberships, err = s.repo.MembershipsSince(ctx, minYear); err != nil {
			return fmt.Errorf("memberships: %w", err)
		}
		if snapshot.Activity, err = s.repo.PersonActivities(ctx, s.config.Epoch); err != nil {
			return fmt.Errorf("person activities: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (s *Service) ToTerminate(ctx context.Context, now time.Time) ([]int64, error) {
	snapshot, err := s.Load(ctx, now)
	if err != nil {
		return nil, err
	}

	ids := s.evaluator.ToTerminate(snapshot, now)
	s.log.Debug("Mandates to terminate", "count", len(ids))

	return ids, nil
}

func (s *Service) ToAnonymize(ctx context.Context, now time.Time) ([]int64, error) {
	snapshot, err := s.Load(ctx, now)
	if err != nil {
		return nil, err
	}

	ids := s.evaluator.ToAnonymize(snapshot, now)
	s.log.Debug("Mandates to anonymize", "count", len(ids))

	return ids, nil
}
