// Package generator proposes collection instructions for unpaid membership
// contributions and outstanding personal tabs. Nothing is written: the
// proposals are classified into buckets for an operator to select from.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/i18n"
	"github.com/openbuilders/sepa-collector/internal/mandate"
	"github.com/openbuilders/sepa-collector/internal/types"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Epoch is the moment direct debits took effect. Older ledger rows are
	// never collected.
	Epoch    time.Time
	Location *time.Location
}

type Repository interface {
	InTx(context.Context, func(context.Context) error) error
	MembershipsForYear(ctx context.Context, year int) ([]types.Membership, error)
	GetPersons(context.Context, []int64) (map[int64]types.Person, error)
	MandatesForPersons(context.Context, []int64) ([]types.Mandate, error)
	PendingAmendment(context.Context, int64) (*types.Amendment, error)
	InstructionStates(context.Context, int64) ([]types.InstructionState, error)
	UncollectedTransactions(ctx context.Context, from, to time.Time) ([]types.Transaction, error)
}

type Generator struct {
	config *Config
	repo   Repository
	tr     *i18n.Translator
	log    *slog.Logger
}

func New(config *Config, repo Repository, tr *i18n.Translator) *Generator {
	return &Generator{
		config: config,
		repo:   repo,
		tr:     tr,
		log:    slog.With("component", "generator"),
	}
}

// sequencer caches the next sequence type and pending amendment per mandate
// for the duration of one run.
type sequencer struct {
	repo  Repository
	cache map[int64]sequenceState
}

type sequenceState struct {
	seq     types.SequenceType
	pending *types.Amendment
}

func newSequencer(repo Repository) *sequencer {
	return &sequencer{repo: repo, cache: make(map[int64]sequenceState)}
}

func (s *sequencer) next(ctx context.Context, mandateID int64) (sequenceState, error) {
	if st, ok := s.cache[mandateID]; ok {
		return st, nil
	}

	pending, err := s.repo.PendingAmendment(ctx, mandateID)
	if err != nil {
		return sequenceState{}, fmt.Errorf("pending amendment of mandate %d: %w", mandateID, err)
	}

	history, err := s.repo.InstructionStates(ctx, mandateID)
	if err != nil {
		return sequenceState{}, fmt.Errorf("instruction states of mandate %d: %w", mandateID, err)
	}

	st := sequenceState{seq: mandate.NextSequenceType(pending, history), pending: pending}
	s.cache[mandateID] = st

	return st, nil
}

func (st sequenceState) amendmentID() *int64 {
	if st.pending == nil {
		return nil
	}
	id := st.pending.ID
	return &id
}

// ContributionInstructions proposes instructions for the unpaid memberships
// of an association year.
func (g *Generator) ContributionInstructions(ctx context.Context, year int, today time.Time) (*types.ContributionBuckets, error) {
	buckets := &types.ContributionBuckets{}
	day := helpers.Midnight(today, g.config.Location)

	err := g.repo.InTx(ctx, func(ctx context.Context) error {
		all, err := g.repo.MembershipsForYear(ctx, year)
		if err != nil {
			return fmt.Errorf("memberships: %w", err)
		}

		var memberships []types.Membership
		for _, m := range all {
			if m.Paid || !m.Fee.IsPositive() {
				continue
			}
			if m.Ended != nil && !m.Ended.After(day) {
				continue
			}
			memberships = append(memberships, m)
		}

		personIDs := make([]int64, 0, len(memberships))
		for _, m := range memberships {
			personIDs = append(personIDs, m.PersonID)
		}

		persons, err := g.repo.GetPersons(ctx, personIDs)
		if err != nil {
			return fmt.Errorf("persons: %w", err)
		}

		mandates, err := g.repo.MandatesForPersons(ctx, personIDs)
		if err != nil {
			return fmt.Errorf("mandates: %w", err)
		}
		byPerson := groupByPerson(mandates)

		seq := newSequencer(g.repo)

		for _, m := range memberships {
			person := persons[m.PersonID]
			membershipID := m.ID

			row := types.Proposal{
				Kind:           types.ProposalContribution,
				PersonID:       m.PersonID,
				PersonName:     person.IncompleteName(),
				Amount:         m.Fee,
				MembershipID:   &membershipID,
				MembershipType: m.TypeName,
				Year:           m.Year,
			}

			best := bestContributionMandate(byPerson[m.PersonID])
			if best == nil {
				buckets.NoAuthorization = append(buckets.NoAuthorization, row)
				continue
			}

			mandateID := best.ID
			row.MandateID = &mandateID

			st, err := seq.next(ctx, best.ID)
			if err != nil {
				return err
			}

			if st.seq == types.SequenceUndetermined {
				row.SequenceType = st.seq
				buckets.OngoingFRST = append(buckets.OngoingFRST, row)
				continue
			}

			row.SequenceType = st.seq
			row.AmendmentID = st.amendmentID()
			row.Description = helpers.SEPAText(
				g.tr.ContributionInstruction(person.PreferredLanguage, m.TypeName, row.PersonName),
				helpers.MaxDescriptionLength,
			)

			if st.seq == types.SequenceFRST {
				buckets.FRST = append(buckets.FRST, row)
			} else {
				buckets.RCUR = append(buckets.RCUR, row)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("Generated contribution proposals",
		"year", year,
		"frst", len(buckets.FRST),
		"rcur", len(buckets.RCUR),
		"ongoingFrst", len(buckets.OngoingFRST),
		"noAuthorization", len(buckets.NoAuthorization),
	)

	return buckets, nil
}

// TabInstructions proposes instructions for the uncollected personal tab
// transactions dated before end.
func (g *Generator) TabInstructions(ctx context.Context, end time.Time) (*types.TabBuckets, error) {
	buckets := &types.TabBuckets{}

	err := g.repo.InTx(ctx, func(ctx context.Context) error {
		txs, err := g.repo.UncollectedTransactions(ctx, g.config.Epoch, end)
		if err != nil {
			return fmt.Errorf("uncollected transactions: %w", err)
		}

		type tab struct {
			sum decimal.Decimal
			ids []int64
		}

		tabs := make(map[int64]*tab)
		for _, t := range txs {
			tb, ok := tabs[t.PersonID]
			if !ok {
				tb = &tab{sum: decimal.Zero}
				tabs[t.PersonID] = tb
			}
			tb.sum = tb.sum.Add(t.Amount)
			tb.ids = append(tb.ids, t.ID)
		}

		personIDs := make([]int64, 0, len(tabs))
		for id := range tabs {
			personIDs = append(personIDs, id)
		}
		sort.Slice(personIDs, func(i, j int) bool { return personIDs[i] < personIDs[j] })

		persons, err := g.repo.GetPersons(ctx, personIDs)
		if err != nil {
			return fmt.Errorf("persons: %w", err)
		}

		mandates, err := g.repo.MandatesForPersons(ctx, personIDs)
		if err != nil {
			return fmt.Errorf("mandates: %w", err)
		}
		byPerson := groupByPerson(mandates)

		seq := newSequencer(g.repo)

		for _, personID := range personIDs {
			tb := tabs[personID]
			if tb.sum.IsZero() {
				continue
			}

			person := persons[personID]
			row := types.Proposal{
				Kind:           types.ProposalTab,
				PersonID:       personID,
				PersonName:     person.IncompleteName(),
				Amount:         tb.sum,
				TransactionIDs: tb.ids,
			}

			best := bestTabMandate(byPerson[personID])
			if best != nil {
				mandateID := best.ID
				row.MandateID = &mandateID
			}

			if tb.sum.IsNegative() {
				buckets.Negative = append(buckets.Negative, row)
				continue
			}
			if best == nil {
				buckets.NoAuthorization = append(buckets.NoAuthorization, row)
				continue
			}

			st, err := seq.next(ctx, best.ID)
			if err != nil {
				return err
			}

			row.SequenceType = st.seq
			if st.seq == types.SequenceUndetermined {
				buckets.OngoingFRST = append(buckets.OngoingFRST, row)
				continue
			}

			row.AmendmentID = st.amendmentID()
			row.Description = helpers.SEPAText(
				g.tr.TabInstruction(person.PreferredLanguage, end, row.PersonName),
				helpers.MaxDescriptionLength,
			)

			switch {
			case !best.IsActive() && st.seq == types.SequenceFRST:
				buckets.TerminatedFRST = append(buckets.TerminatedFRST, row)
			case !best.IsActive():
				buckets.TerminatedRCUR = append(buckets.TerminatedRCUR, row)
			case st.seq == types.SequenceFRST:
				buckets.FRST = append(buckets.FRST, row)
			default:
				buckets.RCUR = append(buckets.RCUR, row)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("Generated personal tab proposals",
		"end", end,
		"frst", len(buckets.FRST),
		"rcur", len(buckets.RCUR),
		"terminatedFrst", len(buckets.TerminatedFRST),
		"terminatedRcur", len(buckets.TerminatedRCUR),
		"ongoingFrst", len(buckets.OngoingFRST),
		"noAuthorization", len(buckets.NoAuthorization),
		"negative", len(buckets.Negative),
	)

	return buckets, nil
}

func groupByPerson(mandates []types.Mandate) map[int64][]types.Mandate {
	out := make(map[int64][]types.Mandate)
	for _, m := range mandates {
		if m.PersonID == nil {
			continue
		}
		out[*m.PersonID] = append(out[*m.PersonID], m)
	}
	return out
}

// bestContributionMandate picks the signed, unterminated mandate usable for
// contributions with the lowest type id.
func bestContributionMandate(mandates []types.Mandate) *types.Mandate {
	var best *types.Mandate
	for i := range mandates {
		m := &mandates[i]
		if !m.IsActive() || !m.Type.Contribution {
			continue
		}
		if best == nil || m.Type.ID < best.Type.ID || (m.Type.ID == best.Type.ID && m.ID < best.ID) {
			best = m
		}
	}
	return best
}

// bestTabMandate prefers active consumption mandates and falls back to
// terminated ones. Among equals the most complete type wins.
func bestTabMandate(mandates []types.Mandate) *types.Mandate {
	var candidates []types.Mandate
	for _, m := range mandates {
		if m.IsSigned && m.Type.Consumptions {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.IsActive() != b.IsActive() {
			return a.IsActive()
		}
		if a.Type.GeneralRank() != b.Type.GeneralRank() {
			return a.Type.GeneralRank() < b.Type.GeneralRank()
		}
		if a.Type.ID != b.Type.ID {
			return a.Type.ID < b.Type.ID
		}
		return a.ID < b.ID
	})

	return &candidates[0]
}
