package memory

import (
	"context"
	"slices"
	"time"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/types"
)

func (r *Repository) GetMandate(_ context.Context, id int64) (*types.Mandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.s.mandates[id]
	if !ok {
		return nil, errors.NotFound("mandate %d not found", id)
	}

	return &m, nil
}

// LockMandate is GetMandate: units of work are already serialized.
func (r *Repository) LockMandate(ctx context.Context, id int64) (*types.Mandate, error) {
	return r.GetMandate(ctx, id)
}

func (r *Repository) GetMandates(_ context.Context, ids []int64) ([]types.Mandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.Mandate
	for _, m := range sortedValues(r.s.mandates) {
		if slices.Contains(ids, m.ID) {
			out = append(out, m)
		}
	}

	return out, nil
}

func (r *Repository) AllMandates(_ context.Context) ([]types.Mandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedValues(r.s.mandates), nil
}

func (r *Repository) MandatesForPersons(_ context.Context, personIDs []int64) ([]types.Mandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.Mandate
	for _, m := range sortedValues(r.s.mandates) {
		if m.PersonID != nil && slices.Contains(personIDs, *m.PersonID) {
			out = append(out, m)
		}
	}

	return out, nil
}

// amendmentsLocked returns all amendments with InstructionID set from the
// instruction that consumed them.
func (r *Repository) amendmentsLocked() []types.Amendment {
	consumedBy := make(map[int64]int64)
	for _, i := range r.s.instructions {
		if i.AmendmentID != nil {
			consumedBy[*i.AmendmentID] = i.ID
		}
	}

	out := sortedValues(r.s.amendments)
	for i := range out {
		if instructionID, ok := consumedBy[out[i].ID]; ok {
			out[i].InstructionID = &instructionID
		}
	}

	return out
}

func (r *Repository) PendingAmendment(_ context.Context, mandateID int64) (*types.Amendment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.amendmentsLocked() {
		if a.MandateID == mandateID && a.Pending() {
			return &a, nil
		}
	}

	return nil, nil
}

func (r *Repository) InstructionStates(_ context.Context, mandateID int64) ([]types.InstructionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reversed := make(map[int64]types.Reversal)
	for _, rev := range r.s.reversals {
		reversed[rev.InstructionID] = rev
	}

	var out []types.InstructionState
	for _, i := range sortedValues(r.s.instructions) {
		if i.MandateID != mandateID {
			continue
		}

		b := r.s.batches[i.BatchID]
		rev, ok := reversed[i.ID]

		out = append(out, types.InstructionState{
			InstructionID: i.ID,
			BatchStatus:   b.Status,
			BatchSequence: b.SequenceType,
			ExecutionDate: b.ExecutionDate,
			Reversed:      ok,
			PreSettlement: ok && rev.PreSettlement,
		})
	}

	return out, nil
}

func (r *Repository) InstructionSchedule(_ context.Context) ([]types.ScheduledInstruction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.ScheduledInstruction
	for _, i := range sortedValues(r.s.instructions) {
		out = append(out, types.ScheduledInstruction{
			MandateID:     i.MandateID,
			ExecutionDate: r.s.batches[i.BatchID].ExecutionDate,
		})
	}

	return out, nil
}

func (r *Repository) CreateAmendment(_ context.Context, a *types.Amendment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("CreateAmendment"); err != nil {
		return err
	}

	a.ID = r.id()
	stored := *a
	stored.InstructionID = nil
	r.s.amendments[a.ID] = stored

	return nil
}

func (r *Repository) UpdateMandateAccount(_ context.Context, id int64, iban, bic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.s.mandates[id]
	if !ok {
		return errors.NotFound("mandate %d not found", id)
	}

	m.IBAN = iban
	m.BIC = bic
	r.s.mandates[id] = m

	return nil
}

func (r *Repository) AnonymizeMandate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.s.mandates[id]
	if !ok {
		return errors.NotFound("mandate %d not found", id)
	}

	m.PersonID = nil
	m.IBAN = ""
	m.BIC = ""
	m.AccountHolderName = ""
	r.s.mandates[id] = m

	for aid, a := range r.s.amendments {
		if a.MandateID == id {
			a.PreviousIBAN = ""
			a.PreviousBIC = ""
			r.s.amendments[aid] = a
		}
	}

	return nil
}

func (r *Repository) TerminateMandate(_ context.Context, id int64, endDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.s.mandates[id]
	if !ok {
		return errors.NotFound("mandate %d not found", id)
	}

	m.EndDate = &endDate
	r.s.mandates[id] = m

	return nil
}
