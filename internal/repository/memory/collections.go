package memory

import (
	"context"
	"time"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/types"
)

func (r *Repository) CreateAssignment(_ context.Context, a *types.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("CreateAssignment"); err != nil {
		return err
	}

	a.ID = r.id()
	if a.CreatedOn.IsZero() {
		a.CreatedOn = time.Now()
	}
	r.s.assignments[a.ID] = *a

	return nil
}

func (r *Repository) CreateBatch(_ context.Context, b *types.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("CreateBatch"); err != nil {
		return err
	}

	if _, ok := r.s.assignments[b.AssignmentID]; !ok {
		return errors.NotFound("assignment %d not found", b.AssignmentID)
	}

	b.ID = r.id()
	r.s.batches[b.ID] = *b

	return nil
}

func (r *Repository) GetBatch(_ context.Context, id int64) (*types.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.s.batches[id]
	if !ok {
		return nil, errors.NotFound("batch %d not found", id)
	}

	return &b, nil
}

func (r *Repository) LockBatch(ctx context.Context, id int64) (*types.Batch, error) {
	return r.GetBatch(ctx, id)
}

func (r *Repository) UpdateBatchStatus(_ context.Context, id int64, status types.BatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.s.batches[id]
	if !ok {
		return errors.NotFound("batch %d not found", id)
	}

	b.Status = status
	r.s.batches[id] = b

	return nil
}

func (r *Repository) CreateInstruction(_ context.Context, i *types.Instruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("CreateInstruction"); err != nil {
		return err
	}

	if i.AmendmentID != nil {
		for _, other := range r.s.instructions {
			if other.AmendmentID != nil && *other.AmendmentID == *i.AmendmentID {
				return errors.Conflict("amendment %d is already sent", *i.AmendmentID)
			}
		}
	}

	i.ID = r.id()
	r.s.instructions[i.ID] = *i

	return nil
}

func (r *Repository) SetEndToEndID(_ context.Context, id int64, endToEndID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.s.instructions[id]
	if !ok {
		return errors.NotFound("instruction %d not found", id)
	}

	i.EndToEndID = endToEndID
	r.s.instructions[id] = i

	return nil
}

func (r *Repository) GetInstruction(_ context.Context, id int64) (*types.Instruction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.s.instructions[id]
	if !ok {
		return nil, errors.NotFound("instruction %d not found", id)
	}

	return &i, nil
}

func (r *Repository) GetReversal(_ context.Context, instructionID int64) (*types.Reversal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rev := range r.s.reversals {
		if rev.InstructionID == instructionID {
			return &rev, nil
		}
	}

	return nil, nil
}

func (r *Repository) CreateReversal(_ context.Context, rev *types.Reversal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("CreateReversal"); err != nil {
		return err
	}

	for _, existing := range r.s.reversals {
		if existing.InstructionID == rev.InstructionID {
			return errors.Conflict("instruction %d is already reversed", rev.InstructionID)
		}
	}

	rev.ID = r.id()
	r.s.reversals[rev.ID] = *rev

	return nil
}

func (r *Repository) GetAssignmentDetail(_ context.Context, id int64) (*types.AssignmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.s.assignments[id]
	if !ok {
		return nil, errors.NotFound("assignment %d not found", id)
	}

	detail := &types.AssignmentDetail{Assignment: a}

	reversals := make(map[int64]types.Reversal)
	for _, rev := range r.s.reversals {
		reversals[rev.InstructionID] = rev
	}

	instructions := sortedValues(r.s.instructions)

	for _, b := range sortedValues(r.s.batches) {
		if b.AssignmentID != id {
			continue
		}

		bd := types.BatchDetail{Batch: b}
		for _, i := range instructions {
			if i.BatchID != b.ID {
				continue
			}

			m := r.s.mandates[i.MandateID]
			d := types.InstructionDetail{Instruction: i, Batch: b, Mandate: m}

			if m.PersonID != nil {
				if p, ok := r.s.persons[*m.PersonID]; ok {
					d.Person = &p
				}
			}
			if rev, ok := reversals[i.ID]; ok {
				d.Reversal = &rev
			}

			bd.Instructions = append(bd.Instructions, d)
		}

		detail.Batches = append(detail.Batches, bd)
	}

	return detail, nil
}

// GetInstructionDetail loads an instruction with its batch, mandate, person
// and reversal.
func (r *Repository) GetInstructionDetail(_ context.Context, id int64) (*types.InstructionDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.s.instructions[id]
	if !ok {
		return nil, errors.NotFound("instruction %d not found", id)
	}

	d := &types.InstructionDetail{
		Instruction: i,
		Batch:       r.s.batches[i.BatchID],
		Mandate:     r.s.mandates[i.MandateID],
	}

	if d.Mandate.PersonID != nil {
		if p, ok := r.s.persons[*d.Mandate.PersonID]; ok {
			d.Person = &p
		}
	}

	for _, rev := range r.s.reversals {
		if rev.InstructionID == id {
			d.Reversal = &rev
			break
		}
	}

	return d, nil
}
