package memory

import (
	"context"
	"time"

	"github.com/openbuilders/sepa-collector/internal/types"
	"github.com/shopspring/decimal"
)

// UncollectedTransactions returns the rows in [from, to) that no instruction
// collects yet.
func (r *Repository) UncollectedTransactions(_ context.Context, from, to time.Time) ([]types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.Transaction
	for _, t := range sortedValues(r.s.transactions) {
		if t.Collected() || t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		out = append(out, t)
	}

	return out, nil
}

func (r *Repository) AddTransaction(_ context.Context, t *types.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("AddTransaction"); err != nil {
		return err
	}

	t.ID = r.id()
	if t.AddedOn.IsZero() {
		t.AddedOn = time.Now()
	}
	r.s.transactions[t.ID] = *t

	return nil
}

// LinkTransactions marks the uncollected rows among ids as collected by the
// instruction and returns how many were linked.
func (r *Repository) LinkTransactions(_ context.Context, ids []int64, instructionID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("LinkTransactions"); err != nil {
		return 0, err
	}

	linked := 0
	for _, id := range ids {
		t, ok := r.s.transactions[id]
		if !ok || t.Collected() {
			continue
		}

		t.InstructionID = &instructionID
		r.s.transactions[id] = t
		linked++
	}

	return linked, nil
}

func (r *Repository) InstructionTransactions(_ context.Context, instructionID int64) ([]types.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.Transaction
	for _, t := range sortedValues(r.s.transactions) {
		if t.InstructionID != nil && *t.InstructionID == instructionID {
			out = append(out, t)
		}
	}

	return out, nil
}

// PersonActivities returns per person the date of the latest transaction and
// the balance of all transactions since epoch.
func (r *Repository) PersonActivities(_ context.Context, epoch time.Time) ([]types.PersonActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byPerson := make(map[int64]*types.PersonActivity)
	var order []int64

	for _, t := range sortedValues(r.s.transactions) {
		a, ok := byPerson[t.PersonID]
		if !ok {
			a = &types.PersonActivity{PersonID: t.PersonID, BalanceSinceEpoch: decimal.Zero}
			byPerson[t.PersonID] = a
			order = append(order, t.PersonID)
		}

		if a.LastTransactionDate == nil || t.Date.After(*a.LastTransactionDate) {
			d := t.Date
			a.LastTransactionDate = &d
		}

		if !t.Date.Before(epoch) {
			a.BalanceSinceEpoch = a.BalanceSinceEpoch.Add(t.Amount)
		}
	}

	out := make([]types.PersonActivity, 0, len(order))
	for _, id := range order {
		out = append(out, *byPerson[id])
	}

	return out, nil
}
