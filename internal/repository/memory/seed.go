package memory

import (
	"github.com/openbuilders/sepa-collector/internal/types"
)

// PutPerson stores p as is.
func (r *Repository) PutPerson(p types.Person) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.s.persons[p.ID] = p
}

// PutMandate stores m, assigning an id when it has none.
func (r *Repository) PutMandate(m types.Mandate) types.Mandate {
	r.mu.Lock()
	defer r.mu.Unlock()

	m.ID = r.claim(m.ID)
	r.s.mandates[m.ID] = m

	return m
}

func (r *Repository) PutMembership(m types.Membership) types.Membership {
	r.mu.Lock()
	defer r.mu.Unlock()

	m.ID = r.claim(m.ID)
	r.s.memberships[m.ID] = m

	return m
}

func (r *Repository) PutTransaction(t types.Transaction) types.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = r.claim(t.ID)
	r.s.transactions[t.ID] = t

	return t
}

func (r *Repository) PutAssignment(a types.Assignment) types.Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.ID = r.claim(a.ID)
	r.s.assignments[a.ID] = a

	return a
}

func (r *Repository) PutBatch(b types.Batch) types.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()

	b.ID = r.claim(b.ID)
	r.s.batches[b.ID] = b

	return b
}

func (r *Repository) PutInstruction(i types.Instruction) types.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()

	i.ID = r.claim(i.ID)
	r.s.instructions[i.ID] = i

	return i
}

func (r *Repository) PutReversal(rev types.Reversal) types.Reversal {
	r.mu.Lock()
	defer r.mu.Unlock()

	rev.ID = r.claim(rev.ID)
	r.s.reversals[rev.ID] = rev

	return rev
}

func (r *Repository) Transactions() []types.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedValues(r.s.transactions)
}

func (r *Repository) Payments() []types.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedValues(r.s.payments)
}

func (r *Repository) Instructions() []types.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedValues(r.s.instructions)
}

func (r *Repository) Batches() []types.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()

	return sortedValues(r.s.batches)
}

func (r *Repository) Amendments() []types.Amendment {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.amendmentsLocked()
}

func (r *Repository) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]types.Event(nil), r.s.events...)
}
