// Package memory is an in-process repository used by the tests and by local
// dry runs. Units of work are serialized and rolled back by restoring a
// snapshot of the state.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/openbuilders/sepa-collector/internal/types"
)

type txKey struct{}

type state struct {
	persons      map[int64]types.Person
	mandates     map[int64]types.Mandate
	amendments   map[int64]types.Amendment
	memberships  map[int64]types.Membership
	payments     map[int64]types.Payment
	transactions map[int64]types.Transaction
	assignments  map[int64]types.Assignment
	batches      map[int64]types.Batch
	instructions map[int64]types.Instruction
	reversals    map[int64]types.Reversal
	events       []types.Event
	nextID       int64
}

func (s *state) clone() state {
	return state{
		persons:      maps.Clone(s.persons),
		mandates:     maps.Clone(s.mandates),
		amendments:   maps.Clone(s.amendments),
		memberships:  maps.Clone(s.memberships),
		payments:     maps.Clone(s.payments),
		transactions: maps.Clone(s.transactions),
		assignments:  maps.Clone(s.assignments),
		batches:      maps.Clone(s.batches),
		instructions: maps.Clone(s.instructions),
		reversals:    maps.Clone(s.reversals),
		events:       slices.Clone(s.events),
		nextID:       s.nextID,
	}
}

type Repository struct {
	txMu sync.Mutex
	mu   sync.Mutex
	s    state

	// FailOn makes the named write operation fail, used to test rollbacks.
	FailOn map[string]error
}

func New() *Repository {
	return &Repository{
		s: state{
			persons:      make(map[int64]types.Person),
			mandates:     make(map[int64]types.Mandate),
			amendments:   make(map[int64]types.Amendment),
			memberships:  make(map[int64]types.Membership),
			payments:     make(map[int64]types.Payment),
			transactions: make(map[int64]types.Transaction),
			assignments:  make(map[int64]types.Assignment),
			batches:      make(map[int64]types.Batch),
			instructions: make(map[int64]types.Instruction),
			reversals:    make(map[int64]types.Reversal),
		},
		FailOn: make(map[string]error),
	}
}

// InTx runs fn as one unit of work. Nested units of work are rejected.
func (r *Repository) InTx(ctx context.Context, fn func(context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fmt.Errorf("nested unit of work")
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.s.clone()
	r.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		r.mu.Lock()
		r.s = snapshot
		r.mu.Unlock()

		return err
	}

	return nil
}

func (r *Repository) id() int64 {
	r.s.nextID++
	return r.s.nextID
}

// claim returns id, or a fresh one when id is zero, and keeps generated ids
// clear of explicitly seeded ones.
func (r *Repository) claim(id int64) int64 {
	if id == 0 {
		return r.id()
	}
	if id > r.s.nextID {
		r.s.nextID = id
	}
	return id
}

func (r *Repository) fail(op string) error {
	if err, ok := r.FailOn[op]; ok {
		return err
	}
	return nil
}

func sortedValues[T any](m map[int64]T) []T {
	keys := slices.Sorted(maps.Keys(m))

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}

	return out
}
