package memory

import (
	"context"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/types"
)

func (r *Repository) GetPersons(_ context.Context, ids []int64) (map[int64]types.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64]types.Person, len(ids))
	for _, id := range ids {
		if p, ok := r.s.persons[id]; ok {
			out[id] = p
		}
	}

	return out, nil
}

func (r *Repository) membershipLocked(m types.Membership) types.Membership {
	m.Paid = false
	for _, p := range r.s.payments {
		if p.MembershipID == m.ID {
			m.Paid = true
			break
		}
	}
	return m
}

func (r *Repository) MembershipsForYear(_ context.Context, year int) ([]types.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.Membership
	for _, m := range sortedValues(r.s.memberships) {
		if m.Year == year {
			out = append(out, r.membershipLocked(m))
		}
	}

	return out, nil
}

func (r *Repository) MembershipsSince(_ context.Context, year int) ([]types.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []types.Membership
	for _, m := range sortedValues(r.s.memberships) {
		if m.Year >= year {
			out = append(out, r.membershipLocked(m))
		}
	}

	return out, nil
}

func (r *Repository) GetMembership(_ context.Context, id int64) (*types.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.s.memberships[id]
	if !ok {
		return nil, errors.NotFound("membership %d not found", id)
	}

	m = r.membershipLocked(m)

	return &m, nil
}

func (r *Repository) CreatePayment(_ context.Context, p *types.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("CreatePayment"); err != nil {
		return err
	}

	for _, existing := range r.s.payments {
		if existing.MembershipID == p.MembershipID {
			return errors.Conflict("membership %d is already paid", p.MembershipID)
		}
	}

	p.ID = r.id()
	r.s.payments[p.ID] = *p

	return nil
}

func (r *Repository) DeletePayment(_ context.Context, membershipID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.s.payments {
		if p.MembershipID == membershipID {
			delete(r.s.payments, id)
		}
	}

	return nil
}
