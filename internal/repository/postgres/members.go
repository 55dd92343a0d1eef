package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/openbuilders/sepa-collector/internal/types"
)

const selectMemberships = `
	SELECT ms.id, ms.person_id, ms.type_name, ms.fee, ms.year, ms.ended,
		EXISTS (SELECT 1 FROM payments p WHERE p.membership_id = ms.id) AS paid
	FROM memberships ms`

func (p *Postgres) GetPersons(ctx context.Context, ids []int64) (map[int64]types.Person, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT id, first_name, initials, last_name_prefix, last_name, preferred_language
		FROM persons
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}

	persons, err := pgx.CollectRows(rows, pgx.RowToStructByName[types.Person])
	if err != nil {
		return nil, fmt.Errorf("collect persons: %w", err)
	}

	out := make(map[int64]types.Person, len(persons))
	for _, person := range persons {
		out[person.ID] = person
	}

	return out, nil
}

func (p *Postgres) memberships(ctx context.Context, query string, args ...any) ([]types.Membership, error) {
	rows, err := p.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[types.Membership])
}

func (p *Postgres) MembershipsForYear(ctx context.Context, year int) ([]types.Membership, error) {
	return p.memberships(ctx, selectMemberships+` WHERE ms.year = $1 ORDER BY ms.id`, year)
}

func (p *Postgres) MembershipsSince(ctx context.Context, year int) ([]types.Membership, error) {
	return p.memberships(ctx, selectMemberships+` WHERE ms.year >= $1 ORDER BY ms.id`, year)
}

func (p *Postgres) GetMembership(ctx context.Context, id int64) (*types.Membership, error) {
	rows, err := p.q(ctx).Query(ctx, selectMemberships+` WHERE ms.id = $1`, id)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("membership %d", id))
	}

	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.Membership])
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("membership %d", id))
	}

	return &m, nil
}

// CreatePayment fails with a conflict when the membership is already paid.
func (p *Postgres) CreatePayment(ctx context.Context, payment *types.Payment) error {
	err := p.q(ctx).QueryRow(ctx, `
		INSERT INTO payments (membership_id, date, method, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		payment.MembershipID, payment.Date, payment.Method, payment.Amount,
	).Scan(&payment.ID)
	if err != nil {
		return mapError(err, fmt.Sprintf("payment of membership %d", payment.MembershipID))
	}

	return nil
}

func (p *Postgres) DeletePayment(ctx context.Context, membershipID int64) error {
	_, err := p.q(ctx).Exec(ctx, `DELETE FROM payments WHERE membership_id = $1`, membershipID)
	if err != nil {
		return fmt.Errorf("delete payment of membership %d: %w", membershipID, err)
	}
	return nil
}
