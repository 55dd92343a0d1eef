package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/openbuilders/sepa-collector/internal/types"
)

const selectTransactions = `
	SELECT id, kind, date, amount, person_id, description, instruction_id, membership_id, reversal_id,
		added_by, added_on
	FROM transactions`

func (p *Postgres) transactions(ctx context.Context, query string, args ...any) ([]types.Transaction, error) {
	rows, err := p.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[types.Transaction])
}

// UncollectedTransactions returns the rows in [from, to) that no instruction
// collects yet.
func (p *Postgres) UncollectedTransactions(ctx context.Context, from, to time.Time) ([]types.Transaction, error) {
	return p.transactions(ctx, selectTransactions+`
		WHERE instruction_id IS NULL AND date >= $1 AND date < $2
		ORDER BY id`, from, to)
}

func (p *Postgres) AddTransaction(ctx context.Context, t *types.Transaction) error {
	if t.AddedOn.IsZero() {
		t.AddedOn = time.Now()
	}

	err := p.q(ctx).QueryRow(ctx, `
		INSERT INTO transactions (kind, date, amount, person_id, description, instruction_id, membership_id,
			reversal_id, added_by, added_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		t.Kind, t.Date, t.Amount, t.PersonID, t.Description, t.InstructionID, t.MembershipID,
		t.ReversalID, t.AddedBy, t.AddedOn,
	).Scan(&t.ID)
	if err != nil {
		return mapError(err, fmt.Sprintf("%s transaction of person %d", t.Kind, t.PersonID))
	}

	return nil
}

// LinkTransactions marks the uncollected rows among ids as collected by the
// instruction and returns how many were linked.
func (p *Postgres) LinkTransactions(ctx context.Context, ids []int64, instructionID int64) (int, error) {
	tag, err := p.q(ctx).Exec(ctx, `
		UPDATE transactions SET instruction_id = $2
		WHERE id = ANY($1) AND instruction_id IS NULL`, ids, instructionID)
	if err != nil {
		return 0, fmt.Errorf("link transactions to instruction %d: %w", instructionID, err)
	}

	return int(tag.RowsAffected()), nil
}

func (p *Postgres) InstructionTransactions(ctx context.Context, instructionID int64) ([]types.Transaction, error) {
	return p.transactions(ctx, selectTransactions+` WHERE instruction_id = $1 ORDER BY id`, instructionID)
}

// PersonActivities returns per person the date of the latest transaction and
// the balance of all transactions since epoch.
func (p *Postgres) PersonActivities(ctx context.Context, epoch time.Time) ([]types.PersonActivity, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT person_id, MAX(date) AS last_transaction_date,
			COALESCE(SUM(amount) FILTER (WHERE date >= $1), 0) AS balance
		FROM transactions
		GROUP BY person_id
		ORDER BY person_id`, epoch)
	if err != nil {
		return nil, fmt.Errorf("query person activities: %w", err)
	}

	return pgx.CollectRows(rows, pgx.RowToStructByName[types.PersonActivity])
}
