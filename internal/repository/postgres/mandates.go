package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/openbuilders/sepa-collector/internal/types"
)

const selectMandates = `
	SELECT m.id, m.person_id, m.iban, m.bic, m.account_holder_name, m.is_signed, m.start_date, m.end_date,
		t.id, t.name, t.contribution, t.consumptions, t.activities, t.other_payments
	FROM mandates m
	JOIN mandate_types t ON t.id = m.type_id`

func scanMandate(row pgx.CollectableRow) (types.Mandate, error) {
	var m types.Mandate
	err := row.Scan(&m.ID, &m.PersonID, &m.IBAN, &m.BIC, &m.AccountHolderName, &m.IsSigned, &m.StartDate, &m.EndDate,
		&m.Type.ID, &m.Type.Name, &m.Type.Contribution, &m.Type.Consumptions, &m.Type.Activities, &m.Type.OtherPayments)
	return m, err
}

func (p *Postgres) mandates(ctx context.Context, query string, args ...any) ([]types.Mandate, error) {
	rows, err := p.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mandates: %w", err)
	}
	return pgx.CollectRows(rows, scanMandate)
}

func (p *Postgres) mandate(ctx context.Context, id int64, query string) (*types.Mandate, error) {
	rows, err := p.q(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("mandate %d", id))
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanMandate)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("mandate %d", id))
	}

	return &m, nil
}

func (p *Postgres) GetMandate(ctx context.Context, id int64) (*types.Mandate, error) {
	return p.mandate(ctx, id, selectMandates+` WHERE m.id = $1`)
}

// LockMandate reads the mandate and locks its row until the end of the
// surrounding unit of work.
func (p *Postgres) LockMandate(ctx context.Context, id int64) (*types.Mandate, error) {
	return p.mandate(ctx, id, selectMandates+` WHERE m.id = $1 FOR UPDATE OF m`)
}

func (p *Postgres) GetMandates(ctx context.Context, ids []int64) ([]types.Mandate, error) {
	return p.mandates(ctx, selectMandates+` WHERE m.id = ANY($1) ORDER BY m.id`, ids)
}

func (p *Postgres) AllMandates(ctx context.Context) ([]types.Mandate, error) {
	return p.mandates(ctx, selectMandates+` ORDER BY m.id`)
}

func (p *Postgres) MandatesForPersons(ctx context.Context, personIDs []int64) ([]types.Mandate, error) {
	return p.mandates(ctx, selectMandates+` WHERE m.person_id = ANY($1) ORDER BY m.id`, personIDs)
}

func (p *Postgres) PendingAmendment(ctx context.Context, mandateID int64) (*types.Amendment, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT a.id, a.mandate_id, a.date, a.previous_iban, a.previous_bic, a.other_bank, a.reason,
			NULL::BIGINT AS instruction_id
		FROM amendments a
		WHERE a.mandate_id = $1
			AND NOT EXISTS (SELECT 1 FROM instructions i WHERE i.amendment_id = a.id)
		ORDER BY a.id
		LIMIT 1`, mandateID)
	if err != nil {
		return nil, fmt.Errorf("query pending amendment: %w", err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.Amendment])
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending amendment of mandate %d: %w", mandateID, err)
	}

	return &a, nil
}

func (p *Postgres) InstructionStates(ctx context.Context, mandateID int64) ([]types.InstructionState, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT i.id AS instruction_id, b.status AS batch_status, b.sequence_type AS batch_sequence,
			b.execution_date, r.id IS NOT NULL AS reversed, COALESCE(r.pre_settlement, FALSE) AS pre_settlement
		FROM instructions i
		JOIN batches b ON b.id = i.batch_id
		LEFT JOIN reversals r ON r.instruction_id = i.id
		WHERE i.mandate_id = $1
		ORDER BY i.id`, mandateID)
	if err != nil {
		return nil, fmt.Errorf("query instruction states: %w", err)
	}

	return pgx.CollectRows(rows, pgx.RowToStructByName[types.InstructionState])
}

func (p *Postgres) InstructionSchedule(ctx context.Context) ([]types.ScheduledInstruction, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT i.mandate_id, b.execution_date
		FROM instructions i
		JOIN batches b ON b.id = i.batch_id
		ORDER BY i.id`)
	if err != nil {
		return nil, fmt.Errorf("query instruction schedule: %w", err)
	}

	return pgx.CollectRows(rows, pgx.RowToStructByName[types.ScheduledInstruction])
}

func (p *Postgres) CreateAmendment(ctx context.Context, a *types.Amendment) error {
	err := p.q(ctx).QueryRow(ctx, `
		INSERT INTO amendments (mandate_id, date, previous_iban, previous_bic, other_bank, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.MandateID, a.Date, a.PreviousIBAN, a.PreviousBIC, a.OtherBank, a.Reason,
	).Scan(&a.ID)
	if err != nil {
		return mapError(err, fmt.Sprintf("amendment of mandate %d", a.MandateID))
	}

	a.InstructionID = nil
	return nil
}

func (p *Postgres) UpdateMandateAccount(ctx context.Context, id int64, iban, bic string) error {
	tag, err := p.q(ctx).Exec(ctx, `UPDATE mandates SET iban = $2, bic = $3 WHERE id = $1`, id, iban, bic)
	return notFoundIfNone(tag, err, fmt.Sprintf("mandate %d", id))
}

// AnonymizeMandate removes the personal data of the mandate and its
// amendments. The mandate row itself is kept for the instructions that
// reference it.
func (p *Postgres) AnonymizeMandate(ctx context.Context, id int64) error {
	tag, err := p.q(ctx).Exec(ctx, `
		UPDATE mandates SET person_id = NULL, iban = '', bic = '', account_holder_name = ''
		WHERE id = $1`, id)
	if err := notFoundIfNone(tag, err, fmt.Sprintf("mandate %d", id)); err != nil {
		return err
	}

	_, err = p.q(ctx).Exec(ctx, `
		UPDATE amendments SET previous_iban = '', previous_bic = ''
		WHERE mandate_id = $1`, id)
	if err != nil {
		return fmt.Errorf("anonymize amendments of mandate %d: %w", id, err)
	}

	return nil
}

func (p *Postgres) TerminateMandate(ctx context.Context, id int64, endDate time.Time) error {
	tag, err := p.q(ctx).Exec(ctx, `UPDATE mandates SET end_date = $2 WHERE id = $1`, id, endDate)
	return notFoundIfNone(tag, err, fmt.Sprintf("mandate %d", id))
}
