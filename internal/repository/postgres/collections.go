package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/openbuilders/sepa-collector/internal/types"
)

func (p *Postgres) CreateAssignment(ctx context.Context, a *types.Assignment) error {
	if a.CreatedOn.IsZero() {
		a.CreatedOn = time.Now()
	}

	err := p.q(ctx).QueryRow(ctx, `
		INSERT INTO assignments (description, created_on, start, "end")
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		a.Description, a.CreatedOn, a.Start, a.End,
	).Scan(&a.ID)
	if err != nil {
		return mapError(err, "assignment")
	}

	return nil
}

func (p *Postgres) CreateBatch(ctx context.Context, b *types.Batch) error {
	err := p.q(ctx).QueryRow(ctx, `
		INSERT INTO batches (assignment_id, execution_date, sequence_type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		b.AssignmentID, b.ExecutionDate, b.SequenceType, b.Status,
	).Scan(&b.ID)
	if err != nil {
		return mapError(err, fmt.Sprintf("batch of assignment %d", b.AssignmentID))
	}

	return nil
}

func (p *Postgres) batch(ctx context.Context, id int64, query string) (*types.Batch, error) {
	rows, err := p.q(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("batch %d", id))
	}

	b, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.Batch])
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("batch %d", id))
	}

	return &b, nil
}

func (p *Postgres) GetBatch(ctx context.Context, id int64) (*types.Batch, error) {
	return p.batch(ctx, id, `
		SELECT id, assignment_id, execution_date, sequence_type, status FROM batches WHERE id = $1`)
}

func (p *Postgres) LockBatch(ctx context.Context, id int64) (*types.Batch, error) {
	return p.batch(ctx, id, `
		SELECT id, assignment_id, execution_date, sequence_type, status FROM batches WHERE id = $1 FOR UPDATE`)
}

func (p *Postgres) UpdateBatchStatus(ctx context.Context, id int64, status types.BatchStatus) error {
	tag, err := p.q(ctx).Exec(ctx, `UPDATE batches SET status = $2 WHERE id = $1`, id, status)
	return notFoundIfNone(tag, err, fmt.Sprintf("batch %d", id))
}

// CreateInstruction fails with a conflict when the amendment was already
// sent with another instruction.
func (p *Postgres) CreateInstruction(ctx context.Context, i *types.Instruction) error {
	err := p.q(ctx).QueryRow(ctx, `
		INSERT INTO instructions (batch_id, mandate_id, end_to_end_id, description, amount, amendment_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		i.BatchID, i.MandateID, i.EndToEndID, i.Description, i.Amount, i.AmendmentID,
	).Scan(&i.ID)
	if err != nil {
		return mapError(err, fmt.Sprintf("instruction for mandate %d", i.MandateID))
	}

	return nil
}

func (p *Postgres) SetEndToEndID(ctx context.Context, id int64, endToEndID string) error {
	tag, err := p.q(ctx).Exec(ctx, `UPDATE instructions SET end_to_end_id = $2 WHERE id = $1`, id, endToEndID)
	return notFoundIfNone(tag, err, fmt.Sprintf("instruction %d", id))
}

func (p *Postgres) GetInstruction(ctx context.Context, id int64) (*types.Instruction, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT id, batch_id, mandate_id, end_to_end_id, description, amount, amendment_id
		FROM instructions WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("instruction %d", id))
	}

	i, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.Instruction])
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("instruction %d", id))
	}

	return &i, nil
}

// GetReversal returns nil if the instruction was not reversed.
func (p *Postgres) GetReversal(ctx context.Context, instructionID int64) (*types.Reversal, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT id, instruction_id, date, pre_settlement, reason
		FROM reversals WHERE instruction_id = $1`, instructionID)
	if err != nil {
		return nil, fmt.Errorf("query reversal: %w", err)
	}

	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.Reversal])
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reversal of instruction %d: %w", instructionID, err)
	}

	return &r, nil
}

func (p *Postgres) CreateReversal(ctx context.Context, r *types.Reversal) error {
	err := p.q(ctx).QueryRow(ctx, `
		INSERT INTO reversals (instruction_id, date, pre_settlement, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		r.InstructionID, r.Date, r.PreSettlement, r.Reason,
	).Scan(&r.ID)
	if err != nil {
		return mapError(err, fmt.Sprintf("reversal of instruction %d", r.InstructionID))
	}

	return nil
}

const selectInstructionDetails = `
	SELECT i.id, i.batch_id, i.mandate_id, i.end_to_end_id, i.description, i.amount, i.amendment_id,
		b.id, b.assignment_id, b.execution_date, b.sequence_type, b.status,
		m.id, m.person_id, m.iban, m.bic, m.account_holder_name, m.is_signed, m.start_date, m.end_date,
		t.id, t.name, t.contribution, t.consumptions, t.activities, t.other_payments,
		p.id, p.first_name, p.initials, p.last_name_prefix, p.last_name, p.preferred_language,
		r.id, r.date, r.pre_settlement, r.reason
	FROM instructions i
	JOIN batches b ON b.id = i.batch_id
	JOIN mandates m ON m.id = i.mandate_id
	JOIN mandate_types t ON t.id = m.type_id
	LEFT JOIN persons p ON p.id = m.person_id
	LEFT JOIN reversals r ON r.instruction_id = i.id`

func scanInstructionDetail(row pgx.CollectableRow) (types.InstructionDetail, error) {
	var (
		d types.InstructionDetail

		personID                            *int64
		first, initials, prefix, last, lang *string
		reversalID                          *int64
		reversalDate                        *time.Time
		preSettlement                       *bool
		reason                              *string
	)

	i, b, m := &d.Instruction, &d.Batch, &d.Mandate
	err := row.Scan(
		&i.ID, &i.BatchID, &i.MandateID, &i.EndToEndID, &i.Description, &i.Amount, &i.AmendmentID,
		&b.ID, &b.AssignmentID, &b.ExecutionDate, &b.SequenceType, &b.Status,
		&m.ID, &m.PersonID, &m.IBAN, &m.BIC, &m.AccountHolderName, &m.IsSigned, &m.StartDate, &m.EndDate,
		&m.Type.ID, &m.Type.Name, &m.Type.Contribution, &m.Type.Consumptions, &m.Type.Activities, &m.Type.OtherPayments,
		&personID, &first, &initials, &prefix, &last, &lang,
		&reversalID, &reversalDate, &preSettlement, &reason,
	)
	if err != nil {
		return d, err
	}

	if personID != nil {
		d.Person = &types.Person{
			ID:                *personID,
			FirstName:         *first,
			Initials:          *initials,
			LastNamePrefix:    *prefix,
			LastName:          *last,
			PreferredLanguage: *lang,
		}
	}

	if reversalID != nil {
		d.Reversal = &types.Reversal{
			ID:            *reversalID,
			InstructionID: i.ID,
			Date:          *reversalDate,
			PreSettlement: *preSettlement,
			Reason:        types.ReversalReason(*reason),
		}
	}

	return d, nil
}

func (p *Postgres) GetInstructionDetail(ctx context.Context, id int64) (*types.InstructionDetail, error) {
	rows, err := p.q(ctx).Query(ctx, selectInstructionDetails+` WHERE i.id = $1`, id)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("instruction %d", id))
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanInstructionDetail)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("instruction %d", id))
	}

	return &d, nil
}

func (p *Postgres) GetAssignmentDetail(ctx context.Context, id int64) (*types.AssignmentDetail, error) {
	rows, err := p.q(ctx).Query(ctx, `
		SELECT id, description, created_on, start, "end" FROM assignments WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("assignment %d", id))
	}

	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[types.Assignment])
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("assignment %d", id))
	}

	rows, err = p.q(ctx).Query(ctx, `
		SELECT id, assignment_id, execution_date, sequence_type, status
		FROM batches WHERE assignment_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query batches of assignment %d: %w", id, err)
	}

	batches, err := pgx.CollectRows(rows, pgx.RowToStructByName[types.Batch])
	if err != nil {
		return nil, fmt.Errorf("collect batches of assignment %d: %w", id, err)
	}

	rows, err = p.q(ctx).Query(ctx, selectInstructionDetails+` WHERE b.assignment_id = $1 ORDER BY i.id`, id)
	if err != nil {
		return nil, fmt.Errorf("query instructions of assignment %d: %w", id, err)
	}

	instructions, err := pgx.CollectRows(rows, scanInstructionDetail)
	if err != nil {
		return nil, fmt.Errorf("collect instructions of assignment %d: %w", id, err)
	}

	detail := &types.AssignmentDetail{Assignment: a}
	for _, b := range batches {
		bd := types.BatchDetail{Batch: b}
		for _, i := range instructions {
			if i.BatchID == b.ID {
				bd.Instructions = append(bd.Instructions, i)
			}
		}
		detail.Batches = append(detail.Batches, bd)
	}

	return detail, nil
}
