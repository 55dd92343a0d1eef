// Package reversal records failed or returned instructions and appends the
// ledger rows that put the debt back on the debtor's account.
package reversal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/i18n"
	"github.com/openbuilders/sepa-collector/internal/metrics"
	"github.com/openbuilders/sepa-collector/internal/types"
)

type Config struct {
	Location *time.Location
}

type Repository interface {
	InTx(context.Context, func(context.Context) error) error
	GetInstruction(context.Context, int64) (*types.Instruction, error)
	GetBatch(context.Context, int64) (*types.Batch, error)
	GetMandate(context.Context, int64) (*types.Mandate, error)
	GetReversal(ctx context.Context, instructionID int64) (*types.Reversal, error)
	CreateReversal(context.Context, *types.Reversal) error
	InstructionTransactions(ctx context.Context, instructionID int64) ([]types.Transaction, error)
	GetMembership(context.Context, int64) (*types.Membership, error)
	DeletePayment(ctx context.Context, membershipID int64) error
	GetPersons(context.Context, []int64) (map[int64]types.Person, error)
	AddTransaction(context.Context, *types.Transaction) error
	AddEvent(context.Context, types.Event) error
}

type Processor struct {
	config *Config
	repo   Repository
	tr     *i18n.Translator
	log    *slog.Logger
}

type ReversalRequest struct {
	InstructionID int64
	Date          time.Time
	PreSettlement bool
	Reason        types.ReversalReason
}

type RecordedEvent struct {
	ReversalID    int64                `json:"reversalId"`
	InstructionID int64                `json:"instructionId"`
	MandateID     int64                `json:"mandateId"`
	Reason        types.ReversalReason `json:"reason"`
	PreSettlement bool                 `json:"preSettlement"`
	Amount        string               `json:"amount"`
}

func New(config *Config, repo Repository, tr *i18n.Translator) *Processor {
	return &Processor{
		config: config,
		repo:   repo,
		tr:     tr,
		log:    slog.With("component", "reversal"),
	}
}

// Process records the reversal of an instruction. An instruction can only
// be reversed once.
func (p *Processor) Process(ctx context.Context, req ReversalRequest, actorID int64) (*types.Reversal, error) {
	if !req.Reason.Valid() {
		return nil, errors.InvalidInput("unknown reversal reason %q", req.Reason)
	}

	reversal := &types.Reversal{
		InstructionID: req.InstructionID,
		Date:          helpers.Midnight(req.Date, p.config.Location),
		PreSettlement: req.PreSettlement,
		Reason:        req.Reason,
	}

	var instruction *types.Instruction
	var mandate *types.Mandate

	err := p.repo.InTx(ctx, func(ctx context.Context) error {
		var err error

		instruction, err = p.repo.GetInstruction(ctx, req.InstructionID)
		if err != nil {
			return err
		}

		existing, err := p.repo.GetReversal(ctx, instruction.ID)
		if err != nil {
			return fmt.Errorf("get reversal: %w", err)
		}
		if existing != nil {
			return errors.Precondition("instruction %d is already reversed", instruction.ID)
		}

		mandate, err = p.repo.GetMandate(ctx, instruction.MandateID)
		if err != nil {
			return err
		}
		if mandate.IsAnonymized() {
			return errors.Precondition("mandate %d of instruction %d is anonymized", mandate.ID, instruction.ID)
		}

		batch, err := p.repo.GetBatch(ctx, instruction.BatchID)
		if err != nil {
			return err
		}

		if err := p.repo.CreateReversal(ctx, reversal); err != nil {
			return fmt.Errorf("create reversal: %w", err)
		}

		return p.appendLedger(ctx, reversal, instruction, batch, *mandate.PersonID, actorID)
	})
	if err != nil {
		return nil, err
	}

	metrics.ReversalsProcessed.WithLabelValues(string(reversal.Reason)).Inc()

	p.log.Info("Reversal processed",
		"instruction", instruction.ID,
		"reversal", reversal.ID,
		"reason", reversal.Reason,
		"preSettlement", reversal.PreSettlement,
	)

	return reversal, nil
}

func (p *Processor) appendLedger(ctx context.Context, reversal *types.Reversal, instruction *types.Instruction,
	batch *types.Batch, personID, actorID int64) error {

	txs, err := p.repo.InstructionTransactions(ctx, instruction.ID)
	if err != nil {
		return fmt.Errorf("instruction transactions: %w", err)
	}

	personIDs := []int64{personID}
	for _, t := range txs {
		personIDs = append(personIDs, t.PersonID)
	}

	persons, err := p.repo.GetPersons(ctx, personIDs)
	if err != nil {
		return fmt.Errorf("persons: %w", err)
	}

	reversalID := reversal.ID
	rt := types.Transaction{
		Kind:        types.TxReversal,
		Date:        reversal.Date,
		Amount:      instruction.Amount,
		PersonID:    personID,
		Description: p.tr.Reversal(persons[personID].PreferredLanguage, batch.ExecutionDate),
		ReversalID:  &reversalID,
		AddedBy:     &actorID,
	}
	if err := p.repo.AddTransaction(ctx, &rt); err != nil {
		return errors.DataIntegrity(err, "reversal transaction for instruction %d", instruction.ID)
	}

	for _, ct := range txs {
		// Earlier negations are not linked to the instruction, only the
		// recognized contribution is.
		if ct.Kind != types.TxContribution || !ct.Amount.IsPositive() || ct.MembershipID == nil {
			continue
		}

		membership, err := p.repo.GetMembership(ctx, *ct.MembershipID)
		if err != nil {
			return err
		}

		if err := p.repo.DeletePayment(ctx, membership.ID); err != nil {
			return errors.DataIntegrity(err, "delete payment of membership %d", membership.ID)
		}

		negated := types.Transaction{
			Kind:         types.TxContribution,
			Date:         reversal.Date,
			Amount:       ct.Amount.Neg(),
			PersonID:     ct.PersonID,
			Description:  p.tr.ContributionReversed(persons[ct.PersonID].PreferredLanguage, membership.TypeName, membership.Year),
			MembershipID: ct.MembershipID,
		}
		if err := p.repo.AddTransaction(ctx, &negated); err != nil {
			return errors.DataIntegrity(err, "contribution reversal for membership %d", membership.ID)
		}
	}

	event, err := types.NewEvent(types.EventReversalRecorded, RecordedEvent{
		ReversalID:    reversal.ID,
		InstructionID: instruction.ID,
		MandateID:     instruction.MandateID,
		Reason:        reversal.Reason,
		PreSettlement: reversal.PreSettlement,
		Amount:        instruction.Amount.StringFixed(2),
	}, time.Now())
	if err != nil {
		return err
	}

	return p.repo.AddEvent(ctx, event)
}
