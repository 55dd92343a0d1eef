package batcher

import (
	"context"
	"fmt"
	"time"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/metrics"
	"github.com/openbuilders/sepa-collector/internal/types"
)

func validate(p *types.Proposal, batch *types.Batch) error {
	if !p.Instructable() {
		return errors.Precondition("proposal for person %d cannot be collected", p.PersonID)
	}
	if p.SequenceType != batch.SequenceType {
		return errors.Precondition("proposal for person %d is %s, batch %d is %s",
			p.PersonID, p.SequenceType, batch.ID, batch.SequenceType)
	}

	switch p.Kind {
	case types.ProposalContribution:
		if p.MembershipID == nil {
			return errors.Precondition("contribution proposal for person %d has no membership", p.PersonID)
		}
	case types.ProposalTab:
		if len(p.TransactionIDs) == 0 {
			return errors.Precondition("tab proposal for person %d has no transactions", p.PersonID)
		}
	default:
		return errors.Precondition("unknown proposal kind %q", p.Kind)
	}

	return nil
}

// save runs inside the caller's unit of work. consumed tracks amendments
// already sent with an earlier instruction of the same run.
func (b *Batcher) save(ctx context.Context, proposals []types.Proposal, batch *types.Batch,
	consumed map[int64]bool) ([]types.Instruction, error) {

	if batch.Status != types.StatusNew {
		return nil, errors.Precondition("batch %d is %s", batch.ID, batch.Status)
	}

	for i := range proposals {
		if err := validate(&proposals[i], batch); err != nil {
			return nil, err
		}
	}

	personIDs := make([]int64, 0, len(proposals))
	for _, p := range proposals {
		personIDs = append(personIDs, p.PersonID)
	}

	persons, err := b.repo.GetPersons(ctx, personIDs)
	if err != nil {
		return nil, fmt.Errorf("persons: %w", err)
	}

	executionDate := helpers.Midnight(batch.ExecutionDate, b.config.Location)
	saved := make([]types.Instruction, 0, len(proposals))

	for _, p := range proposals {
		instruction := types.Instruction{
			BatchID:     batch.ID,
			MandateID:   *p.MandateID,
			Description: p.Description,
			Amount:      p.Amount,
		}

		if p.AmendmentID != nil && !consumed[*p.AmendmentID] {
			id := *p.AmendmentID
			instruction.AmendmentID = &id
			consumed[id] = true
		}

		if err := b.repo.CreateInstruction(ctx, &instruction); err != nil {
			return nil, fmt.Errorf("create instruction for person %d: %w", p.PersonID, err)
		}

		instruction.EndToEndID = b.config.Prefixes.EndToEndID(instruction.ID)
		if err := b.repo.SetEndToEndID(ctx, instruction.ID, instruction.EndToEndID); err != nil {
			return nil, fmt.Errorf("set end-to-end id of instruction %d: %w", instruction.ID, err)
		}

		lang := persons[p.PersonID].PreferredLanguage
		instructionID := instruction.ID

		switch p.Kind {
		case types.ProposalContribution:
			err = b.saveContribution(ctx, &p, instructionID, lang, executionDate)
		case types.ProposalTab:
			err = b.saveTab(ctx, &p, instructionID, lang, executionDate)
		}
		if err != nil {
			return nil, err
		}

		metrics.InstructionsSaved.WithLabelValues(string(p.Kind), string(batch.SequenceType)).Inc()
		metrics.AmountCollected.WithLabelValues(string(p.Kind)).Add(p.Amount.InexactFloat64())

		saved = append(saved, instruction)
	}

	return saved, nil
}

func (b *Batcher) saveContribution(ctx context.Context, p *types.Proposal, instructionID int64,
	lang string, executionDate time.Time) error {

	recognized := types.Transaction{
		Kind:          types.TxContribution,
		Date:          executionDate,
		Amount:        p.Amount,
		PersonID:      p.PersonID,
		Description:   b.tr.ContributionRecognized(lang, p.MembershipType, p.Year),
		InstructionID: &instructionID,
		MembershipID:  p.MembershipID,
	}
	if err := b.repo.AddTransaction(ctx, &recognized); err != nil {
		return errors.DataIntegrity(err, "contribution transaction for instruction %d", instructionID)
	}

	collected := types.Transaction{
		Kind:          types.TxDebtCollection,
		Date:          executionDate,
		Amount:        p.Amount.Neg(),
		PersonID:      p.PersonID,
		Description:   b.tr.ContributionCollected(lang, executionDate),
		InstructionID: &instructionID,
	}
	if err := b.repo.AddTransaction(ctx, &collected); err != nil {
		return errors.DataIntegrity(err, "debt collection transaction for instruction %d", instructionID)
	}

	payment := types.Payment{
		MembershipID: *p.MembershipID,
		Date:         executionDate,
		Method:       types.PaymentMethodDirectDebit,
		Amount:       p.Amount,
	}
	if err := b.repo.CreatePayment(ctx, &payment); err != nil {
		return errors.DataIntegrity(err, "payment of membership %d", *p.MembershipID)
	}

	return nil
}

func (b *Batcher) saveTab(ctx context.Context, p *types.Proposal, instructionID int64,
	lang string, executionDate time.Time) error {

	linked, err := b.repo.LinkTransactions(ctx, p.TransactionIDs, instructionID)
	if err != nil {
		return errors.DataIntegrity(err, "link transactions to instruction %d", instructionID)
	}
	if linked != len(p.TransactionIDs) {
		return errors.DataIntegrity(nil, "%d of %d transactions of person %d are already collected",
			len(p.TransactionIDs)-linked, len(p.TransactionIDs), p.PersonID)
	}

	collected := types.Transaction{
		Kind:          types.TxDebtCollection,
		Date:          executionDate,
		Amount:        p.Amount.Neg(),
		PersonID:      p.PersonID,
		Description:   b.tr.TabCollected(lang, executionDate),
		InstructionID: &instructionID,
	}
	if err := b.repo.AddTransaction(ctx, &collected); err != nil {
		return errors.DataIntegrity(err, "debt collection transaction for instruction %d", instructionID)
	}

	return nil
}
