// Package batcher persists selected proposals as instructions in batches,
// together with the ledger rows that recognize and collect the debt.
package batcher

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

const MaxAssignmentDescription = 50

type Config struct {
	Location *time.Location
	Prefixes types.Prefixes
}

type Repository interface {
	InTx(context.Context, func(context.Context) error) error
	GetPersons(context.Context, []int64) (map[int64]types.Person, error)
	CreateAssignment(context.Context, *types.Assignment) error
	CreateBatch(context.Context, *types.Batch) error
	LockBatch(context.Context, int64) (*types.Batch, error)
	UpdateBatchStatus(context.Context, int64, types.BatchStatus) error
	CreateInstruction(context.Context, *types.Instruction) error
	SetEndToEndID(ctx context.Context, id int64, endToEndID string) error
	AddTransaction(context.Context, *types.Transaction) error
	LinkTransactions(ctx context.Context, ids []int64, instructionID int64) (int, error)
	CreatePayment(context.Context, *types.Payment) error
	AddEvent(context.Context, types.Event) error
}

type Batcher struct {
	config *Config
	repo   Repository
	tr     *i18n.Translator
	log    *slog.Logger
}

type CommitRequest struct {
	Description   string
	ExecutionDate time.Time
	Start         *time.Time
	End           *time.Time
	FRST          []types.Proposal
	RCUR          []types.Proposal
}

type CommitResult struct {
	Assignment   types.Assignment    `json:"assignment"`
	Batches      []types.Batch       `json:"batches"`
	Instructions []types.Instruction `json:"instructions"`
}

type AssignmentCreatedEvent struct {
	AssignmentID int64   `json:"assignmentId"`
	BatchIDs     []int64 `json:"batchIds"`
	Instructions int     `json:"instructions"`
	ControlSum   string  `json:"controlSum"`
}

type BatchStatusEvent struct {
	BatchID int64             `json:"batchId"`
	From    types.BatchStatus `json:"from"`
	To      types.BatchStatus `json:"to"`
}

func New(config *Config, repo Repository, tr *i18n.Translator) *Batcher {
	return &Batcher{
		config: config,
		repo:   repo,
		tr:     tr,
		log:    slog.With("component", "batcher"),
	}
}

// Save persists proposals as instructions of an existing NEW batch.
func (b *Batcher) Save(ctx context.Context, proposals []types.Proposal, batchID int64) ([]types.Instruction, error) {
	var saved []types.Instruction

	err := b.repo.InTx(ctx, func(ctx context.Context) error {
		batch, err := b.repo.LockBatch(ctx, batchID)
		if err != nil {
			return err
		}

		saved, err = b.save(ctx, proposals, batch, make(map[int64]bool))
		return err
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// Commit creates an assignment with a FRST and/or a RCUR batch holding the
// given proposals.
func (b *Batcher) Commit(ctx context.Context, req CommitRequest, now time.Time) (*CommitResult, error) {
	if req.Description == "" || len(req.Description) > MaxAssignmentDescription {
		return nil, errors.InvalidInput("description must be between 1 and %d characters", MaxAssignmentDescription)
	}
	if len(req.FRST) == 0 && len(req.RCUR) == 0 {
		return nil, errors.InvalidInput("nothing selected")
	}

	executionDate := helpers.Midnight(req.ExecutionDate, b.config.Location)
	minimal := helpers.MinimalExecutionDate(now, b.config.Location)

	if executionDate.Before(minimal) {
		return nil, errors.InvalidInput("execution date %s is too soon, first possible date is %s",
			executionDate.Format(time.DateOnly), minimal.Format(time.DateOnly))
	}
	if helpers.IsWeekend(executionDate) {
		return nil, errors.InvalidInput("execution date %s is during the weekend", executionDate.Format(time.DateOnly))
	}

	result := &CommitResult{}

	err := b.repo.InTx(ctx, func(ctx context.Context) error {
		result.Assignment = types.Assignment{
			Description: req.Description,
			CreatedOn:   now,
			Start:       req.Start,
			End:         req.End,
		}

		if err := b.repo.CreateAssignment(ctx, &result.Assignment); err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}

		consumed := make(map[int64]bool)

		for _, group := range []struct {
			seq       types.SequenceType
			proposals []types.Proposal
		}{
			{types.SequenceFRST, req.FRST},
			{types.SequenceRCUR, req.RCUR},
		} {
			if len(group.proposals) == 0 {
				continue
			}

			batch := types.Batch{
				AssignmentID:  result.Assignment.ID,
				ExecutionDate: executionDate,
				SequenceType:  group.seq,
				Status:        types.StatusNew,
			}

			if err := b.repo.CreateBatch(ctx, &batch); err != nil {
				return fmt.Errorf("create %s batch: %w", group.seq, err)
			}

			saved, err := b.save(ctx, group.proposals, &batch, consumed)
			if err != nil {
				return err
			}

			result.Batches = append(result.Batches, batch)
			result.Instructions = append(result.Instructions, saved...)
		}

		event := AssignmentCreatedEvent{
			AssignmentID: result.Assignment.ID,
			Instructions: len(result.Instructions),
			ControlSum:   controlSum(result.Instructions),
		}
		for _, batch := range result.Batches {
			event.BatchIDs = append(event.BatchIDs, batch.ID)
		}

		return b.emit(ctx, types.EventAssignmentCreated, event)
	})
	if err != nil {
		return nil, err
	}

	metrics.AssignmentsCommitted.Inc()

	b.log.Info("Assignment committed",
		"assignment", result.Assignment.ID,
		"file", b.config.Prefixes.FileIdentification(result.Assignment.ID),
		"batches", len(result.Batches),
		"instructions", len(result.Instructions),
	)

	return result, nil
}

// SetStatus moves a NEW batch to its final status.
func (b *Batcher) SetStatus(ctx context.Context, batchID int64, status types.BatchStatus) error {
	if !status.Valid() {
		return errors.InvalidInput("unknown batch status %q", status)
	}
	if !status.Terminal() {
		return errors.Precondition("batch status can only change to a final status")
	}

	var from types.BatchStatus

	err := b.repo.InTx(ctx, func(ctx context.Context) error {
		batch, err := b.repo.LockBatch(ctx, batchID)
		if err != nil {
			return err
		}

		if batch.Status.Terminal() {
			return errors.Precondition("batch %d is already %s", batchID, batch.Status)
		}
		from = batch.Status

		if err := b.repo.UpdateBatchStatus(ctx, batchID, status); err != nil {
			return fmt.Errorf("update batch status: %w", err)
		}

		return b.emit(ctx, types.EventBatchStatusChanged, BatchStatusEvent{
			BatchID: batchID,
			From:    from,
			To:      status,
		})
	})
	if err != nil {
		return err
	}

	metrics.BatchStatusChanges.WithLabelValues(string(status)).Inc()
	b.log.Info("Batch status changed", "batch", batchID, "from", from, "to", status)

	return nil
}

func (b *Batcher) emit(ctx context.Context, t types.EventType, payload any) error {
	event, err := types.NewEvent(t, payload, time.Now())
	if err != nil {
		return err
	}

	return b.repo.AddEvent(ctx, event)
}

func controlSum(instructions []types.Instruction) string {
	detail := types.BatchDetail{}
	for _, i := range instructions {
		detail.Instructions = append(detail.Instructions, types.InstructionDetail{Instruction: i})
	}
	return detail.ControlSum().StringFixed(2)
}
