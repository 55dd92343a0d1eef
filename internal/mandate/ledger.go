package mandate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/metrics"
	"github.com/openbuilders/sepa-collector/internal/types"
)

const MaxReasonLength = 250

type Config struct {
	Location *time.Location
}

type Repository interface {
	InTx(context.Context, func(context.Context) error) error
	GetMandate(context.Context, int64) (*types.Mandate, error)
	LockMandate(context.Context, int64) (*types.Mandate, error)
	GetMandates(context.Context, []int64) ([]types.Mandate, error)
	PendingAmendment(context.Context, int64) (*types.Amendment, error)
	InstructionStates(context.Context, int64) ([]types.InstructionState, error)
	CreateAmendment(context.Context, *types.Amendment) error
	UpdateMandateAccount(ctx context.Context, id int64, iban, bic string) error
	AnonymizeMandate(context.Context, int64) error
	TerminateMandate(ctx context.Context, id int64, endDate time.Time) error
	AddEvent(context.Context, types.Event) error
}

// Ledger keeps track of mandates, their amendments and their lifecycle.
type Ledger struct {
	config *Config
	repo   Repository
	log    *slog.Logger
}

type AmendmentRequest struct {
	Date   time.Time
	IBAN   string
	BIC    string
	Reason string
}

type AmendedEvent struct {
	MandateID   int64 `json:"mandateId"`
	AmendmentID int64 `json:"amendmentId"`
	OtherBank   bool  `json:"otherBank"`
}

type MandatesEvent struct {
	MandateIDs []int64 `json:"mandateIds"`
}

func New(config *Config, repo Repository) *Ledger {
	return &Ledger{
		config: config,
		repo:   repo,
		log:    slog.With("component", "mandate-ledger"),
	}
}

func (l *Ledger) NextSequenceType(ctx context.Context, mandateID int64) (types.SequenceType, error) {
	var seq types.SequenceType

	err := l.repo.InTx(ctx, func(ctx context.Context) error {
		if _, err := l.repo.GetMandate(ctx, mandateID); err != nil {
			return err
		}

		pending, err := l.repo.PendingAmendment(ctx, mandateID)
		if err != nil {
			return fmt.Errorf("pending amendment: %w", err)
		}

		history, err := l.repo.InstructionStates(ctx, mandateID)
		if err != nil {
			return fmt.Errorf("instruction states: %w", err)
		}

		seq = NextSequenceType(pending, history)

		return nil
	})

	return seq, err
}

// ApplyAmendment records a change of bank account and overwrites the
// account of the mandate.
func (l *Ledger) ApplyAmendment(ctx context.Context, mandateID int64, req AmendmentRequest) (*types.Amendment, error) {
	iban := helpers.NormalizeIBAN(req.IBAN)
	bic := strings.ToUpper(strings.TrimSpace(req.BIC))

	if !helpers.ValidIBAN(iban) {
		return nil, errors.InvalidInput("invalid IBAN %q", req.IBAN)
	}
	if req.Reason == "" || len(req.Reason) > MaxReasonLength {
		return nil, errors.InvalidInput("reason must be between 1 and %d characters", MaxReasonLength)
	}

	var amendment *types.Amendment

	err := l.repo.InTx(ctx, func(ctx context.Context) error {
		m, err := l.repo.LockMandate(ctx, mandateID)
		if err != nil {
			return err
		}

		if m.IsAnonymized() {
			return errors.Precondition("mandate %d is anonymized", mandateID)
		}

		pending, err := l.repo.PendingAmendment(ctx, mandateID)
		if err != nil {
			return fmt.Errorf("pending amendment: %w", err)
		}
		if pending != nil {
			return errors.Conflict("mandate %d already has a pending amendment", mandateID)
		}

		amendment = &types.Amendment{
			MandateID:    mandateID,
			Date:         helpers.Midnight(req.Date, l.config.Location),
			PreviousIBAN: m.IBAN,
			PreviousBIC:  m.BIC,
			OtherBank:    bic != m.BIC,
			Reason:       req.Reason,
		}

		if err := l.repo.CreateAmendment(ctx, amendment); err != nil {
			return fmt.Errorf("create amendment: %w", err)
		}

		if err := l.repo.UpdateMandateAccount(ctx, mandateID, iban, bic); err != nil {
			return fmt.Errorf("update mandate account: %w", err)
		}

		return l.emit(ctx, types.EventMandateAmended, AmendedEvent{
			MandateID:   mandateID,
			AmendmentID: amendment.ID,
			OtherBank:   amendment.OtherBank,
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Amendment applied",
		"mandate", mandateID,
		"amendment", amendment.ID,
		"otherBank", amendment.OtherBank,
	)

	return amendment, nil
}

// Anonymize removes the personal data of ended mandates.
func (l *Ledger) Anonymize(ctx context.Context, ids []int64) error {
	err := l.repo.InTx(ctx, func(ctx context.Context) error {
		mandates, err := l.loadAll(ctx, ids)
		if err != nil {
			return err
		}

		for _, m := range mandates {
			if m.IsActive() {
				return errors.Precondition("mandate %d is still active", m.ID)
			}
		}

		for _, m := range mandates {
			if err := l.repo.AnonymizeMandate(ctx, m.ID); err != nil {
				return fmt.Errorf("anonymize mandate %d: %w", m.ID, err)
			}
		}

		return l.emit(ctx, types.EventMandateAnonymized, MandatesEvent{MandateIDs: ids})
	})
	if err != nil {
		return err
	}

	metrics.MandatesAnonymized.Add(float64(len(ids)))
	l.log.Info("Mandates anonymized", "count", len(ids))

	return nil
}

// Terminate ends the selected mandates today.
func (l *Ledger) Terminate(ctx context.Context, ids []int64, today time.Time) error {
	endDate := helpers.Midnight(today, l.config.Location)

	err := l.repo.InTx(ctx, func(ctx context.Context) error {
		mandates, err := l.loadAll(ctx, ids)
		if err != nil {
			return err
		}

		for _, m := range mandates {
			if m.EndDate != nil {
				return errors.Precondition("mandate %d is already terminated", m.ID)
			}
		}

		for _, m := range mandates {
			if err := l.repo.TerminateMandate(ctx, m.ID, endDate); err != nil {
				return fmt.Errorf("terminate mandate %d: %w", m.ID, err)
			}
		}

		return l.emit(ctx, types.EventMandateTerminated, MandatesEvent{MandateIDs: ids})
	})
	if err != nil {
		return err
	}

	metrics.MandatesTerminated.Add(float64(len(ids)))
	l.log.Info("Mandates terminated", "count", len(ids), "endDate", endDate)

	return nil
}

func (l *Ledger) loadAll(ctx context.Context, ids []int64) ([]types.Mandate, error) {
	if len(ids) == 0 {
		return nil, errors.InvalidInput("no mandates selected")
	}

	mandates, err := l.repo.GetMandates(ctx, ids)
	if err != nil {
		return nil, err
	}

	found := make(map[int64]bool, len(mandates))
	for _, m := range mandates {
		found[m.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, errors.NotFound("mandate %d not found", id)
		}
	}

	return mandates, nil
}

func (l *Ledger) emit(ctx context.Context, t types.EventType, payload any) error {
	event, err := types.NewEvent(t, payload, time.Now())
	if err != nil {
		return err
	}

	return l.repo.AddEvent(ctx, event)
}
