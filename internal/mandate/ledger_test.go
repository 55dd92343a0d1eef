package mandate

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/repository/memory"
	"github.com/openbuilders/sepa-collector/internal/types"
)

var generalType = types.MandateType{ID: 1, Name: "Consumptions, activities and other", Consumptions: true, Activities: true, OtherPayments: true}

func int64p(v int64) *int64 { return &v }

func setup(t *testing.T) (*Ledger, *memory.Repository) {
	t.Helper()

	repo := memory.New()
	repo.PutPerson(types.Person{ID: 10, FirstName: "Anna", LastName: "Jansen"})

	return New(&Config{Location: time.UTC}, repo), repo
}

func signedMandate(repo *memory.Repository) types.Mandate {
	return repo.PutMandate(types.Mandate{
		Type:              generalType,
		PersonID:          int64p(10),
		IBAN:              "NL91ABNA0417164300",
		BIC:               "ABNANL2A",
		AccountHolderName: "A. Jansen",
		IsSigned:          true,
		StartDate:         time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC),
	})
}

func TestLedgerNextSequenceType(t *testing.T) {
	ledger, repo := setup(t)
	ctx := context.Background()
	m := signedMandate(repo)

	seq, err := ledger.NextSequenceType(ctx, m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != types.SequenceFRST {
		t.Fatalf("expected FRST for a fresh mandate, got %s", seq)
	}

	a := repo.PutAssignment(types.Assignment{Description: "run"})
	b := repo.PutBatch(types.Batch{
		AssignmentID:  a.ID,
		ExecutionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		SequenceType:  types.SequenceFRST,
		Status:        types.StatusProcessed,
	})
	repo.PutInstruction(types.Instruction{BatchID: b.ID, MandateID: m.ID})

	seq, err = ledger.NextSequenceType(ctx, m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != types.SequenceRCUR {
		t.Fatalf("expected RCUR after a processed batch, got %s", seq)
	}

	_, err = ledger.NextSequenceType(ctx, 999)
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplyAmendment(t *testing.T) {
	ledger, repo := setup(t)
	ctx := context.Background()
	m := signedMandate(repo)

	a, err := ledger.ApplyAmendment(ctx, m.ID, AmendmentRequest{
		Date:   time.Date(2024, 2, 1, 14, 0, 0, 0, time.UTC),
		IBAN:   "DE89 3704 0044 0532 0130 00",
		BIC:    "COBADEFFXXX",
		Reason: "Moved to another bank",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.OtherBank {
		t.Errorf("expected the amendment to be marked as other bank")
	}
	if a.PreviousIBAN != "NL91ABNA0417164300" || a.PreviousBIC != "ABNANL2A" {
		t.Errorf("previous account not recorded: %+v", a)
	}

	updated, _ := repo.GetMandate(ctx, m.ID)
	if updated.IBAN != "DE89370400440532013000" || updated.BIC != "COBADEFFXXX" {
		t.Errorf("mandate account not overwritten: %+v", updated)
	}

	seq, err := ledger.NextSequenceType(ctx, m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq != types.SequenceFRST {
		t.Errorf("expected FRST with a pending other bank amendment, got %s", seq)
	}

	_, err = ledger.ApplyAmendment(ctx, m.ID, AmendmentRequest{
		Date:   time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
		IBAN:   "NL91ABNA0417164300",
		BIC:    "ABNANL2A",
		Reason: "Back again",
	})
	if !stderrors.Is(err, errors.ErrConflict) {
		t.Fatalf("expected conflict for a second pending amendment, got %v", err)
	}

	if n := len(repo.Amendments()); n != 1 {
		t.Errorf("expected 1 amendment, got %d", n)
	}

	events := repo.Events()
	if len(events) != 1 || events[0].Type != types.EventMandateAmended {
		t.Errorf("expected one amended event, got %+v", events)
	}
}

func TestApplyAmendmentValidation(t *testing.T) {
	ledger, repo := setup(t)
	ctx := context.Background()
	m := signedMandate(repo)

	_, err := ledger.ApplyAmendment(ctx, m.ID, AmendmentRequest{
		IBAN:   "NL00ABNA0417164300",
		BIC:    "ABNANL2A",
		Reason: "typo",
	})
	if !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for a bad IBAN, got %v", err)
	}

	anonymized := repo.PutMandate(types.Mandate{Type: generalType, StartDate: m.StartDate})
	_, err = ledger.ApplyAmendment(ctx, anonymized.ID, AmendmentRequest{
		IBAN:   "NL91ABNA0417164300",
		BIC:    "ABNANL2A",
		Reason: "new account",
	})
	if !stderrors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("expected precondition failure for an anonymized mandate, got %v", err)
	}
}

func TestTerminateAndAnonymize(t *testing.T) {
	ledger, repo := setup(t)
	ctx := context.Background()
	m := signedMandate(repo)

	_, err := ledger.ApplyAmendment(ctx, m.ID, AmendmentRequest{
		Date:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		IBAN:   "DE89370400440532013000",
		BIC:    "COBADEFFXXX",
		Reason: "Moved",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = ledger.Anonymize(ctx, []int64{m.ID})
	if !stderrors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("expected precondition failure for an active mandate, got %v", err)
	}

	today := time.Date(2024, 3, 4, 16, 30, 0, 0, time.UTC)
	if err := ledger.Terminate(ctx, []int64{m.ID}, today); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	terminated, _ := repo.GetMandate(ctx, m.ID)
	if terminated.EndDate == nil || !terminated.EndDate.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end date %v", terminated.EndDate)
	}
	if terminated.IsActive() {
		t.Fatalf("terminated mandate must not be active")
	}

	err = ledger.Terminate(ctx, []int64{m.ID}, today)
	if !stderrors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("expected precondition failure for a terminated mandate, got %v", err)
	}

	if err := ledger.Anonymize(ctx, []int64{m.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	anonymized, _ := repo.GetMandate(ctx, m.ID)
	if !anonymized.IsAnonymized() || anonymized.IBAN != "" || anonymized.BIC != "" || anonymized.AccountHolderName != "" {
		t.Errorf("personal data left on mandate: %+v", anonymized)
	}

	for _, a := range repo.Amendments() {
		if a.PreviousIBAN != "" || a.PreviousBIC != "" {
			t.Errorf("personal data left on amendment: %+v", a)
		}
	}
}

func TestTerminateRollsBackOnMissingMandate(t *testing.T) {
	ledger, repo := setup(t)
	ctx := context.Background()
	m := signedMandate(repo)

	err := ledger.Terminate(ctx, []int64{m.ID, 404}, time.Now())
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	unchanged, _ := repo.GetMandate(ctx, m.ID)
	if unchanged.EndDate != nil {
		t.Fatalf("mandate must stay active after a failed run")
	}

}
