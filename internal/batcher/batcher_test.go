package batcher

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/generator"
	"github.com/openbuilders/sepa-collector/internal/i18n"
	"github.com/openbuilders/sepa-collector/internal/repository/memory"
	"github.com/openbuilders/sepa-collector/internal/types"
	"github.com/shopspring/decimal"
)

var (
	epoch = time.Date(2013, 10, 30, 23, 0, 0, 0, time.UTC)
	// a Tuesday, the first possible execution date is Wednesday 9 October
	now           = time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	executionDate = time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)

	generalType      = types.MandateType{ID: 1, Name: "Consumptions, activities and other", Consumptions: true, Activities: true, OtherPayments: true}
	contributionType = types.MandateType{ID: 2, Name: "Contribution", Contribution: true}
)

func int64p(v int64) *int64 { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	repo      *memory.Repository
	batcher   *Batcher
	generator *generator.Generator
	tabEnd    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := memory.New()
	tr := i18n.New("Inter-Actief", "053-489 3756", time.UTC)

	repo.PutPerson(types.Person{ID: 1, FirstName: "Anna", LastName: "Jansen", PreferredLanguage: "en"})
	repo.PutPerson(types.Person{ID: 2, FirstName: "Bram", LastName: "Bakker", PreferredLanguage: "nl"})

	repo.PutMandate(types.Mandate{Type: contributionType, PersonID: int64p(1), IBAN: "NL91ABNA0417164300",
		BIC: "ABNANL2A", IsSigned: true, StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})

	m2 := repo.PutMandate(types.Mandate{Type: generalType, PersonID: int64p(2), IBAN: "NL91ABNA0417164300",
		BIC: "ABNANL2A", IsSigned: true, StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})

	// an earlier processed collection makes the tab recurring
	a := repo.PutAssignment(types.Assignment{Description: "earlier"})
	b := repo.PutBatch(types.Batch{AssignmentID: a.ID, ExecutionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		SequenceType: types.SequenceFRST, Status: types.StatusProcessed})
	repo.PutInstruction(types.Instruction{BatchID: b.ID, MandateID: m2.ID, Amount: dec("1")})

	repo.PutMembership(types.Membership{ID: 101, PersonID: 1, TypeName: "Primary yearlong", Fee: dec("25.00"), Year: 2024})

	repo.PutTransaction(types.Transaction{Kind: types.TxCookieCorner, Date: time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC),
		Amount: dec("6.00"), PersonID: 2})
	repo.PutTransaction(types.Transaction{Kind: types.TxActivity, Date: time.Date(2024, 9, 3, 10, 0, 0, 0, time.UTC),
		Amount: dec("4.00"), PersonID: 2})

	return &fixture{
		repo:      repo,
		batcher:   New(&Config{Location: time.UTC, Prefixes: types.DefaultPrefixes}, repo, tr),
		generator: generator.New(&generator.Config{Epoch: epoch, Location: time.UTC}, repo, tr),
		tabEnd:    time.Date(2024, 9, 30, 22, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) proposals(t *testing.T) (frst, rcur []types.Proposal) {
	t.Helper()
	ctx := context.Background()

	contributions, err := f.generator.ContributionInstructions(ctx, 2024, now)
	if err != nil {
		t.Fatalf("contribution proposals: %v", err)
	}

	tabs, err := f.generator.TabInstructions(ctx, f.tabEnd)
	if err != nil {
		t.Fatalf("tab proposals: %v", err)
	}

	return Selection{MembershipIDs: []int64{101}, PersonIDs: []int64{2}}.Apply(contributions, tabs)
}

func sum(txs []types.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

func TestCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	frst, rcur := f.proposals(t)
	if len(frst) != 1 || len(rcur) != 1 {
		t.Fatalf("expected one FRST and one RCUR proposal, got %d and %d", len(frst), len(rcur))
	}

	start := epoch
	result, err := f.batcher.Commit(ctx, CommitRequest{
		Description:   "Collection October",
		ExecutionDate: executionDate,
		Start:         &start,
		End:           &f.tabEnd,
		FRST:          frst,
		RCUR:          rcur,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Batches) != 2 || len(result.Instructions) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Batches[0].SequenceType != types.SequenceFRST || result.Batches[1].SequenceType != types.SequenceRCUR {
		t.Errorf("unexpected batch order %+v", result.Batches)
	}

	for _, instruction := range result.Instructions {
		if instruction.EndToEndID != types.DefaultPrefixes.EndToEndID(instruction.ID) {
			t.Errorf("unexpected end-to-end id %q", instruction.EndToEndID)
		}
		if len(instruction.EndToEndID) > 35 {
			t.Errorf("end-to-end id %q too long", instruction.EndToEndID)
		}

		txs, err := f.repo.InstructionTransactions(ctx, instruction.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sum(txs).IsZero() {
			t.Errorf("ledger rows of instruction %d do not net to zero: %s", instruction.ID, sum(txs))
		}

		var collected []types.Transaction
		for _, tx := range txs {
			if tx.Kind == types.TxDebtCollection {
				collected = append(collected, tx)
			}
		}
		if len(collected) != 1 || !collected[0].Amount.Equal(instruction.Amount.Neg()) {
			t.Errorf("expected one debt collection row of -%s, got %+v", instruction.Amount, collected)
		}
		if !collected[0].Date.Equal(executionDate) {
			t.Errorf("debt collection dated %v, want %v", collected[0].Date, executionDate)
		}
	}

	payments := f.repo.Payments()
	if len(payments) != 1 || payments[0].MembershipID != 101 || payments[0].Method != types.PaymentMethodDirectDebit {
		t.Errorf("unexpected payments %+v", payments)
	}

	var created int
	for _, e := range f.repo.Events() {
		if e.Type == types.EventAssignmentCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("expected one assignment.created event, got %d", created)
	}

	// everything is collected now
	frst, rcur = f.proposals(t)
	if len(frst)+len(rcur) != 0 {
		t.Errorf("expected nothing left to collect, got %+v %+v", frst, rcur)
	}
}

func TestCommitRollsBackOnLedgerFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	frst, rcur := f.proposals(t)
	txsBefore := len(f.repo.Transactions())
	batchesBefore := len(f.repo.Batches())

	f.repo.FailOn["CreatePayment"] = stderrors.New("disk full")

	_, err := f.batcher.Commit(ctx, CommitRequest{
		Description:   "Collection October",
		ExecutionDate: executionDate,
		FRST:          frst,
		RCUR:          rcur,
	}, now)
	if !stderrors.Is(err, errors.ErrDataIntegrity) {
		t.Fatalf("expected a data integrity error, got %v", err)
	}

	if n := len(f.repo.Transactions()); n != txsBefore {
		t.Errorf("expected %d transactions after rollback, got %d", txsBefore, n)
	}
	if n := len(f.repo.Batches()); n != batchesBefore {
		t.Errorf("expected %d batches after rollback, got %d", batchesBefore, n)
	}
	if n := len(f.repo.Instructions()); n != 1 {
		t.Errorf("expected only the seeded instruction, got %d", n)
	}
	for _, tx := range f.repo.Transactions() {
		if tx.InstructionID != nil {
			t.Errorf("transaction %d still linked after rollback", tx.ID)
		}
	}
	if len(f.repo.Events()) != 0 {
		t.Errorf("no events expected after rollback")
	}
}

func TestCommitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	frst, _ := f.proposals(t)

	tests := []struct {
		name string
		req  CommitRequest
	}{
		{"too soon", CommitRequest{Description: "x", ExecutionDate: time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC), FRST: frst}},
		{"weekend", CommitRequest{Description: "x", ExecutionDate: time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC), FRST: frst}},
		{"no description", CommitRequest{ExecutionDate: executionDate, FRST: frst}},
		{"nothing selected", CommitRequest{Description: "x", ExecutionDate: executionDate}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.batcher.Commit(ctx, tt.req, now)
			if !stderrors.Is(err, errors.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	// FRST proposals in the RCUR batch
	_, err := f.batcher.Commit(ctx, CommitRequest{Description: "x", ExecutionDate: executionDate, RCUR: frst}, now)
	if !stderrors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestSaveRejectsCollectedTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, rcur := f.proposals(t)

	first, err := f.batcher.Commit(ctx, CommitRequest{Description: "first", ExecutionDate: executionDate, RCUR: rcur}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	batch := f.repo.PutBatch(types.Batch{AssignmentID: first.Assignment.ID, ExecutionDate: executionDate,
		SequenceType: types.SequenceRCUR, Status: types.StatusNew})

	_, err = f.batcher.Save(ctx, rcur, batch.ID)
	if !stderrors.Is(err, errors.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error for collected transactions, got %v", err)
	}
}

func TestSaveRequiresNewBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, rcur := f.proposals(t)

	a := f.repo.PutAssignment(types.Assignment{Description: "manual"})
	batch := f.repo.PutBatch(types.Batch{AssignmentID: a.ID, ExecutionDate: executionDate,
		SequenceType: types.SequenceRCUR, Status: types.StatusCancelled})

	_, err := f.batcher.Save(ctx, rcur, batch.ID)
	if !stderrors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("expected precondition failure, got %v", err)
	}

	zero := rcur[0]
	zero.Amount = decimal.Zero
	open := f.repo.PutBatch(types.Batch{AssignmentID: a.ID, ExecutionDate: executionDate,
		SequenceType: types.SequenceRCUR, Status: types.StatusNew})

	_, err = f.batcher.Save(ctx, []types.Proposal{zero}, open.ID)
	if !stderrors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("expected precondition failure for a zero amount, got %v", err)
	}
}

func TestAmendmentSentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, rcur := f.proposals(t)

	amendment := int64(77)
	first := rcur[0]
	first.AmendmentID = &amendment

	second := first
	second.TransactionIDs = nil
	second.Kind = types.ProposalContribution
	second.MembershipID = int64p(101)

	result, err := f.batcher.Commit(ctx, CommitRequest{
		Description:   "amendment",
		ExecutionDate: executionDate,
		RCUR:          []types.Proposal{first, second},
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Instructions[0].AmendmentID == nil || *result.Instructions[0].AmendmentID != amendment {
		t.Errorf("first instruction must carry the amendment")
	}
	if result.Instructions[1].AmendmentID != nil {
		t.Errorf("second instruction must not carry the amendment again")
	}
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, rcur := f.proposals(t)

	result, err := f.batcher.Commit(ctx, CommitRequest{Description: "status", ExecutionDate: executionDate, RCUR: rcur}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batchID := result.Batches[0].ID

	if err := f.batcher.SetStatus(ctx, batchID, types.StatusNew); !stderrors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("expected precondition failure for NEW, got %v", err)
	}

	if err := f.batcher.SetStatus(ctx, batchID, types.StatusProcessed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, _ := f.repo.GetBatch(ctx, batchID)
	if b.Status != types.StatusProcessed {
		t.Fatalf("unexpected status %s", b.Status)
	}

	if err := f.batcher.SetStatus(ctx, batchID, types.StatusCancelled); !stderrors.Is(err, errors.ErrPrecondition) {
		t.Fatalf("expected precondition failure for a final batch, got %v", err)
	}

	if err := f.batcher.SetStatus(ctx, 4040, types.StatusDeclined); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := f.batcher.SetStatus(ctx, batchID, "V"); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for an unknown status, got %v", err)
	}
}

func TestSelection(t *testing.T) {
	contributions := &types.ContributionBuckets{
		FRST: []types.Proposal{{MembershipID: int64p(1)}, {MembershipID: int64p(2)}},
		RCUR: []types.Proposal{{MembershipID: int64p(3)}},
	}
	tabs := &types.TabBuckets{
		FRST:           []types.Proposal{{PersonID: 10}},
		TerminatedFRST: []types.Proposal{{PersonID: 11}},
		TerminatedRCUR: []types.Proposal{{PersonID: 12}},
		RCUR:           []types.Proposal{{PersonID: 13}},
		Negative:       []types.Proposal{{PersonID: 14}},
	}

	frst, rcur := Selection{MembershipIDs: []int64{2, 3}, PersonIDs: []int64{11, 12, 14}}.Apply(contributions, tabs)

	if len(frst) != 2 || *frst[0].MembershipID != 2 || frst[1].PersonID != 11 {
		t.Errorf("unexpected FRST selection %+v", frst)
	}
	if len(rcur) != 2 || *rcur[0].MembershipID != 3 || rcur[1].PersonID != 12 {
		t.Errorf("unexpected RCUR selection %+v", rcur)
	}

	frst, rcur = Selection{PersonIDs: []int64{10}}.Apply(nil, tabs)
	if len(frst) != 1 || len(rcur) != 0 {
		t.Errorf("unexpected selection without contributions: %+v %+v", frst, rcur)
	}
}
