package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openbuilders/sepa-collector/internal/batcher"
	"github.com/openbuilders/sepa-collector/internal/eligibility"
	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/generator"
	"github.com/openbuilders/sepa-collector/internal/health"
	"github.com/openbuilders/sepa-collector/internal/i18n"
	"github.com/openbuilders/sepa-collector/internal/mandate"
	"github.com/openbuilders/sepa-collector/internal/repository/memory"
	"github.com/openbuilders/sepa-collector/internal/reversal"
	"github.com/openbuilders/sepa-collector/internal/types"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	epoch = time.Date(2013, 10, 30, 23, 0, 0, 0, time.UTC)
	now   = time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
)

type fakeLock struct{ busy bool }

func (l *fakeLock) Do(ctx context.Context, fn func(context.Context) error) error {
	if l.busy {
		return errors.Conflict("another collection run is in progress")
	}
	return fn(ctx)
}

type fakeHealth struct{ healthy bool }

func (h fakeHealth) GetHealthStatus() health.HealthStatus {
	return health.HealthStatus{Healthy: h.healthy}
}

type testEnv struct {
	repo    *memory.Repository
	lock    *fakeLock
	handler http.Handler
	server  *Server
}

func int64p(v int64) *int64 { return &v }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.New()
	tr := i18n.New("Inter-Actief", "053-489 3756", time.UTC)

	repo.PutPerson(types.Person{ID: 1, FirstName: "Anna", LastName: "Jansen", PreferredLanguage: "en"})
	repo.PutPerson(types.Person{ID: 2, FirstName: "Bram", LastName: "Bakker", PreferredLanguage: "nl"})
	repo.PutPerson(types.Person{ID: 3, FirstName: "Cees", LastName: "de Vries", PreferredLanguage: "nl"})

	contribution := types.MandateType{ID: 2, Name: "Contribution", Contribution: true}
	general := types.MandateType{ID: 1, Name: "General", Consumptions: true, Activities: true, OtherPayments: true}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.PutMandate(types.Mandate{ID: 1, Type: contribution, PersonID: int64p(1), IBAN: "NL91ABNA0417164300",
		BIC: "ABNANL2A", IsSigned: true, StartDate: start})
	repo.PutMandate(types.Mandate{ID: 2, Type: general, PersonID: int64p(2), IBAN: "NL91ABNA0417164300",
		BIC: "ABNANL2A", IsSigned: true, StartDate: start})
	// no membership: eligible to terminate
	repo.PutMandate(types.Mandate{ID: 3, Type: contribution, PersonID: int64p(3), IBAN: "NL91ABNA0417164300",
		BIC: "ABNANL2A", IsSigned: true, StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})

	repo.PutMembership(types.Membership{ID: 101, PersonID: 1, TypeName: "Primary yearlong", Fee: decimal.NewFromInt(25), Year: 2024})
	repo.PutMembership(types.Membership{ID: 102, PersonID: 2, TypeName: "Primary yearlong", Fee: decimal.NewFromInt(25), Year: 2024})
	repo.PutTransaction(types.Transaction{Kind: types.TxCookieCorner, Date: time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("10.50"), PersonID: 2})

	lock := &fakeLock{}
	server := NewServer(&Config{
		ID:           "test",
		WriteTimeout: 5 * time.Second,
		Location:     time.UTC,
		Epoch:        epoch,
		Prefixes:     types.DefaultPrefixes,
	}, Services{
		Generator:   generator.New(&generator.Config{Epoch: epoch, Location: time.UTC}, repo, tr),
		Batcher:     batcher.New(&batcher.Config{Location: time.UTC, Prefixes: types.DefaultPrefixes}, repo, tr),
		Reversals:   reversal.New(&reversal.Config{Location: time.UTC}, repo, tr),
		Mandates:    mandate.New(&mandate.Config{Location: time.UTC}, repo),
		Eligibility: eligibility.NewService(&eligibility.Config{Windows: eligibility.DefaultWindows, Epoch: epoch, Location: time.UTC}, repo),
		Assignments: repo,
		RunLock:     lock,
		Health:      fakeHealth{healthy: true},
	})
	server.now = func() time.Time { return now }

	return &testEnv{repo: repo, lock: lock, handler: server.Routes(), server: server}
}

type envelope struct {
	Ok               bool            `json:"ok"`
	Data             json.RawMessage `json:"data"`
	ErrorCode        string          `json:"errorCode"`
	ErrorDescription string          `json:"errorDescription"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func (e *testEnv) commit(t *testing.T) batcher.CommitResult {
	t.Helper()

	code, env := e.do(t, http.MethodPost, "/assignments", map[string]any{
		"description":   "Collection October",
		"executionDate": "2024-10-10",
		"end":           "2024-09-30T22:00:00Z",
		"membershipIds": []int64{101},
		"personIds":     []int64{2},
	})
	if code != http.StatusOK || !env.Ok {
		t.Fatalf("commit failed: %d %+v", code, env)
	}

	var result batcher.CommitResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestProposals(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.do(t, http.MethodPost, "/proposals", map[string]any{})
	if code != http.StatusOK || !env.Ok {
		t.Fatalf("unexpected response %d %+v", code, env)
	}

	var resp ProposalsResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// person 2 only has a general mandate, which is not used for contributions
	if resp.ContributionTotals["frst"].Count != 1 || resp.ContributionTotals["noAuthorization"].Count != 1 {
		t.Errorf("unexpected contribution totals %+v", resp.ContributionTotals)
	}
	if got := resp.TabTotals["frst"]; got.Count != 1 || !got.Sum.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("unexpected tab totals %+v", resp.TabTotals)
	}
}

func TestCommitAndFollowUp(t *testing.T) {
	e := newTestEnv(t)
	result := e.commit(t)

	if len(result.Instructions) != 2 || len(result.Batches) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	code, env := e.do(t, http.MethodGet, fmt.Sprintf("/assignments/%d", result.Assignment.ID), nil)
	if code != http.StatusOK {
		t.Fatalf("unexpected response %d %+v", code, env)
	}

	var assignment AssignmentResponse
	if err := json.Unmarshal(env.Data, &assignment); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.Totals.NumberOfTransactions != 2 || !assignment.Totals.ControlSum.Equal(decimal.RequireFromString("35.50")) {
		t.Errorf("unexpected totals %+v", assignment.Totals)
	}
	if assignment.FileIdentification != types.DefaultPrefixes.FileIdentification(result.Assignment.ID) {
		t.Errorf("unexpected file identification %q", assignment.FileIdentification)
	}

	batchPath := fmt.Sprintf("/batches/%d/status", result.Batches[0].ID)
	if code, env := e.do(t, http.MethodPost, batchPath, map[string]string{"status": "processed"}); code != http.StatusOK {
		t.Fatalf("unexpected response %d %+v", code, env)
	}
	if code, env := e.do(t, http.MethodPost, batchPath, map[string]string{"status": "declined"}); code != http.StatusPreconditionFailed || env.ErrorCode != string(errors.CodePrecondition) {
		t.Fatalf("expected 412 for a terminal batch, got %d %+v", code, env)
	}

	reversalPath := fmt.Sprintf("/instructions/%d/reversal", result.Instructions[0].ID)
	body := map[string]any{"date": "2024-10-14", "preSettlement": true, "reason": "AM04", "actorId": 900}

	if code, env := e.do(t, http.MethodPost, reversalPath, body); code != http.StatusOK {
		t.Fatalf("unexpected response %d %+v", code, env)
	}
	if code, _ := e.do(t, http.MethodPost, reversalPath, body); code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 for a second reversal, got %d", code)
	}

	code, env = e.do(t, http.MethodGet, fmt.Sprintf("/instructions/%d", result.Instructions[0].ID), nil)
	if code != http.StatusOK {
		t.Fatalf("unexpected response %d %+v", code, env)
	}

	var detail types.InstructionDetail
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Reversal == nil || detail.Reversal.Reason != "AM04" {
		t.Errorf("expected the AM04 reversal, got %+v", detail.Reversal)
	}
	if detail.EndToEndID != types.DefaultPrefixes.EndToEndID(detail.ID) {
		t.Errorf("unexpected end-to-end id %q", detail.EndToEndID)
	}

	if code, _ := e.do(t, http.MethodGet, "/instructions/4040", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown instruction, got %d", code)
	}

	code, env = e.do(t, http.MethodGet, fmt.Sprintf("/mandates/%d/sequence", result.Instructions[0].MandateID), nil)
	if code != http.StatusOK {
		t.Fatalf("unexpected response %d %+v", code, env)
	}

	var sequence SequenceResponse
	if err := json.Unmarshal(env.Data, &sequence); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sequence.SequenceType != types.SequenceFRST {
		t.Errorf("expected FRST after a pre-settlement reversal, got %s", sequence.SequenceType)
	}
}

func TestCommitErrors(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
		busy bool
		code int
	}{
		{
			name: "too early",
			body: map[string]any{"description": "Early", "executionDate": "2024-10-02", "membershipIds": []int64{101}},
			code: http.StatusBadRequest,
		},
		{
			name: "nothing selected",
			body: map[string]any{"description": "Empty", "executionDate": "2024-10-10"},
			code: http.StatusBadRequest,
		},
		{
			name: "description too long",
			body: map[string]any{"description": strings.Repeat("x", 51), "executionDate": "2024-10-10", "membershipIds": []int64{101}},
			code: http.StatusBadRequest,
		},
		{
			name: "run in progress",
			body: map[string]any{"description": "Busy", "executionDate": "2024-10-10", "membershipIds": []int64{101}},
			busy: true,
			code: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.lock.busy = tt.busy
			defer func() { e.lock.busy = false }()

			code, env := e.do(t, http.MethodPost, "/assignments", tt.body)
			if code != tt.code || env.Ok {
				t.Fatalf("expected %d, got %d %+v", tt.code, code, env)
			}
		})
	}

	if len(e.repo.Instructions()) != 0 {
		t.Errorf("failed commits must not persist instructions")
	}
}

func TestMandateEndpoints(t *testing.T) {
	e := newTestEnv(t)

	if code, _ := e.do(t, http.MethodGet, "/mandates/404/sequence", nil); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	bad := map[string]any{"date": "2024-10-01", "iban": "NL00ABNA0417164300", "bic": "ABNANL2A", "reason": "moved"}
	if code, env := e.do(t, http.MethodPost, "/mandates/2/amendments", bad); code != http.StatusBadRequest || !strings.Contains(env.ErrorDescription, "iban") {
		t.Errorf("expected 400 for an invalid IBAN, got %d %+v", code, env)
	}

	good := map[string]any{"date": "2024-10-01", "iban": "DE89370400440532013000", "bic": "COBADEFFXXX", "reason": "moved"}
	if code, env := e.do(t, http.MethodPost, "/mandates/2/amendments", good); code != http.StatusOK {
		t.Fatalf("unexpected response %d %+v", code, env)
	}
	if code, _ := e.do(t, http.MethodPost, "/mandates/2/amendments", good); code != http.StatusConflict {
		t.Errorf("expected 409 for a second pending amendment, got %d", code)
	}

	if code, _ := e.do(t, http.MethodGet, "/mandates/eligible?action=delete", nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown action, got %d", code)
	}

	code, env := e.do(t, http.MethodGet, "/mandates/eligible?action=terminate", nil)
	if code != http.StatusOK {
		t.Fatalf("unexpected response %d %+v", code, env)
	}

	var eligible EligibleResponse
	if err := json.Unmarshal(env.Data, &eligible); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eligible.IDs) != 1 || eligible.IDs[0] != 3 {
		t.Fatalf("expected mandate 3 to be eligible, got %v", eligible.IDs)
	}

	if code, _ := e.do(t, http.MethodPost, "/mandates/terminate", map[string]any{"ids": []int64{1}}); code != http.StatusPreconditionFailed {
		t.Errorf("expected 412 for a mandate in use, got %d", code)
	}
	if code, env := e.do(t, http.MethodPost, "/mandates/terminate", map[string]any{"ids": []int64{3}}); code != http.StatusOK {
		t.Fatalf("unexpected response %d %+v", code, env)
	}

	m, err := e.repo.GetMandate(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.EndDate == nil || !m.EndDate.Equal(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected mandate 3 to end today, got %v", m.EndDate)
	}
}

func TestExportAssignment(t *testing.T) {
	e := newTestEnv(t)
	result := e.commit(t)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/assignments/%d/export", result.Assignment.ID), nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("export is not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Instructions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected header and 2 instructions, got %d rows", len(rows))
	}

	if code, _ := e.do(t, http.MethodGet, "/assignments/999/export", nil); code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing assignment, got %d", code)
	}
}

func TestReadiness(t *testing.T) {
	e := newTestEnv(t)
	probes := e.server.probes()

	for _, tt := range []struct {
		healthy bool
		code    int
	}{{true, http.StatusOK}, {false, http.StatusServiceUnavailable}} {
		e.server.services.Health = fakeHealth{healthy: tt.healthy}

		rec := httptest.NewRecorder()
		probes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rec.Code != tt.code {
			t.Errorf("healthy=%v: expected %d, got %d", tt.healthy, tt.code, rec.Code)
		}
	}
}
