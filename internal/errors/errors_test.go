package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("apply amendment: %w", Conflict("mandate %d has a pending amendment", 3))

	if !stderrors.Is(err, ErrConflict) {
		t.Fatalf("expected %v to match ErrConflict", err)
	}

	if stderrors.Is(err, ErrNotFound) {
		t.Fatalf("did not expect %v to match ErrNotFound", err)
	}
}

func TestDataIntegrityUnwraps(t *testing.T) {
	cause := stderrors.New("insert failed")
	err := DataIntegrity(cause, "ledger write for instruction %d", 7)

	if !stderrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}

	code, ok := CodeOf(err)
	if !ok || code != CodeDataIntegrity {
		t.Errorf("unexpected code %q", code)
	}

	if got := err.Error(); got != "ledger write for instruction 7: insert failed" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if _, ok := CodeOf(stderrors.New("boom")); ok {
		t.Fatalf("plain error must not carry a code")
	}
}
