package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the discriminant of the ledger transaction union.
type TransactionKind string

const (
	TxCustom         TransactionKind = "custom"
	TxActivity       TransactionKind = "activity"
	TxCookieCorner   TransactionKind = "cookie_corner"
	TxAlexia         TransactionKind = "alexia"
	TxContribution   TransactionKind = "contribution"
	TxDebtCollection TransactionKind = "debt_collection"
	TxReversal       TransactionKind = "reversal"
)

// Transaction is an append-only ledger row. Kind specific fields are only
// set for their kind: MembershipID for contributions, ReversalID for
// reversals.
type Transaction struct {
	ID            int64           `db:"id" json:"id"`
	Kind          TransactionKind `db:"kind" json:"kind"`
	Date          time.Time       `db:"date" json:"date"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PersonID      int64           `db:"person_id" json:"personId"`
	Description   string          `db:"description" json:"description"`
	InstructionID *int64          `db:"instruction_id" json:"instructionId"`
	MembershipID  *int64          `db:"membership_id" json:"membershipId"`
	ReversalID    *int64          `db:"reversal_id" json:"reversalId"`
	AddedBy       *int64          `db:"added_by" json:"addedBy"`
	AddedOn       time.Time       `db:"added_on" json:"addedOn"`
}

// Collected is true once an instruction collects (or is) this row.
func (t *Transaction) Collected() bool {
	return t.InstructionID != nil
}

// PersonActivity summarises the ledger of one person.
type PersonActivity struct {
	PersonID            int64           `db:"person_id"`
	LastTransactionDate *time.Time      `db:"last_transaction_date"`
	BalanceSinceEpoch   decimal.Decimal `db:"balance"`
}
