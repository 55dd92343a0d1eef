package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SequenceType is the SEPA sequence type of a batch.
type SequenceType string

const (
	SequenceFRST SequenceType = "FRST"
	SequenceRCUR SequenceType = "RCUR"
	SequenceFNAL SequenceType = "FNAL"
	SequenceOOFF SequenceType = "OOFF"
	// SequenceUndetermined is never stored on a batch. It means an FRST
	// instruction for the mandate is still in flight and the next sequence
	// type cannot be decided yet.
	SequenceUndetermined SequenceType = "UNDETERMINED"
)

// Valid reports whether s may be used as the sequence type of a batch.
func (s SequenceType) Valid() bool {
	switch s {
	case SequenceFRST, SequenceRCUR, SequenceFNAL, SequenceOOFF:
		return true
	}
	return false
}

type BatchStatus string

const (
	StatusNew       BatchStatus = "new"
	StatusProcessed BatchStatus = "processed"
	StatusDeclined  BatchStatus = "declined"
	StatusCancelled BatchStatus = "cancelled"
)

func (s BatchStatus) Valid() bool {
	switch s {
	case StatusNew, StatusProcessed, StatusDeclined, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s BatchStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusDeclined || s == StatusCancelled
}

// Assignment is one administrative collection run.
type Assignment struct {
	ID          int64      `db:"id" json:"id"`
	Description string     `db:"description" json:"description"`
	CreatedOn   time.Time  `db:"created_on" json:"createdOn"`
	Start       *time.Time `db:"start" json:"start"`
	End         *time.Time `db:"end" json:"end"`
}

// Batch groups instructions sharing an execution date and sequence type.
type Batch struct {
	ID            int64        `db:"id" json:"id"`
	AssignmentID  int64        `db:"assignment_id" json:"assignmentId"`
	ExecutionDate time.Time    `db:"execution_date" json:"executionDate"`
	SequenceType  SequenceType `db:"sequence_type" json:"sequenceType"`
	Status        BatchStatus  `db:"status" json:"status"`
}

// Instruction is an order to collect Amount under a mandate. It has no ID
// while it is a proposal.
type Instruction struct {
	ID          int64           `db:"id" json:"id"`
	BatchID     int64           `db:"batch_id" json:"batchId"`
	MandateID   int64           `db:"mandate_id" json:"mandateId"`
	EndToEndID  string          `db:"end_to_end_id" json:"endToEndId"`
	Description string          `db:"description" json:"description"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	AmendmentID *int64          `db:"amendment_id" json:"amendmentId"`
}

// InstructionState is the part of an instruction's history that determines
// the next sequence type of its mandate.
type InstructionState struct {
	InstructionID int64        `db:"instruction_id"`
	BatchStatus   BatchStatus  `db:"batch_status"`
	BatchSequence SequenceType `db:"batch_sequence"`
	ExecutionDate time.Time    `db:"execution_date"`
	Reversed      bool         `db:"reversed"`
	PreSettlement bool         `db:"pre_settlement"`
}

// ScheduledInstruction is the execution date of one instruction of a mandate.
type ScheduledInstruction struct {
	MandateID     int64     `db:"mandate_id"`
	ExecutionDate time.Time `db:"execution_date"`
}

// InstructionDetail is an instruction with everything needed to report on or
// reverse it.
type InstructionDetail struct {
	Instruction
	Batch    Batch     `json:"batch"`
	Mandate  Mandate   `json:"mandate"`
	Person   *Person   `json:"person"`
	Reversal *Reversal `json:"reversal"`
}

// AssignmentDetail is an assignment with its batches and instructions.
type AssignmentDetail struct {
	Assignment
	Batches []BatchDetail `json:"batches"`
}

type BatchDetail struct {
	Batch
	Instructions []InstructionDetail `json:"instructions"`
}

func (b *BatchDetail) NumberOfTransactions() int {
	return len(b.Instructions)
}

// ControlSum is the total amount of all instructions in the batch.
func (b *BatchDetail) ControlSum() decimal.Decimal {
	sum := decimal.Zero
	for _, i := range b.Instructions {
		sum = sum.Add(i.Amount)
	}
	return sum
}

// ReversedSum is the total amount of the reversed instructions in the batch.
func (b *BatchDetail) ReversedSum() decimal.Decimal {
	sum := decimal.Zero
	for _, i := range b.Instructions {
		if i.Reversal != nil {
			sum = sum.Add(i.Amount)
		}
	}
	return sum
}

func (a *AssignmentDetail) NumberOfTransactions() int {
	n := 0
	for i := range a.Batches {
		n += a.Batches[i].NumberOfTransactions()
	}
	return n
}

func (a *AssignmentDetail) ControlSum() decimal.Decimal {
	sum := decimal.Zero
	for i := range a.Batches {
		sum = sum.Add(a.Batches[i].ControlSum())
	}
	return sum
}

func (a *AssignmentDetail) ReversedSum() decimal.Decimal {
	sum := decimal.Zero
	for i := range a.Batches {
		sum = sum.Add(a.Batches[i].ReversedSum())
	}
	return sum
}

// ReversalReason is an ISO 20022 return reason code.
type ReversalReason string

var reversalReasons = map[ReversalReason]string{
	"AC01": "IncorrectAccountNumber",
	"AC04": "ClosedAccountNumber",
	"AC06": "BlockedAccount",
	"AC13": "InvalidDebtorAccountType",
	"AG01": "TransactionForbidden",
	"AG02": "InvalidBankOperationCode",
	"AGNT": "IncorrectAgent",
	"AM04": "InsufficientFunds",
	"AM05": "Duplication",
	"BE05": "UnrecognisedInitiatingParty",
	"CURR": "IncorrectCurrency",
	"CUST": "RequestedByCustomer",
	"DNOR": "Debtor Bank is not registered under this BIC in the CSM",
	"DUPL": "DuplicatePayment",
	"FF01": "InvalidFileFormat",
	"FF05": "InvalidLocalInstrumentCode",
	"MD01": "NoMandate",
	"MD02": "MissingMandatoryInformationInMandate",
	"MD06": "RefundRequestByEndCustomer",
	"MD07": "EndCustomerDeceased",
	"MS02": "NotSpecifiedReasonCustomerGenerated",
	"MS03": "NotSpecifiedReasonAgentGenerated",
	"RC01": "BankIdentifierIncorrect",
	"RR01": "Missing Debtor Account or Identification",
	"RR02": "Missing Debtor Name or Address",
	"RR03": "Missing Creditor Name or Address",
	"RR04": "Regulatory Reason",
	"SL01": "Specific Service offered by Debtor Agent",
}

func (r ReversalReason) Valid() bool {
	_, ok := reversalReasons[r]
	return ok
}

// Description returns e.g. "AM04 - InsufficientFunds".
func (r ReversalReason) Description() string {
	d, ok := reversalReasons[r]
	if !ok {
		return string(r)
	}
	return string(r) + " - " + d
}

// Reversal reports that an instruction failed or was returned.
type Reversal struct {
	ID            int64          `db:"id" json:"id"`
	InstructionID int64          `db:"instruction_id" json:"instructionId"`
	Date          time.Time      `db:"date" json:"date"`
	PreSettlement bool           `db:"pre_settlement" json:"preSettlement"`
	Reason        ReversalReason `db:"reason" json:"reason"`
}
