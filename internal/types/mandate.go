package types

import (
	"fmt"
	"time"
)

// MandateKind discriminates mandates that may only be used for membership
// contributions from general purpose mandates.
type MandateKind string

const (
	KindContribution MandateKind = "contribution"
	KindGeneral      MandateKind = "general"
)

// MandateType describes what a mandate may be used for.
type MandateType struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Contribution  bool   `db:"contribution" json:"contribution"`
	Consumptions  bool   `db:"consumptions" json:"consumptions"`
	Activities    bool   `db:"activities" json:"activities"`
	OtherPayments bool   `db:"other_payments" json:"otherPayments"`
}

// Kind reports whether the type is usable for contributions only.
func (t MandateType) Kind() MandateKind {
	if t.Contribution && !t.Consumptions && !t.Activities {
		return KindContribution
	}
	return KindGeneral
}

// GeneralRank orders consumption mandates by completeness, lower is better:
// consumptions+activities+other, consumptions+activities, consumptions.
func (t MandateType) GeneralRank() int {
	switch {
	case t.Consumptions && t.Activities && t.OtherPayments:
		return 0
	case t.Consumptions && t.Activities:
		return 1
	case t.Consumptions:
		return 2
	default:
		return 3
	}
}

// Mandate is a (signed or unsigned) authorization to collect funds from a
// bank account.
type Mandate struct {
	ID                int64       `db:"id" json:"id"`
	Type              MandateType `json:"type"`
	PersonID          *int64      `db:"person_id" json:"personId"`
	IBAN              string      `db:"iban" json:"iban"`
	BIC               string      `db:"bic" json:"bic"`
	AccountHolderName string      `db:"account_holder_name" json:"accountHolderName"`
	IsSigned          bool        `db:"is_signed" json:"isSigned"`
	StartDate         time.Time   `db:"start_date" json:"startDate"`
	EndDate           *time.Time  `db:"end_date" json:"endDate"`
}

// IsActive means signed and not ended.
func (m *Mandate) IsActive() bool {
	return m.IsSigned && m.EndDate == nil
}

// IsAnonymized is true once the personal data has been removed.
func (m *Mandate) IsAnonymized() bool {
	return m.PersonID == nil
}

// Amendment is a change of bank details of a mandate. It is pending until the
// next instruction for the mandate consumes it.
type Amendment struct {
	ID            int64     `db:"id" json:"id"`
	MandateID     int64     `db:"mandate_id" json:"mandateId"`
	Date          time.Time `db:"date" json:"date"`
	PreviousIBAN  string    `db:"previous_iban" json:"previousIban"`
	PreviousBIC   string    `db:"previous_bic" json:"previousBic"`
	OtherBank     bool      `db:"other_bank" json:"otherBank"`
	Reason        string    `db:"reason" json:"reason"`
	InstructionID *int64    `db:"instruction_id" json:"instructionId"`
}

func (a *Amendment) Pending() bool {
	return a.InstructionID == nil
}

// Prefixes hold the installation specific prefixes of SEPA references.
type Prefixes struct {
	Mandate     string
	Message     string
	PaymentInfo string
	Instruction string
}

var DefaultPrefixes = Prefixes{
	Mandate:     "IA-MNDT-",
	Message:     "IA-MSG-",
	PaymentInfo: "IA-PMTINF-",
	Instruction: "IA-INSTR-",
}

func (p Prefixes) MandateReference(id int64) string {
	return fmt.Sprintf("%s%08d", p.Mandate, id)
}

func (p Prefixes) FileIdentification(assignmentID int64) string {
	return fmt.Sprintf("%s%08d", p.Message, assignmentID)
}

func (p Prefixes) PaymentInfoReference(batchID int64) string {
	return fmt.Sprintf("%s%08d", p.PaymentInfo, batchID)
}

// EndToEndID derives the end-to-end id of a persisted instruction.
func (p Prefixes) EndToEndID(instructionID int64) string {
	return fmt.Sprintf("%s%08d", p.Instruction, instructionID)
}
