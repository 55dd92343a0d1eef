package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Person is the owner of mandates and ledger rows. Managed outside of this
// service.
type Person struct {
	ID                int64  `db:"id" json:"id"`
	FirstName         string `db:"first_name" json:"firstName"`
	Initials          string `db:"initials" json:"initials"`
	LastNamePrefix    string `db:"last_name_prefix" json:"lastNamePrefix"`
	LastName          string `db:"last_name" json:"lastName"`
	PreferredLanguage string `db:"preferred_language" json:"preferredLanguage"`
}

// IncompleteName is the first name (or initials if unknown), the last name
// prefix and the last name.
func (p *Person) IncompleteName() string {
	first := p.FirstName
	if first == "" && p.Initials != "" {
		first = p.Initials
	}

	parts := []string{first}
	if p.LastNamePrefix != "" {
		parts = append(parts, p.LastNamePrefix)
	}
	parts = append(parts, p.LastName)

	return strings.Join(parts, " ")
}

// Membership of a person in an association year.
type Membership struct {
	ID       int64           `db:"id" json:"id"`
	PersonID int64           `db:"person_id" json:"personId"`
	TypeName string          `db:"type_name" json:"typeName"`
	Fee      decimal.Decimal `db:"fee" json:"fee"`
	Year     int             `db:"year" json:"year"`
	Ended    *time.Time      `db:"ended" json:"ended"`
	Paid     bool            `db:"paid" json:"paid"`
}

const PaymentMethodDirectDebit = "direct_debit"

// Payment marks the fee of a membership as paid.
type Payment struct {
	ID           int64           `db:"id" json:"id"`
	MembershipID int64           `db:"membership_id" json:"membershipId"`
	Date         time.Time       `db:"date" json:"date"`
	Method       string          `db:"method" json:"method"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
}

// AssociationYear returns the association year of t. Years start on 1 July.
func AssociationYear(t time.Time) int {
	if t.Month() >= time.July {
		return t.Year()
	}
	return t.Year() - 1
}
