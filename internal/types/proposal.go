package types

import (
	"github.com/shopspring/decimal"
)

type ProposalKind string

const (
	ProposalContribution ProposalKind = "contribution"
	ProposalTab          ProposalKind = "tab"
)

// Proposal is an unsaved instruction, or an informational row of a bucket
// for which no instruction can be built (no mandate, negative tab, FRST
// still in flight).
type Proposal struct {
	Kind         ProposalKind    `json:"kind"`
	PersonID     int64           `json:"personId"`
	PersonName   string          `json:"personName"`
	MandateID    *int64          `json:"mandateId,omitempty"`
	SequenceType SequenceType    `json:"sequenceType,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description,omitempty"`
	AmendmentID  *int64          `json:"amendmentId,omitempty"`

	// contribution
	MembershipID   *int64 `json:"membershipId,omitempty"`
	MembershipType string `json:"membershipType,omitempty"`
	Year           int    `json:"year,omitempty"`

	// tab
	TransactionIDs []int64 `json:"transactionIds,omitempty"`
}

// Instructable reports whether an instruction can be saved for p.
func (p *Proposal) Instructable() bool {
	return p.MandateID != nil &&
		(p.SequenceType == SequenceFRST || p.SequenceType == SequenceRCUR) &&
		p.Amount.IsPositive()
}

type BucketTotal struct {
	Count int             `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

func bucketTotal(rows []Proposal) BucketTotal {
	t := BucketTotal{Count: len(rows), Sum: decimal.Zero}
	for _, r := range rows {
		t.Sum = t.Sum.Add(r.Amount)
	}
	return t
}

// ContributionBuckets is the classified result of a contribution run.
type ContributionBuckets struct {
	OngoingFRST     []Proposal `json:"ongoingFrst"`
	FRST            []Proposal `json:"frst"`
	RCUR            []Proposal `json:"rcur"`
	NoAuthorization []Proposal `json:"noAuthorization"`
}

func (b *ContributionBuckets) Totals() map[string]BucketTotal {
	return map[string]BucketTotal{
		"ongoingFrst":     bucketTotal(b.OngoingFRST),
		"frst":            bucketTotal(b.FRST),
		"rcur":            bucketTotal(b.RCUR),
		"noAuthorization": bucketTotal(b.NoAuthorization),
	}
}

// TabBuckets is the classified result of a personal tab run.
type TabBuckets struct {
	Negative        []Proposal `json:"negative"`
	NoAuthorization []Proposal `json:"noAuthorization"`
	TerminatedFRST  []Proposal `json:"terminatedFrst"`
	TerminatedRCUR  []Proposal `json:"terminatedRcur"`
	OngoingFRST     []Proposal `json:"ongoingFrst"`
	FRST            []Proposal `json:"frst"`
	RCUR            []Proposal `json:"rcur"`
}

func (b *TabBuckets) Totals() map[string]BucketTotal {
	return map[string]BucketTotal{
		"negative":        bucketTotal(b.Negative),
		"noAuthorization": bucketTotal(b.NoAuthorization),
		"terminatedFrst":  bucketTotal(b.TerminatedFRST),
		"terminatedRcur":  bucketTotal(b.TerminatedRCUR),
		"ongoingFrst":     bucketTotal(b.OngoingFRST),
		"frst":            bucketTotal(b.FRST),
		"rcur":            bucketTotal(b.RCUR),
	}
}
