package batcher

import (
	"slices"

	"github.com/openbuilders/sepa-collector/internal/types"
)

// Selection holds the rows an operator ticked: contributions by membership
// and personal tabs by person.
type Selection struct {
	MembershipIDs []int64
	PersonIDs     []int64
}

// SelectContributions keeps the rows whose membership was selected.
func SelectContributions(rows []types.Proposal, membershipIDs []int64) []types.Proposal {
	var out []types.Proposal
	for _, r := range rows {
		if r.MembershipID != nil && slices.Contains(membershipIDs, *r.MembershipID) {
			out = append(out, r)
		}
	}
	return out
}

// SelectTabs keeps the rows whose person was selected.
func SelectTabs(rows []types.Proposal, personIDs []int64) []types.Proposal {
	var out []types.Proposal
	for _, r := range rows {
		if slices.Contains(personIDs, r.PersonID) {
			out = append(out, r)
		}
	}
	return out
}

// Apply splits the selected rows of both runs into the FRST and RCUR batches.
// Rows of terminated mandates join the batch of their sequence type. Either
// bucket set may be nil.
func (s Selection) Apply(contributions *types.ContributionBuckets, tabs *types.TabBuckets) (frst, rcur []types.Proposal) {
	if contributions != nil {
		frst = append(frst, SelectContributions(contributions.FRST, s.MembershipIDs)...)
		rcur = append(rcur, SelectContributions(contributions.RCUR, s.MembershipIDs)...)
	}

	if tabs != nil {
		frst = append(frst, SelectTabs(tabs.FRST, s.PersonIDs)...)
		frst = append(frst, SelectTabs(tabs.TerminatedFRST, s.PersonIDs)...)
		rcur = append(rcur, SelectTabs(tabs.RCUR, s.PersonIDs)...)
		rcur = append(rcur, SelectTabs(tabs.TerminatedRCUR, s.PersonIDs)...)
	}

	return frst, rcur
}
