package api

import (
	"context"
	"net/http"
	"time"

	"github.com/openbuilders/sepa-collector/internal/batcher"
	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/types"
	"github.com/shopspring/decimal"
)

type ProposalsRequest struct {
	Contributions bool `json:"contributions"`
	Tabs          bool `json:"tabs"`
	// association year of the contributions, defaults to the current one
	Year int `json:"year" validate:"omitempty,min=2000,max=2200"`
	// end of the tab period, defaults to now
	End *time.Time `json:"end"`
}

type ProposalsResponse struct {
	Contributions      *types.ContributionBuckets   `json:"contributions,omitempty"`
	ContributionTotals map[string]types.BucketTotal `json:"contributionTotals,omitempty"`
	Tabs               *types.TabBuckets            `json:"tabs,omitempty"`
	TabTotals          map[string]types.BucketTotal `json:"tabTotals,omitempty"`
}

type CommitAssignmentRequest struct {
	Description   string     `json:"description" validate:"required,max=50"`
	ExecutionDate string     `json:"executionDate" validate:"required,datetime=2006-01-02"`
	Year          int        `json:"year" validate:"omitempty,min=2000,max=2200"`
	End           *time.Time `json:"end"`
	MembershipIDs []int64    `json:"membershipIds" validate:"dive,gt=0"`
	PersonIDs     []int64    `json:"personIds" validate:"dive,gt=0"`
}

type Totals struct {
	NumberOfTransactions int             `json:"numberOfTransactions"`
	ControlSum           decimal.Decimal `json:"controlSum"`
	ReversedSum          decimal.Decimal `json:"reversedSum"`
}

type BatchResponse struct {
	types.Batch
	PaymentInformation string                    `json:"paymentInformation"`
	Totals             Totals                    `json:"totals"`
	Instructions       []types.InstructionDetail `json:"instructions"`
}

type AssignmentResponse struct {
	types.Assignment
	FileIdentification string          `json:"fileIdentification"`
	Totals             Totals          `json:"totals"`
	Batches            []BatchResponse `json:"batches"`
}

func (s *Server) year(requested int) int {
	if requested != 0 {
		return requested
	}
	return types.AssociationYear(s.now().In(s.config.Location))
}

func (s *Server) end(requested *time.Time) time.Time {
	if requested != nil {
		return *requested
	}
	return s.now()
}

func (s *Server) ProposalsHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var req ProposalsRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}

	if !req.Contributions && !req.Tabs {
		req.Contributions, req.Tabs = true, true
	}

	var resp ProposalsResponse

	if req.Contributions {
		buckets, err := s.services.Generator.ContributionInstructions(r.Context(), s.year(req.Year), s.today())
		if err != nil {
			return nil, err
		}
		resp.Contributions = buckets
		resp.ContributionTotals = buckets.Totals()
	}

	if req.Tabs {
		buckets, err := s.services.Generator.TabInstructions(r.Context(), s.end(req.End))
		if err != nil {
			return nil, err
		}
		resp.Tabs = buckets
		resp.TabTotals = buckets.Totals()
	}

	return resp, nil
}

// CommitAssignmentHandler regenerates the proposals under the run lock, keeps
// the selected rows and commits them as one assignment.
func (s *Server) CommitAssignmentHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	var req CommitAssignmentRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}

	if len(req.MembershipIDs) == 0 && len(req.PersonIDs) == 0 {
		return nil, errors.InvalidInput("select at least one membership or person")
	}

	executionDate, err := s.parseDate(req.ExecutionDate)
	if err != nil {
		return nil, errors.InvalidInput("invalid execution date %q", req.ExecutionDate)
	}

	var result *batcher.CommitResult

	err = s.services.RunLock.Do(r.Context(), func(ctx context.Context) error {
		var (
			contributions *types.ContributionBuckets
			tabs          *types.TabBuckets
			start, end    *time.Time
			err           error
		)

		if len(req.MembershipIDs) > 0 {
			contributions, err = s.services.Generator.ContributionInstructions(ctx, s.year(req.Year), s.today())
			if err != nil {
				return err
			}
		}

		if len(req.PersonIDs) > 0 {
			e := s.end(req.End)
			tabs, err = s.services.Generator.TabInstructions(ctx, e)
			if err != nil {
				return err
			}
			epoch := s.config.Epoch
			start, end = &epoch, &e
		}

		selection := batcher.Selection{MembershipIDs: req.MembershipIDs, PersonIDs: req.PersonIDs}
		frst, rcur := selection.Apply(contributions, tabs)

		result, err = s.services.Batcher.Commit(ctx, batcher.CommitRequest{
			Description:   req.Description,
			ExecutionDate: executionDate,
			Start:         start,
			End:           end,
			FRST:          frst,
			RCUR:          rcur,
		}, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Assignment committed",
		"assignment", result.Assignment.ID,
		"instructions", len(result.Instructions),
		"memberships", helpers.SelectionFingerprint(req.MembershipIDs),
		"persons", helpers.SelectionFingerprint(req.PersonIDs),
	)

	return result, nil
}
