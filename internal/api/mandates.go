package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/mandate"
	"github.com/openbuilders/sepa-collector/internal/types"
)

const (
	ActionTerminate = "terminate"
	ActionAnonymize = "anonymize"
)

type AmendmentRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	IBAN   string `json:"iban" validate:"required,iban"`
	BIC    string `json:"bic" validate:"required,bic"`
	Reason string `json:"reason" validate:"required,max=250"`
}

type SequenceResponse struct {
	MandateID    int64              `json:"mandateId"`
	SequenceType types.SequenceType `json:"sequenceType"`
}

type EligibleResponse struct {
	Action string  `json:"action"`
	IDs    []int64 `json:"ids"`
}

type MandateIDsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

func (s *Server) AmendmentHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req AmendmentRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}

	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, errors.InvalidInput("invalid date %q", req.Date)
	}

	return s.services.Mandates.ApplyAmendment(r.Context(), id, mandate.AmendmentRequest{
		Date:   date,
		IBAN:   req.IBAN,
		BIC:    req.BIC,
		Reason: req.Reason,
	})
}

func (s *Server) SequenceHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	sequence, err := s.services.Mandates.NextSequenceType(r.Context(), id)
	if err != nil {
		return nil, err
	}

	return SequenceResponse{MandateID: id, SequenceType: sequence}, nil
}

func (s *Server) eligible(ctx context.Context, action string) ([]int64, error) {
	var (
		ids []int64
		err error
	)

	switch action {
	case ActionTerminate:
		ids, err = s.services.Eligibility.ToTerminate(ctx, s.now())
	case ActionAnonymize:
		ids, err = s.services.Eligibility.ToAnonymize(ctx, s.now())
	default:
		return nil, &APIError{Code: InvalidAction, Description: "action must be terminate or anonymize"}
	}
	if err != nil {
		return nil, err
	}

	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (s *Server) EligibleHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	action := r.URL.Query().Get("action")

	ids, err := s.eligible(r.Context(), action)
	if err != nil {
		return nil, err
	}

	return EligibleResponse{Action: action, IDs: ids}, nil
}

func (s *Server) TerminateHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return s.applyToEligible(r, ActionTerminate, func(ctx context.Context, ids []int64) error {
		return s.services.Mandates.Terminate(ctx, ids, s.today())
	})
}

func (s *Server) AnonymizeHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	return s.applyToEligible(r, ActionAnonymize, s.services.Mandates.Anonymize)
}

// applyToEligible applies fn to the selected mandates under the run lock.
// Every selected mandate must still be eligible for the action.
func (s *Server) applyToEligible(r *http.Request, action string, fn func(context.Context, []int64) error) (interface{}, error) {
	var req MandateIDsRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}

	err := s.services.RunLock.Do(r.Context(), func(ctx context.Context) error {
		eligible, err := s.eligible(ctx, action)
		if err != nil {
			return err
		}

		for _, id := range req.IDs {
			if !slices.Contains(eligible, id) {
				return errors.Precondition("mandate %d is not eligible to %s", id, action)
			}
		}

		return fn(ctx, req.IDs)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Mandates updated", "action", action, "count", len(req.IDs))

	return EligibleResponse{Action: action, IDs: req.IDs}, nil
}
