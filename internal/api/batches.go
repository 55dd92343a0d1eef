package api

import (
	"net/http"

	"github.com/openbuilders/sepa-collector/internal/errors"
	"github.com/openbuilders/sepa-collector/internal/reversal"
	"github.com/openbuilders/sepa-collector/internal/types"
)

type BatchStatusRequest struct {
	Status types.BatchStatus `json:"status" validate:"required"`
}

type BatchStatusResponse struct {
	ID     int64             `json:"id"`
	Status types.BatchStatus `json:"status"`
}

type ReversalRequest struct {
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	PreSettlement bool   `json:"preSettlement"`
	Reason        string `json:"reason" validate:"required,reversal_reason"`
	ActorID       int64  `json:"actorId" validate:"required,gt=0"`
}

func (s *Server) BatchStatusHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req BatchStatusRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}

	if err := s.services.Batcher.SetStatus(r.Context(), id, req.Status); err != nil {
		return nil, err
	}

	return BatchStatusResponse{ID: id, Status: req.Status}, nil
}

func (s *Server) ReversalHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req ReversalRequest
	if err := s.decode(r, &req); err != nil {
		return nil, err
	}

	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, errors.InvalidInput("invalid date %q", req.Date)
	}

	return s.services.Reversals.Process(r.Context(), reversal.ReversalRequest{
		InstructionID: id,
		Date:          date,
		PreSettlement: req.PreSettlement,
		Reason:        types.ReversalReason(req.Reason),
	}, req.ActorID)
}

// InstructionHandler returns an instruction with its batch, mandate, debtor
// and reversal.
func (s *Server) InstructionHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	return s.services.Assignments.GetInstructionDetail(r.Context(), id)
}
