package api

import (
	"fmt"
	"net/http"

	"github.com/openbuilders/sepa-collector/internal/report"
	"github.com/openbuilders/sepa-collector/internal/types"
)

func (s *Server) AssignmentHandler(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	detail, err := s.services.Assignments.GetAssignmentDetail(r.Context(), id)
	if err != nil {
		return nil, err
	}

	resp := AssignmentResponse{
		Assignment:         detail.Assignment,
		FileIdentification: s.config.Prefixes.FileIdentification(detail.ID),
		Totals: Totals{
			NumberOfTransactions: detail.NumberOfTransactions(),
			ControlSum:           detail.ControlSum(),
			ReversedSum:          detail.ReversedSum(),
		},
		Batches: make([]BatchResponse, 0, len(detail.Batches)),
	}

	for i := range detail.Batches {
		b := &detail.Batches[i]
		instructions := b.Instructions
		if instructions == nil {
			instructions = []types.InstructionDetail{}
		}

		resp.Batches = append(resp.Batches, BatchResponse{
			Batch:              b.Batch,
			PaymentInformation: s.config.Prefixes.PaymentInfoReference(b.ID),
			Totals: Totals{
				NumberOfTransactions: b.NumberOfTransactions(),
				ControlSum:           b.ControlSum(),
				ReversedSum:          b.ReversedSum(),
			},
			Instructions: instructions,
		})
	}

	return resp, nil
}

// ExportAssignmentHandler streams the assignment as an xlsx workbook.
func (s *Server) ExportAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WithJSONResponse(func(http.ResponseWriter, *http.Request) (interface{}, error) { return nil, err })(w, r)
		return
	}

	detail, err := s.services.Assignments.GetAssignmentDetail(r.Context(), id)
	if err != nil {
		WithJSONResponse(func(http.ResponseWriter, *http.Request) (interface{}, error) { return nil, err })(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`,
		s.config.Prefixes.FileIdentification(detail.ID)))

	if err := report.Write(w, detail, s.config.Prefixes); err != nil {
		s.log.Error("couldn't write assignment export", "assignment", id, "error", err)
	}
}
