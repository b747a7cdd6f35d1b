package api

import (
	"errors"
	"net/http"

	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/domain/errs"
)

type toggleRequest struct {
	service.AssignmentScope
	JudgeID string `json:"judgeId" validate:"required"`
	TeamID  string `json:"teamId" validate:"required"`
}

type bulkFillRequest struct {
	service.AssignmentScope
	JudgeID string `json:"judgeId" validate:"required"`
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	const op = "api.coverage"
	round, err := queryRound(r, op)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	scope := service.AssignmentScope{Round: round, Track: r.URL.Query().Get("track")}
	out, err := s.deps.Coverage(r.Context(), caller(r), scope)
	s.respond(w, r, http.StatusOK, out, err)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	const op = "api.toggle_assignment"
	var req toggleRequest
	if err := decode(r, op, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.deps.ToggleAssignment(r.Context(), caller(r), req.AssignmentScope, req.JudgeID, req.TeamID)
	s.writeAssignment(w, r, res, err)
}

func (s *Server) handleBulkFill(w http.ResponseWriter, r *http.Request) {
	const op = "api.bulk_fill"
	var req bulkFillRequest
	if err := decode(r, op, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.deps.BulkFill(r.Context(), caller(r), req.AssignmentScope, req.JudgeID)
	s.writeAssignment(w, r, res, err)
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	const op = "api.rebalance"
	var scope service.AssignmentScope
	if err := decode(r, op, &scope); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.deps.Rebalance(r.Context(), caller(r), scope)
	s.writeAssignment(w, r, res, err)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	const op = "api.clear_assignments"
	var scope service.AssignmentScope
	if err := decode(r, op, &scope); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.deps.ClearAssignments(r.Context(), caller(r), scope)
	s.writeAssignment(w, r, res, err)
}

// writeAssignment reports partial write failures with the per-judge result.
func (s *Server) writeAssignment(w http.ResponseWriter, r *http.Request, res service.AssignmentResult, err error) {
	if err != nil && len(res.Failed) > 0 && errors.Is(err, errs.ErrStore) {
		writeJSON(w, http.StatusServiceUnavailable, partialResponse{
			errorResponse: errorResponse{Code: "partial_failure", Message: err.Error()},
			Result:        res,
		})
		return
	}
	s.respond(w, r, http.StatusOK, res, err)
}
