package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/hackjudge/internal/app"
)

type capacityRequest struct {
	Capacity *int `json:"capacity" validate:"omitempty,min=0"`
}

func (s *Server) handleListJudges(w http.ResponseWriter, r *http.Request) {
	judges, err := s.deps.ListJudges(r.Context(), caller(r))
	s.respond(w, r, http.StatusOK, judges, err)
}

func (s *Server) handleCreateJudge(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_judge"
	var in service.JudgeInput
	if err := decode(r, op, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	j, err := s.deps.CreateJudge(r.Context(), caller(r), in)
	s.respond(w, r, http.StatusCreated, j, err)
}

func (s *Server) handleGetJudge(w http.ResponseWriter, r *http.Request) {
	j, err := s.deps.GetJudge(r.Context(), caller(r), chi.URLParam(r, "judgeID"))
	s.respond(w, r, http.StatusOK, j, err)
}

func (s *Server) handleUpdateJudge(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_judge"
	var patch service.JudgePatch
	if err := decode(r, op, &patch); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	j, err := s.deps.UpdateJudge(r.Context(), caller(r), chi.URLParam(r, "judgeID"), patch)
	s.respond(w, r, http.StatusOK, j, err)
}

func (s *Server) handleDeleteJudge(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeleteJudge(r.Context(), caller(r), chi.URLParam(r, "judgeID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetCapacity takes {"capacity": null} to clear the cap.
func (s *Server) handleSetCapacity(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_capacity"
	var req capacityRequest
	if err := decode(r, op, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	j, err := s.deps.SetCapacity(r.Context(), caller(r), chi.URLParam(r, "judgeID"), req.Capacity)
	s.respond(w, r, http.StatusOK, j, err)
}

func (s *Server) handleJudgeQueue(w http.ResponseWriter, r *http.Request) {
	const op = "api.judge_queue"
	round, err := queryRound(r, op)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q, err := s.deps.JudgeQueue(r.Context(), caller(r), chi.URLParam(r, "judgeID"), round)
	s.respond(w, r, http.StatusOK, q, err)
}
