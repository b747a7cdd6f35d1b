package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/hackjudge/internal/app"
)

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_reviews"
	round, err := queryRound(r, op)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reviews, err := s.deps.ListReviews(r.Context(), caller(r), round, r.URL.Query().Get("teamId"))
	s.respond(w, r, http.StatusOK, reviews, err)
}

// handleSubmitReview upserts; resubmitting the same key answers 200 again.
func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_review"
	var in service.ReviewInput
	if err := decode(r, op, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rev, err := s.deps.SubmitReview(r.Context(), caller(r), in)
	s.respond(w, r, http.StatusOK, rev, err)
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_review"
	round, err := queryRound(r, op)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rev, err := s.deps.GetReview(r.Context(), caller(r), chi.URLParam(r, "teamID"), chi.URLParam(r, "judgeID"), round)
	s.respond(w, r, http.StatusOK, rev, err)
}
