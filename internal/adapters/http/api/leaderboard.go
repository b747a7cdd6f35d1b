package api

import "net/http"

// handleResults handles GET /api/v1/results?round=&hideUnderCovered=.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.results"
	round, err := queryRound(r, op)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	hide, err := queryBool(r, op, "hideUnderCovered")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	board, err := s.deps.Results(r.Context(), caller(r), round, hide)
	s.respond(w, r, http.StatusOK, board, err)
}
