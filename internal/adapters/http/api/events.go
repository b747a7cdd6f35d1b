package api

import (
	"net/http"

	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/domain/model"
)

type signInRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

type signInResponse struct {
	Caller model.Caller `json:"caller"`
	Token  string       `json:"token"`
}

type phaseRequest struct {
	Phase model.Phase `json:"phase" validate:"required,oneof=submission judging finals closed"`
}

type finalsRequest struct {
	TeamIDs  []string `json:"finalsTeamIds" validate:"omitempty,dive,required"`
	JudgeIDs []string `json:"finalsJudgeIds" validate:"omitempty,dive,required"`
}

func (f finalsRequest) selection() service.FinalsSelection {
	return service.FinalsSelection{TeamIDs: f.TeamIDs, JudgeIDs: f.JudgeIDs}
}

// handleSignIn answers with the caller and the bearer token to send next.
// Unknown codes are 401, not 404.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_in"
	var req signInRequest
	if err := decode(r, op, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := s.deps.SignIn(r.Context(), req.Code)
	if err != nil {
		if status, _ := statusFor(err); status == http.StatusNotFound {
			writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{Caller: c, Token: service.NormalizeCode(req.Code)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, caller(r))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.deps.GetEvent(r.Context(), caller(r))
	s.respond(w, r, http.StatusOK, ev, err)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_settings"
	var patch model.SettingsPatch
	if err := decode(r, op, &patch); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ev, err := s.deps.UpdateSettings(r.Context(), caller(r), patch)
	s.respond(w, r, http.StatusOK, ev, err)
}

func (s *Server) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_phase"
	var req phaseRequest
	if err := decode(r, op, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ev, err := s.deps.SetPhase(r.Context(), caller(r), req.Phase)
	s.respond(w, r, http.StatusOK, ev, err)
}

func (s *Server) handleSetFinals(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_finals"
	var req finalsRequest
	if err := decode(r, op, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ev, err := s.deps.SetFinals(r.Context(), caller(r), req.selection())
	s.respond(w, r, http.StatusOK, ev, err)
}

func (s *Server) handleStartFinals(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_finals"
	var req finalsRequest
	if err := decode(r, op, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ev, err := s.deps.StartFinals(r.Context(), caller(r), req.selection())
	s.respond(w, r, http.StatusOK, ev, err)
}

func (s *Server) handleRevertFinals(w http.ResponseWriter, r *http.Request) {
	ev, err := s.deps.RevertFinals(r.Context(), caller(r))
	s.respond(w, r, http.StatusOK, ev, err)
}

func (s *Server) handleSuggestFinals(w http.ResponseWriter, r *http.Request) {
	const op = "api.suggest_finals"
	topN, err := queryInt(r, op, "topN")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rows, err := s.deps.SuggestFinals(r.Context(), caller(r), topN)
	s.respond(w, r, http.StatusOK, rows, err)
}

func (s *Server) handleGetRubric(w http.ResponseWriter, r *http.Request) {
	rb, err := s.deps.GetRubric(r.Context(), caller(r))
	s.respond(w, r, http.StatusOK, rb, err)
}

func (s *Server) handleSaveRubric(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_rubric"
	var rb model.Rubric
	if err := decode(r, op, &rb); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	saved, err := s.deps.SaveRubric(r.Context(), caller(r), rb)
	s.respond(w, r, http.StatusOK, saved, err)
}

// respond writes v with status, or the mapped error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}
