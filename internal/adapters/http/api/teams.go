package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
	"github.com/okian/hackjudge/internal/domain/roster"
)

type seedRequest struct {
	Teams  []roster.SeedTeam `json:"teams" validate:"required,min=1,dive"`
	DryRun bool              `json:"dryRun"`
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.deps.ListTeams(r.Context(), caller(r), r.URL.Query().Get("track"))
	s.respond(w, r, http.StatusOK, teams, err)
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_team"
	var in service.TeamInput
	if err := decode(r, op, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	t, err := s.deps.CreateTeam(r.Context(), caller(r), in)
	s.respond(w, r, http.StatusCreated, t, err)
}

func (s *Server) handleSeedTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.seed_teams"
	var req seedRequest
	if err := decode(r, op, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	dry, err := queryBool(r, op, "dryRun")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.deps.SeedTeams(r.Context(), caller(r), req.Teams, req.DryRun || dry)
	if err != nil && len(res.Created)+len(res.Failed) > 0 && errors.Is(err, errs.ErrStore) {
		writeJSON(w, http.StatusServiceUnavailable, partialResponse{
			errorResponse: errorResponse{Code: "partial_failure", Message: err.Error()},
			Result:        res,
		})
		return
	}
	status := http.StatusCreated
	if res.DryRun {
		status = http.StatusOK
	}
	s.respond(w, r, status, res, err)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.GetTeam(r.Context(), caller(r), chi.URLParam(r, "teamID"))
	s.respond(w, r, http.StatusOK, t, err)
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_team"
	var patch service.TeamPatch
	if err := decode(r, op, &patch); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	t, err := s.deps.UpdateTeam(r.Context(), caller(r), chi.URLParam(r, "teamID"), patch)
	s.respond(w, r, http.StatusOK, t, err)
}

// handleDeleteTeam answers 200 with the cleanup report. A partial cleanup
// is 503 with the report so the caller can see what is left.
func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.DeleteTeam(r.Context(), caller(r), chi.URLParam(r, "teamID"))
	if err != nil && rep.TeamID != "" && errors.Is(err, errs.ErrStore) {
		writeJSON(w, http.StatusServiceUnavailable, partialResponse{
			errorResponse: errorResponse{Code: "partial_failure", Message: err.Error()},
			Result:        rep,
		})
		return
	}
	s.respond(w, r, http.StatusOK, rep, err)
}

func (s *Server) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_submission"
	var sub model.Submission
	if err := decode(r, op, &sub); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	t, err := s.deps.UpdateSubmission(r.Context(), caller(r), chi.URLParam(r, "teamID"), sub)
	s.respond(w, r, http.StatusOK, t, err)
}

// handleUploadImage takes one multipart "image" part.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload_image"
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<16))
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.writeServiceError(w, r, errs.Wrap(op, errs.ErrValidation, err))
		return
	}
	f, hdr, err := r.FormFile("image")
	if err != nil {
		s.writeServiceError(w, r, errs.New(op, errs.ErrValidation, "image: required"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.maxUploadBytes+1))
	if err != nil {
		s.writeServiceError(w, r, errs.Wrap(op, errs.ErrValidation, err))
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		s.writeServiceError(w, r, errs.Newf(op, errs.ErrValidation, "image: larger than %d bytes", s.maxUploadBytes))
		return
	}
	t, err := s.deps.UploadImage(r.Context(), caller(r), chi.URLParam(r, "teamID"), hdr.Filename, data)
	s.respond(w, r, http.StatusCreated, t, err)
}

func (s *Server) handleTeamFeedback(w http.ResponseWriter, r *http.Request) {
	fb, err := s.deps.TeamFeedback(r.Context(), caller(r), chi.URLParam(r, "teamID"))
	s.respond(w, r, http.StatusOK, fb, err)
}

// partialResponse is an error body that still carries what was done.
type partialResponse struct {
	errorResponse
	Result any `json:"result"`
}
