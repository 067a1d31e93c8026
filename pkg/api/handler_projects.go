package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/services"
	"github.com/coworklab/parley/pkg/wire"
)

func (s *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Projects.List(r.Context(), currentUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProjectHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	project, err := s.svc.Projects.Get(r.Context(), currentUserID(r), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeCreateProjectRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	agents := make([]services.CreateProjectAgentInput, 0, len(req.Agents))
	for _, a := range req.Agents {
		agents = append(agents, services.CreateProjectAgentInput{
			Name:          a.Name,
			Role:          a.Role,
			Description:   a.Description,
			Model:         a.Model,
			Prompt:        a.Prompt,
			CanMessageIDs: a.CanMessageIDs,
		})
	}

	project, err := s.svc.Projects.Create(r.Context(), services.CreateProjectInput{
		OwnerID:      currentUserID(r),
		Title:        req.Title,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		TokenID:      req.TokenID,
		Agents:       agents,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	if err := s.svc.Projects.Delete(r.Context(), currentUserID(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) setProjectStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeProjectStatusRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	project, err := s.svc.Projects.SetStatus(r.Context(), currentUserID(r), id, req.Paused)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// setProjectPauseHandler backs PATCH /settings/project/:id/pause, the
// settings-namespace alias of the same pause/resume toggle as
// setProjectStatusHandler (spec.md §6).
func (s *Server) setProjectPauseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeProjectStatusRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	project, err := s.svc.Projects.SetStatus(r.Context(), currentUserID(r), id, req.Paused)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) setProjectTokenHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeSetProjectTokenRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.svc.Projects.SetToken(r.Context(), currentUserID(r), id, req.TokenID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) setProjectLimitHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeSetProjectLimitRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.svc.Projects.SetLimit(r.Context(), currentUserID(r), id, req.Limit); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
