package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) listLogsHandler(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	if _, err := s.svc.Projects.Get(r.Context(), currentUserID(r), projectID); err != nil {
		writeServiceError(w, err)
		return
	}

	logs, err := s.svc.Logs.List(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) clearLogsHandler(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	if _, err := s.svc.Projects.Get(r.Context(), currentUserID(r), projectID); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.svc.Logs.Clear(r.Context(), projectID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
