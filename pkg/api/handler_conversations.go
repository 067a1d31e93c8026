package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/wire"
)

func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	if _, err := s.svc.Projects.Get(r.Context(), currentUserID(r), projectID); err != nil {
		writeServiceError(w, err)
		return
	}

	conversations, err := s.svc.Conversations.List(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) createConversationHandler(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid project id")
		return
	}
	if _, err := s.svc.Projects.Get(r.Context(), currentUserID(r), projectID); err != nil {
		writeServiceError(w, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeCreateConversationRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	conversation, err := s.svc.Conversations.Create(r.Context(), projectID, req.ReceiverID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}
