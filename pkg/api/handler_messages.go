package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/wire"
)

func (s *Server) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationId"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if _, err := s.resolveConversationOwner(r, conversationID); err != nil {
		writeServiceError(w, err)
		return
	}

	messages, err := s.svc.Messages.List(r.Context(), conversationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) createMessageHandler(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationId"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if _, err := s.resolveConversationOwner(r, conversationID); err != nil {
		writeServiceError(w, err)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeCreateMessageRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	message, err := s.svc.Messages.Send(r.Context(), conversationID, req.Content, req.Type)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

// resolveConversationOwner looks up conversationID's owning project and
// confirms the caller owns it, the same ownership gate
// handler_conversations.go and handler_logs.go apply from the project id
// directly — mirrored here via ConversationService.Get since messages are
// addressed by conversation id, not project id.
func (s *Server) resolveConversationOwner(r *http.Request, conversationID uuid.UUID) (uuid.UUID, error) {
	conv, err := s.svc.Conversations.Get(r.Context(), conversationID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.svc.Projects.Get(r.Context(), currentUserID(r), conv.ProjectID); err != nil {
		return uuid.Nil, err
	}
	return conv.ProjectID, nil
}
