package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/wire"
)

func (s *Server) listTokensHandler(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.svc.Tokens.List(r.Context(), currentUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeCreateTokenRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	token, err := s.svc.Tokens.Create(r.Context(), currentUserID(r), req.Name, req.APIKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (s *Server) deleteTokenHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid token id")
		return
	}
	if err := s.svc.Tokens.Delete(r.Context(), currentUserID(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) enableTokenHandler(w http.ResponseWriter, r *http.Request) {
	s.setTokenActive(w, r, true)
}

func (s *Server) disableTokenHandler(w http.ResponseWriter, r *http.Request) {
	s.setTokenActive(w, r, false)
}

func (s *Server) setTokenActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, "invalid token id")
		return
	}
	if err := s.svc.Tokens.SetActive(r.Context(), currentUserID(r), id, active); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
