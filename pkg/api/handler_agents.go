package api

import (
	"net/http"

	"github.com/coworklab/parley/pkg/wire"
)

func (s *Server) listAgentsHandler(w http.ResponseWriter, r *http.Request) {
	agents, err := s.svc.Agents.List(r.Context(), currentUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) createAgentHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeCreateAgentRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	agent, err := s.svc.Agents.Create(r.Context(), currentUserID(r), req.Name, req.Role, req.Description, req.Model)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}
