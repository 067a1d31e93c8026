package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type nudgeBody struct {
	ProjectID uuid.UUID `json:"project_id"`
}

// nudgeHandler backs POST /api/internal/nudge (spec.md §4.5: "single HTTP
// POST... authenticated with the pre-shared key"), decoding the body and
// forwarding straight to the in-process dispatcher. Accepts the body that
// dispatcher.RemoteNudger posts, so a parleyd process running the worker
// in-process is the target of another process's remote-mode nudges.
func (s *Server) nudgeHandler(w http.ResponseWriter, r *http.Request) {
	var body nudgeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.ProjectID == uuid.Nil {
		writeBadRequest(w, http.StatusBadRequest, "project_id is required")
		return
	}

	s.internalDispatcher.Nudge(body.ProjectID)
	w.WriteHeader(http.StatusAccepted)
}
