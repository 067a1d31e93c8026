package dispatcher

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// InternalKeyHeader is the pre-shared-key header checked on every request to
// the internal API surface, including the remote nudge endpoint (spec.md
// §4.2, §4.5).
const InternalKeyHeader = "X-Parley-Internal-Key"

// RemoteNudger implements services.Nudger by POSTing to a remote worker
// process's internal surface (spec.md §4.5: "single HTTP POST ...
// authenticated with the pre-shared key"), for PARLEY_WORKER_MODE=remote.
type RemoteNudger struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *slog.Logger
}

// NewRemoteNudger builds a RemoteNudger that posts to baseURL (the remote
// worker's internal API root, e.g. "https://worker.internal:8080").
func NewRemoteNudger(baseURL, apiKey string, log *slog.Logger) *RemoteNudger {
	if log == nil {
		log = slog.Default()
	}
	return &RemoteNudger{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type nudgeRequest struct {
	ProjectID uuid.UUID `json:"project_id"`
}

// Nudge asynchronously posts a nudge request; failures are logged, never
// returned, since Nudge is fire-and-forget by contract (services call it
// after commit and do not block the request path on worker availability).
func (r *RemoteNudger) Nudge(projectID uuid.UUID) {
	go func() {
		body, err := json.Marshal(nudgeRequest{ProjectID: projectID})
		if err != nil {
			r.log.Error("remote nudger: marshal failed", "error", err)
			return
		}
		req, err := http.NewRequest(http.MethodPost, r.baseURL+"/api/internal/nudge", bytes.NewReader(body))
		if err != nil {
			r.log.Error("remote nudger: build request failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(InternalKeyHeader, r.apiKey)

		resp, err := r.client.Do(req)
		if err != nil {
			r.log.Error("remote nudger: request failed", "project_id", projectID, "error", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			r.log.Error("remote nudger: non-2xx response", "project_id", projectID,
				"status", resp.StatusCode, "body", string(respBody))
		}
	}()
}

// CheckInternalKey compares got against want using a constant-time
// comparison (spec.md §4.2). Returns false on any mismatch, including
// differing lengths.
func CheckInternalKey(want, got string) bool {
	if len(want) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// HandleNudge is an HTTP handler for the nudge body RemoteNudger sends: it
// decodes the request body and forwards to the in-process Dispatcher.
// parleyd does not mount it; POST /api/internal/nudge is served by
// api.Server's own nudgeHandler.
func HandleNudge(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body nudgeRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if body.ProjectID == uuid.Nil {
			http.Error(w, "project_id is required", http.StatusBadRequest)
			return
		}
		d.Nudge(body.ProjectID)
		w.WriteHeader(http.StatusAccepted)
	}
}
