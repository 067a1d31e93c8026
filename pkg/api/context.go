package api

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the signed session value issued
// by services.AuthService.Login.
const SessionCookieName = "parley_session"

// contextKey namespaces values stored on a request's context, grounded on
// the teacher's internal/server/server.go contextKey pattern.
type contextKey string

const userIDContextKey contextKey = "parley.user_id"

// withUserID returns a context carrying the authenticated caller's id, set
// by sessionAuth.
func withUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDContextKey, id)
}

// currentUserID returns the caller's id from a request's context. Only
// valid inside handlers mounted behind sessionAuth — callers that bypass
// that middleware get uuid.Nil.
func currentUserID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDContextKey).(uuid.UUID)
	return id
}

// readBody reads and returns the full request body, capped by the server's
// bodyLimit middleware upstream.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
