package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/coworklab/parley/pkg/dispatcher"
	"github.com/coworklab/parley/pkg/services"
)

// bodyLimit caps the request body at n bytes, grounded on stdlib
// http.MaxBytesReader the way the teacher's chi stack leans on
// net/http primitives directly for concerns chi itself doesn't cover.
func bodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// securityHeaders sets standard security response headers, grounded on the
// teacher's pkg/api/middleware.go securityHeaders (generalized here from
// Gin's middleware signature to plain net/http).
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code a handler wrote, since
// http.ResponseWriter doesn't expose it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger logs every request's method, path, status, and latency
// through log/slog (spec.md §6: structured request logging).
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// sessionAuth rejects requests without a valid session cookie and stores the
// caller's user id on the request context for handlers to read via
// currentUserID.
func sessionAuth(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				writeUnauthorized(w, "unauthenticated")
				return
			}
			userID, err := auth.VerifySession(cookie.Value)
			if err != nil {
				writeUnauthorized(w, "unauthenticated")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
		})
	}
}

// internalKeyAuth gates the internal API surface (spec.md §4.2) behind the
// pre-shared key, compared in constant time.
func internalKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(dispatcher.InternalKeyHeader)
			if !dispatcher.CheckInternalKey(key, got) {
				writeUnauthorized(w, "unauthenticated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
