// Package api wires parley's user-facing and internal HTTP surfaces on top
// of chi, grounded on telnet2-opencode's internal/server package (same
// chi.NewRouter + setupMiddleware/setupRoutes + Start/Shutdown shape) and
// the teacher's pkg/api handler idiom: read the body, decode it, validate,
// transform to a service input, call the service, map the error or write
// JSON.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/dispatcher"
	"github.com/coworklab/parley/pkg/events"
	"github.com/coworklab/parley/pkg/services"
	"github.com/coworklab/parley/pkg/version"
)

// Server is parley's HTTP API server: one chi router carrying both the
// user-facing routes (session-cookie auth) and the internal routes
// (pre-shared-key auth).
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        config.Config
	svc        *services.Services
	hub        *events.Hub
	log        *slog.Logger

	// internalDispatcher is set only when the worker runs in-process; it
	// backs POST /api/internal/nudge so a remote worker process (or this
	// same process acting as its own caller in tests) can drive it over
	// HTTP. In remote-worker deployments this server has no dispatcher of
	// its own to expose and the route is omitted.
	internalDispatcher *dispatcher.Dispatcher
}

// NewServer builds a Server. internalDispatcher may be nil — see the field
// doc — in which case the API process still serves the user-facing routes
// but exposes no internal nudge endpoint of its own.
func NewServer(cfg config.Config, svc *services.Services, hub *events.Hub, internalDispatcher *dispatcher.Dispatcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		router:             chi.NewRouter(),
		cfg:                cfg,
		svc:                svc,
		hub:                hub,
		internalDispatcher: internalDispatcher,
		log:                log,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware installs process-wide middleware, grounded on the
// teacher's internal/server/server.go setupMiddleware (RequestID, Logger,
// Recoverer, CORS, then an app-specific middleware).
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)
	s.router.Use(bodyLimit(2 * 1024 * 1024))
	s.router.Use(securityHeaders)
	s.router.Use(requestLogger(s.log))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", dispatcher.InternalKeyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes registers every user-facing and internal route.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthHandler)

	// Live-update channel: a single persistent connection at "/", gated by
	// the same session cookie as the rest of the user-facing API (spec.md
	// §4.6: "clients authenticate with the same session cookie").
	s.router.Group(func(r chi.Router) {
		r.Use(sessionAuth(s.svc.Auth))
		r.Get("/", s.wsHandler)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.registerHandler)
			r.Post("/login", s.loginHandler)
			r.Group(func(r chi.Router) {
				r.Use(sessionAuth(s.svc.Auth))
				r.Post("/logout", s.logoutHandler)
				r.Get("/me", s.meHandler)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(sessionAuth(s.svc.Auth))

			r.Get("/agents", s.listAgentsHandler)
			r.Post("/agents", s.createAgentHandler)

			r.Get("/tokens", s.listTokensHandler)
			r.Post("/tokens", s.createTokenHandler)
			r.Delete("/tokens/{id}", s.deleteTokenHandler)
			r.Patch("/tokens/{id}/enable", s.enableTokenHandler)
			r.Patch("/tokens/{id}/disable", s.disableTokenHandler)

			r.Get("/projects", s.listProjectsHandler)
			r.Get("/projects/{id}", s.getProjectHandler)
			r.Post("/projects", s.createProjectHandler)
			r.Delete("/projects/{id}", s.deleteProjectHandler)
			r.Post("/projects/{id}/status", s.setProjectStatusHandler)

			r.Patch("/settings/project/{id}/token", s.setProjectTokenHandler)
			r.Patch("/settings/project/{id}/pause", s.setProjectPauseHandler)
			r.Patch("/settings/project/{id}/limit", s.setProjectLimitHandler)

			r.Get("/conversations/{projectId}", s.listConversationsHandler)
			r.Post("/conversations/{projectId}", s.createConversationHandler)

			r.Get("/messages/{conversationId}", s.listMessagesHandler)
			r.Post("/messages/{conversationId}", s.createMessageHandler)

			r.Get("/logs/{projectId}", s.listLogsHandler)
			r.Delete("/logs/{projectId}", s.clearLogsHandler)
		})

		r.Route("/internal", func(r chi.Router) {
			r.Use(internalKeyAuth(s.cfg.Security.InternalAPIKey))
			r.Get("/health", s.internalHealthHandler)
			if s.internalDispatcher != nil {
				r.Post("/nudge", s.nudgeHandler)
			}
		})
	})
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by tests to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: version.Full()})
}

func (s *Server) internalHealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: version.Full()})
}
