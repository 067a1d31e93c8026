// Package services implements parley's write-side business logic: the API
// handlers call into these services, never the store directly, so every
// multi-statement transition runs inside exactly one transaction and every
// successful write is followed by a publish-then-nudge step, matching the
// teacher's pkg/services layer sitting between pkg/api and the persistence
// client.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/store"
)

// Publisher fans out a typed event to live-update subscribers of a project.
// Implemented by pkg/events.Hub; kept as a narrow interface here so services
// never import the hub's connection-management internals.
type Publisher interface {
	Publish(projectID uuid.UUID, eventType string, payload any)
}

// Nudger requests that the turn worker drain a project's pending queue.
// Implemented by pkg/dispatcher.Dispatcher (in-process) or its HTTP client
// (remote mode).
type Nudger interface {
	Nudge(projectID uuid.UUID)
}

// Services aggregates every write-side service, constructed once at startup
// and handed to pkg/api's route handlers.
type Services struct {
	Auth          *AuthService
	Agents        *AgentService
	Tokens        *TokenService
	Projects      *ProjectService
	Conversations *ConversationService
	Messages      *MessageService
	Logs          *LogService
}

// New wires every service against the shared store, crypto keys, publisher,
// and nudger.
func New(st store.Store, cfg config.Config, pub Publisher, nudge Nudger) *Services {
	demo := demoGuard{cfg: cfg.Demo}
	return &Services{
		Auth:          &AuthService{store: st, sessionKey: cfg.Security.SessionSigningKey, sessionTTL: cfg.Security.SessionTTL},
		Agents:        &AgentService{store: st},
		Tokens:        &TokenService{store: st, encKey: cfg.Security.TokenEncryptionKey, demo: demo},
		Projects:      &ProjectService{store: st, pub: pub, nudge: nudge, demo: demo, limitCeil: cfg.Demo.MessageLimitCeil},
		Conversations: &ConversationService{store: st},
		Messages:      &MessageService{store: st, pub: pub, nudge: nudge, maxLen: cfg.Worker.MaxMessageLength},
		Logs:          &LogService{store: st},
	}
}

// demoGuard centralizes the "demo/snapshot objects are read-only" rule
// (spec.md §3 and §8 scenario 5) so every service that touches a protected id
// enforces it identically.
type demoGuard struct {
	cfg config.DemoConfig
}

func (d demoGuard) isProtectedProject(id uuid.UUID) bool {
	if id == d.cfg.SnapshotProjectID && id != uuid.Nil {
		return true
	}
	for _, p := range d.cfg.ProjectIDs {
		if p == id {
			return true
		}
	}
	return false
}

func (d demoGuard) isProtectedToken(id uuid.UUID) bool {
	return id != uuid.Nil && id == d.cfg.TokenID
}

func (d demoGuard) messageLimitCeiling(ownerID uuid.UUID) (ceil int, capped bool) {
	if d.cfg.UserID != uuid.Nil && ownerID == d.cfg.UserID {
		return d.cfg.MessageLimitCeil, true
	}
	return 0, false
}

// withTx runs fn inside a fresh transaction, committing on success and
// rolling back on any error (including a panic recovered by the caller's own
// defer, which this helper does not install — callers run in request
// handlers where a panic is already recovered by chi's Recoverer middleware).
func withTx(ctx context.Context, st store.Store, fn func(tx store.Tx) error) error {
	tx, err := st.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func now() time.Time { return time.Now().UTC() }
