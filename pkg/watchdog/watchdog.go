// Package watchdog implements the background stall/idle scan (spec.md
// §4.4), grounded on the teacher's pkg/cleanup.Service: a ticking loop with
// Start/Stop, re-running its full scan once immediately and then on every
// tick until stopped.
package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/store"
)

// Publisher is the narrow slice of the live-update hub the watchdog needs to
// announce a pause it triggers, defined locally (as in pkg/turn) to avoid an
// import cycle.
type Publisher interface {
	Publish(projectID uuid.UUID, eventType string, payload any)
}

// Service periodically scans every active (unpaused) project for two stop
// conditions spec.md §4.4 assigns to the watchdog rather than the turn
// worker itself:
//
//   - stall: the oldest pending message has been waiting longer than
//     StallTimeout, meaning nudges for this project are not being drained.
//   - idle: the project's last_activity_at is older than IdleTimeout, with
//     no pending work at all.
//
// Both conditions pause the project and emit a warn-level log so the
// reason surfaces on the project's timeline (spec.md §8 scenario S4).
type Service struct {
	store store.Store
	pub   Publisher
	cfg   config.WatchdogConfig
	log   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a watchdog Service.
func New(st store.Store, pub Publisher, cfg config.WatchdogConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, pub: pub, cfg: cfg, log: log}
}

// Start launches the background scan loop. Safe to call once; a second call
// before Stop is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.log.Info("watchdog: started", "interval", s.cfg.Interval,
		"stall_timeout", s.cfg.StallTimeout, "idle_timeout", s.cfg.IdleTimeout)
}

// Stop signals the scan loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("watchdog: stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.scanAll(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanAll(ctx)
		}
	}
}

func (s *Service) scanAll(ctx context.Context) {
	ids, err := s.store.ActiveProjects(ctx)
	if err != nil {
		s.log.Error("watchdog: list active projects failed", "error", err)
		return
	}
	for _, id := range ids {
		s.scanOne(ctx, id)
	}
}

func (s *Service) scanOne(ctx context.Context, projectID uuid.UUID) {
	age, hasPending, err := s.store.OldestPendingAge(ctx, projectID)
	if err != nil {
		s.log.Error("watchdog: oldest pending age failed", "project_id", projectID, "error", err)
		return
	}

	if hasPending {
		if age >= s.cfg.StallTimeout {
			s.pause(ctx, projectID, "stall", "oldest pending message has exceeded the stall timeout")
		}
		return
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		s.log.Error("watchdog: get project failed", "project_id", projectID, "error", err)
		return
	}
	if time.Since(project.LastActivityAt) >= s.cfg.IdleTimeout {
		s.pause(ctx, projectID, "idle", "project has had no activity within the idle timeout")
	}
}

func (s *Service) pause(ctx context.Context, projectID uuid.UUID, code, message string) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		s.log.Error("watchdog: begin tx failed", "project_id", projectID, "error", err)
		return
	}
	if err := s.store.SetPaused(ctx, tx, projectID, true); err != nil {
		_ = tx.Rollback()
		s.log.Error("watchdog: set paused failed", "project_id", projectID, "error", err)
		return
	}
	if err := s.store.CreateLog(ctx, tx, models.Log{
		ID: uuid.New(), ProjectID: projectID, Level: models.LogLevelWarn,
		Code: code, Message: message, CreatedAt: time.Now().UTC(),
	}); err != nil {
		_ = tx.Rollback()
		s.log.Error("watchdog: create log failed", "project_id", projectID, "error", err)
		return
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("watchdog: commit failed", "project_id", projectID, "error", err)
		return
	}

	s.log.Warn("watchdog: paused project", "project_id", projectID, "code", code)
	if s.pub != nil {
		s.pub.Publish(projectID, "project_updated", map[string]any{"paused": true, "reason": code})
		s.pub.Publish(projectID, "log_created", map[string]any{"code": code, "level": models.LogLevelWarn})
	}
}
