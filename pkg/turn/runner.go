// Package turn implements the turn worker: the state machine that drains a
// single project's pending message queue one trigger at a time, grounded on
// the teacher's pkg/queue/worker.go (claim → execute → update terminal state
// → publish) and pkg/agent/iteration.go (bounded retry-and-correct loop).
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/cryptoutil"
	"github.com/coworklab/parley/pkg/llm"
	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

// Publisher is the narrow slice of the live-update hub the worker needs,
// defined here (rather than imported from pkg/services) to avoid a cycle.
type Publisher interface {
	Publish(projectID uuid.UUID, eventType string, payload any)
}

// Runner drains one project's pending queue to completion or a stop
// condition (spec.md §4.3 state machine). A Runner is not safe for
// concurrent use on the same project; the dispatcher (pkg/dispatcher)
// guarantees single-flight per project.
type Runner struct {
	store    store.Store
	llm      llm.Client
	pub      Publisher
	cfg      config.WorkerConfig
	tokenKey []byte
	log      *slog.Logger
}

// New builds a Runner. tokenKey decrypts the project's bound token
// (pkg/cryptoutil.DecryptToken), and must be the same 32-byte key the API
// service used to encrypt it.
func New(st store.Store, llmClient llm.Client, pub Publisher, cfg config.WorkerConfig, tokenKey []byte, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{store: st, llm: llmClient, pub: pub, cfg: cfg, tokenKey: tokenKey, log: log}
}

func (r *Runner) decryptToken(t models.Token) (string, error) {
	return cryptoutil.DecryptToken(r.tokenKey, t.EncryptedSecret)
}

// tokenStillActive re-reads the project's bound token's active flag.
func (r *Runner) tokenStillActive(ctx context.Context, project models.Project) (bool, error) {
	if project.TokenID == nil {
		return false, nil
	}
	token, err := r.store.GetToken(ctx, *project.TokenID)
	if err != nil {
		return false, err
	}
	return token.Active, nil
}

// logWarn appends a warn-level log row, publishing the usual events.
func (r *Runner) logWarn(ctx context.Context, projectID uuid.UUID, code, message string) error {
	err := r.withTx(ctx, func(tx store.Tx) error {
		return r.store.CreateLog(ctx, tx, models.Log{
			ID: uuid.New(), ProjectID: projectID, Level: models.LogLevelWarn,
			Code: code, Message: message, CreatedAt: time.Now().UTC(),
		})
	})
	if err == nil && r.pub != nil {
		r.pub.Publish(projectID, "log_created", map[string]any{"code": code, "level": models.LogLevelWarn})
	}
	return err
}

// Run drains projectID's pending queue (spec.md §4.3 steps 1-9). It returns
// nil on every normal stop condition (no pending work, paused, budget
// exhausted, missing token) — those are expected outcomes, not failures.
// Only unexpected storage/wiring errors are returned.
func (r *Runner) Run(ctx context.Context, projectID uuid.UUID) error {
	log := r.log.With("project_id", projectID)

	rc, err := r.fetchContext(ctx, projectID)
	if err != nil {
		if errors.Is(err, perrors.ErrTokenUnavailable) {
			log.Warn("turn: no active token bound to project, stopping run")
			if logErr := r.logWarn(ctx, projectID, "token-inactive", "project has no active bound token"); logErr != nil {
				return fmt.Errorf("turn: log token-inactive: %w", logErr)
			}
			return nil
		}
		return fmt.Errorf("turn: fetch context: %w", err)
	}

	for {
		// project-flags: cheap per-iteration check (spec.md §4.2), including
		// token rotation mid-run (spec.md §8 scenario S6).
		proj, err := r.store.GetProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("turn: project flags: %w", err)
		}
		rc.project = proj
		if rc.project.Paused || rc.project.RemainingBudget <= 0 {
			return nil
		}
		if stillActive, err := r.tokenStillActive(ctx, rc.project); err != nil {
			return fmt.Errorf("turn: check token: %w", err)
		} else if !stillActive {
			if err := r.logWarn(ctx, projectID, "token-inactive", "bound token is no longer active"); err != nil {
				return fmt.Errorf("turn: log token-inactive: %w", err)
			}
			log.Warn("turn: bound token is no longer active, stopping run")
			return nil
		}

		trigger, ok, err := r.nextPending(ctx, projectID)
		if err != nil {
			return fmt.Errorf("turn: next pending: %w", err)
		}
		if !ok {
			return nil
		}

		receiver, ok := rc.members[trigger.ReceiverID]
		if !ok {
			// Membership was revoked after the message was queued; fail it
			// and move on rather than loop forever on an unservable trigger.
			if err := r.failTrigger(ctx, trigger, "member-missing", "trigger receiver is no longer a project member"); err != nil {
				return fmt.Errorf("turn: fail orphaned trigger: %w", err)
			}
			continue
		}

		reply, err := r.callWithCorrections(ctx, log, rc, receiver, trigger)
		if err != nil {
			if errors.Is(err, perrors.ErrFormatInvalid) {
				continue // step 6: logged and persisted as failed; advance to the next trigger
			}
			return fmt.Errorf("turn: call llm: %w", err)
		}

		newBudget, paused, err := r.persistReply(ctx, rc, trigger, receiver, reply)
		if err != nil {
			return fmt.Errorf("turn: persist reply: %w", err)
		}
		rc.project.RemainingBudget = newBudget
		rc.project.Paused = rc.project.Paused || paused
		if r.pub != nil {
			r.pub.Publish(projectID, "new_message", map[string]any{"sender_id": receiver.agent.ID, "recipient_id": reply.recipient})
		}
		if paused {
			if err := r.logWarn(ctx, projectID, "message-limit", "project budget reached zero"); err != nil {
				return fmt.Errorf("turn: log message-limit: %w", err)
			}
			if r.pub != nil {
				r.pub.Publish(projectID, "project_updated", map[string]any{"paused": true, "reason": "budget_exhausted"})
			}
		}

		r.memoryCheck(ctx, log, rc, receiver)
	}
}

// failTrigger implements the shared "mark trigger failed, emit error log"
// tail of step 6 and the orphaned-receiver case above.
func (r *Runner) failTrigger(ctx context.Context, trigger models.Message, code, message string) error {
	return r.withTx(ctx, func(tx store.Tx) error {
		if err := r.store.SetMessageStatus(ctx, tx, trigger.ID, models.MessageStatusFailed); err != nil {
			return err
		}
		return r.store.CreateLog(ctx, tx, models.Log{
			ID: uuid.New(), ProjectID: trigger.ProjectID, Level: models.LogLevelError,
			Code: code, Message: message, CreatedAt: time.Now().UTC(),
		})
	})
}

// withTx runs fn inside a single transaction, committing on success and
// rolling back otherwise (mirrors pkg/services' withTx helper).
func (r *Runner) withTx(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// nextPending claims the oldest pending message in the project, or (_,
// false, nil) if none is claimable (spec.md §4.3 step 2).
func (r *Runner) nextPending(ctx context.Context, projectID uuid.UUID) (models.Message, bool, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return models.Message{}, false, err
	}
	msg, ok, err := r.store.ClaimOldestPending(ctx, tx, projectID)
	if err != nil {
		_ = tx.Rollback()
		return models.Message{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return models.Message{}, false, err
	}
	return msg, ok, nil
}
