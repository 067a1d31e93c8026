package turn

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/store"
)

// persistReply implements spec.md §4.3 step 7: mark the trigger sent, insert
// the reply message, decrement the project's budget, and increment R's
// message count, all in one transaction.
func (r *Runner) persistReply(ctx context.Context, rc *runContext, trigger models.Message, receiver *memberInfo, reply *parsedReply) (newBudget int, pausedNow bool, err error) {
	now := time.Now().UTC()
	err = r.withTx(ctx, func(tx store.Tx) error {
		if err := r.store.SetMessageStatus(ctx, tx, trigger.ID, models.MessageStatusSent); err != nil {
			return err
		}

		conv, err := r.store.FindConversation(ctx, rc.project.ID, receiver.agent.ID, reply.recipient)
		if err != nil {
			return err
		}
		if err := r.store.CreateMessage(ctx, tx, models.Message{
			ID: uuid.New(), ConversationID: conv.ID, ProjectID: rc.project.ID,
			SenderID: receiver.agent.ID, ReceiverID: reply.recipient,
			Content: reply.body, Type: models.MessageTypeAssistant, Status: models.MessageStatusPending,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		newBudget, pausedNow, err = r.store.DecrementBudget(ctx, tx, rc.project.ID)
		if err != nil {
			return err
		}

		count, err := r.store.IncrementMessageCount(ctx, tx, rc.project.ID, receiver.agent.ID)
		if err != nil {
			return err
		}
		receiver.summary.MessageCount = count

		return r.store.TouchActivity(ctx, tx, rc.project.ID, now)
	})
	return newBudget, pausedNow, err
}

// memoryCheck implements spec.md §4.3 step 8. Summarization failures are
// logged and never abort the run.
func (r *Runner) memoryCheck(ctx context.Context, log *slog.Logger, rc *runContext, receiver *memberInfo) {
	threshold := r.cfg.SummaryThreshold
	if threshold <= 0 || receiver.summary.MessageCount < threshold {
		return
	}

	summary, snapshot, err := r.summarize(ctx, rc, receiver)
	if err != nil {
		log.Warn("turn: summarization failed", "error", err, "agent_id", receiver.agent.ID)
		return
	}

	sm := models.AgentMemorySummary{
		ProjectID: rc.project.ID, AgentID: receiver.agent.ID,
		Summary: summary, Snapshot: snapshot, UpdatedAt: time.Now().UTC(),
	}
	if err := r.withTx(ctx, func(tx store.Tx) error {
		return r.store.UpsertSummary(ctx, tx, sm)
	}); err != nil {
		log.Warn("turn: upsert summary failed", "error", err, "agent_id", receiver.agent.ID)
		return
	}
	receiver.summary.Summary = summary
	receiver.summary.Snapshot = snapshot
	receiver.summary.MessageCount = 0
	receiver.summary.SummaryCount++
}
