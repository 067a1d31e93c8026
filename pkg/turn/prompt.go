package turn

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/llm"
	"github.com/coworklab/parley/pkg/models"
)

// buildPrompt assembles R's ordered prompt (spec.md §4.3 step 3): project
// system prompt + override, latest summary, a capped short-term window of
// messages involving R, and the trigger itself.
func (r *Runner) buildPrompt(ctx context.Context, rc *runContext, receiver *memberInfo, trigger models.Message) ([]llm.Message, error) {
	var msgs []llm.Message

	systemBlock := rc.project.SystemPrompt
	if role := receiver.effectiveRole(); role != "" {
		systemBlock += "\n\nYour role: " + role
	}
	if prompt := receiver.effectivePrompt(); prompt != "" {
		systemBlock += "\n\n" + prompt
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemBlock})

	if receiver.summary.Summary != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: "What you remember so far: " + receiver.summary.Summary})
	}

	window, err := r.shortTermWindow(ctx, rc.project.ID, receiver)
	if err != nil {
		return nil, fmt.Errorf("turn: short-term window: %w", err)
	}
	for _, m := range window {
		msgs = append(msgs, llm.Message{Role: roleFor(m, receiver.agent.ID), Content: m.Content})
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: trigger.Content})
	return msgs, nil
}

// roleFor tags a historical message assistant if R sent it, user otherwise.
func roleFor(m models.Message, receiverID uuid.UUID) string {
	if m.SenderID == receiverID {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

// shortTermWindow returns R's K most recent sent messages across every
// conversation it belongs to, oldest first, where K is receiver's
// message_count capped at the configured history window (spec.md §4.3 step
// 3.3).
func (r *Runner) shortTermWindow(ctx context.Context, projectID uuid.UUID, receiver *memberInfo) ([]models.Message, error) {
	k := receiver.summary.MessageCount
	if k <= 0 || k > r.cfg.HistoryWindow {
		k = r.cfg.HistoryWindow
	}

	convs, err := r.store.ListConversations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var all []models.Message
	for _, c := range convs {
		if c.AgentAID != receiver.agent.ID && c.AgentBID != receiver.agent.ID {
			continue
		}
		msgs, err := r.store.ListMessages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if m.Status == models.MessageStatusSent {
				all = append(all, m)
			}
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if len(all) > k {
		all = all[len(all)-k:]
	}
	return all, nil
}
