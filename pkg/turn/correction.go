package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/llm"
	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
)

// parsedReply is a validated llm.Reply with its recipient resolved to a uuid.
type parsedReply struct {
	recipient uuid.UUID
	body      string
}

// callWithCorrections runs the call-validate-correct loop (spec.md §4.3
// steps 4-6), grounded on the teacher's pkg/agent/iteration.go bounded-retry
// shape. On exhausting MaxRetries it fails the trigger and returns
// perrors.ErrFormatInvalid so the caller advances to the next pending
// message instead of aborting the run.
func (r *Runner) callWithCorrections(ctx context.Context, log *slog.Logger, rc *runContext, receiver *memberInfo, trigger models.Message) (*parsedReply, error) {
	prompt, err := r.buildPrompt(ctx, rc, receiver, trigger)
	if err != nil {
		return nil, err
	}

	model := receiver.agent.Model
	if model == "" {
		model = llm.DefaultModel
	}

	maxRetries := r.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	failCode := "format-invalid"
	for attempt := 1; attempt <= maxRetries; attempt++ {
		reqCtx := ctx
		var cancel context.CancelFunc
		if r.cfg.LLMRequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, r.cfg.LLMRequestTimeout)
		}
		reply, err := r.llm.Generate(reqCtx, llm.Request{
			Model: model, APIKey: rc.apiKey, Messages: prompt, AllowedTools: true,
		})
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = fmt.Errorf("%w: %w", perrors.ErrLLMTransport, err)
			failCode = "llm-transport"
			continue // retried as-is; transport failures aren't corrected by re-prompting
		}

		parsed, verr := r.validateReply(reply, receiver)
		if verr == nil {
			return parsed, nil
		}
		lastErr = verr
		failCode = "format-invalid"
		if attempt < maxRetries {
			prompt = append(prompt, llm.Message{
				Role:    llm.RoleSystem,
				Content: "Your previous reply was rejected: " + verr.Error() + ". Reply again using the respond_to_agent tool, correcting this.",
			})
		}
	}

	log.Error("turn: reply failed validation after retries", "error", lastErr, "trigger_id", trigger.ID)
	if err := r.failTrigger(ctx, trigger, failCode, lastErr.Error()); err != nil {
		return nil, fmt.Errorf("turn: fail trigger after exhausted retries: %w", err)
	}
	return nil, perrors.ErrFormatInvalid
}

// validateReply enforces spec.md §4.3 step 5: a parseable recipient within
// R's allowed set (or System), and a non-empty body within max-message-length.
func (r *Runner) validateReply(reply *llm.Reply, receiver *memberInfo) (*parsedReply, error) {
	if reply == nil {
		return nil, errors.New("empty reply")
	}
	recipientID, err := uuid.Parse(reply.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("recipient_id %q is not a valid agent id", reply.RecipientID)
	}
	if !receiver.canAddress(recipientID) {
		return nil, fmt.Errorf("recipient_id %s is not an allowed recipient for this agent", recipientID)
	}
	if reply.Body == "" {
		return nil, errors.New("body must not be empty")
	}
	maxLen := r.cfg.MaxMessageLength
	if maxLen > 0 && utf8.RuneCountInString(reply.Body) > maxLen {
		return nil, fmt.Errorf("body exceeds the maximum message length of %d", maxLen)
	}
	return &parsedReply{recipient: recipientID, body: reply.Body}, nil
}
