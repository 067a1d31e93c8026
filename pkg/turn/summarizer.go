package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/coworklab/parley/pkg/llm"
)

// summarizationPrompt is the fixed system prompt spec.md §4.3 step 8 requires
// for third-person condensation of an agent's recent activity.
const summarizationPrompt = "Summarize the following conversation excerpt in the third person, in 2-4 sentences. " +
	"Capture what was discussed, decided, or asked, and any facts the agent should remember later. " +
	"Do not address either party directly; write as a neutral observer."

// summarize implements the LLM call of step 8: fetch the last
// summary-window messages involving R and ask for a condensation. Grounded
// on the teacher's LLMCompressor/LLMCaller split (memory_compressor.go),
// using the same llm.Client rather than a second narrow interface, since
// parley's Generate already supports a non-tool plain-text mode
// (Request.AllowedTools = false).
func (r *Runner) summarize(ctx context.Context, rc *runContext, receiver *memberInfo) (summary, snapshot string, err error) {
	window, err := r.shortTermWindow(ctx, rc.project.ID, receiver)
	if err != nil {
		return "", "", fmt.Errorf("turn: summarizer: fetch window: %w", err)
	}
	if len(window) > r.cfg.SummaryWindow {
		window = window[len(window)-r.cfg.SummaryWindow:]
	}

	var transcript strings.Builder
	for _, m := range window {
		role := "them"
		if m.SenderID == receiver.agent.ID {
			role = receiver.agent.Name
		}
		fmt.Fprintf(&transcript, "[%s]: %s\n", role, m.Content)
	}

	model := receiver.agent.Model
	if model == "" {
		model = llm.DefaultModel
	}

	reply, err := r.llm.Generate(ctx, llm.Request{
		Model:  model,
		APIKey: rc.apiKey,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarizationPrompt},
			{Role: llm.RoleUser, Content: transcript.String()},
		},
		AllowedTools: false,
	})
	if err != nil {
		return "", "", fmt.Errorf("turn: summarizer: generate: %w", err)
	}
	if strings.TrimSpace(reply.RawText) == "" {
		return "", "", fmt.Errorf("turn: summarizer: empty reply")
	}
	return strings.TrimSpace(reply.RawText), transcript.String(), nil
}
