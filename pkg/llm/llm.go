// Package llm defines the Go-side interface the turn worker uses to call an
// external chat-completion provider, hiding the wire protocol behind a
// narrow contract (grounded on the teacher's pkg/agent/llm_client.go shape).
package llm

import (
	"context"
	"errors"
)

// Message roles accepted by Request.Messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultModel is used when an agent's Model field is unset (spec.md §4.3
// step 4: "R's model; fallback to a project default if unset"). Parley has
// no per-project model override column, so the fallback is this one
// process-wide constant rather than a stored default.
const DefaultModel = "claude-sonnet-4-5"

// Message is one role-tagged prompt entry (spec.md §4.3 step 3).
type Message struct {
	Role    string
	Content string
}

// Request is one call to Generate: a prompt plus the structured-reply
// contract the turn worker requires (spec.md §4.3 step 4: exactly
// {recipient_id, body}, optional thinking).
type Request struct {
	Model         string
	APIKey        string
	Messages      []Message
	AllowedTools  bool // when false, Generate performs a plain completion (used by the summarizer)
}

// Reply is the parsed, validated structured output of a Generate call.
type Reply struct {
	RecipientID string // raw string form of the agent id the model chose to address
	Body        string
	Thinking    string
	RawText     string // plain-text content, populated when Request.AllowedTools is false
}

// ErrMalformedReply is returned, wrapped, by anthropicclient.Generate when
// the request fails, when a tool reply lacks the forced tool call, or when
// its input does not decode. The turn worker treats every Generate error,
// this one included, as "llm-transport": it retries without a correction
// prompt and logs that code if the retries run out.
var ErrMalformedReply = errors.New("llm: reply did not match the required structured schema")

// Client calls an external LLM provider. One production implementation
// (pkg/llm/anthropicclient) and test doubles implement it.
type Client interface {
	Generate(ctx context.Context, req Request) (*Reply, error)
}
