// Package anthropicclient implements llm.Client against the official
// Anthropic SDK, grounded on teradata-labs-loom's
// pkg/llm/bedrock/client_sdk.go (the direct, non-Bedrock client constructor
// and the same MessageNewParams/forced-tool wiring).
package anthropicclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/coworklab/parley/pkg/llm"
)

// respondToAgentTool is the forced tool spec.md §4.3 step 4 requires: every
// reply must carry exactly {recipient_id, body}, with an optional
// debug-only "thinking" field.
const respondToAgentTool = "respond_to_agent"

// Client calls the Anthropic Messages API directly (no Bedrock indirection —
// parley's tokens are raw Anthropic API keys, one per project owner).
type Client struct {
	maxTokens   int64
	temperature float64
}

// New creates a Client. maxTokens/temperature are process-wide defaults;
// the API key and model are supplied per-request since each project's
// decrypted token and each agent's model differ (spec.md §4.3 step 4).
func New(maxTokens int64, temperature float64) *Client {
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Client{maxTokens: maxTokens, temperature: temperature}
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	sdkClient := anthropic.NewClient(option.WithAPIKey(req.APIKey))

	var systemBlocks []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: m.Content})
		case llm.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("anthropicclient: no messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	if req.AllowedTools {
		params.Tools = []anthropic.ToolUnionParam{{OfTool: &anthropic.ToolParam{
			Name:        respondToAgentTool,
			Description: anthropic.String("Send your reply to another agent in this project."),
			InputSchema: respondToAgentSchema(),
		}}}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: respondToAgentTool},
		}
	}

	message, err := sdkClient.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrMalformedReply, err)
	}

	return parseMessage(message, req.AllowedTools)
}

func parseMessage(message *anthropic.Message, wantTool bool) (*llm.Reply, error) {
	reply := &llm.Reply{}
	var sawToolUse bool

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			reply.RawText += block.Text
		case "tool_use":
			if block.Name != respondToAgentTool {
				continue
			}
			var args struct {
				RecipientID string `json:"recipient_id"`
				Body        string `json:"body"`
				Thinking    string `json:"thinking"`
			}
			if err := json.Unmarshal(block.Input, &args); err != nil {
				return nil, fmt.Errorf("%w: decode tool input: %w", llm.ErrMalformedReply, err)
			}
			reply.RecipientID = args.RecipientID
			reply.Body = args.Body
			reply.Thinking = args.Thinking
			sawToolUse = true
		}
	}

	if wantTool && !sawToolUse {
		return nil, llm.ErrMalformedReply
	}
	return reply, nil
}

// respondToAgentSchema builds the JSON Schema for the forced tool's input:
// {recipient_id: string, body: string, thinking?: string}.
func respondToAgentSchema() anthropic.ToolInputSchemaParam {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient_id": map[string]any{"type": "string"},
			"body":         map[string]any{"type": "string"},
			"thinking":     map[string]any{"type": "string"},
		},
		"required": []string{"recipient_id", "body"},
	}
	b, _ := json.Marshal(raw)
	var schema anthropic.ToolInputSchemaParam
	_ = json.Unmarshal(b, &schema)
	return schema
}
