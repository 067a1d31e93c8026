// Package models defines the canonical entity types shared by the store,
// services, API, and turn worker.
package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemAgentID is the fixed id of the preseeded, global System agent. It is
// an implicit member of every project and may address any other member.
var SystemAgentID = uuid.Nil

// MessageType enumerates the kind of a Message.
type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
	MessageTypeSystem    MessageType = "system"
	MessageTypeError     MessageType = "error"
)

// MessageStatus enumerates the lifecycle state of a Message.
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

// LogLevel enumerates the severity of a Log row.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// User owns agents, tokens, and projects.
type User struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Token is an encrypted LLM-provider credential owned by a User.
type Token struct {
	ID              uuid.UUID `json:"id"`
	OwnerID         uuid.UUID `json:"owner_id"`
	Label           string    `json:"label"`
	EncryptedSecret []byte    `json:"-"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Agent is a reusable participant definition. OwnerID is nil for the
// singleton System agent (ID == SystemAgentID), which is global, preseeded,
// and cannot be deleted.
type Agent struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	Prompt    string     `json:"prompt"`
	Model     string     `json:"model"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsSystem reports whether this is the global System agent.
func (a Agent) IsSystem() bool {
	return a.ID == SystemAgentID
}

// Project is a user-owned conversation space with its own budget and pause state.
type Project struct {
	ID               uuid.UUID  `json:"id"`
	OwnerID          uuid.UUID  `json:"owner_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	SystemPrompt     string     `json:"system_prompt"`
	Paused           bool       `json:"paused"`
	RemainingBudget  int        `json:"remaining_budget"`
	TokenID          *uuid.UUID `json:"token_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastActivityAt   time.Time  `json:"last_activity_at"`
}

// ProjectMember binds an Agent into a Project with optional per-project overrides.
type ProjectMember struct {
	ProjectID         uuid.UUID `json:"project_id"`
	AgentID           uuid.UUID `json:"agent_id"`
	RoleOverride      string    `json:"role_override,omitempty"`
	PromptOverride    string    `json:"prompt_override,omitempty"`
	AllowedRecipients []uuid.UUID `json:"allowed_recipients,omitempty"`
}

// Conversation is the single channel between an unordered pair of project
// members. AgentAID is always <= AgentBID (invariant 1 of the data model).
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	AgentAID  uuid.UUID `json:"agent_a_id"`
	AgentBID  uuid.UUID `json:"agent_b_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Title derives a presentation-only label for the conversation from the two
// member names; there is no persisted title column (Open Question 2).
func (c Conversation) Title(agentAName, agentBName string) string {
	return agentAName + " ↔ " + agentBName
}

// Pair returns the conversation's member pair in canonical (a<=b) order.
func Pair(a, b uuid.UUID) (lo, hi uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}

// Message is an append-only entry in a Conversation; only Status ever changes.
type Message struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	ProjectID      uuid.UUID     `json:"project_id"`
	SenderID       uuid.UUID     `json:"sender_id"`
	ReceiverID     uuid.UUID     `json:"receiver_id"`
	Content        string        `json:"content"`
	Type           MessageType   `json:"type"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// AgentMemorySummary is the rolling summary of one agent's activity within one
// project. There is exactly one row per (ProjectID, AgentID).
type AgentMemorySummary struct {
	ProjectID     uuid.UUID `json:"project_id"`
	AgentID       uuid.UUID `json:"agent_id"`
	Summary       string    `json:"summary"`
	Snapshot      string    `json:"snapshot,omitempty"`
	MessageCount  int       `json:"message_count"`
	SummaryCount  int       `json:"summary_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Log is one diagnostic entry attached to a project.
type Log struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Level     LogLevel  `json:"level"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
