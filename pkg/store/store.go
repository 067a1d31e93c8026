// Package store defines the persistence interfaces shared by the API
// service, turn worker, and watchdog. Concrete implementations live in
// pkg/store/pg (Postgres) and pkg/store/memstore (in-memory fake for tests).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
)

// Tx is an open transaction. Every multi-statement transition in parley runs
// inside exactly one Tx, committed by the caller after all writes succeed.
type Tx interface {
	Commit() error
	Rollback() error
}

// Store aggregates every storage concern parley needs, mirroring the
// teacher's per-concern store container.
type Store interface {
	Users
	Tokens
	Agents
	Projects
	Conversations
	Messages
	Memory
	Logs

	// Begin opens a new transaction. Implementations that don't need real
	// transactional isolation (e.g. the in-memory fake) may return a no-op Tx.
	Begin(ctx context.Context) (Tx, error)
}

// Users covers user accounts.
type Users interface {
	CreateUser(ctx context.Context, tx Tx, u models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// Tokens covers encrypted LLM-provider credentials.
type Tokens interface {
	CreateToken(ctx context.Context, tx Tx, t models.Token) error
	GetToken(ctx context.Context, id uuid.UUID) (models.Token, error)
	ListTokensByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Token, error)
	SetTokenActive(ctx context.Context, tx Tx, id uuid.UUID, active bool) error
	DeleteToken(ctx context.Context, tx Tx, id uuid.UUID) error
	// TokenInUse reports whether any project currently binds this token.
	TokenInUse(ctx context.Context, id uuid.UUID) (bool, error)
}

// Agents covers reusable participant definitions, including the System agent.
type Agents interface {
	CreateAgent(ctx context.Context, tx Tx, a models.Agent) error
	GetAgent(ctx context.Context, id uuid.UUID) (models.Agent, error)
	ListAgentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Agent, error)
}

// Projects covers project lifecycle and membership.
type Projects interface {
	CreateProject(ctx context.Context, tx Tx, p models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (models.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error)
	DeleteProject(ctx context.Context, tx Tx, id uuid.UUID) error

	AddMember(ctx context.Context, tx Tx, m models.ProjectMember) error
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error)
	GetMember(ctx context.Context, projectID, agentID uuid.UUID) (models.ProjectMember, error)

	SetPaused(ctx context.Context, tx Tx, projectID uuid.UUID, paused bool) error
	SetToken(ctx context.Context, tx Tx, projectID uuid.UUID, tokenID *uuid.UUID) error
	SetLimit(ctx context.Context, tx Tx, projectID uuid.UUID, limit int) error
	// DecrementBudget atomically decrements the project's remaining budget by
	// one and, if the result is <= 0, sets paused=true in the same statement.
	// It is the single primitive for budget exhaustion (spec.md Open Question 3).
	DecrementBudget(ctx context.Context, tx Tx, projectID uuid.UUID) (newBudget int, pausedNow bool, err error)
	TouchActivity(ctx context.Context, tx Tx, projectID uuid.UUID, at time.Time) error

	// ActiveProjects returns the ids of all unpaused projects, for the watchdog scan.
	ActiveProjects(ctx context.Context) ([]uuid.UUID, error)
}

// Conversations covers the pairwise communication graph within a project.
type Conversations interface {
	CreateConversation(ctx context.Context, tx Tx, c models.Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (models.Conversation, error)
	FindConversation(ctx context.Context, projectID, agentA, agentB uuid.UUID) (models.Conversation, error)
	ListConversations(ctx context.Context, projectID uuid.UUID) ([]models.Conversation, error)
}

// Messages covers the append-only message log.
type Messages interface {
	CreateMessage(ctx context.Context, tx Tx, m models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	SetMessageStatus(ctx context.Context, tx Tx, id uuid.UUID, status models.MessageStatus) error

	// ClaimOldestPending locks and returns the oldest pending message in a
	// project using SELECT ... FOR UPDATE SKIP LOCKED, or (Message{}, false,
	// nil) if none is claimable. Must be called within tx.
	ClaimOldestPending(ctx context.Context, tx Tx, projectID uuid.UUID) (models.Message, bool, error)
	// OldestPendingAge returns the age of the oldest still-pending message in
	// a project, or false if there is none (used by the watchdog's stall check).
	OldestPendingAge(ctx context.Context, projectID uuid.UUID) (time.Duration, bool, error)
}

// Memory covers per-(project,agent) rolling summaries.
type Memory interface {
	GetSummary(ctx context.Context, projectID, agentID uuid.UUID) (models.AgentMemorySummary, error)
	// UpsertSummary replaces the summary text and snapshot, resets
	// message_count to zero, and increments summary_count (spec.md §4.2
	// upsert-summary).
	UpsertSummary(ctx context.Context, tx Tx, s models.AgentMemorySummary) error
	// IncrementMessageCount upserts the (project, agent) row if absent and
	// increments message_count by one, returning the new count (spec.md §4.2
	// increment-agent-count).
	IncrementMessageCount(ctx context.Context, tx Tx, projectID, agentID uuid.UUID) (newCount int, err error)
}

// Logs covers diagnostic entries attached to a project.
type Logs interface {
	CreateLog(ctx context.Context, tx Tx, l models.Log) error
	ListLogs(ctx context.Context, projectID uuid.UUID) ([]models.Log, error)
	DeleteLogs(ctx context.Context, tx Tx, projectID uuid.UUID) error
}
