package turn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/cryptoutil"
	"github.com/coworklab/parley/pkg/llm"
	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/store/memstore"
)

// fakeLLM is a scripted llm.Client test double: each call pops the next
// queued response (or repeats the last one once the queue is drained).
type fakeLLM struct {
	mu        sync.Mutex
	responses []func(llm.Request) (*llm.Reply, error)
	calls     int
}

func (f *fakeLLM) Generate(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx](req)
}

func validReplyTo(recipient uuid.UUID) func(llm.Request) (*llm.Reply, error) {
	return func(llm.Request) (*llm.Reply, error) {
		return &llm.Reply{RecipientID: recipient.String(), Body: "a reply"}, nil
	}
}

func malformedReply() func(llm.Request) (*llm.Reply, error) {
	return func(llm.Request) (*llm.Reply, error) {
		return &llm.Reply{RecipientID: "not-a-uuid", Body: "garbage"}, nil
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(projectID uuid.UUID, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

const testTokenKey = "01234567890123456789012345678901" // 32 bytes

// seedProject builds a project with two agents A and B (both able to
// address each other), one conversation between them, and an active bound
// token that decrypts to plaintextKey.
func seedProject(t *testing.T, budget int) (*memstore.Store, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()

	owner := uuid.New()
	require.NoError(t, st.CreateUser(ctx, nil, models.User{ID: owner, Email: "owner@example.com"}))

	encrypted, err := cryptoutil.EncryptToken([]byte(testTokenKey), "sk-x")
	require.NoError(t, err)
	tokenID := uuid.New()
	require.NoError(t, st.CreateToken(ctx, nil, models.Token{ID: tokenID, OwnerID: owner, Active: true, EncryptedSecret: encrypted}))

	agentA := models.Agent{ID: uuid.New(), OwnerID: &owner, Name: "A", Role: "asker", Model: "claude-sonnet-4-5"}
	agentB := models.Agent{ID: uuid.New(), OwnerID: &owner, Name: "B", Role: "answerer", Model: "claude-sonnet-4-5"}
	require.NoError(t, st.CreateAgent(ctx, nil, agentA))
	require.NoError(t, st.CreateAgent(ctx, nil, agentB))

	projectID := uuid.New()
	require.NoError(t, st.CreateProject(ctx, nil, models.Project{
		ID: projectID, OwnerID: owner, Title: "proj", RemainingBudget: budget, TokenID: &tokenID,
	}))
	require.NoError(t, st.AddMember(ctx, nil, models.ProjectMember{
		ProjectID: projectID, AgentID: agentA.ID, AllowedRecipients: []uuid.UUID{agentB.ID},
	}))
	require.NoError(t, st.AddMember(ctx, nil, models.ProjectMember{
		ProjectID: projectID, AgentID: agentB.ID, AllowedRecipients: []uuid.UUID{agentA.ID},
	}))

	convID := uuid.New()
	require.NoError(t, st.CreateConversation(ctx, nil, models.Conversation{
		ID: convID, ProjectID: projectID, AgentAID: agentA.ID, AgentBID: agentB.ID, CreatedAt: time.Now(),
	}))

	return st, projectID, agentA.ID, agentB.ID
}

func seedTrigger(t *testing.T, st *memstore.Store, projectID, receiverID uuid.UUID, content string) models.Message {
	t.Helper()
	conv, err := st.ListConversations(context.Background(), projectID)
	require.NoError(t, err)
	require.NotEmpty(t, conv)
	m := models.Message{
		ID: uuid.New(), ConversationID: conv[0].ID, ProjectID: projectID,
		SenderID: models.SystemAgentID, ReceiverID: receiverID,
		Content: content, Type: models.MessageTypeUser, Status: models.MessageStatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateMessage(context.Background(), nil, m))
	return m
}

func testWorkerConfig() config.WorkerConfig {
	cfg := config.DefaultWorkerConfig()
	cfg.MaxRetries = 3
	cfg.SummaryThreshold = 20
	return cfg
}

// S1 — end-to-end turn: valid reply inserted, budget decremented, message
// count incremented, trigger marked sent. Run keeps draining, so A's reply
// then becomes B's trigger; the scripted client repeats a reply addressed to
// B, which B may not address, so that second trigger ends up failed.
func TestRunner_EndToEndTurn(t *testing.T) {
	st, projectID, agentA, agentB := seedProject(t, 5)
	trigger := seedTrigger(t, st, projectID, agentA, "kickoff")

	fake := &fakeLLM{responses: []func(llm.Request) (*llm.Reply, error){validReplyTo(agentB)}}
	pub := &fakePublisher{}
	r := New(st, fake, pub, testWorkerConfig(), []byte(testTokenKey), slog.Default())

	require.NoError(t, r.Run(context.Background(), projectID))

	got, err := st.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.RemainingBudget)
	assert.False(t, got.Paused)

	triggerAfter, err := st.ListMessages(context.Background(), trigger.ConversationID)
	require.NoError(t, err)
	require.Len(t, triggerAfter, 2)

	var sawSent, sawReply bool
	for _, m := range triggerAfter {
		if m.ID == trigger.ID {
			sawSent = m.Status == models.MessageStatusSent
		} else {
			sawReply = m.SenderID == agentA && m.ReceiverID == agentB && m.Status == models.MessageStatusFailed
		}
	}
	assert.True(t, sawSent, "trigger should be marked sent")
	assert.True(t, sawReply, "A's reply to B should be inserted, then fail as B's trigger")

	summary, err := st.GetSummary(context.Background(), projectID, agentA)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.MessageCount)

	assert.Contains(t, pub.events, "new_message")
}

// S2 — retry then give up: three malformed replies exhaust max-retries, the
// trigger is marked failed, and no reply is inserted.
func TestRunner_RetryThenGiveUp(t *testing.T) {
	st, projectID, agentA, _ := seedProject(t, 5)
	trigger := seedTrigger(t, st, projectID, agentA, "kickoff")

	fake := &fakeLLM{responses: []func(llm.Request) (*llm.Reply, error){
		malformedReply(), malformedReply(), malformedReply(),
	}}
	r := New(st, fake, nil, testWorkerConfig(), []byte(testTokenKey), slog.Default())

	require.NoError(t, r.Run(context.Background(), projectID))

	msgs, err := st.ListMessages(context.Background(), trigger.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageStatusFailed, msgs[0].Status)

	logs, err := st.ListLogs(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "format-invalid", logs[0].Code)
	assert.Equal(t, models.LogLevelError, logs[0].Level)
}

// S3 — budget exhaustion: a single reply exhausts a budget of 1; the
// project ends up paused with a message-limit warn log.
func TestRunner_BudgetExhaustion(t *testing.T) {
	st, projectID, agentA, agentB := seedProject(t, 1)
	seedTrigger(t, st, projectID, agentA, "kickoff")

	fake := &fakeLLM{responses: []func(llm.Request) (*llm.Reply, error){validReplyTo(agentB)}}
	pub := &fakePublisher{}
	r := New(st, fake, pub, testWorkerConfig(), []byte(testTokenKey), slog.Default())

	require.NoError(t, r.Run(context.Background(), projectID))

	got, err := st.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RemainingBudget)
	assert.True(t, got.Paused)

	logs, err := st.ListLogs(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "message-limit", logs[0].Code)
	assert.Contains(t, pub.events, "project_updated")
}

// S6 — token rotation mid-run: disabling the bound token before the run
// starts must stop the run cleanly with a token-inactive warn log and no
// LLM calls.
func TestRunner_TokenInactive_StopsCleanly(t *testing.T) {
	st, projectID, agentA, _ := seedProject(t, 5)
	seedTrigger(t, st, projectID, agentA, "kickoff")

	proj, err := st.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	require.NoError(t, st.SetTokenActive(context.Background(), nil, *proj.TokenID, false))

	fake := &fakeLLM{responses: []func(llm.Request) (*llm.Reply, error){validReplyTo(agentA)}}
	r := New(st, fake, nil, testWorkerConfig(), []byte(testTokenKey), slog.Default())

	err = r.Run(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, 0, fake.calls, "no LLM call should be made once the token is inactive")

	logs, err := st.ListLogs(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "token-inactive", logs[0].Code)
}

// No pending work at all is a clean no-op.
func TestRunner_NoPendingMessages_IsNoop(t *testing.T) {
	st, projectID, _, _ := seedProject(t, 5)
	fake := &fakeLLM{responses: []func(llm.Request) (*llm.Reply, error){
		func(llm.Request) (*llm.Reply, error) { return nil, fmt.Errorf("should not be called") },
	}}
	r := New(st, fake, nil, testWorkerConfig(), []byte(testTokenKey), slog.Default())

	require.NoError(t, r.Run(context.Background(), projectID))
	assert.Equal(t, 0, fake.calls)
}
