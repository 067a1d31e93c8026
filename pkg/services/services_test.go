package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store/memstore"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(projectID uuid.UUID, eventType string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

type fakeNudger struct {
	mu      sync.Mutex
	nudged  []uuid.UUID
}

func (f *fakeNudger) Nudge(projectID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nudged = append(f.nudged, projectID)
}

func newTestServices(t *testing.T) (*Services, *fakePublisher, *fakeNudger) {
	t.Helper()
	st := memstore.New()
	pub := &fakePublisher{}
	nudge := &fakeNudger{}
	cfg := config.Config{
		Security: config.SecurityConfig{
			SessionSigningKey:  []byte("test-signing-key"),
			TokenEncryptionKey: make([]byte, 32),
			InternalAPIKey:     "preshared",
			SessionTTL:         time.Hour,
		},
		Worker: config.DefaultWorkerConfig(),
		Demo:   config.DemoConfig{MessageLimitCeil: 50},
	}
	return New(st, cfg, pub, nudge), pub, nudge
}

func TestAuthService_RegisterLoginRoundTrip(t *testing.T) {
	svcs, _, _ := newTestServices(t)
	ctx := context.Background()

	u, err := svcs.Auth.Register(ctx, "Ada", "ada@example.com", "hunter2")
	require.NoError(t, err)

	_, cookie, err := svcs.Auth.Login(ctx, "ada@example.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, cookie)

	gotID, err := svcs.Auth.VerifySession(cookie)
	require.NoError(t, err)
	assert.Equal(t, u.ID, gotID)

	_, _, err = svcs.Auth.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestProjectService_CreateWiresMembersAndConversations(t *testing.T) {
	svcs, _, _ := newTestServices(t)
	ctx := context.Background()

	u, err := svcs.Auth.Register(ctx, "Ada", "ada2@example.com", "hunter2")
	require.NoError(t, err)

	p, err := svcs.Projects.Create(ctx, CreateProjectInput{
		OwnerID: u.ID,
		Title:   "demo project",
		Agents: []CreateProjectAgentInput{
			{Name: "Alice", Role: "researcher"},
			{Name: "Bob", Role: "writer"},
		},
	})
	require.NoError(t, err)
	assert.True(t, p.Paused)

	convs, err := svcs.Conversations.List(ctx, p.ID)
	require.NoError(t, err)
	// Neither Alice nor Bob lists the other in CanMessageIDs, so only
	// System's universal reach produces conversations: System-Alice,
	// System-Bob. Alice-Bob gets no conversation since that edge was never
	// declared.
	assert.Len(t, convs, 2)
}

func TestProjectService_CreateRestrictsConversationsToCanMessageIDs(t *testing.T) {
	svcs, _, _ := newTestServices(t)
	ctx := context.Background()

	u, err := svcs.Auth.Register(ctx, "Ada", "ada6@example.com", "hunter2")
	require.NoError(t, err)

	bobID := uuid.New()
	p, err := svcs.Projects.Create(ctx, CreateProjectInput{
		OwnerID: u.ID,
		Title:   "restricted project",
		Agents: []CreateProjectAgentInput{
			{Name: "Alice", Role: "researcher", CanMessageIDs: []uuid.UUID{bobID}},
			{AgentID: &bobID, Name: "Bob", Role: "writer"},
		},
	})
	require.NoError(t, err)

	convs, err := svcs.Conversations.List(ctx, p.ID)
	require.NoError(t, err)
	// System-Alice, System-Bob, and Alice-Bob (Alice declared Bob in
	// CanMessageIDs, which is enough to create the edge even though Bob
	// didn't reciprocally list Alice).
	assert.Len(t, convs, 3)
}

func TestMessageService_SendNudgesAndPublishes(t *testing.T) {
	svcs, pub, nudge := newTestServices(t)
	ctx := context.Background()

	u, err := svcs.Auth.Register(ctx, "Ada", "ada3@example.com", "hunter2")
	require.NoError(t, err)

	p, err := svcs.Projects.Create(ctx, CreateProjectInput{
		OwnerID: u.ID, Title: "t",
		Agents: []CreateProjectAgentInput{{Name: "Alice"}},
	})
	require.NoError(t, err)

	convs, err := svcs.Conversations.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)

	m, err := svcs.Messages.Send(ctx, convs[0].ID, "kickoff", "")
	require.NoError(t, err)
	assert.Equal(t, "kickoff", m.Content)

	assert.Contains(t, pub.events, "new_message")
	assert.Contains(t, nudge.nudged, p.ID)
}

func TestTokenService_DeleteRefusesWhenInUse(t *testing.T) {
	svcs, _, _ := newTestServices(t)
	ctx := context.Background()

	u, err := svcs.Auth.Register(ctx, "Ada", "ada4@example.com", "hunter2")
	require.NoError(t, err)

	tok, err := svcs.Tokens.Create(ctx, u.ID, "main", "sk-x")
	require.NoError(t, err)

	p, err := svcs.Projects.Create(ctx, CreateProjectInput{OwnerID: u.ID, Title: "t2", TokenID: &tok.ID})
	require.NoError(t, err)
	require.NotNil(t, p.TokenID)

	err = svcs.Tokens.Delete(ctx, u.ID, tok.ID)
	assert.ErrorIs(t, err, ErrTokenInUse)
}

func TestTokenService_DeleteRefusesNonOwner(t *testing.T) {
	svcs, _, _ := newTestServices(t)
	ctx := context.Background()

	owner, err := svcs.Auth.Register(ctx, "Ada", "ada5@example.com", "hunter2")
	require.NoError(t, err)
	other, err := svcs.Auth.Register(ctx, "Bo", "bo@example.com", "hunter2")
	require.NoError(t, err)

	tok, err := svcs.Tokens.Create(ctx, owner.ID, "main", "sk-x")
	require.NoError(t, err)

	err = svcs.Tokens.Delete(ctx, other.ID, tok.ID)
	assert.ErrorIs(t, err, perrors.ErrNotFound)

	err = svcs.Tokens.SetActive(ctx, other.ID, tok.ID, false)
	assert.ErrorIs(t, err, perrors.ErrNotFound)

	err = svcs.Tokens.Delete(ctx, owner.ID, tok.ID)
	assert.NoError(t, err)
}
