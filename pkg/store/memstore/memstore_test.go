package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

var _ store.Store = (*Store)(nil)

func TestStore_DecrementBudget_PausesAtZero(t *testing.T) {
	s := New()
	ctx := context.Background()

	owner := uuid.New()
	require.NoError(t, s.CreateUser(ctx, nil, models.User{ID: owner, Email: "a@b.com"}))

	p := models.Project{ID: uuid.New(), OwnerID: owner, Title: "demo", RemainingBudget: 1}
	require.NoError(t, s.CreateProject(ctx, nil, p))

	newBudget, paused, err := s.DecrementBudget(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, newBudget)
	assert.True(t, paused)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Paused)
}

func TestStore_CreateConversation_RejectsDuplicatePair(t *testing.T) {
	s := New()
	ctx := context.Background()

	owner := uuid.New()
	require.NoError(t, s.CreateUser(ctx, nil, models.User{ID: owner, Email: "a@b.com"}))
	p := models.Project{ID: uuid.New(), OwnerID: owner, Title: "demo"}
	require.NoError(t, s.CreateProject(ctx, nil, p))

	agentA := uuid.New()
	agentB := uuid.New()

	err := s.CreateConversation(ctx, nil, models.Conversation{
		ID: uuid.New(), ProjectID: p.ID, AgentAID: agentA, AgentBID: agentB, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	// Same unordered pair, reversed order — still a duplicate.
	err = s.CreateConversation(ctx, nil, models.Conversation{
		ID: uuid.New(), ProjectID: p.ID, AgentAID: agentB, AgentBID: agentA, CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, perrors.ErrAlreadyExists)
}

func TestStore_ClaimOldestPending_ReturnsOldestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	projectID := uuid.New()
	older := models.Message{
		ID: uuid.New(), ProjectID: projectID, Status: models.MessageStatusPending,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	newer := models.Message{
		ID: uuid.New(), ProjectID: projectID, Status: models.MessageStatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateMessage(ctx, nil, newer))
	require.NoError(t, s.CreateMessage(ctx, nil, older))

	claimed, ok, err := s.ClaimOldestPending(ctx, nil, projectID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, older.ID, claimed.ID)
}

func TestStore_IncrementMessageCount_UpsertsAndAccumulates(t *testing.T) {
	s := New()
	ctx := context.Background()

	projectID, agentID := uuid.New(), uuid.New()

	count, err := s.IncrementMessageCount(ctx, nil, projectID, agentID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.IncrementMessageCount(ctx, nil, projectID, agentID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sm, err := s.GetSummary(ctx, projectID, agentID)
	require.NoError(t, err)
	assert.Equal(t, 2, sm.MessageCount)
}

func TestStore_UpsertSummary_ZeroesCountAndIncrementsSummaryCount(t *testing.T) {
	s := New()
	ctx := context.Background()

	projectID, agentID := uuid.New(), uuid.New()
	_, err := s.IncrementMessageCount(ctx, nil, projectID, agentID)
	require.NoError(t, err)
	_, err = s.IncrementMessageCount(ctx, nil, projectID, agentID)
	require.NoError(t, err)

	err = s.UpsertSummary(ctx, nil, models.AgentMemorySummary{
		ProjectID: projectID, AgentID: agentID, Summary: "did things", UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	sm, err := s.GetSummary(ctx, projectID, agentID)
	require.NoError(t, err)
	assert.Equal(t, 0, sm.MessageCount)
	assert.Equal(t, 1, sm.SummaryCount)
	assert.Equal(t, "did things", sm.Summary)

	require.NoError(t, s.UpsertSummary(ctx, nil, models.AgentMemorySummary{
		ProjectID: projectID, AgentID: agentID, Summary: "did more things", UpdatedAt: time.Now(),
	}))
	sm, err = s.GetSummary(ctx, projectID, agentID)
	require.NoError(t, err)
	assert.Equal(t, 2, sm.SummaryCount)
}

func TestStore_ActiveProjects_ExcludesPaused(t *testing.T) {
	s := New()
	ctx := context.Background()

	owner := uuid.New()
	require.NoError(t, s.CreateUser(ctx, nil, models.User{ID: owner, Email: "a@b.com"}))

	active := models.Project{ID: uuid.New(), OwnerID: owner, Title: "active", Paused: false}
	paused := models.Project{ID: uuid.New(), OwnerID: owner, Title: "paused", Paused: true}
	require.NoError(t, s.CreateProject(ctx, nil, active))
	require.NoError(t, s.CreateProject(ctx, nil, paused))

	ids, err := s.ActiveProjects(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, active.ID)
	assert.NotContains(t, ids, paused.ID)
}
