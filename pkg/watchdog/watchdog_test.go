package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/store/memstore"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(projectID uuid.UUID, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func seedActiveProject(t *testing.T, st *memstore.Store, lastActivity time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	owner := uuid.New()
	require.NoError(t, st.CreateUser(ctx, nil, models.User{ID: owner, Email: "owner@example.com"}))
	projectID := uuid.New()
	require.NoError(t, st.CreateProject(ctx, nil, models.Project{
		ID: projectID, OwnerID: owner, Title: "proj", RemainingBudget: 10,
		LastActivityAt: lastActivity,
	}))
	return projectID
}

func testConfig() config.WatchdogConfig {
	return config.WatchdogConfig{
		Interval:     time.Hour,
		StallTimeout: time.Minute,
		IdleTimeout:  time.Minute,
	}
}

// S4 — a stalled project (oldest pending message older than StallTimeout)
// is paused with a stall log.
func TestWatchdog_PausesOnStall(t *testing.T) {
	st := memstore.New()
	projectID := seedActiveProject(t, st, time.Now())

	conv := uuid.New()
	require.NoError(t, st.CreateMessage(context.Background(), nil, models.Message{
		ID: uuid.New(), ConversationID: conv, ProjectID: projectID,
		Status: models.MessageStatusPending, CreatedAt: time.Now().Add(-2 * time.Minute),
	}))

	pub := &fakePublisher{}
	svc := New(st, pub, testConfig(), slog.Default())
	svc.scanAll(context.Background())

	got, err := st.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.True(t, got.Paused)

	logs, err := st.ListLogs(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "stall", logs[0].Code)
	assert.Contains(t, pub.events, "project_updated")
}

// An idle project (no pending work, last_activity_at older than IdleTimeout)
// is paused with an idle log.
func TestWatchdog_PausesOnIdle(t *testing.T) {
	st := memstore.New()
	projectID := seedActiveProject(t, st, time.Now().Add(-2*time.Minute))

	svc := New(st, nil, testConfig(), slog.Default())
	svc.scanAll(context.Background())

	got, err := st.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.True(t, got.Paused)

	logs, err := st.ListLogs(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "idle", logs[0].Code)
}

// A healthy project (recent activity, no stalled messages) is left untouched.
func TestWatchdog_LeavesHealthyProjectAlone(t *testing.T) {
	st := memstore.New()
	projectID := seedActiveProject(t, st, time.Now())

	svc := New(st, nil, testConfig(), slog.Default())
	svc.scanAll(context.Background())

	got, err := st.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.False(t, got.Paused)
}

func TestWatchdog_StartStop(t *testing.T) {
	st := memstore.New()
	svc := New(st, nil, config.WatchdogConfig{Interval: 10 * time.Millisecond, StallTimeout: time.Minute, IdleTimeout: time.Minute}, slog.Default())
	svc.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	svc.Stop()
}
