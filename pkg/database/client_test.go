package database

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var systemAgentID = uuid.Nil

// newTestClient starts a throwaway Postgres container, opens a pgx-backed
// *sql.DB against it, and applies the embedded migrations.
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, runMigrations("test", db))

	client := NewClientFromDB(db)
	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func TestDatabaseClient_ConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.DB().PingContext(ctx)
	require.NoError(t, err)

	health, err := Health(ctx, client.DB())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestDatabaseClient_MigrationsSeedSystemAgent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	var name string
	err := client.DB().QueryRowContext(ctx, `SELECT name FROM agents WHERE id = $1`, systemAgentID).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "System", name)
}

func TestDatabaseClient_ConversationPairOrderingEnforced(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	userID := uuid.New()
	_, err := client.DB().ExecContext(ctx,
		`INSERT INTO users (id, display_name, email, password_hash) VALUES ($1, $2, $3, $4)`,
		userID, "Ada", "ada@example.com", "hash")
	require.NoError(t, err)

	projectID := uuid.New()
	_, err = client.DB().ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, title) VALUES ($1, $2, $3)`,
		projectID, userID, "demo")
	require.NoError(t, err)

	agentID := uuid.New()
	_, err = client.DB().ExecContext(ctx,
		`INSERT INTO agents (id, owner_id, name) VALUES ($1, $2, $3)`,
		agentID, userID, "Researcher")
	require.NoError(t, err)

	// agent_a_id > agent_b_id violates the ordering check constraint.
	_, err = client.DB().ExecContext(ctx,
		`INSERT INTO conversations (id, project_id, agent_a_id, agent_b_id) VALUES ($1, $2, $3, $4)`,
		uuid.New(), projectID, agentID, systemAgentID)
	assert.Error(t, err)

	_, err = client.DB().ExecContext(ctx,
		`INSERT INTO conversations (id, project_id, agent_a_id, agent_b_id) VALUES ($1, $2, $3, $4)`,
		uuid.New(), projectID, systemAgentID, agentID)
	assert.NoError(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "test",
				Database:     "test",
				SSLMode:      "disable",
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
			wantErr: false,
		},
		{
			name: "missing password",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "",
				Database:     "test",
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
			wantErr: true,
		},
		{
			name: "idle conns exceed max conns",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "test",
				Database:     "test",
				MaxOpenConns: 5,
				MaxIdleConns: 10,
			},
			wantErr: true,
		},
		{
			name: "zero max open conns",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "test",
				Database:     "test",
				MaxOpenConns: 0,
				MaxIdleConns: 0,
			},
			wantErr: true,
		},
		{
			name: "negative idle conns",
			cfg: Config{
				Host:         "localhost",
				Port:         5432,
				User:         "test",
				Password:     "test",
				Database:     "test",
				MaxOpenConns: 10,
				MaxIdleConns: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
