package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

func (s *Store) CreateConversation(ctx context.Context, tx store.Tx, c models.Conversation) error {
	lo, hi := models.Pair(c.AgentAID, c.AgentBID)
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO conversations (id, project_id, agent_a_id, agent_b_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.ProjectID, lo, hi, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return perrors.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("pg: create conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, agent_a_id, agent_b_id, created_at FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.ProjectID, &c.AgentAID, &c.AgentBID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, perrors.ErrNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("pg: get conversation: %w", err)
	}
	return c, nil
}

func (s *Store) FindConversation(ctx context.Context, projectID, agentA, agentB uuid.UUID) (models.Conversation, error) {
	lo, hi := models.Pair(agentA, agentB)
	var c models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, agent_a_id, agent_b_id, created_at
		 FROM conversations WHERE project_id = $1 AND agent_a_id = $2 AND agent_b_id = $3`,
		projectID, lo, hi,
	).Scan(&c.ID, &c.ProjectID, &c.AgentAID, &c.AgentBID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, perrors.ErrNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("pg: find conversation: %w", err)
	}
	return c, nil
}

func (s *Store) ListConversations(ctx context.Context, projectID uuid.UUID) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, agent_a_id, agent_b_id, created_at
		 FROM conversations WHERE project_id = $1 ORDER BY created_at`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("pg: list conversations: %w", err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.AgentAID, &c.AgentBID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
