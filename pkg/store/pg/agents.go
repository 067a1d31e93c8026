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

func (s *Store) CreateAgent(ctx context.Context, tx store.Tx, a models.Agent) error {
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO agents (id, owner_id, name, role, prompt, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OwnerID, a.Name, a.Role, a.Prompt, a.Model, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: create agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id uuid.UUID) (models.Agent, error) {
	var a models.Agent
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, role, prompt, model, created_at FROM agents WHERE id = $1`, id,
	).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Role, &a.Prompt, &a.Model, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Agent{}, perrors.ErrNotFound
	}
	if err != nil {
		return models.Agent{}, fmt.Errorf("pg: get agent: %w", err)
	}
	return a, nil
}

func (s *Store) ListAgentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, role, prompt, model, created_at
		 FROM agents WHERE owner_id = $1 OR id = $2 ORDER BY created_at`,
		ownerID, models.SystemAgentID,
	)
	if err != nil {
		return nil, fmt.Errorf("pg: list agents: %w", err)
	}
	defer rows.Close()

	var out []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Role, &a.Prompt, &a.Model, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
