package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

func (s *Store) CreateProject(ctx context.Context, tx store.Tx, p models.Project) error {
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, title, description, system_prompt, paused,
		 remaining_budget, token_id, created_at, last_activity_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.OwnerID, p.Title, p.Description, p.SystemPrompt, p.Paused,
		p.RemainingBudget, p.TokenID, p.CreatedAt, p.LastActivityAt,
	)
	if isUniqueViolation(err) {
		return perrors.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("pg: create project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, description, system_prompt, paused,
		 remaining_budget, token_id, created_at, last_activity_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.SystemPrompt, &p.Paused,
		&p.RemainingBudget, &p.TokenID, &p.CreatedAt, &p.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, perrors.ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("pg: get project: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, description, system_prompt, paused,
		 remaining_budget, token_id, created_at, last_activity_at
		 FROM projects WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("pg: list projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.SystemPrompt, &p.Paused,
			&p.RemainingBudget, &p.TokenID, &p.CreatedAt, &p.LastActivityAt); err != nil {
			return nil, fmt.Errorf("pg: scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProject(ctx context.Context, tx store.Tx, id uuid.UUID) error {
	res, err := s.execer(tx).ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pg: delete project: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) AddMember(ctx context.Context, tx store.Tx, m models.ProjectMember) error {
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO project_members (project_id, agent_id, role_override, prompt_override, allowed_recipients)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ProjectID, m.AgentID, m.RoleOverride, m.PromptOverride, encodeUUIDList(m.AllowedRecipients),
	)
	if isUniqueViolation(err) {
		return perrors.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("pg: add member: %w", err)
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, agent_id, role_override, prompt_override, allowed_recipients
		 FROM project_members WHERE project_id = $1`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("pg: list members: %w", err)
	}
	defer rows.Close()

	var out []models.ProjectMember
	for rows.Next() {
		var m models.ProjectMember
		var allowed string
		if err := rows.Scan(&m.ProjectID, &m.AgentID, &m.RoleOverride, &m.PromptOverride, &allowed); err != nil {
			return nil, fmt.Errorf("pg: scan member: %w", err)
		}
		m.AllowedRecipients = decodeUUIDList(allowed)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetMember(ctx context.Context, projectID, agentID uuid.UUID) (models.ProjectMember, error) {
	var m models.ProjectMember
	var allowed string
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, agent_id, role_override, prompt_override, allowed_recipients
		 FROM project_members WHERE project_id = $1 AND agent_id = $2`, projectID, agentID,
	).Scan(&m.ProjectID, &m.AgentID, &m.RoleOverride, &m.PromptOverride, &allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProjectMember{}, perrors.ErrNotFound
	}
	if err != nil {
		return models.ProjectMember{}, fmt.Errorf("pg: get member: %w", err)
	}
	m.AllowedRecipients = decodeUUIDList(allowed)
	return m, nil
}

func (s *Store) SetPaused(ctx context.Context, tx store.Tx, projectID uuid.UUID, paused bool) error {
	res, err := s.execer(tx).ExecContext(ctx, `UPDATE projects SET paused = $1 WHERE id = $2`, paused, projectID)
	if err != nil {
		return fmt.Errorf("pg: set paused: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) SetToken(ctx context.Context, tx store.Tx, projectID uuid.UUID, tokenID *uuid.UUID) error {
	res, err := s.execer(tx).ExecContext(ctx, `UPDATE projects SET token_id = $1 WHERE id = $2`, tokenID, projectID)
	if err != nil {
		return fmt.Errorf("pg: set token: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) SetLimit(ctx context.Context, tx store.Tx, projectID uuid.UUID, limit int) error {
	res, err := s.execer(tx).ExecContext(ctx, `UPDATE projects SET remaining_budget = $1 WHERE id = $2`, limit, projectID)
	if err != nil {
		return fmt.Errorf("pg: set limit: %w", err)
	}
	return requireRowAffected(res)
}

// DecrementBudget is the single atomic primitive for budget exhaustion
// (spec.md Open Question 3): it decrements remaining_budget by one and, in
// the same statement, sets paused = true whenever the result is <= 0.
func (s *Store) DecrementBudget(ctx context.Context, tx store.Tx, projectID uuid.UUID) (int, bool, error) {
	var newBudget int
	var pausedNow bool
	err := s.execer(tx).QueryRowContext(ctx,
		`UPDATE projects
		 SET remaining_budget = remaining_budget - 1,
		     paused = CASE WHEN remaining_budget - 1 <= 0 THEN true ELSE paused END
		 WHERE id = $1
		 RETURNING remaining_budget, paused`,
		projectID,
	).Scan(&newBudget, &pausedNow)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, perrors.ErrNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("pg: decrement budget: %w", err)
	}
	return newBudget, pausedNow, nil
}

func (s *Store) TouchActivity(ctx context.Context, tx store.Tx, projectID uuid.UUID, at time.Time) error {
	res, err := s.execer(tx).ExecContext(ctx, `UPDATE projects SET last_activity_at = $1 WHERE id = $2`, at, projectID)
	if err != nil {
		return fmt.Errorf("pg: touch activity: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) ActiveProjects(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM projects WHERE paused = false`)
	if err != nil {
		return nil, fmt.Errorf("pg: active projects: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pg: scan project id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func encodeUUIDList(ids []uuid.UUID) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return strings.Join(strs, ",")
}

func decodeUUIDList(s string) []uuid.UUID {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		if id, err := uuid.Parse(p); err == nil {
			out = append(out, id)
		}
	}
	return out
}
