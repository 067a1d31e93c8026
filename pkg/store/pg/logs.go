package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/store"
)

func (s *Store) CreateLog(ctx context.Context, tx store.Tx, l models.Log) error {
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO logs (id, project_id, level, code, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.ProjectID, l.Level, l.Code, l.Message, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: create log: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, projectID uuid.UUID) ([]models.Log, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, level, code, message, created_at
		 FROM logs WHERE project_id = $1 ORDER BY created_at DESC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("pg: list logs: %w", err)
	}
	defer rows.Close()

	var out []models.Log
	for rows.Next() {
		var l models.Log
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Level, &l.Code, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) DeleteLogs(ctx context.Context, tx store.Tx, projectID uuid.UUID) error {
	_, err := s.execer(tx).ExecContext(ctx, `DELETE FROM logs WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("pg: delete logs: %w", err)
	}
	return nil
}
