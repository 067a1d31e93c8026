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

func (s *Store) CreateToken(ctx context.Context, tx store.Tx, t models.Token) error {
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO tokens (id, owner_id, label, encrypted_secret, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.OwnerID, t.Label, t.EncryptedSecret, t.Active, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: create token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, id uuid.UUID) (models.Token, error) {
	var t models.Token
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, label, encrypted_secret, active, created_at FROM tokens WHERE id = $1`, id,
	).Scan(&t.ID, &t.OwnerID, &t.Label, &t.EncryptedSecret, &t.Active, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Token{}, perrors.ErrNotFound
	}
	if err != nil {
		return models.Token{}, fmt.Errorf("pg: get token: %w", err)
	}
	return t, nil
}

func (s *Store) ListTokensByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, label, encrypted_secret, active, created_at
		 FROM tokens WHERE owner_id = $1 ORDER BY created_at`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("pg: list tokens: %w", err)
	}
	defer rows.Close()

	var out []models.Token
	for rows.Next() {
		var t models.Token
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Label, &t.EncryptedSecret, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SetTokenActive(ctx context.Context, tx store.Tx, id uuid.UUID, active bool) error {
	res, err := s.execer(tx).ExecContext(ctx, `UPDATE tokens SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("pg: set token active: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) DeleteToken(ctx context.Context, tx store.Tx, id uuid.UUID) error {
	res, err := s.execer(tx).ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pg: delete token: %w", err)
	}
	return requireRowAffected(res)
}

func (s *Store) TokenInUse(ctx context.Context, id uuid.UUID) (bool, error) {
	var inUse bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM projects WHERE token_id = $1)`, id,
	).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("pg: token in use: %w", err)
	}
	return inUse, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pg: rows affected: %w", err)
	}
	if n == 0 {
		return perrors.ErrNotFound
	}
	return nil
}
