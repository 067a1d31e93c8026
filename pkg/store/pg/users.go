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

func (s *Store) CreateUser(ctx context.Context, tx store.Tx, u models.User) error {
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO users (id, display_name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.DisplayName, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return perrors.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("pg: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, email, password_hash, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, perrors.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("pg: get user by id: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, email, password_hash, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, perrors.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("pg: get user by email: %w", err)
	}
	return u, nil
}
