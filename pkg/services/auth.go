package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/cryptoutil"
	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

// ErrBadCredentials is returned on login failure; it never distinguishes
// "no such email" from "wrong password" to avoid leaking account existence.
var ErrBadCredentials = errors.New("services: bad credentials")

// AuthService handles registration, login, and session verification.
type AuthService struct {
	store      store.Store
	sessionKey []byte
	sessionTTL time.Duration
}

// Register creates a new user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, displayName, email, password string) (models.User, error) {
	if email == "" {
		return models.User{}, perrors.NewValidationError("email", "required")
	}
	if password == "" {
		return models.User{}, perrors.NewValidationError("password", "required")
	}

	hash, err := cryptoutil.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	u := models.User{
		ID:           uuid.New(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now(),
	}
	if err := withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.CreateUser(ctx, tx, u)
	}); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Login verifies email/password and issues a signed session cookie value.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.User, string, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, perrors.ErrNotFound) {
		return models.User{}, "", ErrBadCredentials
	}
	if err != nil {
		return models.User{}, "", err
	}
	if !cryptoutil.VerifyPassword(u.PasswordHash, password) {
		return models.User{}, "", ErrBadCredentials
	}

	cookie := s.issueCookie(u.ID)
	return u, cookie, nil
}

// Me returns the caller's identity from a verified session.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// VerifySession validates a session cookie value and returns the claimed user id.
func (s *AuthService) VerifySession(cookie string) (uuid.UUID, error) {
	claims, err := cryptoutil.VerifyCookie(s.sessionKey, cookie)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

func (s *AuthService) issueCookie(userID uuid.UUID) string {
	issued := now()
	claims := cryptoutil.SessionClaims{UserID: userID, IssuedAt: issued, Expiry: issued.Add(s.sessionTTL)}
	return cryptoutil.SignCookie(s.sessionKey, claims)
}
