package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/cryptoutil"
	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

// ErrForbiddenDemo is returned when a caller attempts to mutate a
// protected demo/snapshot object (spec.md §3, §8 scenario 5).
var ErrForbiddenDemo = errors.New("services: demo object is read-only")

// ErrTokenInUse is returned when deleting a token still bound to a project.
var ErrTokenInUse = errors.New("services: token is in use")

// TokenService manages encrypted LLM-provider credentials.
type TokenService struct {
	store  store.Store
	encKey []byte
	demo   demoGuard
}

// List returns the owner's tokens (secrets never included — models.Token's
// EncryptedSecret field is json:"-").
func (s *TokenService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Token, error) {
	return s.store.ListTokensByOwner(ctx, ownerID)
}

// Create encrypts the plaintext secret at rest and inserts a new token.
func (s *TokenService) Create(ctx context.Context, ownerID uuid.UUID, label, plaintextSecret string) (models.Token, error) {
	if label == "" {
		return models.Token{}, perrors.NewValidationError("label", "required")
	}
	if plaintextSecret == "" {
		return models.Token{}, perrors.NewValidationError("api_key", "required")
	}

	ciphertext, err := cryptoutil.EncryptToken(s.encKey, plaintextSecret)
	if err != nil {
		return models.Token{}, err
	}

	t := models.Token{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Label:           label,
		EncryptedSecret: ciphertext,
		Active:          true,
		CreatedAt:       now(),
	}
	if err := withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.CreateToken(ctx, tx, t)
	}); err != nil {
		return models.Token{}, err
	}
	return t, nil
}

// Delete removes a token, refusing if the caller doesn't own it, it is the
// protected demo token, or it is still bound to a project.
func (s *TokenService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.checkOwner(ctx, ownerID, id); err != nil {
		return err
	}
	if s.demo.isProtectedToken(id) {
		return ErrForbiddenDemo
	}
	inUse, err := s.store.TokenInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return ErrTokenInUse
	}
	return withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.DeleteToken(ctx, tx, id)
	})
}

// SetActive enables or disables a token the caller owns; the protected demo
// token can never be disabled.
func (s *TokenService) SetActive(ctx context.Context, ownerID, id uuid.UUID, active bool) error {
	if err := s.checkOwner(ctx, ownerID, id); err != nil {
		return err
	}
	if s.demo.isProtectedToken(id) && !active {
		return ErrForbiddenDemo
	}
	return withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.SetTokenActive(ctx, tx, id, active)
	})
}

// checkOwner confirms id belongs to ownerID, mirroring ProjectService.Get's
// ownership-check pattern: a mismatch reports as not-found rather than
// forbidden, so a caller can't use it to probe other users' token ids.
func (s *TokenService) checkOwner(ctx context.Context, ownerID, id uuid.UUID) error {
	t, err := s.store.GetToken(ctx, id)
	if err != nil {
		return err
	}
	if t.OwnerID != ownerID {
		return perrors.ErrNotFound
	}
	return nil
}

// Decrypt returns the plaintext secret for a token. The turn worker does not
// call it; pkg/turn decrypts with cryptoutil.DecryptToken directly.
func (s *TokenService) Decrypt(ctx context.Context, id uuid.UUID) (string, error) {
	t, err := s.store.GetToken(ctx, id)
	if err != nil {
		return "", err
	}
	return cryptoutil.DecryptToken(s.encKey, t.EncryptedSecret)
}
