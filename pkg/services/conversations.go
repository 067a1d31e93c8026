package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

// ConversationService covers per-project conversation listing and
// user-initiated creation, constrained to pairs where the user acts as the
// System agent (spec.md §4.1).
type ConversationService struct {
	store store.Store
}

// List returns every conversation in a project.
func (s *ConversationService) List(ctx context.Context, projectID uuid.UUID) ([]models.Conversation, error) {
	return s.store.ListConversations(ctx, projectID)
}

// Get returns a single conversation by id, letting callers resolve its
// owning project before trusting a bare conversation id from a caller.
func (s *ConversationService) Get(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error) {
	return s.store.GetConversation(ctx, conversationID)
}

// Create inserts a System↔receiver conversation if one does not already exist.
func (s *ConversationService) Create(ctx context.Context, projectID, receiverID uuid.UUID) (models.Conversation, error) {
	if receiverID == models.SystemAgentID {
		return models.Conversation{}, perrors.NewValidationError("receiver_id", "cannot create a conversation with System")
	}
	if _, err := s.store.GetMember(ctx, projectID, receiverID); err != nil {
		return models.Conversation{}, err
	}

	lo, hi := models.Pair(models.SystemAgentID, receiverID)
	if existing, err := s.store.FindConversation(ctx, projectID, lo, hi); err == nil {
		return existing, nil
	} else if !errors.Is(err, perrors.ErrNotFound) {
		return models.Conversation{}, err
	}

	c := models.Conversation{ID: uuid.New(), ProjectID: projectID, AgentAID: lo, AgentBID: hi, CreatedAt: now()}
	if err := withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.CreateConversation(ctx, tx, c)
	}); err != nil {
		return models.Conversation{}, err
	}
	return c, nil
}
