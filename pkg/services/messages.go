package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

// MessageService covers the append-only message log and user-originated sends.
type MessageService struct {
	store  store.Store
	pub    Publisher
	nudge  Nudger
	maxLen int
}

// List returns a conversation's messages oldest first.
func (s *MessageService) List(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return s.store.ListMessages(ctx, conversationID)
}

// Send inserts a user-originated message, attributed to the System agent
// (spec.md §4.1): the receiver is inferred as the non-System member of the
// conversation. Bumps last_activity_at, publishes new_message, and nudges
// the worker.
func (s *MessageService) Send(ctx context.Context, conversationID uuid.UUID, content, msgType string) (models.Message, error) {
	if content == "" {
		return models.Message{}, perrors.NewValidationError("content", "required")
	}
	if utf8.RuneCountInString(content) > s.maxLen {
		return models.Message{}, perrors.NewValidationError("content", "exceeds max-message-length")
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}

	receiver, err := nonSystemMember(conv)
	if err != nil {
		return models.Message{}, err
	}

	mt := models.MessageTypeUser
	if msgType != "" {
		mt = models.MessageType(msgType)
	}

	m := models.Message{
		ID: uuid.New(), ConversationID: conv.ID, ProjectID: conv.ProjectID,
		SenderID: models.SystemAgentID, ReceiverID: receiver,
		Content: content, Type: mt, Status: models.MessageStatusPending, CreatedAt: now(),
	}

	err = withTx(ctx, s.store, func(tx store.Tx) error {
		if err := s.store.CreateMessage(ctx, tx, m); err != nil {
			return err
		}
		return s.store.TouchActivity(ctx, tx, conv.ProjectID, m.CreatedAt)
	})
	if err != nil {
		return models.Message{}, err
	}

	s.pub.Publish(conv.ProjectID, "new_message", m)
	s.nudge.Nudge(conv.ProjectID)
	return m, nil
}

// nonSystemMember returns whichever side of the conversation pair is not the
// System agent. Conversations between two non-System agents (created by
// ProjectService.Create for can-address pairs) have no System member, and
// Send on them returns this function's error.
func nonSystemMember(c models.Conversation) (uuid.UUID, error) {
	switch models.SystemAgentID {
	case c.AgentAID:
		return c.AgentBID, nil
	case c.AgentBID:
		return c.AgentAID, nil
	default:
		return uuid.Nil, errors.New("services: conversation has no System member")
	}
}
