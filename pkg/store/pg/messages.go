package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/store"
)

func (s *Store) CreateMessage(ctx context.Context, tx store.Tx, m models.Message) error {
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, project_id, sender_id, receiver_id, content, type, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.ConversationID, m.ProjectID, m.SenderID, m.ReceiverID, m.Content, m.Type, m.Status, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: create message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, project_id, sender_id, receiver_id, content, type, status, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("pg: list messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ProjectID, &m.SenderID, &m.ReceiverID,
			&m.Content, &m.Type, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SetMessageStatus(ctx context.Context, tx store.Tx, id uuid.UUID, status models.MessageStatus) error {
	res, err := s.execer(tx).ExecContext(ctx, `UPDATE messages SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("pg: set message status: %w", err)
	}
	return requireRowAffected(res)
}

// ClaimOldestPending locks the oldest pending message in a project with
// SELECT ... FOR UPDATE SKIP LOCKED, the same primitive the teacher uses to
// claim sessions in pkg/queue/worker.go, here adapted to claim one message —
// the spec's unit of work — instead of one session.
func (s *Store) ClaimOldestPending(ctx context.Context, tx store.Tx, projectID uuid.UUID) (models.Message, bool, error) {
	var m models.Message
	err := s.execer(tx).QueryRowContext(ctx,
		`SELECT id, conversation_id, project_id, sender_id, receiver_id, content, type, status, created_at
		 FROM messages
		 WHERE project_id = $1 AND status = 'pending'
		 ORDER BY created_at ASC, id ASC
		 FOR UPDATE SKIP LOCKED
		 LIMIT 1`,
		projectID,
	).Scan(&m.ID, &m.ConversationID, &m.ProjectID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Type, &m.Status, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, false, nil
	}
	if err != nil {
		return models.Message{}, false, fmt.Errorf("pg: claim oldest pending: %w", err)
	}
	return m, true, nil
}

func (s *Store) OldestPendingAge(ctx context.Context, projectID uuid.UUID) (time.Duration, bool, error) {
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM messages
		 WHERE project_id = $1 AND status = 'pending'
		 ORDER BY created_at ASC, id ASC LIMIT 1`,
		projectID,
	).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("pg: oldest pending age: %w", err)
	}
	return time.Since(createdAt), true, nil
}
