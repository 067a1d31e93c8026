package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/store"
)

func (s *Store) GetSummary(ctx context.Context, projectID, agentID uuid.UUID) (models.AgentMemorySummary, error) {
	var sm models.AgentMemorySummary
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, agent_id, summary, snapshot, message_count, summary_count, updated_at
		 FROM agent_memory_summaries WHERE project_id = $1 AND agent_id = $2`,
		projectID, agentID,
	).Scan(&sm.ProjectID, &sm.AgentID, &sm.Summary, &sm.Snapshot, &sm.MessageCount, &sm.SummaryCount, &sm.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// No summary yet is not an error; callers treat a zero-value summary
		// (with ProjectID/AgentID set) as "nothing summarized so far".
		return models.AgentMemorySummary{ProjectID: projectID, AgentID: agentID}, nil
	}
	if err != nil {
		return models.AgentMemorySummary{}, fmt.Errorf("pg: get summary: %w", err)
	}
	return sm, nil
}

func (s *Store) UpsertSummary(ctx context.Context, tx store.Tx, sm models.AgentMemorySummary) error {
	_, err := s.execer(tx).ExecContext(ctx,
		`INSERT INTO agent_memory_summaries (project_id, agent_id, summary, snapshot, message_count, summary_count, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6)
		 ON CONFLICT (project_id, agent_id) DO UPDATE SET
		   summary = EXCLUDED.summary,
		   snapshot = EXCLUDED.snapshot,
		   message_count = 0,
		   summary_count = agent_memory_summaries.summary_count + 1,
		   updated_at = EXCLUDED.updated_at`,
		sm.ProjectID, sm.AgentID, sm.Summary, sm.Snapshot, sm.SummaryCount, sm.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pg: upsert summary: %w", err)
	}
	return nil
}

// IncrementMessageCount upserts the (project, agent) row if absent and
// increments message_count by one (spec.md §4.2 increment-agent-count).
func (s *Store) IncrementMessageCount(ctx context.Context, tx store.Tx, projectID, agentID uuid.UUID) (int, error) {
	var newCount int
	err := s.execer(tx).QueryRowContext(ctx,
		`INSERT INTO agent_memory_summaries (project_id, agent_id, summary, message_count, summary_count, updated_at)
		 VALUES ($1, $2, '', 1, 0, now())
		 ON CONFLICT (project_id, agent_id) DO UPDATE SET
		   message_count = agent_memory_summaries.message_count + 1,
		   updated_at = now()
		 RETURNING message_count`,
		projectID, agentID,
	).Scan(&newCount)
	if err != nil {
		return 0, fmt.Errorf("pg: increment message count: %w", err)
	}
	return newCount, nil
}
