package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/store"
)

// LogService covers per-project diagnostic log listing and bulk clear.
type LogService struct {
	store store.Store
}

// List returns a project's logs, newest first.
func (s *LogService) List(ctx context.Context, projectID uuid.UUID) ([]models.Log, error) {
	return s.store.ListLogs(ctx, projectID)
}

// Clear deletes every log row for a project.
func (s *LogService) Clear(ctx context.Context, projectID uuid.UUID) error {
	return withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.DeleteLogs(ctx, tx, projectID)
	})
}
