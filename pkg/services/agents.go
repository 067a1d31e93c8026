package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

// AgentService manages reusable participant definitions. There is no delete:
// agents are only ever removed transitively through project delete
// (spec.md §4.1 "no delete in the hard core").
type AgentService struct {
	store store.Store
}

// List returns the owner's agents plus the implicit System agent.
func (s *AgentService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Agent, error) {
	return s.store.ListAgentsByOwner(ctx, ownerID)
}

// Create validates and inserts a new owned agent.
func (s *AgentService) Create(ctx context.Context, ownerID uuid.UUID, name, role, prompt, model string) (models.Agent, error) {
	if name == "" {
		return models.Agent{}, perrors.NewValidationError("name", "required")
	}

	a := models.Agent{
		ID:        uuid.New(),
		OwnerID:   &ownerID,
		Name:      name,
		Role:      role,
		Prompt:    prompt,
		Model:     model,
		CreatedAt: now(),
	}
	if err := withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.CreateAgent(ctx, tx, a)
	}); err != nil {
		return models.Agent{}, err
	}
	return a, nil
}
