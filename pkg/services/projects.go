package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

// CreateProjectAgentInput describes one agent to embed (new or existing) when
// creating a project, mirroring wire.CreateProjectAgentSpec at the service
// boundary.
type CreateProjectAgentInput struct {
	AgentID       *uuid.UUID // set to reuse an existing owned agent; nil to create inline
	Name          string
	Role          string
	Description   string
	Model         string
	Prompt        string
	CanMessageIDs []uuid.UUID
}

// CreateProjectInput is the validated, service-level shape of a create-project call.
type CreateProjectInput struct {
	OwnerID      uuid.UUID
	Title        string
	Description  string
	SystemPrompt string
	TokenID      *uuid.UUID
	Agents       []CreateProjectAgentInput
}

// ProjectService owns project lifecycle, membership, and settings.
type ProjectService struct {
	store     store.Store
	pub       Publisher
	nudge     Nudger
	demo      demoGuard
	limitCeil int
}

// List returns the owner's projects.
func (s *ProjectService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	return s.store.ListProjectsByOwner(ctx, ownerID)
}

// Get returns one project, enforcing ownership.
func (s *ProjectService) Get(ctx context.Context, ownerID, id uuid.UUID) (models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if p.OwnerID != ownerID {
		return models.Project{}, perrors.ErrNotFound
	}
	return p, nil
}

// Create atomically inserts the project (paused, per spec.md §3 lifecycle),
// its membership rows (creating embedded agent definitions as needed), an
// optional token binding, and one conversation per unordered member pair
// implied by the union of can-address sets (spec.md §4.1).
func (s *ProjectService) Create(ctx context.Context, in CreateProjectInput) (models.Project, error) {
	if in.Title == "" {
		return models.Project{}, perrors.NewValidationError("title", "required")
	}

	p := models.Project{
		ID:           uuid.New(),
		OwnerID:      in.OwnerID,
		Title:        in.Title,
		Description:  in.Description,
		SystemPrompt: in.SystemPrompt,
		Paused:       true,
		TokenID:      in.TokenID,
		CreatedAt:    now(),
	}

	err := withTx(ctx, s.store, func(tx store.Tx) error {
		if err := s.store.CreateProject(ctx, tx, p); err != nil {
			return err
		}

		memberIDs := make([]uuid.UUID, 0, len(in.Agents)+1)
		memberIDs = append(memberIDs, models.SystemAgentID)
		allowedByMember := make(map[uuid.UUID][]uuid.UUID, len(in.Agents))

		for _, spec := range in.Agents {
			agentID := uuid.New()
			if spec.AgentID != nil {
				agentID = *spec.AgentID
			} else {
				if spec.Name == "" {
					return perrors.NewValidationError("agents[].name", "required")
				}
				a := models.Agent{
					ID: agentID, OwnerID: &in.OwnerID, Name: spec.Name, Role: spec.Role,
					Prompt: spec.Description, Model: spec.Model, CreatedAt: now(),
				}
				if err := s.store.CreateAgent(ctx, tx, a); err != nil {
					return err
				}
			}

			allowed := append([]uuid.UUID{}, spec.CanMessageIDs...)
			allowed = append(allowed, models.SystemAgentID)
			if err := s.store.AddMember(ctx, tx, models.ProjectMember{
				ProjectID: p.ID, AgentID: agentID, PromptOverride: spec.Prompt, AllowedRecipients: allowed,
			}); err != nil {
				return err
			}
			memberIDs = append(memberIDs, agentID)
			allowedByMember[agentID] = allowed
		}

		// Create one conversation per unordered pair in the union of
		// can-address sets: System may address (and be addressed by) every
		// member unconditionally, and any other pair gets a conversation only
		// if one side lists the other in its own CanMessageIDs (spec.md §3,
		// §4.1 "every allowed communication edge").
		for i := 0; i < len(memberIDs); i++ {
			for j := i + 1; j < len(memberIDs); j++ {
				a, b := memberIDs[i], memberIDs[j]
				if a != models.SystemAgentID && b != models.SystemAgentID &&
					!contains(allowedByMember[a], b) && !contains(allowedByMember[b], a) {
					continue
				}
				lo, hi := models.Pair(a, b)
				if err := s.store.CreateConversation(ctx, tx, models.Conversation{
					ID: uuid.New(), ProjectID: p.ID, AgentAID: lo, AgentBID: hi, CreatedAt: now(),
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// Delete cascades to memberships, conversations, messages, logs, and
// summaries (enforced by ON DELETE CASCADE in the schema); refuses on a
// protected demo/snapshot project (spec.md §8 scenario 5).
func (s *ProjectService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if s.demo.isProtectedProject(id) {
		return ErrForbiddenDemo
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.DeleteProject(ctx, tx, id)
	})
}

// SetStatus pauses or resumes a project. Resuming bumps last_activity_at and
// nudges the worker; both transitions publish project_updated.
func (s *ProjectService) SetStatus(ctx context.Context, ownerID, id uuid.UUID, paused bool) (models.Project, error) {
	if s.demo.isProtectedProject(id) {
		return models.Project{}, ErrForbiddenDemo
	}
	p, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return models.Project{}, err
	}

	err = withTx(ctx, s.store, func(tx store.Tx) error {
		if err := s.store.SetPaused(ctx, tx, id, paused); err != nil {
			return err
		}
		if !paused {
			return s.store.TouchActivity(ctx, tx, id, now())
		}
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}

	p.Paused = paused
	s.pub.Publish(id, "project_updated", map[string]any{"project": id, "paused": paused})
	if !paused {
		s.nudge.Nudge(id)
	}
	return p, nil
}

// SetToken rebinds the project's token, refusing inactive or foreign tokens
// (spec.md §4.1 Settings).
func (s *ProjectService) SetToken(ctx context.Context, ownerID, projectID, tokenID uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, projectID); err != nil {
		return err
	}
	t, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if t.OwnerID != ownerID {
		return perrors.ErrNotFound
	}
	if !t.Active {
		return perrors.NewValidationError("token_id", "token is inactive")
	}
	if err := withTx(ctx, s.store, func(tx store.Tx) error {
		return s.store.SetToken(ctx, tx, projectID, &tokenID)
	}); err != nil {
		return err
	}
	s.pub.Publish(projectID, "project_updated", map[string]any{"project": projectID, "token_id": tokenID})
	return nil
}

// SetLimit sets the project's remaining budget, capping demo-owned projects
// at the configured ceiling (spec.md §4.1 Settings). Setting the budget to
// zero also pauses the project in the same transaction.
func (s *ProjectService) SetLimit(ctx context.Context, ownerID, projectID uuid.UUID, limit int) error {
	if limit < 0 {
		return perrors.NewValidationError("limit", "must be >= 0")
	}
	p, err := s.Get(ctx, ownerID, projectID)
	if err != nil {
		return err
	}
	if ceil, capped := s.demo.messageLimitCeiling(p.OwnerID); capped && limit > ceil {
		limit = ceil
	}
	if err := withTx(ctx, s.store, func(tx store.Tx) error {
		if err := s.store.SetLimit(ctx, tx, projectID, limit); err != nil {
			return err
		}
		if limit == 0 {
			return s.store.SetPaused(ctx, tx, projectID, true)
		}
		return nil
	}); err != nil {
		return err
	}
	payload := map[string]any{"project": projectID, "limit": limit}
	if limit == 0 {
		payload["paused"] = true
	}
	s.pub.Publish(projectID, "project_updated", payload)
	return nil
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
