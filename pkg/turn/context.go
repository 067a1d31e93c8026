package turn

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
)

// memberInfo is the per-agent slice of context the prompt builder and
// validator need, assembled once per run by fetchContext (spec.md §4.3 step 1).
type memberInfo struct {
	agent             models.Agent
	roleOverride      string
	promptOverride    string
	allowedRecipients map[uuid.UUID]bool
	summary           models.AgentMemorySummary
}

// runContext is the read-consistent snapshot get-context returns (spec.md §4.2).
type runContext struct {
	project   models.Project
	members   map[uuid.UUID]*memberInfo
	apiKey    string
	tokenGood bool
}

// effectiveRole returns R's role, preferring the membership override.
func (m *memberInfo) effectiveRole() string {
	if m.roleOverride != "" {
		return m.roleOverride
	}
	return m.agent.Role
}

// effectivePrompt returns R's prompt, preferring the membership override.
func (m *memberInfo) effectivePrompt() string {
	if m.promptOverride != "" {
		return m.promptOverride
	}
	return m.agent.Prompt
}

// canAddress reports whether R may address recipientID, per its allowed-set
// or the System agent (always reachable, spec.md Open Question 1).
func (m *memberInfo) canAddress(recipientID uuid.UUID) bool {
	if recipientID == models.SystemAgentID {
		return true
	}
	return m.allowedRecipients[recipientID]
}

// fetchContext builds the run's context snapshot: project config, every
// member with its overrides and latest summary, and the decrypted bound
// token. Returns perrors.ErrTokenUnavailable if there is no active token —
// the caller logs a warn and stops the run without treating it as failure
// (spec.md §4.3 step 1, §4.1 invariant 5).
func (r *Runner) fetchContext(ctx context.Context, projectID uuid.UUID) (*runContext, error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("turn: fetch project: %w", err)
	}

	members, err := r.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("turn: list members: %w", err)
	}

	rc := &runContext{project: project, members: make(map[uuid.UUID]*memberInfo, len(members))}
	for _, mem := range members {
		agent, err := r.store.GetAgent(ctx, mem.AgentID)
		if err != nil {
			return nil, fmt.Errorf("turn: fetch agent %s: %w", mem.AgentID, err)
		}
		summary, err := r.store.GetSummary(ctx, projectID, mem.AgentID)
		if err != nil {
			return nil, fmt.Errorf("turn: fetch summary: %w", err)
		}
		allowed := make(map[uuid.UUID]bool, len(mem.AllowedRecipients))
		for _, id := range mem.AllowedRecipients {
			allowed[id] = true
		}
		rc.members[mem.AgentID] = &memberInfo{
			agent: agent, roleOverride: mem.RoleOverride, promptOverride: mem.PromptOverride,
			allowedRecipients: allowed, summary: summary,
		}
	}
	// System is an implicit member of every project (Open Question 1).
	if _, ok := rc.members[models.SystemAgentID]; !ok {
		systemAgent, err := r.store.GetAgent(ctx, models.SystemAgentID)
		if err == nil {
			rc.members[models.SystemAgentID] = &memberInfo{agent: systemAgent, allowedRecipients: map[uuid.UUID]bool{}}
		}
	}

	if project.TokenID == nil {
		return rc, perrors.ErrTokenUnavailable
	}
	token, err := r.store.GetToken(ctx, *project.TokenID)
	if err != nil {
		return rc, fmt.Errorf("turn: fetch token: %w", err)
	}
	if !token.Active {
		return rc, perrors.ErrTokenUnavailable
	}
	apiKey, err := r.decryptToken(token)
	if err != nil {
		return rc, fmt.Errorf("turn: decrypt token: %w", err)
	}
	rc.apiKey = apiKey
	rc.tokenGood = true
	return rc, nil
}
