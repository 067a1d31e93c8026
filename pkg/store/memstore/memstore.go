// Package memstore implements store.Store entirely in memory, guarded by a
// single mutex, for fast always-on unit coverage of the turn engine's state
// machine (spec.md §8 scenarios S1-S6) without a reachable Postgres instance.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/models"
	"github.com/coworklab/parley/pkg/perrors"
	"github.com/coworklab/parley/pkg/store"
)

// Store is a pure-Go fake implementing store.Store.
type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]models.User
	tokens        map[uuid.UUID]models.Token
	agents        map[uuid.UUID]models.Agent
	projects      map[uuid.UUID]models.Project
	members       map[uuid.UUID]map[uuid.UUID]models.ProjectMember // projectID -> agentID -> member
	conversations map[uuid.UUID]models.Conversation
	messages      map[uuid.UUID]models.Message
	summaries     map[uuid.UUID]map[uuid.UUID]models.AgentMemorySummary // projectID -> agentID -> summary
	logs          map[uuid.UUID][]models.Log
}

// New creates an empty in-memory store, preseeded with the System agent.
func New() *Store {
	s := &Store{
		users:         make(map[uuid.UUID]models.User),
		tokens:        make(map[uuid.UUID]models.Token),
		agents:        make(map[uuid.UUID]models.Agent),
		projects:      make(map[uuid.UUID]models.Project),
		members:       make(map[uuid.UUID]map[uuid.UUID]models.ProjectMember),
		conversations: make(map[uuid.UUID]models.Conversation),
		messages:      make(map[uuid.UUID]models.Message),
		summaries:     make(map[uuid.UUID]map[uuid.UUID]models.AgentMemorySummary),
		logs:          make(map[uuid.UUID][]models.Log),
	}
	s.agents[models.SystemAgentID] = models.Agent{ID: models.SystemAgentID, Name: "System", Role: "system"}
	return s
}

// noopTx satisfies store.Tx without real transactional isolation; memstore
// holds its single mutex for the lifetime of each call instead.
type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	return noopTx{}, nil
}

func (s *Store) CreateUser(ctx context.Context, tx store.Tx, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return perrors.ErrAlreadyExists
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, perrors.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, perrors.ErrNotFound
}

func (s *Store) CreateToken(ctx context.Context, tx store.Tx, t models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.ID] = t
	return nil
}

func (s *Store) GetToken(ctx context.Context, id uuid.UUID) (models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return models.Token{}, perrors.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTokensByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Token
	for _, t := range s.tokens {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sortTokens(out)
	return out, nil
}

func (s *Store) SetTokenActive(ctx context.Context, tx store.Tx, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return perrors.ErrNotFound
	}
	t.Active = active
	s.tokens[id] = t
	return nil
}

func (s *Store) DeleteToken(ctx context.Context, tx store.Tx, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return perrors.ErrNotFound
	}
	delete(s.tokens, id)
	for pid, p := range s.projects {
		if p.TokenID != nil && *p.TokenID == id {
			p.TokenID = nil
			s.projects[pid] = p
		}
	}
	return nil
}

func (s *Store) TokenInUse(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.TokenID != nil && *p.TokenID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateAgent(ctx context.Context, tx store.Tx, a models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id uuid.UUID) (models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return models.Agent{}, perrors.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAgentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Agent
	for _, a := range s.agents {
		if a.ID == models.SystemAgentID || (a.OwnerID != nil && *a.OwnerID == ownerID) {
			out = append(out, a)
		}
	}
	sortAgents(out)
	return out, nil
}

func (s *Store) CreateProject(ctx context.Context, tx store.Tx, p models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.projects {
		if existing.OwnerID == p.OwnerID && existing.Title == p.Title {
			return perrors.ErrAlreadyExists
		}
	}
	s.projects[p.ID] = p
	s.members[p.ID] = make(map[uuid.UUID]models.ProjectMember)
	return nil
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, perrors.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Project
	for _, p := range s.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sortProjects(out)
	return out, nil
}

func (s *Store) DeleteProject(ctx context.Context, tx store.Tx, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return perrors.ErrNotFound
	}
	delete(s.projects, id)
	delete(s.members, id)
	delete(s.summaries, id)
	delete(s.logs, id)
	for cid, c := range s.conversations {
		if c.ProjectID == id {
			delete(s.conversations, cid)
		}
	}
	for mid, m := range s.messages {
		if m.ProjectID == id {
			delete(s.messages, mid)
		}
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, tx store.Tx, m models.ProjectMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.members[m.ProjectID]
	if !ok {
		return perrors.ErrNotFound
	}
	if _, exists := pm[m.AgentID]; exists {
		return perrors.ErrAlreadyExists
	}
	pm[m.AgentID] = m
	return nil
}

func (s *Store) ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.members[projectID]
	if !ok {
		return nil, nil
	}
	var out []models.ProjectMember
	for _, m := range pm {
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) GetMember(ctx context.Context, projectID, agentID uuid.UUID) (models.ProjectMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.members[projectID]
	if !ok {
		return models.ProjectMember{}, perrors.ErrNotFound
	}
	m, ok := pm[agentID]
	if !ok {
		return models.ProjectMember{}, perrors.ErrNotFound
	}
	return m, nil
}

func (s *Store) SetPaused(ctx context.Context, tx store.Tx, projectID uuid.UUID, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return perrors.ErrNotFound
	}
	p.Paused = paused
	s.projects[projectID] = p
	return nil
}

func (s *Store) SetToken(ctx context.Context, tx store.Tx, projectID uuid.UUID, tokenID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return perrors.ErrNotFound
	}
	p.TokenID = tokenID
	s.projects[projectID] = p
	return nil
}

func (s *Store) SetLimit(ctx context.Context, tx store.Tx, projectID uuid.UUID, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return perrors.ErrNotFound
	}
	p.RemainingBudget = limit
	s.projects[projectID] = p
	return nil
}

func (s *Store) DecrementBudget(ctx context.Context, tx store.Tx, projectID uuid.UUID) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return 0, false, perrors.ErrNotFound
	}
	p.RemainingBudget--
	if p.RemainingBudget <= 0 {
		p.Paused = true
	}
	s.projects[projectID] = p
	return p.RemainingBudget, p.Paused, nil
}

func (s *Store) TouchActivity(ctx context.Context, tx store.Tx, projectID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return perrors.ErrNotFound
	}
	p.LastActivityAt = at
	s.projects[projectID] = p
	return nil
}

func (s *Store) ActiveProjects(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for id, p := range s.projects {
		if !p.Paused {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *Store) CreateConversation(ctx context.Context, tx store.Tx, c models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := models.Pair(c.AgentAID, c.AgentBID)
	for _, existing := range s.conversations {
		if existing.ProjectID == c.ProjectID && existing.AgentAID == lo && existing.AgentBID == hi {
			return perrors.ErrAlreadyExists
		}
	}
	c.AgentAID, c.AgentBID = lo, hi
	s.conversations[c.ID] = c
	return nil
}

func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, perrors.ErrNotFound
	}
	return c, nil
}

func (s *Store) FindConversation(ctx context.Context, projectID, agentA, agentB uuid.UUID) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := models.Pair(agentA, agentB)
	for _, c := range s.conversations {
		if c.ProjectID == projectID && c.AgentAID == lo && c.AgentBID == hi {
			return c, nil
		}
	}
	return models.Conversation{}, perrors.ErrNotFound
}

func (s *Store) ListConversations(ctx context.Context, projectID uuid.UUID) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.conversations {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateMessage(ctx context.Context, tx store.Tx, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = m
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetMessageStatus(ctx context.Context, tx store.Tx, id uuid.UUID, status models.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return perrors.ErrNotFound
	}
	m.Status = status
	s.messages[id] = m
	return nil
}

func (s *Store) ClaimOldestPending(ctx context.Context, tx store.Tx, projectID uuid.UUID) (models.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *models.Message
	for id, m := range s.messages {
		if m.ProjectID != projectID || m.Status != models.MessageStatusPending {
			continue
		}
		if oldest == nil || olderOrTiedEarlierID(m, *oldest) {
			mm := s.messages[id]
			oldest = &mm
		}
	}
	if oldest == nil {
		return models.Message{}, false, nil
	}
	return *oldest, true, nil
}

// olderOrTiedEarlierID orders messages by created_at ascending, breaking
// ties by id ascending, matching pg/messages.go's ORDER BY created_at ASC,
// id ASC (spec.md §4.3: "within equal timestamps, ascending id").
func olderOrTiedEarlierID(a, b models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.String() < b.ID.String()
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (s *Store) OldestPendingAge(ctx context.Context, projectID uuid.UUID) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *models.Message
	for id, m := range s.messages {
		if m.ProjectID != projectID || m.Status != models.MessageStatusPending {
			continue
		}
		if oldest == nil || olderOrTiedEarlierID(m, *oldest) {
			mm := s.messages[id]
			oldest = &mm
		}
	}
	if oldest == nil {
		return 0, false, nil
	}
	return time.Since(oldest.CreatedAt), true, nil
}

func (s *Store) GetSummary(ctx context.Context, projectID, agentID uuid.UUID) (models.AgentMemorySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byAgent, ok := s.summaries[projectID]
	if !ok {
		return models.AgentMemorySummary{ProjectID: projectID, AgentID: agentID}, nil
	}
	sm, ok := byAgent[agentID]
	if !ok {
		return models.AgentMemorySummary{ProjectID: projectID, AgentID: agentID}, nil
	}
	return sm, nil
}

func (s *Store) UpsertSummary(ctx context.Context, tx store.Tx, sm models.AgentMemorySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byAgent, ok := s.summaries[sm.ProjectID]
	if !ok {
		byAgent = make(map[uuid.UUID]models.AgentMemorySummary)
		s.summaries[sm.ProjectID] = byAgent
	}
	prev := byAgent[sm.AgentID]
	sm.MessageCount = 0
	sm.SummaryCount = prev.SummaryCount + 1
	byAgent[sm.AgentID] = sm
	return nil
}

// IncrementMessageCount implements store.Memory.
func (s *Store) IncrementMessageCount(ctx context.Context, tx store.Tx, projectID, agentID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byAgent, ok := s.summaries[projectID]
	if !ok {
		byAgent = make(map[uuid.UUID]models.AgentMemorySummary)
		s.summaries[projectID] = byAgent
	}
	sm := byAgent[agentID]
	sm.ProjectID, sm.AgentID = projectID, agentID
	sm.MessageCount++
	sm.UpdatedAt = time.Now()
	byAgent[agentID] = sm
	return sm.MessageCount, nil
}

func (s *Store) CreateLog(ctx context.Context, tx store.Tx, l models.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[l.ProjectID] = append(s.logs[l.ProjectID], l)
	return nil
}

func (s *Store) ListLogs(ctx context.Context, projectID uuid.UUID) ([]models.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Log, len(s.logs[projectID]))
	copy(out, s.logs[projectID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteLogs(ctx context.Context, tx store.Tx, projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, projectID)
	return nil
}

func sortTokens(ts []models.Token) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].CreatedAt.Before(ts[j].CreatedAt) })
}

func sortAgents(as []models.Agent) {
	sort.Slice(as, func(i, j int) bool { return as[i].CreatedAt.Before(as[j].CreatedAt) })
}

func sortProjects(ps []models.Project) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) })
}
