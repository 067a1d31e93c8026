package wire

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RegisterRequest is the canonical body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var registerAliases = aliasSet{
	"user_name": "username",
	"userName":  "username",
	"e_mail":    "email",
}

// DecodeRegisterRequest decodes a register request body.
func DecodeRegisterRequest(body []byte) (RegisterRequest, error) {
	var req RegisterRequest
	err := DecodeStrict(body, registerAliases, &req)
	return req, err
}

// LoginRequest is the canonical body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DecodeLoginRequest decodes a login request body.
func DecodeLoginRequest(body []byte) (LoginRequest, error) {
	var req LoginRequest
	err := DecodeStrict(body, aliasSet{"e_mail": "email"}, &req)
	return req, err
}

// CreateAgentRequest is the canonical body of POST /agents.
type CreateAgentRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Model       string `json:"model"`
}

var createAgentAliases = aliasSet{
	"agent_name":  "name",
	"agentName":   "name",
	"prompt":      "description",
	"system_prompt": "description",
}

// DecodeCreateAgentRequest decodes a create-agent request body.
func DecodeCreateAgentRequest(body []byte) (CreateAgentRequest, error) {
	var req CreateAgentRequest
	err := DecodeStrict(body, createAgentAliases, &req)
	return req, err
}

// CreateTokenRequest is the canonical body of POST /tokens.
type CreateTokenRequest struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

var createTokenAliases = aliasSet{
	"apiKey":    "api_key",
	"api-key":   "api_key",
	"secret":    "api_key",
	"label":     "name",
	"tokenName": "name",
}

// DecodeCreateTokenRequest decodes a create-token request body.
func DecodeCreateTokenRequest(body []byte) (CreateTokenRequest, error) {
	var req CreateTokenRequest
	err := DecodeStrict(body, createTokenAliases, &req)
	return req, err
}

// CreateProjectAgentSpec describes one agent entry within CreateProjectRequest.
type CreateProjectAgentSpec struct {
	Name            string      `json:"name"`
	Role            string      `json:"role"`
	Description     string      `json:"description"`
	Model           string      `json:"model"`
	Prompt          string      `json:"prompt,omitempty"`
	CanMessageIDs   []uuid.UUID `json:"can_message_ids,omitempty"`
}

// CreateProjectRequest is the canonical body of POST /projects.
type CreateProjectRequest struct {
	Title        string                   `json:"title"`
	Description  string                   `json:"description"`
	SystemPrompt string                   `json:"system_prompt"`
	TokenID      *uuid.UUID               `json:"token_id,omitempty"`
	Agents       []CreateProjectAgentSpec `json:"agents"`
}

var createProjectAliases = aliasSet{
	"systemPrompt": "system_prompt",
	"tokenId":      "token_id",
}

// DecodeCreateProjectRequest decodes a create-project request body, also
// normalizing the nested agent specs' camelCase aliases.
func DecodeCreateProjectRequest(body []byte) (CreateProjectRequest, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		if agents, ok := raw["agents"].([]any); ok {
			for i, a := range agents {
				if spec, ok := a.(map[string]any); ok {
					agents[i] = Normalize(spec, aliasSet{"canMessageIds": "can_message_ids"})
				}
			}
			if normalized, err := json.Marshal(raw); err == nil {
				body = normalized
			}
		}
	}
	var req CreateProjectRequest
	if err := DecodeStrict(body, createProjectAliases, &req); err != nil {
		return CreateProjectRequest{}, err
	}
	return req, nil
}

// ProjectStatusRequest is the canonical body of POST /projects/:id/status.
type ProjectStatusRequest struct {
	Paused bool `json:"paused"`
}

// DecodeProjectStatusRequest decodes a project-status request body.
func DecodeProjectStatusRequest(body []byte) (ProjectStatusRequest, error) {
	var req ProjectStatusRequest
	err := DecodeStrict(body, aliasSet{}, &req)
	return req, err
}

// SetProjectTokenRequest is the canonical body of PATCH /settings/project/:id/token.
type SetProjectTokenRequest struct {
	TokenID uuid.UUID `json:"token_id"`
}

var setProjectTokenAliases = aliasSet{"tokenId": "token_id"}

// DecodeSetProjectTokenRequest decodes a set-project-token request body.
func DecodeSetProjectTokenRequest(body []byte) (SetProjectTokenRequest, error) {
	var req SetProjectTokenRequest
	err := DecodeStrict(body, setProjectTokenAliases, &req)
	return req, err
}

// SetProjectLimitRequest is the canonical body of PATCH /settings/project/:id/limit.
type SetProjectLimitRequest struct {
	Limit int `json:"limit"`
}

// DecodeSetProjectLimitRequest decodes a set-project-limit request body.
func DecodeSetProjectLimitRequest(body []byte) (SetProjectLimitRequest, error) {
	var req SetProjectLimitRequest
	err := DecodeStrict(body, aliasSet{}, &req)
	return req, err
}

// CreateConversationRequest is the canonical body of POST /conversations/:projectId.
type CreateConversationRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Title      string    `json:"title,omitempty"`
}

var createConversationAliases = aliasSet{"receiverId": "receiver_id"}

// DecodeCreateConversationRequest decodes a create-conversation request body.
func DecodeCreateConversationRequest(body []byte) (CreateConversationRequest, error) {
	var req CreateConversationRequest
	err := DecodeStrict(body, createConversationAliases, &req)
	return req, err
}

// CreateMessageRequest is the canonical body of POST /messages/:conversationId.
type CreateMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// DecodeCreateMessageRequest decodes a create-message request body.
func DecodeCreateMessageRequest(body []byte) (CreateMessageRequest, error) {
	var req CreateMessageRequest
	err := DecodeStrict(body, aliasSet{}, &req)
	return req, err
}

// JoinFrame is the client→server live-update frame requesting project updates.
type JoinFrame struct {
	Type      string    `json:"type"`
	ProjectID uuid.UUID `json:"project_id"`
}

var joinFrameAliases = aliasSet{"projectId": "project_id"}

// DecodeJoinFrame decodes a live-update join frame.
func DecodeJoinFrame(body []byte) (JoinFrame, error) {
	var req JoinFrame
	err := DecodeStrict(body, joinFrameAliases, &req)
	return req, err
}
