package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCreateProjectRequest_AcceptsCamelCaseAliases(t *testing.T) {
	body := []byte(`{"title":"demo","description":"d","systemPrompt":"be nice","agents":[]}`)

	req, err := DecodeCreateProjectRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "be nice", req.SystemPrompt)
}

func TestDecodeCreateProjectRequest_AcceptsSnakeCase(t *testing.T) {
	body := []byte(`{"title":"demo","description":"d","system_prompt":"be nice","agents":[]}`)

	req, err := DecodeCreateProjectRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "be nice", req.SystemPrompt)
}

func TestDecodeCreateProjectRequest_RejectsUnknownField(t *testing.T) {
	body := []byte(`{"title":"demo","description":"d","system_prompt":"x","agents":[],"bogus":1}`)

	_, err := DecodeCreateProjectRequest(body)
	assert.Error(t, err)
}

func TestDecodeCreateTokenRequest_AcceptsApiKeyAlias(t *testing.T) {
	body := []byte(`{"name":"main","apiKey":"sk-ant-xyz"}`)

	req, err := DecodeCreateTokenRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-xyz", req.APIKey)
}

func TestDecodeJoinFrame_AcceptsProjectIdAlias(t *testing.T) {
	body := []byte(`{"type":"join","projectId":"00000000-0000-0000-0000-000000000001"}`)

	frame, err := DecodeJoinFrame(body)
	require.NoError(t, err)
	assert.Equal(t, "join", frame.Type)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", frame.ProjectID.String())
}
