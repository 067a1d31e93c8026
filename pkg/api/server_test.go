package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coworklab/parley/pkg/config"
	"github.com/coworklab/parley/pkg/dispatcher"
	"github.com/coworklab/parley/pkg/events"
	"github.com/coworklab/parley/pkg/services"
	"github.com/coworklab/parley/pkg/store/memstore"
)

// noopNudger satisfies services.Nudger without driving the turn worker;
// these tests exercise the HTTP surface, not turn execution.
type noopNudger struct{}

func (noopNudger) Nudge(projectID uuid.UUID) {}

func testConfig() config.Config {
	return config.Config{
		Security: config.SecurityConfig{
			SessionSigningKey:  []byte("test-signing-key"),
			TokenEncryptionKey: []byte("01234567890123456789012345678901"),
			InternalAPIKey:     "internal-test-key",
			SessionTTL:         time.Hour,
		},
		Worker: config.DefaultWorkerConfig(),
		Demo:   config.DemoConfig{MessageLimitCeil: 500},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := memstore.New()
	cfg := testConfig()
	hub := events.NewHub(time.Second, nil)
	svc := services.New(st, cfg, hub, noopNudger{})

	srv := NewServer(cfg, svc, hub, nil, nil)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func TestServer_RegisterLoginMe(t *testing.T) {
	ts := newTestServer(t)
	client := ts.Client()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client.Jar = jar

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/register", map[string]string{
		"username": "Ada", "email": "ada@example.com", "password": "hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/login", map[string]string{
		"email": "ada@example.com", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, "ada@example.com", got["email"])
}

func TestServer_LoginBadCredentialsRejected(t *testing.T) {
	ts := newTestServer(t)
	client := ts.Client()

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/register", map[string]string{
		"username": "Ada", "email": "ada@example.com", "password": "hunter2",
	})
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/login", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_UnauthenticatedRequestRejected(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/api/projects", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_InternalRouteRequiresKey(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/api/internal/health", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_InternalRouteAcceptsKey(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/internal/health", nil)
	require.NoError(t, err)
	req.Header.Set(dispatcher.InternalKeyHeader, "internal-test-key")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_FullProjectFlow(t *testing.T) {
	ts := newTestServer(t)
	client := ts.Client()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client.Jar = jar

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/register", map[string]string{
		"username": "Ada", "email": "ada@example.com", "password": "hunter2",
	})
	resp.Body.Close()
	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/login", map[string]string{
		"email": "ada@example.com", "password": "hunter2",
	})
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/projects", map[string]any{
		"title":         "demo project",
		"system_prompt": "be helpful",
		"agents": []map[string]any{
			{"name": "researcher", "role": "assistant", "description": "digs up facts", "model": "claude"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var project map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&project))
	resp.Body.Close()
	assert.Equal(t, "demo project", project["title"])
	assert.Equal(t, true, project["paused"])

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var projects []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&projects))
	resp.Body.Close()
	assert.Len(t, projects, 1)
}
