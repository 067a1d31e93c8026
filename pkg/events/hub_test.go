package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coworklab/parley/pkg/wire"
)

// allowAll is a ProjectAuthorizer that grants every join; these tests
// exercise hub fan-out/buffering mechanics, not the ownership gate, which
// TestHub_Join_DeniedByAuthorizer covers with a denying authorizer.
func allowAll(ctx context.Context, userID, projectID uuid.UUID) bool { return true }

func setupTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(5*time.Second, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		h.HandleConnection(r.Context(), conn, uuid.New(), allowAll)
	}))
	t.Cleanup(server.Close)
	return h, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJoin(t *testing.T, conn *websocket.Conn, project uuid.UUID) {
	t.Helper()
	data, err := json.Marshal(wire.JoinFrame{Type: "join", ProjectID: project})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestHub_JoinAndReceiveBroadcast(t *testing.T) {
	h, server := setupTestHub(t)
	conn := connectWS(t, server)

	msg := readJSON(t, conn)
	assert.Equal(t, "connection.established", msg["type"])

	projectID := uuid.New()
	writeJoin(t, conn, projectID)

	msg = readJSON(t, conn)
	assert.Equal(t, "join.confirmed", msg["type"])

	h.Publish(projectID, EventNewMessage, map[string]any{"hello": "world"})

	msg = readJSON(t, conn)
	assert.Equal(t, EventNewMessage, msg["type"])
	payload, ok := msg["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "world", payload["hello"])
}

func TestHub_Join_DeniedByAuthorizer(t *testing.T) {
	h := NewHub(5*time.Second, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		h.HandleConnection(r.Context(), conn, uuid.New(), func(ctx context.Context, userID, projectID uuid.UUID) bool {
			return false
		})
	}))
	t.Cleanup(server.Close)
	conn := connectWS(t, server)
	_ = readJSON(t, conn) // connection.established

	projectID := uuid.New()
	writeJoin(t, conn, projectID)

	msg := readJSON(t, conn)
	assert.Equal(t, "join.denied", msg["type"])

	h.mu.RLock()
	_, subscribed := h.byProj[projectID]
	h.mu.RUnlock()
	assert.False(t, subscribed)
}

func TestHub_PublishWithNoSubscriber_Buffers(t *testing.T) {
	h, server := setupTestHub(t)
	projectID := uuid.New()

	h.Publish(projectID, EventProjectUpdated, map[string]any{"paused": true})

	conn := connectWS(t, server)
	_ = readJSON(t, conn) // connection.established

	writeJoin(t, conn, projectID)
	msg := readJSON(t, conn)
	assert.Equal(t, "join.confirmed", msg["type"])

	flushed := readJSON(t, conn)
	assert.Equal(t, EventProjectUpdated, flushed["type"])
}

func TestHub_PendingBuffer_DropsOldestOnOverflow(t *testing.T) {
	h := NewHub(time.Second, nil)
	projectID := uuid.New()

	for i := 0; i < pendingBufferSize+10; i++ {
		h.Publish(projectID, EventLogCreated, map[string]any{"i": i})
	}

	h.bufMu.Lock()
	q := h.pending[projectID]
	h.bufMu.Unlock()
	require.Len(t, q, pendingBufferSize)
	first := q[0].payload.(map[string]any)
	assert.Equal(t, 10, first["i"])
}

func TestHub_Unregister_RemovesSubscription(t *testing.T) {
	h, server := setupTestHub(t)
	conn := connectWS(t, server)
	_ = readJSON(t, conn)

	projectID := uuid.New()
	writeJoin(t, conn, projectID)
	_ = readJSON(t, conn)

	require.Equal(t, 1, h.ActiveConnections())

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool {
		return h.ActiveConnections() == 0
	}, time.Second, 10*time.Millisecond)

	h.mu.RLock()
	subs := h.byProj[projectID]
	h.mu.RUnlock()
	assert.Empty(t, subs)
}
