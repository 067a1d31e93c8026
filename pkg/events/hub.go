// Package events implements the live-update hub: WebSocket fan-out of
// project-scoped events to subscribed clients, grounded on the teacher's
// pkg/events/manager.go ConnectionManager (same single-owner-goroutine-per-
// connection idiom, same write-timeout-guarded coder/websocket send), but
// broadcasting from an in-process publisher instead of a Postgres
// LISTEN/NOTIFY bridge: the hub's shared state is internal to one API
// process, so no cross-pod fabric is needed (spec.md §5).
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/coworklab/parley/pkg/wire"
)

// Event types pushed to subscribed clients (spec.md §4.6).
const (
	EventNewMessage     = "new_message"
	EventMessageUpdated = "message_updated"
	EventProjectUpdated = "project_updated"
	EventLogCreated     = "log_created"
)

// pendingBufferSize bounds the per-project queue of events held for a
// project with no currently-connected subscriber (spec.md §4.6: "bounded
// buffer... drop oldest, emit a warn log").
const pendingBufferSize = 100

// pendingEvent is one queued, not-yet-delivered event for a project.
type pendingEvent struct {
	eventType string
	payload   any
}

// ProjectAuthorizer confirms userID may subscribe to projectID's events,
// satisfied in practice by a closure over services.ProjectService.Get.
// Passed in per-connection rather than imported, since pkg/events sits below
// pkg/services in the dependency graph.
type ProjectAuthorizer func(ctx context.Context, userID, projectID uuid.UUID) bool

// Client represents a single WebSocket connection, subscribed to at most
// one project at a time. Like the teacher's Connection, its subscription
// field is owned by the single goroutine running HandleConnection and is
// never touched concurrently.
type Client struct {
	id        string
	conn      *websocket.Conn
	userID    uuid.UUID
	authorize ProjectAuthorizer
	project   uuid.UUID
	joined    bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// Hub manages WebSocket connections and the per-project pending buffer. One
// Hub instance exists per API process (spec.md §5: "internal to the API
// process; no cross-process shared memory is assumed").
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connection id -> client
	byProj  map[uuid.UUID]map[string]bool // project -> set of connection ids subscribed

	bufMu   sync.Mutex
	pending map[uuid.UUID][]pendingEvent

	writeTimeout time.Duration
	log          *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(writeTimeout time.Duration, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		clients:      make(map[string]*Client),
		byProj:       make(map[uuid.UUID]map[string]bool),
		pending:      make(map[uuid.UUID][]pendingEvent),
		writeTimeout: writeTimeout,
		log:          log,
	}
}

// HandleConnection manages one WebSocket client's lifecycle. Blocks until
// the connection closes. userID is the caller already authenticated by the
// session-cookie gate in front of the upgrade (spec.md §4.6: "clients
// authenticate with the same session cookie"); authorize is consulted on
// every join frame before the subscription is granted.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn, userID uuid.UUID, authorize ProjectAuthorizer) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Client{id: uuid.NewString(), conn: conn, userID: userID, authorize: authorize, ctx: ctx, cancel: cancel}

	h.register(c)
	defer h.unregister(c)

	h.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": c.id})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		frame, err := wire.DecodeJoinFrame(data)
		if err != nil {
			h.log.Warn("events: invalid client frame", "connection_id", c.id, "error", err)
			continue
		}
		if frame.Type == "join" {
			h.join(c, frame.ProjectID)
		}
	}
}

// join subscribes c to project, replacing any prior subscription, and
// flushes the project's pending buffer to it (spec.md §4.6 "on next
// subscription the buffer is flushed to the subscriber and cleared"). The
// join is refused, with no subscription change, if c's authorize callback
// rejects the (userID, project) pair — a client may not subscribe to a
// project it doesn't own.
func (h *Hub) join(c *Client, project uuid.UUID) {
	if c.authorize != nil && !c.authorize(c.ctx, c.userID, project) {
		h.sendJSON(c, map[string]any{"type": "join.denied", "project": project})
		return
	}

	h.mu.Lock()
	if c.joined {
		if set, ok := h.byProj[c.project]; ok {
			delete(set, c.id)
		}
	}
	set, ok := h.byProj[project]
	if !ok {
		set = make(map[string]bool)
		h.byProj[project] = set
	}
	set[c.id] = true
	c.project = project
	c.joined = true
	h.mu.Unlock()

	h.sendJSON(c, map[string]any{"type": "join.confirmed", "project": project})

	h.bufMu.Lock()
	queued := h.pending[project]
	delete(h.pending, project)
	h.bufMu.Unlock()
	for _, evt := range queued {
		h.sendJSON(c, map[string]any{"type": evt.eventType, "payload": evt.payload})
	}
}

// Publish implements services.Publisher and turn.Publisher: it broadcasts
// eventType/payload to every client currently subscribed to projectID, or
// queues it in the bounded pending buffer if none are connected.
func (h *Hub) Publish(projectID uuid.UUID, eventType string, payload any) {
	h.mu.RLock()
	subs, ok := h.byProj[projectID]
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	if !ok || len(ids) == 0 {
		h.enqueuePending(projectID, eventType, payload)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.clients[id]; ok {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.sendJSON(c, map[string]any{"type": eventType, "payload": payload})
	}
}

// enqueuePending appends to a project's pending buffer, dropping the oldest
// entry and logging a warn when the buffer is full (spec.md §4.6).
func (h *Hub) enqueuePending(projectID uuid.UUID, eventType string, payload any) {
	h.bufMu.Lock()
	defer h.bufMu.Unlock()
	q := h.pending[projectID]
	if len(q) >= pendingBufferSize {
		q = q[1:]
		h.log.Warn("events: pending buffer overflow, dropping oldest event", "project_id", projectID, "event_type", eventType)
	}
	h.pending[projectID] = append(q, pendingEvent{eventType: eventType, payload: payload})
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	if c.joined {
		if set, ok := h.byProj[c.project]; ok {
			delete(set, c.id)
		}
	}
	h.mu.Unlock()
	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) sendJSON(c *Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("events: marshal failed", "connection_id", c.id, "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(c.ctx, h.writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Warn("events: send failed", "connection_id", c.id, "error", err)
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
