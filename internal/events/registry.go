package events

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// Connection is one registered WebSocket stream, tagged with the
// connecting user's organization (nil for unauthenticated streams, which
// only ever receive system-wide events).
type Connection struct {
	id    uuid.UUID
	conn  *websocket.Conn
	orgID *uuid.UUID
}

// ConnectionRegistry holds active streaming connections and fans events
// out to them, scoped by organization.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*Connection
	logger *slog.Logger
}

// NewConnectionRegistry builds an empty registry. A nil logger falls back
// to slog.Default().
func NewConnectionRegistry(logger *slog.Logger) *ConnectionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionRegistry{conns: make(map[uuid.UUID]*Connection), logger: logger}
}

// Accept upgrades an HTTP request to a WebSocket connection and registers
// it under orgID (nil for unauthenticated connects). The caller is
// responsible for extracting orgID from the request's bearer token before
// calling Accept; this package only owns the fan-out, not auth.
func (r *ConnectionRegistry) Accept(w http.ResponseWriter, req *http.Request, orgID *uuid.UUID) (*Connection, error) {
	wsConn, err := websocket.Accept(w, req, nil)
	if err != nil {
		return nil, err
	}
	return r.register(wsConn, orgID), nil
}

func (r *ConnectionRegistry) register(wsConn *websocket.Conn, orgID *uuid.UUID) *Connection {
	c := &Connection{id: uuid.New(), conn: wsConn, orgID: orgID}
	r.mu.Lock()
	r.conns[c.id] = c
	total := len(r.conns)
	r.mu.Unlock()
	r.logger.Info("websocket connected", "total_connections", total, "org_id", orgIDString(orgID))
	return c
}

// Remove unregisters a connection, e.g. once its read loop exits.
func (r *ConnectionRegistry) Remove(c *Connection) {
	r.mu.Lock()
	delete(r.conns, c.id)
	total := len(r.conns)
	r.mu.Unlock()
	r.logger.Info("websocket disconnected", "total_connections", total)
}

// Broadcast delivers event/data to every connection whose org matches
// orgID (all connections if orgID is nil). Delivery is best-effort and
// fire-and-forget per connection; a send failure removes the connection
// rather than failing the broadcast.
func (r *ConnectionRegistry) Broadcast(ctx context.Context, event string, data any, orgID *uuid.UUID) {
	env := newEnvelope(event, data, orgID)

	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		if orgID != nil && (c.orgID == nil || *c.orgID != *orgID) {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	var dead []*Connection
	for _, c := range targets {
		if err := wsjson.Write(ctx, c.conn, env); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		r.Remove(c)
		_ = c.conn.Close(websocket.StatusInternalError, "send failed")
	}

	r.logger.Debug("websocket broadcast", "event", event, "recipients", len(targets)-len(dead), "org_id", orgIDString(orgID))
}

// SendPersonal delivers event/data to a single connection, removing it on
// send failure.
func (r *ConnectionRegistry) SendPersonal(ctx context.Context, c *Connection, event string, data any) {
	env := newEnvelope(event, data, c.orgID)
	if err := wsjson.Write(ctx, c.conn, env); err != nil {
		r.Remove(c)
		_ = c.conn.Close(websocket.StatusInternalError, "send failed")
	}
}

func orgIDString(orgID *uuid.UUID) string {
	if orgID == nil {
		return ""
	}
	return orgID.String()
}
