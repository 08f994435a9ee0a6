package clientws

import (
	"context"
	"encoding/json"
	"sync"

	ws "nhooyr.io/websocket"
)

// Registry keeps at most one browser connection per negotiation.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*ws.Conn
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]*ws.Conn)} }

// Replace sets the connection for a negotiation and closes the previous one if present.
func (r *Registry) Replace(negotiationID string, c *ws.Conn) (prevClosed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[negotiationID]; ok && old != nil {
		_ = old.Close(ws.StatusNormalClosure, "replaced")
		prevClosed = true
	}
	r.conns[negotiationID] = c
	return
}

func (r *Registry) Get(negotiationID string) *ws.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[negotiationID]
}

func (r *Registry) Remove(negotiationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, negotiationID)
}

// Close shuts down the negotiation's connection if one is attached and
// removes it from the registry.
func (r *Registry) Close(negotiationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[negotiationID]; ok && c != nil {
		_ = c.Close(ws.StatusNormalClosure, "ended")
	}
	delete(r.conns, negotiationID)
}

// SendJSON writes v to the negotiation's connection if one is attached.
func (r *Registry) SendJSON(ctx context.Context, negotiationID string, v any) error {
	r.mu.Lock()
	c := r.conns[negotiationID]
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Write(ctx, ws.MessageText, mustJSON(v))
}

// local helper
func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
