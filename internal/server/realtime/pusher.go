// Package realtime is the push side of the server: the socket.io endpoint
// browsers keep open, the gateways that bind those sockets in the
// connection registry, and the Pusher used to deliver events to them.
//
// Delivery is fire-and-forget. A push is attempted once; nothing is queued
// or retried, and callers decide whether a failure is worth logging.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// ErrConnectionNotFound is returned when no live socket has the given id
// in this process.
var ErrConnectionNotFound = errors.New("connection not found")

// Pusher delivers an event to live connections.
type Pusher interface {
	SendToConnection(ctx context.Context, connID, event string, payload any) error
	// BroadcastToConnections attempts every id; the error aggregates the
	// ids that could not be reached.
	BroadcastToConnections(ctx context.Context, connIDs []string, event string, payload any) error
}

// emitter is the part of a socket the hub needs.
type emitter interface {
	Emit(event string, args ...any) error
}

// Hub tracks the sockets connected to one namespace and implements Pusher
// over them.
type Hub struct {
	name  string
	conns sync.Map // connection id -> emitter
}

func NewHub(name string) *Hub {
	return &Hub{name: name}
}

func (h *Hub) Name() string { return h.name }

func (h *Hub) add(connID string, e emitter) {
	h.conns.Store(connID, e)
}

func (h *Hub) remove(connID string) {
	h.conns.Delete(connID)
}

func (h *Hub) get(connID string) (emitter, bool) {
	v, ok := h.conns.Load(connID)
	if !ok {
		return nil, false
	}
	e, ok := v.(emitter)
	return e, ok
}

// Len returns the number of sockets currently connected.
func (h *Hub) Len() int {
	n := 0
	h.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Hub) SendToConnection(_ context.Context, connID, event string, payload any) error {
	e, ok := h.get(connID)
	if !ok {
		return fmt.Errorf("%s/%s: %w", h.name, connID, ErrConnectionNotFound)
	}
	if err := e.Emit(event, payload); err != nil {
		return fmt.Errorf("emit %s to %s/%s: %w", event, h.name, connID, err)
	}
	return nil
}

func (h *Hub) BroadcastToConnections(ctx context.Context, connIDs []string, event string, payload any) error {
	var errs error
	for _, id := range connIDs {
		errs = multierr.Append(errs, h.SendToConnection(ctx, id, event, payload))
	}
	return errs
}
