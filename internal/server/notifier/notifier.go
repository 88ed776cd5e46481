// Package notifier signals a waiting browser tab that its OAuth login has
// finished. The tab registered its session id over the /auth socket; the
// OAuth callback only knows a nonce, so the nonce is mapped back to the
// session and the session to the socket.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/kv"
	"github.com/dmitrijs2005/keybud/internal/server/metrics"
	"github.com/dmitrijs2005/keybud/internal/server/realtime"
	"github.com/dmitrijs2005/keybud/internal/server/registry"
	"github.com/google/uuid"
)

// Notifier drives one login attempt from nonce minting to completion push.
type Notifier struct {
	store    kv.Store
	sessions *registry.Registry
	pusher   realtime.Pusher
	logger   logging.Logger
	nonceTTL time.Duration
}

// New builds a Notifier. nonceTTL == 0 uses the store default.
func New(store kv.Store, sessions *registry.Registry, pusher realtime.Pusher, logger logging.Logger, nonceTTL time.Duration) *Notifier {
	return &Notifier{
		store:    store,
		sessions: sessions,
		pusher:   pusher,
		logger:   logger.With("module", "notifier"),
		nonceTTL: nonceTTL,
	}
}

func nonceKey(nonce string) string {
	return fmt.Sprintf("%s:nonce:%s", registry.AuthNamespace, nonce)
}

// MintNonce creates a single-use nonce for sessionID, to be sent as the
// OAuth state parameter.
func (n *Notifier) MintNonce(ctx context.Context, sessionID string) (string, error) {
	nonce := uuid.NewString()
	if err := n.store.Set(ctx, nonceKey(nonce), sessionID, n.nonceTTL); err != nil {
		return "", fmt.Errorf("store nonce: %w", err)
	}
	return nonce, nil
}

// ConsumeNonce returns the session bound to nonce and deletes the nonce.
// A missing, expired or already used nonce yields false.
func (n *Notifier) ConsumeNonce(ctx context.Context, nonce string) (string, bool) {
	if nonce == "" {
		return "", false
	}

	key := nonceKey(nonce)
	sessionID, ok, err := n.store.Get(ctx, key)
	if err != nil {
		n.logger.Warn(ctx, "nonce lookup failed", "error", err)
		return "", false
	}
	if !ok {
		n.logger.Info(ctx, "unknown or expired nonce")
		return "", false
	}

	deleted, err := n.store.Del(ctx, key)
	if err != nil {
		n.logger.Warn(ctx, "nonce delete failed", "error", err)
	} else if deleted == 0 {
		// Another callback consumed it between our GET and DEL.
		return "", false
	}
	return sessionID, true
}

// NotifyCompleted pushes the completion event to the socket registered for
// sessionID and releases the binding. It reports whether the push was
// delivered; a second call for the same session finds nothing and returns
// false.
func (n *Notifier) NotifyCompleted(ctx context.Context, sessionID string) bool {
	connID, ok := n.sessions.ResolveByCorrelation(ctx, sessionID)
	if !ok {
		n.logger.Info(ctx, "no live socket for session", "session_id", sessionID)
		metrics.RecordCompletion(metrics.OutcomeMiss)
		return false
	}

	if err := n.pusher.SendToConnection(ctx, connID, realtime.EventSessionComplete, nil); err != nil {
		n.logger.Warn(ctx, "completion push failed", "session_id", sessionID, "socket_id", connID, "error", err)
		metrics.RecordCompletion(metrics.OutcomeFailure)
		return false
	}

	n.sessions.ReleaseCorrelation(ctx, sessionID)
	metrics.RecordCompletion(metrics.OutcomeSuccess)
	n.logger.Info(ctx, "login completion delivered", "session_id", sessionID, "socket_id", connID)
	return true
}

// Complete consumes nonce and notifies its session. It never fails the
// caller; false means the tab must refresh on its own.
func (n *Notifier) Complete(ctx context.Context, nonce string) bool {
	sessionID, ok := n.ConsumeNonce(ctx, nonce)
	if !ok {
		metrics.RecordCompletion(metrics.OutcomeMiss)
		return false
	}
	return n.NotifyCompleted(ctx, sessionID)
}
