package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/auth"
	"github.com/dmitrijs2005/keybud/internal/server/registry"
)

var (
	ErrMissingSessionID = errors.New("sessionId is required")
	ErrMissingUserID    = errors.New("userId is required")
	ErrIdentityMismatch = errors.New("userId does not match the access token")
	ErrUnauthenticated  = errors.New("access token is required")
)

// SessionGateway binds browser tabs waiting for a login to complete.
type SessionGateway struct {
	registry *registry.Registry
	logger   logging.Logger
}

func NewSessionGateway(reg *registry.Registry, logger logging.Logger) *SessionGateway {
	return &SessionGateway{registry: reg, logger: logger.With("module", "gateway", "namespace", NamespaceAuth)}
}

// Register binds connID to the login session. Registering again from the
// same socket overwrites the previous binding.
func (g *SessionGateway) Register(ctx context.Context, connID string, req SessionRegisterPayload) (SessionRegisterPayload, error) {
	if req.SessionID == "" {
		return SessionRegisterPayload{}, ErrMissingSessionID
	}
	g.registry.Bind(ctx, connID, req.SessionID)
	g.logger.Info(ctx, "session registered", "socket_id", connID, "session_id", req.SessionID)
	return req, nil
}

func (g *SessionGateway) Disconnect(ctx context.Context, connID string) {
	g.registry.Release(ctx, connID)
}

// SubscriptionGateway binds a logged-in user's socket so new messages can
// be pushed to it.
type SubscriptionGateway struct {
	registry *registry.Registry
	logger   logging.Logger
	secret   []byte
}

func NewSubscriptionGateway(reg *registry.Registry, logger logging.Logger, jwtSecret []byte) *SubscriptionGateway {
	return &SubscriptionGateway{
		registry: reg,
		logger:   logger.With("module", "gateway", "namespace", NamespaceMessage),
		secret:   jwtSecret,
	}
}

// Subscribe binds connID to the user named by the handshake access token.
// A userId in the request is optional and must match the token.
func (g *SubscriptionGateway) Subscribe(ctx context.Context, connID, token string, req SubscribePayload) (SubscribePayload, error) {
	if token == "" {
		return SubscribePayload{}, ErrUnauthenticated
	}
	id, err := auth.ParseToken(token, g.secret)
	if err != nil {
		return SubscribePayload{}, err
	}

	userID := int64(req.UserID)
	if userID != 0 && userID != id.UserID {
		return SubscribePayload{}, ErrIdentityMismatch
	}
	userID = id.UserID
	if userID == 0 {
		return SubscribePayload{}, ErrMissingUserID
	}

	g.registry.Bind(ctx, connID, fmt.Sprint(userID))
	g.logger.Info(ctx, "message subscription started", "socket_id", connID, "user_id", userID)
	return SubscribePayload{UserID: FlexibleID(userID)}, nil
}

func (g *SubscriptionGateway) Disconnect(ctx context.Context, connID string) {
	g.registry.Release(ctx, connID)
}
