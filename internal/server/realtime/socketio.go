package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/gin-gonic/gin"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
	sockettypes "github.com/zishang520/socket.io/v3/pkg/types"
)

const (
	// SocketPath is where the socket.io endpoint is mounted.
	SocketPath = "/socket.io/"

	pingInterval = 25 * time.Second
	pingTimeout  = 20 * time.Second
)

// SocketServer wraps the socket.io server and its two namespaces.
type SocketServer struct {
	server   *socket.Server
	logger   logging.Logger
	auth     *Hub
	message  *Hub
	sessions *SessionGateway
	subs     *SubscriptionGateway
}

// NewSocketServer creates the socket.io server. corsOrigin is the browser
// origin allowed to connect.
func NewSocketServer(logger logging.Logger, sessions *SessionGateway, subs *SubscriptionGateway, corsOrigin string) *SocketServer {
	opts := socket.DefaultServerOptions()
	opts.SetCors(&sockettypes.Cors{
		Origin:      corsOrigin,
		Credentials: true,
	})
	opts.SetPingInterval(pingInterval)
	opts.SetPingTimeout(pingTimeout)
	opts.SetPath(SocketPath)

	s := &SocketServer{
		server:   socket.NewServer(nil, opts),
		logger:   logger.With("module", "socketio"),
		auth:     NewHub(NamespaceAuth),
		message:  NewHub(NamespaceMessage),
		sessions: sessions,
		subs:     subs,
	}

	s.server.Of(NamespaceAuth, nil).On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		s.handleAuthConnection(client)
	})
	s.server.Of(NamespaceMessage, nil).On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		s.handleMessageConnection(client)
	})

	return s
}

// AuthPusher reaches sockets of the /auth namespace.
func (s *SocketServer) AuthPusher() Pusher { return s.auth }

// MessagePusher reaches sockets of the /message namespace.
func (s *SocketServer) MessagePusher() Pusher { return s.message }

func (s *SocketServer) handleAuthConnection(client *socket.Socket) {
	connID := string(client.Id())
	s.auth.add(connID, client)
	s.logger.Debug(context.Background(), "socket connected", "namespace", NamespaceAuth, "socket_id", connID)

	client.On(EventSessionRegister, func(data ...any) {
		ctx := context.Background()
		raw, ack := getFirstAnyWithAck(data)

		var req SessionRegisterPayload
		if err := decodeAny(raw, &req); err != nil {
			s.reject(ctx, client, ack, err)
			return
		}

		resp, err := s.sessions.Register(ctx, connID, req)
		if err != nil {
			s.reject(ctx, client, ack, err)
			return
		}
		s.reply(ctx, client, ack, EventSessionRegisterSuccess, resp)
	})

	client.On("disconnect", func(...any) {
		s.auth.remove(connID)
		s.sessions.Disconnect(context.Background(), connID)
	})
}

func (s *SocketServer) handleMessageConnection(client *socket.Socket) {
	connID := string(client.Id())
	s.message.add(connID, client)
	hs := client.Handshake()
	token := handshakeToken(hs.Headers.Header(), hs.Auth)
	s.logger.Debug(context.Background(), "socket connected", "namespace", NamespaceMessage, "socket_id", connID)

	client.On(EventMessageSubscribe, func(data ...any) {
		ctx := context.Background()
		raw, ack := getFirstAnyWithAck(data)

		var req SubscribePayload
		if err := decodeAny(raw, &req); err != nil {
			s.reject(ctx, client, ack, err)
			return
		}

		resp, err := s.subs.Subscribe(ctx, connID, token, req)
		if err != nil {
			s.reject(ctx, client, ack, err)
			return
		}
		s.reply(ctx, client, ack, EventMessageSubscribeSuccess, resp)
	})

	client.On("disconnect", func(...any) {
		s.message.remove(connID)
		s.subs.Disconnect(context.Background(), connID)
	})
}

func (s *SocketServer) reply(ctx context.Context, e emitter, ack func(...any), event string, payload any) {
	if ack != nil {
		ack(payload)
	}
	if err := e.Emit(event, payload); err != nil {
		s.logger.Warn(ctx, "emit failed", "event", event, "error", err)
	}
}

func (s *SocketServer) reject(ctx context.Context, e emitter, ack func(...any), cause error) {
	payload := ErrorPayload{Message: cause.Error()}
	if ack != nil {
		ack(payload)
	}
	if err := e.Emit(EventError, payload); err != nil {
		s.logger.Warn(ctx, "emit failed", "event", EventError, "error", err)
	}
}

// Handler returns the gin handler serving the socket.io protocol.
func (s *SocketServer) Handler() gin.HandlerFunc {
	h := s.server.ServeHandler(nil)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func (s *SocketServer) Close() error {
	s.server.Close(nil)
	return nil
}

// handshakeToken returns the access token of the handshake. The login cookie
// wins over a token passed in the auth payload.
func handshakeToken(headers http.Header, authData map[string]any) string {
	req := &http.Request{Header: headers}
	if c, err := req.Cookie(common.AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if tok, ok := authData["token"].(string); ok {
		return tok
	}
	return ""
}

func getFirstAnyWithAck(data []any) (any, func(...any)) {
	var ack func(...any)
	if len(data) == 0 {
		return nil, nil
	}
	if cb, ok := data[len(data)-1].(func(...any)); ok {
		ack = cb
		data = data[:len(data)-1]
	} else if cb, ok := data[len(data)-1].(socket.Ack); ok {
		ack = func(args ...any) {
			cb(args, nil)
		}
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil, ack
	}
	return data[0], ack
}
