// Package httpapi is the browser-facing HTTP surface: Google login,
// conversations, messages and attachment URLs. The socket.io endpoint and
// Prometheus metrics are mounted on the same engine.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps are the services the handlers call.
type Deps struct {
	Users         Users
	Provider      LoginProvider
	Completions   Completions
	Conversations Conversations
	Messages      Messages
	Fanout        Fanout
	Attachments   URLResolver
}

// Options configure the engine.
type Options struct {
	// ClientURL is the browser app origin; login redirects land on it.
	ClientURL  string
	Production bool
	Logger     logging.Logger

	// SocketHandler and MetricsHandler are mounted when set.
	SocketHandler  gin.HandlerFunc
	MetricsHandler http.Handler
}

// Handler holds the HTTP handlers.
type Handler struct {
	users         Users
	provider      LoginProvider
	completions   Completions
	conversations Conversations
	messages      Messages
	fanout        Fanout
	attachments   URLResolver

	clientURL  string
	production bool
	logger     logging.Logger
	errors     errorWriter
}

func NewHandler(d Deps, opts Options) *Handler {
	logger := opts.Logger.With("module", "http")
	return &Handler{
		users:         d.Users,
		provider:      d.Provider,
		completions:   d.Completions,
		conversations: d.Conversations,
		messages:      d.Messages,
		fanout:        d.Fanout,
		attachments:   d.Attachments,
		clientURL:     strings.TrimSuffix(opts.ClientURL, "/"),
		production:    opts.Production,
		logger:        logger,
		errors:        errorWriter{logger: logger, production: opts.Production},
	}
}

func corsConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if origin == "" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = []string{origin}
	cfg.AllowCredentials = true
	return cfg
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps, opts Options) *gin.Engine {
	h := NewHandler(d, opts)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(h.clientURL)))
	r.Use(LoggingMiddleware(h.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.GET("/google", h.GoogleLogin)
		authGroup.GET("/google/redirect", h.GoogleCallback)
		authGroup.POST("/logout", h.Logout)
		if !h.production {
			authGroup.POST("/dev-login", h.DevLogin)
		}
	}

	protected := r.Group("")
	protected.Use(h.AuthMiddleware())
	{
		protected.GET("/auth/me", h.Me)

		protected.POST("/conversation", h.CreateConversation)
		protected.GET("/conversation", h.ListConversations)
		protected.GET("/conversation/:id", h.GetConversation)
		protected.GET("/conversation/:id/messages", h.ListMessages)

		protected.POST("/message", h.CreateMessage)

		protected.POST("/attachments/urls", h.ResolveAttachmentURLs)
	}

	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}
	if opts.SocketHandler != nil {
		// Handshake is unauthenticated; gateways check identity per event.
		r.Any("/socket.io/*any", opts.SocketHandler)
	}

	return r
}
