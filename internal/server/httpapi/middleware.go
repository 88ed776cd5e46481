package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const (
	// AccessTokenCookie carries the JWT issued at login.
	AccessTokenCookie = common.AccessTokenCookieName

	identityKey = "identity"
)

// LoggingMiddleware logs one line per HTTP request.
func LoggingMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func requestToken(c *gin.Context) string {
	if tok, err := c.Cookie(AccessTokenCookie); err == nil && tok != "" {
		return tok
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// AuthMiddleware verifies the access token from the cookie (or a bearer
// header) and stores the caller's identity in the gin context.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := h.users.Authenticate(requestToken(c))
		if err != nil {
			h.errors.abort(c, http.StatusUnauthorized, common.ErrorUnauthorized.Error())
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the identity set by AuthMiddleware.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
