package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/gin-gonic/gin"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Username: u.UserName}
}

func (h *Handler) setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessTokenCookie, token, maxAge, "/", "", h.production, true)
}

func (h *Handler) login(c *gin.Context, u *models.User) bool {
	token, err := h.users.IssueToken(u)
	if err != nil {
		h.errors.write(c, err)
		return false
	}
	h.setTokenCookie(c, token, int(h.users.TokenValidity().Seconds()))
	return true
}

// GoogleLogin handles GET /auth/google?session=<sessionId>. It binds a
// one-time nonce to the waiting socket session and sends the browser to
// the consent page with the nonce as state.
func (h *Handler) GoogleLogin(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		h.errors.abort(c, http.StatusBadRequest, "session is required")
		return
	}

	nonce, err := h.completions.MintNonce(c.Request.Context(), sessionID)
	if err != nil {
		h.errors.write(c, err)
		return
	}

	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(nonce))
}

// GoogleCallback handles GET /auth/google/redirect.
func (h *Handler) GoogleCallback(c *gin.Context) {
	ctx := c.Request.Context()

	code := c.Query("code")
	if code == "" {
		h.errors.abort(c, http.StatusBadRequest, "code is required")
		return
	}

	profile, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn(ctx, "oauth exchange failed", "error", err)
		h.errors.abort(c, http.StatusUnauthorized, common.ErrorUnauthorized.Error())
		return
	}

	u, err := h.users.FindOrCreate(ctx, profile)
	if err != nil {
		h.errors.write(c, err)
		return
	}
	if !h.login(c, u) {
		return
	}

	// The login itself has succeeded even if the waiting socket is gone.
	if state := c.Query("state"); state != "" {
		if !h.completions.Complete(ctx, state) {
			h.logger.Info(ctx, "login completed without a waiting socket", "user_id", u.ID)
		}
	}

	c.Redirect(http.StatusFound, h.clientURL+"/login-success")
}

type devLoginRequest struct {
	Email     string `json:"email" binding:"required"`
	SessionID string `json:"sessionId"`
}

// DevLogin handles POST /auth/dev-login. Only registered outside production.
func (h *Handler) DevLogin(c *gin.Context) {
	var req devLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.abort(c, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.users.FindOrCreateByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.errors.write(c, err)
		return
	}
	if !h.login(c, u) {
		return
	}
	if req.SessionID != "" {
		h.completions.NotifyCompleted(c.Request.Context(), req.SessionID)
	}

	c.JSON(http.StatusOK, userResponse(u))
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.setTokenCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	id, _ := IdentityFrom(c)
	c.JSON(http.StatusOK, gin.H{"id": id.UserID, "username": id.Username})
}
