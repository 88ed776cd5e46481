package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/keybud/internal/server/realtime"
	"github.com/gin-gonic/gin"
)

type createMessageRequest struct {
	// ConversationID is sent as a numeric string by the browser client.
	ConversationID realtime.FlexibleID `json:"conversationId"`
	Content        string              `json:"content"`
}

// CreateMessage handles POST /message: store, then push to online members.
func (h *Handler) CreateMessage(c *gin.Context) {
	id, _ := IdentityFrom(c)
	ctx := c.Request.Context()

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.abort(c, http.StatusBadRequest, err.Error())
		return
	}
	convID := int64(req.ConversationID)
	if convID <= 0 {
		h.errors.abort(c, http.StatusBadRequest, "conversationId is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		h.errors.abort(c, http.StatusBadRequest, "content is required")
		return
	}
	if !h.requireMember(c, convID, id.UserID) {
		return
	}

	msg, err := h.messages.Create(ctx, convID, id.UserID, req.Content)
	if err != nil {
		h.errors.write(c, err)
		return
	}

	members, err := h.conversations.Members(ctx, convID)
	if err != nil {
		// Stored already; only the live push is lost.
		h.logger.Warn(ctx, "loading members for fan-out failed", "conversation_id", convID, "error", err)
	} else {
		h.fanout.NotifyNewMessage(ctx, msg, members)
	}

	c.JSON(http.StatusCreated, msg)
}
