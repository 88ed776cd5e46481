package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/gin-gonic/gin"
)

type createConversationRequest struct {
	MemberIDs []int64 `json:"memberIds" binding:"required"`
}

// ConversationPage is a conversation with one page of its history.
type ConversationPage struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []*models.Message    `json:"messages"`
}

func conversationID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid conversation id", common.ErrorValidation)
	}
	return id, nil
}

func resetParam(c *gin.Context) bool {
	reset, _ := strconv.ParseBool(c.Query("reset"))
	return reset
}

// CreateConversation handles POST /conversation.
func (h *Handler) CreateConversation(c *gin.Context) {
	id, _ := IdentityFrom(c)

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.abort(c, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversations.Create(c.Request.Context(), id.UserID, req.MemberIDs)
	if err != nil {
		h.errors.write(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// ListConversations handles GET /conversation.
func (h *Handler) ListConversations(c *gin.Context) {
	id, _ := IdentityFrom(c)

	list, err := h.conversations.ListByUser(c.Request.Context(), id.UserID)
	if err != nil {
		h.errors.write(c, err)
		return
	}
	if list == nil {
		list = []*models.Conversation{}
	}
	c.JSON(http.StatusOK, list)
}

// GetConversation handles GET /conversation/:id?reset=true|false and
// returns the conversation together with the caller's next history page.
func (h *Handler) GetConversation(c *gin.Context) {
	id, _ := IdentityFrom(c)
	ctx := c.Request.Context()

	convID, err := conversationID(c)
	if err != nil {
		h.errors.write(c, err)
		return
	}

	conv, err := h.conversations.Get(ctx, convID, id.UserID)
	if err != nil {
		h.errors.write(c, err)
		return
	}

	msgs, err := h.messages.ListPage(ctx, convID, id.UserID, resetParam(c))
	if err != nil {
		h.errors.write(c, err)
		return
	}
	c.JSON(http.StatusOK, ConversationPage{Conversation: conv, Messages: nonNil(msgs)})
}

// ListMessages handles GET /conversation/:id/messages?reset=true|false.
func (h *Handler) ListMessages(c *gin.Context) {
	id, _ := IdentityFrom(c)
	ctx := c.Request.Context()

	convID, err := conversationID(c)
	if err != nil {
		h.errors.write(c, err)
		return
	}
	if !h.requireMember(c, convID, id.UserID) {
		return
	}

	msgs, err := h.messages.ListPage(ctx, convID, id.UserID, resetParam(c))
	if err != nil {
		h.errors.write(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(msgs)})
}

// requireMember answers 404 for non-members so existence is not disclosed.
func (h *Handler) requireMember(c *gin.Context, convID, userID int64) bool {
	ok, err := h.conversations.IsMember(c.Request.Context(), convID, userID)
	if err != nil {
		h.errors.write(c, err)
		return false
	}
	if !ok {
		h.errors.write(c, common.ErrorNotFound)
		return false
	}
	return true
}

func nonNil(msgs []*models.Message) []*models.Message {
	if msgs == nil {
		return []*models.Message{}
	}
	return msgs
}
