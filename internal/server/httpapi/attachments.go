package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
)

type resolveURLsRequest struct {
	Keys []string `json:"keys" binding:"required"`
}

// ResolveURLsResponse lists signed URLs by object key; keys that could not
// be signed are listed in Failed.
type ResolveURLsResponse struct {
	URLs   map[string]string `json:"urls"`
	Failed []string          `json:"failed,omitempty"`
}

// ResolveAttachmentURLs handles POST /attachments/urls.
func (h *Handler) ResolveAttachmentURLs(c *gin.Context) {
	id, _ := IdentityFrom(c)
	ctx := c.Request.Context()

	var req resolveURLsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.abort(c, http.StatusBadRequest, err.Error())
		return
	}

	urls, err := h.attachments.ResolveURLs(ctx, req.Keys, id.UserID)
	resp := ResolveURLsResponse{URLs: urls}
	if err != nil {
		seen := map[string]bool{}
		for _, k := range req.Keys {
			if _, ok := urls[k]; !ok && k != "" && !seen[k] {
				seen[k] = true
				resp.Failed = append(resp.Failed, k)
			}
		}
		h.logger.Warn(ctx, "attachment signing failed", "failed", len(multierr.Errors(err)), "error", err)
		if len(urls) == 0 {
			h.errors.abort(c, http.StatusBadGateway, "attachment urls could not be signed")
			return
		}
	}
	if resp.URLs == nil {
		resp.URLs = map[string]string{}
	}
	c.JSON(http.StatusOK, resp)
}
