package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrInvalidReference):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorWriter struct {
	logger     logging.Logger
	production bool
}

// write maps err to a status and aborts the request. Internal errors never
// expose their message; in production no message is exposed at all.
func (w errorWriter) write(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		w.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = http.StatusText(status)
	}
	w.abort(c, status, msg)
}

func (w errorWriter) abort(c *gin.Context, status int, msg string) {
	if w.production {
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorBody{
		StatusCode: status,
		Message:    msg,
		Error:      http.StatusText(status),
	})
}
