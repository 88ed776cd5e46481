package httpapi

import (
	"net/http"
	"testing"

	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMessage_StoresThenFansOut(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(t, http.MethodPost, "/message", 1, map[string]any{"conversationId": "5", "content": "hi"})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[models.Message](t, w)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, int64(1), msg.SenderID)

	stored, ok := env.repo.StoredMessage(msg.ID)
	require.True(t, ok)
	assert.NotEqual(t, "hi", stored.Content)

	require.Len(t, env.fanout.calls, 1)
	assert.Equal(t, []int64{1, 2}, env.fanout.calls[0].members)
	assert.Equal(t, "hi", env.fanout.calls[0].msg.Content)
}

func TestCreateMessage_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		userID   int64
		body     any
		wantCode int
	}{
		{"not a member", 3, map[string]any{"conversationId": "5", "content": "hi"}, http.StatusNotFound},
		{"unknown conversation", 1, map[string]any{"conversationId": "77", "content": "hi"}, http.StatusNotFound},
		{"empty content", 1, map[string]any{"conversationId": "5", "content": "  "}, http.StatusBadRequest},
		{"missing conversation", 1, map[string]any{"content": "hi"}, http.StatusBadRequest},
		{"non numeric id", 1, map[string]any{"conversationId": "x", "content": "hi"}, http.StatusBadRequest},
		{"anonymous", 0, map[string]any{"conversationId": "5", "content": "hi"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})

			w := env.do(t, http.MethodPost, "/message", tt.userID, tt.body)

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Empty(t, env.fanout.calls)
		})
	}
}
