// Package messages is the persistence layer for chat messages. It stores
// and returns content exactly as given; encryption happens above it.
package messages

import (
	"context"

	"github.com/dmitrijs2005/keybud/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Message) (*models.Message, error)
	// ListPage returns up to limit messages of the conversation, newest
	// first. beforeID > 0 restricts the page to ids strictly below it.
	ListPage(ctx context.Context, conversationID, beforeID int64, limit int) ([]*models.Message, error)
}
