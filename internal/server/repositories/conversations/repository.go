// Package conversations is the persistence layer for conversations and
// their membership.
package conversations

import (
	"context"

	"github.com/dmitrijs2005/keybud/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context) (*models.Conversation, error)
	AddMember(ctx context.Context, conversationID, userID int64) error
	// MemberIDs lists members ordered by user id.
	MemberIDs(ctx context.Context, conversationID int64) ([]int64, error)
	IsMember(ctx context.Context, conversationID, userID int64) (bool, error)
	// ListByUser returns the user's conversations, most recent first.
	ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error)
}
