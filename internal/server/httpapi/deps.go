package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/keybud/internal/server/auth"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/dmitrijs2005/keybud/internal/server/oauth"
)

// Users resolves logins to accounts and issues access tokens.
type Users interface {
	FindOrCreate(ctx context.Context, profile *oauth.Profile) (*models.User, error)
	FindOrCreateByEmail(ctx context.Context, email string) (*models.User, error)
	IssueToken(user *models.User) (string, error)
	TokenValidity() time.Duration
	Authenticate(token string) (auth.Identity, error)
}

// LoginProvider is the external OAuth provider.
type LoginProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.Profile, error)
}

// Completions correlates a finished login with the waiting socket.
type Completions interface {
	MintNonce(ctx context.Context, sessionID string) (string, error)
	Complete(ctx context.Context, nonce string) bool
	NotifyCompleted(ctx context.Context, sessionID string) bool
}

type Conversations interface {
	Create(ctx context.Context, callerID int64, memberIDs []int64) (*models.Conversation, error)
	Get(ctx context.Context, conversationID, userID int64) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error)
	IsMember(ctx context.Context, conversationID, userID int64) (bool, error)
	Members(ctx context.Context, conversationID int64) ([]int64, error)
}

type Messages interface {
	Create(ctx context.Context, conversationID, senderID int64, plaintext string) (*models.Message, error)
	ListPage(ctx context.Context, conversationID, userID int64, reset bool) ([]*models.Message, error)
}

// Fanout pushes a stored message to online members.
type Fanout interface {
	NotifyNewMessage(ctx context.Context, msg *models.Message, memberIDs []int64)
}

// URLResolver maps attachment object keys to signed URLs.
type URLResolver interface {
	ResolveURLs(ctx context.Context, objectKeys []string, userID int64) (map[string]string, error)
}
