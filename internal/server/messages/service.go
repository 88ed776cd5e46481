// Package messages owns message creation and cursor-paginated history.
// Content is encrypted before it reaches the repository and decrypted on
// the way out; callers only ever see plaintext.
package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/cryptox"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/kv"
	"github.com/dmitrijs2005/keybud/internal/server/metrics"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/repomanager"
)

// DefaultPageSize is used when the configured page size is not positive.
const DefaultPageSize = 20

// ErrConversationNotFound is returned by Create for an unknown conversation.
var ErrConversationNotFound = fmt.Errorf("conversation not found: %w", common.ErrInvalidReference)

// Service creates and pages messages of conversations.
type Service struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      *cryptox.Cipher
	cursors     kv.Store
	logger      logging.Logger
	pageSize    int
	cursorTTL   time.Duration
}

func NewService(db *sql.DB, rm repomanager.RepositoryManager, cipher *cryptox.Cipher, cursors kv.Store,
	logger logging.Logger, pageSize int, cursorTTL time.Duration) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		db:          db,
		repomanager: rm,
		cipher:      cipher,
		cursors:     cursors,
		logger:      logger.With("module", "messages"),
		pageSize:    pageSize,
		cursorTTL:   cursorTTL,
	}
}

// PageSize returns the number of messages per page.
func (s *Service) PageSize() int { return s.pageSize }

// Create encrypts plaintext, stores the message and returns it with the
// original plaintext as Content, ready to be pushed to live recipients.
func (s *Service) Create(ctx context.Context, conversationID, senderID int64, plaintext string) (*models.Message, error) {
	envelope, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	repo := s.repomanager.Messages(s.db)
	stored, err := repo.Create(ctx, &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        envelope,
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidReference) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("error creating message: %w", err)
	}

	out := *stored
	out.Content = plaintext
	return &out, nil
}

func cursorKey(userID, conversationID int64) string {
	return fmt.Sprintf("message:cursor:%d-%d", userID, conversationID)
}

// ListPage returns the next page of the conversation for userID, newest
// first. Each call continues strictly below the oldest message the user
// was given last time; reset starts over from the newest message. An empty
// page leaves the cursor where it was.
//
// A message that cannot be decrypted is returned with empty Content and
// Undecryptable set instead of failing the page.
func (s *Service) ListPage(ctx context.Context, conversationID, userID int64, reset bool) ([]*models.Message, error) {
	key := cursorKey(userID, conversationID)

	var before int64
	if reset {
		if _, err := s.cursors.Del(ctx, key); err != nil {
			s.logger.Warn(ctx, "cursor reset failed", "key", key, "error", err)
		}
	} else {
		c, err := s.loadCursor(ctx, key)
		if err != nil {
			return nil, err
		}
		before = c
	}

	repo := s.repomanager.Messages(s.db)
	page, err := repo.ListPage(ctx, conversationID, before, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}

	if len(page) > 0 {
		oldest := page[len(page)-1].ID
		if err := s.cursors.Set(ctx, key, strconv.FormatInt(oldest, 10), s.cursorTTL); err != nil {
			// The page is still valid; the next call repeats it.
			s.logger.Warn(ctx, "cursor save failed", "key", key, "error", err)
		}
	}

	for _, m := range page {
		s.decryptInPlace(ctx, m)
	}
	return page, nil
}

func (s *Service) loadCursor(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.cursors.Get(ctx, key)
	if err != nil {
		// Guessing a cursor would silently repeat or skip history.
		return 0, fmt.Errorf("load cursor: %w: %w", common.ErrorInternal, err)
	}
	if !ok {
		return 0, nil
	}
	c, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || c <= 0 {
		s.logger.Warn(ctx, "discarding invalid cursor", "key", key, "value", raw)
		return 0, nil
	}
	return c, nil
}

func (s *Service) decryptInPlace(ctx context.Context, m *models.Message) {
	plaintext, err := s.cipher.Decrypt(m.Content)
	if err != nil {
		reason := "decryption failed"
		if errors.Is(err, cryptox.ErrMalformedCiphertext) {
			reason = "malformed ciphertext"
		}
		s.logger.Error(ctx, "masking undecryptable message",
			"message_id", m.ID, "conversation_id", m.ConversationID, "reason", reason, "error", err)
		metrics.RecordUndecryptableMessage()
		m.Content = ""
		m.Undecryptable = true
		return
	}
	m.Content = plaintext
}
