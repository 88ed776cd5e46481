package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/dbx"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/repomanager"
)

// MinConversationMembers is the smallest conversation that can be created.
const MinConversationMembers = 2

// ErrInvalidMember is returned when a member id does not name an existing user.
var ErrInvalidMember = fmt.Errorf("invalid memberId found: %w", common.ErrInvalidReference)

// ConversationService creates conversations and answers membership questions.
type ConversationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewConversationService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *ConversationService {
	return &ConversationService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "conversations"),
	}
}

func validateMembers(callerID int64, memberIDs []int64) error {
	if len(memberIDs) < MinConversationMembers {
		return fmt.Errorf("%w: at least %d members are required", common.ErrorValidation, MinConversationMembers)
	}
	seen := make(map[int64]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if id <= 0 {
			return fmt.Errorf("%w: member ids must be positive", common.ErrorValidation)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate member id %d", common.ErrorValidation, id)
		}
		seen[id] = struct{}{}
	}
	if _, ok := seen[callerID]; !ok {
		return fmt.Errorf("%w: caller must be a member", common.ErrorForbidden)
	}
	return nil
}

// Create inserts the conversation and all of its members in one
// transaction. The caller must be one of memberIDs.
func (s *ConversationService) Create(ctx context.Context, callerID int64, memberIDs []int64) (*models.Conversation, error) {
	if err := validateMembers(callerID, memberIDs); err != nil {
		return nil, err
	}

	var conv *models.Conversation
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Conversations(tx)

		c, err := repo.Create(ctx)
		if err != nil {
			return fmt.Errorf("error creating conversation: %w", err)
		}
		for _, id := range memberIDs {
			if err := repo.AddMember(ctx, c.ID, id); err != nil {
				if errors.Is(err, common.ErrInvalidReference) {
					return ErrInvalidMember
				}
				return fmt.Errorf("error adding member: %w", err)
			}
		}
		c.MemberIDs = append([]int64(nil), memberIDs...)
		conv = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "conversation created", "conversation_id", conv.ID, "members", len(memberIDs))
	return conv, nil
}

// Get returns the conversation with its members. Non-members get
// ErrorNotFound so that existence is not disclosed.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID int64) (*models.Conversation, error) {
	ok, err := s.IsMember(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorNotFound
	}

	members, err := s.Members(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &models.Conversation{ID: conversationID, MemberIDs: members}, nil
}

// ListByUser returns the user's conversations with their members.
func (s *ConversationService) ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	repo := s.repomanager.Conversations(s.db)

	list, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	for _, c := range list {
		if c.MemberIDs, err = repo.MemberIDs(ctx, c.ID); err != nil {
			return nil, fmt.Errorf("error loading members: %w", err)
		}
	}
	return list, nil
}

// Members returns the member user ids of a conversation.
func (s *ConversationService) Members(ctx context.Context, conversationID int64) ([]int64, error) {
	ids, err := s.repomanager.Conversations(s.db).MemberIDs(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error loading members: %w", err)
	}
	return ids, nil
}

func (s *ConversationService) IsMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	ok, err := s.repomanager.Conversations(s.db).IsMember(ctx, conversationID, userID)
	if err != nil {
		return false, fmt.Errorf("error checking membership: %w", err)
	}
	return ok, nil
}
