// Package repotest provides an in-memory RepositoryManager for service
// tests. It mimics the Postgres repositories closely enough for ordering,
// keyset paging and foreign-key behavior.
package repotest

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/dbx"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/messages"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/users"
)

// Store is the shared state behind every repository handed out.
type Store struct {
	mu            sync.Mutex
	nextID        map[string]int64
	users         map[int64]*models.User
	conversations map[int64]*models.Conversation
	members       map[int64]map[int64]bool
	messages      map[int64]*models.Message

	// Err, when set, is returned by every repository call.
	Err error
}

func New() *Store {
	return &Store{
		nextID:        map[string]int64{},
		users:         map[int64]*models.User{},
		conversations: map[int64]*models.Conversation{},
		members:       map[int64]map[int64]bool{},
		messages:      map[int64]*models.Message{},
	}
}

func (s *Store) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// AddUser inserts a user with the given id.
func (s *Store) AddUser(id int64, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &models.User{ID: id, Email: email, UserName: fmt.Sprintf("user%d", id)}
	if s.nextID["users"] < id {
		s.nextID["users"] = id
	}
}

// AddConversation inserts a conversation with the given id and members.
func (s *Store) AddConversation(id int64, memberIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = &models.Conversation{ID: id}
	s.members[id] = map[int64]bool{}
	for _, m := range memberIDs {
		s.members[id][m] = true
	}
	if s.nextID["conversations"] < id {
		s.nextID["conversations"] = id
	}
}

// DeleteMessage removes a message, as an external cleanup would.
func (s *Store) DeleteMessage(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
}

// StoredMessage returns the row as persisted.
func (s *Store) StoredMessage(id int64) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return models.Message{}, false
	}
	return *m, true
}

// Manager implements repomanager.RepositoryManager over a Store.
type Manager struct {
	Store *Store
}

func NewManager() *Manager { return &Manager{Store: New()} }

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *Manager) Users(dbx.DBTX) users.Repository { return (*userRepo)(m.Store) }

func (m *Manager) Conversations(dbx.DBTX) conversations.Repository {
	return (*conversationRepo)(m.Store)
}

func (m *Manager) Messages(dbx.DBTX) messages.Repository { return (*messageRepo)(m.Store) }

type userRepo Store

func (r *userRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, existing := range s.users {
		if existing.Email == u.Email || existing.UserName == u.UserName {
			return nil, fmt.Errorf("db error: duplicate user")
		}
	}
	u.ID = s.id("users")
	u.CreatedAt = time.Now()
	cp := *u
	s.users[u.ID] = &cp
	return u, nil
}

func (r *userRepo) find(match func(*models.User) bool) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if match(s.users[id]) {
			cp := *s.users[id]
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *userRepo) FindByGoogleIDOrEmail(_ context.Context, googleID, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return (googleID != "" && u.GoogleID == googleID) || u.Email == email
	})
}

type conversationRepo Store

func (r *conversationRepo) Create(context.Context) (*models.Conversation, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	c := &models.Conversation{ID: s.id("conversations"), CreatedAt: time.Now()}
	s.conversations[c.ID] = c
	s.members[c.ID] = map[int64]bool{}
	cp := *c
	return &cp, nil
}

func (r *conversationRepo) AddMember(_ context.Context, conversationID, userID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.conversations[conversationID]; !ok {
		return fmt.Errorf("db error: %w", common.ErrInvalidReference)
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("db error: %w", common.ErrInvalidReference)
	}
	s.members[conversationID][userID] = true
	return nil
}

func (r *conversationRepo) MemberIDs(_ context.Context, conversationID int64) ([]int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var ids []int64
	for id := range s.members[conversationID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *conversationRepo) IsMember(_ context.Context, conversationID, userID int64) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.members[conversationID][userID], nil
}

func (r *conversationRepo) ListByUser(_ context.Context, userID int64) ([]*models.Conversation, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*models.Conversation
	for id, members := range s.members {
		if members[userID] {
			cp := *s.conversations[id]
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type messageRepo Store

func (r *messageRepo) Create(_ context.Context, m *models.Message) (*models.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return nil, fmt.Errorf("db error: %w", common.ErrInvalidReference)
	}
	m.ID = s.id("messages")
	m.CreatedAt = time.Now()
	cp := *m
	s.messages[m.ID] = &cp
	return m, nil
}

func (r *messageRepo) ListPage(_ context.Context, conversationID, beforeID int64, limit int) ([]*models.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*models.Message
	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if beforeID > 0 && m.ID >= beforeID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
