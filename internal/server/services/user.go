// Package services contains server-side business logic. This file implements
// UserService, which resolves Google and dev logins to local accounts and
// issues the JWT access tokens carried in the access_token cookie.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/server/auth"
	"github.com/dmitrijs2005/keybud/internal/server/config"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/dmitrijs2005/keybud/internal/server/oauth"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// UserService provides authentication-related operations:
// - FindOrCreate: map a Google profile to an account, creating it on first login
// - FindOrCreateByEmail: the same for dev logins
// - IssueToken / Authenticate: mint and verify access tokens
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService from configuration.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// FindOrCreate returns the account matching the profile's Google id or
// email, creating one named user<googleId> when none exists.
func (s *UserService) FindOrCreate(ctx context.Context, profile *oauth.Profile) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByGoogleIDOrEmail(ctx, profile.ID, profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	user, err = repo.Create(ctx, &models.User{
		GoogleID: profile.ID,
		Email:    profile.Email,
		UserName: "user" + profile.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// FindOrCreateByEmail backs the non-production dev login.
func (s *UserService) FindOrCreateByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrorValidation)
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	user, err = repo.Create(ctx, &models.User{
		Email:    email,
		UserName: "dev-" + uuid.NewString()[:8],
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// IssueToken mints an access token for user.
func (s *UserService) IssueToken(user *models.User) (string, error) {
	token, err := auth.GenerateToken(auth.Identity{UserID: user.ID, Username: user.UserName},
		s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// TokenValidity is the lifetime of issued access tokens.
func (s *UserService) TokenValidity() time.Duration {
	return s.accessTokenValidityDuration
}

// Authenticate verifies an access token. Any failure is ErrorUnauthorized.
func (s *UserService) Authenticate(token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, common.ErrorUnauthorized
	}
	id, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return id, nil
}
