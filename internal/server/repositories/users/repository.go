// Package users is the persistence layer for accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/keybud/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByGoogleIDOrEmail returns the first user matching either value.
	FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (*models.User, error)
}
