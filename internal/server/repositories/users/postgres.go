package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/dbx"
	"github.com/dmitrijs2005/keybud/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (google_id, email, username)
         VALUES (NULLIF($1, ''), $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.GoogleID, user.Email, user.UserName).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return nil, dbx.WrapError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, COALESCE(google_id, ''), email, username, created_at FROM users
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, COALESCE(google_id, ''), email, username, created_at FROM users
		 WHERE email = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) FindByGoogleIDOrEmail(ctx context.Context, googleID, email string) (*models.User, error) {
	query :=
		`SELECT id, COALESCE(google_id, ''), email, username, created_at FROM users
		 WHERE google_id = $1 OR email = $2
		 ORDER BY id
		 LIMIT 1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, googleID, email))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.GoogleID, &user.Email, &user.UserName, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.WrapError(err)
	}

	return user, nil
}
