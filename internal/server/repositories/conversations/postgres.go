package conversations

import (
	"context"

	"github.com/dmitrijs2005/keybud/internal/dbx"
	"github.com/dmitrijs2005/keybud/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context) (*models.Conversation, error) {
	query :=
		`INSERT INTO conversations DEFAULT VALUES
		 RETURNING id, created_at
		 `

	c := &models.Conversation{}
	if err := r.db.QueryRowContext(ctx, query).Scan(&c.ID, &c.CreatedAt); err != nil {
		return nil, dbx.WrapError(err)
	}
	return c, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, conversationID, userID int64) error {
	query :=
		`INSERT INTO conversation_members (conversation_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, conversationID, userID); err != nil {
		return dbx.WrapError(err)
	}
	return nil
}

func (r *PostgresRepository) MemberIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	query :=
		`SELECT user_id FROM conversation_members
		 WHERE conversation_id = $1
		 ORDER BY user_id
		 `

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, dbx.WrapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return ids, nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM conversation_members
		   WHERE conversation_id = $1 AND user_id = $2
		 )
		 `

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, conversationID, userID).Scan(&ok); err != nil {
		return false, dbx.WrapError(err)
	}
	return ok, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	query :=
		`SELECT c.id, c.created_at FROM conversations c
		 JOIN conversation_members m ON m.conversation_id = c.id
		 WHERE m.user_id = $1
		 ORDER BY c.id DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	var out []*models.Conversation
	for rows.Next() {
		c := &models.Conversation{}
		if err := rows.Scan(&c.ID, &c.CreatedAt); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}
