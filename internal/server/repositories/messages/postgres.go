package messages

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

func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	query :=
		`INSERT INTO messages (conversation_id, sender_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, m.ConversationID, m.SenderID, m.Content).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return m, nil
}

func (r *PostgresRepository) ListPage(ctx context.Context, conversationID, beforeID int64, limit int) ([]*models.Message, error) {
	// $2 = 0 means "no cursor"; ids start at 1. The cast keeps postgres from
	// typing the parameter as int4.
	query :=
		`SELECT id, conversation_id, sender_id, content, created_at FROM messages
		 WHERE conversation_id = $1 AND ($2::bigint = 0 OR id < $2::bigint)
		 ORDER BY id DESC
		 LIMIT $3
		 `

	rows, err := r.db.QueryContext(ctx, query, conversationID, beforeID, limit)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()

	out := make([]*models.Message, 0, limit)
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, dbx.WrapError(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}
	return out, nil
}
