package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/keybud/internal/dbx"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/messages"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB handle or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	Messages(db dbx.DBTX) messages.Repository
}
