package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/transmute/internal/dbx"
	"github.com/dmitrijs2005/transmute/internal/server/repositories/files"
	"github.com/dmitrijs2005/transmute/internal/server/repositories/relations"
)

// RepositoryManager vends repositories bound to a DB or transaction for one
// SQL dialect and applies that dialect's migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Relations(db dbx.DBTX) relations.Repository
}
