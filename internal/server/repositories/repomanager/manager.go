// Package repomanager vends repositories bound to a dbx.DBTX, so callers can
// use the same repositories on a plain connection or inside a transaction,
// and runs schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/harvesthub/internal/dbx"
	"github.com/dmitrijs2005/harvesthub/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/harvesthub/internal/server/repositories/refreshtokens"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
