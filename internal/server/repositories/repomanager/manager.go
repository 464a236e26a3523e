// Package repomanager vends repositories bound to a database handle so a
// service can run several of them inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/recordapi/internal/dbx"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/datarecords"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	DataRecords(db dbx.DBTX) datarecords.Repository
}
