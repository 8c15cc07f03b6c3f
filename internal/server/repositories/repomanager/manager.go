package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vaultgate/internal/dbx"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/assets"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/purchases"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/unlocks"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/vaults"
)

// RepositoryManager vends repositories bound to a DBTX so the same code
// runs inside or outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Vaults(db dbx.DBTX) vaults.Repository
	Assets(db dbx.DBTX) assets.Repository
	Unlocks(db dbx.DBTX) unlocks.Repository
	Purchases(db dbx.DBTX) purchases.Repository
}
