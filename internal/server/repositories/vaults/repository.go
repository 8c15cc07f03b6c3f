package vaults

import (
	"context"

	"github.com/dmitrijs2005/vaultgate/internal/server/models"
)

// Repository is the vault registry. There is intentionally no update of
// passkey material.
type Repository interface {
	Create(ctx context.Context, vault *models.Vault) (*models.Vault, error)
	GetByID(ctx context.Context, id string) (*models.Vault, error)
	// ListSearchable returns active private vaults ordered by creation
	// time, then id.
	ListSearchable(ctx context.Context) ([]*models.Vault, error)
	// LockForUpdate takes a row lock on the vault for the rest of the
	// surrounding transaction.
	LockForUpdate(ctx context.Context, id string) error
}
