package assets

import (
	"context"

	"github.com/dmitrijs2005/vaultgate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, asset *models.Asset) (*models.Asset, error)
	// ListByVault returns the vault's assets in display order.
	ListByVault(ctx context.Context, vaultID string) ([]*models.Asset, error)
}
