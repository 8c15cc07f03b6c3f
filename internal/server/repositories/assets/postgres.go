// Package assets provides PostgreSQL-backed storage for vault catalogs.
package assets

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultgate/internal/dbx"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, asset *models.Asset) (*models.Asset, error) {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO assets (id, vault_id, title, base_price, category, license, storage_key, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 `

	_, err := r.db.ExecContext(ctx, query,
		asset.ID, asset.VaultID, asset.Title, asset.BasePrice, asset.Category, asset.License, asset.StorageKey, asset.Position)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return asset, nil
}

func (r *PostgresRepository) ListByVault(ctx context.Context, vaultID string) ([]*models.Asset, error) {
	query := `SELECT id, vault_id, title, base_price, category, license, storage_key, position FROM assets
		WHERE vault_id = $1
		ORDER BY position, id`

	rows, err := r.db.QueryContext(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.VaultID, &a.Title, &a.BasePrice, &a.Category, &a.License, &a.StorageKey, &a.Position); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
