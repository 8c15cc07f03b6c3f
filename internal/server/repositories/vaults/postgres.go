// Package vaults provides the PostgreSQL-backed vault registry.
package vaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vaultgate/internal/common"
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

const selectVault = `SELECT v.id, v.owner_id, v.owner_name, v.visibility, v.client_name, v.client_phone,
		v.passkey_hash, v.passkey_salt, v.price_per_asset, v.status, v.created_at,
		COALESCE((SELECT string_agg(a.id, ',' ORDER BY a.position, a.id) FROM assets a WHERE a.vault_id = v.id), '')
	FROM vaults v`

type scanner interface {
	Scan(dest ...any) error
}

func scanVault(row scanner) (*models.Vault, error) {
	v := &models.Vault{}
	var assetIDs string
	err := row.Scan(&v.ID, &v.OwnerID, &v.OwnerName, &v.Visibility, &v.ClientName, &v.ClientPhone,
		&v.PasskeyHash, &v.PasskeySalt, &v.PricePerAsset, &v.Status, &v.CreatedAt, &assetIDs)
	if err != nil {
		return nil, err
	}
	if assetIDs != "" {
		v.AssetIDs = strings.Split(assetIDs, ",")
	}
	return v, nil
}

func (r *PostgresRepository) Create(ctx context.Context, vault *models.Vault) (*models.Vault, error) {
	if vault.ID == "" {
		vault.ID = uuid.NewString()
	}
	if vault.Status == "" {
		vault.Status = models.VaultStatusActive
	}

	query :=
		`INSERT INTO vaults (id, owner_id, owner_name, visibility, client_name, client_phone,
			passkey_hash, passkey_salt, price_per_asset, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		vault.ID, vault.OwnerID, vault.OwnerName, string(vault.Visibility), vault.ClientName, vault.ClientPhone,
		vault.PasskeyHash, vault.PasskeySalt, vault.PricePerAsset, string(vault.Status)).Scan(&vault.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return vault, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Vault, error) {
	query := selectVault + `
	WHERE v.id = $1`

	v, err := scanVault(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return v, nil
}

func (r *PostgresRepository) ListSearchable(ctx context.Context) ([]*models.Vault, error) {
	query := selectVault + `
	WHERE v.visibility = 'private' AND v.status = 'active'
	ORDER BY v.created_at, v.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Vault
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) LockForUpdate(ctx context.Context, id string) error {
	query := `SELECT id FROM vaults WHERE id = $1 FOR UPDATE`

	var got string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
