// Package unlocks provides PostgreSQL-backed storage of purchased assets.
package unlocks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultgate/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListByVault(ctx context.Context, vaultID string) ([]string, error) {
	query := `SELECT asset_id FROM unlocks WHERE vault_id = $1 ORDER BY asset_id`

	rows, err := r.db.QueryContext(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Add(ctx context.Context, vaultID, attemptID string, assetIDs []string) ([]string, error) {
	query :=
		`INSERT INTO unlocks (vault_id, asset_id, attempt_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (vault_id, asset_id) DO NOTHING
		 RETURNING asset_id
		 `

	var added []string
	for _, assetID := range assetIDs {
		var id string
		err := r.db.QueryRowContext(ctx, query, vaultID, assetID, attemptID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		added = append(added, id)
	}
	return added, nil
}
