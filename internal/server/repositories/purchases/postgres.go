// Package purchases provides PostgreSQL-backed storage of purchase attempts.
package purchases

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/dbx"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, attempt *models.PurchaseAttempt) error {
	ids, err := json.Marshal(attempt.AssetIDs)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO purchase_attempts (id, session_id, vault_id, asset_ids, amount, request_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 `

	_, err = r.db.ExecContext(ctx, query,
		attempt.ID, attempt.SessionID, attempt.VaultID, string(ids), attempt.Amount,
		attempt.RequestID, string(attempt.Status), attempt.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Resolve(ctx context.Context, id, requestID string, status models.PurchaseStatus, at time.Time) error {
	query :=
		`UPDATE purchase_attempts SET status = $2, request_id = $3, resolved_at = $4
		 WHERE id = $1 AND status = 'pending'
		 `

	res, err := r.db.ExecContext(ctx, query, id, string(status), requestID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.PurchaseAttempt, error) {
	query := `SELECT id, session_id, vault_id, asset_ids, amount, request_id, status, created_at, resolved_at
		FROM purchase_attempts WHERE id = $1`

	var (
		p        models.PurchaseAttempt
		ids      []byte
		resolved sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.SessionID, &p.VaultID, &ids, &p.Amount,
		&p.RequestID, &p.Status, &p.CreatedAt, &resolved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(ids, &p.AssetIDs); err != nil {
		return nil, fmt.Errorf("asset ids: %w", err)
	}
	if resolved.Valid {
		p.ResolvedAt = &resolved.Time
	}
	return &p, nil
}
