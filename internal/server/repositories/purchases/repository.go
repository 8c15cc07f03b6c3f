package purchases

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/server/models"
)

// Repository is the audit trail of purchase attempts.
type Repository interface {
	Create(ctx context.Context, attempt *models.PurchaseAttempt) error
	// Resolve stores the terminal status of a pending attempt. It returns
	// common.ErrNotFound if the attempt is unknown or already resolved.
	Resolve(ctx context.Context, id, requestID string, status models.PurchaseStatus, at time.Time) error
	GetByID(ctx context.Context, id string) (*models.PurchaseAttempt, error)
}
