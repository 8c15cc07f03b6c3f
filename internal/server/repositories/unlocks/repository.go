package unlocks

import "context"

// Repository is the durable set of purchased assets per vault.
type Repository interface {
	ListByVault(ctx context.Context, vaultID string) ([]string, error)
	// Add records assetIDs as purchased by attemptID and returns the ids that
	// were newly recorded. Ids already present are left untouched.
	Add(ctx context.Context, vaultID, attemptID string, assetIDs []string) ([]string, error)
}
