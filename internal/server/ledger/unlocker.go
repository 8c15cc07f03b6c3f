package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/dbx"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/repomanager"
)

// Unlocker owns the durable per-vault unlocked set and the assets held by
// in-flight purchase attempts. Writes for one vault are serialized in
// process by a mutex and across processes by a row lock on the vault.
type Unlocker struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger

	mu     sync.Mutex
	vaults map[string]*vaultState
}

// vaultState is guarded by its own mutex.
type vaultState struct {
	sync.Mutex
	held map[string]string // asset id -> attempt id
}

func NewUnlocker(db *sql.DB, repos repomanager.RepositoryManager, l logging.Logger) *Unlocker {
	return &Unlocker{
		db:     db,
		repos:  repos,
		logger: l.With("module", "unlocker"),
		vaults: make(map[string]*vaultState),
	}
}

func (u *Unlocker) vault(vaultID string) *vaultState {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.vaults[vaultID]
	if !ok {
		v = &vaultState{held: make(map[string]string)}
		u.vaults[vaultID] = v
	}
	return v
}

// Reserve holds ids for attemptID until Register or Release. It returns the
// ids that are already unlocked or held by another attempt; when any are
// returned nothing is reserved.
func (u *Unlocker) Reserve(ctx context.Context, vaultID, attemptID string, ids []string) ([]string, error) {
	v := u.vault(vaultID)
	v.Lock()
	defer v.Unlock()

	unlocked, err := u.repos.Unlocks(u.db).ListByVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	durable := NewSet(unlocked...)

	var taken []string
	for _, id := range ids {
		if holder, ok := v.held[id]; (ok && holder != attemptID) || durable.Has(id) {
			taken = append(taken, id)
		}
	}
	if len(taken) > 0 {
		return taken, nil
	}

	for _, id := range ids {
		v.held[id] = attemptID
	}
	return nil, nil
}

// Release drops every hold of attemptID. Releasing twice is harmless.
func (u *Unlocker) Release(vaultID, attemptID string) {
	v := u.vault(vaultID)
	v.Lock()
	defer v.Unlock()
	v.releaseLocked(attemptID)
}

func (v *vaultState) releaseLocked(attemptID string) {
	for id, holder := range v.held {
		if holder == attemptID {
			delete(v.held, id)
		}
	}
}

// Unlocked returns the vault's purchased asset ids.
func (u *Unlocker) Unlocked(ctx context.Context, vaultID string) ([]string, error) {
	return u.repos.Unlocks(u.db).ListByVault(ctx, vaultID)
}

// Register records every asset of a confirmed attempt as purchased and
// marks the attempt confirmed, all in one transaction. It returns the
// vault's full unlocked set afterwards and releases the attempt's holds.
func (u *Unlocker) Register(ctx context.Context, attempt *models.PurchaseAttempt, at time.Time) ([]string, error) {
	v := u.vault(attempt.VaultID)
	v.Lock()
	defer v.Unlock()

	var all []string
	err := dbx.WithTx(ctx, u.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := u.repos.Vaults(tx).LockForUpdate(ctx, attempt.VaultID); err != nil {
			return err
		}

		repo := u.repos.Unlocks(tx)
		before, err := repo.ListByVault(ctx, attempt.VaultID)
		if err != nil {
			return err
		}

		added, err := repo.Add(ctx, attempt.VaultID, attempt.ID, attempt.AssetIDs)
		if err != nil {
			return err
		}
		if len(added) != len(attempt.AssetIDs) {
			// only reachable when another process bypassed this one's holds
			u.logger.Error(ctx, "purchase overlaps already unlocked assets",
				"alert", true, "attempt_id", attempt.ID, "vault_id", attempt.VaultID,
				"requested", len(attempt.AssetIDs), "added", len(added))
		}

		if err := u.repos.Purchases(tx).Resolve(ctx, attempt.ID, attempt.RequestID, models.PurchaseStatusConfirmed, at); err != nil {
			return fmt.Errorf("resolve attempt: %w", err)
		}

		all = append(before, added...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	v.releaseLocked(attempt.ID)

	if missing := missingFrom(all, attempt.AssetIDs); len(missing) > 0 {
		u.logger.Error(ctx, "unlock invariant violated",
			"alert", true, "attempt_id", attempt.ID, "vault_id", attempt.VaultID, "missing", missing)
	}
	return all, nil
}

func missingFrom(have, want []string) []string {
	set := NewSet(have...)
	var missing []string
	for _, id := range want {
		if !set.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}
