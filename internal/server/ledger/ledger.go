package ledger

import (
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/pricing"
	"github.com/google/uuid"
)

// Change describes what a toggle did.
type Change string

const (
	Added    Change = "added"
	Removed  Change = "removed"
	NoEffect Change = "no_effect"
)

// Ledger applies the selection rules with a fixed fee schedule.
type Ledger struct {
	schedule pricing.FeeSchedule
	clock    func() time.Time
}

func New(schedule pricing.FeeSchedule, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{schedule: schedule, clock: clock}
}

func (l *Ledger) Schedule() pricing.FeeSchedule { return l.schedule }

// Toggle adds assetID if absent, removes it if present. An unlocked asset
// is never added: the call reports NoEffect instead of failing.
func (l *Ledger) Toggle(sel *Selection, unlocked Set, catalog *Catalog, assetID string) (Change, error) {
	if catalog.Asset(assetID) == nil {
		return NoEffect, common.ErrAssetNotInVault
	}
	if unlocked.Has(assetID) {
		return NoEffect, nil
	}
	if sel.Has(assetID) {
		sel.Remove(assetID)
		return Removed, nil
	}
	sel.add(assetID)
	return Added, nil
}

// Total sums displayed prices over the selection.
func (l *Ledger) Total(sel *Selection, catalog *Catalog) int64 {
	return l.Sum(sel.ids, catalog)
}

// Sum adds up displayed prices of ids; unknown ids count as zero.
func (l *Ledger) Sum(ids []string, catalog *Catalog) int64 {
	var total int64
	for _, id := range ids {
		if a := catalog.Asset(id); a != nil {
			total += catalog.Price(a, l.schedule)
		}
	}
	return total
}

// Commit snapshots the selection into a pending PurchaseAttempt. The
// selection itself is left as is until the attempt resolves.
func (l *Ledger) Commit(sel *Selection, catalog *Catalog, sessionID, payerHandle string) (*models.PurchaseAttempt, error) {
	if sel.Len() == 0 {
		return nil, common.ErrEmptySelection
	}
	return &models.PurchaseAttempt{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		VaultID:     catalog.VaultID,
		AssetIDs:    sel.IDs(),
		Amount:      l.Total(sel, catalog),
		PayerHandle: payerHandle,
		Status:      models.PurchaseStatusPending,
		CreatedAt:   l.clock(),
	}, nil
}

// MarkPurchased moves a confirmed attempt's assets from the selection into
// the unlocked set.
func MarkPurchased(sel *Selection, unlocked Set, attempt *models.PurchaseAttempt) {
	unlocked.Add(attempt.AssetIDs...)
	sel.Remove(attempt.AssetIDs...)
}
