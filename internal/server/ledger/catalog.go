// Package ledger tracks what a session has selected and what the vault has
// already sold, and turns a selection into a priced purchase attempt.
package ledger

import (
	"sort"

	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/pricing"
)

// Catalog is the priced, read-only asset list of one vault.
type Catalog struct {
	VaultID       string
	PricePerAsset int64
	order         []string
	assets        map[string]*models.Asset
}

// NewCatalog indexes assets of vault in their display order.
func NewCatalog(vault *models.Vault, assets []*models.Asset) *Catalog {
	c := &Catalog{
		VaultID:       vault.ID,
		PricePerAsset: vault.PricePerAsset,
		assets:        make(map[string]*models.Asset, len(assets)),
	}
	sorted := append([]*models.Asset(nil), assets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	for _, a := range sorted {
		if a.VaultID != vault.ID {
			continue
		}
		c.order = append(c.order, a.ID)
		c.assets[a.ID] = a
	}
	return c
}

// Asset returns the asset by id, or nil if it is not in this vault.
func (c *Catalog) Asset(id string) *models.Asset {
	return c.assets[id]
}

// Assets returns assets in display order.
func (c *Catalog) Assets() []*models.Asset {
	out := make([]*models.Asset, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.assets[id])
	}
	return out
}

// Price is the displayed price of an asset in this catalog.
func (c *Catalog) Price(a *models.Asset, schedule pricing.FeeSchedule) int64 {
	return pricing.Price(a, c.PricePerAsset, schedule)
}
