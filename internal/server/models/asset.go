package models

// Asset is a single licensable media item. It belongs to exactly one vault.
type Asset struct {
	ID         string `json:"id"`
	VaultID    string `json:"vault_id"`
	Title      string `json:"title"`
	BasePrice  int64  `json:"base_price"`
	Category   string `json:"category"`
	License    string `json:"license"`
	StorageKey string `json:"-"`
	Position   int    `json:"position"`
}

// EffectiveBase returns the asset's own price, or the vault-wide unit price
// when the asset carries no override.
func (a *Asset) EffectiveBase(pricePerAsset int64) int64 {
	if a.BasePrice > 0 {
		return a.BasePrice
	}
	return pricePerAsset
}
