// Package pricing computes displayed asset prices: a flat fee on top of the
// asset's base price, keyed by category and license.
package pricing

import (
	"strings"

	"github.com/dmitrijs2005/vaultgate/internal/server/models"
)

// FeeSchedule is the flat add-on applied over an asset's base price.
type FeeSchedule struct {
	// MediaFee applies to the Media/News category.
	MediaFee int64
	// PersonalFee applies to Personal licenses outside Media/News.
	PersonalFee int64
	// DefaultFee applies to everything else, including unknown values.
	DefaultFee int64
}

// DefaultSchedule returns the standard 50/10/20 schedule.
func DefaultSchedule() FeeSchedule {
	return FeeSchedule{MediaFee: 50, PersonalFee: 10, DefaultFee: 20}
}

// Fee picks the tier for a category/license pair. Category wins over license.
func (s FeeSchedule) Fee(category, license string) int64 {
	switch {
	case isMedia(category):
		return s.MediaFee
	case strings.EqualFold(strings.TrimSpace(license), "personal"):
		return s.PersonalFee
	default:
		return s.DefaultFee
	}
}

// Price returns base + fee for an asset. pricePerAsset is the vault's unit
// price, used when the asset has no override.
func Price(asset *models.Asset, pricePerAsset int64, schedule FeeSchedule) int64 {
	return asset.EffectiveBase(pricePerAsset) + schedule.Fee(asset.Category, asset.License)
}

func isMedia(category string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "media", "news", "media/news":
		return true
	}
	return false
}
