// Package models defines server-side data models for vaults, assets and
// purchase attempts.
package models

import "time"

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

type VaultStatus string

const (
	VaultStatusActive   VaultStatus = "active"
	VaultStatusArchived VaultStatus = "archived"
)

// Vault is a private or public media collection issued by a photographer.
//
// The passkey is only ever held as an argon2id derivation. There is no
// update path for PasskeyHash/PasskeySalt: once issued it stays fixed.
type Vault struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"owner_id"`
	OwnerName     string      `json:"owner_name"`
	Visibility    Visibility  `json:"visibility"`
	ClientName    string      `json:"client_name"`
	ClientPhone   string      `json:"client_phone"`
	PasskeyHash   []byte      `json:"-"`
	PasskeySalt   []byte      `json:"-"`
	PricePerAsset int64       `json:"price_per_asset"`
	AssetIDs      []string    `json:"asset_ids"`
	Status        VaultStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// IsPrivate reports whether the vault is gated by a passkey.
func (v *Vault) IsPrivate() bool { return v.Visibility == VisibilityPrivate }

// IsActive reports whether the vault may be searched or opened.
func (v *Vault) IsActive() bool { return v.Status == VaultStatusActive }
