package models

import "time"

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusConfirmed PurchaseStatus = "confirmed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
	PurchaseStatusTimedOut  PurchaseStatus = "timed_out"
)

// IsTerminal reports whether the status can no longer change.
func (s PurchaseStatus) IsTerminal() bool {
	return s != PurchaseStatusPending
}

func (s PurchaseStatus) String() string {
	return string(s)
}

// PurchaseAttempt is one checkout transaction. AssetIDs is a snapshot of the
// selection at checkout time. It is resolved exactly once.
type PurchaseAttempt struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	VaultID     string         `json:"vault_id"`
	AssetIDs    []string       `json:"asset_ids"`
	Amount      int64          `json:"amount"`
	PayerHandle string         `json:"-"`
	RequestID   string         `json:"request_id,omitempty"`
	Status      PurchaseStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}

// Resolve moves a pending attempt to a terminal status. It returns false and
// leaves the attempt untouched if it was already resolved.
func (p *PurchaseAttempt) Resolve(status PurchaseStatus, at time.Time) bool {
	if p.Status.IsTerminal() || !status.IsTerminal() {
		return false
	}
	p.Status = status
	p.ResolvedAt = &at
	return true
}
