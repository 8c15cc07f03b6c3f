package common

import "errors"

// Callers should match these values with errors.Is.
var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Access errors.
	ErrRejected        = errors.New("passkey rejected")
	ErrTooManyAttempts = errors.New("too many passkey attempts")
	ErrNotPublic       = errors.New("vault requires a passkey")

	// Session lifecycle errors.
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Selection errors.
	ErrAssetNotInVault    = errors.New("asset does not belong to vault")
	ErrAssetLocked        = errors.New("asset is not purchased")
	ErrEmptySelection     = errors.New("selection is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrAssetReserved      = errors.New("asset is being purchased in another session")

	// Payment errors.
	ErrPaymentFailed   = errors.New("payment failed")
	ErrPaymentTimedOut = errors.New("payment timed out")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
)
