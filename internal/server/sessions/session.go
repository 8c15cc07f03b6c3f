// Package sessions holds time-boxed viewing sessions in memory.
//
// A session is created after a vault is unlocked and ends exactly once,
// either by expiry or by the user leaving. Ending a session discards the
// selection and closes Done so any in-flight payment wait is released.
package sessions

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/server/ledger"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/timex"
)

type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateExited  State = "exited"
)

// Cart is the mutable part of a session. It is only reachable through
// Session.Mutate and Session.Settle, which hold the session lock.
type Cart struct {
	Selection *ledger.Selection
	Unlocked  ledger.Set
	// Checkout is the in-flight purchase attempt, nil when none.
	Checkout *models.PurchaseAttempt
}

// Snapshot is a read-only copy of a session taken under its lock.
type Snapshot struct {
	ID        string
	VaultID   string
	State     State
	StartedAt time.Time
	ExpiresAt time.Time
	Remaining time.Duration
	Selection []string
	Unlocked  ledger.Set
	Checkout  *models.PurchaseAttempt
}

type Session struct {
	ID        string
	VaultID   string
	StartedAt time.Time
	ExpiresAt time.Time
	Catalog   *ledger.Catalog

	clock timex.Clock

	mu     sync.Mutex
	state  State
	endAt  time.Time
	cart   Cart
	done   chan struct{}
	timer  *time.Timer
	onStop func(*Session, State)
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsExpired reports whether now is at or past the session deadline.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining is the time left before expiry, never negative.
func (s *Session) Remaining() time.Duration {
	d := s.ExpiresAt.Sub(s.clock())
	if d < 0 {
		return 0
	}
	return d
}

// Mutate runs fn against the cart if the session is still live. Past the
// deadline the session is ended on the spot, even if its timer has not
// fired yet, and common.ErrSessionExpired is returned.
func (s *Session) Mutate(fn func(c *Cart) error) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return common.ErrSessionExpired
	}
	if s.IsExpired(s.clock()) {
		s.mu.Unlock()
		s.terminate(StateExpired)
		return common.ErrSessionExpired
	}
	defer s.mu.Unlock()
	return fn(&s.cart)
}

// Settle runs fn against the cart regardless of session state. It is used
// to apply the outcome of a payment that was claimed before the session
// ended.
func (s *Session) Settle(fn func(c *Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cart)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlocked := make(ledger.Set, len(s.cart.Unlocked))
	for id := range s.cart.Unlocked {
		unlocked.Add(id)
	}
	var checkout *models.PurchaseAttempt
	if s.cart.Checkout != nil {
		cp := *s.cart.Checkout
		cp.AssetIDs = append([]string(nil), s.cart.Checkout.AssetIDs...)
		checkout = &cp
	}

	var remaining time.Duration
	if s.state == StateActive {
		remaining = s.Remaining()
	}

	return Snapshot{
		ID:        s.ID,
		VaultID:   s.VaultID,
		State:     s.state,
		StartedAt: s.StartedAt,
		ExpiresAt: s.ExpiresAt,
		Remaining: remaining,
		Selection: s.cart.Selection.IDs(),
		Unlocked:  unlocked,
		Checkout:  checkout,
	}
}

// terminate ends the session once. It reports whether this call ended it.
func (s *Session) terminate(reason State) bool {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return false
	}
	s.state = reason
	s.endAt = s.clock()
	s.cart.Selection.Clear()
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
	onStop := s.onStop
	s.mu.Unlock()

	if onStop != nil {
		onStop(s, reason)
	}
	return true
}
