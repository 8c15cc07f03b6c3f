package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/ledger"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/payments"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultgate/internal/server/sessions"
	"github.com/dmitrijs2005/vaultgate/internal/timex"
)

// settleTimeout bounds the bookkeeping after a payment is decided. It runs
// detached from the request so a vanished client cannot leave a paid
// attempt half-recorded.
const settleTimeout = 10 * time.Second

// PaymentRequester is satisfied by payments.Coordinator.
type PaymentRequester interface {
	RequestPayment(ctx context.Context, done <-chan struct{}, attempt *models.PurchaseAttempt) (payments.Result, error)
}

// URLSigner is satisfied by storage.Presigner.
type URLSigner interface {
	DownloadURL(ctx context.Context, key string) (string, error)
}

type AssetView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	License  string `json:"license"`
	Price    int64  `json:"price"`
	Unlocked bool   `json:"unlocked"`
	Selected bool   `json:"selected"`
}

type SessionView struct {
	ID               string                  `json:"id"`
	VaultID          string                  `json:"vault_id"`
	State            sessions.State          `json:"state"`
	ExpiresAt        time.Time               `json:"expires_at"`
	RemainingSeconds int64                   `json:"remaining_seconds"`
	Assets           []AssetView             `json:"assets"`
	Selection        []string                `json:"selection"`
	Total            int64                   `json:"total"`
	Checkout         *models.PurchaseAttempt `json:"checkout,omitempty"`
}

// ToggleResult reports a selection change and the new running total.
type ToggleResult struct {
	Change    ledger.Change `json:"change"`
	Selection []string      `json:"selection"`
	Total     int64         `json:"total"`
}

// SessionService runs everything a client does inside a session: browse,
// select, check out, download and leave.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *sessions.Manager
	ledger      *ledger.Ledger
	unlocks     UnlockRegistry
	payments    PaymentRequester
	signer      URLSigner
	clock       timex.Clock
	logger      logging.Logger
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, sm *sessions.Manager, l *ledger.Ledger,
	u UnlockRegistry, p PaymentRequester, signer URLSigner, clock timex.Clock, logger logging.Logger) *SessionService {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &SessionService{
		db:          db,
		repomanager: m,
		sessions:    sm,
		ledger:      l,
		unlocks:     u,
		payments:    p,
		signer:      signer,
		clock:       clock,
		logger:      logger.With("module", "session_service"),
	}
}

func (s *SessionService) View(ctx context.Context, sessionID string) (*SessionView, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *SessionService) view(sess *sessions.Session) *SessionView {
	snap := sess.Snapshot()
	selected := ledger.NewSet(snap.Selection...)

	v := &SessionView{
		ID:               snap.ID,
		VaultID:          snap.VaultID,
		State:            snap.State,
		ExpiresAt:        snap.ExpiresAt,
		RemainingSeconds: int64(snap.Remaining / time.Second),
		Selection:        snap.Selection,
		Total:            s.ledger.Sum(snap.Selection, sess.Catalog),
		Checkout:         snap.Checkout,
	}
	for _, a := range sess.Catalog.Assets() {
		v.Assets = append(v.Assets, AssetView{
			ID:       a.ID,
			Title:    a.Title,
			Category: a.Category,
			License:  a.License,
			Price:    sess.Catalog.Price(a, s.ledger.Schedule()),
			Unlocked: snap.Unlocked.Has(a.ID),
			Selected: selected.Has(a.ID),
		})
	}
	return v
}

// Toggle adds or removes an asset from the session's selection.
func (s *SessionService) Toggle(ctx context.Context, sessionID, assetID string) (*ToggleResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var res ToggleResult
	err = sess.Mutate(func(c *sessions.Cart) error {
		ch, err := s.ledger.Toggle(c.Selection, c.Unlocked, sess.Catalog, assetID)
		if err != nil {
			return err
		}
		res = ToggleResult{Change: ch, Selection: c.Selection.IDs(), Total: s.ledger.Total(c.Selection, sess.Catalog)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Checkout commits the selection and waits for the payment outcome. The
// returned attempt carries the terminal status; a non-confirmed outcome is
// also reported as an error (common.ErrPaymentFailed,
// common.ErrPaymentTimedOut or common.ErrSessionExpired).
func (s *SessionService) Checkout(ctx context.Context, sessionID, payerHandle string) (*models.PurchaseAttempt, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.unlocks.Unlocked(ctx, sess.VaultID)
	if err != nil {
		return nil, fmt.Errorf("error loading unlocked assets: %w", err)
	}

	var attempt *models.PurchaseAttempt
	err = sess.Mutate(func(c *sessions.Cart) error {
		if c.Checkout != nil {
			return common.ErrCheckoutInProgress
		}
		// assets bought elsewhere since the session started are dropped
		c.Unlocked.Add(unlocked...)
		c.Selection.DropUnlocked(c.Unlocked)

		a, err := s.ledger.Commit(c.Selection, sess.Catalog, sess.ID, payerHandle)
		if err != nil {
			return err
		}
		c.Checkout = a
		attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	taken, err := s.unlocks.Reserve(ctx, attempt.VaultID, attempt.ID, attempt.AssetIDs)
	if err != nil {
		sess.Settle(func(c *sessions.Cart) { c.Checkout = nil })
		return nil, fmt.Errorf("error reserving assets: %w", err)
	}
	if len(taken) > 0 {
		sess.Settle(func(c *sessions.Cart) { c.Checkout = nil })
		s.logger.Info(ctx, "checkout blocked by another purchase",
			"session_id", sess.ID, "vault_id", sess.VaultID, "assets", taken)
		return nil, fmt.Errorf("%w: %s", common.ErrAssetReserved, strings.Join(taken, ", "))
	}

	if err := s.repomanager.Purchases(s.db).Create(ctx, attempt); err != nil {
		s.unlocks.Release(attempt.VaultID, attempt.ID)
		sess.Settle(func(c *sessions.Cart) { c.Checkout = nil })
		return nil, fmt.Errorf("error saving purchase attempt: %w", err)
	}

	s.logger.Info(ctx, "checkout started",
		"session_id", sess.ID, "attempt_id", attempt.ID, "amount", attempt.Amount, "assets", len(attempt.AssetIDs))

	res, err := s.payments.RequestPayment(ctx, sess.Done(), attempt)
	if err != nil {
		s.logger.Warn(ctx, "payment initiation failed", "attempt_id", attempt.ID, "error", err)
		res.Outcome = payments.Failed
	}

	return s.settle(ctx, sess, attempt, res)
}

func (s *SessionService) settle(ctx context.Context, sess *sessions.Session, attempt *models.PurchaseAttempt, res payments.Result) (*models.PurchaseAttempt, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	defer s.unlocks.Release(attempt.VaultID, attempt.ID)

	now := s.clock()
	status := res.Outcome.Status()

	var unlockedNow []string
	var outErr error
	switch res.Outcome {
	case payments.Confirmed:
		confirmed := *attempt
		confirmed.RequestID = res.RequestID
		all, err := s.unlocks.Register(ctx, &confirmed, now)
		if err != nil {
			s.logger.Error(ctx, "confirmed payment not recorded",
				"alert", true, "attempt_id", attempt.ID, "request_id", res.RequestID, "error", err)
			status = models.PurchaseStatusFailed
			outErr = fmt.Errorf("error registering purchase: %w", err)
		}
		unlockedNow = all
	case payments.Failed:
		outErr = common.ErrPaymentFailed
	case payments.TimedOut:
		outErr = common.ErrPaymentTimedOut
	case payments.Cancelled:
		outErr = common.ErrPaymentTimedOut
		if sess.State() != sessions.StateActive {
			outErr = common.ErrSessionExpired
		}
	}

	if status != models.PurchaseStatusConfirmed {
		if err := s.repomanager.Purchases(s.db).Resolve(ctx, attempt.ID, res.RequestID, status, now); err != nil {
			s.logger.Warn(ctx, "error storing purchase status", "attempt_id", attempt.ID, "error", err)
		}
	}

	var out models.PurchaseAttempt
	sess.Settle(func(c *sessions.Cart) {
		attempt.RequestID = res.RequestID
		attempt.Resolve(status, now)

		switch {
		case status == models.PurchaseStatusConfirmed:
			ledger.MarkPurchased(c.Selection, c.Unlocked, attempt)
			c.Unlocked.Add(unlockedNow...)
			c.Selection.DropUnlocked(c.Unlocked)
		case res.Outcome == payments.Cancelled:
			c.Selection.Clear()
		}
		c.Checkout = nil

		out = *attempt
		out.AssetIDs = append([]string(nil), attempt.AssetIDs...)
	})

	s.logger.Info(ctx, "checkout finished",
		"session_id", sess.ID, "attempt_id", attempt.ID, "status", string(out.Status))
	return &out, outErr
}

// Exit ends the session at the user's request.
func (s *SessionService) Exit(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if !s.sessions.Terminate(sess, sessions.StateExited) {
		return common.ErrSessionExpired
	}
	return nil
}

// DownloadURL presigns the original of a purchased asset.
func (s *SessionService) DownloadURL(ctx context.Context, sessionID, assetID string) (string, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}

	asset := sess.Catalog.Asset(assetID)
	if asset == nil {
		return "", common.ErrAssetNotInVault
	}

	if !sess.Snapshot().Unlocked.Has(assetID) {
		// it may have been bought from another session since this one began
		unlocked, err := s.unlocks.Unlocked(ctx, sess.VaultID)
		if err != nil {
			return "", fmt.Errorf("error loading unlocked assets: %w", err)
		}
		if !ledger.NewSet(unlocked...).Has(assetID) {
			return "", common.ErrAssetLocked
		}
	}

	url, err := s.signer.DownloadURL(ctx, asset.StorageKey)
	if err != nil {
		return "", fmt.Errorf("error signing download: %w", err)
	}
	return url, nil
}

// IsExpectedError reports whether err is a normal business outcome rather
// than a fault.
func IsExpectedError(err error) bool {
	for _, e := range []error{
		common.ErrNotFound, common.ErrRejected, common.ErrTooManyAttempts, common.ErrNotPublic,
		common.ErrSessionNotFound, common.ErrSessionExpired, common.ErrAssetNotInVault,
		common.ErrAssetLocked, common.ErrEmptySelection, common.ErrCheckoutInProgress, common.ErrAssetReserved,
		common.ErrPaymentFailed, common.ErrPaymentTimedOut,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
