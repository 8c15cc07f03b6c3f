package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/cryptox"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/matcher"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
)

// Result is the outcome of a passkey check.
type Result string

const (
	Verified Result = "verified"
	Rejected Result = "rejected"
)

// Verify checks submitted against the vault's stored passkey. A vault with
// no passkey material (public vaults) never verifies; those are opened
// directly instead.
func Verify(vault *models.Vault, submitted string) Result {
	candidate := []byte(submitted)
	defer common.WipeByteArray(candidate)

	if cryptox.CheckPasskey(vault.PasskeyHash, vault.PasskeySalt, candidate) {
		return Verified
	}
	return Rejected
}

// Registry is the read side of the vault registry.
type Registry interface {
	// ListSearchable returns active private vaults in registry order.
	ListSearchable(ctx context.Context) ([]*models.Vault, error)
	GetByID(ctx context.Context, id string) (*models.Vault, error)
}

// Throttle limits passkey attempts per vault. Allow returns false when the
// caller must back off.
type Throttle interface {
	Allow(ctx context.Context, vaultID string) (bool, error)
	Reset(ctx context.Context, vaultID string) error
}

// Unlimited is the Throttle that never limits.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }
func (Unlimited) Reset(context.Context, string) error         { return nil }

// Controller drives search and passkey verification against a Registry.
type Controller struct {
	registry Registry
	throttle Throttle
	logger   logging.Logger
}

func NewController(r Registry, t Throttle, l logging.Logger) *Controller {
	if t == nil {
		t = Unlimited{}
	}
	return &Controller{registry: r, throttle: t, logger: l.With("module", "access")}
}

// Search locates a private vault. common.ErrNotFound is an expected outcome.
func (c *Controller) Search(ctx context.Context, q matcher.Query) (*models.Vault, State, error) {
	vaults, err := c.registry.ListSearchable(ctx)
	if err != nil {
		return nil, StateIdle, fmt.Errorf("error listing vaults: %w", err)
	}

	v, err := matcher.Find(vaults, q)
	if err != nil {
		return nil, walk(StateIdle, StateSearching, StateNotFound), err
	}
	return v, walk(StateIdle, StateSearching, StateFound, StateAwaitingPasskey), nil
}

// Verify loads the vault and checks the passkey. On success it returns the
// vault with StateVerified; a wrong passkey yields common.ErrRejected and
// StateRejected, after which the client may retry.
func (c *Controller) Verify(ctx context.Context, vaultID, passkey string) (*models.Vault, State, error) {
	v, err := c.registry.GetByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, StateNotFound, common.ErrNotFound
		}
		return nil, StateAwaitingPasskey, fmt.Errorf("error loading vault: %w", err)
	}
	if !v.IsActive() || !v.IsPrivate() {
		return nil, StateNotFound, common.ErrNotFound
	}

	ok, err := c.throttle.Allow(ctx, v.ID)
	if err != nil {
		// a broken throttle store must not lock clients out
		c.logger.Warn(ctx, "throttle unavailable", "vault_id", v.ID, "error", err)
	} else if !ok {
		return nil, walk(StateAwaitingPasskey, StateRejected), common.ErrTooManyAttempts
	}

	if Verify(v, passkey) != Verified {
		c.logger.Info(ctx, "passkey rejected", "vault_id", v.ID)
		return nil, walk(StateAwaitingPasskey, StateRejected), common.ErrRejected
	}

	if err := c.throttle.Reset(ctx, v.ID); err != nil {
		c.logger.Warn(ctx, "throttle reset failed", "vault_id", v.ID, "error", err)
	}
	c.logger.Info(ctx, "passkey verified", "vault_id", v.ID)
	return v, walk(StateAwaitingPasskey, StateVerified), nil
}

// Open loads a public vault reachable by direct link.
func (c *Controller) Open(ctx context.Context, vaultID string) (*models.Vault, error) {
	v, err := c.registry.GetByID(ctx, vaultID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error loading vault: %w", err)
	}
	if !v.IsActive() {
		return nil, common.ErrNotFound
	}
	if v.IsPrivate() {
		return nil, common.ErrNotPublic
	}
	return v, nil
}
