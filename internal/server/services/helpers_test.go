package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/cryptox"
	"github.com/dmitrijs2005/vaultgate/internal/dbx"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/payments"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/assets"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/purchases"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/unlocks"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/vaults"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// newFakeClock starts at the wall clock so tokens signed from it are still
// valid for auth.ParseSessionToken, which checks against real time.
func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- fake repositories ---

type fakeVaultsRepo struct {
	vaults []*models.Vault
}

func (f *fakeVaultsRepo) Create(ctx context.Context, v *models.Vault) (*models.Vault, error) {
	f.vaults = append(f.vaults, v)
	return v, nil
}

func (f *fakeVaultsRepo) GetByID(ctx context.Context, id string) (*models.Vault, error) {
	for _, v := range f.vaults {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeVaultsRepo) ListSearchable(ctx context.Context) ([]*models.Vault, error) {
	var out []*models.Vault
	for _, v := range f.vaults {
		if v.IsPrivate() && v.IsActive() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVaultsRepo) LockForUpdate(ctx context.Context, id string) error { return nil }

type fakeAssetsRepo struct {
	assets  []*models.Asset
	listErr error
}

func (f *fakeAssetsRepo) Create(ctx context.Context, a *models.Asset) (*models.Asset, error) {
	f.assets = append(f.assets, a)
	return a, nil
}

func (f *fakeAssetsRepo) ListByVault(ctx context.Context, vaultID string) ([]*models.Asset, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Asset
	for _, a := range f.assets {
		if a.VaultID == vaultID {
			out = append(out, a)
		}
	}
	return out, nil
}

type resolved struct {
	id        string
	requestID string
	status    models.PurchaseStatus
}

type fakePurchasesRepo struct {
	mu        sync.Mutex
	created   []*models.PurchaseAttempt
	resolved  []resolved
	createErr error
}

func (f *fakePurchasesRepo) Create(ctx context.Context, p *models.PurchaseAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *p
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakePurchasesRepo) Resolve(ctx context.Context, id, requestID string, status models.PurchaseStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, resolved{id: id, requestID: requestID, status: status})
	return nil
}

func (f *fakePurchasesRepo) GetByID(ctx context.Context, id string) (*models.PurchaseAttempt, error) {
	return nil, common.ErrNotFound
}

func (f *fakePurchasesRepo) statuses() []models.PurchaseStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PurchaseStatus
	for _, r := range f.resolved {
		out = append(out, r.status)
	}
	return out
}

type fakeRepoManager struct {
	vaults    *fakeVaultsRepo
	assets    *fakeAssetsRepo
	purchases *fakePurchasesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Vaults(dbx.DBTX) vaults.Repository            { return m.vaults }
func (m *fakeRepoManager) Assets(dbx.DBTX) assets.Repository            { return m.assets }
func (m *fakeRepoManager) Unlocks(dbx.DBTX) unlocks.Repository          { return nil }
func (m *fakeRepoManager) Purchases(dbx.DBTX) purchases.Repository      { return m.purchases }

// --- fake collaborators ---

type fakeUnlocks struct {
	mu          sync.Mutex
	byVault     map[string][]string
	held        map[string]string
	registerErr error
	registered  []*models.PurchaseAttempt
	released    []string
}

func newFakeUnlocks() *fakeUnlocks {
	return &fakeUnlocks{byVault: map[string][]string{}, held: map[string]string{}}
}

func (f *fakeUnlocks) Reserve(_ context.Context, vaultID, attemptID string, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var taken []string
	for _, id := range ids {
		holder, ok := f.held[vaultID+"/"+id]
		if (ok && holder != attemptID) || contains(f.byVault[vaultID], id) {
			taken = append(taken, id)
		}
	}
	if len(taken) > 0 {
		return taken, nil
	}
	for _, id := range ids {
		f.held[vaultID+"/"+id] = attemptID
	}
	return nil, nil
}

func (f *fakeUnlocks) Release(vaultID, attemptID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, attemptID)
	for k, holder := range f.held {
		if holder == attemptID {
			delete(f.held, k)
		}
	}
}

func (f *fakeUnlocks) heldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (f *fakeUnlocks) Unlocked(ctx context.Context, vaultID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.byVault[vaultID]...), nil
}

func (f *fakeUnlocks) Register(ctx context.Context, a *models.PurchaseAttempt, at time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.registered = append(f.registered, a)
	have := map[string]bool{}
	for _, id := range f.byVault[a.VaultID] {
		have[id] = true
	}
	for _, id := range a.AssetIDs {
		if !have[id] {
			f.byVault[a.VaultID] = append(f.byVault[a.VaultID], id)
		}
	}
	return append([]string(nil), f.byVault[a.VaultID]...), nil
}

// fakePayments decides every payment with a scripted outcome. When block is
// set it waits for the session or the context instead.
type fakePayments struct {
	outcome payments.Outcome
	err     error
	block   bool
	started chan struct{}
	calls   int
}

func (f *fakePayments) RequestPayment(ctx context.Context, done <-chan struct{}, a *models.PurchaseAttempt) (payments.Result, error) {
	f.calls++
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		select {
		case <-done:
		case <-ctx.Done():
		}
		return payments.Result{Outcome: payments.Cancelled, RequestID: "r-1"}, nil
	}
	return payments.Result{Outcome: f.outcome, RequestID: "r-1"}, f.err
}

type fakeSigner struct {
	keys []string
}

func (f *fakeSigner) DownloadURL(ctx context.Context, key string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://s3.test/" + key, nil
}

// --- fixtures ---

func mustPasskey(t *testing.T, passkey string) (hash, salt []byte) {
	t.Helper()
	hash, salt, err := cryptox.NewPasskeyHash([]byte(passkey))
	if err != nil {
		t.Fatalf("NewPasskeyHash: %v", err)
	}
	return hash, salt
}

func fixtureRepos(t *testing.T) *fakeRepoManager {
	t.Helper()
	hash, salt := mustPasskey(t, "LUMEN-2024")
	return &fakeRepoManager{
		vaults: &fakeVaultsRepo{vaults: []*models.Vault{
			{ID: "v1", OwnerName: "Lumen Studio", ClientPhone: "+1 (555) 010-0199", Visibility: models.VisibilityPrivate,
				Status: models.VaultStatusActive, PasskeyHash: hash, PasskeySalt: salt, PricePerAsset: 800},
			{ID: "pub", OwnerName: "Open Gallery", Visibility: models.VisibilityPublic,
				Status: models.VaultStatusActive, PricePerAsset: 500},
		}},
		assets: &fakeAssetsRepo{assets: []*models.Asset{
			{ID: "a1", VaultID: "v1", Title: "Harbor", BasePrice: 1470, Category: "Media/News", License: "Commercial", StorageKey: "vaults/v1/a1", Position: 1},
			{ID: "a2", VaultID: "v1", Title: "Portrait", Category: "Portrait", License: "Personal", StorageKey: "vaults/v1/a2", Position: 2},
			{ID: "a3", VaultID: "v1", Title: "Skyline", BasePrice: 1500, Category: "Commercial", License: "Commercial", StorageKey: "vaults/v1/a3", Position: 3},
			{ID: "p1", VaultID: "pub", Title: "Open", Category: "Art", License: "Personal", Position: 1},
		}},
		purchases: &fakePurchasesRepo{},
	}
}

var nop logging.Logger = logging.NopLogger{}
