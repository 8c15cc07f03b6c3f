package admin

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/cryptox"
	"github.com/dmitrijs2005/vaultgate/internal/dbx"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/assets"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/purchases"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/unlocks"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/vaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVaults struct {
	created []*models.Vault
	byID    map[string]*models.Vault
}

func (f *fakeVaults) Create(_ context.Context, v *models.Vault) (*models.Vault, error) {
	v.ID = "v-new"
	f.created = append(f.created, v)
	return v, nil
}

func (f *fakeVaults) GetByID(_ context.Context, id string) (*models.Vault, error) {
	if v, ok := f.byID[id]; ok {
		return v, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeVaults) ListSearchable(context.Context) ([]*models.Vault, error) { return nil, nil }
func (f *fakeVaults) LockForUpdate(context.Context, string) error             { return nil }

type fakeAssets struct {
	items []*models.Asset
}

func (f *fakeAssets) Create(_ context.Context, a *models.Asset) (*models.Asset, error) {
	a.ID = "asset-" + string(rune('a'+len(f.items)))
	f.items = append(f.items, a)
	return a, nil
}

func (f *fakeAssets) ListByVault(_ context.Context, vaultID string) ([]*models.Asset, error) {
	var out []*models.Asset
	for _, a := range f.items {
		if a.VaultID == vaultID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	vaults     *fakeVaults
	assets     *fakeAssets
	migrations int
	migrateErr error
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	m.migrations++
	return m.migrateErr
}
func (m *fakeRepoManager) Vaults(dbx.DBTX) vaults.Repository       { return m.vaults }
func (m *fakeRepoManager) Assets(dbx.DBTX) assets.Repository       { return m.assets }
func (m *fakeRepoManager) Unlocks(dbx.DBTX) unlocks.Repository     { return nil }
func (m *fakeRepoManager) Purchases(dbx.DBTX) purchases.Repository { return nil }

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return nil
}

type fakeUploads struct{}

func (fakeUploads) UploadURL(_ context.Context, key string) (string, error) {
	return "https://s3.local/vaults-bucket/" + key + "?X-Amz-Signature=sig", nil
}

func newTestTool() (*Tool, *fakeRepoManager, *fakeInvalidator) {
	m := &fakeRepoManager{
		vaults: &fakeVaults{byID: map[string]*models.Vault{"v1": {ID: "v1"}}},
		assets: &fakeAssets{},
	}
	inv := &fakeInvalidator{}
	return NewTool(nil, m, inv, fakeUploads{}, logging.NopLogger{}), m, inv
}

func TestMigrate(t *testing.T) {
	tool, m, _ := newTestTool()
	require.NoError(t, tool.Migrate(context.Background()))
	assert.Equal(t, 1, m.migrations)

	m.migrateErr = errors.New("boom")
	assert.Error(t, tool.Migrate(context.Background()))
}

func TestIssueVault_Private(t *testing.T) {
	tool, m, inv := newTestTool()

	v, err := tool.IssueVault(context.Background(), VaultSpec{
		OwnerName:     "Lumen Studio",
		Visibility:    models.VisibilityPrivate,
		ClientName:    "Ana",
		ClientPhone:   "+1 (555) 010-0199",
		PricePerAsset: 100,
	}, []byte("LUMEN-2024"))
	require.NoError(t, err)

	assert.Equal(t, "v-new", v.ID)
	assert.Equal(t, models.VaultStatusActive, v.Status)
	assert.True(t, cryptox.CheckPasskey(v.PasskeyHash, v.PasskeySalt, []byte("LUMEN-2024")))
	assert.False(t, cryptox.CheckPasskey(v.PasskeyHash, v.PasskeySalt, []byte("lumen-2024")))
	assert.Len(t, m.vaults.created, 1)
	assert.Equal(t, 1, inv.calls)
}

func TestIssueVault_Public(t *testing.T) {
	tool, _, _ := newTestTool()

	v, err := tool.IssueVault(context.Background(), VaultSpec{
		OwnerName:  "Open Gallery",
		Visibility: models.VisibilityPublic,
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, v.PasskeyHash)
	assert.Empty(t, v.PasskeySalt)
}

func TestIssueVault_Invalid(t *testing.T) {
	tool, m, inv := newTestTool()
	ctx := context.Background()

	cases := map[string]struct {
		spec    VaultSpec
		passkey []byte
	}{
		"no owner":        {VaultSpec{Visibility: models.VisibilityPublic}, nil},
		"negative price":  {VaultSpec{OwnerName: "X", Visibility: models.VisibilityPublic, PricePerAsset: -1}, nil},
		"no passkey":      {VaultSpec{OwnerName: "X", Visibility: models.VisibilityPrivate, ClientPhone: "5550100"}, nil},
		"short phone":     {VaultSpec{OwnerName: "X", Visibility: models.VisibilityPrivate, ClientPhone: "12"}, []byte("k")},
		"bad visibility": {VaultSpec{OwnerName: "X", Visibility: "secret"}, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tool.IssueVault(ctx, tc.spec, tc.passkey)
			assert.ErrorIs(t, err, ErrInvalidVault)
		})
	}
	assert.Empty(t, m.vaults.created)
	assert.Zero(t, inv.calls)
}

func TestAddAsset(t *testing.T) {
	tool, m, _ := newTestTool()
	ctx := context.Background()

	a, url, err := tool.AddAsset(ctx, AssetSpec{VaultID: "v1", Title: "Dawn", Category: "Nature", License: "Personal"})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Position)
	assert.True(t, strings.HasPrefix(a.StorageKey, "vaults/v1/"))
	assert.Contains(t, url, a.StorageKey)

	b, _, err := tool.AddAsset(ctx, AssetSpec{VaultID: "v1", Title: "Dusk"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Position)
	assert.NotEqual(t, a.StorageKey, b.StorageKey)
	assert.Len(t, m.assets.items, 2)
}

func TestAddAsset_UnknownVault(t *testing.T) {
	tool, m, _ := newTestTool()
	_, _, err := tool.AddAsset(context.Background(), AssetSpec{VaultID: "nope", Title: "X"})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, m.assets.items)
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(bufio.NewReader(strings.NewReader("  Lumen Studio \n")), "Owner name", &out)
	require.NoError(t, err)
	assert.Equal(t, "Lumen Studio", got)
	assert.Contains(t, out.String(), "Owner name")

	got, err = GetSimpleText(bufio.NewReader(strings.NewReader("partial")), "x", &out)
	require.NoError(t, err)
	assert.Equal(t, "partial", got)
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	i := 0
	readPassword = func(int) ([]byte, error) {
		a := answers[i]
		i++
		return []byte(a), nil
	}
}

func TestGetPasskey(t *testing.T) {
	var out bytes.Buffer

	stubPasswords(t, "LUMEN-2024", "LUMEN-2024")
	got, err := GetPasskey(&out)
	require.NoError(t, err)
	assert.Equal(t, "LUMEN-2024", string(got))

	stubPasswords(t, "LUMEN-2024", "LUMEN-2025")
	_, err = GetPasskey(&out)
	assert.ErrorIs(t, err, ErrPasskeyMismatch)

	stubPasswords(t, "", "")
	_, err = GetPasskey(&out)
	assert.ErrorIs(t, err, ErrEmptyPasskey)
}

func TestUploadOriginal(t *testing.T) {
	tool, _, _ := newTestTool()

	var got []byte
	var ct string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
		got, _ = io.ReadAll(r.Body)
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "dawn.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	require.NoError(t, tool.UploadOriginal(context.Background(), ts.Client(), ts.URL, path))
	assert.Equal(t, "png-bytes", string(got))
	assert.Equal(t, "image/png", ct)

	err := tool.UploadOriginal(context.Background(), ts.Client(), ts.URL, filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
