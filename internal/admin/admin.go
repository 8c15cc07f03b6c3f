// Package admin implements the operator commands behind vaultctl: schema
// migration, vault issuance and asset registration.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/cryptox"
	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/netx"
	"github.com/dmitrijs2005/vaultgate/internal/server/matcher"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultgate/internal/server/storage"
)

var ErrInvalidVault = errors.New("invalid vault")

// Invalidator drops cached registry data, see cache.CachedRegistry.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// UploadSigner is satisfied by storage.Presigner.
type UploadSigner interface {
	UploadURL(ctx context.Context, key string) (string, error)
}

type VaultSpec struct {
	OwnerID       string
	OwnerName     string
	Visibility    models.Visibility
	ClientName    string
	ClientPhone   string
	PricePerAsset int64
}

type AssetSpec struct {
	VaultID   string
	Title     string
	BasePrice int64
	Category  string
	License   string
}

type Tool struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       Invalidator
	uploads     UploadSigner
	logger      logging.Logger
}

// NewTool builds the admin toolset. cache may be nil when no registry
// cache is deployed.
func NewTool(db *sql.DB, m repomanager.RepositoryManager, cache Invalidator, uploads UploadSigner, l logging.Logger) *Tool {
	return &Tool{db: db, repomanager: m, cache: cache, uploads: uploads, logger: l.With("module", "admin")}
}

func (t *Tool) Migrate(ctx context.Context) error {
	if err := t.repomanager.RunMigrations(ctx, t.db); err != nil {
		return fmt.Errorf("error running migrations: %w", err)
	}
	t.logger.Info(ctx, "migrations applied")
	return nil
}

// IssueVault registers a vault. Private vaults need a passkey, which is
// stored only as an argon2id hash and cannot be changed afterwards.
func (t *Tool) IssueVault(ctx context.Context, spec VaultSpec, passkey []byte) (*models.Vault, error) {
	if strings.TrimSpace(spec.OwnerName) == "" {
		return nil, fmt.Errorf("%w: owner name is required", ErrInvalidVault)
	}
	if spec.PricePerAsset < 0 {
		return nil, fmt.Errorf("%w: negative price", ErrInvalidVault)
	}

	v := &models.Vault{
		OwnerID:       spec.OwnerID,
		OwnerName:     spec.OwnerName,
		Visibility:    spec.Visibility,
		ClientName:    spec.ClientName,
		ClientPhone:   spec.ClientPhone,
		PricePerAsset: spec.PricePerAsset,
		Status:        models.VaultStatusActive,
	}

	switch spec.Visibility {
	case models.VisibilityPrivate:
		if len(matcher.NormalizeDigits(spec.ClientPhone)) < matcher.MinPhoneDigits {
			return nil, fmt.Errorf("%w: private vault needs a client phone", ErrInvalidVault)
		}
		if len(passkey) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVault, ErrEmptyPasskey)
		}
		hash, salt, err := cryptox.NewPasskeyHash(passkey)
		if err != nil {
			return nil, fmt.Errorf("error hashing passkey: %w", err)
		}
		v.PasskeyHash, v.PasskeySalt = hash, salt
	case models.VisibilityPublic:
	default:
		return nil, fmt.Errorf("%w: unknown visibility %q", ErrInvalidVault, spec.Visibility)
	}

	v, err := t.repomanager.Vaults(t.db).Create(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("error creating vault: %w", err)
	}

	if t.cache != nil {
		if err := t.cache.Invalidate(ctx); err != nil {
			t.logger.Warn(ctx, "registry cache invalidation failed", "error", err)
		}
	}

	t.logger.Info(ctx, "vault issued", "vault_id", v.ID, "visibility", string(v.Visibility))
	return v, nil
}

// AddAsset appends an asset to the vault's catalog and returns it together
// with a presigned URL for uploading the original.
func (t *Tool) AddAsset(ctx context.Context, spec AssetSpec) (*models.Asset, string, error) {
	if _, err := t.repomanager.Vaults(t.db).GetByID(ctx, spec.VaultID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, "", fmt.Errorf("vault %s: %w", spec.VaultID, common.ErrNotFound)
		}
		return nil, "", fmt.Errorf("error loading vault: %w", err)
	}

	existing, err := t.repomanager.Assets(t.db).ListByVault(ctx, spec.VaultID)
	if err != nil {
		return nil, "", fmt.Errorf("error loading catalog: %w", err)
	}

	a := &models.Asset{
		VaultID:    spec.VaultID,
		Title:      spec.Title,
		BasePrice:  spec.BasePrice,
		Category:   spec.Category,
		License:    spec.License,
		StorageKey: storage.NewStorageKey(spec.VaultID),
		Position:   len(existing),
	}

	a, err = t.repomanager.Assets(t.db).Create(ctx, a)
	if err != nil {
		return nil, "", fmt.Errorf("error creating asset: %w", err)
	}

	if t.cache != nil {
		if err := t.cache.Invalidate(ctx); err != nil {
			t.logger.Warn(ctx, "registry cache invalidation failed", "error", err)
		}
	}

	url, err := t.uploads.UploadURL(ctx, a.StorageKey)
	if err != nil {
		return a, "", fmt.Errorf("error presigning upload: %w", err)
	}

	t.logger.Info(ctx, "asset added", "vault_id", a.VaultID, "asset_id", a.ID)
	return a, url, nil
}

// UploadOriginal sends the file at path to a presigned upload URL.
func (t *Tool) UploadOriginal(ctx context.Context, client *http.Client, url, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	if err := netx.UploadToPresignedURL(ctx, client, url, body, netx.ContentTypeFor(path)); err != nil {
		return err
	}
	t.logger.Info(ctx, "original uploaded", "bytes", len(body))
	return nil
}
