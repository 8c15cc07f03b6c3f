// Package services contains server-side business logic. This file implements
// VaultService, which locates vaults, checks passkeys and opens sessions.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/access"
	"github.com/dmitrijs2005/vaultgate/internal/server/auth"
	"github.com/dmitrijs2005/vaultgate/internal/server/config"
	"github.com/dmitrijs2005/vaultgate/internal/server/ledger"
	"github.com/dmitrijs2005/vaultgate/internal/server/matcher"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultgate/internal/server/sessions"
)

// UnlockRegistry is the durable unlocked set plus the holds of in-flight
// attempts, see ledger.Unlocker.
type UnlockRegistry interface {
	Unlocked(ctx context.Context, vaultID string) ([]string, error)
	Reserve(ctx context.Context, vaultID, attemptID string, ids []string) ([]string, error)
	Release(vaultID, attemptID string)
	Register(ctx context.Context, attempt *models.PurchaseAttempt, at time.Time) ([]string, error)
}

// Grant is what a client receives once a vault is unlocked.
type Grant struct {
	State   access.State
	Vault   *models.Vault
	Session *sessions.Session
	Token   string
}

type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	controller  *access.Controller
	sessions    *sessions.Manager
	unlocks     UnlockRegistry
	jwtSecret   []byte
	logger      logging.Logger
}

func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, c *access.Controller,
	sm *sessions.Manager, u UnlockRegistry, cfg *config.Config, l logging.Logger) *VaultService {
	return &VaultService{
		db:          db,
		repomanager: m,
		controller:  c,
		sessions:    sm,
		unlocks:     u,
		jwtSecret:   []byte(cfg.SecretKey),
		logger:      l.With("module", "vault_service"),
	}
}

// Search locates a private vault from partial credentials.
func (s *VaultService) Search(ctx context.Context, q matcher.Query) (*models.Vault, access.State, error) {
	return s.controller.Search(ctx, q)
}

// Verify checks passkey against the vault and, on success, starts a session.
func (s *VaultService) Verify(ctx context.Context, vaultID, passkey string) (*Grant, error) {
	v, state, err := s.controller.Verify(ctx, vaultID, passkey)
	if err != nil {
		return &Grant{State: state}, err
	}
	return s.startSession(ctx, v, state)
}

// Open starts a session on a public vault.
func (s *VaultService) Open(ctx context.Context, vaultID string) (*Grant, error) {
	v, err := s.controller.Open(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, v, access.StateVerified)
}

func (s *VaultService) startSession(ctx context.Context, v *models.Vault, state access.State) (*Grant, error) {
	assets, err := s.repomanager.Assets(s.db).ListByVault(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading catalog: %w", err)
	}
	unlocked, err := s.unlocks.Unlocked(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading unlocked assets: %w", err)
	}

	sess := s.sessions.Start(ledger.NewCatalog(v, assets), unlocked)

	token, err := auth.GenerateSessionToken(sess.ID, v.ID, s.jwtSecret, sess.ExpiresAt)
	if err != nil {
		s.sessions.Terminate(sess, sessions.StateExited)
		return nil, fmt.Errorf("error signing session token: %w", err)
	}

	return &Grant{State: state, Vault: v, Session: sess, Token: token}, nil
}
