// Package http exposes the vault access API over HTTP using chi.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/dmitrijs2005/vaultgate/internal/server/access"
	"github.com/dmitrijs2005/vaultgate/internal/server/matcher"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
	"github.com/dmitrijs2005/vaultgate/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 16

type VaultAPI interface {
	Search(ctx context.Context, q matcher.Query) (*models.Vault, access.State, error)
	Verify(ctx context.Context, vaultID, passkey string) (*services.Grant, error)
	Open(ctx context.Context, vaultID string) (*services.Grant, error)
}

type SessionAPI interface {
	View(ctx context.Context, sessionID string) (*services.SessionView, error)
	Toggle(ctx context.Context, sessionID, assetID string) (*services.ToggleResult, error)
	Checkout(ctx context.Context, sessionID, payerHandle string) (*models.PurchaseAttempt, error)
	Exit(ctx context.Context, sessionID string) error
	DownloadURL(ctx context.Context, sessionID, assetID string) (string, error)
}

// Signaler is satisfied by payments.Coordinator.
type Signaler interface {
	Signal(requestID string, confirmed bool) bool
}

type Handler struct {
	vaults   VaultAPI
	sessions SessionAPI
	payments Signaler
	logger   logging.Logger
}

func NewHandler(v VaultAPI, s SessionAPI, p Signaler, l logging.Logger) *Handler {
	return &Handler{vaults: v, sessions: s, payments: p, logger: l.With("module", "http")}
}

type VaultDTO struct {
	ID         string            `json:"id"`
	OwnerName  string            `json:"owner_name"`
	Visibility models.Visibility `json:"visibility"`
	AssetCount int               `json:"asset_count"`
}

func toVaultDTO(v *models.Vault) *VaultDTO {
	if v == nil {
		return nil
	}
	return &VaultDTO{ID: v.ID, OwnerName: v.OwnerName, Visibility: v.Visibility, AssetCount: len(v.AssetIDs)}
}

type SessionDTO struct {
	ID        string    `json:"id"`
	VaultID   string    `json:"vault_id"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SearchResponse struct {
	State access.State `json:"state"`
	Vault *VaultDTO    `json:"vault,omitempty"`
}

type GrantResponse struct {
	State   access.State `json:"state"`
	Vault   *VaultDTO    `json:"vault,omitempty"`
	Session *SessionDTO  `json:"session,omitempty"`
	Token   string       `json:"token,omitempty"`
}

type VerifyRequestDTO struct {
	Passkey string `json:"passkey"`
}

type CheckoutRequestDTO struct {
	PayerHandle string `json:"payer_handle"`
}

type CheckoutResponse struct {
	Attempt *models.PurchaseAttempt `json:"attempt"`
	Error   string                  `json:"error,omitempty"`
	Code    string                  `json:"code,omitempty"`
}

type CallbackRequestDTO struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, status, code, "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var q matcher.Query
	if !decode(w, r, &q) {
		return
	}

	v, state, err := h.vaults.Search(r.Context(), q)
	if err != nil {
		status, code := statusFor(err)
		if status == http.StatusInternalServerError {
			h.fail(w, r, err)
			return
		}
		respondJSON(w, status, struct {
			SearchResponse
			Code string `json:"code"`
		}{SearchResponse{State: state}, code})
		return
	}

	respondJSON(w, http.StatusOK, SearchResponse{State: state, Vault: toVaultDTO(v)})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequestDTO
	if !decode(w, r, &req) {
		return
	}

	g, err := h.vaults.Verify(r.Context(), chi.URLParam(r, "id"), req.Passkey)
	if err != nil {
		status, code := statusFor(err)
		if status == http.StatusInternalServerError || g == nil {
			h.fail(w, r, err)
			return
		}
		respondJSON(w, status, struct {
			GrantResponse
			Code string `json:"code"`
		}{GrantResponse{State: g.State}, code})
		return
	}

	respondJSON(w, http.StatusOK, toGrantResponse(g))
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	g, err := h.vaults.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toGrantResponse(g))
}

func toGrantResponse(g *services.Grant) GrantResponse {
	return GrantResponse{
		State: g.State,
		Vault: toVaultDTO(g.Vault),
		Session: &SessionDTO{
			ID:        g.Session.ID,
			VaultID:   g.Session.VaultID,
			StartedAt: g.Session.StartedAt,
			ExpiresAt: g.Session.ExpiresAt,
		},
		Token: g.Token,
	}
}

// sessionID is the session the bearer token was issued for.
func sessionID(r *http.Request) string {
	return ClaimsFromContext(r.Context()).SessionID
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.sessions.View(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Toggle(r.Context(), sessionID(r), chi.URLParam(r, "assetId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if !decode(w, r, &req) {
		return
	}
	if req.PayerHandle == "" {
		respondError(w, http.StatusBadRequest, "invalid_payer_handle", "payer_handle is required")
		return
	}

	a, err := h.sessions.Checkout(r.Context(), sessionID(r), req.PayerHandle)
	if err != nil {
		if a == nil {
			h.fail(w, r, err)
			return
		}
		status, code := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error(r.Context(), "checkout failed", "attempt_id", a.ID, "error", err)
		}
		respondJSON(w, status, CheckoutResponse{Attempt: a, Error: err.Error(), Code: code})
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponse{Attempt: a})
}

func (h *Handler) Exit(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Exit(r.Context(), sessionID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	url, err := h.sessions.DownloadURL(r.Context(), sessionID(r), chi.URLParam(r, "assetId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequestDTO
	if !decode(w, r, &req) {
		return
	}
	if req.RequestID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request_id", "request_id is required")
		return
	}

	var confirmed bool
	switch req.Status {
	case string(models.PurchaseStatusConfirmed):
		confirmed = true
	case string(models.PurchaseStatusFailed):
	default:
		respondError(w, http.StatusBadRequest, "invalid_status", "status must be confirmed or failed")
		return
	}

	accepted := h.payments.Signal(req.RequestID, confirmed)
	respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": accepted})
}
