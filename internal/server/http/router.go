package http

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaultgate/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the API routes. Session routes require a bearer token
// signed with secret. requestTimeout must exceed the payment timeout.
func NewRouter(h *Handler, secret []byte, requestTimeout time.Duration, l logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(l.With("module", "http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/vaults", func(r chi.Router) {
		r.Post("/search", h.Search)
		r.Post("/{id}/verify", h.Verify)
		r.Post("/{id}/open", h.Open)
	})

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(SessionAuth(secret))
		r.Get("/", h.GetSession)
		r.Post("/selection/{assetId}", h.Toggle)
		r.Post("/checkout", h.Checkout)
		r.Post("/exit", h.Exit)
		r.Get("/assets/{assetId}/download", h.Download)
	})

	r.Post("/payments/callback", h.PaymentCallback)

	return r
}
