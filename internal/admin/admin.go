// Package admin provides the daemon's loopback HTTP surface: wallet
// lifecycle, connected-site management, the pending-approval queue, and
// observability endpoints. It binds loopback only; it is the operator's
// window into the keychain, never a page-facing API.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lisboaa111/Nillion-Keychain/internal/config"
	"github.com/Lisboaa111/Nillion-Keychain/internal/middleware"
	"github.com/Lisboaa111/Nillion-Keychain/internal/pending"
	"github.com/Lisboaa111/Nillion-Keychain/internal/popup"
	"github.com/Lisboaa111/Nillion-Keychain/internal/registry"
	"github.com/Lisboaa111/Nillion-Keychain/internal/store"
	"github.com/Lisboaa111/Nillion-Keychain/internal/wallet"
)

// Dependencies holds everything the admin handlers need.
type Dependencies struct {
	Config   *config.Config
	Wallet   *wallet.Wallet
	Registry *registry.Registry
	Pending  *pending.Store
	Executor *popup.Executor
	Store    store.Store
	Logger   *slog.Logger
}

// NewRouter creates and configures the admin HTTP router.
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Metrics())
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))

	h := newHandler(deps)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/status", h.status)
	r.Post("/setup", h.setup)
	r.Post("/import", h.importKey)
	r.Post("/unlock", h.unlock)
	r.Post("/lock", h.lock)
	r.Post("/export", h.export)

	r.Route("/sites", func(r chi.Router) {
		r.Get("/", h.listSites)
		r.Delete("/{origin}", h.removeSite)
	})

	r.Route("/pending", func(r chi.Router) {
		r.Get("/", h.listPending)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getPending)
			r.Post("/approve", h.approve)
			r.Post("/reject", h.reject)
		})
	})

	r.Get("/audit", h.listAudit)

	return r
}
