package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/certhub/internal/auth"
)

// RouterConfig holds the transport settings of the API.
type RouterConfig struct {
	AuthMode  string
	Token     string
	RateRPS   float64
	RateBurst int
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(RateLimit(cfg.RateRPS, cfg.RateBurst))

	// Sign-in is reachable without credentials so session tokens can be obtained.
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.AuthMode, cfg.Token, h.Auth))

		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)
		r.Put("/auth/me", h.UpdateProfile)
		r.Get("/auth/permissions/{name}", h.HasPermission)

		// Stateless certificate queries.
		r.Get("/certs", h.ListCerts)
		r.Get("/certs/trending/liked", h.MostLiked)
		r.Get("/certs/trending/viewed", h.MostViewed)
		r.Get("/certs/recent", h.Recent)
		r.Get("/certs/author/{id}", h.ByAuthor)
		r.Get("/certs/tag/{tag}", h.ByTag)
		r.Get("/certs/{id}", h.GetCert)

		// Mutations.
		r.With(h.requirePermission(auth.PermAddCertificate)).Post("/certs", h.CreateCert)
		r.Put("/certs/{id}", h.UpdateCert)
		r.Delete("/certs/{id}", h.DeleteCert)
		r.Post("/certs/{id}/like", h.ToggleLike)
		r.Post("/certs/{id}/view", h.CountView)

		// The feed keeps its own filter, sort and page state.
		r.Get("/feed", h.Feed)
		r.Get("/feed/state", h.FeedState)
		r.Put("/feed/filters", h.SetFilters)
		r.Delete("/feed/filters", h.ClearFilters)
		r.Put("/feed/page", h.SetPage)
		r.Put("/feed/search", h.Search)

		r.Get("/catalog", h.ListCatalog)
		r.Route("/analytics", func(r chi.Router) {
			r.Use(h.requirePermission(auth.PermViewAnalytics))
			r.Get("/", h.Analytics)
			r.Get("/overview", h.Overview)
			r.Get("/units", h.UnitBreakdown)
		})

		r.Get("/users", h.ListUsers)
		r.Get("/users/units", h.Units)
		r.Get("/users/job-titles", h.JobTitles)
		r.Get("/users/managers", h.Managers)
		r.Get("/users/stats", h.TeamStats)
		r.Get("/users/{id}", h.GetUser)

		r.Route("/manager/units/{unit}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.requirePermission(auth.PermManageUnitCerts))
				r.Get("/members", h.UnitMembers)
				r.Get("/certs", h.UnitCerts)
				r.Get("/stats", h.UnitStats)
			})
			r.Group(func(r chi.Router) {
				r.Use(h.requirePermission(auth.PermExportData))
				r.Get("/export/members", h.ExportMembers)
				r.Get("/export/certs", h.ExportCerts)
			})
		})

		r.Post("/uploads", h.Upload)
		r.Get("/toasts", h.ListToasts)
		r.Delete("/toasts", h.ClearToasts)
		r.Delete("/toasts/{id}", h.DismissToast)

		if cfg.Events != nil {
			r.Get("/events", cfg.Events.ServeHTTP)
		}
	})

	return r
}
