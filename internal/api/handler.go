package api

import (
	"net/http"
	"time"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/auth"
	"github.com/starford/certhub/internal/certstore"
	"github.com/starford/certhub/internal/debounce"
	"github.com/starford/certhub/internal/directory"
	"github.com/starford/certhub/internal/fixtures"
	"github.com/starford/certhub/internal/manager"
	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/toast"
	"github.com/starford/certhub/internal/upload"
)

// DefaultSearchDebounce delays feed search updates.
const DefaultSearchDebounce = 300 * time.Millisecond

// Deps are the state containers the handlers call into.
type Deps struct {
	Store    *certstore.Store
	Auth     *auth.Provider
	Users    *directory.Directory
	Manager  *manager.Service
	Toasts   *toast.Queue
	Uploader upload.Uploader
	Catalog  fixtures.Catalog
}

// Option configures a Handler.
type Option func(*handlerConfig)

type handlerConfig struct {
	searchDelay time.Duration
	afterFunc   debounce.AfterFunc
	visitTTL    time.Duration
}

// WithSearchDebounce sets the delay applied to PUT /feed/search.
func WithSearchDebounce(d time.Duration) Option {
	return func(c *handlerConfig) { c.searchDelay = d }
}

// WithAfterFunc replaces the timer used by the search debouncer.
func WithAfterFunc(af debounce.AfterFunc) Option {
	return func(c *handlerConfig) { c.afterFunc = af }
}

// WithVisitTTL sets how long a visit id suppresses repeated view counts.
func WithVisitTTL(d time.Duration) Option {
	return func(c *handlerConfig) { c.visitTTL = d }
}

// Handler holds API route handlers.
type Handler struct {
	Deps
	search *debounce.Debouncer[string]
	visits *visitGuard
}

// NewHandler creates a Handler. Close must be called to stop the search
// debouncer.
func NewHandler(deps Deps, opts ...Option) *Handler {
	cfg := handlerConfig{
		searchDelay: DefaultSearchDebounce,
		afterFunc:   debounce.RealAfterFunc,
		visitTTL:    30 * time.Minute,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if deps.Catalog.Categories == nil {
		deps.Catalog = fixtures.DefaultCatalog()
	}

	h := &Handler{Deps: deps, visits: newVisitGuard(cfg.visitTTL)}
	h.search = debounce.New(deps.Store.Params().Query, cfg.searchDelay,
		debounce.WithAfterFunc[string](cfg.afterFunc),
		debounce.WithOnSettle(func(q string) { h.Store.SetQuery(q) }),
	)
	return h
}

// Close cancels a pending debounced search.
func (h *Handler) Close() {
	h.search.Stop()
}

// currentUser resolves the caller: the session subject when present,
// otherwise the signed-in user of the auth provider.
func (h *Handler) currentUser(r *http.Request) (models.User, bool) {
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		u, err := h.Users.Get(id)
		return u, err == nil
	}
	return h.Auth.CurrentUser()
}

// requirePermission rejects callers without permission: 401 when nobody is
// signed in, 403 otherwise.
func (h *Handler) requirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := h.currentUser(r)
			if !ok {
				writeError(w, permission, apperr.ErrUnauthenticated)
				return
			}
			if !auth.Allowed(&u, permission) {
				writeError(w, permission, apperr.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
