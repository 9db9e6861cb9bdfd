// Package auth holds the signed-in user state. Login accepts any credentials
// and signs in the demo user; it is a placeholder, not a security boundary.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/kvstore"
	"github.com/starford/certhub/internal/latency"
	"github.com/starford/certhub/internal/models"
)

// StorageKey is the persisted-flag key.
const StorageKey = "certify_hub_auth"

// DefaultDemoUserID is the user every login signs in as.
const DefaultDemoUserID = "u_001"

// Users is the user table the provider reads and updates.
type Users interface {
	Get(id string) (models.User, error)
	Update(id string, patch models.ProfilePatch) (models.User, error)
}

// persisted is the JSON stored under StorageKey.
type persisted struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	UserID          string `json:"userId"`
	Timestamp       int64  `json:"timestamp"`
}

// State is the observable auth state.
type State struct {
	User          *models.User `json:"user"`
	Authenticated bool         `json:"isAuthenticated"`
	Loading       bool         `json:"isLoading"`
}

// Option configures a Provider.
type Option func(*Provider)

// WithLatency sets the simulated latency strategy.
func WithLatency(sim latency.Simulator) Option {
	return func(p *Provider) { p.sim = sim }
}

// WithDemoUser sets the user id that Login signs in.
func WithDemoUser(id string) Option {
	return func(p *Provider) { p.demoUserID = id }
}

// WithSigningKey enables session tokens signed with secret.
func WithSigningKey(secret string, ttl time.Duration) Option {
	return func(p *Provider) {
		p.secret = []byte(secret)
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// Provider is the auth state container. It is safe for concurrent use.
type Provider struct {
	kv         kvstore.Provider
	users      Users
	sim        latency.Simulator
	demoUserID string
	secret     []byte
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu       sync.RWMutex
	user     *models.User
	inflight atomic.Int64
}

// New returns a signed-out provider.
func New(kv kvstore.Provider, users Users, opts ...Option) *Provider {
	p := &Provider{
		kv:         kv,
		users:      users,
		sim:        latency.None(),
		demoUserID: DefaultDemoUserID,
		ttl:        24 * time.Hour,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// State returns a snapshot of the auth state.
func (p *Provider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := State{Loading: p.inflight.Load() > 0}
	if p.user != nil {
		u := p.user.Clone()
		st.User = &u
		st.Authenticated = true
	}
	return st
}

// CurrentUser returns the signed-in user.
func (p *Provider) CurrentUser() (models.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return models.User{}, false
	}
	return p.user.Clone(), true
}

// Login signs in the demo user after the simulated delay. Credentials are
// ignored.
func (p *Provider) Login(ctx context.Context, _, _ string) (models.User, error) {
	p.inflight.Add(1)
	defer p.inflight.Add(-1)

	if err := p.sim.Wait(ctx, "login"); err != nil {
		return models.User{}, fmt.Errorf("auth: login: %w", err)
	}
	u, err := p.users.Get(p.demoUserID)
	if err != nil {
		return models.User{}, fmt.Errorf("auth: login: %w", err)
	}

	flag, err := json.Marshal(persisted{IsAuthenticated: true, UserID: u.ID, Timestamp: p.now().UnixMilli()})
	if err != nil {
		return models.User{}, fmt.Errorf("auth: encode flag: %w", err)
	}
	if err := p.kv.Set(ctx, StorageKey, string(flag)); err != nil {
		return models.User{}, fmt.Errorf("auth: persist flag: %w", err)
	}

	p.setUser(&u)
	p.logger.Info("auth: signed in", slog.String("user", u.ID))
	return u.Clone(), nil
}

// Logout clears the state and removes the persisted flag.
func (p *Provider) Logout(ctx context.Context) error {
	p.inflight.Add(1)
	defer p.inflight.Add(-1)

	if err := p.sim.Wait(ctx, "logout"); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	p.setUser(nil)
	if err := p.kv.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("auth: clear flag: %w", err)
	}
	return nil
}

// Restore signs the remembered user back in from the persisted flag. It
// reports whether a session was restored.
func (p *Provider) Restore(ctx context.Context) (bool, error) {
	p.inflight.Add(1)
	defer p.inflight.Add(-1)

	raw, ok, err := p.kv.Get(ctx, StorageKey)
	if err != nil {
		return false, fmt.Errorf("auth: restore: %w", err)
	}
	if !ok {
		return false, nil
	}
	var flag persisted
	if err := json.Unmarshal([]byte(raw), &flag); err != nil || !flag.IsAuthenticated || flag.UserID == "" {
		p.logger.Warn("auth: discarding malformed flag")
		_ = p.kv.Delete(ctx, StorageKey)
		return false, nil
	}
	u, err := p.users.Get(flag.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: restore: %w", err)
	}
	p.setUser(&u)
	return true, nil
}

// UpdateProfile merges patch onto the signed-in user and saves it to the user
// table. Author snapshots already embedded in certificates are not touched.
func (p *Provider) UpdateProfile(ctx context.Context, patch models.ProfilePatch) (models.User, error) {
	cur, ok := p.CurrentUser()
	if !ok {
		return models.User{}, apperr.ErrUnauthenticated
	}
	p.inflight.Add(1)
	defer p.inflight.Add(-1)

	if err := p.sim.Wait(ctx, "profile"); err != nil {
		return models.User{}, fmt.Errorf("auth: update profile: %w", err)
	}
	u, err := p.users.Update(cur.ID, patch)
	if err != nil {
		return models.User{}, fmt.Errorf("auth: update profile: %w", err)
	}
	p.setUser(&u)
	return u.Clone(), nil
}

// HasPermission reports whether the signed-in user holds permission.
func (p *Provider) HasPermission(permission string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Allowed(p.user, permission)
}

func (p *Provider) setUser(u *models.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u == nil {
		p.user = nil
		return
	}
	c := u.Clone()
	p.user = &c
}
