// Package certstore holds the certificate collection together with the
// current filter, sort and page state, and the mutators that change it.
package certstore

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/moby/locker"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/checksum"
	"github.com/starford/certhub/internal/fixtures"
	"github.com/starford/certhub/internal/latency"
	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/pipeline"
)

// Messages stored in State.Error after a failed operation.
const (
	MsgLoadFailed   = "Failed to load certificates"
	MsgCreateFailed = "Failed to add certificate"
	MsgUpdateFailed = "Failed to update certificate"
	MsgDeleteFailed = "Failed to delete certificate"
)

// EventKind names a change to the collection.
type EventKind string

// Event kinds.
const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventLiked    EventKind = "liked"
	EventViewed   EventKind = "viewed"
	EventReloaded EventKind = "reloaded"
)

// EventSink is notified after every successful change.
type EventSink func(kind EventKind, id string)

// Observer is told the outcome of every mutator call.
type Observer func(op string, err error)

// Option configures a Store.
type Option func(*Store)

// WithLatency sets the simulated latency and fault strategy.
func WithLatency(sim latency.Simulator) Option {
	return func(s *Store) { s.sim = sim }
}

// WithPageSize sets the page size. Non-positive values keep the default.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithEventSink registers the change listener.
func WithEventSink(sink EventSink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithObserver registers the mutation outcome listener.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observe = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// State is the collection-wide status.
type State struct {
	Loading bool   `json:"isLoading"`
	Loaded  bool   `json:"loaded"`
	Error   string `json:"error,omitempty"`
}

// Page is one page of the derived view.
type Page struct {
	Items      []models.Certificate `json:"certificates"`
	Page       int                  `json:"currentPage"`
	PageSize   int                  `json:"itemsPerPage"`
	TotalPages int                  `json:"totalPages"`
	TotalCount int                  `json:"totalCount"`
	Params     pipeline.Params      `json:"params"`
}

// Store is the certificate state container. It is safe for concurrent use.
//
// The collection slice is copy-on-write: mutators build a new slice and swap
// it in, so readers may hold a snapshot without locking.
type Store struct {
	sim      latency.Simulator
	sink     EventSink
	observe  Observer
	logger   *slog.Logger
	pageSize int

	mu      sync.RWMutex
	certs   []models.Certificate
	version uint64
	params  pipeline.Params
	page    int
	errMsg  string
	loaded  bool

	inflight atomic.Int64
	memo     pipeline.Memo
	locks    *locker.Locker
}

// New returns an empty store. Call Load to populate it.
func New(opts ...Option) *Store {
	s := &Store{
		sim:      latency.None(),
		logger:   slog.Default(),
		pageSize: pipeline.DefaultPageSize,
		certs:    []models.Certificate{},
		params:   pipeline.DefaultParams(),
		page:     1,
		locks:    locker.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load fetches the initial collection from loader after the simulated delay.
// The returned seed carries the user table for other consumers.
func (s *Store) Load(ctx context.Context, loader fixtures.Loader) (fixtures.Seed, error) {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if err := s.sim.Wait(ctx, "load"); err != nil {
		s.fail(MsgLoadFailed, "load", err)
		return fixtures.Seed{}, err
	}
	seed, err := loader.Load(ctx)
	if err != nil {
		s.fail(MsgLoadFailed, "load", err)
		return fixtures.Seed{}, err
	}

	s.replace(seed.Certificates)
	s.mu.Lock()
	s.loaded = true
	s.errMsg = ""
	s.mu.Unlock()
	s.logger.Info("certstore: loaded", slog.Int("certificates", len(seed.Certificates)))
	return seed, nil
}

// Reload replaces the collection, for example after the seed file changed.
// The page is reset to 1.
func (s *Store) Reload(certs []models.Certificate) {
	s.replace(certs)
	s.emit(EventReloaded, "")
}

func (s *Store) replace(certs []models.Certificate) {
	next := make([]models.Certificate, 0, len(certs))
	for _, c := range certs {
		c = c.Clone()
		c.Normalize()
		next = append(next, c)
	}
	s.mu.Lock()
	s.certs = next
	s.version++
	s.page = 1
	s.mu.Unlock()
}

// State returns the loading flag and the last error message.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Loading: s.inflight.Load() > 0,
		Loaded:  s.loaded,
		Error:   s.errMsg,
	}
}

// ClearError resets the shared error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
}

// PageSize returns the configured page size.
func (s *Store) PageSize() int { return s.pageSize }

// All returns the whole collection in collection order.
func (s *Store) All() []models.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.certs)
}

// Len returns the collection size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.certs)
}

// Get returns the certificate with the given id.
func (s *Store) Get(id string) (models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.certs, id); i >= 0 {
		return s.certs[i].Clone(), nil
	}
	return models.Certificate{}, apperr.ErrNotFound
}

// ETag returns a digest of the certificate's current content.
func ETag(c models.Certificate) string {
	tag, err := checksum.ETag(c)
	if err != nil {
		return ""
	}
	return tag
}

// lockID serializes mutators on one certificate id across their simulated
// delay. Different ids proceed in parallel.
func (s *Store) lockID(id string) func() {
	s.locks.Lock(id)
	return func() { _ = s.locks.Unlock(id) }
}

func (s *Store) snapshot() ([]models.Certificate, uint64, pipeline.Params, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.certs, s.version, s.params, s.page
}

func (s *Store) emit(kind EventKind, id string) {
	if s.sink != nil {
		s.sink(kind, id)
	}
}

func (s *Store) report(op string, err error) {
	if s.observe != nil {
		s.observe(op, err)
	}
}

// fail records msg as the shared error unless the caller simply went away.
func (s *Store) fail(msg, op string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.logger.Warn("certstore: operation failed", slog.String("op", op), slog.String("error", err.Error()))
}

func indexOf(certs []models.Certificate, id string) int {
	return slices.IndexFunc(certs, func(c models.Certificate) bool { return c.ID == id })
}
