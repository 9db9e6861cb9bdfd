package pipeline

import (
	"sync"

	"github.com/starford/certhub/internal/models"
)

// Memo caches the last derived view, keyed by collection version and
// parameter digest. It is safe for concurrent use.
type Memo struct {
	mu      sync.Mutex
	version uint64
	key     string
	view    []models.Certificate
	valid   bool

	hits, misses uint64
}

// View returns Apply(certs, p), reusing the cached result when version and
// parameters are unchanged. The returned slice must not be modified.
func (m *Memo) View(version uint64, certs []models.Certificate, p Params) []models.Certificate {
	key := p.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && m.version == version && m.key == key {
		m.hits++
		return m.view
	}
	m.misses++
	m.view = Apply(certs, p)
	m.version = version
	m.key = key
	m.valid = true
	return m.view
}

// Invalidate drops the cached view.
func (m *Memo) Invalidate() {
	m.mu.Lock()
	m.valid = false
	m.view = nil
	m.mu.Unlock()
}

// Stats returns the number of cache hits and misses.
func (m *Memo) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}
