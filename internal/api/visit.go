package api

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxVisits bounds the number of remembered (visit, certificate) pairs.
const maxVisits = 10_000

type visitKey struct {
	visit  string
	certID string
}

// visitGuard remembers which (visit, certificate) pairs were already counted
// so a page visit increments views at most once per ttl.
type visitGuard struct {
	mu   sync.Mutex
	seen *expirable.LRU[visitKey, struct{}]
}

func newVisitGuard(ttl time.Duration) *visitGuard {
	return &visitGuard{seen: expirable.NewLRU[visitKey, struct{}](maxVisits, nil, ttl)}
}

// first reports whether visit has not yet counted certID. An empty visit id
// always counts.
func (g *visitGuard) first(visit, certID string) bool {
	if visit == "" {
		return true
	}
	key := visitKey{visit: visit, certID: certID}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen.Peek(key); ok {
		return false
	}
	g.seen.Add(key, struct{}{})
	return true
}

// forget releases a claim whose increment failed so a retry can count.
func (g *visitGuard) forget(visit, certID string) {
	if visit == "" {
		return
	}
	g.seen.Remove(visitKey{visit: visit, certID: certID})
}
