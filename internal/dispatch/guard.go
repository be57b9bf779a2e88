package dispatch

import (
	"sync"
	"time"
)

// Guard prevents double-posting for a location within one dispatcher
// process. Entries expire after the TTL so a crash mid-cycle cannot wedge a
// location forever.
type Guard struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[string]time.Time
}

// NewGuard builds a guard with the given per-location hold time.
func NewGuard(ttl time.Duration) *Guard {
	return &Guard{
		ttl:     ttl,
		expires: make(map[string]time.Time),
	}
}

// TryAcquire reserves the location if it is not already held. Expired
// reservations are pruned lazily on access.
func (g *Guard) TryAcquire(locationID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if expiry, held := g.expires[locationID]; held && now.Before(expiry) {
		return false
	}
	g.expires[locationID] = now.Add(g.ttl)
	return true
}

// Release drops the reservation early, after a failed attempt, so the next
// cycle can retry without waiting out the TTL.
func (g *Guard) Release(locationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.expires, locationID)
}

// Prune removes expired reservations. Called once per cycle to keep the map
// from growing with locations that never come due again.
func (g *Guard) Prune(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for locationID, expiry := range g.expires {
		if !now.Before(expiry) {
			delete(g.expires, locationID)
		}
	}
}

// Len reports the number of live reservations.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.expires)
}
