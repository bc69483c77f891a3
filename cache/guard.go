package cache

import "sync"

// loadGuard orders GetOrLoad stores against data-tier writes. A write or
// clear that lands while a load is in flight marks that load stale, and a
// stale load does not store its result. Writers hold mu across the mark
// and the tier mutation; a load holds it across its check and store.
type loadGuard struct {
	mu      sync.Mutex
	loading map[string]*ticket
}

// ticket is one in-flight load. stale is guarded by loadGuard.mu.
type ticket struct {
	stale bool
}

// begin registers a load of key. GetOrLoad runs at most one load per key.
func (g *loadGuard) begin(key string) *ticket {
	t := &ticket{}
	g.mu.Lock()
	if g.loading == nil {
		g.loading = make(map[string]*ticket)
	}
	g.loading[key] = t
	g.mu.Unlock()
	return t
}

func (g *loadGuard) end(key string, t *ticket) {
	g.mu.Lock()
	if g.loading[key] == t {
		delete(g.loading, key)
	}
	g.mu.Unlock()
}

// commit runs store unless a write to key happened since begin.
func (g *loadGuard) commit(t *ticket, store func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.stale {
		return false, nil
	}
	return true, store()
}

// write runs mutate after marking the in-flight load of key stale.
func (g *loadGuard) write(key string, mutate func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t := g.loading[key]; t != nil {
		t.stale = true
	}
	return mutate()
}

// writeMatching is write for every in-flight load whose key matches.
func (g *loadGuard) writeMatching(match func(string) bool, mutate func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, t := range g.loading {
		if match(k) {
			t.stale = true
		}
	}
	mutate()
}

// inFlight reports how many loads are registered.
func (g *loadGuard) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.loading)
}
