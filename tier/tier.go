// Package tier implements a bounded, cost-aware LRU container.
//
// A Tier enforces two independent caps, an entry count limit and an
// aggregate cost limit, and evicts least-recently-used entries until both
// hold after every write. Per-key cost is kept in a Ledger owned by the
// tier, so cost accounting never depends on the stored payload type.
//
// All methods are safe for concurrent use. A single mutex serializes every
// mutation of the entry map, the recency list, the recency counter and the
// ledger, so no caller can observe them disagreeing.
package tier

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/IvanBrykalov/tiercache/internal/assert"
	"github.com/IvanBrykalov/tiercache/policy"
	"github.com/IvanBrykalov/tiercache/policy/lru"
)

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Tier.
type Options[V any] struct {
	// Kind labels the tier in errors, stats and metrics.
	Kind Kind

	// CountLimit is the maximum number of resident entries. Must be > 0.
	CountLimit int

	// CostLimit is the maximum aggregate cost. <= 0 disables the cost cap.
	CostLimit int64

	// Policy orders the recency list; nil => LRU.
	Policy policy.Policy

	// Clock overrides the time source used for TTLs. Nil => time.Now().
	Clock Clock

	// OnEvict is called after the tier lock is released, once per entry
	// removed by the eviction loop or by TTL expiry. Explicit Remove and
	// Clear do not trigger it.
	OnEvict func(key string, reason EvictReason)
}

// Snapshot is a point-in-time view of a tier's occupancy.
type Snapshot struct {
	Kind       Kind
	Count      int
	Cost       int64
	CountLimit int
	CostLimit  int64
	Evictions  uint64
}

// Tier is a bounded container with LRU eviction and a cost ledger.
type Tier[V any] struct {
	// ---- guarded by mu ----
	mu        sync.Mutex
	m         map[string]*node[V]
	head      *node[V] // most recent
	tail      *node[V] // least recent
	ledger    Ledger
	evictions uint64

	pol policy.TierPolicy
	opt Options[V]
}

type eviction struct {
	key    string
	reason EvictReason
}

// New constructs a Tier. It panics if CountLimit is not positive.
func New[V any](opt Options[V]) *Tier[V] {
	if opt.CountLimit <= 0 {
		panic("tier: CountLimit must be > 0")
	}
	if opt.Policy == nil {
		opt.Policy = lru.New()
	}
	t := &Tier[V]{
		m:      make(map[string]*node[V], opt.CountLimit),
		ledger: newLedger(opt.CountLimit),
		opt:    opt,
	}
	t.pol = opt.Policy.New(tierHooks[V]{t: t})
	return t
}

// Kind returns the tier's kind.
func (t *Tier[V]) Kind() Kind { return t.opt.Kind }

// Put inserts or overwrites key with no expiration.
// See PutWithTTL.
func (t *Tier[V]) Put(key string, v V, cost int64) error {
	return t.PutWithTTL(key, v, cost, 0)
}

// PutWithTTL inserts or overwrites key. An overwrite replaces the ledger
// cost of the key rather than adding to it. The entry becomes the most
// recently used one and the eviction loop then runs until both limits
// hold; an entry larger than CostLimit on its own is evicted as well.
//
// A negative cost is rejected with an error marked ErrInvalidCost.
// A non-positive ttl disables expiration for this entry.
func (t *Tier[V]) PutWithTTL(key string, v V, cost int64, ttl time.Duration) error {
	if cost < 0 {
		err := errors.Mark(
			errors.AssertionFailedf("tier %s: negative cost %d for key %q", t.opt.Kind, cost, key),
			ErrInvalidCost,
		)
		assert.Fail(err)
		return err
	}
	exp := t.deadline(ttl)

	t.mu.Lock()
	if n, ok := t.m[key]; ok {
		n.val = v
		n.exp = exp
		t.ledger.set(key, cost)
		t.pol.OnUpdate(n)
	} else {
		n := &node[V]{key: key, val: v, exp: exp}
		t.m[key] = n
		t.ledger.set(key, cost)
		t.pol.OnAdd(n)
	}
	evicted := t.enforceLimitsLocked()
	t.mu.Unlock()

	t.notify(evicted)
	return nil
}

// Get returns the value for key and refreshes its recency.
// Expired entries are dropped and reported as absent.
func (t *Tier[V]) Get(key string) (V, bool) {
	var zero V

	t.mu.Lock()
	n, ok := t.m[key]
	if !ok {
		t.mu.Unlock()
		return zero, false
	}
	if t.expiredLocked(n) {
		t.evictLocked(n)
		t.mu.Unlock()
		t.notify([]eviction{{key: key, reason: EvictTTL}})
		return zero, false
	}
	t.pol.OnGet(n)
	v := n.val
	t.mu.Unlock()
	return v, true
}

// Peek returns the value for key without touching its recency.
// Expired entries are reported as absent but left for Get to drop.
func (t *Tier[V]) Peek(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.m[key]
	if !ok || t.expiredLocked(n) {
		var zero V
		return zero, false
	}
	return n.val, true
}

// Remove deletes key if present and reports whether it was.
func (t *Tier[V]) Remove(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.m[key]
	if !ok {
		return false
	}
	t.dropLocked(n)
	return true
}

// RemoveFunc deletes every key for which match returns true and returns
// how many were removed. match runs under the tier lock.
func (t *Tier[V]) RemoveFunc(match func(key string) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for n := t.head; n != nil; {
		next := n.next
		if match(n.key) {
			t.dropLocked(n)
			removed++
		}
		n = next
	}
	return removed
}

// Clear drops every entry and resets count and cost to zero.
// It returns the number of entries dropped.
func (t *Tier[V]) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.m)
	t.m = make(map[string]*node[V], t.opt.CountLimit)
	t.head, t.tail = nil, nil
	t.ledger.reset()
	return n
}

// Len returns the number of resident entries.
func (t *Tier[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// Cost returns the aggregate cost of resident entries.
func (t *Tier[V]) Cost() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.Total()
}

// Ledger returns a copy of the key->cost ledger.
func (t *Tier[V]) Ledger() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.snapshot()
}

// Keys returns resident keys from most to least recently used.
func (t *Tier[V]) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.m))
	for n := t.head; n != nil; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats returns a consistent snapshot of occupancy and limits.
func (t *Tier[V]) Stats() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		Kind:       t.opt.Kind,
		Count:      len(t.m),
		Cost:       t.ledger.Total(),
		CountLimit: t.opt.CountLimit,
		CostLimit:  t.opt.CostLimit,
		Evictions:  t.evictions,
	}
}

// -------------------- internals (mu held) --------------------

func (t *Tier[V]) expiredLocked(n *node[V]) bool {
	if n.exp == 0 {
		return false
	}
	return t.now() > n.exp
}

func (t *Tier[V]) now() int64 {
	if t.opt.Clock != nil {
		return t.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (t *Tier[V]) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return t.now() + int64(ttl)
}

// enforceLimitsLocked evicts from the tail until both caps hold.
func (t *Tier[V]) enforceLimitsLocked() []eviction {
	var out []eviction
	for len(t.m) > t.opt.CountLimit && t.tail != nil {
		out = append(out, eviction{key: t.tail.key, reason: EvictCount})
		t.evictLocked(t.tail)
	}
	if t.opt.CostLimit > 0 {
		for t.ledger.Total() > t.opt.CostLimit && t.tail != nil {
			out = append(out, eviction{key: t.tail.key, reason: EvictCost})
			t.evictLocked(t.tail)
		}
	}
	return out
}

func (t *Tier[V]) evictLocked(n *node[V]) {
	t.dropLocked(n)
	t.evictions++
}

// dropLocked unlinks n and removes it from the map and the ledger.
func (t *Tier[V]) dropLocked(n *node[V]) {
	t.pol.OnRemove(n)
	t.unlink(n)
	delete(t.m, n.key)
	t.ledger.remove(n.key)
}

func (t *Tier[V]) notify(evicted []eviction) {
	if cb := t.opt.OnEvict; cb != nil {
		for _, e := range evicted {
			cb(e.key, e.reason)
		}
	}
}

// pushFront links n at the head in O(1).
func (t *Tier[V]) pushFront(n *node[V]) {
	n.prev = nil
	n.next = t.head
	if t.head != nil {
		t.head.prev = n
	}
	t.head = n
	if t.tail == nil {
		t.tail = n
	}
}

// moveToFront relinks n at the head in O(1).
func (t *Tier[V]) moveToFront(n *node[V]) {
	if n == t.head {
		return
	}
	t.unlink(n)
	t.pushFront(n)
}

// unlink detaches n from the list in O(1).
func (t *Tier[V]) unlink(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if t.head == n {
		t.head = n.next
	}
	if t.tail == n {
		t.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// -------------------- policy hooks --------------------

// tierHooks adapts the tier's list operations to policy.Hooks.
type tierHooks[V any] struct{ t *Tier[V] }

func (h tierHooks[V]) MoveToFront(e policy.Entry) { h.t.moveToFront(e.(*node[V])) }
func (h tierHooks[V]) PushFront(e policy.Entry)   { h.t.pushFront(e.(*node[V])) }
func (h tierHooks[V]) Remove(e policy.Entry)      { h.t.unlink(e.(*node[V])) }
