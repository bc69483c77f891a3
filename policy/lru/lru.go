// Package lru implements least-recently-used ordering for tiers.
package lru

import "github.com/IvanBrykalov/tiercache/policy"

// lru keeps the recency list ordered by last access: every admission,
// read and overwrite moves the entry to the head, so the tail is always
// the least recently used entry.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns the LRU policy factory.
func New() policy.Policy { return lruPolicy{} }

func (lruPolicy) New(h policy.Hooks) policy.TierPolicy {
	return &lru{h: h}
}

func (p *lru) OnAdd(e policy.Entry) { p.h.PushFront(e) }

// OnGet refreshes the entry; reads count as use.
func (p *lru) OnGet(e policy.Entry) { p.h.MoveToFront(e) }

// OnUpdate refreshes the entry; overwrites count as use.
func (p *lru) OnUpdate(e policy.Entry) { p.h.MoveToFront(e) }

// OnRemove has nothing to clean up; the tier unlinks the entry itself.
func (p *lru) OnRemove(_ policy.Entry) {}
