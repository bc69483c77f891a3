// Package policy defines the seam between a tier and its eviction order.
//
// A tier owns the key->entry map, the cost ledger and an intrusive recency
// list (head = most recent, tail = least recent). A policy decides where an
// entry goes in that list on admission, read, overwrite and removal. The
// tier always evicts from the tail, so the policy fully determines which
// entry is the next victim.
package policy

// Entry is the view of a tier entry that a policy sees.
type Entry interface {
	Key() string
}

// Hooks expose O(1) list operations on the tier's recency list.
//
// Concurrency: all hook calls happen under the tier lock.
// Hooks only reorder the list; the tier does map and ledger bookkeeping.
type Hooks interface {
	// MoveToFront marks the entry as most recently used.
	MoveToFront(Entry)
	// PushFront links a newly admitted entry at the head.
	PushFront(Entry)
	// Remove unlinks the entry.
	Remove(Entry)
}

// TierPolicy is a policy instance bound to one tier's hooks.
// All methods are invoked under the tier lock.
type TierPolicy interface {
	OnAdd(Entry)
	OnGet(Entry)
	OnUpdate(Entry)
	OnRemove(Entry)
}

// Policy is a factory that binds a policy to a tier.
type Policy interface {
	New(Hooks) TierPolicy
}
