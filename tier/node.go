package tier

// node is an intrusive doubly linked list element owned by a tier.
// Its cost lives in the tier's Ledger, not here.
type node[V any] struct {
	key string
	val V

	// head is most recent, tail is least recent.
	prev *node[V]
	next *node[V]

	// Absolute expiration deadline in UnixNano; zero means no TTL.
	exp int64
}

func (n *node[V]) Key() string { return n.key }
