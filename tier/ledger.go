package tier

// Ledger records the byte cost of every resident key of one tier.
//
// It is the only source of truth for how much space a key occupies and for
// the tier's current cost: the tier never keeps a separate running total.
// A Ledger is mutated only by its owning tier, under the tier lock, in the
// same critical section that changes the entry map, so for every observer
//
//	sum(costs) == Total()  and  Len() == tier.Len()
type Ledger struct {
	costs map[string]int64
	total int64
}

func newLedger(capacity int) Ledger {
	return Ledger{costs: make(map[string]int64, capacity)}
}

// set records cost for key, replacing (not adding to) any previous cost.
func (l *Ledger) set(key string, cost int64) (prev int64, existed bool) {
	prev, existed = l.costs[key]
	l.costs[key] = cost
	l.total += cost - prev
	return prev, existed
}

// remove forgets key and returns the cost it was holding.
func (l *Ledger) remove(key string) int64 {
	c, ok := l.costs[key]
	if !ok {
		return 0
	}
	delete(l.costs, key)
	l.total -= c
	return c
}

func (l *Ledger) reset() {
	l.costs = make(map[string]int64, len(l.costs))
	l.total = 0
}

// Total is the sum of all recorded costs.
func (l *Ledger) Total() int64 { return l.total }

// Len is the number of recorded keys.
func (l *Ledger) Len() int { return len(l.costs) }

// Cost returns the recorded cost of key.
func (l *Ledger) Cost(key string) (int64, bool) {
	c, ok := l.costs[key]
	return c, ok
}

func (l *Ledger) snapshot() map[string]int64 {
	out := make(map[string]int64, len(l.costs))
	for k, c := range l.costs {
		out[k] = c
	}
	return out
}
