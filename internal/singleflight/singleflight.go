// Package singleflight is the pending-load registry used by the cache-aside
// loader: at most one in-flight call per key, with every concurrent caller
// for that key receiving the same result or the same error.
package singleflight

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// Group coalesces concurrent function calls for the same key K so that
// the supplied fn is executed at most once at a time per key.
//
// Concurrency notes:
//   - Checking for an in-flight call and registering a new one happen in a
//     single critical section, so two callers can never both become leader.
//   - The first caller for a key becomes the leader and runs fn on the
//     calling goroutine. Followers wait on that key's done channel only; no
//     global lock is held while waiting.
//   - The registry entry is deleted before the result is published, so a
//     caller arriving after completion starts a fresh call instead of
//     reading a stale one. A failed call is therefore never reused.
//   - Cancelling ctx in a follower unblocks only that follower; it does not
//     cancel the leader's fn.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
}

// Do runs fn once for the given key. Concurrent calls with the same key
// wait for the shared result; shared reports whether this caller joined a
// call led by someone else. A panic in fn is recovered and returned to the
// leader and every follower as an error.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err(), true
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = g.run(fn)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
	close(c.done)

	return c.val, c.err, false
}

func (g *Group[K, V]) run(fn func() (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			v, err = zero, errors.Newf("singleflight: load panicked: %v", r)
		}
	}()
	return fn()
}

// Pending reports whether a call for key is currently in flight.
func (g *Group[K, V]) Pending(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Len returns the number of keys with a call in flight.
func (g *Group[K, V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
