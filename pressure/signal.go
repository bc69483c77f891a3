// Package pressure delivers the host's low-memory notification to the
// components that hold releasable memory.
//
// A Signal is the notification itself: subscribers register a callback and
// Notify runs every callback synchronously on the notifying goroutine, so
// by the time Notify returns every subscriber has released what it could.
// A Watcher raises a Signal from system memory statistics for hosts that
// have no native low-memory event.
package pressure

import "sync"

// Signal is a no-payload broadcast. The zero value is ready to use.
type Signal struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func()
	// subscription order, so Notify is deterministic
	order []uint64
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is safe.
func (s *Signal) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[uint64]func())
	}
	id := s.next
	s.next++
	s.subs[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *Signal) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Notify invokes every subscriber in subscription order and returns once
// all of them have. Subscribers may call Subscribe or cancel from inside
// the callback; changes apply to the next Notify.
func (s *Signal) Notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of subscribers.
func (s *Signal) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
