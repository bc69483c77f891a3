package cache

import (
	"fmt"
	"strings"

	"github.com/IvanBrykalov/tiercache/tier"
)

// Stats is an immutable snapshot of the manager's occupancy and counters.
type Stats struct {
	Images  tier.Snapshot
	Data    tier.Snapshot
	Objects tier.Snapshot

	Hits   uint64
	Misses uint64

	// Loads counts source loads run by GetOrLoad; LoadFailures those that
	// failed or timed out. SharedLoads counts callers that joined a load
	// already in flight instead of starting one.
	Loads        uint64
	LoadFailures uint64
	SharedLoads  uint64

	EncodeFailures uint64
	DecodeFailures uint64
}

// Requests is the number of counted reads (hits + misses).
func (s Stats) Requests() uint64 { return s.Hits + s.Misses }

// HitRate is Hits/Requests, or 0 before the first read.
func (s Stats) HitRate() float64 {
	total := s.Requests()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MemoryBytes is the aggregate recorded cost of all tiers.
func (s Stats) MemoryBytes() int64 {
	return s.Images.Cost + s.Data.Cost + s.Objects.Cost
}

// Tier returns the snapshot of one tier.
func (s Stats) Tier(k tier.Kind) tier.Snapshot {
	switch k {
	case tier.Image:
		return s.Images
	case tier.Data:
		return s.Data
	default:
		return s.Objects
	}
}

const mb = 1024 * 1024

// String renders the snapshot for diagnostics screens and the CLI.
func (s Stats) String() string {
	var b strings.Builder
	b.WriteString("Cache Statistics:\n")
	for _, k := range tier.Kinds() {
		t := s.Tier(k)
		fmt.Fprintf(&b, "- %-7s %d/%d entries, %.2f MB\n", k.String()+":", t.Count, t.CountLimit, float64(t.Cost)/mb)
	}
	fmt.Fprintf(&b, "- Memory: %.2f MB\n", float64(s.MemoryBytes())/mb)
	fmt.Fprintf(&b, "- Hit rate: %.1f%%\n", s.HitRate()*100)
	fmt.Fprintf(&b, "- Requests: %d (hits %d, misses %d)\n", s.Requests(), s.Hits, s.Misses)
	fmt.Fprintf(&b, "- Loads: %d (failed %d, shared %d)", s.Loads, s.LoadFailures, s.SharedLoads)
	return b.String()
}

// Stats returns a snapshot of every tier and counter. Each tier snapshot
// is internally consistent; counters are read individually.
func (m *Manager) Stats() Stats {
	return Stats{
		Images:         m.images.Stats(),
		Data:           m.data.Stats(),
		Objects:        m.objects.Stats(),
		Hits:           m.hits.Load(),
		Misses:         m.misses.Load(),
		Loads:          m.loads.Load(),
		LoadFailures:   m.loadFailures.Load(),
		SharedLoads:    m.sharedLoads.Load(),
		EncodeFailures: m.encodeFailures.Load(),
		DecodeFailures: m.decodeFailures.Load(),
	}
}

// HitRate is hits / (hits + misses), 0 before the first read.
func (m *Manager) HitRate() float64 {
	hits := m.hits.Load()
	total := hits + m.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Summary is Stats().String().
func (m *Manager) Summary() string { return m.Stats().String() }

// ResetStats zeroes every counter. Tier contents are untouched.
func (m *Manager) ResetStats() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.loads.Store(0)
	m.loadFailures.Store(0)
	m.sharedLoads.Store(0)
	m.encodeFailures.Store(0)
	m.decodeFailures.Store(0)
}
