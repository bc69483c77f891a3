package tier

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

func newData(countLimit int, costLimit int64) *Tier[[]byte] {
	return New[[]byte](Options[[]byte]{Kind: Data, CountLimit: countLimit, CostLimit: costLimit})
}

// requireLedgerConsistent checks that the ledger and the tier agree.
func requireLedgerConsistent[V any](t *testing.T, tr *Tier[V]) {
	t.Helper()
	ledger := tr.Ledger()
	var sum int64
	for _, c := range ledger {
		sum += c
	}
	require.Equal(t, tr.Cost(), sum, "ledger sum must equal tier cost")
	require.Len(t, ledger, tr.Len(), "ledger size must equal tier count")
	require.Len(t, tr.Keys(), tr.Len(), "recency list must hold every entry")
}

func TestTier_PutGetRemove(t *testing.T) {
	t.Parallel()

	tr := newData(8, 0)
	require.NoError(t, tr.Put("spells", []byte("abc"), 3))

	v, ok := tr.Get("spells")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), v)

	assert.True(t, tr.Remove("spells"))
	assert.False(t, tr.Remove("spells"), "second remove is a no-op")
	_, ok = tr.Get("spells")
	assert.False(t, ok)
	assert.Zero(t, tr.Cost())
	requireLedgerConsistent(t, tr)
}

// Accessing "a" refreshes it; inserting "c" evicts the least recent ("b").
func TestTier_EvictionLRU(t *testing.T) {
	t.Parallel()

	var evicted []string
	tr := New[[]byte](Options[[]byte]{
		Kind:       Data,
		CountLimit: 2,
		OnEvict:    func(key string, r EvictReason) { evicted = append(evicted, key+":"+r.String()) },
	})

	require.NoError(t, tr.Put("a", nil, 1))
	require.NoError(t, tr.Put("b", nil, 1))
	_, ok := tr.Get("a")
	require.True(t, ok)
	require.NoError(t, tr.Put("c", nil, 1))

	_, ok = tr.Peek("b")
	assert.False(t, ok, "b must be evicted")
	assert.Equal(t, []string{"c", "a"}, tr.Keys())
	assert.Equal(t, []string{"b:count"}, evicted)
	assert.Equal(t, uint64(1), tr.Stats().Evictions)
	requireLedgerConsistent(t, tr)
}

func TestTier_OverwriteReplacesCost(t *testing.T) {
	t.Parallel()

	tr := newData(4, 0)
	require.NoError(t, tr.Put("k", []byte("v1"), 10))
	require.NoError(t, tr.Put("k", []byte("v2"), 30))

	assert.Equal(t, map[string]int64{"k": 30}, tr.Ledger())
	assert.Equal(t, int64(30), tr.Cost())
	assert.Equal(t, 1, tr.Len())
}

func TestTier_CostLimitEvictsOldest(t *testing.T) {
	t.Parallel()

	tr := newData(10, 100)
	require.NoError(t, tr.Put("a", nil, 40))
	require.NoError(t, tr.Put("b", nil, 40))
	require.NoError(t, tr.Put("c", nil, 40)) // 120 > 100 -> evict a

	assert.Equal(t, []string{"c", "b"}, tr.Keys())
	assert.Equal(t, int64(80), tr.Cost())
	requireLedgerConsistent(t, tr)
}

func TestTier_OversizedEntryEvictsItself(t *testing.T) {
	t.Parallel()

	tr := newData(10, 100)
	require.NoError(t, tr.Put("small", nil, 10))
	require.NoError(t, tr.Put("huge", nil, 500))

	assert.Zero(t, tr.Len())
	assert.Zero(t, tr.Cost())
	requireLedgerConsistent(t, tr)
}

func TestTier_NegativeCostRejected(t *testing.T) {
	t.Parallel()

	tr := newData(4, 0)
	require.NoError(t, tr.Put("k", []byte("keep"), 5))

	err := tr.Put("k", []byte("bad"), -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCost))

	v, ok := tr.Peek("k")
	require.True(t, ok)
	assert.Equal(t, []byte("keep"), v, "rejected put must not overwrite")
	assert.Equal(t, map[string]int64{"k": 5}, tr.Ledger())
}

func TestTier_TTLExpiry(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	var reasons []EvictReason
	tr := New[[]byte](Options[[]byte]{
		Kind:       Data,
		CountLimit: 4,
		Clock:      clk,
		OnEvict:    func(_ string, r EvictReason) { reasons = append(reasons, r) },
	})

	require.NoError(t, tr.PutWithTTL("tmp", []byte("x"), 1, 100*time.Millisecond))
	_, ok := tr.Get("tmp")
	require.True(t, ok, "fresh entry must hit")

	clk.add(200 * time.Millisecond)
	_, ok = tr.Peek("tmp")
	assert.False(t, ok, "peek must not report expired entries")
	assert.Equal(t, 1, tr.Len(), "peek leaves the expired entry in place")

	_, ok = tr.Get("tmp")
	assert.False(t, ok)
	assert.Zero(t, tr.Len())
	assert.Equal(t, []EvictReason{EvictTTL}, reasons)
	requireLedgerConsistent(t, tr)
}

func TestTier_PeekDoesNotRefresh(t *testing.T) {
	t.Parallel()

	tr := newData(2, 0)
	require.NoError(t, tr.Put("a", nil, 0))
	require.NoError(t, tr.Put("b", nil, 0))
	_, ok := tr.Peek("a")
	require.True(t, ok)
	require.NoError(t, tr.Put("c", nil, 0))

	_, ok = tr.Peek("a")
	assert.False(t, ok, "peek must not protect a from eviction")
}

func TestTier_RemoveFuncAndClear(t *testing.T) {
	t.Parallel()

	tr := newData(10, 0)
	for _, k := range []string{"characters", "characters:1", "characters:2", "spells"} {
		require.NoError(t, tr.Put(k, nil, 7))
	}

	n := tr.RemoveFunc(func(k string) bool { return k == "characters" || len(k) > 11 })
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"spells"}, tr.Keys())
	requireLedgerConsistent(t, tr)

	assert.Equal(t, 1, tr.Clear())
	assert.Zero(t, tr.Clear(), "clear twice is safe")
	s := tr.Stats()
	assert.Zero(t, s.Count)
	assert.Zero(t, s.Cost)
	requireLedgerConsistent(t, tr)
}

func TestTier_CapacityInvariant(t *testing.T) {
	t.Parallel()

	tr := newData(5, 50)
	for i := 0; i < 100; i++ {
		key := string(rune('a' + i%26))
		require.NoError(t, tr.Put(key, nil, int64(i%17)))
		s := tr.Stats()
		require.LessOrEqual(t, s.Count, 5)
		require.LessOrEqual(t, s.Cost, int64(50))
		requireLedgerConsistent(t, tr)
	}
}

func TestTier_ZeroCountLimitPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { New[int](Options[int]{Kind: Object}) })
}
