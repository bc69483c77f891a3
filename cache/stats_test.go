package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/tiercache/tier"
)

func TestStats_HitRate(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Stats{}.HitRate())
	assert.InDelta(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRate(), 1e-9)
	assert.Equal(t, uint64(4), Stats{Hits: 3, Misses: 1}.Requests())
}

func TestStats_RequestsMatchReads(t *testing.T) {
	t.Parallel()

	m := New(Options{})
	require.NoError(t, m.CacheData([]byte("x"), "d"))
	require.NoError(t, m.CacheObject(1, "o"))

	reads := 0
	for i := 0; i < 5; i++ {
		m.Data("d")
		m.Data("missing")
		m.Object("o")
		GetObject[int](m, "o")
		m.Image("missing")
		GetStructured[int](m, "missing")
		reads += 6
	}
	assert.Equal(t, uint64(reads), m.Stats().Requests())
}

func TestStats_Summary(t *testing.T) {
	t.Parallel()

	m := New(Options{})
	require.NoError(t, m.CacheData(make([]byte, 3<<20), "big"))
	m.Data("big")
	m.Data("missing")
	m.Data("missing")
	m.Data("big")

	got := m.Summary()
	assert.Contains(t, got, "Cache Statistics:")
	assert.Contains(t, got, "data:   1/200 entries, 3.00 MB")
	assert.Contains(t, got, "Memory: 3.00 MB")
	assert.Contains(t, got, "Hit rate: 50.0%")
	assert.Contains(t, got, "Requests: 4 (hits 2, misses 2)")
}

func TestStats_ResetKeepsEntries(t *testing.T) {
	t.Parallel()

	m := New(Options{})
	require.NoError(t, m.CacheData([]byte("x"), "d"))
	m.Data("d")
	m.Data("nope")

	m.ResetStats()
	s := m.Stats()
	assert.Zero(t, s.Requests())
	assert.Zero(t, m.HitRate())
	assert.Equal(t, 1, s.Tier(tier.Data).Count)
}
