package tier

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm data tier.
// A single tier lock is shared by all workers, so this measures contention
// as well as the hot path.
func benchmarkMix(b *testing.B, readsPct int) {
	tr := newData(10_000, 64<<20)
	for i := 0; i < 5_000; i++ {
		_ = tr.Put("k:"+strconv.Itoa(i), []byte("v"), 1)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 14) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				tr.Get(k)
			} else {
				_ = tr.Put(k, []byte("v"), 1)
			}
			i++
		}
	})
}

func BenchmarkTier_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkTier_50r50w(b *testing.B) { benchmarkMix(b, 50) }
