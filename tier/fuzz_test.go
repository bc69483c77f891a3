package tier

import (
	"strconv"
	"testing"
)

// Fuzz arbitrary put/get/remove/clear sequences and check after every step
// that the ledger agrees with the tier and that both caps hold.
func FuzzTier_LedgerConsistency(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	f.Add([]byte{0, 0, 0, 4, 4, 4, 1, 2, 255, 128, 64})
	f.Add([]byte("spells feats backgrounds monsters"))

	f.Fuzz(func(t *testing.T, ops []byte) {
		const countLimit, costLimit = 4, 300
		tr := newData(countLimit, costLimit)

		for i, b := range ops {
			key := "k" + strconv.Itoa(int(b>>3)%6)
			switch b % 8 {
			case 0, 1, 2, 3:
				if err := tr.Put(key, []byte{b}, int64(b)); err != nil {
					t.Fatalf("op %d: put: %v", i, err)
				}
			case 4, 5:
				tr.Get(key)
			case 6:
				tr.Remove(key)
			default:
				if b > 200 {
					tr.Clear()
				} else {
					tr.Peek(key)
				}
			}

			ledger := tr.Ledger()
			var sum int64
			for _, c := range ledger {
				sum += c
			}
			s := tr.Stats()
			if sum != s.Cost || len(ledger) != s.Count {
				t.Fatalf("op %d: ledger (sum=%d len=%d) disagrees with tier (cost=%d count=%d)",
					i, sum, len(ledger), s.Cost, s.Count)
			}
			if s.Count > countLimit || s.Cost > costLimit {
				t.Fatalf("op %d: limits exceeded: count=%d cost=%d", i, s.Count, s.Cost)
			}
		}
	})
}
