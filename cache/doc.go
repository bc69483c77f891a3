// Package cache is a process-wide, cost-accounted cache with three
// independent tiers and a cache-aside loader.
//
// Tiers:
//   - image:  decoded images, cost = size of a PNG re-encoding
//   - data:   byte buffers and codec-encoded structured values, cost = length
//   - object: in-process references, bounded by entry count only
//
// Each tier is a tier.Tier: an LRU container with an entry count limit, an
// aggregate cost limit and a cost ledger, all serialized by one lock per
// tier. Tiers are independent; no operation locks more than one at a time.
//
// Reads through Image, Data, GetObject and GetStructured count one hit or
// one miss each, so Stats().Requests() equals the number of reads issued
// since start or since ResetStats.
//
// GetOrLoad implements cache-aside loading for the stores:
//
//	spells, err := cache.GetOrLoad(ctx, m, cache.Spells.Key(),
//		source.JSON[Spell](bundle, "spells.json"), nil)
//
// At most one source load per key is in flight at a time; every concurrent
// caller for that key receives the same value or the same error, and a
// failed load is never cached.
//
// Memory pressure: Attach a pressure.Signal and the manager drops every
// entry of every tier, synchronously, whenever the signal fires. Hit and
// miss counters survive.
package cache
