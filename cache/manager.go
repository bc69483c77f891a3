package cache

import (
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/tiercache/codec"
	"github.com/IvanBrykalov/tiercache/internal/singleflight"
	"github.com/IvanBrykalov/tiercache/internal/util"
	"github.com/IvanBrykalov/tiercache/pressure"
	"github.com/IvanBrykalov/tiercache/tier"
)

// Manager owns the image, data and object tiers, aggregates hit and miss
// counters across them and reacts to memory pressure by clearing all three.
//
// Construct one Manager at the composition root and hand it to every store
// that needs caching. All methods are safe for concurrent use.
type Manager struct {
	images  *tier.Tier[image.Image]
	data    *tier.Tier[[]byte]
	objects *tier.Tier[any]

	codec   codec.Codec
	logger  log.Logger
	metrics Metrics
	opt     Options

	hits           util.Counter
	misses         util.Counter
	loads          util.Counter
	loadFailures   util.Counter
	sharedLoads    util.Counter
	encodeFailures util.Counter
	decodeFailures util.Counter

	// pending is the in-flight load registry used by GetOrLoad.
	pending singleflight.Group[string, any]
	guard   loadGuard

	mu     sync.Mutex
	unsub  []func()
	closed atomic.Bool
}

// New builds a Manager from opt, applying the defaults documented on Options.
func New(opt Options) *Manager {
	if opt.Codec == nil {
		opt.Codec = codec.Msgpack()
	}
	if opt.Logger == nil {
		opt.Logger = log.NewNopLogger()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	opt.Images = opt.Images.orDefault(DefaultImageLimits)
	opt.Data = opt.Data.orDefault(DefaultDataLimits)
	opt.Objects = opt.Objects.orDefault(DefaultObjectLimits)

	m := &Manager{
		codec:   opt.Codec,
		logger:  log.With(opt.Logger, "component", "cache"),
		metrics: opt.Metrics,
		opt:     opt,
	}
	m.images = tier.New(tierOptions[image.Image](m, tier.Image, opt.Images))
	m.data = tier.New(tierOptions[[]byte](m, tier.Data, opt.Data))
	m.objects = tier.New(tierOptions[any](m, tier.Object, opt.Objects))
	return m
}

func tierOptions[V any](m *Manager, k tier.Kind, l TierLimits) tier.Options[V] {
	return tier.Options[V]{
		Kind:       k,
		CountLimit: l.CountLimit,
		CostLimit:  l.CostLimit,
		Clock:      m.opt.Clock,
		OnEvict: func(key string, reason tier.EvictReason) {
			m.metrics.Evict(k, reason)
			level.Debug(m.logger).Log("msg", "evicted", "tier", k, "key", key, "reason", reason)
		},
	}
}

// Codec returns the codec used for structured values.
func (m *Manager) Codec() codec.Codec { return m.codec }

// ---------------------------- images ----------------------------

// CacheImage stores img under key. Its cost is the size of a PNG encoding
// of the image.
func (m *Manager) CacheImage(img image.Image, key string) error {
	return m.CacheImageWithTTL(img, key, m.opt.DefaultTTL)
}

// CacheImageWithTTL is CacheImage with a per-entry expiration.
func (m *Manager) CacheImageWithTTL(img image.Image, key string, ttl time.Duration) error {
	if m.closed.Load() {
		return errors.Wrapf(ErrClosed, "cache image %q", key)
	}
	if img == nil {
		return errors.Newf("cache: nil image for key %q", key)
	}
	cost, err := EstimateImageCost(img)
	if err != nil {
		return errors.Wrapf(err, "cache: estimate cost of image %q", key)
	}
	if err := m.images.PutWithTTL(key, img, cost, ttl); err != nil {
		return err
	}
	m.reportSize(m.images)
	return nil
}

// Image returns the image stored under key. Counts a hit or a miss.
func (m *Manager) Image(key string) (image.Image, bool) {
	img, ok := m.images.Get(key)
	m.record(tier.Image, ok)
	return img, ok
}

// RemoveImage drops key from the image tier.
func (m *Manager) RemoveImage(key string) bool {
	ok := m.images.Remove(key)
	m.reportSize(m.images)
	return ok
}

// EstimateImageCost returns the byte length of img encoded as PNG.
func EstimateImageCost(img image.Image) (int64, error) {
	var w countingWriter
	if err := png.Encode(&w, img); err != nil {
		return 0, err
	}
	return w.n, nil
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// ---------------------------- data ----------------------------

// CacheData stores a copy of b under key with cost len(b).
func (m *Manager) CacheData(b []byte, key string) error {
	return m.CacheDataWithTTL(b, key, m.opt.DefaultTTL)
}

// CacheDataWithTTL is CacheData with a per-entry expiration.
func (m *Manager) CacheDataWithTTL(b []byte, key string, ttl time.Duration) error {
	if m.closed.Load() {
		return errors.Wrapf(ErrClosed, "cache data %q", key)
	}
	buf := make([]byte, len(b))
	copy(buf, b)
	return m.guard.write(key, func() error { return m.putData(key, buf, ttl) })
}

func (m *Manager) putData(key string, b []byte, ttl time.Duration) error {
	if err := m.data.PutWithTTL(key, b, int64(len(b)), ttl); err != nil {
		return err
	}
	m.reportSize(m.data)
	return nil
}

// Data returns the bytes stored under key. Counts a hit or a miss.
// The returned slice is shared with the cache and must not be modified.
func (m *Manager) Data(key string) ([]byte, bool) {
	b, ok := m.data.Get(key)
	m.record(tier.Data, ok)
	return b, ok
}

// RemoveData drops key from the data tier.
func (m *Manager) RemoveData(key string) bool {
	var ok bool
	_ = m.guard.write(key, func() error {
		ok = m.data.Remove(key)
		return nil
	})
	m.reportSize(m.data)
	return ok
}

// ---------------------------- objects ----------------------------

// CacheObject stores v by reference under key. The object tier is bounded
// by count only; entries are recorded with cost 0.
func (m *Manager) CacheObject(v any, key string) error {
	return m.CacheObjectWithTTL(v, key, m.opt.DefaultTTL)
}

// CacheObjectWithTTL is CacheObject with a per-entry expiration.
func (m *Manager) CacheObjectWithTTL(v any, key string, ttl time.Duration) error {
	if m.closed.Load() {
		return errors.Wrapf(ErrClosed, "cache object %q", key)
	}
	if err := m.objects.PutWithTTL(key, v, 0, ttl); err != nil {
		return err
	}
	m.reportSize(m.objects)
	return nil
}

// Object returns the value stored under key without a type check.
// Prefer GetObject. Counts a hit or a miss.
func (m *Manager) Object(key string) (any, bool) {
	v, ok := m.objects.Get(key)
	m.record(tier.Object, ok)
	return v, ok
}

// RemoveObject drops key from the object tier.
func (m *Manager) RemoveObject(key string) bool {
	ok := m.objects.Remove(key)
	m.reportSize(m.objects)
	return ok
}

// GetObject returns the object stored under key as a T. A stored value of
// another type is removed and the read counts as a miss.
func GetObject[T any](m *Manager, key string) (T, bool) {
	var zero T
	v, ok := m.objects.Get(key)
	if !ok {
		m.record(tier.Object, false)
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		m.objects.Remove(key)
		m.reportSize(m.objects)
		m.decodeFailures.Add(1)
		m.metrics.CodecError("decode")
		level.Warn(m.logger).Log(
			"msg", "object type mismatch, entry dropped",
			"key", key,
			"err", errors.Mark(errors.Newf("stored %T, want %T", v, zero), ErrDecode),
		)
		m.record(tier.Object, false)
		return zero, false
	}
	m.record(tier.Object, true)
	return t, true
}

// ---------------------------- invalidation ----------------------------

// Clear removes the channel's collection key and all of its sub-keys from
// every tier and returns how many entries were removed. Loads of those keys
// still in flight are not stored.
func (m *Manager) Clear(ch Channel) int {
	n := m.images.RemoveFunc(ch.owns) + m.objects.RemoveFunc(ch.owns)
	m.guard.writeMatching(ch.owns, func() { n += m.data.RemoveFunc(ch.owns) })
	m.reportSizes()
	level.Debug(m.logger).Log("msg", "channel cleared", "channel", ch, "removed", n)
	return n
}

// ClearTier drops every entry of one tier.
func (m *Manager) ClearTier(k tier.Kind) int {
	var n int
	switch k {
	case tier.Image:
		n = m.images.Clear()
	case tier.Data:
		m.guard.writeMatching(anyKey, func() { n = m.data.Clear() })
	case tier.Object:
		n = m.objects.Clear()
	}
	m.reportSizes()
	return n
}

// ClearAll drops every entry of every tier. Hit and miss counters are
// kept, and loads in flight are not stored. Calling it repeatedly is safe.
func (m *Manager) ClearAll() {
	n := m.images.Clear() + m.objects.Clear()
	m.guard.writeMatching(anyKey, func() { n += m.data.Clear() })
	m.reportSizes()
	level.Debug(m.logger).Log("msg", "all tiers cleared", "removed", n)
}

// ---------------------------- memory pressure ----------------------------

// HandleMemoryPressure clears every tier before returning.
func (m *Manager) HandleMemoryPressure() {
	before := m.images.Len() + m.data.Len() + m.objects.Len()
	level.Warn(m.logger).Log("msg", "memory pressure, clearing cache", "entries", before)
	m.ClearAll()
}

// Attach subscribes HandleMemoryPressure to sig until Close.
func (m *Manager) Attach(sig *pressure.Signal) {
	cancel := sig.Subscribe(m.HandleMemoryPressure)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		cancel()
		return
	}
	m.unsub = append(m.unsub, cancel)
}

// Close detaches from every pressure signal. Later writes fail with
// ErrClosed; reads and clears keep working on what is already cached.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Swap(true) {
		return nil
	}
	for _, cancel := range m.unsub {
		cancel()
	}
	m.unsub = nil
	return nil
}

// ---------------------------- helpers ----------------------------

func (m *Manager) record(k tier.Kind, hit bool) {
	if hit {
		m.hits.Add(1)
		m.metrics.Hit(k)
		return
	}
	m.misses.Add(1)
	m.metrics.Miss(k)
}

func anyKey(string) bool { return true }

type sizer interface{ Stats() tier.Snapshot }

func (m *Manager) reportSize(t sizer) {
	s := t.Stats()
	m.metrics.Size(s.Kind, s.Count, s.Cost)
}

func (m *Manager) reportSizes() {
	m.reportSize(m.images)
	m.reportSize(m.data)
	m.reportSize(m.objects)
}
