package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/tiercache/codec"
)

// Source loads the value of one cache key from its source of record.
type Source[T any] func(ctx context.Context) (T, error)

// GetOrLoad returns the value cached under key, loading it from src on a
// miss. At most one load per key runs at a time: concurrent callers for
// the same key wait for the in-flight load and share its value or error.
//
// A successful load is encoded with c (nil means the manager's codec) and
// stored in the data tier; an empty result is a valid value and is cached
// like any other. A failed load is returned marked ErrSourceLoad and is
// never cached, so the next call runs src again. If the value cannot be
// encoded it is still returned; the failure is logged and counted.
//
// A write or clear of key that completes while the load is in flight wins:
// the loaded value is still returned to the callers but not stored.
//
// Only the initial lookup counts towards hits and misses.
func GetOrLoad[T any](ctx context.Context, m *Manager, key string, src Source[T], c codec.Codec) (T, error) {
	if c == nil {
		c = m.codec
	}
	if v, ok := getStructured[T](m, c, key); ok {
		return v, nil
	}

	res, err, shared := m.pending.Do(ctx, key, func() (any, error) {
		t := m.guard.begin(key)
		defer m.guard.end(key, t)

		// A load or write for key may have finished between the miss and
		// registering this one.
		if v, ok := peekStructured[T](m, c, key); ok {
			return v, nil
		}
		return load(ctx, m, c, key, src, t)
	})
	if shared {
		m.sharedLoads.Add(1)
	}

	var zero T
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.Mark(
			errors.Newf("cache: load of %q produced %T, want %T", key, res, zero),
			ErrTypeMismatch,
		)
	}
	return v, nil
}

func load[T any](ctx context.Context, m *Manager, c codec.Codec, key string, src Source[T], t *ticket) (T, error) {
	if m.opt.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opt.LoadTimeout)
		defer cancel()
	}

	m.loads.Add(1)
	start := time.Now()
	v, err := runSource(ctx, src)
	took := time.Since(start)
	m.metrics.ObserveLoad(took, err)

	if err != nil {
		m.loadFailures.Add(1)
		err = errors.Mark(errors.Wrapf(err, "cache: load %q", key), ErrSourceLoad)
		level.Warn(m.logger).Log("msg", "source load failed", "key", key, "took", took, "err", err)
		var zero T
		return zero, err
	}
	level.Debug(m.logger).Log("msg", "source loaded", "key", key, "took", took)

	b, err := encodeStructured(m, c, key, v)
	if err != nil {
		if !errors.Is(err, ErrEncode) {
			level.Debug(m.logger).Log("msg", "loaded value not cached", "key", key, "err", err)
		}
		return v, nil
	}
	stored, err := m.guard.commit(t, func() error { return m.putData(key, b, m.opt.DefaultTTL) })
	switch {
	case err != nil:
		level.Debug(m.logger).Log("msg", "loaded value not cached", "key", key, "err", err)
	case !stored:
		level.Debug(m.logger).Log("msg", "loaded value superseded by a write", "key", key)
	}
	return v, nil
}

// runSource calls src, converting a panic into an error. When ctx can be
// cancelled, src runs on its own goroutine so that a source ignoring ctx
// cannot hold the load past its deadline.
func runSource[T any](ctx context.Context, src Source[T]) (T, error) {
	if ctx.Done() == nil {
		return callSource(ctx, src)
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := callSource(ctx, src)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func callSource[T any](ctx context.Context, src Source[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, errors.Newf("source panicked: %v", r)
		}
	}()
	return src(ctx)
}
