// Package stores is the caching glue between domain stores and the cache
// manager. Every store reads through cache.GetOrLoad on its channel key, so
// concurrent first reads share one source load and later reads are hits.
package stores

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/source"
)

// Warmer is a store that can populate its channel ahead of the first read.
type Warmer interface {
	Channel() cache.Channel
	Warm(ctx context.Context) error
}

// Collection is a read-only list loaded from the bundle, e.g. all spells.
type Collection[T any] struct {
	m   *cache.Manager
	ch  cache.Channel
	src cache.Source[[]T]
}

// NewCollection returns a collection cached under ch.Key().
func NewCollection[T any](m *cache.Manager, ch cache.Channel, src cache.Source[[]T]) *Collection[T] {
	return &Collection[T]{m: m, ch: ch, src: src}
}

// Channel returns the collection's channel.
func (c *Collection[T]) Channel() cache.Channel { return c.ch }

// All returns every record, loading them on first use.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	v, err := cache.GetOrLoad(ctx, c.m, c.ch.Key(), c.src, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "stores: %s", c.ch)
	}
	return v, nil
}

// Warm loads the collection if it is not cached yet.
func (c *Collection[T]) Warm(ctx context.Context) error {
	_, err := c.All(ctx)
	return err
}

// Invalidate drops the collection and its per-entity entries from the cache.
func (c *Collection[T]) Invalidate() int { return c.m.Clear(c.ch) }

// Setting is a single user value persisted in the blob store, e.g. the
// theme or a favorites list. Missing values read as the default.
type Setting[T any] struct {
	m     *cache.Manager
	blobs *source.BlobStore
	ch    cache.Channel
	def   T
}

// NewSetting returns a setting stored under ch.Key() in blobs.
func NewSetting[T any](m *cache.Manager, blobs *source.BlobStore, ch cache.Channel, def T) *Setting[T] {
	return &Setting[T]{m: m, blobs: blobs, ch: ch, def: def}
}

// Channel returns the setting's channel.
func (s *Setting[T]) Channel() cache.Channel { return s.ch }

// Load returns the current value.
func (s *Setting[T]) Load(ctx context.Context) (T, error) {
	v, err := cache.GetOrLoad(ctx, s.m, s.ch.Key(), s.read, nil)
	if err != nil {
		var zero T
		return zero, errors.Wrapf(err, "stores: %s", s.ch)
	}
	return v, nil
}

// Warm loads the setting if it is not cached yet.
func (s *Setting[T]) Warm(ctx context.Context) error {
	_, err := s.Load(ctx)
	return err
}

// Save persists v and then refreshes the cache, so a Load after Save
// returns v as it reads back from the blob store. A value that cannot be
// cached is still persisted; the stale cache entry is dropped instead.
func (s *Setting[T]) Save(ctx context.Context, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "stores: marshal %s", s.ch)
	}
	if err := s.blobs.Put(ctx, s.ch.Key(), b); err != nil {
		return errors.Wrapf(err, "stores: save %s", s.ch)
	}
	// Cache the persisted form so interface-typed settings hold the same
	// dynamic types before and after a restart.
	saved, err := s.decode(b)
	if err == nil {
		err = cache.SetStructured(s.m, s.ch.Key(), saved)
	}
	if err != nil {
		s.m.RemoveData(s.ch.Key())
	}
	return nil
}

// Reset deletes the persisted value and its cache entries.
func (s *Setting[T]) Reset(ctx context.Context) error {
	if err := s.blobs.Delete(ctx, s.ch.Key()); err != nil {
		return errors.Wrapf(err, "stores: reset %s", s.ch)
	}
	s.m.Clear(s.ch)
	return nil
}

func (s *Setting[T]) read(ctx context.Context) (T, error) {
	b, err := s.blobs.Get(ctx, s.ch.Key())
	if errors.Is(err, source.ErrNotFound) {
		return s.def, nil
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return s.decode(b)
}

func (s *Setting[T]) decode(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		var zero T
		return zero, errors.Wrapf(err, "decode persisted %s", s.ch)
	}
	return v, nil
}
