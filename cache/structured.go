package cache

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/tiercache/codec"
	"github.com/IvanBrykalov/tiercache/tier"
)

// SetStructured encodes v with the manager's codec and stores the bytes in
// the data tier under key. Encode failures are counted, logged and
// returned marked ErrEncode; nothing is stored in that case.
func SetStructured[T any](m *Manager, key string, v T) error {
	return setStructured(m, m.codec, key, v, m.opt.DefaultTTL)
}

// SetStructuredWithTTL is SetStructured with a per-entry expiration.
func SetStructuredWithTTL[T any](m *Manager, key string, v T, ttl time.Duration) error {
	return setStructured(m, m.codec, key, v, ttl)
}

// GetStructured decodes the bytes stored under key into a T. Bytes that do
// not decode (corruption, schema drift) are removed and the read counts as
// a miss.
func GetStructured[T any](m *Manager, key string) (T, bool) {
	return getStructured[T](m, m.codec, key)
}

func setStructured[T any](m *Manager, c codec.Codec, key string, v T, ttl time.Duration) error {
	b, err := encodeStructured(m, c, key, v)
	if err != nil {
		return err
	}
	return m.guard.write(key, func() error { return m.putData(key, b, ttl) })
}

func encodeStructured[T any](m *Manager, c codec.Codec, key string, v T) ([]byte, error) {
	if m.closed.Load() {
		return nil, errors.Wrapf(ErrClosed, "cache structured %q", key)
	}
	b, err := c.Marshal(v)
	if err != nil {
		m.encodeFailures.Add(1)
		m.metrics.CodecError("encode")
		err = errors.Mark(errors.Wrapf(err, "encode %q with %s", key, c.Name()), ErrEncode)
		level.Warn(m.logger).Log("msg", "encode failed, value not cached", "key", key, "err", err)
		return nil, err
	}
	return b, nil
}

func getStructured[T any](m *Manager, c codec.Codec, key string) (T, bool) {
	b, ok := m.data.Get(key)
	if !ok {
		m.record(tier.Data, false)
		var zero T
		return zero, false
	}
	v, err := decode[T](c, b)
	if err != nil {
		m.dropUndecodable(key, err)
		m.record(tier.Data, false)
		return v, false
	}
	m.record(tier.Data, true)
	return v, true
}

// peekStructured is getStructured without recency or hit/miss accounting.
func peekStructured[T any](m *Manager, c codec.Codec, key string) (T, bool) {
	b, ok := m.data.Peek(key)
	if !ok {
		var zero T
		return zero, false
	}
	v, err := decode[T](c, b)
	if err != nil {
		m.dropUndecodable(key, err)
		return v, false
	}
	return v, true
}

func decode[T any](c codec.Codec, b []byte) (T, error) {
	var v T
	if err := c.Unmarshal(b, &v); err != nil {
		var zero T
		return zero, errors.Mark(err, ErrDecode)
	}
	return v, nil
}

func (m *Manager) dropUndecodable(key string, err error) {
	m.data.Remove(key)
	m.reportSize(m.data)
	m.decodeFailures.Add(1)
	m.metrics.CodecError("decode")
	level.Warn(m.logger).Log("msg", "decode failed, entry dropped", "key", key, "err", err)
}
