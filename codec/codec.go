// Package codec converts structured values to bytes for the data tier and
// back again.
//
// The default codec encodes with msgpack and wraps the payload in a small
// envelope:
//
//	+-------+-----+--------+-------+----------------+---------+
//	| "TC"  | ver | schema | flags | xxhash64(body) |  body   |
//	| 2 B   | 1 B | 2 B BE | 1 B   | 8 B BE         |  ...    |
//	+-------+-----+--------+-------+----------------+---------+
//
// Bodies at or above the compression threshold are snappy-compressed when
// that makes them smaller (flag bit 0). Decoding verifies magic, envelope
// version, schema version and checksum before touching the body, and
// rejects fields the target type does not declare, so bytes written by an
// older schema fail cleanly instead of half-populating a value.
package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec is a two-way conversion between a value and bytes.
// Implementations must be deterministic and must report failures as
// errors, never panics.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes data into v, which must be a non-nil pointer.
	Unmarshal(data []byte, v any) error
}

var (
	// ErrCorrupt marks payloads with a bad envelope or checksum.
	ErrCorrupt = errors.New("codec: corrupt payload")
	// ErrSchemaMismatch marks payloads written under another schema version.
	ErrSchemaMismatch = errors.New("codec: schema version mismatch")
)

// DefaultCompressThreshold is the body size from which compression is tried.
const DefaultCompressThreshold = 4 << 10

const (
	magic0, magic1  = 'T', 'C'
	envelopeVersion = 1
	headerSize      = 2 + 1 + 2 + 1 + 8

	flagSnappy = 1 << 0
)

// Option configures the msgpack codec.
type Option func(*msgpackCodec)

// WithSchemaVersion stamps payloads with v and rejects payloads stamped
// with anything else. Bump it whenever cached types change shape.
func WithSchemaVersion(v uint16) Option {
	return func(c *msgpackCodec) { c.schema = v }
}

// WithCompressThreshold sets the minimum body size for snappy compression.
// n <= 0 disables compression.
func WithCompressThreshold(n int) Option {
	return func(c *msgpackCodec) { c.compressAt = n }
}

// WithStructTag makes msgpack honour the given struct tag (default "json",
// so bundled records need only one set of tags).
func WithStructTag(tag string) Option {
	return func(c *msgpackCodec) { c.tag = tag }
}

type msgpackCodec struct {
	schema     uint16
	compressAt int
	tag        string
}

var _ Codec = (*msgpackCodec)(nil)

// Msgpack returns the default envelope codec.
func Msgpack(opts ...Option) Codec {
	c := &msgpackCodec{
		schema:     1,
		compressAt: DefaultCompressThreshold,
		tag:        "json",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *msgpackCodec) Name() string { return "msgpack" }

func (c *msgpackCodec) Marshal(v any) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.Newf("codec: marshal %T panicked: %v", v, r)
		}
	}()

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if c.tag != "" {
		enc.SetCustomStructTag(c.tag)
	}
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrapf(err, "codec: marshal %T", v)
	}

	body := buf.Bytes()
	var flags byte
	if c.compressAt > 0 && len(body) >= c.compressAt {
		if z := snappy.Encode(nil, body); len(z) < len(body) {
			body = z
			flags |= flagSnappy
		}
	}

	out = make([]byte, headerSize+len(body))
	out[0], out[1] = magic0, magic1
	out[2] = envelopeVersion
	binary.BigEndian.PutUint16(out[3:5], c.schema)
	out[5] = flags
	binary.BigEndian.PutUint64(out[6:14], xxhash.Sum64(body))
	copy(out[headerSize:], body)
	return out, nil
}

func (c *msgpackCodec) Unmarshal(data []byte, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Mark(errors.Newf("codec: unmarshal into %T panicked: %v", v, r), ErrCorrupt)
		}
	}()

	if len(data) < headerSize || data[0] != magic0 || data[1] != magic1 {
		return errors.Wrapf(ErrCorrupt, "bad envelope (%d bytes)", len(data))
	}
	if data[2] != envelopeVersion {
		return errors.Wrapf(ErrCorrupt, "unknown envelope version %d", data[2])
	}
	if got := binary.BigEndian.Uint16(data[3:5]); got != c.schema {
		return errors.Wrapf(ErrSchemaMismatch, "payload schema %d, want %d", got, c.schema)
	}
	flags := data[5]
	body := data[headerSize:]
	if sum := binary.BigEndian.Uint64(data[6:14]); sum != xxhash.Sum64(body) {
		return errors.Wrap(ErrCorrupt, "checksum mismatch")
	}
	if flags&flagSnappy != 0 {
		raw, err := snappy.Decode(nil, body)
		if err != nil {
			return errors.Mark(errors.Wrap(err, "codec: snappy"), ErrCorrupt)
		}
		body = raw
	}

	dec := msgpack.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields(true)
	if c.tag != "" {
		dec.SetCustomStructTag(c.tag)
	}
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(err, "codec: unmarshal into %T", v)
	}
	return nil
}
