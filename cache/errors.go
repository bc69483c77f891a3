package cache

import "github.com/cockroachdb/errors"

// Error marks. Test with errors.Is; the concrete errors carry key and cause.
var (
	// ErrDecode: stored bytes (or a stored object) did not match the
	// requested type. Readers never see it; the entry is dropped and the
	// read counts as a miss.
	ErrDecode = errors.New("cache: decode failure")

	// ErrEncode: a value could not be serialized. The value is still
	// returned by GetOrLoad; only the cache store is skipped.
	ErrEncode = errors.New("cache: encode failure")

	// ErrSourceLoad: the source loader failed or timed out. Never cached.
	ErrSourceLoad = errors.New("cache: source load failed")

	// ErrTypeMismatch: a caller joined an in-flight load for the same key
	// but asked for a different type.
	ErrTypeMismatch = errors.New("cache: type mismatch")

	// ErrClosed: write on a closed Manager.
	ErrClosed = errors.New("cache: closed")
)
