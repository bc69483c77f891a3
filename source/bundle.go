// Package source holds the sources of record the cache loads from: the
// read-only resource bundle shipped with the application and a small
// key-value blob store for user data.
//
// Both sit on go-billy filesystems, so the same code runs against a
// directory on disk (osfs) or an in-memory tree (memfs) in tests.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/IvanBrykalov/tiercache/cache"
)

// maxLine bounds a single NDJSON record.
const maxLine = 4 << 20

// Bundle is a read-only tree of JSON resource files.
type Bundle struct {
	fs billy.Filesystem
}

// NewBundle wraps fs.
func NewBundle(fs billy.Filesystem) *Bundle { return &Bundle{fs: fs} }

// OpenBundle opens the directory dir as a bundle.
func OpenBundle(dir string) (*Bundle, error) {
	fs := osfs.New(dir)
	fi, err := fs.Stat(".")
	if err != nil {
		return nil, errors.Wrapf(err, "source: open bundle %s", dir)
	}
	if !fi.IsDir() {
		return nil, errors.Newf("source: bundle %s is not a directory", dir)
	}
	return &Bundle{fs: fs}, nil
}

// Exists reports whether the bundle contains name.
func (b *Bundle) Exists(name string) bool {
	_, err := b.fs.Stat(name)
	return err == nil
}

// Open opens name for reading.
func (b *Bundle) Open(name string) (billy.File, error) {
	f, err := b.fs.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "source: open %s", name)
	}
	return f, nil
}

// JSON returns a loader that decodes name as a JSON array of T.
// An empty array is a valid result.
func JSON[T any](b *Bundle, name string) cache.Source[[]T] {
	return func(ctx context.Context) ([]T, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := b.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var out []T
		if err := json.NewDecoder(f).Decode(&out); err != nil {
			return nil, errors.Wrapf(err, "source: decode %s", name)
		}
		if out == nil {
			out = []T{}
		}
		return out, nil
	}
}

// NDJSON returns a loader that decodes name as newline-delimited JSON, one
// T per non-blank line. Errors name the file and the 1-based line.
func NDJSON[T any](b *Bundle, name string) cache.Source[[]T] {
	return func(ctx context.Context) ([]T, error) {
		f, err := b.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return decodeLines[T](ctx, f, name)
	}
}

func decodeLines[T any](ctx context.Context, r io.Reader, name string) ([]T, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)

	out := []T{}
	line := 0
	for sc.Scan() {
		line++
		if line%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.Wrapf(err, "source: %s:%d", name, line)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "source: read %s after line %d", name, line)
	}
	return out, nil
}
