package source

import (
	"context"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ErrNotFound is returned by BlobStore.Get for keys that were never stored
// or have been deleted.
var ErrNotFound = errors.New("source: blob not found")

const blobExt = ".blob"

// BlobStore persists opaque values by key, one file per key under dir.
// Writes go to a temp file that is renamed over the target, so readers
// never see a partial blob and do not wait for writers. fs must allow
// reads concurrent with writes when callers overlap them.
type BlobStore struct {
	mu  sync.Mutex // serializes writers
	fs  billy.Filesystem
	dir string
}

// NewBlobStore stores blobs under dir on fs. dir is created on first Put.
func NewBlobStore(fs billy.Filesystem, dir string) *BlobStore {
	return &BlobStore{fs: fs, dir: dir}
}

// Get returns the blob stored under key, or ErrNotFound.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := util.ReadFile(s.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNotFound, "key %q", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "source: read blob %q", key)
	}
	return b, nil
}

// Put stores b under key, replacing any previous blob.
func (s *BlobStore) Put(ctx context.Context, key string, b []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "source: create %s", s.dir)
	}
	tmp, err := util.TempFile(s.fs, s.dir, ".put-")
	if err != nil {
		return errors.Wrap(err, "source: create temp blob")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return errors.Wrapf(err, "source: write blob %q", key)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return errors.Wrapf(err, "source: close blob %q", key)
	}
	if err := s.fs.Rename(tmpName, p); err != nil {
		_ = s.fs.Remove(tmpName)
		return errors.Wrapf(err, "source: commit blob %q", key)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "source: delete blob %q", key)
	}
	return nil
}

// Keys lists stored keys in directory order.
func (s *BlobStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.fs.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "source: list %s", s.dir)
	}
	var keys []string
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || !strings.HasSuffix(name, blobExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, blobExt))
	}
	return keys, nil
}

func (s *BlobStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", errors.Newf("source: invalid blob key %q", key)
	}
	return path.Join(s.dir, key+blobExt), nil
}
