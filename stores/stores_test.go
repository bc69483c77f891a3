package stores

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/source"
)

type background struct {
	Name  string   `json:"name"`
	Skill []string `json:"skills"`
}

type theme struct {
	Mode   string `json:"mode"`
	Accent string `json:"accent"`
}

func TestCollection_LoadsOnceAndCaches(t *testing.T) {
	t.Parallel()

	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "backgrounds.json",
		[]byte(`[{"name":"Acolyte","skills":["Insight","Religion"]},{"name":"Sage","skills":[]}]`), 0o644))
	bundle := source.NewBundle(fs)

	var calls atomic.Int64
	load := source.JSON[background](bundle, "backgrounds.json")
	counted := func(ctx context.Context) ([]background, error) {
		calls.Add(1)
		return load(ctx)
	}

	m := cache.New(cache.Options{})
	c := NewCollection(m, cache.Backgrounds, counted)
	assert.Equal(t, cache.Backgrounds, c.Channel())

	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			v, err := c.All(context.Background())
			if err != nil {
				return err
			}
			if len(v) != 2 {
				return errors.Newf("got %d backgrounds", len(v))
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int64(1), calls.Load())

	assert.Equal(t, 1, c.Invalidate())
	require.NoError(t, c.Warm(context.Background()))
	assert.Equal(t, int64(2), calls.Load(), "invalidate forces a reload")
}

func TestCollection_SourceErrorNotCached(t *testing.T) {
	t.Parallel()

	bundle := source.NewBundle(memfs.New())
	m := cache.New(cache.Options{})
	c := NewCollection(m, cache.Monsters, source.JSON[background](bundle, "monsters.json"))

	_, err := c.All(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrSourceLoad))
	assert.Zero(t, m.Stats().Data.Count)
}

func TestSetting_DefaultSaveLoad(t *testing.T) {
	t.Parallel()

	blobs := source.NewBlobStore(memfs.New(), "user")
	m := cache.New(cache.Options{})
	s := NewSetting(m, blobs, cache.Theme, theme{Mode: "system"})
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, theme{Mode: "system"}, got, "absent value reads as default")

	want := theme{Mode: "dark", Accent: "crimson"}
	require.NoError(t, s.Save(ctx, want))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got, "read your writes")

	// A fresh manager over the same blobs sees the persisted value.
	fresh := NewSetting(cache.New(cache.Options{}), blobs, cache.Theme, theme{})
	got, err = fresh.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Reset(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, theme{Mode: "system"}, got)
}

func TestSetting_CorruptBlob(t *testing.T) {
	t.Parallel()

	blobs := source.NewBlobStore(memfs.New(), "user")
	require.NoError(t, blobs.Put(context.Background(), cache.Favorites.Key(), []byte("{not json")))

	s := NewSetting(cache.New(cache.Options{}), blobs, cache.Favorites, []string(nil))
	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrSourceLoad))
}

func TestWarmers(t *testing.T) {
	t.Parallel()

	m := cache.New(cache.Options{})
	blobs := source.NewBlobStore(memfs.New(), "user")
	ws := []Warmer{
		NewCollection(m, cache.Quotes, func(context.Context) ([]string, error) { return []string{"q"}, nil }),
		NewSetting(m, blobs, cache.FavoriteSpells, []string{}),
	}
	for _, w := range ws {
		require.NoError(t, w.Warm(context.Background()), w.Channel().String())
	}
	assert.Equal(t, 2, m.Stats().Data.Count)
}

// stalledReads blocks the first Open of path until release is closed.
type stalledReads struct {
	billy.Filesystem
	path    string
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (fs *stalledReads) Open(name string) (billy.File, error) {
	if name == fs.path {
		fs.once.Do(func() {
			close(fs.started)
			<-fs.release
		})
	}
	return fs.Filesystem.Open(name)
}

func TestSetting_SaveDuringLoadWins(t *testing.T) {
	t.Parallel()

	fs := &stalledReads{
		Filesystem: memfs.New(),
		path:       "user/" + cache.Theme.Key() + ".blob",
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	blobs := source.NewBlobStore(fs, "user")
	ctx := context.Background()
	require.NoError(t, blobs.Put(ctx, cache.Theme.Key(), []byte(`{"mode":"light"}`)))

	s := NewSetting(cache.New(cache.Options{}), blobs, cache.Theme, theme{})
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := s.Load(ctx)
		return err
	})

	<-fs.started
	want := theme{Mode: "dark", Accent: "teal"}
	require.NoError(t, s.Save(ctx, want))
	close(fs.release)
	require.NoError(t, eg.Wait())

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got, "a Load after Save returns the saved value")
}

func TestSetting_InterfaceValueSameAfterRestart(t *testing.T) {
	t.Parallel()

	blobs := source.NewBlobStore(memfs.New(), "user")
	ctx := context.Background()
	s := NewSetting[any](cache.New(cache.Options{}), blobs, cache.Notes, nil)

	require.NoError(t, s.Save(ctx, map[string]any{"count": 3, "tags": []string{"arcane"}}))
	got, err := s.Load(ctx)
	require.NoError(t, err)

	restarted := NewSetting[any](cache.New(cache.Options{}), blobs, cache.Notes, nil)
	fresh, err := restarted.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, fresh, got)
	assert.Equal(t, map[string]any{"count": float64(3), "tags": []any{"arcane"}}, got)
}
