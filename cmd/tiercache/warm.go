package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/pressure"
	"github.com/IvanBrykalov/tiercache/source"
	"github.com/IvanBrykalov/tiercache/stores"
)

// record is a bundled entry of any channel. The tool does not know the
// domain schemas; the cache does not need to.
type record = map[string]any

// collections are the channels backed by bundled files.
var collections = []cache.Channel{
	cache.Spells, cache.Backgrounds, cache.Feats, cache.Monsters, cache.Quotes,
}

// settings are the channels backed by the user blob store.
var settings = []cache.Channel{
	cache.Theme, cache.Favorites, cache.FavoriteSpells, cache.FavoriteFeats,
	cache.FavoriteBackgrounds, cache.Characters, cache.Notes, cache.Relationships,
}

func newWarmCmd() *cobra.Command {
	var (
		bundleDir   string
		userDir     string
		only        []string
		passes      int
		parallelism int
		watch       bool
	)
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Load every channel from a resource bundle and print cache statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if bundleDir == "" {
				bundleDir = cfg.Bundle
			}
			if bundleDir == "" {
				return errors.New("--bundle (or bundle: in the config) is required")
			}
			bundle, err := source.OpenBundle(bundleDir)
			if err != nil {
				return err
			}

			blobs := source.NewBlobStore(memfs.New(), "user")
			if userDir != "" {
				blobs = source.NewBlobStore(osfs.New(userDir), ".")
			}

			m := cache.New(cfg.CacheOptions(logger, nil))
			defer m.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if watch && cfg.Pressure.Enabled {
				var sig pressure.Signal
				m.Attach(&sig)
				w := pressure.NewWatcher(&sig, cfg.WatcherOptions(logger)...)
				go func() { _ = w.Run(ctx) }()
			}

			warmers, err := buildWarmers(m, bundle, blobs, only)
			if err != nil {
				return err
			}
			if passes < 1 {
				passes = 1
			}
			for p := 1; p <= passes; p++ {
				start := time.Now()
				if err := warmAll(ctx, logger, warmers, parallelism); err != nil {
					return err
				}
				level.Info(logger).Log("msg", "pass complete", "pass", p, "channels", len(warmers), "took", time.Since(start))
			}

			fmt.Fprintln(cmd.OutOrStdout(), m.Summary())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&bundleDir, "bundle", "", "resource bundle directory (JSON / NDJSON files named after channels)")
	f.StringVar(&userDir, "user-dir", "", "directory of persisted user blobs (default: in-memory, empty)")
	f.StringSliceVar(&only, "channels", nil, "limit warming to these channels")
	f.IntVar(&passes, "passes", 2, "number of warm passes; passes after the first should be all hits")
	f.IntVar(&parallelism, "parallel", 4, "channels loaded concurrently")
	f.BoolVar(&watch, "watch-pressure", false, "clear the cache when system memory crosses the configured threshold")
	return cmd
}

// buildWarmers returns a store per selected channel. Collections missing
// from the bundle are skipped.
func buildWarmers(m *cache.Manager, b *source.Bundle, blobs *source.BlobStore, only []string) ([]stores.Warmer, error) {
	want := map[cache.Channel]bool{}
	for _, name := range only {
		ch, err := cache.ParseChannel(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		want[ch] = true
	}
	selected := func(ch cache.Channel) bool { return len(want) == 0 || want[ch] }

	var out []stores.Warmer
	for _, ch := range collections {
		if !selected(ch) {
			continue
		}
		switch {
		case b.Exists(ch.Key() + ".json"):
			out = append(out, stores.NewCollection(m, ch, source.JSON[record](b, ch.Key()+".json")))
		case b.Exists(ch.Key() + ".ndjson"):
			out = append(out, stores.NewCollection(m, ch, source.NDJSON[record](b, ch.Key()+".ndjson")))
		}
	}
	for _, ch := range settings {
		if selected(ch) {
			out = append(out, stores.NewSetting[any](m, blobs, ch, nil))
		}
	}
	return out, nil
}

func warmAll(ctx context.Context, logger log.Logger, warmers []stores.Warmer, parallelism int) error {
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, w := range warmers {
		w := w
		g.Go(func() error {
			if err := w.Warm(ctx); err != nil {
				return err
			}
			level.Debug(logger).Log("msg", "warmed", "channel", w.Channel())
			return nil
		})
	}
	return g.Wait()
}
