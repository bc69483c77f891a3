package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/tiercache/cache"
	pmet "github.com/IvanBrykalov/tiercache/metrics/prom"
)

type benchFlags struct {
	countLimit int
	costLimit  int64
	valueSize  int

	workers  int
	duration time.Duration
	readPct  int
	loadPct  int

	keys    int
	zipfS   float64
	zipfV   float64
	seed    int64
	preload int

	pprofAddr   string
	metricsAddr string
}

func newBenchCmd() *cobra.Command {
	var bf benchFlags
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic Zipf workload against the data tier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, bf)
		},
	}
	f := cmd.Flags()
	f.IntVar(&bf.countLimit, "count", 10_000, "data tier entry limit")
	f.Int64Var(&bf.costLimit, "cost", 64<<20, "data tier cost limit in bytes (0 = none)")
	f.IntVar(&bf.valueSize, "value-size", 512, "bytes per cached value")
	f.IntVar(&bf.workers, "workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	f.DurationVar(&bf.duration, "duration", 10*time.Second, "benchmark duration")
	f.IntVar(&bf.readPct, "reads", 80, "read percentage [0..100]")
	f.IntVar(&bf.loadPct, "loads", 10, "share of reads that go through GetOrLoad [0..100]")
	f.IntVar(&bf.keys, "keys", 100_000, "keyspace size")
	f.Float64Var(&bf.zipfS, "zipf_s", 1.1, "Zipf s > 1 (skew)")
	f.Float64Var(&bf.zipfV, "zipf_v", 1.0, "Zipf v")
	f.Int64Var(&bf.seed, "seed", time.Now().UnixNano(), "random seed")
	f.IntVar(&bf.preload, "preload", 0, "preload entries (0 = count/2)")
	f.StringVar(&bf.pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	f.StringVar(&bf.metricsAddr, "http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
	return cmd
}

func runBench(cmd *cobra.Command, bf benchFlags) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	// ---- pprof server (on DefaultServeMux) ----
	if bf.pprofAddr != "" {
		go func() {
			level.Info(logger).Log("msg", "pprof serving", "addr", bf.pprofAddr)
			level.Error(logger).Log("msg", "pprof stopped", "err", http.ListenAndServe(bf.pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "tiercache", "bench", nil)
	if bf.metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			level.Info(logger).Log("msg", "metrics serving", "addr", bf.metricsAddr)
			level.Error(logger).Log("msg", "metrics stopped", "err", http.ListenAndServe(bf.metricsAddr, nil))
		}()
	}

	// ---- Build cache ----
	opt := cfg.CacheOptions(logger, metrics)
	opt.Data = cache.TierLimits{CountLimit: bf.countLimit, CostLimit: bf.costLimit}
	m := cache.New(opt)
	defer m.Close()

	value := make([]byte, bf.valueSize)
	for i := range value {
		value[i] = byte(i)
	}

	// ---- Preload half the entry limit to get a realistic hit-rate ----
	pl := bf.preload
	if pl == 0 {
		pl = bf.countLimit / 2
	}
	for i := 0; i < pl; i++ {
		if err := m.CacheData(value, "k:"+strconv.Itoa(i)); err != nil {
			return err
		}
	}
	m.ResetStats()

	workersN := bf.workers
	if workersN <= 0 {
		workersN = 1
	}
	keysMax := uint64(bf.keys - 1)

	// ---- Load generation ----
	var reads, writes, loads, total uint64
	ctx, cancel := context.WithTimeout(cmd.Context(), bf.duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(bf.seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, bf.zipfS, bf.zipfV, keysMax)
			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}
			src := func(context.Context) ([]byte, error) { return value, nil }

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				switch r := int(localR.Int31n(100)); {
				case r < bf.readPct*bf.loadPct/100:
					atomic.AddUint64(&loads, 1)
					_, _ = cache.GetOrLoad(ctx, m, "s:"+keyByZipf(), src, nil)
				case r < bf.readPct:
					atomic.AddUint64(&reads, 1)
					_, _ = m.Data(keyByZipf())
				default:
					atomic.AddUint64(&writes, 1)
					_ = m.CacheData(value, keyByZipf())
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "count=%d cost=%d workers=%d keys=%d dur=%v seed=%d\n",
		bf.countLimit, bf.costLimit, workersN, bf.keys, elapsed, bf.seed)
	fmt.Fprintf(out, "ops=%d (%.0f ops/s)  reads=%d  loads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), atomic.LoadUint64(&reads), atomic.LoadUint64(&loads), atomic.LoadUint64(&writes))
	fmt.Fprintln(out, m.Summary())
	return nil
}
