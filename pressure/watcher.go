package pressure

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/shirou/gopsutil/v4/mem"
)

// Probe reports system memory usage in percent (0..100).
type Probe func(ctx context.Context) (float64, error)

// VirtualMemory is the default Probe, backed by gopsutil.
func VirtualMemory(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "pressure: read virtual memory")
	}
	return vm.UsedPercent, nil
}

// Defaults for NewWatcher.
const (
	DefaultThreshold = 90.0
	DefaultInterval  = 5 * time.Second
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithThreshold sets the used-memory percentage that counts as pressure.
func WithThreshold(percent float64) WatcherOption {
	return func(w *Watcher) { w.threshold = percent }
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithProbe replaces the memory probe (tests, platform hooks).
func WithProbe(p Probe) WatcherOption {
	return func(w *Watcher) { w.probe = p }
}

// WithLogger sets the logger for probe failures and pressure events.
func WithLogger(l log.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher polls memory usage and notifies its Signal when usage crosses the
// threshold upward. It fires once per crossing and re-arms after usage
// drops back below the threshold.
type Watcher struct {
	sig       *Signal
	threshold float64
	interval  time.Duration
	probe     Probe
	logger    log.Logger

	armed bool
}

// NewWatcher returns a Watcher that raises sig.
func NewWatcher(sig *Signal, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		sig:       sig,
		threshold: DefaultThreshold,
		interval:  DefaultInterval,
		probe:     VirtualMemory,
		logger:    log.NewNopLogger(),
		armed:     true,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.interval <= 0 {
		w.interval = DefaultInterval
	}
	return w
}

// Run polls until ctx is done and returns ctx's error.
// Probe failures are logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Check(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check takes one sample and notifies if it is a fresh crossing.
// It reports whether the signal fired. Not safe for concurrent use with
// itself or Run.
func (w *Watcher) Check(ctx context.Context) bool {
	used, err := w.probe(ctx)
	if err != nil {
		level.Warn(w.logger).Log("msg", "memory probe failed", "err", err)
		return false
	}
	if used < w.threshold {
		w.armed = true
		return false
	}
	if !w.armed {
		return false
	}
	w.armed = false
	level.Warn(w.logger).Log("msg", "memory pressure", "used_percent", used, "threshold", w.threshold)
	w.sig.Notify()
	return true
}
