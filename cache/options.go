package cache

import (
	"time"

	"github.com/go-kit/log"

	"github.com/IvanBrykalov/tiercache/codec"
	"github.com/IvanBrykalov/tiercache/tier"
)

// TierLimits caps one tier. CostLimit <= 0 disables the cost cap.
type TierLimits struct {
	CountLimit int   `yaml:"count_limit"`
	CostLimit  int64 `yaml:"cost_limit"`
}

// Default limits, matching what the app has always shipped with.
var (
	DefaultImageLimits  = TierLimits{CountLimit: 100, CostLimit: 50 << 20}
	DefaultDataLimits   = TierLimits{CountLimit: 200, CostLimit: 100 << 20}
	DefaultObjectLimits = TierLimits{CountLimit: 50}
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit(k tier.Kind)
	Miss(k tier.Kind)
	Evict(k tier.Kind, reason tier.EvictReason)
	Size(k tier.Kind, entries int, cost int64)
	// ObserveLoad is called once per source load run by GetOrLoad.
	ObserveLoad(d time.Duration, err error)
	// CodecError is called with "encode" or "decode".
	CodecError(op string)
}

// Options configures a Manager. Zero values are safe; New applies:
//   - zero TierLimits => the matching Default*Limits
//   - nil Codec       => codec.Msgpack()
//   - nil Logger      => log.NewNopLogger()
//   - nil Metrics     => NoopMetrics
type Options struct {
	Images  TierLimits
	Data    TierLimits
	Objects TierLimits

	// Codec serializes structured values for the data tier.
	Codec codec.Codec

	Logger  log.Logger
	Metrics Metrics

	// Clock allows overriding the TTL time source (tests). Nil => time.Now().
	Clock tier.Clock

	// DefaultTTL applies to writes that do not carry their own TTL (0 = none).
	DefaultTTL time.Duration

	// LoadTimeout bounds each source load run by GetOrLoad (0 = no bound).
	// A timed-out load is treated exactly like a failed one.
	LoadTimeout time.Duration
}

func (l TierLimits) orDefault(d TierLimits) TierLimits {
	if l == (TierLimits{}) {
		return d
	}
	return l
}
