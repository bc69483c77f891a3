package cache

import (
	"time"

	"github.com/IvanBrykalov/tiercache/tier"
)

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit(tier.Kind)                     {}
func (NoopMetrics) Miss(tier.Kind)                    {}
func (NoopMetrics) Evict(tier.Kind, tier.EvictReason) {}
func (NoopMetrics) Size(tier.Kind, int, int64)        {}
func (NoopMetrics) ObserveLoad(time.Duration, error)  {}
func (NoopMetrics) CodecError(string)                 {}

var _ Metrics = NoopMetrics{}
