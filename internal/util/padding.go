// Package util contains internal helpers shared by the cache packages.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// Counter is an atomic uint64 padded to one cache line. Hit and miss
// counters are bumped from every reader goroutine; padding keeps them from
// sharing a line with each other or with the manager's other fields.
type Counter struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// Compile-time size check: exactly one cache line.
var _ [CacheLineSize - int(unsafe.Sizeof(Counter{}))]byte
