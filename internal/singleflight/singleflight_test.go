package singleflight

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGroup_CoalescesConcurrentCalls(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	var calls atomic.Int64
	release := make(chan struct{})

	const n = 32
	var eg errgroup.Group
	var shared atomic.Int64
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			v, err, s := g.Do(context.Background(), "spells", func() (int, error) {
				calls.Add(1)
				<-release
				return 350, nil
			})
			if s {
				shared.Add(1)
			}
			if err != nil {
				return err
			}
			if v != 350 {
				return errors.Newf("got %d", v)
			}
			return nil
		})
	}

	require.Eventually(t, func() bool { return g.Pending("spells") }, time.Second, time.Millisecond)
	// Give the remaining goroutines a moment to join the flight.
	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, eg.Wait())

	assert.Equal(t, int64(1), calls.Load(), "fn must run once while a call is in flight")
	assert.Equal(t, int64(n-1), shared.Load())
	assert.False(t, g.Pending("spells"), "registry entry removed after completion")
	assert.Zero(t, g.Len())
}

func TestGroup_ErrorSharedAndNotReused(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	boom := errors.New("boom")

	_, err, _ := g.Do(context.Background(), "k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	// The failed call is gone; the next call runs fn again.
	v, err, shared := g.Do(context.Background(), "k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, shared)
}

func TestGroup_PanicBecomesError(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	_, err, _ := g.Do(context.Background(), "k", func() (int, error) { panic("bad bundle") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad bundle")
	assert.Zero(t, g.Len())
}

func TestGroup_FollowerContextCancel(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = g.Do(context.Background(), "k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err, shared := g.Do(ctx, "k", func() (int, error) { return 2, nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, shared)

	close(release)
	wg.Wait()
}

// goid parses the current goroutine id from the stack header.
func goid(t *testing.T) uint64 {
	t.Helper()
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	fields := strings.Fields(strings.TrimPrefix(string(buf), "goroutine "))
	require.NotEmpty(t, fields)
	id, err := strconv.ParseUint(fields[0], 10, 64)
	require.NoError(t, err)
	return id
}

func TestGroup_LeaderRunsFnOnCallerGoroutine(t *testing.T) {
	t.Parallel()

	var g Group[string, uint64]
	caller := goid(t)
	ran, err, shared := g.Do(context.Background(), "spells", func() (uint64, error) {
		return goid(t), nil
	})
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, caller, ran)
}
