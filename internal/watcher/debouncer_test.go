package watcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSession = types.SessionID("livecanvas://preview/sketch.js")

func TestDebouncerBurstEmitsOnceAtLeadingEdgeDelay(t *testing.T) {
	d := NewDebouncer(300 * time.Millisecond)
	defer d.Stop()

	fired := make(chan time.Time, 8)
	d.OnChange(func(id types.SessionID) {
		assert.Equal(t, testSession, id)
		fired <- time.Now()
	})

	start := time.Now()
	for _, at := range []time.Duration{0, 50, 100, 150} {
		time.Sleep(time.Until(start.Add(at * time.Millisecond)))
		d.Notify(testSession)
	}

	select {
	case ts := <-fired:
		elapsed := ts.Sub(start)
		assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
		assert.Less(t, elapsed, 450*time.Millisecond, "timer must not be extended by later edits")
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}

	// No further signals for the same burst.
	select {
	case <-fired:
		t.Fatal("burst produced more than one change signal")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestDebouncerZeroDelayFiresPromptly(t *testing.T) {
	d := NewDebouncer(0)
	defer d.Stop()

	var count atomic.Int32
	d.OnChange(func(types.SessionID) { count.Add(1) })

	d.Notify(testSession)
	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, time.Millisecond)

	d.Notify(testSession)
	require.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, time.Millisecond)
	assert.False(t, d.Pending(testSession))
}

func TestDebouncerNotifyWhilePendingIsNoop(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	assert.False(t, d.Pending(testSession))
	d.Notify(testSession)
	assert.True(t, d.Pending(testSession))

	d.mutex.Lock()
	first := d.timers[testSession]
	d.mutex.Unlock()

	d.Notify(testSession)
	d.Notify(testSession)

	d.mutex.Lock()
	assert.Same(t, first, d.timers[testSession])
	assert.Len(t, d.timers, 1)
	d.mutex.Unlock()
}

func TestDebouncerSeparateBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var count atomic.Int32
	d.OnChange(func(types.SessionID) { count.Add(1) })

	d.Notify(testSession)
	require.Eventually(t, func() bool { return count.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, d.Pending(testSession))

	d.Notify(testSession)
	require.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerSessionsAreIndependent(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	other := types.SessionID("livecanvas://preview/other.js")

	var mu sync.Mutex
	seen := map[types.SessionID]int{}
	d.OnChange(func(id types.SessionID) {
		mu.Lock()
		seen[id]++
		mu.Unlock()
	})

	d.Notify(testSession)
	d.Notify(other)
	d.Notify(testSession)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[testSession] == 1 && seen[other] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncerHandlerCanStartNewBurst(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var count atomic.Int32
	d.OnChange(func(id types.SessionID) {
		if count.Add(1) == 1 {
			d.Notify(id)
		}
	})

	d.Notify(testSession)
	require.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerCancelAndStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var count atomic.Int32
	d.OnChange(func(types.SessionID) { count.Add(1) })

	d.Notify(testSession)
	d.Cancel(testSession)
	assert.False(t, d.Pending(testSession))

	d.Notify(testSession)
	d.Stop()
	d.Notify(testSession)
	assert.False(t, d.Pending(testSession))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}
