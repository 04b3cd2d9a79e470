//go:build property

package watcher

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/livecanvas/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates coalescing properties of the debouncer
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	// Property: a burst of edits faster than the interval yields exactly one signal
	properties.Property("burst faster than interval emits once", prop.ForAll(
		func(delayMs int, editCount int) bool {
			delay := time.Duration(delayMs) * time.Millisecond
			d := NewDebouncer(delay)
			defer d.Stop()

			var signals atomic.Int32
			var firedAt atomic.Int64
			d.OnChange(func(types.SessionID) {
				signals.Add(1)
				firedAt.Store(time.Now().UnixNano())
			})

			start := time.Now()
			gap := delay / time.Duration(editCount*2)
			for i := 0; i < editCount; i++ {
				d.Notify(testSession)
				time.Sleep(gap)
			}

			time.Sleep(delay*2 + 20*time.Millisecond)

			elapsed := time.Duration(firedAt.Load() - start.UnixNano())
			return signals.Load() == 1 && elapsed >= delay
		},
		gen.IntRange(20, 80),
		gen.IntRange(2, 10),
	))

	// Property: bursts separated by more than the interval each emit once
	properties.Property("separated bursts emit once each", prop.ForAll(
		func(bursts int) bool {
			delay := 15 * time.Millisecond
			d := NewDebouncer(delay)
			defer d.Stop()

			var signals atomic.Int32
			d.OnChange(func(types.SessionID) { signals.Add(1) })

			for i := 0; i < bursts; i++ {
				d.Notify(testSession)
				d.Notify(testSession)
				time.Sleep(delay * 3)
			}

			return int(signals.Load()) == bursts
		},
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
