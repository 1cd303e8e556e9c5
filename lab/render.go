package lab

import (
	"sync/atomic"
	"time"

	"github.com/openfluke/mlviz/anim"
)

// renderResolution is the fake-clock step used by RunTicks. It is below
// every demo's tick delay, so no step fires more than one tick.
const renderResolution = time.Millisecond

// longestDelay bounds how long RunTicks waits for any single tick.
const longestDelay = 1500 * time.Millisecond

// RunTicks starts d on clock and advances the clock until n ticks have run
// or the demo stops on its own, then pauses it. It returns the number of
// ticks executed. d must have been built with clock.
func RunTicks(d Demo, clock *anim.FakeClock, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	var ticks atomic.Int64
	d.Observe(anim.FuncObserver(func(e anim.Event) {
		if e.Kind == anim.EventTick {
			ticks.Add(1)
		}
	}))
	if err := d.Start(); err != nil {
		return 0, err
	}
	defer d.Pause()

	limit := int64(n+1) * int64(longestDelay/renderResolution)
	for i := int64(0); ticks.Load() < int64(n) && d.Running() && i < limit; i++ {
		clock.Advance(renderResolution)
	}
	return int(ticks.Load()), nil
}
