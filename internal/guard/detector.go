package guard

import (
	"sync"
	"time"
)

// depthDetector counts flips of "executable depth exists" inside a
// rolling window. Depth that blinks on and off is usually spoofing; after
// maxFlips flips the guard reports DepthUnstable.
type depthDetector struct {
	window   time.Duration
	maxFlips int

	mu       sync.Mutex
	last     bool
	primed   bool
	flips    []time.Time
	reported bool
}

func newDepthDetector(window time.Duration, maxFlips int) *depthDetector {
	return &depthDetector{window: window, maxFlips: maxFlips}
}

// observe records one observation and reports whether the flip threshold
// was just crossed. Reports once per unstable episode.
func (d *depthDetector) observe(now time.Time, exists bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.primed {
		d.primed = true
		d.last = exists
		return false
	}
	if exists == d.last {
		return false
	}
	d.last = exists
	d.flips = append(d.flips, now)

	// Drop flips older than the window.
	cutoff := now.Add(-d.window)
	keep := d.flips[:0]
	for _, t := range d.flips {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	d.flips = keep

	if len(d.flips) >= d.maxFlips {
		if d.reported {
			return false
		}
		d.reported = true
		return true
	}
	d.reported = false
	return false
}

// reset clears all counters, e.g. after a WS reconnect.
func (d *depthDetector) reset() {
	d.mu.Lock()
	d.flips = nil
	d.primed = false
	d.reported = false
	d.mu.Unlock()
}
