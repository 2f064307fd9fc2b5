package healthprobe

import "sync/atomic"

// HealthChecker tracks process liveness and readiness for the HTTP probes.
type HealthChecker struct {
	ready atomic.Bool
	live  atomic.Bool
}

// New creates a checker that is live but not yet ready.
func New() *HealthChecker {
	hc := &HealthChecker{}
	hc.live.Store(true)
	return hc
}

// SetReady marks the process ready (or not) to serve traffic.
func (hc *HealthChecker) SetReady(ready bool) {
	hc.ready.Store(ready)
}

// Ready reports readiness.
func (hc *HealthChecker) Ready() bool {
	return hc.ready.Load()
}

// Live reports liveness.
func (hc *HealthChecker) Live() bool {
	return hc.live.Load()
}
