// Package fills joins the two fill sources of a predict-venue order — the
// on-chain event stream and REST status polls — into one monotone fill
// counter per order.
package fills

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Observation is the aggregator's answer after absorbing an input.
type Observation struct {
	TotalFilled  float64
	NewFillDelta float64
	IsComplete   bool
	FirstFillAt  time.Time
}

// Aggregator tracks one order. REST polls carry the venue's authoritative
// cumulative fill; events accumulate deltas. The reported total is
// max(restFilled, eventFilled) clamped to the order quantity and never
// decreases.
type Aggregator struct {
	orderQty float64
	logger   *zap.Logger

	mu            sync.Mutex
	restFilled    float64
	eventFilled   float64
	lastReported  float64
	terminalState types.OrderState
	firstFillAt   time.Time
	seen          map[string]struct{} // event dedup keys
}

// NewAggregator creates an aggregator for one order of orderQty shares.
func NewAggregator(orderQty float64, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		orderQty: orderQty,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// OnEvent absorbs one on-chain fill. Duplicate (txHash, logIndex) pairs
// are idempotent. delta is the event's contribution in base shares.
func (a *Aggregator) OnEvent(ev *types.FillEvent, delta float64) Observation {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := ev.DedupKey()
	if _, dup := a.seen[key]; dup {
		DuplicateEventsTotal.Inc()
		return a.observeLocked(time.Time{})
	}
	a.seen[key] = struct{}{}

	if delta > 0 {
		a.eventFilled += delta
	}
	EventsAbsorbedTotal.Inc()
	return a.observeLocked(ev.Timestamp)
}

// OnPoll absorbs one REST status. The venue's cumulative fill only ever
// raises the floor; a poll reporting less than we already know is stale
// and ignored for the total.
func (a *Aggregator) OnPoll(status *types.OrderStatus) Observation {
	a.mu.Lock()
	defer a.mu.Unlock()

	if status.FilledQty > a.restFilled {
		a.restFilled = status.FilledQty
	}
	if status.State.Terminal() {
		a.terminalState = status.State
	}
	return a.observeLocked(time.Time{})
}

// Snapshot reads the current state without new input.
func (a *Aggregator) Snapshot() Observation {
	a.mu.Lock()
	defer a.mu.Unlock()
	obs := a.observeLocked(time.Time{})
	obs.NewFillDelta = 0
	return obs
}

func (a *Aggregator) observeLocked(eventTime time.Time) Observation {
	total := a.restFilled
	if a.eventFilled > total {
		total = a.eventFilled
	}
	if total > a.orderQty {
		total = a.orderQty
	}
	if total < a.lastReported {
		total = a.lastReported
	}

	delta := total - a.lastReported
	a.lastReported = total

	if delta > 0 && a.firstFillAt.IsZero() {
		// Prefer the on-chain timestamp when this observation came from
		// an event.
		if !eventTime.IsZero() {
			a.firstFillAt = eventTime
		} else {
			a.firstFillAt = time.Now()
		}
		a.logger.Info("first-fill-observed",
			zap.Float64("qty", total),
			zap.Time("at", a.firstFillAt))
	}

	// A terminal venue status ends the order whether or not the event
	// stream has caught up; the total keeps whatever the venue reported.
	complete := a.terminalState != ""

	return Observation{
		TotalFilled:  total,
		NewFillDelta: delta,
		IsComplete:   complete,
		FirstFillAt:  a.firstFillAt,
	}
}
