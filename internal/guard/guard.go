// Package guard re-evaluates an open opportunity every time the hedge
// venue's book moves. Output is a latched VALID/INVALID state with
// edge-triggered callbacks: INVALID fires immediately, the way back to
// VALID takes two consecutive passing evaluations.
package guard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

const (
	// epsilon absorbs float noise in the price predicates.
	epsilon = 1e-4
	// validStreak is the number of consecutive passes required to
	// re-validate after a trip.
	validStreak = 2
)

// State is the guard's latched verdict.
type State string

const (
	StateValid   State = "VALID"
	StateInvalid State = "INVALID"
)

// Params capture the per-task bounds the predicates check.
type Params struct {
	Direction     types.Direction
	MaxHedgePrice float64 // BUY bound
	MinHedgePrice float64 // SELL bound
	PredictLeg    float64 // aligned predict-side price
	MaxTotalCost  float64 // BUY only
	FeeBps        int
	Sports        bool
}

// Callbacks are edge-triggered: each fires only on a state transition.
type Callbacks struct {
	OnInvalid       func(reason string)
	OnValid         func()
	OnWSDisconnect  func()
	OnWSReconnect   func()
	OnDepthUnstable func()
}

// Guard is one task's cost/price guard.
type Guard struct {
	params    Params
	callbacks Callbacks
	throttle  time.Duration
	logger    *zap.Logger

	mu         sync.Mutex
	state      State
	passStreak int
	lastEval   time.Time

	detector *depthDetector

	now func() time.Time
}

// Config holds guard configuration.
type Config struct {
	Params    Params
	Callbacks Callbacks
	// Throttle caps evaluation frequency under bursty book churn.
	Throttle time.Duration
	// DetectGhostDepth enables the flip detector.
	DetectGhostDepth bool
	Logger           *zap.Logger
}

// New creates a guard latched VALID.
func New(cfg *Config) *Guard {
	throttle := cfg.Throttle
	if throttle <= 0 {
		throttle = 200 * time.Millisecond
	}
	g := &Guard{
		params:    cfg.Params,
		callbacks: cfg.Callbacks,
		throttle:  throttle,
		logger:    cfg.Logger,
		state:     StateValid,
		now:       time.Now,
	}
	if cfg.DetectGhostDepth {
		g.detector = newDepthDetector(30*time.Second, 6)
	}
	return g
}

// State returns the current latched verdict.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// OnBookUpdate absorbs one hedge-token book. Throttled to one evaluation
// per throttle window; throttled updates are dropped, not queued — the
// next update re-evaluates against the then-current book.
func (g *Guard) OnBookUpdate(book *types.Orderbook) {
	g.mu.Lock()
	if g.now().Sub(g.lastEval) < g.throttle {
		g.mu.Unlock()
		ThrottledTotal.Inc()
		return
	}
	g.lastEval = g.now()
	g.mu.Unlock()

	g.Evaluate(book)
}

// Evaluate runs the predicate unthrottled. The executor's polling
// fallback calls this directly when WS is unavailable.
func (g *Guard) Evaluate(book *types.Orderbook) {
	pass, reason := g.check(book)
	EvaluationsTotal.Inc()

	if g.detector != nil {
		if flips := g.detector.observe(g.now(), g.depthExists(book)); flips {
			DepthUnstableTotal.Inc()
			g.logger.Warn("guard-depth-unstable")
			if g.callbacks.OnDepthUnstable != nil {
				g.callbacks.OnDepthUnstable()
			}
		}
	}

	g.mu.Lock()
	prev := g.state
	var fire func()
	if !pass {
		g.passStreak = 0
		if prev == StateValid {
			g.state = StateInvalid
			cb := g.callbacks.OnInvalid
			fire = func() {
				if cb != nil {
					cb(reason)
				}
			}
		}
	} else if prev == StateInvalid {
		g.passStreak++
		if g.passStreak >= validStreak {
			g.state = StateValid
			g.passStreak = 0
			cb := g.callbacks.OnValid
			fire = func() {
				if cb != nil {
					cb()
				}
			}
		}
	}
	state := g.state
	g.mu.Unlock()

	if fire != nil {
		if state == StateInvalid {
			TripsTotal.Inc()
			g.logger.Warn("guard-tripped", zap.String("reason", reason))
		} else {
			g.logger.Info("guard-revalidated")
		}
		fire()
	}
}

// OnWSStateChange reacts to the hedge venue's connection state. Losing the
// stream latches a non-sports guard INVALID and fires OnWSDisconnect, a
// pause signal rather than a cancel; re-validation takes two passes once
// books flow again. Sports tasks keep running on the polling fallback.
// Reconnection fires OnWSReconnect and resets the flip counters.
func (g *Guard) OnWSStateChange(connected bool) {
	if connected {
		if g.detector != nil {
			g.detector.reset()
		}
		if g.callbacks.OnWSReconnect != nil {
			g.callbacks.OnWSReconnect()
		}
		return
	}

	if g.params.Sports {
		g.logger.Warn("guard-ws-lost-sports-fallback")
		return
	}

	g.mu.Lock()
	g.state = StateInvalid
	g.passStreak = 0
	g.mu.Unlock()

	g.logger.Warn("guard-ws-lost", zap.String("reason", types.CodeWSUnavailable))
	if g.callbacks.OnWSDisconnect != nil {
		g.callbacks.OnWSDisconnect()
	}
}

// Run drives the guard from a book subscription and WS state stream until
// the context ends. Sports tasks additionally poll the fetch function on
// a 200 ms cadence while WS data is missing.
func (g *Guard) Run(ctx context.Context, books <-chan *types.Orderbook, wsState <-chan bool, fetch func() (*types.Orderbook, bool)) {
	var poll *time.Ticker
	var pollC <-chan time.Time
	if g.params.Sports && fetch != nil {
		poll = time.NewTicker(200 * time.Millisecond)
		defer poll.Stop()
		pollC = poll.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case book, ok := <-books:
			if !ok {
				return
			}
			g.OnBookUpdate(book)
		case connected, ok := <-wsState:
			if !ok {
				return
			}
			g.OnWSStateChange(connected)
		case <-pollC:
			if book, ok := fetch(); ok {
				g.OnBookUpdate(book)
			}
		}
	}
}

// check runs the validity predicate. An empty book is a missing-quote
// failure; a bound or total-cost breach is a cost failure.
func (g *Guard) check(book *types.Orderbook) (bool, string) {
	if g.params.Direction == types.DirectionSell {
		bid, ok := book.BestBid()
		if !ok {
			return false, types.CodePriceInvalid
		}
		if bid.Price < g.params.MinHedgePrice-epsilon {
			return false, types.CodeCostInvalid
		}
		return true, ""
	}

	ask, ok := book.BestAsk()
	if !ok {
		return false, types.CodePriceInvalid
	}
	if ask.Price > g.params.MaxHedgePrice+epsilon {
		return false, types.CodeCostInvalid
	}

	fee := types.FeePerShare(g.params.PredictLeg, g.params.FeeBps)
	if g.params.PredictLeg+ask.Price+fee > g.params.MaxTotalCost+epsilon {
		return false, types.CodeCostInvalid
	}
	return true, ""
}

// depthExists reports whether executable depth sits inside the acceptance
// range.
func (g *Guard) depthExists(book *types.Orderbook) bool {
	if g.params.Direction == types.DirectionSell {
		return book.BidDepthWithin(g.params.MinHedgePrice-epsilon) > 0
	}
	return book.AskDepthWithin(g.params.MaxHedgePrice+epsilon) > 0
}
