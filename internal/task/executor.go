// Package task implements the pair-trade executor: one instance per task,
// driving a predict-venue limit order and its hedge-venue counter-orders
// through a state machine under a cancellation context.
package task

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/internal/bookcache"
	"github.com/crossvenue/predictarb/internal/fills"
	"github.com/crossvenue/predictarb/internal/guard"
	"github.com/crossvenue/predictarb/internal/tasklog"
	"github.com/crossvenue/predictarb/pkg/types"
)

// Knobs are the engine-level tunables shared by all executors.
type Knobs struct {
	PollInterval          time.Duration
	MinHedgeShares        float64
	MinHedgeNotional      float64
	LossHedgeMaxDeviation float64
	LossHedgeMaxWait      time.Duration
	CostCheckThrottle     time.Duration
	FirstStatusTimeout    time.Duration
	MaxStatusFailures     int
	CancelBudget          time.Duration
	HedgeRetrySleep       time.Duration
	LossHedgeRepoll       time.Duration
}

func (k *Knobs) applyDefaults() {
	if k.PollInterval <= 0 {
		k.PollInterval = 500 * time.Millisecond
	}
	if k.MinHedgeShares <= 0 {
		k.MinHedgeShares = 2.0
	}
	if k.MinHedgeNotional <= 0 {
		k.MinHedgeNotional = 1.0
	}
	if k.LossHedgeMaxDeviation <= 0 {
		k.LossHedgeMaxDeviation = 0.02
	}
	if k.LossHedgeMaxWait <= 0 {
		k.LossHedgeMaxWait = 30 * time.Minute
	}
	if k.CostCheckThrottle <= 0 {
		k.CostCheckThrottle = 200 * time.Millisecond
	}
	if k.FirstStatusTimeout <= 0 {
		k.FirstStatusTimeout = 15 * time.Second
	}
	if k.MaxStatusFailures <= 0 {
		k.MaxStatusFailures = 30
	}
	if k.CancelBudget <= 0 {
		k.CancelBudget = 5 * time.Second
	}
	if k.HedgeRetrySleep <= 0 {
		k.HedgeRetrySleep = 300 * time.Millisecond
	}
	if k.LossHedgeRepoll <= 0 {
		k.LossHedgeRepoll = 5 * time.Second
	}
}

// ExecutorConfig wires one executor.
type ExecutorConfig struct {
	Task    *types.TaskConfig
	Knobs   Knobs
	Predict PredictGateway
	Hedge   HedgeGateway
	Books   *bookcache.Cache
	Router  FillRouter
	Sink    EventSink
	// WSState reports the hedge venue's connection state to the guard.
	WSState <-chan bool
	// OnTransition is called after every status change with a snapshot.
	OnTransition func(types.TaskSnapshot)
	Logger       *zap.Logger
}

// Executor runs one task.
type Executor struct {
	cfg     *types.TaskConfig
	knobs   Knobs
	predict PredictGateway
	hedge   HedgeGateway
	books   *bookcache.Cache
	router  FillRouter
	sink    EventSink
	wsState <-chan bool
	notify  func(types.TaskSnapshot)
	logger  *zap.Logger

	mu   sync.Mutex
	snap types.TaskSnapshot
	// credited is the raw fill total already absorbed; actualShares is the
	// post-fee share count received so far; pending accumulates shares
	// awaiting the hedge gate.
	credited     float64
	actualShares float64
	pending      float64

	agg          *fills.Aggregator
	waker        *fills.Waker
	guardInvalid chan string
	cancelIssued bool
	// resumeStatus is the status to restore when a paused task's stream
	// comes back.
	resumeStatus types.TaskStatus
}

// NewExecutor builds an executor for a validated task config.
func NewExecutor(cfg *ExecutorConfig) *Executor {
	knobs := cfg.Knobs
	knobs.applyDefaults()
	if cfg.Task.OrderTimeout <= 0 {
		cfg.Task.OrderTimeout = 20 * time.Second
	}

	e := &Executor{
		cfg:          cfg.Task,
		knobs:        knobs,
		predict:      cfg.Predict,
		hedge:        cfg.Hedge,
		books:        cfg.Books,
		router:       cfg.Router,
		sink:         cfg.Sink,
		wsState:      cfg.WSState,
		notify:       cfg.OnTransition,
		logger:       cfg.Logger.With(zap.String("task", cfg.Task.TaskID)),
		waker:        fills.NewWaker(),
		guardInvalid: make(chan string, 1),
	}
	e.snap = types.TaskSnapshot{
		Config:     *cfg.Task,
		Status:     types.StatusCreated,
		Timestamps: types.TaskTimestamps{CreatedAt: time.Now()},
	}
	return e
}

// Snapshot returns a copy of the task's current state.
func (e *Executor) Snapshot() types.TaskSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Run drives the task to a terminal state. The context is the task's
// cancellation context; aborting it tears the task down cleanly.
func (e *Executor) Run(ctx context.Context) error {
	e.logEvent("TASK_CREATED", tasklog.PriorityInfo, map[string]interface{}{
		"direction": e.cfg.Direction,
		"side":      e.cfg.Side,
		"market":    e.cfg.PredictMarketID,
		"qty":       e.cfg.TargetQty,
	})

	price, qty, err := e.validateEntry(ctx)
	if err != nil {
		e.fail(types.StatusFailed, types.ErrorCode(err), err)
		return err
	}

	result, err := e.predict.SubmitOrder(ctx, &types.SubmitRequest{
		MarketID: e.cfg.PredictMarketID,
		Side:     e.cfg.Direction,
		Outcome:  e.cfg.Side,
		Price:    price,
		Qty:      qty,
		Type:     types.OrderTypeGTC,
	})
	if err != nil {
		e.fail(types.StatusFailed, types.ErrorCode(err), err)
		return err
	}

	e.mu.Lock()
	e.snap.OrderID = result.OrderID
	e.snap.OrderHash = result.OrderHash
	e.snap.AvgPredictPrice = price
	e.snap.Timestamps.SubmittedAt = time.Now()
	e.mu.Unlock()
	e.setStatus(types.StatusSubmitted)
	e.logEvent("ORDER_SUBMITTED", tasklog.PriorityInfo, map[string]interface{}{
		"orderHash": result.OrderHash,
		"price":     price,
		"qty":       qty,
	})
	TasksSubmittedTotal.Inc()

	e.agg = fills.NewAggregator(qty, e.logger)
	e.router.Register(result.OrderHash, e.onFillEvent)
	defer e.router.Unregister(result.OrderHash)

	guardCtx, stopGuard := context.WithCancel(ctx)
	defer stopGuard()
	e.startGuard(guardCtx, price)

	return e.monitor(ctx)
}

// onFillEvent feeds one on-chain fill into the aggregator and wakes the
// poll loop. The event's base-share amount sits on whichever side is not
// the collateral asset (asset id 0).
func (e *Executor) onFillEvent(ev *types.FillEvent) {
	delta := ev.TakerAmount
	if ev.MakerAssetID != "0" {
		delta = ev.MakerAmount
	}
	obs := e.agg.OnEvent(ev, delta)
	if obs.NewFillDelta > 0 {
		e.logger.Debug("fill-event-absorbed",
			zap.Float64("delta", obs.NewFillDelta),
			zap.Float64("total", obs.TotalFilled))
	}
	e.waker.Wake()
}

func (e *Executor) startGuard(ctx context.Context, predictLeg float64) {
	g := guard.New(&guard.Config{
		Params: guard.Params{
			Direction:     e.cfg.Direction,
			MaxHedgePrice: e.cfg.MaxHedgePrice,
			MinHedgePrice: e.cfg.MinHedgePrice,
			PredictLeg:    predictLeg,
			MaxTotalCost:  e.cfg.MaxTotalCost,
			FeeBps:        e.cfg.FeeBps,
			Sports:        e.cfg.Sports,
		},
		Callbacks: guard.Callbacks{
			OnInvalid: func(reason string) {
				select {
				case e.guardInvalid <- reason:
				default:
				}
				e.waker.Wake()
			},
			OnValid: func() {
				e.logEvent("GUARD_REVALIDATED", tasklog.PriorityInfo, nil)
			},
			OnWSDisconnect: func() { e.pause() },
			OnWSReconnect:  func() { e.resume() },
			OnDepthUnstable: func() {
				e.logEvent("DEPTH_UNSTABLE", tasklog.PriorityCritical, nil)
			},
		},
		Throttle:         e.knobs.CostCheckThrottle,
		DetectGhostDepth: true,
		Logger:           e.logger,
	})

	key := bookcache.Key{Venue: "polymarket", Token: e.cfg.HedgeTokenID()}
	books := e.books.Subscribe(key)
	fetch := func() (*types.Orderbook, bool) {
		book, err := e.books.Get(ctx, key, func(fctx context.Context) (*types.Orderbook, error) {
			return e.hedge.GetOrderbook(fctx, key.Token)
		})
		return book, err == nil
	}

	go func() {
		defer e.books.Unsubscribe(key, books)
		g.Run(ctx, books, e.wsState, fetch)
	}()
}

// monitor is the fill-monitoring loop: a prefetch poll, then timer- and
// event-driven polls until the order reaches a terminal condition.
func (e *Executor) monitor(ctx context.Context) error {
	ticker := time.NewTicker(e.knobs.PollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(e.cfg.OrderTimeout)
	defer timeout.Stop()

	firstStatusDeadline := time.Now().Add(e.knobs.FirstStatusTimeout)
	var gotStatus bool
	var consecFails int

	poll := func() (done bool, err error) {
		status, perr := e.predict.GetOrderStatus(ctx, e.orderRef())
		if perr != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			consecFails++
			StatusFailuresTotal.Inc()
			if !gotStatus && consecFails >= e.knobs.MaxStatusFailures &&
				time.Now().After(firstStatusDeadline) {
				e.logger.Error("first-status-unreachable-cancelling")
				return true, e.cancelAndEnd(ctx, types.CodeNetworkError)
			}
			if !errors.Is(perr, types.ErrOrderNotFound) {
				e.logger.Warn("status-poll-failed", zap.Error(perr))
			}
			return false, nil
		}
		gotStatus = true
		consecFails = 0

		obs := e.agg.OnPoll(status)
		e.absorbFills(ctx, obs, status.AvgPrice)

		switch {
		case status.State == types.OrderFilled:
			if obs.TotalFilled == 0 {
				// Venue bug: FILLED with nothing filled. Treat as a
				// cancel.
				e.logEvent("FILLED_BUT_EMPTY", tasklog.PriorityCritical, nil)
				e.fail(types.StatusCancelled, types.CodeFilledButEmpty, nil)
				return true, nil
			}
			return true, e.completeHedging(ctx)

		case status.State.Terminal() && !e.wasCancelIssued():
			// External cancel: someone removed our order out from under
			// us. Keep whatever filled, hedge it, and end.
			e.logEvent("EXTERNAL_CANCEL_DETECTED", tasklog.PriorityCritical, map[string]interface{}{
				"state": status.State,
			})
			if obs.TotalFilled > 0 {
				return true, e.completeHedging(ctx)
			}
			e.fail(types.StatusCancelled, types.CodeExternalCancel, nil)
			return true, nil
		}
		return false, nil
	}

	// Prefetch: the first status read happens immediately, not a poll
	// interval from now.
	if done, err := poll(); done {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return e.cancelAndEnd(context.Background(), types.CodeExternalCancel)

		case reason := <-e.guardInvalid:
			e.logEvent("GUARD_INVALID", tasklog.PriorityCritical, map[string]interface{}{
				"reason": reason,
			})
			return e.cancelAndEnd(ctx, reason)

		case <-timeout.C:
			// A paused task keeps its order resting; the timeout only
			// fires while the task is live.
			if e.isPaused() {
				timeout.Reset(e.knobs.PollInterval)
				continue
			}
			e.logEvent("ORDER_TIMEOUT", tasklog.PriorityInfo, nil)
			return e.cancelAndEnd(ctx, types.CodeOrderTimeout)

		case <-e.waker.Chan():
			if done, err := poll(); done {
				return err
			}
		case <-ticker.C:
			if done, err := poll(); done {
				return err
			}
		}
	}
}

// absorbFills applies a new observation: state transition on first fill,
// fee haircut, and gated incremental hedging. The delta is measured
// against the executor's own credited total, not the observation's, so a
// fill first seen by the event stream is still credited by the next poll.
func (e *Executor) absorbFills(ctx context.Context, obs fills.Observation, avgPrice float64) {
	e.mu.Lock()
	delta := obs.TotalFilled - e.credited
	if delta <= 0 {
		e.mu.Unlock()
		return
	}
	e.credited = obs.TotalFilled

	fillPrice := avgPrice
	if fillPrice <= 0 {
		fillPrice = e.snap.AvgPredictPrice
	}
	actual := delta
	if e.cfg.Direction == types.DirectionBuy {
		actual = delta * (1 - types.FeeAsShareRatio(fillPrice, e.cfg.FeeBps))
	}

	first := e.snap.PredictFilledQty == 0
	e.snap.PredictFilledQty = obs.TotalFilled
	if first && !obs.FirstFillAt.IsZero() {
		e.snap.Timestamps.FirstFillAt = obs.FirstFillAt
	}
	if avgPrice > 0 {
		e.snap.AvgPredictPrice = avgPrice
	}
	e.actualShares += actual
	e.pending += actual
	pending := e.pending
	status := e.snap.Status
	e.mu.Unlock()

	FillSharesTotal.Add(delta)
	e.logEvent("PARTIAL_FILL", tasklog.PriorityInfo, map[string]interface{}{
		"delta":  delta,
		"actual": actual,
		"total":  obs.TotalFilled,
	})

	if status == types.StatusSubmitted {
		e.setStatus(types.StatusPartiallyFilled)
	}

	// Hedge gate: small increments accumulate until both the share and
	// notional thresholds clear; a full predict fill flushes everything
	// via completeHedging instead. A paused task accrues fills but sends
	// no hedge orders until the stream returns.
	est := e.estimateHedgePrice(ctx)
	if status != types.StatusPaused &&
		pending >= e.knobs.MinHedgeShares && pending*est >= e.knobs.MinHedgeNotional {
		e.setStatus(types.StatusHedging)
		if err := e.incrementalHedge(ctx, pending); err != nil {
			e.logger.Warn("incremental-hedge-failed", zap.Error(err))
		}
		e.setStatus(types.StatusPartiallyFilled)
	}
}

// pause suspends the task while the hedge venue's stream is down: the
// predict order keeps resting and fills keep accruing, but no hedge
// orders go out until the stream returns.
func (e *Executor) pause() {
	e.mu.Lock()
	if e.snap.Status == types.StatusPaused || e.snap.Status.Terminal() {
		e.mu.Unlock()
		return
	}
	e.resumeStatus = e.snap.Status
	e.snap.PauseCount++
	e.mu.Unlock()

	TasksPausedTotal.Inc()
	e.logEvent("TASK_PAUSED", tasklog.PriorityCritical, map[string]interface{}{
		"reason": types.CodeWSUnavailable,
	})
	e.setStatus(types.StatusPaused)
}

// resume restores the pre-pause status, upgraded to PARTIALLY_FILLED if
// fills landed during the pause.
func (e *Executor) resume() {
	e.mu.Lock()
	if e.snap.Status != types.StatusPaused {
		e.mu.Unlock()
		return
	}
	to := e.resumeStatus
	if to == types.StatusSubmitted && e.snap.PredictFilledQty > 0 {
		to = types.StatusPartiallyFilled
	}
	e.mu.Unlock()

	e.logEvent("TASK_RESUMED", tasklog.PriorityInfo, nil)
	e.setStatus(to)
	e.waker.Wake()
}

func (e *Executor) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Status == types.StatusPaused
}

func (e *Executor) orderRef() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap.OrderHash != "" {
		return e.snap.OrderHash
	}
	return e.snap.OrderID
}

func (e *Executor) wasCancelIssued() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelIssued
}

// cancelAndEnd is the teardown path shared by guard trips, timeouts and
// external aborts: cancel the resting order under a bounded budget, force
// one last status read to capture racing fills, hedge what filled, and
// publish the final state.
func (e *Executor) cancelAndEnd(ctx context.Context, reason string) error {
	e.mu.Lock()
	e.cancelIssued = true
	orderID := e.snap.OrderID
	e.mu.Unlock()

	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.knobs.CancelBudget)
	defer cancel()

	if err := e.predict.CancelOrder(cancelCtx, orderID); err != nil {
		// Tolerated: the order may already be gone, or the venue slow.
		e.logger.Warn("cancel-order-failed", zap.Error(err))
	}

	// Force-refresh: a fill may have landed while the cancel was in
	// flight.
	if status, err := e.predict.GetOrderStatus(cancelCtx, e.orderRef()); err == nil {
		obs := e.agg.OnPoll(status)
		e.absorbFillsNoHedge(obs, status.AvgPrice)
	}

	e.mu.Lock()
	unhedged := e.actualShares - e.snap.HedgedQty
	e.mu.Unlock()

	if unhedged >= dustThreshold {
		// Hedging runs on a detached context: the loss-hedge budget, not
		// the cancel budget, bounds it.
		if err := e.completeHedging(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		e.logEvent("TASK_CANCELLED", tasklog.PriorityCritical, map[string]interface{}{
			"reason": reason,
		})
		return nil
	}

	e.fail(types.StatusCancelled, reason, nil)
	e.logEvent("TASK_CANCELLED", tasklog.PriorityCritical, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// absorbFillsNoHedge updates counters without triggering the hedge gate;
// used on the final forced refresh where completeHedging follows anyway.
func (e *Executor) absorbFillsNoHedge(obs fills.Observation, avgPrice float64) {
	e.mu.Lock()
	delta := obs.TotalFilled - e.credited
	if delta <= 0 {
		e.mu.Unlock()
		return
	}
	e.credited = obs.TotalFilled

	fillPrice := avgPrice
	if fillPrice <= 0 {
		fillPrice = e.snap.AvgPredictPrice
	}
	actual := delta
	if e.cfg.Direction == types.DirectionBuy {
		actual = delta * (1 - types.FeeAsShareRatio(fillPrice, e.cfg.FeeBps))
	}

	e.snap.PredictFilledQty = obs.TotalFilled
	if e.snap.Timestamps.FirstFillAt.IsZero() && !obs.FirstFillAt.IsZero() {
		e.snap.Timestamps.FirstFillAt = obs.FirstFillAt
	}
	e.actualShares += actual
	e.pending += actual
	e.mu.Unlock()
	FillSharesTotal.Add(delta)
}

func (e *Executor) snapshotField(get func(*types.TaskSnapshot) float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return get(&e.snap)
}

func (e *Executor) setStatus(status types.TaskStatus) {
	e.mu.Lock()
	if e.snap.Status == status || e.snap.Status.Terminal() {
		e.mu.Unlock()
		return
	}
	e.snap.Status = status
	if status.Terminal() {
		e.snap.ActualProfit = e.realizedProfitLocked()
		e.snap.Timestamps.FinishedAt = time.Now()
	}
	snap := e.snap
	e.mu.Unlock()

	e.logger.Info("task-status-changed", zap.String("status", string(status)))
	if e.notify != nil {
		e.notify(snap)
	}
	if status.Terminal() {
		TasksFinishedTotal.WithLabelValues(string(status)).Inc()
		if err := e.sink.WriteSummary(&snap); err != nil {
			e.logger.Error("summary-write-failed", zap.Error(err))
		}
	}
}

// realizedProfitLocked computes the realised edge of the paired position.
// A BUY pays both legs now and collects $1 per paired share at resolution;
// a SELL collects both legs now and gives up that $1. Caller holds e.mu.
func (e *Executor) realizedProfitLocked() float64 {
	if e.snap.PredictFilledQty == 0 {
		return 0
	}
	if e.cfg.Direction == types.DirectionBuy {
		return e.snap.PredictFilledQty*(1-e.snap.AvgPredictPrice) - e.snap.HedgeCostSum
	}
	return e.snap.PredictFilledQty*e.snap.AvgPredictPrice + e.snap.HedgeCostSum - e.snap.PredictFilledQty
}

// fail moves the task to a terminal status with a reason.
func (e *Executor) fail(status types.TaskStatus, reason string, err error) {
	e.mu.Lock()
	e.snap.FailReason = reason
	e.mu.Unlock()

	fields := map[string]interface{}{"reason": reason}
	if err != nil {
		fields["error"] = err.Error()
	}
	e.logEvent("TASK_"+string(status), tasklog.PriorityCritical, fields)
	e.setStatus(status)
}

func (e *Executor) logEvent(eventType string, priority tasklog.Priority, fields map[string]interface{}) {
	e.sink.LogEvent(e.cfg.TaskID, strings.ToUpper(eventType), priority, fields)
}
