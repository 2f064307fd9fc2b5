package task

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/internal/bookcache"
	"github.com/crossvenue/predictarb/internal/tasklog"
	"github.com/crossvenue/predictarb/pkg/types"
)

// dustThreshold is the unhedged remainder below which teardown does not
// bother hedging at all.
const dustThreshold = 0.01

func (e *Executor) hedgeKey() bookcache.Key {
	return bookcache.Key{Venue: "polymarket", Token: e.cfg.HedgeTokenID()}
}

// hedgeBook reads the hedge token's top-of-book, WS cache first, REST
// behind it.
func (e *Executor) hedgeBook(ctx context.Context) (*types.Orderbook, error) {
	key := e.hedgeKey()
	return e.books.Get(ctx, key, func(fctx context.Context) (*types.Orderbook, error) {
		return e.hedge.GetOrderbook(fctx, key.Token)
	})
}

// estimateHedgePrice returns the current executable hedge price, falling
// back to the task's bound when no book is available. Used only for the
// notional gate, so an estimate is fine.
func (e *Executor) estimateHedgePrice(ctx context.Context) float64 {
	if book, err := e.hedgeBook(ctx); err == nil {
		if e.cfg.Direction == types.DirectionBuy {
			if ask, ok := book.BestAsk(); ok {
				return ask.Price
			}
		} else if bid, ok := book.BestBid(); ok {
			return bid.Price
		}
	}
	if e.cfg.RefHedgePrice > 0 {
		return e.cfg.RefHedgePrice
	}
	if e.cfg.Direction == types.DirectionBuy {
		return e.cfg.MaxHedgePrice
	}
	return e.cfg.MinHedgePrice
}

// incrementalHedge places one IOC on the hedge venue for toHedge shares
// at top-of-book. A price outside the task's bound is logged but still
// hedged: naked exposure is worse than a thin hedge.
func (e *Executor) incrementalHedge(ctx context.Context, toHedge float64) error {
	qty := math.Floor(toHedge*100) / 100
	if qty <= 0 {
		return nil
	}

	book, err := e.hedgeBook(ctx)
	if err != nil {
		return err
	}

	var price float64
	if e.cfg.Direction == types.DirectionBuy {
		ask, ok := book.BestAsk()
		if !ok {
			return types.NewVenueError(types.CodePriceInvalid, types.ClassTransient, "no ask depth")
		}
		price = ask.Price
		if price > e.cfg.MaxHedgePrice {
			e.logger.Warn("hedge-price-above-bound",
				zap.Float64("ask", price),
				zap.Float64("bound", e.cfg.MaxHedgePrice))
		}
	} else {
		bid, ok := book.BestBid()
		if !ok {
			return types.NewVenueError(types.CodePriceInvalid, types.ClassTransient, "no bid depth")
		}
		price = bid.Price
		if price < e.cfg.MinHedgePrice {
			e.logger.Warn("hedge-price-below-bound",
				zap.Float64("bid", price),
				zap.Float64("bound", e.cfg.MinHedgePrice))
		}
	}

	fill, err := e.hedge.SubmitIOC(ctx, HedgeOrder{
		TokenID: e.cfg.HedgeTokenID(),
		Side:    e.hedgeSide(),
		Price:   price,
		Qty:     qty,
		NegRisk: e.cfg.NegRisk,
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.snap.HedgedQty += fill.FilledQty
	e.snap.HedgeCostSum += fill.FilledQty * fill.Price
	e.pending -= fill.FilledQty
	if e.pending < 0 {
		e.pending = 0
	}
	e.mu.Unlock()

	HedgeSharesTotal.Add(fill.FilledQty)
	e.logEvent("HEDGE_FILL", tasklog.PriorityInfo, map[string]interface{}{
		"qty":   fill.FilledQty,
		"price": fill.Price,
	})
	return nil
}

// hedgeSide is the hedge venue side that neutralises the predict leg. The
// hedge trades the opposite-named token, so a BUY task buys it and a SELL
// task sells it.
func (e *Executor) hedgeSide() types.Direction {
	return e.cfg.Direction
}

// completeHedging is the final-hedging protocol: bounded retries, then
// the loss-hedge escape for a material remainder.
func (e *Executor) completeHedging(ctx context.Context) error {
	e.setStatus(types.StatusHedging)

	retries := e.cfg.MaxHedgeRetries
	if retries <= 0 {
		retries = 3
	}

	for attempt := 0; attempt < retries; attempt++ {
		remaining := e.unhedged()
		if remaining < e.knobs.MinHedgeShares {
			e.finishComplete()
			return nil
		}
		e.mu.Lock()
		e.snap.HedgeRetries++
		e.mu.Unlock()
		if err := e.incrementalHedge(ctx, remaining); err != nil {
			e.logger.Warn("final-hedge-attempt-failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}

		if e.unhedged() < e.knobs.MinHedgeShares {
			e.finishComplete()
			return nil
		}
		select {
		case <-time.After(e.knobs.HedgeRetrySleep):
		case <-ctx.Done():
		}
	}

	if e.unhedged() < e.knobs.MinHedgeShares {
		e.finishComplete()
		return nil
	}
	return e.lossHedge(ctx)
}

// lossHedge accepts prices up to the deviation ceiling and waits for the
// book to come back inside it, bounded by the total loss-hedge budget.
func (e *Executor) lossHedge(ctx context.Context) error {
	e.setStatus(types.StatusLossHedge)
	LossHedgeEntriesTotal.Inc()

	var ceiling, floor float64
	if e.cfg.Direction == types.DirectionBuy {
		ceiling = e.cfg.MaxHedgePrice * (1 + e.knobs.LossHedgeMaxDeviation)
	} else {
		floor = e.cfg.MinHedgePrice * (1 - e.knobs.LossHedgeMaxDeviation)
	}

	e.logEvent("LOSS_HEDGE_STARTED", tasklog.PriorityCritical, map[string]interface{}{
		"remaining": e.unhedged(),
		"ceiling":   ceiling,
		"floor":     floor,
	})

	deadline := time.Now().Add(e.knobs.LossHedgeMaxWait)
	for time.Now().Before(deadline) {
		book, err := e.hedgeBook(ctx)
		if err == nil {
			acceptable := false
			if e.cfg.Direction == types.DirectionBuy {
				if ask, ok := book.BestAsk(); ok && ask.Price <= ceiling {
					acceptable = true
				}
			} else if bid, ok := book.BestBid(); ok && bid.Price >= floor {
				acceptable = true
			}

			if acceptable {
				if err := e.incrementalHedge(ctx, e.unhedged()); err != nil {
					e.logger.Warn("loss-hedge-attempt-failed", zap.Error(err))
				}
				if e.unhedged() < e.knobs.MinHedgeShares {
					e.mu.Lock()
					e.snap.LossHedge = true
					e.mu.Unlock()
					e.finishComplete()
					return nil
				}
			}
		}

		select {
		case <-time.After(e.knobs.LossHedgeRepoll):
		case <-ctx.Done():
			return e.failHedge()
		}
	}

	return e.failHedge()
}

func (e *Executor) failHedge() error {
	e.logEvent("OPERATOR_INTERVENTION_REQUIRED", tasklog.PriorityCritical, map[string]interface{}{
		"unhedged": e.unhedged(),
	})
	e.fail(types.StatusHedgeFailed, types.CodeHedgeFailed, nil)
	return types.NewVenueError(types.CodeHedgeFailed, types.ClassFatal,
		"%.4f shares unhedged after loss-hedge budget", e.unhedged())
}

func (e *Executor) finishComplete() {
	e.logEvent("TASK_COMPLETED", tasklog.PriorityInfo, map[string]interface{}{
		"filled": e.snapshotField(func(s *types.TaskSnapshot) float64 { return s.PredictFilledQty }),
		"hedged": e.snapshotField(func(s *types.TaskSnapshot) float64 { return s.HedgedQty }),
	})
	e.setStatus(types.StatusCompleted)
}

func (e *Executor) unhedged() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actualShares - e.snap.HedgedQty
}
