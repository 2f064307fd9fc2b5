package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/internal/predict"
	"github.com/crossvenue/predictarb/internal/tasklog"
	"github.com/crossvenue/predictarb/pkg/types"
)

const (
	costEpsilon = 1e-4
	// positionSlack tolerates venue rounding when checking a SELL task's
	// inventory against its target.
	positionSlack = 0.99
	// safetyPad shaves the derived hedge estimate when entry validation
	// runs on reference prices instead of live books.
	safetyPad = 0.005

	bookRetries    = 3
	bookRetrySleep = time.Second
)

// validateEntry runs the CREATED → SUBMITTED checks and returns the
// aligned order price and quantity.
func (e *Executor) validateEntry(ctx context.Context) (price, qty float64, err error) {
	if e.cfg.Direction == types.DirectionSell {
		pos, perr := e.hedge.GetPosition(ctx, e.cfg.HedgeTokenID())
		if perr != nil {
			return 0, 0, perr
		}
		if pos.Shares < positionSlack*e.cfg.TargetQty {
			return 0, 0, types.NewVenueError(types.CodePositionInsufficient, types.ClassSemantic,
				"hedge position %.4f below target %.4f", pos.Shares, e.cfg.TargetQty)
		}
	}

	predictBook, hedgeBook := e.fetchEntryBooks(ctx)

	// Align price to the venue tick: a TAKER BUY crosses upward, a SELL
	// rests downward.
	if e.cfg.Direction == types.DirectionBuy && e.cfg.Strategy == types.StrategyTaker {
		price = predict.AlignPriceUp(e.cfg.LimitPrice, e.cfg.TickSize)
	} else {
		price = predict.AlignPriceDown(e.cfg.LimitPrice, e.cfg.TickSize)
	}
	qty = predict.AlignQty(e.cfg.TargetQty)

	if e.cfg.Direction == types.DirectionBuy {
		hedgeAsk := e.entryHedgeAsk(hedgeBook)
		fee := types.FeePerShare(price, e.cfg.FeeBps)
		total := price + hedgeAsk + fee
		if total > e.cfg.MaxTotalCost+costEpsilon {
			return 0, 0, types.NewVenueError(types.CodeCostInvalid, types.ClassSemantic,
				"total cost %.4f exceeds bound %.4f", total, e.cfg.MaxTotalCost)
		}
	}

	if predictBook != nil {
		e.sink.LogOrderbook(e.cfg.TaskID, predictBook)
	}
	if hedgeBook != nil {
		e.sink.LogOrderbook(e.cfg.TaskID, hedgeBook)
	}
	e.logEvent("ENTRY_VALIDATED", tasklog.PriorityInfo, map[string]interface{}{
		"price": price,
		"qty":   qty,
	})
	return price, qty, nil
}

// fetchEntryBooks reads both venues' books with bounded retries. Either
// may come back nil; validation then falls back to reference prices.
func (e *Executor) fetchEntryBooks(ctx context.Context) (*types.Orderbook, *types.Orderbook) {
	var predictBook, hedgeBook *types.Orderbook

	for attempt := 0; attempt < bookRetries; attempt++ {
		if predictBook == nil {
			if book, err := e.predict.GetOrderbook(ctx, e.cfg.PredictMarketID); err == nil {
				predictBook = book
			}
		}
		if hedgeBook == nil {
			if book, err := e.hedgeBook(ctx); err == nil {
				hedgeBook = book
			}
		}
		if predictBook != nil && hedgeBook != nil {
			return predictBook, hedgeBook
		}

		select {
		case <-time.After(bookRetrySleep):
		case <-ctx.Done():
			return predictBook, hedgeBook
		}
	}

	e.logger.Warn("entry-books-unavailable-using-references",
		zap.Bool("predict", predictBook != nil),
		zap.Bool("hedge", hedgeBook != nil))
	return predictBook, hedgeBook
}

// entryHedgeAsk picks the hedge-side ask for the entry cost check: the
// live book when present, the reference snapshot otherwise, and as a last
// resort an estimate derived from the acceptance bound minus a pad.
func (e *Executor) entryHedgeAsk(hedgeBook *types.Orderbook) float64 {
	if hedgeBook != nil {
		if ask, ok := hedgeBook.BestAsk(); ok {
			return ask.Price
		}
	}
	if e.cfg.RefHedgePrice > 0 {
		return e.cfg.RefHedgePrice
	}
	return e.cfg.MaxHedgePrice - safetyPad
}
