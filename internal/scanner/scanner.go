// Package scanner evaluates configured market pairs for cross-venue
// arbitrage: buying one outcome on the predict venue and the opposite
// outcome on the hedge venue for a combined price under $1.
package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Pair binds a predict market to its hedge-venue token pair.
type Pair struct {
	PredictMarketID string
	HedgeYesTokenID string
	HedgeNoTokenID  string
	// Inverted means the venues pose the question symmetrically, so the
	// same-named token is the hedge.
	Inverted bool
	NegRisk  bool
}

// PredictBooks and HedgeBooks are the market-data surfaces the scanner
// reads. Both return full-depth books.
type PredictBooks interface {
	GetOrderbook(ctx context.Context, marketID string) (*types.Orderbook, error)
}

type HedgeBooks interface {
	GetOrderbook(ctx context.Context, tokenID string) (*types.Orderbook, error)
}

// Scanner periodically prices every configured pair.
type Scanner struct {
	pairs    []Pair
	predict  PredictBooks
	hedge    HedgeBooks
	interval time.Duration
	// minMargin is the minimum profit per paired share: a candidate needs
	// yesCost + noCost <= 1 - minMargin.
	minMargin float64
	onFound   func(types.Opportunity)
	logger    *zap.Logger
}

// Config holds scanner configuration.
type Config struct {
	Pairs     []Pair
	Predict   PredictBooks
	Hedge     HedgeBooks
	Interval  time.Duration
	MinMargin float64
	// OnFound receives every candidate that clears the margin.
	OnFound func(types.Opportunity)
	Logger  *zap.Logger
}

// New creates a scanner.
func New(cfg *Config) *Scanner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Scanner{
		pairs:     cfg.Pairs,
		predict:   cfg.Predict,
		hedge:     cfg.Hedge,
		interval:  interval,
		minMargin: cfg.MinMargin,
		onFound:   cfg.OnFound,
		logger:    cfg.Logger,
	}
}

// Run scans on a fixed cadence until the context ends.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, opp := range s.Scan(ctx) {
				if s.onFound != nil {
					s.onFound(opp)
				}
			}
		}
	}
}

// Scan prices every pair once and returns the candidates that clear the
// margin. Pairs whose books cannot be fetched are skipped.
func (s *Scanner) Scan(ctx context.Context) []types.Opportunity {
	ScansTotal.Inc()
	var found []types.Opportunity

	for _, pair := range s.pairs {
		predictBook, err := s.predict.GetOrderbook(ctx, pair.PredictMarketID)
		if err != nil {
			ScanErrorsTotal.Inc()
			s.logger.Debug("scan-predict-book-failed",
				zap.String("market", pair.PredictMarketID),
				zap.Error(err))
			continue
		}

		for _, side := range []types.Outcome{types.OutcomeYes, types.OutcomeNo} {
			opp, ok := s.evaluate(ctx, pair, side, predictBook)
			if !ok {
				continue
			}
			OpportunitiesTotal.Inc()
			s.logger.Info("opportunity-found",
				zap.String("market", pair.PredictMarketID),
				zap.String("side", string(side)),
				zap.Float64("profitPct", opp.ProfitPct),
				zap.Float64("depth", opp.ExecutableDepth))
			found = append(found, opp)
		}
	}
	return found
}

// evaluate prices one (pair, side) combination. Buying YES on the predict
// venue pays its best ask; buying NO there is expressed as 1 minus its
// best bid. The hedge leg always buys the neutralising token at its ask.
func (s *Scanner) evaluate(ctx context.Context, pair Pair, side types.Outcome, predictBook *types.Orderbook) (types.Opportunity, bool) {
	var predictCost, predictDepth float64
	if side == types.OutcomeYes {
		ask, ok := predictBook.BestAsk()
		if !ok {
			return types.Opportunity{}, false
		}
		predictCost = ask.Price
		predictDepth = ask.Size
	} else {
		bid, ok := predictBook.BestBid()
		if !ok {
			return types.Opportunity{}, false
		}
		predictCost = 1 - bid.Price
		predictDepth = bid.Size
	}

	hedgeToken := hedgeTokenFor(pair, side)
	hedgeBook, err := s.hedge.GetOrderbook(ctx, hedgeToken)
	if err != nil {
		ScanErrorsTotal.Inc()
		return types.Opportunity{}, false
	}
	hedgeAsk, ok := hedgeBook.BestAsk()
	if !ok {
		return types.Opportunity{}, false
	}

	total := predictCost + hedgeAsk.Price
	if total > 1-s.minMargin {
		return types.Opportunity{}, false
	}

	depth := predictDepth
	if hedgeAsk.Size < depth {
		depth = hedgeAsk.Size
	}

	opp := types.Opportunity{
		ID:              uuid.New().String(),
		PredictMarketID: pair.PredictMarketID,
		Side:            side,
		HedgeYesTokenID: pair.HedgeYesTokenID,
		HedgeNoTokenID:  pair.HedgeNoTokenID,
		Inverted:        pair.Inverted,
		NegRisk:         pair.NegRisk,
		HedgeBestAsk:    hedgeAsk.Price,
		ProfitPct:       (1 - total) * 100,
		ExecutableDepth: depth,
		DetectedAt:      time.Now(),
	}
	if ask, ok := predictBook.BestAsk(); ok {
		opp.PredictBestAsk = ask.Price
	}
	if bid, ok := predictBook.BestBid(); ok {
		opp.PredictBestBid = bid.Price
	}
	if bid, ok := hedgeBook.BestBid(); ok {
		opp.HedgeBestBid = bid.Price
	}
	return opp, true
}

// hedgeTokenFor mirrors the executor's opposite-token rule: the hedge buys
// the token naming the other outcome, unless the pair is inverted.
func hedgeTokenFor(pair Pair, side types.Outcome) string {
	opposite := side == types.OutcomeYes
	if pair.Inverted {
		opposite = !opposite
	}
	if opposite {
		return pair.HedgeNoTokenID
	}
	return pair.HedgeYesTokenID
}
