package app

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Run starts every component and blocks until the context is cancelled,
// then tears down in dependency order.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.sink.Start()

	if err := a.wsManager.Start(); err != nil {
		// The reconnect loop keeps dialing; REST fallback covers the gap.
		a.logger.Warn("ws-initial-connect-failed", zap.Error(err))
	}

	go a.feedBooks(runCtx)
	go a.watchWSState(runCtx)

	go func() {
		if err := a.fillStream.Run(runCtx); err != nil && runCtx.Err() == nil {
			a.logger.Error("fill-stream-stopped", zap.Error(err))
		}
	}()
	go a.router.Run(runCtx, a.fillStream.Events())

	go a.persistSummaries(runCtx)

	if a.scanner != nil {
		go a.scanner.Run(runCtx)
	}

	httpErr := make(chan error, 1)
	go func() { httpErr <- a.httpServer.Start() }()

	a.health.SetReady(true)
	a.logger.Info("engine-started")

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil {
			a.logger.Error("http-server-failed", zap.Error(err))
		}
	}

	a.health.SetReady(false)
	return a.shutdown()
}

// persistSummaries forwards terminal task snapshots to the summary store.
func (a *App) persistSummaries(ctx context.Context) {
	updates, stop := a.registry.Subscribe()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if !snap.Status.Terminal() {
				continue
			}
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.store.SaveSummary(saveCtx, &snap); err != nil {
				a.logger.Error("summary-persist-failed",
					zap.String("task", snap.Config.TaskID),
					zap.Error(err))
			}
			cancel()
		}
	}
}

// onOpportunity turns a scanner candidate into a task when auto-execution
// is on. The registry's live-order invariant deduplicates repeated
// detections of the same edge.
func (a *App) onOpportunity(opp types.Opportunity) {
	if !a.cfg.ScanAutoExecute {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := a.taskFromOpportunity(ctx, opp)
	if err != nil {
		a.logger.Warn("opportunity-task-build-failed",
			zap.String("market", opp.PredictMarketID),
			zap.Error(err))
		return
	}

	if _, err := a.registry.Create(ctx, cfg); err != nil {
		// Expected while a task for this market/side is already live.
		a.logger.Debug("opportunity-task-rejected",
			zap.String("market", opp.PredictMarketID),
			zap.Error(err))
	}
}

func (a *App) taskFromOpportunity(ctx context.Context, opp types.Opportunity) (*types.TaskConfig, error) {
	info, err := a.predict.GetMarketInfo(ctx, opp.PredictMarketID)
	if err != nil {
		return nil, err
	}

	limit := opp.PredictBestAsk
	if opp.Side == types.OutcomeNo {
		limit = 1 - opp.PredictBestBid
	}
	tick := 0.01
	if info.PriceDecimals > 0 {
		tick = math.Pow(10, -float64(info.PriceDecimals))
	}

	cfg := &types.TaskConfig{
		Direction:       types.DirectionBuy,
		Side:            opp.Side,
		PredictMarketID: opp.PredictMarketID,
		HedgeYesTokenID: opp.HedgeYesTokenID,
		HedgeNoTokenID:  opp.HedgeNoTokenID,
		Inverted:        opp.Inverted,
		NegRisk:         opp.NegRisk,
		LimitPrice:      limit,
		MaxHedgePrice:   opp.HedgeBestAsk,
		TargetQty:       opp.ExecutableDepth,
		FeeBps:          info.BaseFeeBps,
		TickSize:        tick,
		MaxTotalCost:    1 - a.cfg.ScanMinProfitPct/100,
		Strategy:        types.StrategyTaker,
		RefPredictPrice: opp.PredictBestAsk,
		RefHedgePrice:   opp.HedgeBestAsk,
	}

	// The hedge bound must sit on the hedge venue's price grid, never
	// above the detected ask.
	if hTick, err := a.hedge.GetTickSize(ctx, cfg.HedgeTokenID()); err == nil && hTick > 0 {
		cfg.MaxHedgePrice = math.Floor(cfg.MaxHedgePrice/hTick+1e-9) * hTick
	}
	return cfg, nil
}

// shutdown stops components in reverse dependency order under a bounded
// budget: no new tasks, drain executors, then the plumbing.
func (a *App) shutdown() error {
	a.logger.Info("engine-stopping")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.registry.Close(ctx); err != nil {
		a.logger.Error("registry-close-failed", zap.Error(err))
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http-shutdown-failed", zap.Error(err))
	}
	if err := a.wsManager.Close(); err != nil {
		a.logger.Warn("ws-close-failed", zap.Error(err))
	}
	a.books.Close()
	a.sink.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store-close-failed", zap.Error(err))
	}
	a.logger.Info("engine-stopped")
	return nil
}
