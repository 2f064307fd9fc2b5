package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// ConsoleStore writes summaries to the structured log. The default when
// no database is configured.
type ConsoleStore struct {
	logger *zap.Logger
}

// NewConsoleStore creates a console store.
func NewConsoleStore(logger *zap.Logger) *ConsoleStore {
	return &ConsoleStore{logger: logger}
}

func (s *ConsoleStore) SaveSummary(_ context.Context, snap *types.TaskSnapshot) error {
	s.logger.Info("task-summary",
		zap.String("task", snap.Config.TaskID),
		zap.String("status", string(snap.Status)),
		zap.String("market", snap.Config.PredictMarketID),
		zap.String("side", string(snap.Config.Side)),
		zap.Float64("filled", snap.PredictFilledQty),
		zap.Float64("hedged", snap.HedgedQty),
		zap.Float64("hedgeCost", snap.HedgeCostSum),
		zap.Float64("avgPredictPrice", snap.AvgPredictPrice),
		zap.Bool("lossHedge", snap.LossHedge),
		zap.String("failReason", snap.FailReason))
	return nil
}

func (s *ConsoleStore) Close() error { return nil }
