package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS task_summaries (
	task_id            TEXT PRIMARY KEY,
	status             TEXT NOT NULL,
	direction          TEXT NOT NULL,
	side               TEXT NOT NULL,
	predict_market_id  TEXT NOT NULL,
	hedge_token_id     TEXT NOT NULL,
	limit_price        DOUBLE PRECISION NOT NULL,
	target_qty         DOUBLE PRECISION NOT NULL,
	filled_qty         DOUBLE PRECISION NOT NULL,
	hedged_qty         DOUBLE PRECISION NOT NULL,
	hedge_cost_sum     DOUBLE PRECISION NOT NULL,
	avg_predict_price  DOUBLE PRECISION NOT NULL,
	actual_profit      DOUBLE PRECISION NOT NULL,
	loss_hedge         BOOLEAN NOT NULL,
	pause_count        INTEGER NOT NULL,
	hedge_retries      INTEGER NOT NULL,
	fail_reason        TEXT,
	created_at         TIMESTAMPTZ NOT NULL,
	finished_at        TIMESTAMPTZ,
	recorded_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertSummarySQL = `
INSERT INTO task_summaries (
	task_id, status, direction, side, predict_market_id, hedge_token_id,
	limit_price, target_qty, filled_qty, hedged_qty, hedge_cost_sum,
	avg_predict_price, actual_profit, loss_hedge, pause_count, hedge_retries,
	fail_reason, created_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (task_id) DO UPDATE SET
	status = EXCLUDED.status,
	filled_qty = EXCLUDED.filled_qty,
	hedged_qty = EXCLUDED.hedged_qty,
	hedge_cost_sum = EXCLUDED.hedge_cost_sum,
	avg_predict_price = EXCLUDED.avg_predict_price,
	actual_profit = EXCLUDED.actual_profit,
	loss_hedge = EXCLUDED.loss_hedge,
	pause_count = EXCLUDED.pause_count,
	hedge_retries = EXCLUDED.hedge_retries,
	fail_reason = EXCLUDED.fail_reason,
	finished_at = EXCLUDED.finished_at`

// PostgresStore persists summaries to a task_summaries table.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to Postgres, verifies the connection and ensures the
// summary table exists.
func Open(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPostgresStore(db, logger)
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure task_summaries table: %w", err)
	}
	return store, nil
}

// NewPostgresStore wraps an existing connection pool. Used directly by
// tests; production goes through Open.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) SaveSummary(ctx context.Context, snap *types.TaskSnapshot) error {
	var finishedAt interface{}
	if !snap.Timestamps.FinishedAt.IsZero() {
		finishedAt = snap.Timestamps.FinishedAt
	}

	_, err := s.db.ExecContext(ctx, upsertSummarySQL,
		snap.Config.TaskID,
		string(snap.Status),
		string(snap.Config.Direction),
		string(snap.Config.Side),
		snap.Config.PredictMarketID,
		snap.Config.HedgeTokenID(),
		snap.Config.LimitPrice,
		snap.Config.TargetQty,
		snap.PredictFilledQty,
		snap.HedgedQty,
		snap.HedgeCostSum,
		snap.AvgPredictPrice,
		snap.ActualProfit,
		snap.LossHedge,
		snap.PauseCount,
		snap.HedgeRetries,
		snap.FailReason,
		snap.Timestamps.CreatedAt,
		finishedAt,
	)
	if err != nil {
		SaveErrorsTotal.Inc()
		return fmt.Errorf("save summary %s: %w", snap.Config.TaskID, err)
	}
	SavesTotal.Inc()
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
