package storage

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

func summarySnap() *types.TaskSnapshot {
	return &types.TaskSnapshot{
		Config: types.TaskConfig{
			TaskID:          "t-1",
			Direction:       types.DirectionBuy,
			Side:            types.OutcomeYes,
			PredictMarketID: "m-1",
			HedgeYesTokenID: "111",
			HedgeNoTokenID:  "222",
			LimitPrice:      0.45,
			TargetQty:       10,
		},
		Status:           types.StatusCompleted,
		PredictFilledQty: 10,
		HedgedQty:        9.91,
		HedgeCostSum:     5.15,
		AvgPredictPrice:  0.45,
		ActualProfit:     0.35,
		PauseCount:       1,
		HedgeRetries:     2,
		Timestamps: types.TaskTimestamps{
			CreatedAt:  time.Now().Add(-time.Minute),
			FinishedAt: time.Now(),
		},
	}
}

func TestSaveSummaryInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	store := NewPostgresStore(db, zap.NewNop())
	snap := summarySnap()

	mock.ExpectExec("INSERT INTO task_summaries").
		WithArgs(
			"t-1", "COMPLETED", "BUY", "YES", "m-1", "222",
			0.45, 10.0, 10.0, 9.91, 5.15, 0.45, 0.35, false, 1, 2, "",
			snap.Timestamps.CreatedAt, snap.Timestamps.FinishedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SaveSummary(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveSummaryUnfinishedUsesNullFinishedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	store := NewPostgresStore(db, zap.NewNop())
	snap := summarySnap()
	snap.Status = types.StatusHedgeFailed
	snap.FailReason = "HedgeFailedAfterLossHedge"
	snap.Timestamps.FinishedAt = time.Time{}

	mock.ExpectExec("INSERT INTO task_summaries").
		WithArgs(
			"t-1", "HEDGE_FAILED", "BUY", "YES", "m-1", "222",
			0.45, 10.0, 10.0, 9.91, 5.15, 0.45, 0.35, false, 1, 2, "HedgeFailedAfterLossHedge",
			snap.Timestamps.CreatedAt, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SaveSummary(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveSummaryPropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	store := NewPostgresStore(db, zap.NewNop())

	mock.ExpectExec("INSERT INTO task_summaries").
		WillReturnError(context.DeadlineExceeded)

	if err := store.SaveSummary(context.Background(), summarySnap()); err == nil {
		t.Fatal("expected the driver error to propagate")
	}
}

func TestConsoleStoreNeverFails(t *testing.T) {
	store := NewConsoleStore(zap.NewNop())
	if err := store.SaveSummary(context.Background(), summarySnap()); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
}
