package task

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/internal/bookcache"
	"github.com/crossvenue/predictarb/internal/fills"
	"github.com/crossvenue/predictarb/internal/tasklog"
	"github.com/crossvenue/predictarb/pkg/types"
)

// stubPredict delegates to function fields so each test overrides only
// what it cares about.
type stubPredict struct {
	mu          sync.Mutex
	submitCalls int
	cancelCalls int

	marketInfo func(ctx context.Context, marketID string) (*types.MarketInfo, error)
	orderbook  func(ctx context.Context, marketID string) (*types.Orderbook, error)
	submit     func(ctx context.Context, req *types.SubmitRequest) (*types.SubmitResult, error)
	status     func(ctx context.Context, orderHash string) (*types.OrderStatus, error)
	cancel     func(ctx context.Context, orderID string) error
}

func (s *stubPredict) GetMarketInfo(ctx context.Context, marketID string) (*types.MarketInfo, error) {
	if s.marketInfo != nil {
		return s.marketInfo(ctx, marketID)
	}
	return &types.MarketInfo{MarketID: marketID, AcceptingOrders: true}, nil
}

func (s *stubPredict) GetOrderbook(ctx context.Context, marketID string) (*types.Orderbook, error) {
	if s.orderbook != nil {
		return s.orderbook(ctx, marketID)
	}
	return restBook("predict", marketID, 0.46, 0.44), nil
}

func (s *stubPredict) SubmitOrder(ctx context.Context, req *types.SubmitRequest) (*types.SubmitResult, error) {
	s.mu.Lock()
	s.submitCalls++
	s.mu.Unlock()
	if s.submit != nil {
		return s.submit(ctx, req)
	}
	return &types.SubmitResult{OrderID: "oid-1", OrderHash: "0xhash1"}, nil
}

func (s *stubPredict) GetOrderStatus(ctx context.Context, orderHash string) (*types.OrderStatus, error) {
	return s.status(ctx, orderHash)
}

func (s *stubPredict) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	s.cancelCalls++
	s.mu.Unlock()
	if s.cancel != nil {
		return s.cancel(ctx, orderID)
	}
	return nil
}

func (s *stubPredict) cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelCalls
}

func (s *stubPredict) submits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitCalls
}

// stubHedge records every IOC it receives and fills it fully at the order
// price unless submitErr is set.
type stubHedge struct {
	mu        sync.Mutex
	iocs      []HedgeOrder
	submitErr error

	orderbook func(ctx context.Context, tokenID string) (*types.Orderbook, error)
	position  func(ctx context.Context, tokenID string) (*types.Position, error)
}

func (s *stubHedge) GetOrderbook(ctx context.Context, tokenID string) (*types.Orderbook, error) {
	if s.orderbook != nil {
		return s.orderbook(ctx, tokenID)
	}
	return restBook("polymarket", tokenID, 0.52, 0.50), nil
}

func (s *stubHedge) GetPosition(ctx context.Context, tokenID string) (*types.Position, error) {
	if s.position != nil {
		return s.position(ctx, tokenID)
	}
	return &types.Position{TokenID: tokenID}, nil
}

func (s *stubHedge) SubmitIOC(ctx context.Context, order HedgeOrder) (*types.HedgeFill, error) {
	s.mu.Lock()
	s.iocs = append(s.iocs, order)
	s.mu.Unlock()
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &types.HedgeFill{
		OrderID:   "hedge-1",
		Price:     order.Price,
		FilledQty: order.Qty,
		Timestamp: time.Now(),
	}, nil
}

func (s *stubHedge) orders() []HedgeOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HedgeOrder, len(s.iocs))
	copy(out, s.iocs)
	return out
}

// stubRouter captures the registered fill handler.
type stubRouter struct {
	mu      sync.Mutex
	handler fills.Handler
}

func (r *stubRouter) Register(orderHash string, h fills.Handler) {
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
}

func (r *stubRouter) Unregister(orderHash string) {}

func (r *stubRouter) deliver(ev *types.FillEvent) bool {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()
	if h == nil {
		return false
	}
	h(ev)
	return true
}

// recordingSink collects events in memory.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) LogEvent(taskID, eventType string, priority tasklog.Priority, fields map[string]interface{}) {
	s.mu.Lock()
	s.events = append(s.events, eventType)
	s.mu.Unlock()
}

func (s *recordingSink) LogOrderbook(taskID string, book *types.Orderbook) {}

func (s *recordingSink) WriteSummary(snap *types.TaskSnapshot) error { return nil }

func (s *recordingSink) has(eventType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == eventType {
			return true
		}
	}
	return false
}

func restBook(venue, token string, ask, bid float64) *types.Orderbook {
	now := time.Now()
	return &types.Orderbook{
		Venue:           venue,
		Token:           token,
		Bids:            []types.Level{{Price: bid, Size: 100}},
		Asks:            []types.Level{{Price: ask, Size: 100}},
		Source:          types.SourceREST,
		SourceTimestamp: now,
		ObservedAt:      now,
	}
}

func testTask() *types.TaskConfig {
	return &types.TaskConfig{
		TaskID:          "t-1",
		Direction:       types.DirectionBuy,
		Side:            types.OutcomeYes,
		PredictMarketID: "m-1",
		HedgeYesTokenID: "111",
		HedgeNoTokenID:  "222",
		LimitPrice:      0.45,
		MaxHedgePrice:   0.55,
		TargetQty:       10,
		FeeBps:          200,
		TickSize:        0.01,
		MaxTotalCost:    0.99,
		Strategy:        types.StrategyTaker,
		OrderTimeout:    5 * time.Second,
		MaxHedgeRetries: 2,
	}
}

func fastKnobs() Knobs {
	return Knobs{
		PollInterval:       5 * time.Millisecond,
		CostCheckThrottle:  time.Millisecond,
		FirstStatusTimeout: time.Second,
		CancelBudget:       time.Second,
		HedgeRetrySleep:    time.Millisecond,
		LossHedgeMaxWait:   50 * time.Millisecond,
		LossHedgeRepoll:    5 * time.Millisecond,
	}
}

type fixture struct {
	exec        *Executor
	predict     *stubPredict
	hedge       *stubHedge
	router      *stubRouter
	sink        *recordingSink
	books       *bookcache.Cache
	wsState     chan bool
	transitions chan types.TaskSnapshot
}

func newFixture(t *testing.T, cfg *types.TaskConfig, predict *stubPredict, hedge *stubHedge) *fixture {
	t.Helper()
	books := bookcache.New(&bookcache.Config{
		FreshTTL: 100 * time.Millisecond,
		Stale:    200 * time.Millisecond,
		MaxStale: 400 * time.Millisecond,
		Logger:   zap.NewNop(),
	})
	t.Cleanup(books.Close)

	router := &stubRouter{}
	sink := &recordingSink{}
	wsState := make(chan bool, 1)
	transitions := make(chan types.TaskSnapshot, 64)

	exec := NewExecutor(&ExecutorConfig{
		Task:    cfg,
		Knobs:   fastKnobs(),
		Predict: predict,
		Hedge:   hedge,
		Books:   books,
		Router:  router,
		Sink:    sink,
		WSState: wsState,
		OnTransition: func(snap types.TaskSnapshot) {
			select {
			case transitions <- snap:
			default:
			}
		},
		Logger: zap.NewNop(),
	})
	return &fixture{
		exec:        exec,
		predict:     predict,
		hedge:       hedge,
		router:      router,
		sink:        sink,
		books:       books,
		wsState:     wsState,
		transitions: transitions,
	}
}

// waitStatus blocks until a transition to the wanted status comes through.
func waitStatus(t *testing.T, f *fixture, want types.TaskStatus) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-f.transitions:
			if snap.Status == want {
				return
			}
		case <-deadline:
			t.Fatalf("never observed status %s", want)
		}
	}
}

// seqStatus serves statuses in order, repeating the last one forever.
func seqStatus(seq ...*types.OrderStatus) func(context.Context, string) (*types.OrderStatus, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, string) (*types.OrderStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		s := seq[i]
		if i < len(seq)-1 {
			i++
		}
		return s, nil
	}
}

func orderStatus(state types.OrderState, filled, avg float64) *types.OrderStatus {
	return &types.OrderStatus{
		ID:         "oid-1",
		State:      state,
		FilledQty:  filled,
		AvgPrice:   avg,
		ReportedAt: time.Now(),
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestExecutorCleanFillCompletes(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderFilled, 10, 0.45)),
	}
	hedge := &stubHedge{}
	f := newFixture(t, testTask(), predict, hedge)

	if err := f.exec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.exec.Snapshot()
	if snap.Status != types.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", snap.Status)
	}

	// Fee haircut on the BUY leg: 10 shares at 0.45 with 200 bps and the
	// 10% rebate nets 10·(1 − 0.02·0.45·0.9) = 9.919, hedged in 0.01
	// increments as 9.91.
	approx(t, "PredictFilledQty", snap.PredictFilledQty, 10)
	approx(t, "HedgedQty", snap.HedgedQty, 9.91)
	approx(t, "HedgeCostSum", snap.HedgeCostSum, 9.91*0.52)
	// 10·(1 − 0.45) − 9.91·0.52: each paired share resolves to $1.
	approx(t, "ActualProfit", snap.ActualProfit, 10*(1-0.45)-9.91*0.52)
	if snap.HedgeRetries != 1 {
		t.Fatalf("HedgeRetries = %d, want 1", snap.HedgeRetries)
	}
	if snap.LossHedge {
		t.Fatal("clean completion must not flag loss hedge")
	}

	orders := hedge.orders()
	if len(orders) != 1 {
		t.Fatalf("hedge orders = %d, want 1", len(orders))
	}
	if orders[0].TokenID != "222" {
		t.Fatalf("hedge token = %s, want the opposite-named token", orders[0].TokenID)
	}
	if orders[0].Side != types.DirectionBuy {
		t.Fatalf("hedge side = %s, want BUY", orders[0].Side)
	}
}

func TestExecutorFilledButEmptyCancels(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderFilled, 0, 0)),
	}
	f := newFixture(t, testTask(), predict, &stubHedge{})

	if err := f.exec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.exec.Snapshot()
	if snap.Status != types.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", snap.Status)
	}
	if snap.FailReason != types.CodeFilledButEmpty {
		t.Fatalf("reason = %s, want %s", snap.FailReason, types.CodeFilledButEmpty)
	}
	if !f.sink.has("FILLED_BUT_EMPTY") {
		t.Fatal("FILLED_BUT_EMPTY event not recorded")
	}
}

func TestExecutorExternalCancelWithoutFills(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderCancelled, 0, 0)),
	}
	f := newFixture(t, testTask(), predict, &stubHedge{})

	if err := f.exec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.exec.Snapshot()
	if snap.Status != types.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", snap.Status)
	}
	if snap.FailReason != types.CodeExternalCancel {
		t.Fatalf("reason = %s, want %s", snap.FailReason, types.CodeExternalCancel)
	}
	if !f.sink.has("EXTERNAL_CANCEL_DETECTED") {
		t.Fatal("EXTERNAL_CANCEL_DETECTED event not recorded")
	}
}

func TestExecutorExternalCancelHedgesPartialFill(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(
			orderStatus(types.OrderPartiallyFilled, 4, 0.45),
			orderStatus(types.OrderCancelled, 4, 0.45),
		),
	}
	hedge := &stubHedge{}
	f := newFixture(t, testTask(), predict, hedge)

	if err := f.exec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.exec.Snapshot()
	if snap.Status != types.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED after hedging the partial", snap.Status)
	}
	// 4·(1 − 0.02·0.45·0.9) = 3.9676 hedged as 3.96.
	approx(t, "HedgedQty", snap.HedgedQty, 3.96)
}

func TestExecutorOrderTimeoutCancels(t *testing.T) {
	cfg := testTask()
	cfg.OrderTimeout = 30 * time.Millisecond

	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderOpen, 0, 0)),
	}
	f := newFixture(t, cfg, predict, &stubHedge{})

	if err := f.exec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.exec.Snapshot()
	if snap.Status != types.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", snap.Status)
	}
	if snap.FailReason != types.CodeOrderTimeout {
		t.Fatalf("reason = %s, want %s", snap.FailReason, types.CodeOrderTimeout)
	}
	if predict.cancels() == 0 {
		t.Fatal("timeout must issue a venue cancel")
	}
}

func TestExecutorGuardTripCancels(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderOpen, 0, 0)),
	}
	f := newFixture(t, testTask(), predict, &stubHedge{})

	done := make(chan error, 1)
	go func() { done <- f.exec.Run(context.Background()) }()

	// Let entry validation finish on the good book before poisoning it.
	for {
		snap := <-f.transitions
		if snap.Status == types.StatusSubmitted {
			break
		}
	}

	// Feed books with an ask far above the hedge bound until the guard
	// trips and the executor tears down.
	key := bookcache.Key{Venue: "polymarket", Token: "222"}
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatal(err)
			}
			snap := f.exec.Snapshot()
			if snap.Status != types.StatusCancelled {
				t.Fatalf("status = %s, want CANCELLED", snap.Status)
			}
			if snap.FailReason != types.CodeCostInvalid {
				t.Fatalf("reason = %s, want %s", snap.FailReason, types.CodeCostInvalid)
			}
			return
		case <-time.After(5 * time.Millisecond):
			bad := restBook("polymarket", "222", 0.90, 0.88)
			bad.Source = types.SourceWS
			f.books.Put(key, bad)
		}
	}
}

func TestExecutorHedgeGateAccumulates(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(
			orderStatus(types.OrderPartiallyFilled, 1, 0.45), // below both gates
			orderStatus(types.OrderPartiallyFilled, 3, 0.45), // clears them
			orderStatus(types.OrderFilled, 10, 0.45),
		),
	}
	hedge := &stubHedge{}
	f := newFixture(t, testTask(), predict, hedge)

	if err := f.exec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.exec.Snapshot()
	if snap.Status != types.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", snap.Status)
	}

	orders := hedge.orders()
	if len(orders) < 2 {
		t.Fatalf("hedge orders = %d, want at least 2", len(orders))
	}
	// The 1-share fill stays pending: the first IOC goes out only after
	// the cumulative 3·0.9919 = 2.9757 clears the 2-share gate.
	approx(t, "first hedge qty", orders[0].Qty, 2.97)
	approx(t, "HedgedQty", snap.HedgedQty, 9.91)
}

func TestExecutorEventDrivenFill(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(
			orderStatus(types.OrderOpen, 0, 0),
			orderStatus(types.OrderOpen, 0, 0),
			orderStatus(types.OrderFilled, 10, 0.45),
		),
	}
	hedge := &stubHedge{}
	f := newFixture(t, testTask(), predict, hedge)

	fillAt := time.Now().Add(-time.Second)
	go func() {
		// The handler registers right after submission; retry until it is
		// there, then deliver one on-chain fill. The share amount rides
		// the maker side because the maker asset is not collateral.
		ev := &types.FillEvent{
			OrderHash:    "0xhash1",
			MakerAssetID: "123",
			TakerAssetID: "0",
			MakerAmount:  4,
			TakerAmount:  1.8,
			TxHash:       "0xaa",
			LogIndex:     1,
			Timestamp:    fillAt,
		}
		for !f.router.deliver(ev) {
			time.Sleep(time.Millisecond)
		}
	}()

	if err := f.exec.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.exec.Snapshot()
	if snap.Status != types.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", snap.Status)
	}
	if !snap.Timestamps.FirstFillAt.Equal(fillAt) {
		t.Fatalf("FirstFillAt = %v, want the on-chain timestamp %v",
			snap.Timestamps.FirstFillAt, fillAt)
	}
}

func TestExecutorEntryCostCheckFails(t *testing.T) {
	cfg := testTask()
	cfg.MaxTotalCost = 0.90 // 0.45 + 0.52 + fee exceeds this

	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderOpen, 0, 0)),
	}
	f := newFixture(t, cfg, predict, &stubHedge{})

	err := f.exec.Run(context.Background())
	if err == nil {
		t.Fatal("expected entry validation to fail")
	}
	if types.ErrorCode(err) != types.CodeCostInvalid {
		t.Fatalf("code = %s, want %s", types.ErrorCode(err), types.CodeCostInvalid)
	}
	if f.exec.Snapshot().Status != types.StatusFailed {
		t.Fatalf("status = %s, want FAILED", f.exec.Snapshot().Status)
	}
	if f.predict.submits() != 0 {
		t.Fatal("no order may be submitted after a failed entry check")
	}
}

func TestExecutorSellRequiresPosition(t *testing.T) {
	cfg := testTask()
	cfg.Direction = types.DirectionSell
	cfg.MaxHedgePrice = 0
	cfg.MaxTotalCost = 0
	cfg.MinHedgePrice = 0.40

	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderOpen, 0, 0)),
	}
	hedge := &stubHedge{
		position: func(ctx context.Context, tokenID string) (*types.Position, error) {
			return &types.Position{TokenID: tokenID, Shares: 1}, nil
		},
	}
	f := newFixture(t, cfg, predict, hedge)

	err := f.exec.Run(context.Background())
	if err == nil {
		t.Fatal("expected position check to fail")
	}
	if types.ErrorCode(err) != types.CodePositionInsufficient {
		t.Fatalf("code = %s, want %s", types.ErrorCode(err), types.CodePositionInsufficient)
	}
	if f.predict.submits() != 0 {
		t.Fatal("no order may be submitted without inventory")
	}
}

func TestExecutorLossHedgeExhaustionFails(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderFilled, 10, 0.45)),
	}
	hedge := &stubHedge{
		submitErr: errors.New("venue down"),
	}
	f := newFixture(t, testTask(), predict, hedge)

	err := f.exec.Run(context.Background())
	if err == nil {
		t.Fatal("expected a hedge failure")
	}
	if types.ErrorCode(err) != types.CodeHedgeFailed {
		t.Fatalf("code = %s, want %s", types.ErrorCode(err), types.CodeHedgeFailed)
	}

	snap := f.exec.Snapshot()
	if snap.Status != types.StatusHedgeFailed {
		t.Fatalf("status = %s, want HEDGE_FAILED", snap.Status)
	}
	if snap.HedgeRetries != 2 {
		t.Fatalf("HedgeRetries = %d, want the configured retry budget", snap.HedgeRetries)
	}
	if !f.sink.has("LOSS_HEDGE_STARTED") {
		t.Fatal("LOSS_HEDGE_STARTED event not recorded")
	}
	if !f.sink.has("OPERATOR_INTERVENTION_REQUIRED") {
		t.Fatal("OPERATOR_INTERVENTION_REQUIRED event not recorded")
	}

	sawLossHedge := false
	for {
		select {
		case snap := <-f.transitions:
			if snap.Status == types.StatusLossHedge {
				sawLossHedge = true
			}
		default:
			if !sawLossHedge {
				t.Fatal("LOSS_HEDGE status never observed")
			}
			return
		}
	}
}

func TestExecutorWSLossPausesAndResumes(t *testing.T) {
	cfg := testTask()
	cfg.OrderTimeout = 150 * time.Millisecond

	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderOpen, 0, 0)),
	}
	f := newFixture(t, cfg, predict, &stubHedge{})

	done := make(chan error, 1)
	go func() { done <- f.exec.Run(context.Background()) }()

	waitStatus(t, f, types.StatusSubmitted)
	f.wsState <- false
	waitStatus(t, f, types.StatusPaused)

	// The order timeout must not fire while paused: well past the budget,
	// the task still rests.
	time.Sleep(3 * cfg.OrderTimeout)
	snap := f.exec.Snapshot()
	if snap.Status != types.StatusPaused {
		t.Fatalf("status = %s, want PAUSED through the timeout window", snap.Status)
	}
	if snap.PauseCount != 1 {
		t.Fatalf("PauseCount = %d, want 1", snap.PauseCount)
	}
	if !f.sink.has("TASK_PAUSED") {
		t.Fatal("TASK_PAUSED event not recorded")
	}

	// Reconnection resumes the pre-pause status and re-arms the timeout,
	// which then cancels the still-unfilled order.
	f.wsState <- true
	waitStatus(t, f, types.StatusSubmitted)
	if !f.sink.has("TASK_RESUMED") {
		t.Fatal("TASK_RESUMED event not recorded")
	}

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	snap = f.exec.Snapshot()
	if snap.Status != types.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED after resume", snap.Status)
	}
	if snap.FailReason != types.CodeOrderTimeout {
		t.Fatalf("reason = %s, want %s", snap.FailReason, types.CodeOrderTimeout)
	}
}

func TestExecutorDefaultsOrderTimeout(t *testing.T) {
	cfg := testTask()
	cfg.OrderTimeout = 0

	f := newFixture(t, cfg, &stubPredict{}, &stubHedge{})

	got := f.exec.Snapshot().Config.OrderTimeout
	if got != 20*time.Second {
		t.Fatalf("OrderTimeout = %s, want the 20s default", got)
	}
}

func TestExecutorContextCancelTearsDown(t *testing.T) {
	predict := &stubPredict{
		status: seqStatus(orderStatus(types.OrderOpen, 0, 0)),
	}
	f := newFixture(t, testTask(), predict, &stubHedge{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.exec.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	snap := f.exec.Snapshot()
	if snap.Status != types.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", snap.Status)
	}
	if f.predict.cancels() == 0 {
		t.Fatal("teardown must issue a venue cancel")
	}
}
