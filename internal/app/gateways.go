package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/internal/bookcache"
	"github.com/crossvenue/predictarb/internal/polymarket"
	"github.com/crossvenue/predictarb/internal/task"
	"github.com/crossvenue/predictarb/pkg/types"
)

// hedgeGateway adapts the hedge venue client to the executor's interface.
type hedgeGateway struct {
	client *polymarket.Client
}

func (g *hedgeGateway) GetOrderbook(ctx context.Context, tokenID string) (*types.Orderbook, error) {
	return g.client.GetOrderbook(ctx, tokenID)
}

func (g *hedgeGateway) GetPosition(ctx context.Context, tokenID string) (*types.Position, error) {
	return g.client.GetPosition(ctx, tokenID)
}

func (g *hedgeGateway) SubmitIOC(ctx context.Context, order task.HedgeOrder) (*types.HedgeFill, error) {
	return g.client.SubmitOrder(ctx, &polymarket.HedgeRequest{
		TokenID: order.TokenID,
		Side:    order.Side,
		Price:   order.Price,
		Qty:     order.Qty,
		NegRisk: order.NegRisk,
		Type:    types.OrderTypeIOC,
	})
}

// taskRunner pairs an executor with teardown of its shared-resource
// subscriptions.
type taskRunner struct {
	exec    *task.Executor
	cleanup func()
}

func (r *taskRunner) Run(ctx context.Context) error {
	defer r.cleanup()
	return r.exec.Run(ctx)
}

func (r *taskRunner) Snapshot() types.TaskSnapshot {
	return r.exec.Snapshot()
}

// stateFanout replicates the single WS connection-state stream to every
// live executor. Buffered-1 latest-wins per subscriber.
type stateFanout struct {
	mu   sync.Mutex
	subs map[<-chan bool]chan bool
}

func newStateFanout() *stateFanout {
	return &stateFanout{subs: make(map[<-chan bool]chan bool)}
}

func (f *stateFanout) Subscribe() <-chan bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan bool, 1)
	f.subs[ch] = ch
	return ch
}

func (f *stateFanout) Unsubscribe(sub <-chan bool) {
	f.mu.Lock()
	if ch, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(ch)
	}
	f.mu.Unlock()
}

func (f *stateFanout) publish(connected bool) {
	f.mu.Lock()
	for _, ch := range f.subs {
		select {
		case ch <- connected:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- connected:
			default:
			}
		}
	}
	f.mu.Unlock()
}

// feedBooks turns hedge venue market messages into cache entries. Only
// full "book" snapshots are ingested; incremental messages just prove the
// stream is alive.
func (a *App) feedBooks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.wsManager.MessageChan():
			if !ok {
				return
			}
			if msg.EventType != "book" {
				continue
			}
			book, err := bookFromMessage(msg)
			if err != nil {
				a.logger.Warn("ws-book-rejected",
					zap.String("token", msg.AssetID),
					zap.Error(err))
				continue
			}
			a.books.Put(bookcache.Key{Venue: hedgeVenue, Token: msg.AssetID}, book)
		}
	}
}

func bookFromMessage(msg *types.MarketMessage) (*types.Orderbook, error) {
	bids, err := types.ParseLevels(msg.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := types.ParseLevels(msg.Asks)
	if err != nil {
		return nil, err
	}
	// The venue sends both sides worst-first; flip to bids-descending,
	// asks-ascending.
	reverseLevels(bids)
	reverseLevels(asks)

	book := &types.Orderbook{
		Venue:           hedgeVenue,
		Token:           msg.AssetID,
		Bids:            bids,
		Asks:            asks,
		Source:          types.SourceWS,
		SourceTimestamp: time.UnixMilli(msg.Timestamp),
		ObservedAt:      time.Now(),
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}
	return book, nil
}

func reverseLevels(levels []types.Level) {
	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
}

// watchWSState fans the connection state out to executors and marks the
// venue's cached books stale on every drop.
func (a *App) watchWSState(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case connected, ok := <-a.wsManager.StateChan():
			if !ok {
				return
			}
			if !connected {
				a.books.MarkStale(hedgeVenue)
			}
			a.wsFan.publish(connected)
		}
	}
}
