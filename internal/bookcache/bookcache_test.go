package bookcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

func newTestCache() (*Cache, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	c := New(&Config{
		FreshTTL: 500 * time.Millisecond,
		Stale:    time.Second,
		MaxStale: 2 * time.Second,
		Logger:   zap.NewNop(),
	})
	c.now = func() time.Time { return now }
	return c, &now
}

func bookAt(source types.BookSource, observed time.Time) *types.Orderbook {
	return &types.Orderbook{
		Venue:      "polymarket",
		Token:      "777",
		Bids:       []types.Level{{Price: 0.42, Size: 10}},
		Asks:       []types.Level{{Price: 0.55, Size: 10}},
		Source:     source,
		ObservedAt: observed,
	}
}

func TestGetFreshReturnsWithoutFetch(t *testing.T) {
	c, now := newTestCache()
	defer c.Close()
	key := Key{Venue: "polymarket", Token: "777"}

	c.Put(key, bookAt(types.SourceWS, *now))

	var fetches atomic.Int64
	got, err := c.Get(context.Background(), key, func(ctx context.Context) (*types.Orderbook, error) {
		fetches.Add(1)
		return nil, errors.New("must not be called")
	})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || fetches.Load() != 0 {
		t.Fatalf("fresh read must not fetch (fetches=%d)", fetches.Load())
	}
}

func TestGetAgingReturnsImmediatelyAndRefreshes(t *testing.T) {
	c, now := newTestCache()
	defer c.Close()
	key := Key{Venue: "polymarket", Token: "777"}

	old := bookAt(types.SourceREST, now.Add(-time.Second))
	c.Put(key, old)

	var fetches atomic.Int64
	fresh := bookAt(types.SourceREST, *now)
	got, err := c.Get(context.Background(), key, func(ctx context.Context) (*types.Orderbook, error) {
		fetches.Add(1)
		return fresh, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != old {
		t.Fatal("aging read must return the cached book immediately")
	}

	// The background refresh must land.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c.mu.RLock()
		cur := c.entries[key].book
		c.mu.RUnlock()
		if cur == fresh {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if fetches.Load() != 1 {
		t.Fatalf("fetches = %d, want 1", fetches.Load())
	}
}

func TestGetPastMaxStaleBlocksOnFetch(t *testing.T) {
	c, now := newTestCache()
	defer c.Close()
	key := Key{Venue: "polymarket", Token: "777"}

	c.Put(key, bookAt(types.SourceREST, now.Add(-3*time.Second)))

	fresh := bookAt(types.SourceREST, *now)
	got, err := c.Get(context.Background(), key, func(ctx context.Context) (*types.Orderbook, error) {
		return fresh, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != fresh {
		t.Fatal("expired read must block on a synchronous fetch")
	}
}

func TestGetSingleFlight(t *testing.T) {
	c, now := newTestCache()
	defer c.Close()
	key := Key{Venue: "polymarket", Token: "777"}
	c.Put(key, bookAt(types.SourceREST, now.Add(-time.Second)))

	var fetches atomic.Int64
	slow := func(ctx context.Context) (*types.Orderbook, error) {
		fetches.Add(1)
		time.Sleep(50 * time.Millisecond)
		return bookAt(types.SourceREST, *now), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get(context.Background(), key, slow)
		}()
	}
	wg.Wait()
	c.Close()

	if fetches.Load() > 2 {
		t.Fatalf("fetches = %d, concurrent aging reads must coalesce", fetches.Load())
	}
}

func TestRESTDoesNotOverwriteFreshWS(t *testing.T) {
	c, now := newTestCache()
	defer c.Close()
	key := Key{Venue: "polymarket", Token: "777"}

	ws := bookAt(types.SourceWS, *now)
	c.Put(key, ws)
	c.Put(key, bookAt(types.SourceREST, *now))

	got, err := c.Get(context.Background(), key, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != ws {
		t.Fatal("REST book must not replace a fresh WS book")
	}

	// Once the WS book ages out, REST may overwrite.
	*now = now.Add(time.Second)
	rest := bookAt(types.SourceREST, *now)
	c.Put(key, rest)
	got, err = c.Get(context.Background(), key, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != rest {
		t.Fatal("REST book must replace an aged WS book")
	}
}

func TestGetWSOnly(t *testing.T) {
	c, now := newTestCache()
	defer c.Close()
	key := Key{Venue: "polymarket", Token: "777"}

	if _, err := c.GetWSOnly(key); types.ErrorCode(err) != types.CodeWSUnavailable {
		t.Fatalf("empty cache: want WSUnavailable, got %v", err)
	}

	c.Put(key, bookAt(types.SourceREST, *now))
	if _, err := c.GetWSOnly(key); types.ErrorCode(err) != types.CodeWSUnavailable {
		t.Fatalf("REST entry: want WSUnavailable, got %v", err)
	}

	c.Put(key, bookAt(types.SourceWS, *now))
	if _, err := c.GetWSOnly(key); err != nil {
		t.Fatalf("fresh WS entry must be served: %v", err)
	}

	c.MarkStale("polymarket")
	if _, err := c.GetWSOnly(key); types.ErrorCode(err) != types.CodeWSUnavailable {
		t.Fatalf("forced-stale entry: want WSUnavailable, got %v", err)
	}
}

func TestSubscribeLatestWins(t *testing.T) {
	c, now := newTestCache()
	defer c.Close()
	key := Key{Venue: "polymarket", Token: "777"}

	ch := c.Subscribe(key)

	first := bookAt(types.SourceWS, *now)
	second := bookAt(types.SourceWS, now.Add(time.Millisecond))
	c.Put(key, first)
	c.Put(key, second)

	got := <-ch
	if got != second {
		t.Fatal("a slow consumer must see the newest book")
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected buffered book %v", extra)
	default:
	}

	c.Unsubscribe(key, ch)
	if _, ok := <-ch; ok {
		t.Fatal("unsubscribe must close the stream")
	}
}

func TestSubscribePerSubscriberStreams(t *testing.T) {
	c, now := newTestCache()
	defer c.Close()
	key := Key{Venue: "polymarket", Token: "777"}

	first := c.Subscribe(key)
	second := c.Subscribe(key)

	book := bookAt(types.SourceWS, *now)
	c.Put(key, book)

	if got := <-first; got != book {
		t.Fatal("first subscriber missed the update")
	}
	if got := <-second; got != book {
		t.Fatal("second subscriber missed the update")
	}

	// Dropping one stream must not touch the other.
	c.Unsubscribe(key, first)
	if _, ok := <-first; ok {
		t.Fatal("unsubscribed stream must close")
	}

	later := bookAt(types.SourceWS, now.Add(time.Millisecond))
	c.Put(key, later)
	select {
	case got, ok := <-second:
		if !ok {
			t.Fatal("surviving stream must stay open")
		}
		if got != later {
			t.Fatal("surviving stream must keep receiving updates")
		}
	default:
		t.Fatal("surviving stream received nothing")
	}
}
