// Package bookcache keeps the last observed orderbook per (venue, token)
// and serves reads against freshness thresholds: fresh entries return
// as-is, aging entries return immediately while a single-flight refresh
// runs in the background, and entries past maxStale block on a
// synchronous fetch.
package bookcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Fetcher produces a current book for a key, typically a venue REST call.
type Fetcher func(ctx context.Context) (*types.Orderbook, error)

// Key identifies one cached book.
type Key struct {
	Venue string
	Token string
}

func (k Key) String() string { return k.Venue + "/" + k.Token }

type entry struct {
	book *types.Orderbook
	// forcedStale is set when the WS transport drops: the entry stops
	// counting as WS-fresh until a new snapshot lands.
	forcedStale bool
}

// Cache is the process-wide orderbook cache.
type Cache struct {
	fresh    time.Duration
	stale    time.Duration
	maxStale time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[Key]*entry
	subs    map[Key]map[chan *types.Orderbook]struct{}

	group singleflight.Group

	// background refreshes run under this context so Close can stop them
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// Config holds cache configuration.
type Config struct {
	FreshTTL time.Duration
	Stale    time.Duration
	MaxStale time.Duration
	Logger   *zap.Logger
}

// New creates an orderbook cache.
func New(cfg *Config) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		fresh:    cfg.FreshTTL,
		stale:    cfg.Stale,
		maxStale: cfg.MaxStale,
		logger:   cfg.Logger,
		entries:  make(map[Key]*entry),
		subs:     make(map[Key]map[chan *types.Orderbook]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Close stops background refreshes and waits for them.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Put stores an observation. WS books always overwrite; a REST book never
// overwrites a WS book that is still inside the fresh window.
func (c *Cache) Put(key Key, book *types.Orderbook) {
	c.mu.Lock()
	cur, ok := c.entries[key]
	if ok && book.Source == types.SourceREST && !cur.forcedStale &&
		cur.book.Source == types.SourceWS && cur.book.Age(c.now()) < c.fresh {
		c.mu.Unlock()
		return
	}
	c.entries[key] = &entry{book: book}
	subs := make([]chan *types.Orderbook, 0, len(c.subs[key]))
	for sub := range c.subs[key] {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	if book.Source == types.SourceWS {
		WSUpdatesTotal.Inc()
	}

	for _, sub := range subs {
		// Latest-wins: drop the undelivered book, keep only the newest.
		select {
		case sub <- book:
		default:
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- book:
			default:
			}
		}
	}
}

// MarkStale flags every entry for a venue as no longer WS-backed. Called
// when the venue's WS connection drops; readers that tolerate REST data
// fall back to it, wsOnly readers start failing.
func (c *Cache) MarkStale(venue string) {
	c.mu.Lock()
	for key, e := range c.entries {
		if key.Venue == venue {
			e.forcedStale = true
		}
	}
	c.mu.Unlock()
	c.logger.Warn("bookcache-venue-marked-stale", zap.String("venue", venue))
}

// Get serves a book under the freshness contract. fetcher may be nil for a
// read that must not trigger REST traffic.
func (c *Cache) Get(ctx context.Context, key Key, fetcher Fetcher) (*types.Orderbook, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		age := e.book.Age(c.now())
		switch {
		case age < c.fresh && !e.forcedStale:
			HitsTotal.Inc()
			return e.book, nil
		case age < c.maxStale:
			if fetcher != nil {
				c.refreshAsync(key, fetcher)
			}
			StaleHitsTotal.Inc()
			return e.book, nil
		}
	}

	if fetcher == nil {
		return nil, types.NewVenueError(types.CodeWSUnavailable, types.ClassTransient,
			"no usable book for %s", key)
	}

	MissesTotal.Inc()
	return c.fetch(ctx, key, fetcher)
}

// GetWSOnly serves latency-sensitive readers that must not act on REST
// data. Anything but a fresh WS book is a typed WSUnavailable failure.
func (c *Cache) GetWSOnly(key Key) (*types.Orderbook, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.forcedStale || e.book.Source != types.SourceWS || e.book.Age(c.now()) >= c.stale {
		return nil, types.NewVenueError(types.CodeWSUnavailable, types.ClassTransient,
			"no fresh WS book for %s", key)
	}
	HitsTotal.Inc()
	return e.book, nil
}

// Subscribe returns a buffered-1, latest-wins stream of updates for a key.
// A slow consumer sees the newest book, never a backlog. Each call gets its
// own stream: independent tasks hedging the same token never share one.
func (c *Cache) Subscribe(key Key) <-chan *types.Orderbook {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan *types.Orderbook, 1)
	if c.subs[key] == nil {
		c.subs[key] = make(map[chan *types.Orderbook]struct{})
	}
	c.subs[key][ch] = struct{}{}
	return ch
}

// Unsubscribe closes one subscriber's stream; other subscribers on the same
// key keep theirs.
func (c *Cache) Unsubscribe(key Key, ch <-chan *types.Orderbook) {
	c.mu.Lock()
	if set, ok := c.subs[key]; ok {
		for sub := range set {
			if sub == ch {
				delete(set, sub)
				close(sub)
				break
			}
		}
		if len(set) == 0 {
			delete(c.subs, key)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) refreshAsync(key Key, fetcher Fetcher) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// Single flight: concurrent aging reads share one refresh.
		_, _, _ = c.group.Do(key.String(), func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			defer cancel()
			return c.fetch(ctx, key, fetcher)
		})
	}()
}

func (c *Cache) fetch(ctx context.Context, key Key, fetcher Fetcher) (*types.Orderbook, error) {
	book, err := fetcher(ctx)
	if err != nil {
		FetchErrorsTotal.Inc()
		c.logger.Warn("bookcache-fetch-failed",
			zap.String("key", key.String()),
			zap.Error(err))
		return nil, err
	}
	c.Put(key, book)
	return book, nil
}
