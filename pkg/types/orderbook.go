package types

import (
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// BookSource says which transport produced an orderbook observation.
type BookSource string

const (
	SourceWS   BookSource = "WS"
	SourceREST BookSource = "REST"
)

// Level is a single price level.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Orderbook is a two-sided book: bids descending, asks ascending.
// SourceTimestamp comes from the venue; ObservedAt is local.
type Orderbook struct {
	Venue           string     `json:"venue"`
	Token           string     `json:"token"`
	Bids            []Level    `json:"bids"`
	Asks            []Level    `json:"asks"`
	Source          BookSource `json:"source"`
	SourceTimestamp time.Time  `json:"sourceTimestamp"`
	ObservedAt      time.Time  `json:"observedAt"`
}

// BestBid returns the top bid, or false when the side is empty.
func (b *Orderbook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask, or false when the side is empty.
func (b *Orderbook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Age reports how long ago the book was observed locally.
func (b *Orderbook) Age(now time.Time) time.Duration {
	return now.Sub(b.ObservedAt)
}

// AskDepthWithin sums ask sizes at prices <= limit.
func (b *Orderbook) AskDepthWithin(limit float64) float64 {
	var depth float64
	for _, lvl := range b.Asks {
		if lvl.Price > limit {
			break
		}
		depth += lvl.Size
	}
	return depth
}

// BidDepthWithin sums bid sizes at prices >= limit.
func (b *Orderbook) BidDepthWithin(limit float64) float64 {
	var depth float64
	for _, lvl := range b.Bids {
		if lvl.Price < limit {
			break
		}
		depth += lvl.Size
	}
	return depth
}

// Validate rejects malformed books at ingest: zero-size levels, duplicate
// or mis-ordered prices, and crossed top-of-book.
func (b *Orderbook) Validate() error {
	for i, lvl := range b.Bids {
		if lvl.Size <= 0 {
			return fmt.Errorf("bid level %d has non-positive size", i)
		}
		if i > 0 && lvl.Price >= b.Bids[i-1].Price {
			return fmt.Errorf("bids not strictly descending at level %d", i)
		}
	}
	for i, lvl := range b.Asks {
		if lvl.Size <= 0 {
			return fmt.Errorf("ask level %d has non-positive size", i)
		}
		if i > 0 && lvl.Price <= b.Asks[i-1].Price {
			return fmt.Errorf("asks not strictly ascending at level %d", i)
		}
	}
	if len(b.Bids) > 0 && len(b.Asks) > 0 && b.Bids[0].Price >= b.Asks[0].Price {
		return fmt.Errorf("crossed book: bid %f >= ask %f", b.Bids[0].Price, b.Asks[0].Price)
	}
	return nil
}

// RawLevel is a price level as the hedge venue sends it (string encoded).
type RawLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// MarketMessage is one message from the hedge venue's market WS stream.
type MarketMessage struct {
	EventType string     `json:"event_type"` // "book", "price_change", "last_trade_price"
	AssetID   string     `json:"asset_id"`
	Market    string     `json:"market"`
	Timestamp int64      `json:"-"` // venue sends it as a string
	Hash      string     `json:"hash,omitempty"`
	Bids      []RawLevel `json:"bids,omitempty"`
	Asks      []RawLevel `json:"asks,omitempty"`
}

// UnmarshalJSON tolerates the venue's string-typed timestamp field.
func (m *MarketMessage) UnmarshalJSON(data []byte) error {
	type alias MarketMessage
	aux := struct {
		TimestampStr string `json:"timestamp"`
		alias
	}{alias: alias(*m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = MarketMessage(aux.alias)
	if aux.TimestampStr != "" {
		ts, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		m.Timestamp = ts
	}
	return nil
}

// ParseLevels converts raw string levels, dropping zero-size entries.
func ParseLevels(raw []RawLevel) ([]Level, error) {
	levels := make([]Level, 0, len(raw))
	for _, r := range raw {
		price, err := strconv.ParseFloat(r.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", r.Price, err)
		}
		size, err := strconv.ParseFloat(r.Size, 64)
		if err != nil {
			return nil, fmt.Errorf("parse size %q: %w", r.Size, err)
		}
		if size <= 0 {
			continue
		}
		levels = append(levels, Level{Price: price, Size: size})
	}
	return levels, nil
}
