package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

const tickSizeTTL = 24 * time.Hour

type rawBook struct {
	AssetID   string           `json:"asset_id"`
	Bids      []types.RawLevel `json:"bids"`
	Asks      []types.RawLevel `json:"asks"`
	Timestamp string           `json:"timestamp"`
	Hash      string           `json:"hash"`
}

// GetOrderbook fetches the venue's book for a token over REST. The venue
// sends bids ascending; they are reversed to the canonical best-first
// order.
func (c *Client) GetOrderbook(ctx context.Context, tokenID string) (*types.Orderbook, error) {
	var raw rawBook
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&raw).
		Get("/book")
	if err != nil {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "get book: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient,
			"get book: status %d: %s", resp.StatusCode(), resp.String())
	}

	bids, err := types.ParseLevels(raw.Bids)
	if err != nil {
		return nil, fmt.Errorf("parse bids: %w", err)
	}
	asks, err := types.ParseLevels(raw.Asks)
	if err != nil {
		return nil, fmt.Errorf("parse asks: %w", err)
	}

	reverseLevels(bids)
	reverseLevels(asks)

	var ts time.Time
	if ms, err := strconv.ParseInt(raw.Timestamp, 10, 64); err == nil {
		ts = time.UnixMilli(ms)
	}

	book := &types.Orderbook{
		Venue:           "polymarket",
		Token:           tokenID,
		Bids:            bids,
		Asks:            asks,
		Source:          types.SourceREST,
		SourceTimestamp: ts,
		ObservedAt:      time.Now(),
	}
	err = book.Validate()
	if err != nil {
		return nil, fmt.Errorf("reject book: %w", err)
	}

	BooksFetchedTotal.Inc()
	return book, nil
}

func reverseLevels(levels []types.Level) {
	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
}

type rawPosition struct {
	Asset    string  `json:"asset"`
	Size     float64 `json:"size"`
	AvgPrice float64 `json:"avgPrice"`
}

// GetPosition returns the operator's holding of a token. A token absent
// from the venue's answer is a zero position, not an error.
func (c *Client) GetPosition(ctx context.Context, tokenID string) (*types.Position, error) {
	var raw []rawPosition
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user", c.makerAddress()).
		SetResult(&raw).
		Get("/positions")
	if err != nil {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "get positions: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient,
			"get positions: status %d: %s", resp.StatusCode(), resp.String())
	}

	for _, p := range raw {
		if p.Asset == tokenID {
			return &types.Position{TokenID: tokenID, Shares: p.Size, AvgPrice: p.AvgPrice}, nil
		}
	}
	return &types.Position{TokenID: tokenID}, nil
}

// GetTickSize returns the token's minimum price increment, cached for a
// day since it only changes when a market's price range narrows.
func (c *Client) GetTickSize(ctx context.Context, tokenID string) (float64, error) {
	cacheKey := "polymarket:tick:" + tokenID
	if cached, ok := c.metaCache.Get(cacheKey); ok {
		if tick, ok := cached.(float64); ok {
			return tick, nil
		}
	}

	var raw struct {
		MinimumTickSize float64 `json:"minimum_tick_size"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&raw).
		Get("/tick-size")
	if err != nil {
		return 0, types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "get tick size: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, types.NewVenueError(types.CodeNetworkError, types.ClassTransient,
			"get tick size: status %d: %s", resp.StatusCode(), resp.String())
	}

	tick := raw.MinimumTickSize
	if tick <= 0 {
		tick = 0.01
	}
	c.metaCache.Set(cacheKey, tick, tickSizeTTL)

	c.logger.Debug("hedge-tick-size-fetched",
		zap.String("token", tokenID),
		zap.Float64("tick", tick))
	return tick, nil
}
