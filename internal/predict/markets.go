package predict

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

const marketInfoTTL = 5 * time.Minute

type rawMarketInfo struct {
	ID              string  `json:"id"`
	YesTokenID      string  `json:"yesTokenId"`
	NoTokenID       string  `json:"noTokenId"`
	NegRisk         bool    `json:"negRisk"`
	BaseFeeBps      int     `json:"baseFeeRateBps"`
	PriceDecimals   int     `json:"priceDecimals"`
	MinOrderUSD     float64 `json:"minOrderValue"`
	AcceptingOrders bool    `json:"acceptingOrders"`
}

// GetMarketInfo fetches a market's static description, served from the
// in-process cache for up to five minutes.
func (c *Client) GetMarketInfo(ctx context.Context, marketID string) (*types.MarketInfo, error) {
	cacheKey := "predict:market:" + marketID
	if cached, ok := c.infoCache.Get(cacheKey); ok {
		if info, ok := cached.(*types.MarketInfo); ok {
			return info, nil
		}
	}

	var raw rawMarketInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&raw).
		Get("/markets/" + marketID)
	if err != nil {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "get market: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, types.NewVenueError(types.CodeMarketInfoUnavailable, types.ClassTransient,
			"get market: status %d: %s", resp.StatusCode(), resp.String())
	}

	if raw.PriceDecimals <= 0 {
		raw.PriceDecimals = 2
	}

	info := &types.MarketInfo{
		MarketID:        raw.ID,
		YesTokenID:      raw.YesTokenID,
		NoTokenID:       raw.NoTokenID,
		NegRisk:         raw.NegRisk,
		BaseFeeBps:      raw.BaseFeeBps,
		PriceDecimals:   raw.PriceDecimals,
		MinOrderUSD:     raw.MinOrderUSD,
		AcceptingOrders: raw.AcceptingOrders,
		FetchedAt:       time.Now(),
	}
	c.infoCache.Set(cacheKey, info, marketInfoTTL)

	c.logger.Debug("predict-market-info-fetched", zap.String("market", marketID))
	return info, nil
}

type rawBook struct {
	Bids      []types.RawLevel `json:"bids"`
	Asks      []types.RawLevel `json:"asks"`
	Timestamp int64            `json:"timestamp"`
}

// GetOrderbook fetches the venue's current book for a market.
func (c *Client) GetOrderbook(ctx context.Context, marketID string) (*types.Orderbook, error) {
	var raw rawBook
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("market", marketID).
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

	book := &types.Orderbook{
		Venue:           "predict",
		Token:           marketID,
		Bids:            bids,
		Asks:            asks,
		Source:          types.SourceREST,
		SourceTimestamp: time.UnixMilli(raw.Timestamp),
		ObservedAt:      time.Now(),
	}
	err = book.Validate()
	if err != nil {
		return nil, fmt.Errorf("reject book: %w", err)
	}

	BooksFetchedTotal.Inc()
	return book, nil
}
