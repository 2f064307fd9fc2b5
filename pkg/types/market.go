package types

import "time"

// MarketInfo is the predict venue's static description of a market.
type MarketInfo struct {
	MarketID        string
	YesTokenID      string
	NoTokenID       string
	NegRisk         bool
	BaseFeeBps      int
	PriceDecimals   int
	MinOrderUSD     float64
	AcceptingOrders bool
	FetchedAt       time.Time
}

// Position is a venue-reported holding of an outcome token.
type Position struct {
	TokenID  string
	Shares   float64
	AvgPrice float64
}

// Opportunity is a priced, depth-annotated pair candidate produced by the
// scanner. It is only stable for one evaluation window.
type Opportunity struct {
	ID              string
	PredictMarketID string
	Side            Outcome
	HedgeYesTokenID string
	HedgeNoTokenID  string
	Inverted        bool
	NegRisk         bool

	PredictBestAsk float64
	PredictBestBid float64
	HedgeBestAsk   float64
	HedgeBestBid   float64

	ProfitPct       float64
	ExecutableDepth float64
	DetectedAt      time.Time
}
