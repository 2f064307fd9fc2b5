// Package predict implements the gateway to the predict venue (Venue-A):
// an on-chain-settled limit orderbook with an authenticated REST API and an
// OrderFilled block-event tail.
//
// Public surface:
//   - SubmitOrder / GetOrderStatus / CancelOrder  — order lifecycle
//   - GetOrderbook / GetMarketInfo                — market data (cached)
//   - FillStream.Run                              — on-chain fill events
//
// All numeric order fields cross this boundary as human-scale shares; the
// wei/human normalisation lives in parse.go and precision.go.
package predict

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/cache"
)

// Client is the predict venue REST client. It wraps resty with retry on
// transient failures and bearer-token auth.
type Client struct {
	http        *resty.Client
	auth        *Auth
	infoCache   cache.Cache
	minOrderUSD float64
	logger      *zap.Logger
}

// ClientConfig holds configuration for the predict client.
type ClientConfig struct {
	BaseURL    string
	PrivateKey string // EOA hex key used for the auth challenge
	Account    string // smart-wallet account address
	JWTSlack   time.Duration
	// MinOrderUSD is the local minimum-notional floor, used when market
	// info does not advertise one.
	MinOrderUSD float64
	Cache       cache.Cache
	Logger      *zap.Logger
}

// NewClient creates a predict venue client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	auth, err := NewAuth(cfg.BaseURL, cfg.PrivateKey, cfg.Account, cfg.JWTSlack, cfg.Logger)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        httpClient,
		auth:        auth,
		infoCache:   cfg.Cache,
		minOrderUSD: cfg.MinOrderUSD,
		logger:      cfg.Logger,
	}, nil
}

// Account returns the venue account address orders are placed for.
func (c *Client) Account() string {
	return c.auth.Account()
}
