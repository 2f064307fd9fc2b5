package predict

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// orderPayload is the signed limit-order structure POST /orders expects.
type orderPayload struct {
	Market    string `json:"market"`
	Maker     string `json:"maker"`
	Side      string `json:"side"`
	Outcome   string `json:"outcome"`
	Price     string `json:"price"`
	Amount    string `json:"amount"` // 1e18-scale, multiple of 1e13
	OrderType string `json:"orderType"`
	Salt      int64  `json:"salt"`
	Signature string `json:"signature"`
}

type submitResponse struct {
	ID        string `json:"id"`
	OrderHash string `json:"orderHash"`
	Error     string `json:"error,omitempty"`
}

// SubmitOrder quantises, signs and places a limit order. Orders under the
// venue minimum are rejected locally with BelowMinNotional.
func (c *Client) SubmitOrder(ctx context.Context, req *types.SubmitRequest) (*types.SubmitResult, error) {
	info, err := c.GetMarketInfo(ctx, req.MarketID)
	if err != nil {
		return nil, types.NewVenueError(types.CodeMarketInfoUnavailable, types.ClassTransient,
			"market info for %s: %v", req.MarketID, err)
	}
	if !info.AcceptingOrders {
		return nil, types.NewVenueError(types.CodeAcceptingOrdersFalse, types.ClassRejected,
			"market %s is not accepting orders", req.MarketID)
	}

	tick := tickFromDecimals(info.PriceDecimals)
	price := AlignPriceDown(req.Price, tick)
	qty := AlignQty(req.Qty)

	// Venue-advertised minimum first, then the configured floor.
	minUSD := info.MinOrderUSD
	if minUSD <= 0 {
		minUSD = c.minOrderUSD
	}
	if minUSD <= 0 {
		minUSD = 0.90
	}
	err = CheckMinNotional(price, qty, minUSD)
	if err != nil {
		return nil, err
	}

	payload := orderPayload{
		Market:    req.MarketID,
		Maker:     c.auth.Account(),
		Side:      string(req.Side),
		Outcome:   string(req.Outcome),
		Price:     formatPrice(price, info.PriceDecimals),
		Amount:    SharesToWire(qty),
		OrderType: string(req.Type),
		Salt:      time.Now().UnixNano(),
	}

	sig, err := c.signOrder(&payload)
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}
	payload.Signature = sig

	var result submitResponse
	resp, err := c.doAuthed(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(&payload).SetResult(&result).SetError(&result).Post("/orders")
	})
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusCreated:
	case resp.StatusCode() == http.StatusBadRequest && result.Error != "":
		return nil, classifyRejection(result.Error)
	default:
		return nil, types.NewVenueError(types.CodeRejected, types.ClassRejected,
			"submit order: status %d: %s", resp.StatusCode(), resp.String())
	}

	OrdersSubmittedTotal.Inc()
	c.logger.Info("predict-order-submitted",
		zap.String("market", req.MarketID),
		zap.String("order-hash", result.OrderHash),
		zap.Float64("price", price),
		zap.Float64("qty", qty))

	return &types.SubmitResult{OrderID: result.ID, OrderHash: result.OrderHash}, nil
}

// GetOrderStatus polls the venue and normalises the answer to shares.
// Returns ErrOrderNotFound when the venue reports no such order.
func (c *Client) GetOrderStatus(ctx context.Context, orderHash string) (*types.OrderStatus, error) {
	resp, err := c.doAuthed(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/orders/" + orderHash)
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, types.ErrOrderNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient,
			"order status: status %d: %s", resp.StatusCode(), resp.String())
	}

	status, err := parseOrderStatus(resp.Body())
	if err != nil {
		return nil, err
	}

	StatusPollsTotal.Inc()
	return status, nil
}

type cancelResponse struct {
	Removed []string `json:"removed"`
	Noop    []string `json:"noop"`
}

// CancelOrder removes a resting order. The venue answers with removed/noop
// id lists; both count as success — a noop means the order was already
// gone, which the caller must tolerate as a race with a fill.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	var result cancelResponse
	resp, err := c.doAuthed(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(map[string][]string{"ids": {orderID}}).
			SetResult(&result).
			Post("/orders/remove")
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return types.NewVenueError(types.CodeNetworkError, types.ClassTransient,
			"cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}

	OrdersCancelledTotal.Inc()
	c.logger.Info("predict-order-cancelled",
		zap.String("order-id", orderID),
		zap.Int("removed", len(result.Removed)),
		zap.Int("noop", len(result.Noop)))

	return nil
}

// doAuthed runs an authenticated request, re-authenticating once on 401/403.
func (c *Client) doAuthed(ctx context.Context, do func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.auth.BearerToken(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := do(c.http.R().SetContext(ctx).SetAuthToken(token))
		if err != nil {
			return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "%v", err)
		}

		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
			c.auth.Invalidate()
			continue
		}
		return resp, nil
	}

	return nil, types.NewVenueError(types.CodeAuthExpired, types.ClassLocal,
		"authentication rejected after refresh")
}

// signOrder signs the canonical payload encoding with the EOA key.
func (c *Client) signOrder(p *orderPayload) (string, error) {
	canonical, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	digest := crypto.Keccak256(canonical)
	sig, err := crypto.Sign(digest, c.auth.privateKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + fmt.Sprintf("%x", sig), nil
}

func classifyRejection(reason string) error {
	switch reason {
	case "PRECISION", "INVALID_PRECISION":
		return types.NewVenueError(types.CodePrecisionRejected, types.ClassLocal, "venue rejected precision")
	case "BELOW_MIN_NOTIONAL":
		return types.NewVenueError(types.CodeBelowMinNotional, types.ClassRejected, "venue rejected notional")
	default:
		return types.NewVenueError(types.CodeRejected, types.ClassRejected, "%s", reason)
	}
}

func tickFromDecimals(decimals int) float64 {
	tick := 1.0
	for i := 0; i < decimals; i++ {
		tick /= 10
	}
	return tick
}

func formatPrice(price float64, decimals int) string {
	return fmt.Sprintf("%.*f", decimals, price)
}
