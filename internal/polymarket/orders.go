package polymarket

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// HedgeRequest describes one order on the hedge venue. Price and Qty are
// human scale; quantisation to the venue's 6-decimal raw units happens
// here.
type HedgeRequest struct {
	TokenID string
	Side    types.Direction
	Price   float64
	Qty     float64
	NegRisk bool
	Type    types.OrderType
}

// signedOrderJSON is the wire shape of a signed order. Salt and
// signatureType are integers; everything else is a string.
type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type orderResponse struct {
	OrderID      string `json:"orderID"`
	Status       string `json:"status"`
	ErrorMsg     string `json:"errorMsg,omitempty"`
	MakingAmount string `json:"makingAmount,omitempty"`
	TakingAmount string `json:"takingAmount,omitempty"`
}

// SubmitOrder signs and places an order, returning the venue's immediate
// matching result. IOC maps to the venue's fill-and-kill type, so for IOC
// the returned fill is final.
func (c *Client) SubmitOrder(ctx context.Context, req *HedgeRequest) (*types.HedgeFill, error) {
	// Snap the price to the token's grid; the venue rejects off-tick
	// prices. Best-effort: an unreachable tick endpoint keeps the price
	// as requested.
	aligned := *req
	if tick, err := c.GetTickSize(ctx, req.TokenID); err == nil {
		aligned.Price = roundToTick(req.Price, tick)
	} else {
		c.logger.Warn("hedge-tick-size-unavailable",
			zap.String("token", req.TokenID),
			zap.Error(err))
	}
	req = &aligned

	signed, err := c.buildSignedOrder(req)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	orderType := "GTC"
	if req.Type == types.OrderTypeIOC {
		orderType = "FAK"
	}

	// owner is the API key, not the maker address.
	body, err := json.Marshal(map[string]interface{}{
		"order":     signed,
		"owner":     c.apiKey,
		"orderType": orderType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	headers, err := c.l2Headers(http.MethodPost, "/order", string(body))
	if err != nil {
		return nil, err
	}

	var result orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "submit hedge: %v", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, types.NewVenueError(types.CodeRejected, types.ClassRejected,
			"submit hedge: status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.ErrorMsg != "" {
		return nil, types.NewVenueError(types.CodeRejected, types.ClassRejected, "%s", result.ErrorMsg)
	}

	fill := c.fillFromResponse(req, &result)

	OrdersSubmittedTotal.Inc()
	c.logger.Info("hedge-order-submitted",
		zap.String("token", req.TokenID),
		zap.String("side", string(req.Side)),
		zap.String("order-type", orderType),
		zap.Float64("price", req.Price),
		zap.Float64("qty", req.Qty),
		zap.Float64("filled", fill.FilledQty))

	return fill, nil
}

// fillFromResponse extracts the matched quantity from the venue's answer.
// The matched/making/taking amounts are 6-decimal raw units.
func (c *Client) fillFromResponse(req *HedgeRequest, result *orderResponse) *types.HedgeFill {
	fill := &types.HedgeFill{
		OrderID:   result.OrderID,
		Price:     req.Price,
		Timestamp: time.Now(),
	}

	// For BUY the taking amount is outcome tokens; for SELL the making
	// amount is.
	raw := result.TakingAmount
	if req.Side == types.DirectionSell {
		raw = result.MakingAmount
	}
	if raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil {
			fill.FilledQty, _ = d.Div(decimal.New(1, 6)).Float64()
		}
	}

	// "matched" with no amounts means the full size matched.
	if fill.FilledQty == 0 && result.Status == "matched" {
		fill.FilledQty = req.Qty
	}

	return fill
}

// buildSignedOrder quantises the request and signs it for the settlement
// contract the negRisk flag selects.
func (c *Client) buildSignedOrder(req *HedgeRequest) (*signedOrderJSON, error) {
	price := decimal.NewFromFloat(req.Price)
	qty := decimal.NewFromFloat(req.Qty).RoundDown(2)
	if qty.IsZero() {
		return nil, types.NewVenueError(types.CodeBelowMinNotional, types.ClassRejected,
			"quantity %f rounds to zero", req.Qty)
	}

	tokenAmount := qty.Mul(decimal.New(1, 6)).Truncate(0)
	usdcAmount := qty.Mul(price).Mul(decimal.New(1, 6)).Truncate(0)

	var makerAmount, takerAmount string
	var side model.Side
	if req.Side == types.DirectionBuy {
		side = model.BUY
		makerAmount = usdcAmount.String()
		takerAmount = tokenAmount.String()
	} else {
		side = model.SELL
		makerAmount = tokenAmount.String()
		takerAmount = usdcAmount.String()
	}

	contract := model.CTFExchange
	if req.NegRisk {
		contract = model.NegRiskCTFExchange
	}

	orderData := &model.OrderData{
		Maker:         c.makerAddress(),
		Taker:         zeroAddress,
		TokenId:       req.TokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          side,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	signed, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, contract)
	if err != nil {
		return nil, err
	}

	sideStr := "BUY"
	if signed.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	return &signedOrderJSON{
		Salt:          signed.Salt.Int64(),
		Maker:         signed.Maker.Hex(),
		Signer:        signed.Signer.Hex(),
		Taker:         signed.Taker.Hex(),
		TokenID:       signed.TokenId.String(),
		MakerAmount:   signed.MakerAmount.String(),
		TakerAmount:   signed.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    signed.Expiration.String(),
		Nonce:         signed.Nonce.String(),
		FeeRateBps:    signed.FeeRateBps.String(),
		SignatureType: int(signed.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(signed.Signature),
	}, nil
}

// roundToTick snaps a price to the nearest multiple of the venue's
// minimum increment.
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// GetOrder reads one order back, e.g. to confirm an IOC fill.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.OrderStatus, error) {
	path := "/data/order/" + orderID
	headers, err := c.l2Headers(http.MethodGet, path, "")
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		SizeMatched  string `json:"size_matched"`
		OriginalSize string `json:"original_size"`
		Price        string `json:"price"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&raw).
		Get(path)
	if err != nil {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient, "get order: %v", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, types.ErrOrderNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, types.NewVenueError(types.CodeNetworkError, types.ClassTransient,
			"get order: status %d: %s", resp.StatusCode(), resp.String())
	}

	matched, _ := decimal.NewFromString(raw.SizeMatched)
	original, _ := decimal.NewFromString(raw.OriginalSize)
	price, _ := decimal.NewFromString(raw.Price)

	state := types.OrderOpen
	switch raw.Status {
	case "matched":
		state = types.OrderFilled
	case "cancelled", "canceled":
		state = types.OrderCancelled
	}

	filled, _ := matched.Float64()
	remaining, _ := original.Sub(matched).Float64()
	avg, _ := price.Float64()

	return &types.OrderStatus{
		ID:           raw.ID,
		State:        state,
		FilledQty:    filled,
		RemainingQty: remaining,
		AvgPrice:     avg,
		ReportedAt:   time.Now(),
	}, nil
}
