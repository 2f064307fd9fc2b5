package task

import (
	"context"

	"github.com/crossvenue/predictarb/internal/fills"
	"github.com/crossvenue/predictarb/internal/tasklog"
	"github.com/crossvenue/predictarb/pkg/types"
)

// PredictGateway is the predict-venue surface the executor drives.
type PredictGateway interface {
	GetMarketInfo(ctx context.Context, marketID string) (*types.MarketInfo, error)
	GetOrderbook(ctx context.Context, marketID string) (*types.Orderbook, error)
	SubmitOrder(ctx context.Context, req *types.SubmitRequest) (*types.SubmitResult, error)
	GetOrderStatus(ctx context.Context, orderHash string) (*types.OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// HedgeOrder is one hedge-venue order as the executor sees it; the
// gateway owns quantisation and signing.
type HedgeOrder struct {
	TokenID string
	Side    types.Direction
	Price   float64
	Qty     float64
	NegRisk bool
}

// HedgeGateway is the hedge-venue surface the executor drives. SubmitIOC
// returns the final fill: the venue kills any unmatched remainder.
type HedgeGateway interface {
	GetOrderbook(ctx context.Context, tokenID string) (*types.Orderbook, error)
	GetPosition(ctx context.Context, tokenID string) (*types.Position, error)
	SubmitIOC(ctx context.Context, order HedgeOrder) (*types.HedgeFill, error)
}

// FillRouter registers per-order handlers on the account fill stream.
type FillRouter interface {
	Register(orderHash string, h fills.Handler)
	Unregister(orderHash string)
}

// EventSink receives the executor's structured trade history.
type EventSink interface {
	LogEvent(taskID, eventType string, priority tasklog.Priority, fields map[string]interface{})
	LogOrderbook(taskID string, book *types.Orderbook)
	WriteSummary(snap *types.TaskSnapshot) error
}
