package types

import "time"

// OrderState is the predict venue's view of an order.
type OrderState string

const (
	OrderOpen            OrderState = "OPEN"
	OrderPartiallyFilled OrderState = "PARTIALLY_FILLED"
	OrderFilled          OrderState = "FILLED"
	OrderCancelled       OrderState = "CANCELLED"
	OrderExpired         OrderState = "EXPIRED"
)

// Terminal reports whether the venue considers the order finished.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderExpired:
		return true
	}
	return false
}

// OrderType selects time-in-force semantics at submission.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC"
	OrderTypeIOC OrderType = "IOC"
)

// SubmitRequest describes an order to place on the predict venue.
type SubmitRequest struct {
	MarketID string
	Side     Direction // BUY or SELL
	Outcome  Outcome
	Price    float64
	Qty      float64
	Type     OrderType
}

// SubmitResult identifies a freshly placed order. Venues index some
// endpoints by hash and others by id, so both are kept.
type SubmitResult struct {
	OrderID   string
	OrderHash string
}

// OrderStatus is the normalised result of a status poll. FilledQty is
// always human-scale shares regardless of the wire representation.
type OrderStatus struct {
	ID           string
	State        OrderState
	FilledQty    float64
	RemainingQty float64
	AvgPrice     float64
	CancelReason string
	ReportedAt   time.Time
}

// FillEvent is one decoded on-chain fill from the predict venue's
// OrderFilled event stream. DedupKey is "txHash:logIndex" and is treated
// as an opaque string.
type FillEvent struct {
	OrderHash    string
	Maker        string
	Taker        string
	MakerAssetID string
	TakerAssetID string
	MakerAmount  float64 // base shares
	TakerAmount  float64
	Fee          float64
	BlockNumber  uint64
	TxHash       string
	LogIndex     uint
	Timestamp    time.Time
}

// DedupKey returns the canonical idempotency key for the event.
func (e *FillEvent) DedupKey() string {
	return e.TxHash + ":" + uintToString(e.LogIndex)
}

func uintToString(u uint) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

// HedgeFill is the outcome of one IOC hedge order on the hedge venue.
type HedgeFill struct {
	OrderID   string
	Price     float64
	FilledQty float64
	Timestamp time.Time
}
