package predict

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/crossvenue/predictarb/pkg/types"
)

// rawOrderStatus mirrors the venue's status payload. The venue is not
// consistent about field names or scales: amountFilled may be a wei-scale
// integer string while quantityFilled is human-scale shares. Everything
// downstream of this parser works in shares.
type rawOrderStatus struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	AmountFilled   json.RawMessage `json:"amountFilled,omitempty"`
	QuantityFilled json.RawMessage `json:"quantityFilled,omitempty"`
	Remaining      json.RawMessage `json:"remainingAmount,omitempty"`
	AvgPrice       json.RawMessage `json:"avgPrice,omitempty"`
	CancelReason   string          `json:"cancelReason,omitempty"`
}

// parseOrderStatus normalises a raw venue status body.
func parseOrderStatus(body []byte) (*types.OrderStatus, error) {
	var raw rawOrderStatus
	err := json.Unmarshal(body, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode order status: %w", err)
	}

	state, err := normaliseState(raw.Status)
	if err != nil {
		return nil, err
	}

	filled, err := firstShareValue(raw.AmountFilled, raw.QuantityFilled)
	if err != nil {
		return nil, fmt.Errorf("parse filled quantity: %w", err)
	}

	remaining, err := firstShareValue(raw.Remaining)
	if err != nil {
		return nil, fmt.Errorf("parse remaining quantity: %w", err)
	}

	avgPrice, err := firstShareValue(raw.AvgPrice)
	if err != nil {
		return nil, fmt.Errorf("parse avg price: %w", err)
	}

	return &types.OrderStatus{
		ID:           raw.ID,
		State:        state,
		FilledQty:    filled,
		RemainingQty: remaining,
		AvgPrice:     avgPrice,
		CancelReason: raw.CancelReason,
		ReportedAt:   time.Now(),
	}, nil
}

func normaliseState(s string) (types.OrderState, error) {
	switch strings.ToUpper(s) {
	case "OPEN", "LIVE", "PENDING":
		return types.OrderOpen, nil
	case "PARTIALLY_FILLED", "PARTIAL":
		return types.OrderPartiallyFilled, nil
	case "FILLED", "MATCHED":
		return types.OrderFilled, nil
	case "CANCELLED", "CANCELED":
		return types.OrderCancelled, nil
	case "EXPIRED":
		return types.OrderExpired, nil
	default:
		return "", fmt.Errorf("unknown order state %q", s)
	}
}

// firstShareValue returns the first present field, normalised to shares.
func firstShareValue(fields ...json.RawMessage) (float64, error) {
	for _, f := range fields {
		if len(f) == 0 || string(f) == "null" {
			continue
		}
		return parseShareValue(f)
	}
	return 0, nil
}

// parseShareValue accepts a JSON number or string and converts to shares.
// Heuristic for string values: an all-digit string longer than 12
// characters is wei-scale; anything else parses as a decimal share count.
func parseShareValue(raw json.RawMessage) (float64, error) {
	s := string(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return 0, nil
	}

	if allDigits(s) && len(s) > 12 {
		return WireToShares(s)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return v, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
