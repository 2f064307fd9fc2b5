package predict

import (
	"github.com/shopspring/decimal"

	"github.com/crossvenue/predictarb/pkg/types"
)

// The venue's wire format carries amounts as 1e18-scale fixed point, and
// rejects anything that is not a multiple of 1e13 (i.e. more than 5
// decimal places of shares).
var (
	weiScale      = decimal.New(1, 18)
	precisionUnit = decimal.New(1, 13)
)

// shareDecimals is the venue's share precision.
const shareDecimals = 5

// AlignPriceUp rounds price up to the market's tick.
func AlignPriceUp(price, tick float64) float64 {
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	f, _ := p.Div(t).Ceil().Mul(t).Float64()
	return f
}

// AlignPriceDown rounds price down to the market's tick.
func AlignPriceDown(price, tick float64) float64 {
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	f, _ := p.Div(t).Floor().Mul(t).Float64()
	return f
}

// AlignQty truncates a share quantity to the venue's 5-decimal precision.
func AlignQty(qty float64) float64 {
	f, _ := decimal.NewFromFloat(qty).Truncate(shareDecimals).Float64()
	return f
}

// SharesToWire converts human-scale shares into the venue's fixed-point
// integer string. The result is always a multiple of the precision unit.
func SharesToWire(qty float64) string {
	wei := decimal.NewFromFloat(qty).Mul(weiScale)
	aligned := wei.Div(precisionUnit).Floor().Mul(precisionUnit)
	return aligned.String()
}

// WireToShares parses a 1e18-scale integer string into shares.
func WireToShares(raw string) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	f, _ := d.Div(weiScale).Float64()
	return f, nil
}

// CheckMinNotional rejects orders below the venue's minimum value without a
// network call. An order worth exactly the minimum is accepted.
func CheckMinNotional(price, qty, minUSD float64) error {
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(qty))
	if notional.LessThan(decimal.NewFromFloat(minUSD)) {
		return types.NewVenueError(types.CodeBelowMinNotional, types.ClassRejected,
			"order value %s below minimum %.2f", notional.StringFixed(4), minUSD)
	}
	return nil
}
