package types

// feeRebate is the maker-program rebate applied to the nominal fee rate.
const feeRebate = 0.10

// FeePerShare is the predict venue's fee for one share traded at price p:
// bps/10000 · min(p, 1−p) · (1 − rebate). Quoted in USDC per share.
func FeePerShare(price float64, feeBps int) float64 {
	side := price
	if 1-price < side {
		side = 1 - price
	}
	return float64(feeBps) / 10000 * side * (1 - feeRebate)
}

// FeeAsShareRatio is the share-count haircut a BUY fill suffers: the venue
// delivers qty·(1 − ratio) shares. The venue charges the same rate whether
// it settles in quote or in shares, so the ratio equals the fee rate.
// SELL fills pay the fee in quote and keep their share count.
func FeeAsShareRatio(price float64, feeBps int) float64 {
	return FeePerShare(price, feeBps)
}
