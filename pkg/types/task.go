package types

import (
	"fmt"
	"time"
)

// Direction says whether a task opens (BUY) or closes (SELL) a position.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Outcome is the binary-market side the predict leg trades.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Strategy selects the predict-leg execution style.
type Strategy string

const (
	StrategyMaker Strategy = "MAKER"
	StrategyTaker Strategy = "TAKER"
)

// TaskStatus is the mutable state of a pair-trade task.
type TaskStatus string

const (
	StatusCreated         TaskStatus = "CREATED"
	StatusSubmitted       TaskStatus = "SUBMITTED"
	StatusPartiallyFilled TaskStatus = "PARTIALLY_FILLED"
	StatusHedging         TaskStatus = "HEDGING"
	StatusPaused          TaskStatus = "PAUSED"
	StatusLossHedge       TaskStatus = "LOSS_HEDGE"
	StatusCompleted       TaskStatus = "COMPLETED"
	StatusCancelled       TaskStatus = "CANCELLED"
	StatusFailed          TaskStatus = "FAILED"
	StatusHedgeFailed     TaskStatus = "HEDGE_FAILED"
)

// Terminal reports whether the task can never transition again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed, StatusHedgeFailed:
		return true
	}
	return false
}

// TaskConfig is the immutable description of one pair trade. Reference
// prices come from the opportunity snapshot and back up entry validation
// when live books cannot be fetched.
type TaskConfig struct {
	TaskID    string    `json:"taskId"`
	Direction Direction `json:"direction"`
	Side      Outcome   `json:"side"`

	PredictMarketID string `json:"predictMarketId"`
	HedgeYesTokenID string `json:"hedgeYesTokenId"`
	HedgeNoTokenID  string `json:"hedgeNoTokenId"`
	// Inverted means the two venues pose the question symmetrically, so
	// the hedge trades the same-named token instead of the opposite one.
	Inverted bool `json:"inverted"`
	NegRisk  bool `json:"negRisk"`
	// Sports markets tolerate hedge-venue WS loss and poll instead.
	Sports bool `json:"sports"`

	LimitPrice    float64 `json:"limitPrice"`
	MaxHedgePrice float64 `json:"maxHedgePrice,omitempty"` // BUY bound
	MinHedgePrice float64 `json:"minHedgePrice,omitempty"` // SELL bound
	TargetQty     float64 `json:"targetQty"`
	FeeBps        int     `json:"feeBps"`
	TickSize      float64 `json:"tickSize"`
	MaxTotalCost  float64 `json:"maxTotalCost,omitempty"` // BUY only

	Strategy        Strategy      `json:"strategy"`
	OrderTimeout    time.Duration `json:"orderTimeout"`
	MaxHedgeRetries int           `json:"maxHedgeRetries"`

	RefPredictPrice float64 `json:"refPredictPrice,omitempty"`
	RefHedgePrice   float64 `json:"refHedgePrice,omitempty"`
}

// HedgeTokenID returns the hedge-venue token that neutralises the predict
// leg: the opposite-named token, unless the venues pose the question
// inverted, in which case the same-named one.
func (c *TaskConfig) HedgeTokenID() string {
	opposite := c.Side == OutcomeYes
	if c.Inverted {
		opposite = !opposite
	}
	if opposite {
		return c.HedgeNoTokenID
	}
	return c.HedgeYesTokenID
}

// Validate rejects configs that cannot produce a well-formed task.
func (c *TaskConfig) Validate() error {
	if c.Direction != DirectionBuy && c.Direction != DirectionSell {
		return fmt.Errorf("invalid direction %q", c.Direction)
	}
	if c.Side != OutcomeYes && c.Side != OutcomeNo {
		return fmt.Errorf("invalid side %q", c.Side)
	}
	if c.Strategy != StrategyMaker && c.Strategy != StrategyTaker {
		return fmt.Errorf("invalid strategy %q", c.Strategy)
	}
	if c.PredictMarketID == "" {
		return fmt.Errorf("predict market id required")
	}
	if c.HedgeYesTokenID == "" || c.HedgeNoTokenID == "" {
		return fmt.Errorf("both hedge token ids required")
	}
	if c.LimitPrice <= 0 || c.LimitPrice >= 1 {
		return fmt.Errorf("limit price %f outside (0, 1)", c.LimitPrice)
	}
	if c.TargetQty <= 0 {
		return fmt.Errorf("target qty must be positive")
	}
	if c.TickSize <= 0 {
		return fmt.Errorf("tick size must be positive")
	}
	if c.FeeBps < 0 {
		return fmt.Errorf("fee bps must be non-negative")
	}
	switch c.Direction {
	case DirectionBuy:
		if c.MaxHedgePrice <= 0 || c.MaxHedgePrice >= 1 {
			return fmt.Errorf("max hedge price %f outside (0, 1)", c.MaxHedgePrice)
		}
		if c.MaxTotalCost <= 0 {
			return fmt.Errorf("max total cost required for BUY")
		}
	case DirectionSell:
		if c.MinHedgePrice <= 0 || c.MinHedgePrice >= 1 {
			return fmt.Errorf("min hedge price %f outside (0, 1)", c.MinHedgePrice)
		}
	}
	return nil
}

// TaskTimestamps records lifecycle instants for post-trade analysis.
type TaskTimestamps struct {
	CreatedAt   time.Time `json:"createdAt"`
	SubmittedAt time.Time `json:"submittedAt,omitempty"`
	FirstFillAt time.Time `json:"firstFillAt,omitempty"`
	FinishedAt  time.Time `json:"finishedAt,omitempty"`
}

// TaskSnapshot is a read-only copy of a task's current state, safe to hand
// to HTTP handlers and log sinks.
type TaskSnapshot struct {
	Config TaskConfig `json:"config"`
	Status TaskStatus `json:"status"`

	OrderID   string `json:"orderId,omitempty"`
	OrderHash string `json:"orderHash,omitempty"`

	PredictFilledQty float64 `json:"predictFilledQty"`
	HedgedQty        float64 `json:"hedgedQty"`
	HedgeCostSum     float64 `json:"hedgeCostSum"` // Σ fillQty·fillPrice
	AvgPredictPrice  float64 `json:"avgPredictPrice"`
	// ActualProfit is the realised edge of the paired position, set when
	// the task reaches a terminal status.
	ActualProfit float64 `json:"actualProfit"`
	LossHedge    bool    `json:"lossHedge"`
	PauseCount   int     `json:"pauseCount"`
	// HedgeRetries counts final-hedging attempts.
	HedgeRetries int `json:"hedgeRetries"`

	FailReason string         `json:"failReason,omitempty"`
	Timestamps TaskTimestamps `json:"timestamps"`
}
