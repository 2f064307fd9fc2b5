package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHedgeTokenID(t *testing.T) {
	tests := []struct {
		name     string
		side     Outcome
		inverted bool
		want     string
	}{
		{"yes picks the no token", OutcomeYes, false, "no-token"},
		{"no picks the yes token", OutcomeNo, false, "yes-token"},
		{"inverted yes picks the yes token", OutcomeYes, true, "yes-token"},
		{"inverted no picks the no token", OutcomeNo, true, "no-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &TaskConfig{
				Side:            tt.side,
				Inverted:        tt.inverted,
				HedgeYesTokenID: "yes-token",
				HedgeNoTokenID:  "no-token",
			}
			assert.Equal(t, tt.want, cfg.HedgeTokenID())
		})
	}
}

func TestTaskConfigValidate(t *testing.T) {
	valid := func() *TaskConfig {
		return &TaskConfig{
			Direction:       DirectionBuy,
			Side:            OutcomeYes,
			Strategy:        StrategyTaker,
			PredictMarketID: "m-1",
			HedgeYesTokenID: "111",
			HedgeNoTokenID:  "222",
			LimitPrice:      0.45,
			MaxHedgePrice:   0.55,
			TargetQty:       10,
			TickSize:        0.01,
			MaxTotalCost:    0.99,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*TaskConfig)
	}{
		{"bad direction", func(c *TaskConfig) { c.Direction = "HOLD" }},
		{"bad side", func(c *TaskConfig) { c.Side = "MAYBE" }},
		{"bad strategy", func(c *TaskConfig) { c.Strategy = "MIXED" }},
		{"missing market", func(c *TaskConfig) { c.PredictMarketID = "" }},
		{"missing hedge token", func(c *TaskConfig) { c.HedgeNoTokenID = "" }},
		{"price at one", func(c *TaskConfig) { c.LimitPrice = 1 }},
		{"zero qty", func(c *TaskConfig) { c.TargetQty = 0 }},
		{"zero tick", func(c *TaskConfig) { c.TickSize = 0 }},
		{"negative fee", func(c *TaskConfig) { c.FeeBps = -1 }},
		{"buy without hedge bound", func(c *TaskConfig) { c.MaxHedgePrice = 0 }},
		{"buy without cost ceiling", func(c *TaskConfig) { c.MaxTotalCost = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("sell requires min hedge price", func(t *testing.T) {
		cfg := valid()
		cfg.Direction = DirectionSell
		cfg.MaxHedgePrice = 0
		cfg.MaxTotalCost = 0
		assert.Error(t, cfg.Validate())
		cfg.MinHedgePrice = 0.40
		assert.NoError(t, cfg.Validate())
	})
}

func TestTaskStatusTerminal(t *testing.T) {
	terminal := []TaskStatus{StatusCompleted, StatusCancelled, StatusFailed, StatusHedgeFailed}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), string(s))
	}
	live := []TaskStatus{StatusCreated, StatusSubmitted, StatusPartiallyFilled, StatusHedging, StatusPaused, StatusLossHedge}
	for _, s := range live {
		assert.False(t, s.Terminal(), string(s))
	}
}
