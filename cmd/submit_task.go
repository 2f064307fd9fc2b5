package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/crossvenue/predictarb/internal/app"
	"github.com/crossvenue/predictarb/pkg/config"
	"github.com/crossvenue/predictarb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var submitTaskCmd = &cobra.Command{
	Use:   "submit-task",
	Short: "Run a single pair-trade task from flags",
	Long: `Starts the engine plumbing, submits one task and follows it to a
terminal state, printing the final summary as JSON.

Example:
  predictarb submit-task --market 0xabc --side YES --limit-price 0.45 \
    --qty 10 --max-hedge-price 0.55 --max-total-cost 0.98 \
    --hedge-yes-token 111 --hedge-no-token 222`,
	RunE: runSubmitTask,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(submitTaskCmd)

	submitTaskCmd.Flags().String("market", "", "predict venue market id")
	submitTaskCmd.Flags().String("side", "YES", "outcome to trade: YES or NO")
	submitTaskCmd.Flags().String("direction", "BUY", "BUY or SELL")
	submitTaskCmd.Flags().String("strategy", "TAKER", "MAKER or TAKER")
	submitTaskCmd.Flags().String("hedge-yes-token", "", "hedge venue YES token id")
	submitTaskCmd.Flags().String("hedge-no-token", "", "hedge venue NO token id")
	submitTaskCmd.Flags().Float64("limit-price", 0, "predict leg limit price")
	submitTaskCmd.Flags().Float64("qty", 0, "target shares")
	submitTaskCmd.Flags().Float64("max-hedge-price", 0, "BUY hedge acceptance bound")
	submitTaskCmd.Flags().Float64("min-hedge-price", 0, "SELL hedge acceptance bound")
	submitTaskCmd.Flags().Float64("max-total-cost", 0, "BUY pair cost ceiling")
	submitTaskCmd.Flags().Float64("tick-size", 0.01, "predict venue price tick")
	submitTaskCmd.Flags().Int("fee-bps", 0, "predict venue fee in basis points")
	submitTaskCmd.Flags().Bool("inverted", false, "venues pose the question symmetrically")
	submitTaskCmd.Flags().Bool("neg-risk", false, "hedge tokens live on the neg-risk exchange")
	submitTaskCmd.Flags().Bool("sports", false, "tolerate hedge WS loss (poll fallback)")
	submitTaskCmd.Flags().Duration("timeout", 0, "order timeout (default from env)")

	_ = submitTaskCmd.MarkFlagRequired("market")
	_ = submitTaskCmd.MarkFlagRequired("hedge-yes-token")
	_ = submitTaskCmd.MarkFlagRequired("hedge-no-token")
	_ = submitTaskCmd.MarkFlagRequired("limit-price")
	_ = submitTaskCmd.MarkFlagRequired("qty")
}

func runSubmitTask(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	taskCfg, err := taskConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- application.Run(runCtx) }()

	// Follow the task through the registry's update stream.
	updates, unsubscribe := application.Registry().Subscribe()
	defer unsubscribe()

	taskID, err := application.Registry().Create(ctx, taskCfg)
	if err != nil {
		cancelRun()
		<-runDone
		return fmt.Errorf("create task: %w", err)
	}
	logger.Info("task-submitted-via-cli")

	var final *types.TaskSnapshot
	for final == nil {
		select {
		case <-ctx.Done():
			// Signal received: the engine's shutdown tears the task down.
			final = &types.TaskSnapshot{}
		case snap := <-updates:
			if snap.Config.TaskID == taskID && snap.Status.Terminal() {
				final = &snap
			}
		}
	}

	cancelRun()
	if err := <-runDone; err != nil {
		logger.Warn("engine-stop-failed")
	}

	if final.Config.TaskID != "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(final); err != nil {
			return err
		}
		if final.Status != types.StatusCompleted {
			return fmt.Errorf("task finished %s (%s)", final.Status, final.FailReason)
		}
	}
	return nil
}

func taskConfigFromFlags(cmd *cobra.Command) (*types.TaskConfig, error) {
	flags := cmd.Flags()
	market, _ := flags.GetString("market")
	side, _ := flags.GetString("side")
	direction, _ := flags.GetString("direction")
	strategy, _ := flags.GetString("strategy")
	yesToken, _ := flags.GetString("hedge-yes-token")
	noToken, _ := flags.GetString("hedge-no-token")
	limitPrice, _ := flags.GetFloat64("limit-price")
	qty, _ := flags.GetFloat64("qty")
	maxHedge, _ := flags.GetFloat64("max-hedge-price")
	minHedge, _ := flags.GetFloat64("min-hedge-price")
	maxCost, _ := flags.GetFloat64("max-total-cost")
	tick, _ := flags.GetFloat64("tick-size")
	feeBps, _ := flags.GetInt("fee-bps")
	inverted, _ := flags.GetBool("inverted")
	negRisk, _ := flags.GetBool("neg-risk")
	sports, _ := flags.GetBool("sports")
	timeout, _ := flags.GetDuration("timeout")

	cfg := &types.TaskConfig{
		Direction:       types.Direction(strings.ToUpper(direction)),
		Side:            types.Outcome(strings.ToUpper(side)),
		PredictMarketID: market,
		HedgeYesTokenID: yesToken,
		HedgeNoTokenID:  noToken,
		Inverted:        inverted,
		NegRisk:         negRisk,
		Sports:          sports,
		LimitPrice:      limitPrice,
		MaxHedgePrice:   maxHedge,
		MinHedgePrice:   minHedge,
		TargetQty:       qty,
		FeeBps:          feeBps,
		TickSize:        tick,
		MaxTotalCost:    maxCost,
		Strategy:        types.Strategy(strings.ToUpper(strategy)),
		OrderTimeout:    timeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task flags: %w", err)
	}
	return cfg, nil
}
