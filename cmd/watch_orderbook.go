package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/crossvenue/predictarb/pkg/config"
	"github.com/crossvenue/predictarb/pkg/types"
	"github.com/crossvenue/predictarb/pkg/websocket"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchOrderbookCmd = &cobra.Command{
	Use:   "watch-orderbook <token-id> [token-id ...]",
	Short: "Stream hedge venue orderbook updates for tokens",
	Long: `Connects to the hedge venue market WebSocket and prints book
updates for the given token ids. Useful for debugging market data.

Example:
  predictarb watch-orderbook 7136911328 7136911329`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatchOrderbook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchOrderbookCmd)
	watchOrderbookCmd.Flags().BoolP("json", "j", false, "Output raw JSON messages")
}

func runWatchOrderbook(cmd *cobra.Command, args []string) error {
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

	rawJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := websocket.New(websocket.Config{
		URL:                   cfg.HedgeWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
	if err := manager.Start(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		_ = manager.Close()
	}()

	if err := manager.Subscribe(ctx, args); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	fmt.Printf("watching %d token(s); ctrl-c to stop\n", len(args))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-manager.MessageChan():
			if !ok {
				return nil
			}
			if rawJSON {
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				fmt.Println(string(data))
				continue
			}
			printBookMessage(msg)
		}
	}
}

func printBookMessage(msg *types.MarketMessage) {
	if msg.EventType != "book" {
		fmt.Printf("%s  token=%s\n", msg.EventType, msg.AssetID)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "book\ttoken=%s\tbids=%d\tasks=%d\n", msg.AssetID, len(msg.Bids), len(msg.Asks))
	if len(msg.Bids) > 0 {
		best := msg.Bids[len(msg.Bids)-1]
		fmt.Fprintf(w, "\tbest bid\t%s x %s\n", best.Price, best.Size)
	}
	if len(msg.Asks) > 0 {
		best := msg.Asks[len(msg.Asks)-1]
		fmt.Fprintf(w, "\tbest ask\t%s x %s\n", best.Price, best.Size)
	}
	_ = w.Flush()
}
