// Package app wires the engine: venue gateways, market-data plumbing,
// the task registry and the observability surface.
package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/internal/bookcache"
	"github.com/crossvenue/predictarb/internal/fills"
	"github.com/crossvenue/predictarb/internal/polymarket"
	"github.com/crossvenue/predictarb/internal/predict"
	"github.com/crossvenue/predictarb/internal/registry"
	"github.com/crossvenue/predictarb/internal/scanner"
	"github.com/crossvenue/predictarb/internal/storage"
	"github.com/crossvenue/predictarb/internal/task"
	"github.com/crossvenue/predictarb/internal/tasklog"
	"github.com/crossvenue/predictarb/pkg/cache"
	"github.com/crossvenue/predictarb/pkg/config"
	"github.com/crossvenue/predictarb/pkg/healthprobe"
	"github.com/crossvenue/predictarb/pkg/httpserver"
	"github.com/crossvenue/predictarb/pkg/types"
	"github.com/crossvenue/predictarb/pkg/websocket"
)

const hedgeVenue = "polymarket"

// App owns every long-lived component of the engine.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	health     *healthprobe.HealthChecker
	books      *bookcache.Cache
	wsManager  *websocket.Manager
	wsFan      *stateFanout
	predict    *predict.Client
	hedge      *polymarket.Client
	fillStream *predict.FillStream
	router     *fills.Router
	sink       *tasklog.Sink
	registry   *registry.Registry
	scanner    *scanner.Scanner
	store      storage.Store
	httpServer *httpserver.Server
}

// New builds the full component graph. Nothing starts running until Run.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, health: healthprobe.New()}

	infoCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}

	a.predict, err = predict.NewClient(&predict.ClientConfig{
		BaseURL:     cfg.PredictRESTURL,
		PrivateKey:  cfg.PredictPrivateKey,
		Account:     cfg.PredictAccount,
		JWTSlack:    cfg.JWTSlack,
		MinOrderUSD: cfg.MinOrderValueUSD,
		Cache:       infoCache,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build predict client: %w", err)
	}

	a.hedge, err = polymarket.NewClient(&polymarket.ClientConfig{
		BaseURL:       cfg.HedgeRESTURL,
		APIKey:        cfg.HedgeAPIKey,
		Secret:        cfg.HedgeSecret,
		Passphrase:    cfg.HedgePassphrase,
		PrivateKey:    cfg.HedgePrivateKey,
		ProxyAddress:  cfg.HedgeProxyAddress,
		SignatureType: cfg.HedgeSigType,
		Cache:         infoCache,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build hedge client: %w", err)
	}

	a.books = bookcache.New(&bookcache.Config{
		FreshTTL: cfg.BookFreshTTL,
		Stale:    cfg.BookStale,
		MaxStale: cfg.BookMaxStale,
		Logger:   logger,
	})

	a.wsManager = websocket.New(websocket.Config{
		URL:                   cfg.HedgeWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
	a.wsFan = newStateFanout()

	a.fillStream = predict.NewFillStream(&predict.FillStreamConfig{
		RPCURL:            cfg.PredictChainRPCURL,
		ExchangeAddresses: cfg.PredictExchanges,
		Account:           cfg.PredictAccount,
		Logger:            logger,
	})
	a.router = fills.NewRouter(logger)

	a.sink, err = tasklog.New(&tasklog.Config{
		BaseDir:       cfg.LogDir,
		QueueMaxSize:  cfg.LogQueueMaxSize,
		FlushInterval: cfg.LogFlushInterval,
		RetentionDays: cfg.LogRetentionDays,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build task log sink: %w", err)
	}

	a.store, err = a.buildStore()
	if err != nil {
		return nil, err
	}

	a.registry = registry.New(&registry.Config{
		Factory: a.taskFactory,
		Logger:  logger,
	})

	if pairs, err := parseScanPairs(cfg.ScanPairs); err != nil {
		return nil, err
	} else if len(pairs) > 0 {
		a.scanner = scanner.New(&scanner.Config{
			Pairs:     pairs,
			Predict:   a.predict,
			Hedge:     a.hedge,
			Interval:  cfg.ScanInterval,
			MinMargin: cfg.ScanMinProfitPct / 100,
			OnFound:   a.onOpportunity,
			Logger:    logger,
		})
	}

	a.httpServer = httpserver.New(&httpserver.Config{
		Addr:   ":" + cfg.HTTPPort,
		Health: a.health,
		Tasks:  a.registry,
		Logger: logger,
	})

	return a, nil
}

// Registry exposes the task registry for the CLI layer.
func (a *App) Registry() *registry.Registry { return a.registry }

func (a *App) buildStore() (storage.Store, error) {
	if a.cfg.StorageMode != "postgres" {
		return storage.NewConsoleStore(a.logger), nil
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		a.cfg.PostgresHost, a.cfg.PostgresPort, a.cfg.PostgresUser,
		a.cfg.PostgresPass, a.cfg.PostgresDB, a.cfg.PostgresSSL)
	store, err := storage.Open(dsn, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	return store, nil
}

// parseScanPairs parses "marketID:yesTokenID:noTokenID" triples, with
// optional ":inverted" and/or ":negrisk" suffixes.
func parseScanPairs(raw []string) ([]scanner.Pair, error) {
	pairs := make([]scanner.Pair, 0, len(raw))
	for _, entry := range raw {
		parts := strings.Split(entry, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("scan pair %q: want marketID:yesTokenID:noTokenID", entry)
		}
		pair := scanner.Pair{
			PredictMarketID: parts[0],
			HedgeYesTokenID: parts[1],
			HedgeNoTokenID:  parts[2],
		}
		for _, flag := range parts[3:] {
			switch strings.ToLower(flag) {
			case "inverted":
				pair.Inverted = true
			case "negrisk":
				pair.NegRisk = true
			default:
				return nil, fmt.Errorf("scan pair %q: unknown flag %q", entry, flag)
			}
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// taskFactory builds one wired executor for the registry.
func (a *App) taskFactory(cfg *types.TaskConfig, onTransition func(types.TaskSnapshot)) (registry.Runner, error) {
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = a.cfg.OrderTimeout
	}
	if cfg.MaxHedgeRetries <= 0 {
		cfg.MaxHedgeRetries = a.cfg.MaxHedgeRetries
	}

	wsState := a.wsFan.Subscribe()
	exec := task.NewExecutor(&task.ExecutorConfig{
		Task: cfg,
		Knobs: task.Knobs{
			PollInterval:          a.cfg.PollInterval,
			MinHedgeShares:        a.cfg.MinHedgeShares,
			MinHedgeNotional:      a.cfg.MinHedgeNotional,
			LossHedgeMaxDeviation: a.cfg.LossHedgeMaxDev,
			LossHedgeMaxWait:      a.cfg.LossHedgeMaxWait,
			CostCheckThrottle:     a.cfg.CostCheckThrottle,
		},
		Predict:      a.predict,
		Hedge:        &hedgeGateway{client: a.hedge},
		Books:        a.books,
		Router:       a.router,
		Sink:         a.sink,
		WSState:      wsState,
		OnTransition: onTransition,
		Logger:       a.logger,
	})
	return &taskRunner{
		exec:    exec,
		cleanup: func() { a.wsFan.Unsubscribe(wsState) },
	}, nil
}
