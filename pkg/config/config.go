package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all engine configuration, loaded from environment variables.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Predict venue (Venue-A)
	PredictRESTURL     string
	PredictChainRPCURL string
	PredictPrivateKey  string
	PredictAccount     string
	PredictExchanges   []string // exchange contract addresses for fill events
	JWTSlack           time.Duration

	// Hedge venue (Venue-B)
	HedgeRESTURL      string
	HedgeWSURL        string
	HedgePrivateKey   string
	HedgeProxyAddress string
	HedgeAPIKey       string
	HedgeSecret       string
	HedgePassphrase   string
	HedgeSigType      int

	// WebSocket
	WSDialTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Orderbook cache thresholds
	BookFreshTTL time.Duration
	BookStale    time.Duration
	BookMaxStale time.Duration

	// Executor
	PollInterval      time.Duration
	OrderTimeout      time.Duration
	MaxHedgeRetries   int
	CostCheckThrottle time.Duration
	MinHedgeShares    float64
	MinHedgeNotional  float64
	LossHedgeMaxDev   float64
	LossHedgeMaxWait  time.Duration
	MinOrderValueUSD  float64

	// Scanner
	ScanInterval     time.Duration
	ScanMinProfitPct float64
	// ScanPairs are "marketID:yesTokenID:noTokenID" triples.
	ScanPairs       []string
	ScanAutoExecute bool

	// Task log sink
	LogDir           string
	LogRetentionDays int
	LogQueueMaxSize  int
	LogFlushInterval time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		PredictRESTURL:     getEnvOrDefault("PREDICT_REST_URL", "https://api.predict.example"),
		PredictChainRPCURL: getEnvOrDefault("PREDICT_CHAIN_RPC_URL", "wss://polygon-rpc.example/ws"),
		PredictPrivateKey:  os.Getenv("PREDICT_PRIVATE_KEY"),
		PredictAccount:     os.Getenv("PREDICT_ACCOUNT_ADDRESS"),
		PredictExchanges:   splitCSV(getEnvOrDefault("PREDICT_EXCHANGE_ADDRESSES", "")),
		JWTSlack:           getDurationOrDefault("PREDICT_JWT_SLACK", 5*time.Second),

		HedgeRESTURL:      getEnvOrDefault("HEDGE_REST_URL", "https://clob.polymarket.com"),
		HedgeWSURL:        getEnvOrDefault("HEDGE_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		HedgePrivateKey:   os.Getenv("HEDGE_PRIVATE_KEY"),
		HedgeProxyAddress: os.Getenv("HEDGE_PROXY_ADDRESS"),
		HedgeAPIKey:       os.Getenv("HEDGE_API_KEY"),
		HedgeSecret:       os.Getenv("HEDGE_SECRET"),
		HedgePassphrase:   os.Getenv("HEDGE_PASSPHRASE"),
		HedgeSigType:      getIntOrDefault("HEDGE_SIGNATURE_TYPE", 0),

		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 5*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		BookFreshTTL: getDurationOrDefault("ORDERBOOK_TTL", 500*time.Millisecond),
		BookStale:    getDurationOrDefault("ORDERBOOK_STALE", time.Second),
		BookMaxStale: getDurationOrDefault("ORDERBOOK_MAX_STALE", 2*time.Second),

		PollInterval:      getDurationOrDefault("POLL_INTERVAL", 500*time.Millisecond),
		OrderTimeout:      getDurationOrDefault("ORDER_TIMEOUT", 20*time.Second),
		MaxHedgeRetries:   getIntOrDefault("MAX_HEDGE_RETRIES", 3),
		CostCheckThrottle: getDurationOrDefault("COST_CHECK_THROTTLE", 200*time.Millisecond),
		MinHedgeShares:    getFloat64OrDefault("MIN_HEDGE_SHARES", 2.0),
		MinHedgeNotional:  getFloat64OrDefault("MIN_HEDGE_NOTIONAL_USD", 1.0),
		LossHedgeMaxDev:   getFloat64OrDefault("LOSS_HEDGE_MAX_DEVIATION", 0.02),
		LossHedgeMaxWait:  getDurationOrDefault("LOSS_HEDGE_MAX_WAIT", 30*time.Minute),
		MinOrderValueUSD:  getFloat64OrDefault("MIN_ORDER_VALUE_USD", 0.90),

		ScanInterval:     getDurationOrDefault("SCAN_INTERVAL", time.Second),
		ScanMinProfitPct: getFloat64OrDefault("SCAN_MIN_PROFIT_PCT", 0.5),
		ScanPairs:        splitCSV(getEnvOrDefault("SCAN_PAIRS", "")),
		ScanAutoExecute:  getBoolOrDefault("SCAN_AUTO_EXECUTE", false),

		LogDir:           getEnvOrDefault("TASK_LOG_DIR", "./tasklogs"),
		LogRetentionDays: getIntOrDefault("LOG_RETENTION_DAYS", 7),
		LogQueueMaxSize:  getIntOrDefault("LOG_QUEUE_MAX_SIZE", 1000),
		LogFlushInterval: getDurationOrDefault("LOG_FLUSH_INTERVAL", 500*time.Millisecond),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "predictarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", ""),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "predictarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are coherent.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	if c.HedgeWSURL == "" {
		return fmt.Errorf("HEDGE_WS_URL cannot be empty")
	}
	if c.PredictRESTURL == "" {
		return fmt.Errorf("PREDICT_REST_URL cannot be empty")
	}
	if c.BookFreshTTL >= c.BookStale || c.BookStale >= c.BookMaxStale {
		return fmt.Errorf("orderbook thresholds must satisfy ttl < stale < maxStale, got %s/%s/%s",
			c.BookFreshTTL, c.BookStale, c.BookMaxStale)
	}
	if c.LossHedgeMaxDev < 0 || c.LossHedgeMaxDev > 0.1 {
		return fmt.Errorf("LOSS_HEDGE_MAX_DEVIATION must be in [0, 0.1], got %f", c.LossHedgeMaxDev)
	}
	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
