package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. Read-only after load.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Bankroll and risk limits
	Bankroll               float64
	MaxArbPositionPct      float64
	MaxLatePositionPct     float64
	MaxDailyExposurePct    float64
	MaxConcurrentPositions int
	DailyLossHaltPct       float64
	MaxConsecutiveFails    int

	// Strategy parameters
	MinArbEdgePct        float64
	MaxSlippagePct       float64
	OrderTimeout         time.Duration
	MaxSpreadOneOfMany   float64
	MaxSpreadYesNo       float64
	MaxSpreadLateMarket  float64
	LateWindowStart      time.Duration
	LateWindowEnd        time.Duration
	LateMinDeviationPct  float64
	LateMaxVolatilityPct float64
	LateMaxPrice         float64

	// Scanner
	MinMarketVolume         float64
	MinTimeToClose          time.Duration
	ScannerInterval         time.Duration
	WatchlistFeederInterval time.Duration
	WatchlistHorizon        time.Duration
	HotLoopInterval         time.Duration
	ResolverInterval        time.Duration

	// Feature flags
	DryRun           bool
	EnableOneOfMany  bool
	EnableYesNo      bool
	EnableLateMarket bool
	LateMarketOnly   bool

	// Exchange
	PolymarketClobURL       string
	PolymarketGammaURL      string
	PolymarketPrivateKey    string
	PolymarketAPIKey        string
	PolymarketSecret        string
	PolymarketPassphrase    string
	PolymarketProxyAddress  string
	PolymarketSignatureType int

	// Spot feed
	SpotFeedWSURL string
	FeedSymbols   []string

	// Storage
	StorageMode  string // "postgres" or "memory"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Alerts
	TelegramBotToken string
	TelegramChatID   string
}

// LoadFromEnv loads configuration from environment variables with
// defaults. A .env file in the working directory is loaded first when
// present.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Bankroll and risk defaults
		Bankroll:               getFloat64OrDefault("BANKROLL", 5000.0),
		MaxArbPositionPct:      getFloat64OrDefault("MAX_ARB_POSITION_PCT", 2.0),
		MaxLatePositionPct:     getFloat64OrDefault("MAX_LATE_POSITION_PCT", 1.5),
		MaxDailyExposurePct:    getFloat64OrDefault("MAX_DAILY_EXPOSURE_PCT", 25.0),
		MaxConcurrentPositions: getIntOrDefault("MAX_CONCURRENT_POSITIONS", 10),
		DailyLossHaltPct:       getFloat64OrDefault("DAILY_LOSS_HALT_PCT", 5.0),
		MaxConsecutiveFails:    getIntOrDefault("MAX_CONSECUTIVE_FAILS", 3),

		// Strategy defaults
		MinArbEdgePct:        getFloat64OrDefault("MIN_ARB_EDGE_PCT", 2.0),
		MaxSlippagePct:       getFloat64OrDefault("MAX_SLIPPAGE_PCT", 0.3),
		OrderTimeout:         getDurationOrDefault("ORDER_TIMEOUT", 5*time.Second),
		MaxSpreadOneOfMany:   getFloat64OrDefault("MAX_SPREAD_ONE_OF_MANY", 2.0),
		MaxSpreadYesNo:       getFloat64OrDefault("MAX_SPREAD_YES_NO", 1.5),
		MaxSpreadLateMarket:  getFloat64OrDefault("MAX_SPREAD_LATE_MARKET", 1.0),
		LateWindowStart:      getDurationOrDefault("LATE_MARKET_WINDOW_START", 180*time.Second),
		LateWindowEnd:        getDurationOrDefault("LATE_MARKET_WINDOW_END", 60*time.Second),
		LateMinDeviationPct:  getFloat64OrDefault("LATE_MARKET_MIN_DEVIATION_PCT", 0.05),
		LateMaxVolatilityPct: getFloat64OrDefault("LATE_MARKET_MAX_VOLATILITY_PCT", 1.5),
		LateMaxPrice:         getFloat64OrDefault("LATE_MARKET_MAX_PRICE", 0.95),

		// Scanner defaults
		MinMarketVolume:         getFloat64OrDefault("MIN_MARKET_VOLUME", 5000.0),
		MinTimeToClose:          time.Duration(getIntOrDefault("MIN_TIME_TO_CLOSE_MINUTES", 30)) * time.Minute,
		ScannerInterval:         getDurationOrDefault("SCANNER_INTERVAL", 5*time.Second),
		WatchlistFeederInterval: getDurationOrDefault("WATCHLIST_FEEDER_INTERVAL", 10*time.Second),
		WatchlistHorizon:        getDurationOrDefault("WATCHLIST_HORIZON", 300*time.Second),
		HotLoopInterval:         getDurationOrDefault("HOT_LOOP_INTERVAL", 500*time.Millisecond),
		ResolverInterval:        getDurationOrDefault("RESOLVER_INTERVAL", 60*time.Second),

		// Feature flags
		DryRun:           getBoolOrDefault("DRY_RUN", true),
		EnableOneOfMany:  getBoolOrDefault("ENABLE_ONE_OF_MANY", true),
		EnableYesNo:      getBoolOrDefault("ENABLE_YES_NO", true),
		EnableLateMarket: getBoolOrDefault("ENABLE_LATE_MARKET", true),
		LateMarketOnly:   getBoolOrDefault("LATE_MARKET_ONLY", false),

		// Exchange defaults
		PolymarketClobURL:       getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		PolymarketGammaURL:      getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketPrivateKey:    os.Getenv("POLYMARKET_PRIVATE_KEY"),
		PolymarketAPIKey:        os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:        os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase:    os.Getenv("POLYMARKET_PASSPHRASE"),
		PolymarketProxyAddress:  os.Getenv("POLYMARKET_PROXY_ADDRESS"),
		PolymarketSignatureType: getIntOrDefault("POLYMARKET_SIGNATURE_TYPE", 0),

		// Spot feed defaults
		SpotFeedWSURL: getEnvOrDefault("SPOT_FEED_WS_URL", "wss://stream.binance.com:9443/stream"),
		FeedSymbols:   getSliceOrDefault("FEED_SYMBOLS", []string{"btcusdt", "ethusdt", "solusdt", "xrpusdt"}),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polybot"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polybot123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polymarket_bot"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		// Alerts (disabled when empty)
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.Bankroll <= 0 {
		return fmt.Errorf("BANKROLL must be positive, got %f", c.Bankroll)
	}

	if c.MaxArbPositionPct <= 0 || c.MaxArbPositionPct > 100 {
		return fmt.Errorf("MAX_ARB_POSITION_PCT must be in (0, 100], got %f", c.MaxArbPositionPct)
	}

	if c.MaxLatePositionPct <= 0 || c.MaxLatePositionPct > 100 {
		return fmt.Errorf("MAX_LATE_POSITION_PCT must be in (0, 100], got %f", c.MaxLatePositionPct)
	}

	if c.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_POSITIONS must be positive, got %d", c.MaxConcurrentPositions)
	}

	if c.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %s", c.OrderTimeout)
	}

	if c.LateWindowEnd >= c.LateWindowStart {
		return fmt.Errorf("LATE_MARKET_WINDOW_END (%s) must be below LATE_MARKET_WINDOW_START (%s)",
			c.LateWindowEnd, c.LateWindowStart)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "memory" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'memory', got %q", c.StorageMode)
	}

	if !c.DryRun && (c.PolymarketPrivateKey == "" || c.PolymarketAPIKey == "" ||
		c.PolymarketSecret == "" || c.PolymarketPassphrase == "") {
		return fmt.Errorf("live mode requires POLYMARKET_PRIVATE_KEY, POLYMARKET_API_KEY, POLYMARKET_SECRET and POLYMARKET_PASSPHRASE")
	}

	return nil
}

// MaxArbPositionSize is the per-trade USD cap for arbitrage strategies.
func (c *Config) MaxArbPositionSize() float64 {
	return c.Bankroll * c.MaxArbPositionPct / 100.0
}

// MaxLatePositionSize is the per-trade USD cap for the late-market strategy.
func (c *Config) MaxLatePositionSize() float64 {
	return c.Bankroll * c.MaxLatePositionPct / 100.0
}

// MaxDailyExposure is the cap on total open exposure in USD.
func (c *Config) MaxDailyExposure() float64 {
	return c.Bankroll * c.MaxDailyExposurePct / 100.0
}

// DailyLossHaltAmount is the daily loss in USD that triggers a halt.
func (c *Config) DailyLossHaltAmount() float64 {
	return c.Bankroll * c.DailyLossHaltPct / 100.0
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

func getSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
