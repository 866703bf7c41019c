package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/internal/exchange"
	"github.com/quantfold/polymarket-bot/internal/execution"
	"github.com/quantfold/polymarket-bot/internal/markets"
	"github.com/quantfold/polymarket-bot/internal/resolver"
	"github.com/quantfold/polymarket-bot/internal/risk"
	"github.com/quantfold/polymarket-bot/internal/scanner"
	"github.com/quantfold/polymarket-bot/internal/signal"
	"github.com/quantfold/polymarket-bot/internal/storage"
	"github.com/quantfold/polymarket-bot/pkg/alerts"
	"github.com/quantfold/polymarket-bot/pkg/cache"
	"github.com/quantfold/polymarket-bot/pkg/config"
	"github.com/quantfold/polymarket-bot/pkg/feed"
	"github.com/quantfold/polymarket-bot/pkg/healthprobe"
	"github.com/quantfold/polymarket-bot/pkg/httpserver"
	"github.com/quantfold/polymarket-bot/pkg/types"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	exchangeClient, err := setupExchange(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup exchange: %w", err)
	}

	marketsClient := setupMarkets(cfg, logger)
	spotFeed := setupFeed(cfg, logger)
	notifier := setupAlerts(cfg, logger)

	marketQueue := make(chan *types.MarketSnapshot, marketQueueSize)
	signalQueue := make(chan *types.TradeSignal, signalQueueSize)

	marketScanner := setupScanner(cfg, logger, marketsClient, exchangeClient, store, marketCache, marketQueue)
	engine := setupEngine(cfg, logger, spotFeed, marketQueue, signalQueue)
	guard := setupGuard(cfg, logger, store, notifier)
	executor := setupExecutor(cfg, logger, signalQueue, store, guard, exchangeClient)
	positionResolver := setupResolver(cfg, logger, store, marketsClient, notifier)

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Store:         store,
		Guard:         guard,
		Feed:          spotFeed,
		DryRun:        cfg.DryRun,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		store:         store,
		spotFeed:      spotFeed,
		scanner:       marketScanner,
		engine:        engine,
		guard:         guard,
		executor:      executor,
		resolver:      positionResolver,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.StorageMode == "postgres" {
		return storage.NewPostgresStore(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	}
	return storage.NewMemoryStore(logger), nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items (1000 markets)
		MaxCost:     1000,  // Maximum 1000 items in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupExchange(cfg *config.Config, logger *zap.Logger) (*exchange.Client, error) {
	return exchange.New(&exchange.Config{
		ClobURL:       cfg.PolymarketClobURL,
		PrivateKey:    cfg.PolymarketPrivateKey,
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		ProxyAddress:  cfg.PolymarketProxyAddress,
		SignatureType: cfg.PolymarketSignatureType,
		Logger:        logger,
	})
}

func setupMarkets(cfg *config.Config, logger *zap.Logger) *markets.Client {
	return markets.NewClient(&markets.Config{
		GammaURL: cfg.PolymarketGammaURL,
		ClobURL:  cfg.PolymarketClobURL,
		Logger:   logger,
	})
}

func setupFeed(cfg *config.Config, logger *zap.Logger) *feed.Feed {
	return feed.New(feed.Config{
		URL:     cfg.SpotFeedWSURL,
		Symbols: cfg.FeedSymbols,
		Logger:  logger,
	})
}

func setupAlerts(cfg *config.Config, logger *zap.Logger) *alerts.Notifier {
	return alerts.New(alerts.Config{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
		Logger:   logger,
	})
}

func setupScanner(
	cfg *config.Config,
	logger *zap.Logger,
	lister *markets.Client,
	books *exchange.Client,
	store storage.Store,
	marketCache cache.Cache,
	queue chan *types.MarketSnapshot,
) *scanner.Scanner {
	return scanner.New(scanner.Config{
		Lister:           lister,
		Books:            books,
		Store:            store,
		Cache:            marketCache,
		Queue:            queue,
		ScannerInterval:  cfg.ScannerInterval,
		FeederInterval:   cfg.WatchlistFeederInterval,
		HotLoopInterval:  cfg.HotLoopInterval,
		WatchlistHorizon: cfg.WatchlistHorizon,
		MinMarketVolume:  cfg.MinMarketVolume,
		MinTimeToClose:   cfg.MinTimeToClose,
		LateWindowStart:  cfg.LateWindowStart,
		LateWindowEnd:    cfg.LateWindowEnd,
		EnableLateMarket: cfg.EnableLateMarket,
		Logger:           logger,
	})
}

func setupEngine(
	cfg *config.Config,
	logger *zap.Logger,
	spotFeed *feed.Feed,
	marketQueue chan *types.MarketSnapshot,
	signalQueue chan *types.TradeSignal,
) *signal.Engine {
	return signal.New(signal.Config{
		Feed:                 spotFeed,
		MarketQueue:          marketQueue,
		SignalQueue:          signalQueue,
		MinArbEdgePct:        cfg.MinArbEdgePct,
		MaxArbPositionSize:   cfg.MaxArbPositionSize(),
		MaxLatePositionSize:  cfg.MaxLatePositionSize(),
		MinTimeToClose:       cfg.MinTimeToClose,
		MaxSpreadOneOfMany:   cfg.MaxSpreadOneOfMany,
		MaxSpreadYesNo:       cfg.MaxSpreadYesNo,
		MaxSpreadLateMarket:  cfg.MaxSpreadLateMarket,
		LateWindowStart:      cfg.LateWindowStart,
		LateWindowEnd:        cfg.LateWindowEnd,
		LateMinDeviationPct:  cfg.LateMinDeviationPct,
		LateMaxVolatilityPct: cfg.LateMaxVolatilityPct,
		LateMaxPrice:         cfg.LateMaxPrice,
		EnableOneOfMany:      cfg.EnableOneOfMany,
		EnableYesNo:          cfg.EnableYesNo,
		EnableLateMarket:     cfg.EnableLateMarket,
		LateMarketOnly:       cfg.LateMarketOnly,
		Logger:               logger,
	})
}

func setupGuard(cfg *config.Config, logger *zap.Logger, store storage.Store, notifier *alerts.Notifier) *risk.Guard {
	return risk.New(risk.Config{
		Store:               store,
		Alerts:              notifier,
		MaxArbPositionSize:  cfg.MaxArbPositionSize(),
		MaxLatePositionSize: cfg.MaxLatePositionSize(),
		MaxOpenPositions:    cfg.MaxConcurrentPositions,
		MaxDailyExposure:    cfg.MaxDailyExposure(),
		DailyLossHaltAmount: cfg.DailyLossHaltAmount(),
		MaxConsecutiveFails: cfg.MaxConsecutiveFails,
		Logger:              logger,
	})
}

func setupExecutor(
	cfg *config.Config,
	logger *zap.Logger,
	signalQueue chan *types.TradeSignal,
	store storage.Store,
	guard *risk.Guard,
	exchangeClient *exchange.Client,
) *execution.Executor {
	return execution.New(execution.Config{
		SignalQueue:    signalQueue,
		Store:          store,
		Guard:          guard,
		Exchange:       exchangeClient,
		DryRun:         cfg.DryRun,
		OrderTimeout:   cfg.OrderTimeout,
		MaxSlippagePct: cfg.MaxSlippagePct,
		Logger:         logger,
	})
}

func setupResolver(
	cfg *config.Config,
	logger *zap.Logger,
	store storage.Store,
	marketsClient *markets.Client,
	notifier *alerts.Notifier,
) *resolver.Resolver {
	return resolver.New(resolver.Config{
		Store:    store,
		Markets:  marketsClient,
		Alerts:   notifier,
		Interval: cfg.ResolverInterval,
		Logger:   logger,
	})
}
