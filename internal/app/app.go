// Package app wires the trading pipeline together and owns its
// lifecycle: scanner -> signal engine -> risk guard -> executor, with
// the resolver settling positions behind them.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/internal/execution"
	"github.com/quantfold/polymarket-bot/internal/resolver"
	"github.com/quantfold/polymarket-bot/internal/risk"
	"github.com/quantfold/polymarket-bot/internal/scanner"
	"github.com/quantfold/polymarket-bot/internal/signal"
	"github.com/quantfold/polymarket-bot/internal/storage"
	"github.com/quantfold/polymarket-bot/pkg/config"
	"github.com/quantfold/polymarket-bot/pkg/feed"
	"github.com/quantfold/polymarket-bot/pkg/healthprobe"
	"github.com/quantfold/polymarket-bot/pkg/httpserver"
)

const (
	marketQueueSize = 1000
	signalQueueSize = 100
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	store    storage.Store
	spotFeed *feed.Feed
	scanner  *scanner.Scanner
	engine   *signal.Engine
	guard    *risk.Guard
	executor *execution.Executor
	resolver *resolver.Resolver

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
