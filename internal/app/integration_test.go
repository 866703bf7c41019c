package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantfold/polymarket-bot/internal/execution"
	"github.com/quantfold/polymarket-bot/internal/risk"
	"github.com/quantfold/polymarket-bot/internal/scanner"
	"github.com/quantfold/polymarket-bot/internal/signal"
	"github.com/quantfold/polymarket-bot/internal/storage"
	"github.com/quantfold/polymarket-bot/internal/testutil"
	"github.com/quantfold/polymarket-bot/pkg/alerts"
	"github.com/quantfold/polymarket-bot/pkg/types"
)

// pipeline is the dry-run trading pipeline over mocked upstreams.
type pipeline struct {
	scanner  *scanner.Scanner
	engine   *signal.Engine
	executor *execution.Executor
	guard    *risk.Guard
	store    *storage.MemoryStore
}

func newPipeline(t *testing.T, lister scanner.MarketLister, books scanner.BookFetcher) *pipeline {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryStore(logger)

	marketQueue := make(chan *types.MarketSnapshot, marketQueueSize)
	signalQueue := make(chan *types.TradeSignal, signalQueueSize)

	marketScanner := scanner.New(scanner.Config{
		Lister:           lister,
		Books:            books,
		Store:            store,
		Cache:            testutil.NoopCache{},
		Queue:            marketQueue,
		// One immediate scan on start; no re-scan inside the test window.
		ScannerInterval:  time.Hour,
		FeederInterval:   time.Hour,
		HotLoopInterval:  time.Hour,
		WatchlistHorizon: 300 * time.Second,
		MinMarketVolume:  5000,
		MinTimeToClose:   30 * time.Minute,
		LateWindowStart:  180 * time.Second,
		LateWindowEnd:    60 * time.Second,
		Logger:           logger,
	})

	engine := signal.New(signal.Config{
		MarketQueue:         marketQueue,
		SignalQueue:         signalQueue,
		MinArbEdgePct:       2.0,
		MaxArbPositionSize:  100.0,
		MaxLatePositionSize: 75.0,
		MinTimeToClose:      30 * time.Minute,
		MaxSpreadOneOfMany:  2.0,
		MaxSpreadYesNo:      1.5,
		MaxSpreadLateMarket: 1.0,
		LateWindowStart:     180 * time.Second,
		LateWindowEnd:       60 * time.Second,
		EnableOneOfMany:     true,
		EnableYesNo:         true,
		Logger:              logger,
	})

	guard := risk.New(risk.Config{
		Store:               store,
		Alerts:              alerts.New(alerts.Config{Logger: logger}),
		MaxArbPositionSize:  100.0,
		MaxLatePositionSize: 75.0,
		MaxOpenPositions:    10,
		MaxDailyExposure:    1250.0,
		DailyLossHaltAmount: 250.0,
		MaxConsecutiveFails: 3,
		Logger:              logger,
	})

	executor := execution.New(execution.Config{
		SignalQueue:    signalQueue,
		Store:          store,
		Guard:          guard,
		Exchange:       nil,
		DryRun:         true,
		OrderTimeout:   time.Second,
		MaxSlippagePct: 0.3,
		Logger:         logger,
	})

	return &pipeline{
		scanner:  marketScanner,
		engine:   engine,
		executor: executor,
		guard:    guard,
		store:    store,
	}
}

func (p *pipeline) start(ctx context.Context) {
	p.executor.Start(ctx)
	p.engine.Start(ctx)
	p.scanner.Start(ctx)
}

func (p *pipeline) stop() {
	p.scanner.Close()
	p.engine.Close()
	p.executor.Close()
}

func TestDryRunPipelineOpensArbPosition(t *testing.T) {
	lister := &testutil.MockLister{
		Markets: []*types.RawMarket{{
			ID:              "mkt-binary",
			ConditionID:     "cond-binary",
			Question:        "Will the measure pass?",
			EndDate:         time.Now().UTC().Add(2 * time.Hour),
			Volume:          10000,
			Active:          true,
			AcceptingOrders: true,
			Outcomes:        []string{"Yes", "No"},
			ClobTokenIDs:    []string{"tok-yes", "tok-no"},
		}},
	}
	books := &testutil.MockBooks{Books: map[string]*types.Orderbook{
		"tok-yes": testutil.Book(0.45, 0.449, 1000, 0.22),
		"tok-no":  testutil.Book(0.50, 0.499, 1000, 0.20),
	}}

	p := newPipeline(t, lister, books)
	ctx, cancel := context.WithCancel(context.Background())
	p.start(ctx)

	var pos *types.Position
	require.Eventually(t, func() bool {
		open, err := p.store.OpenPositions(context.Background())
		if err != nil || len(open) == 0 {
			return false
		}
		pos = open[0]
		return true
	}, 3*time.Second, 20*time.Millisecond, "scanner output flows through to an open position")

	cancel()
	p.stop()

	assert.Equal(t, types.StrategyYesNo, pos.Strategy)
	assert.Equal(t, "mkt-binary", pos.MarketID)
	assert.InDelta(t, 0.95, pos.ActualTotalCost, 1e-9)
	assert.InDelta(t, 5.0, pos.ExpectedEdge, 0.1)
	require.Len(t, pos.Orders, 2)
	for _, fill := range pos.Orders {
		assert.Equal(t, "filled", fill.Status)
	}

	assert.Equal(t, 1, p.store.EventCount("dry_run_trade_executed"))

	// The market snapshot was persisted by the scanner too.
	count, err := p.store.CountOpenPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPipelineIgnoresThinMarkets(t *testing.T) {
	lister := &testutil.MockLister{
		Markets: []*types.RawMarket{{
			ID:              "mkt-thin",
			ConditionID:     "cond-thin",
			Question:        "Will anyone trade this?",
			EndDate:         time.Now().UTC().Add(2 * time.Hour),
			Volume:          10, // below the volume floor
			Active:          true,
			AcceptingOrders: true,
			Outcomes:        []string{"Yes", "No"},
			ClobTokenIDs:    []string{"t1", "t2"},
		}},
	}

	p := newPipeline(t, lister, &testutil.MockBooks{})
	ctx, cancel := context.WithCancel(context.Background())
	p.start(ctx)

	time.Sleep(300 * time.Millisecond)

	cancel()
	p.stop()

	count, err := p.store.CountOpenPositions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
