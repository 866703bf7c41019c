package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quantfold/polymarket-bot/internal/testutil"
	"github.com/quantfold/polymarket-bot/pkg/types"
)

// fakeFeed is a canned PriceSource.
type fakeFeed struct {
	history    map[string][]float64
	volatility map[string]float64
}

func (f *fakeFeed) Latest(symbol string) (float64, bool) {
	h := f.history[symbol]
	if len(h) == 0 {
		return 0, false
	}
	return h[len(h)-1], true
}

func (f *fakeFeed) Volatility(symbol string) float64 { return f.volatility[symbol] }
func (f *fakeFeed) History(symbol string) []float64  { return f.history[symbol] }

func newTestEngine(t *testing.T, feed PriceSource) *Engine {
	t.Helper()

	if feed == nil {
		feed = &fakeFeed{}
	}

	return New(Config{
		Feed:                 feed,
		MinArbEdgePct:        2.0,
		MaxArbPositionSize:   100.0,
		MaxLatePositionSize:  75.0,
		MinTimeToClose:       30 * time.Minute,
		MaxSpreadOneOfMany:   2.0,
		MaxSpreadYesNo:       1.5,
		MaxSpreadLateMarket:  1.0,
		LateWindowStart:      180 * time.Second,
		LateWindowEnd:        60 * time.Second,
		LateMinDeviationPct:  0.05,
		LateMaxVolatilityPct: 1.5,
		LateMaxPrice:         0.95,
		EnableOneOfMany:      true,
		EnableYesNo:          true,
		EnableLateMarket:     true,
		Logger:               zaptest.NewLogger(t),
	})
}

func TestBinaryArbHappyPath(t *testing.T) {
	e := newTestEngine(t, nil)

	snap := testutil.BinarySnapshot("btc-100k", [2]string{"Yes", "No"},
		[2]*types.Orderbook{
			testutil.Book(0.45, 0.449, 1000, 0.22),
			testutil.Book(0.50, 0.499, 1000, 0.20),
		}, 2*time.Hour)

	signals := e.process(snap)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, types.StrategyYesNo, sig.Strategy)
	assert.InDelta(t, 0.95, sig.TotalCost, 1e-9)
	assert.InDelta(t, 5.0, sig.ExpectedEdge, 0.1)
	assert.Equal(t, 1.0, sig.ExpectedPayout)
	assert.Len(t, sig.PositionID, 16)

	require.Len(t, sig.Legs, 2)
	assert.Equal(t, 50.0, sig.Legs[0].SizeUSD)
	assert.Equal(t, 50.0, sig.Legs[1].SizeUSD)
	assert.InDelta(t, 111.11, sig.Legs[0].SizeTokens, 0.01)
	assert.InDelta(t, 100.0, sig.Legs[1].SizeTokens, 0.01)
}

func TestBinaryArbPairRules(t *testing.T) {
	tests := []struct {
		name  string
		names [2]string
		want  bool
	}{
		{"yes/no", [2]string{"Yes", "No"}, true},
		{"no/yes order-insensitive", [2]string{"No", "Yes"}, true},
		{"up/down", [2]string{"Up", "Down"}, true},
		{"non-binary names", [2]string{"Candidate A", "Candidate B"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, nil)
			snap := testutil.BinarySnapshot("m", tt.names,
				[2]*types.Orderbook{
					testutil.Book(0.45, 0.449, 1000, 0.22),
					testutil.Book(0.50, 0.499, 1000, 0.20),
				}, 2*time.Hour)

			sig := e.detectYesNo(snap)
			assert.Equal(t, tt.want, sig != nil)
		})
	}
}

func TestBinaryArbRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.MarketSnapshot)
	}{
		{
			name: "edge below threshold",
			mutate: func(s *types.MarketSnapshot) {
				s.Outcomes[0].Book = testutil.Book(0.49, 0.489, 1000, 0.2)
				s.Outcomes[1].Book = testutil.Book(0.50, 0.499, 1000, 0.2)
			},
		},
		{
			name: "spread too wide",
			mutate: func(s *types.MarketSnapshot) {
				s.Outcomes[0].Book = testutil.Book(0.45, 0.40, 1000, 11.1)
			},
		},
		{
			name: "missing ask side",
			mutate: func(s *types.MarketSnapshot) {
				s.Outcomes[0].Book = &types.Orderbook{}
			},
		},
		{
			name: "insufficient depth",
			mutate: func(s *types.MarketSnapshot) {
				s.Outcomes[0].Book = testutil.Book(0.45, 0.449, 10, 0.22)
			},
		},
		{
			name: "expiring too soon",
			mutate: func(s *types.MarketSnapshot) {
				s.ExpiresAt = time.Now().UTC().Add(30*time.Minute - 2*time.Second)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, nil)
			snap := testutil.BinarySnapshot("m", [2]string{"Yes", "No"},
				[2]*types.Orderbook{
					testutil.Book(0.45, 0.449, 1000, 0.22),
					testutil.Book(0.50, 0.499, 1000, 0.20),
				}, 2*time.Hour)
			tt.mutate(snap)

			assert.Nil(t, e.detectYesNo(snap))
		})
	}
}

func TestTimeToCloseBoundaryPasses(t *testing.T) {
	e := newTestEngine(t, nil)

	snap := testutil.BinarySnapshot("m", [2]string{"Yes", "No"},
		[2]*types.Orderbook{
			testutil.Book(0.45, 0.449, 1000, 0.22),
			testutil.Book(0.50, 0.499, 1000, 0.20),
		}, 30*time.Minute+2*time.Second)

	assert.NotNil(t, e.detectYesNo(snap))
}

func TestFourOutcomeArb(t *testing.T) {
	e := newTestEngine(t, nil)

	snap := &types.MarketSnapshot{
		MarketID:  "election",
		Question:  "Who wins?",
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
		Outcomes: []types.OutcomeBook{
			{Name: "A", TokenID: "t1", Book: testutil.Book(0.22, 0.21, 500, 0.5)},
			{Name: "B", TokenID: "t2", Book: testutil.Book(0.25, 0.24, 500, 0.5)},
			{Name: "C", TokenID: "t3", Book: testutil.Book(0.23, 0.22, 500, 0.5)},
			{Name: "D", TokenID: "t4", Book: testutil.Book(0.24, 0.23, 500, 0.5)},
		},
	}

	signals := e.process(snap)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, types.StrategyOneOfMany, sig.Strategy)
	assert.InDelta(t, 0.94, sig.TotalCost, 1e-9)
	assert.InDelta(t, 6.0, sig.ExpectedEdge, 0.1)

	require.Len(t, sig.Legs, 4)
	for _, leg := range sig.Legs {
		assert.Equal(t, 25.0, leg.SizeUSD)
		assert.InDelta(t, 25.0/leg.Price, leg.SizeTokens, 1e-9)
	}
}

func TestOneOfManyRequiresThreeOutcomes(t *testing.T) {
	e := newTestEngine(t, nil)

	snap := testutil.BinarySnapshot("m", [2]string{"Yes", "No"},
		[2]*types.Orderbook{
			testutil.Book(0.45, 0.449, 1000, 0.22),
			testutil.Book(0.50, 0.499, 1000, 0.20),
		}, 2*time.Hour)

	assert.Nil(t, e.detectOneOfMany(snap))
}

func lateSnapshot(upBook, downBook *types.Orderbook, expiresIn time.Duration) *types.MarketSnapshot {
	snap := testutil.BinarySnapshot("btc-5m", [2]string{"Up", "Down"},
		[2]*types.Orderbook{upBook, downBook}, expiresIn)
	snap.IsLateCandidate = true
	snap.Symbol = "btcusdt"
	return snap
}

func rampFeed(from, to float64, ticks int, volatility float64) *fakeFeed {
	history := make([]float64, ticks)
	for i := 0; i < ticks; i++ {
		history[i] = from + (to-from)*float64(i)/float64(ticks-1)
	}
	return &fakeFeed{
		history:    map[string][]float64{"btcusdt": history},
		volatility: map[string]float64{"btcusdt": volatility},
	}
}

func TestLateMarketUpSignal(t *testing.T) {
	feed := rampFeed(97000, 97500, 30, 0.03)
	e := newTestEngine(t, feed)

	snap := lateSnapshot(
		testutil.Book(0.55, 0.549, 500, 0.18),
		testutil.Book(0.46, 0.459, 500, 0.20),
		120*time.Second)

	signals := e.process(snap)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, types.StrategyLateMarket, sig.Strategy)
	require.Len(t, sig.Legs, 1)
	assert.Equal(t, "Up", sig.Legs[0].Outcome)
	assert.Equal(t, 0.55, sig.Legs[0].Price)
	assert.InDelta(t, 75.0/0.55, sig.Legs[0].SizeTokens, 1e-9)
	assert.InDelta(t, 45.0, sig.ExpectedEdge, 0.1)
	assert.Greater(t, sig.SpotChangePct, 0.0)
	assert.Equal(t, 97500.0, sig.SpotPrice)
	assert.InDelta(t, 75.0, sig.TotalCost, 1e-9)
	assert.InDelta(t, 75.0/0.55, sig.ExpectedPayout, 1e-9)
}

func TestLateMarketDownSide(t *testing.T) {
	feed := rampFeed(97500, 97000, 30, 0.03)
	e := newTestEngine(t, feed)

	snap := lateSnapshot(
		testutil.Book(0.46, 0.459, 500, 0.20),
		testutil.Book(0.55, 0.549, 500, 0.18),
		120*time.Second)

	sig := e.detectLateMarket(snap)
	require.NotNil(t, sig)
	assert.Equal(t, "Down", sig.Legs[0].Outcome)
	assert.Less(t, sig.SpotChangePct, 0.0)
}

func TestLateMarketFlatRejection(t *testing.T) {
	feed := &fakeFeed{
		history:    map[string][]float64{"btcusdt": {97000, 97000, 97000, 97000}},
		volatility: map[string]float64{"btcusdt": 0},
	}
	e := newTestEngine(t, feed)

	snap := lateSnapshot(
		testutil.Book(0.55, 0.549, 500, 0.18),
		testutil.Book(0.46, 0.459, 500, 0.20),
		120*time.Second)

	assert.Nil(t, e.detectLateMarket(snap))
}

func TestLateMarketGates(t *testing.T) {
	goodFeed := func() *fakeFeed { return rampFeed(97000, 97500, 30, 0.03) }

	tests := []struct {
		name string
		feed PriceSource
		snap func() *types.MarketSnapshot
	}{
		{
			name: "outside entry window (too early)",
			feed: goodFeed(),
			snap: func() *types.MarketSnapshot {
				return lateSnapshot(
					testutil.Book(0.55, 0.549, 500, 0.18),
					testutil.Book(0.46, 0.459, 500, 0.20),
					250*time.Second)
			},
		},
		{
			name: "outside entry window (too late)",
			feed: goodFeed(),
			snap: func() *types.MarketSnapshot {
				return lateSnapshot(
					testutil.Book(0.55, 0.549, 500, 0.18),
					testutil.Book(0.46, 0.459, 500, 0.20),
					30*time.Second)
			},
		},
		{
			name: "no spot price",
			feed: &fakeFeed{},
			snap: func() *types.MarketSnapshot {
				return lateSnapshot(
					testutil.Book(0.55, 0.549, 500, 0.18),
					testutil.Book(0.46, 0.459, 500, 0.20),
					120*time.Second)
			},
		},
		{
			name: "volatility above cap",
			feed: rampFeed(97000, 97500, 30, 1.6),
			snap: func() *types.MarketSnapshot {
				return lateSnapshot(
					testutil.Book(0.55, 0.549, 500, 0.18),
					testutil.Book(0.46, 0.459, 500, 0.20),
					120*time.Second)
			},
		},
		{
			name: "entry price above cap",
			feed: goodFeed(),
			snap: func() *types.MarketSnapshot {
				return lateSnapshot(
					testutil.Book(0.951, 0.95, 500, 0.1),
					testutil.Book(0.05, 0.049, 500, 0.1),
					120*time.Second)
			},
		},
		{
			name: "spread above cap",
			feed: goodFeed(),
			snap: func() *types.MarketSnapshot {
				return lateSnapshot(
					testutil.Book(0.55, 0.50, 500, 9.1),
					testutil.Book(0.46, 0.459, 500, 0.20),
					120*time.Second)
			},
		},
		{
			name: "insufficient depth for budget",
			feed: goodFeed(),
			snap: func() *types.MarketSnapshot {
				return lateSnapshot(
					testutil.Book(0.55, 0.549, 10, 0.18),
					testutil.Book(0.46, 0.459, 500, 0.20),
					120*time.Second)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.feed)
			assert.Nil(t, e.detectLateMarket(tt.snap()))
		})
	}
}

func TestLateMarketPriceCapBoundaryAccepted(t *testing.T) {
	e := newTestEngine(t, rampFeed(97000, 97500, 30, 0.03))

	snap := lateSnapshot(
		testutil.Book(0.95, 0.949, 500, 0.1),
		testutil.Book(0.05, 0.049, 500, 0.1),
		120*time.Second)

	assert.NotNil(t, e.detectLateMarket(snap))
}

func TestLateMarketDeduplication(t *testing.T) {
	feed := rampFeed(97000, 97500, 30, 0.03)
	e := newTestEngine(t, feed)

	makeSnap := func() *types.MarketSnapshot {
		return lateSnapshot(
			testutil.Book(0.55, 0.549, 500, 0.18),
			testutil.Book(0.46, 0.459, 500, 0.20),
			120*time.Second)
	}

	require.NotNil(t, e.detectLateMarket(makeSnap()))
	assert.Nil(t, e.detectLateMarket(makeSnap()), "second emission for the same market suppressed")

	e.clearDedup("test")
	assert.NotNil(t, e.detectLateMarket(makeSnap()), "re-qualifies after the dedup set clears")
}

func TestDedupClearsAfterProcessedInterval(t *testing.T) {
	e := newTestEngine(t, rampFeed(97000, 97500, 30, 0.03))

	snap := lateSnapshot(
		testutil.Book(0.55, 0.549, 500, 0.18),
		testutil.Book(0.46, 0.459, 500, 0.20),
		120*time.Second)

	require.Len(t, e.process(snap), 1)
	assert.Empty(t, e.process(snap))

	// Feed enough unrelated snapshots to hit the clear interval.
	filler := testutil.BinarySnapshot("noise", [2]string{"Yes", "No"},
		[2]*types.Orderbook{{}, {}}, 2*time.Hour)
	for i := 0; i < dedupClearInterval; i++ {
		e.process(filler)
	}

	assert.Len(t, e.process(snap), 1)
}

func TestLateOnlyGate(t *testing.T) {
	e := newTestEngine(t, nil)
	e.cfg.LateMarketOnly = true

	snap := testutil.BinarySnapshot("arb", [2]string{"Yes", "No"},
		[2]*types.Orderbook{
			testutil.Book(0.45, 0.449, 1000, 0.22),
			testutil.Book(0.50, 0.499, 1000, 0.20),
		}, 2*time.Hour)

	assert.Empty(t, e.process(snap), "non-late snapshots rejected before detectors")
}

func TestPositionIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newPositionID("mkt", types.StrategyYesNo)
		assert.Len(t, id, 16)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
