// Package scanner discovers tradable markets with a dual-loop design:
// a slow broad scan feeding arbitrage detection, plus a watch-list
// feeder and sub-second hot loop for markets approaching expiry.
package scanner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/internal/storage"
	"github.com/quantfold/polymarket-bot/pkg/cache"
	"github.com/quantfold/polymarket-bot/pkg/types"
)

const (
	marketListLimit = 100
	enqueueGrace    = 200 * time.Millisecond
	upsertCacheTTL  = 5 * time.Minute
)

// MarketLister lists active markets from the metadata API.
type MarketLister interface {
	ListMarkets(ctx context.Context, minVolume float64, limit int) ([]*types.RawMarket, error)
}

// BookFetcher fetches a normalized orderbook for a token.
type BookFetcher interface {
	Orderbook(ctx context.Context, tokenID string) *types.Orderbook
}

// Config holds scanner configuration.
type Config struct {
	Lister MarketLister
	Books  BookFetcher
	Store  storage.Store
	Cache  cache.Cache
	Queue  chan<- *types.MarketSnapshot

	ScannerInterval  time.Duration
	FeederInterval   time.Duration
	HotLoopInterval  time.Duration
	WatchlistHorizon time.Duration
	MinMarketVolume  float64
	MinTimeToClose   time.Duration
	LateWindowStart  time.Duration
	LateWindowEnd    time.Duration
	EnableLateMarket bool

	Logger *zap.Logger
}

// Scanner runs the discovery loops and owns the watch-list map.
type Scanner struct {
	cfg    Config
	logger *zap.Logger

	watchMu   sync.RWMutex
	watchlist map[string]*types.MarketSnapshot

	wg sync.WaitGroup
}

// New creates a new scanner.
func New(cfg Config) *Scanner {
	return &Scanner{
		cfg:       cfg,
		logger:    cfg.Logger,
		watchlist: make(map[string]*types.MarketSnapshot),
	}
}

// Start launches the scan loops. They stop when ctx is cancelled.
func (s *Scanner) Start(ctx context.Context) {
	s.logger.Info("scanner-starting",
		zap.Duration("scan-interval", s.cfg.ScannerInterval),
		zap.Bool("late-market", s.cfg.EnableLateMarket))

	s.wg.Add(1)
	go s.arbScanLoop(ctx)

	if s.cfg.EnableLateMarket {
		s.wg.Add(2)
		go s.feederLoop(ctx)
		go s.hotLoop(ctx)
	}
}

// Close waits for the scan loops to exit.
func (s *Scanner) Close() {
	s.wg.Wait()
	s.logger.Info("scanner-stopped")
}

// WatchlistSize returns the current watch-list size.
func (s *Scanner) WatchlistSize() int {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()
	return len(s.watchlist)
}

// arbScanLoop performs the broad market scan on a fixed cadence.
func (s *Scanner) arbScanLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ScannerInterval)
	defer ticker.Stop()

	s.scanOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context) {
	markets, err := s.cfg.Lister.ListMarkets(ctx, s.cfg.MinMarketVolume, marketListLimit)
	if err != nil {
		s.logger.Warn("market-scan-failed", zap.Error(err))
		return
	}

	MarketsScannedTotal.Add(float64(len(markets)))

	enqueued := 0
	for _, m := range markets {
		select {
		case <-ctx.Done():
			return
		default:
		}

		snap := s.buildSnapshot(ctx, m)
		if snap == nil {
			continue
		}

		s.upsertMarket(ctx, snap)

		if s.enqueue(ctx, snap) {
			enqueued++
		}
	}

	s.logger.Debug("scan-complete",
		zap.Int("listed", len(markets)),
		zap.Int("enqueued", enqueued))
}

// passesBasicFilters applies the cheap pre-enrichment gates.
func (s *Scanner) passesBasicFilters(m *types.RawMarket, now time.Time) bool {
	if !m.Active || m.Closed {
		return false
	}
	if m.Volume < s.cfg.MinMarketVolume {
		return false
	}
	if m.EndDate.IsZero() {
		return false
	}
	if m.EndDate.Sub(now) < s.cfg.MinTimeToClose {
		return false
	}
	if len(m.Outcomes) < 2 {
		return false
	}
	return true
}

// buildSnapshot filters and enriches a raw market into a snapshot.
// Returns nil when the market is filtered out or malformed.
func (s *Scanner) buildSnapshot(ctx context.Context, m *types.RawMarket) *types.MarketSnapshot {
	if !s.passesBasicFilters(m, time.Now().UTC()) {
		return nil
	}

	if len(m.Outcomes) != len(m.ClobTokenIDs) {
		s.logger.Debug("market-malformed",
			zap.String("market-id", m.ID),
			zap.Int("outcomes", len(m.Outcomes)),
			zap.Int("token-ids", len(m.ClobTokenIDs)))
		return nil
	}

	symbol := SymbolFor(m.Question)

	snap := &types.MarketSnapshot{
		MarketID:        m.ID,
		ConditionID:     m.ConditionID,
		Question:        m.Question,
		ExpiresAt:       m.EndDate,
		Volume:          m.Volume,
		Liquidity:       m.Liquidity,
		NegRisk:         m.NegRisk,
		IsLateCandidate: symbol != "",
		Symbol:          symbol,
		AcceptingOrders: m.AcceptingOrders,
		Active:          m.Active,
		Outcomes:        make([]types.OutcomeBook, 0, len(m.Outcomes)),
	}

	for i, name := range m.Outcomes {
		tokenID := m.ClobTokenIDs[i]
		book := s.cfg.Books.Orderbook(ctx, tokenID)
		if book == nil {
			// Empty book; detectors will skip outcomes without asks.
			book = &types.Orderbook{}
		}
		snap.Outcomes = append(snap.Outcomes, types.OutcomeBook{
			Name:    name,
			TokenID: tokenID,
			Book:    book,
		})
	}

	return snap
}

// upsertMarket persists a snapshot, throttled through the metadata
// cache so an unchanged market is written at most once per TTL.
func (s *Scanner) upsertMarket(ctx context.Context, snap *types.MarketSnapshot) {
	key := "market:" + snap.MarketID
	if _, cached := s.cfg.Cache.Get(key); cached {
		return
	}

	if err := s.cfg.Store.UpsertMarket(ctx, snap); err != nil {
		s.logger.Warn("market-upsert-failed",
			zap.String("market-id", snap.MarketID),
			zap.Error(err))
		return
	}

	s.cfg.Cache.Set(key, struct{}{}, upsertCacheTTL)
}

// enqueue pushes a snapshot onto the market queue. On a full queue it
// blocks for a short grace window, then drops the snapshot and warns.
func (s *Scanner) enqueue(ctx context.Context, snap *types.MarketSnapshot) bool {
	select {
	case s.cfg.Queue <- snap:
		SnapshotsEnqueuedTotal.Inc()
		return true
	default:
	}

	timer := time.NewTimer(enqueueGrace)
	defer timer.Stop()

	select {
	case s.cfg.Queue <- snap:
		SnapshotsEnqueuedTotal.Inc()
		return true
	case <-timer.C:
		SnapshotsDroppedTotal.Inc()
		s.logger.Warn("market-queue-full",
			zap.String("market-id", snap.MarketID))
		return false
	case <-ctx.Done():
		return false
	}
}

// feederLoop maintains the watch-list of late-market candidates whose
// expiry is inside the horizon.
func (s *Scanner) feederLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FeederInterval)
	defer ticker.Stop()

	s.feedOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.feedOnce(ctx)
		}
	}
}

func (s *Scanner) feedOnce(ctx context.Context) {
	markets, err := s.cfg.Lister.ListMarkets(ctx, 0, marketListLimit)
	if err != nil {
		s.logger.Warn("watchlist-scan-failed", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	inHorizon := make(map[string]bool)

	for _, m := range markets {
		if !IsLateCandidate(m.Question) {
			continue
		}
		ttc := m.EndDate.Sub(now)
		if ttc <= 0 || ttc > s.cfg.WatchlistHorizon {
			continue
		}

		inHorizon[m.ID] = true

		s.watchMu.RLock()
		_, known := s.watchlist[m.ID]
		s.watchMu.RUnlock()
		if known {
			continue
		}

		snap := s.enrichWatchlistEntry(ctx, m)
		if snap == nil {
			continue
		}

		s.watchMu.Lock()
		s.watchlist[m.ID] = snap
		size := len(s.watchlist)
		s.watchMu.Unlock()
		WatchlistSize.Set(float64(size))

		s.logger.Info("watchlist-added",
			zap.String("market-id", m.ID),
			zap.String("question", m.Question),
			zap.Duration("time-to-close", ttc))
	}

	// Prune markets that expired or left the horizon.
	s.watchMu.Lock()
	for id := range s.watchlist {
		if !inHorizon[id] {
			delete(s.watchlist, id)
			s.logger.Debug("watchlist-removed", zap.String("market-id", id))
		}
	}
	WatchlistSize.Set(float64(len(s.watchlist)))
	s.watchMu.Unlock()
}

// enrichWatchlistEntry builds a watch-list snapshot without the broad
// scan's volume and time-to-close gates; the hot loop applies the
// entry window itself.
func (s *Scanner) enrichWatchlistEntry(ctx context.Context, m *types.RawMarket) *types.MarketSnapshot {
	if len(m.Outcomes) < 2 || len(m.Outcomes) != len(m.ClobTokenIDs) {
		s.logger.Debug("watchlist-malformed", zap.String("market-id", m.ID))
		return nil
	}

	symbol := SymbolFor(m.Question)

	snap := &types.MarketSnapshot{
		MarketID:        m.ID,
		ConditionID:     m.ConditionID,
		Question:        m.Question,
		ExpiresAt:       m.EndDate,
		Volume:          m.Volume,
		Liquidity:       m.Liquidity,
		NegRisk:         m.NegRisk,
		IsLateCandidate: true,
		Symbol:          symbol,
		AcceptingOrders: m.AcceptingOrders,
		Active:          m.Active,
		Outcomes:        make([]types.OutcomeBook, 0, len(m.Outcomes)),
	}

	for i, name := range m.Outcomes {
		tokenID := m.ClobTokenIDs[i]
		book := s.cfg.Books.Orderbook(ctx, tokenID)
		if book == nil {
			book = &types.Orderbook{}
		}
		snap.Outcomes = append(snap.Outcomes, types.OutcomeBook{
			Name:    name,
			TokenID: tokenID,
			Book:    book,
		})
	}

	return snap
}

// hotLoop re-prices watch-list markets inside the entry window. It
// never calls the metadata endpoint; only the orderbook endpoint, so
// its cost per tick is bounded by watchlist_size * outcomes_per_market.
func (s *Scanner) hotLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HotLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hotTick(ctx)
		}
	}
}

func (s *Scanner) hotTick(ctx context.Context) {
	s.watchMu.RLock()
	watched := make([]*types.MarketSnapshot, 0, len(s.watchlist))
	for _, snap := range s.watchlist {
		watched = append(watched, snap)
	}
	s.watchMu.RUnlock()

	now := time.Now().UTC()

	for _, snap := range watched {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ttc := snap.TimeToClose(now)
		if ttc <= 0 {
			s.watchMu.Lock()
			delete(s.watchlist, snap.MarketID)
			WatchlistSize.Set(float64(len(s.watchlist)))
			s.watchMu.Unlock()
			continue
		}

		if ttc < s.cfg.LateWindowEnd || ttc > s.cfg.LateWindowStart {
			continue
		}

		fresh := s.refreshBooks(ctx, snap)
		s.enqueue(ctx, fresh)
	}
}

// refreshBooks returns a copy of the snapshot with freshly fetched
// orderbooks.
func (s *Scanner) refreshBooks(ctx context.Context, snap *types.MarketSnapshot) *types.MarketSnapshot {
	fresh := *snap
	fresh.Outcomes = make([]types.OutcomeBook, 0, len(snap.Outcomes))

	for _, o := range snap.Outcomes {
		book := s.cfg.Books.Orderbook(ctx, o.TokenID)
		if book == nil {
			book = &types.Orderbook{}
		}
		fresh.Outcomes = append(fresh.Outcomes, types.OutcomeBook{
			Name:    o.Name,
			TokenID: o.TokenID,
			Book:    book,
		})
	}

	return &fresh
}
