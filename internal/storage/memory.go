package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

// MemoryStore is an in-process Store used for tests and dry runs
// without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	markets   map[string]*types.MarketSnapshot
	positions map[string]*types.Position
	pnl       map[string]*types.DailyPnL
	events    []memoryEvent
	logger    *zap.Logger
}

type memoryEvent struct {
	Timestamp time.Time
	Level     string
	EventType string
	Details   map[string]interface{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		markets:   make(map[string]*types.MarketSnapshot),
		positions: make(map[string]*types.Position),
		pnl:       make(map[string]*types.DailyPnL),
		logger:    logger,
	}
}

// UpsertMarket stores or refreshes a market snapshot.
func (m *MemoryStore) UpsertMarket(_ context.Context, snap *types.MarketSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *snap
	m.markets[snap.MarketID] = &cp
	return nil
}

// CreatePosition inserts a new position record.
func (m *MemoryStore) CreatePosition(_ context.Context, pos *types.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *pos
	m.positions[pos.PositionID] = &cp
	return nil
}

// UpdatePosition replaces an existing position record.
func (m *MemoryStore) UpdatePosition(_ context.Context, pos *types.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *pos
	m.positions[pos.PositionID] = &cp
	return nil
}

// GetPosition fetches a position by ID.
func (m *MemoryStore) GetPosition(_ context.Context, positionID string) (*types.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[positionID]
	if !ok {
		return nil, nil
	}
	cp := *pos
	return &cp, nil
}

// OpenPositions returns all open positions, most recently opened first.
func (m *MemoryStore) OpenPositions(_ context.Context) ([]*types.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Position
	for _, pos := range m.positions {
		if pos.Status == types.PositionOpen {
			cp := *pos
			out = append(out, &cp)
		}
	}
	sortByOpenedAtDesc(out)
	return out, nil
}

// RecentPositions returns the most recently opened positions.
func (m *MemoryStore) RecentPositions(_ context.Context, limit int) ([]*types.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		cp := *pos
		out = append(out, &cp)
	}
	sortByOpenedAtDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountOpenPositions returns the number of open positions.
func (m *MemoryStore) CountOpenPositions(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, pos := range m.positions {
		if pos.Status == types.PositionOpen {
			count++
		}
	}
	return count, nil
}

// TotalOpenExposure returns the sum of actual_total_cost across open
// positions.
func (m *MemoryStore) TotalOpenExposure(_ context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total float64
	for _, pos := range m.positions {
		if pos.Status == types.PositionOpen {
			total += pos.ActualTotalCost
		}
	}
	return total, nil
}

// DailyPnL fetches the rollup for an ISO date, zero-valued when absent.
func (m *MemoryStore) DailyPnL(_ context.Context, date string) (*types.DailyPnL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pnl, ok := m.pnl[date]
	if !ok {
		return &types.DailyPnL{Date: date, StrategyPnL: make(map[string]float64)}, nil
	}

	cp := *pnl
	cp.StrategyPnL = make(map[string]float64, len(pnl.StrategyPnL))
	for k, v := range pnl.StrategyPnL {
		cp.StrategyPnL[k] = v
	}
	return &cp, nil
}

// UpsertDailyPnL stores or replaces the rollup for its date.
func (m *MemoryStore) UpsertDailyPnL(_ context.Context, pnl *types.DailyPnL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *pnl
	cp.StrategyPnL = make(map[string]float64, len(pnl.StrategyPnL))
	for k, v := range pnl.StrategyPnL {
		cp.StrategyPnL[k] = v
	}
	m.pnl[pnl.Date] = &cp
	return nil
}

// LogEvent appends to the event log.
func (m *MemoryStore) LogEvent(_ context.Context, level, eventType string, details map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, memoryEvent{
		Timestamp: time.Now().UTC(),
		Level:     level,
		EventType: eventType,
		Details:   details,
	})
	return nil
}

// EventCount returns the number of logged events of a given type.
// Used by tests.
func (m *MemoryStore) EventCount(eventType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.events {
		if e.EventType == eventType {
			count++
		}
	}
	return count
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	m.logger.Info("closing-memory-store")
	return nil
}

func sortByOpenedAtDesc(positions []*types.Position) {
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].OpenedAt.After(positions[j].OpenedAt)
	})
}
