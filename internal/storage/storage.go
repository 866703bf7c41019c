// Package storage persists markets, positions, the daily P&L rollup,
// and the append-only event log. Two implementations exist: a
// PostgreSQL document store and an in-memory store for tests and
// credential-less dry runs.
package storage

import (
	"context"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

// Store is the persistence interface shared by the scanner, executor,
// resolver, risk guard, and dashboard.
type Store interface {
	// UpsertMarket stores or refreshes a market snapshot keyed by market ID.
	UpsertMarket(ctx context.Context, snap *types.MarketSnapshot) error

	// CreatePosition inserts a new position record.
	CreatePosition(ctx context.Context, pos *types.Position) error

	// UpdatePosition replaces an existing position record.
	UpdatePosition(ctx context.Context, pos *types.Position) error

	// GetPosition fetches a position by ID. Returns (nil, nil) when absent.
	GetPosition(ctx context.Context, positionID string) (*types.Position, error)

	// OpenPositions returns all positions with status "open",
	// most recently opened first.
	OpenPositions(ctx context.Context) ([]*types.Position, error)

	// RecentPositions returns the most recently opened positions in any
	// state, up to limit.
	RecentPositions(ctx context.Context, limit int) ([]*types.Position, error)

	// CountOpenPositions returns the number of open positions.
	CountOpenPositions(ctx context.Context) (int, error)

	// TotalOpenExposure returns the sum of actual_total_cost across open
	// positions.
	TotalOpenExposure(ctx context.Context) (float64, error)

	// DailyPnL fetches the rollup for an ISO date (YYYY-MM-DD).
	// Returns a zero-valued rollup when absent.
	DailyPnL(ctx context.Context, date string) (*types.DailyPnL, error)

	// UpsertDailyPnL stores or replaces the rollup for its date.
	UpsertDailyPnL(ctx context.Context, pnl *types.DailyPnL) error

	// LogEvent appends to the event log.
	LogEvent(ctx context.Context, level, eventType string, details map[string]interface{}) error

	// Close releases the underlying connection.
	Close() error
}
