// Package resolver settles open positions once their markets resolve:
// it computes realized P&L, closes the position, and maintains the
// daily rollup.
package resolver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/internal/markets"
	"github.com/quantfold/polymarket-bot/internal/storage"
	"github.com/quantfold/polymarket-bot/pkg/alerts"
	"github.com/quantfold/polymarket-bot/pkg/types"
)

// ResolutionSource fetches market resolution state.
type ResolutionSource interface {
	GetMarket(ctx context.Context, conditionID string) (*markets.Resolution, error)
}

// Config holds resolver configuration.
type Config struct {
	Store    storage.Store
	Markets  ResolutionSource
	Alerts   *alerts.Notifier
	Interval time.Duration
	Logger   *zap.Logger
}

// Resolver polls open positions against market resolution state.
type Resolver struct {
	cfg    Config
	logger *zap.Logger
	done   chan struct{}
}

// New creates a new resolver.
func New(cfg Config) *Resolver {
	return &Resolver{cfg: cfg, logger: cfg.Logger, done: make(chan struct{})}
}

// Start launches the resolution loop.
func (r *Resolver) Start(ctx context.Context) {
	r.logger.Info("resolver-starting", zap.Duration("interval", r.cfg.Interval))

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.resolveOnce(ctx)
			}
		}
	}()
}

// Close waits for the resolution loop to exit.
func (r *Resolver) Close() {
	<-r.done
	r.logger.Info("resolver-stopped")
}

func (r *Resolver) resolveOnce(ctx context.Context) {
	open, err := r.cfg.Store.OpenPositions(ctx)
	if err != nil {
		r.logger.Error("open-positions-read-failed", zap.Error(err))
		return
	}

	for _, pos := range open {
		r.resolvePosition(ctx, pos)
	}
}

func (r *Resolver) resolvePosition(ctx context.Context, pos *types.Position) {
	res, err := r.cfg.Markets.GetMarket(ctx, pos.ConditionID)
	if err != nil {
		r.logger.Warn("resolution-fetch-failed",
			zap.String("position-id", pos.PositionID),
			zap.String("condition-id", pos.ConditionID),
			zap.Error(err))
		return
	}

	if !res.IsResolved() {
		return
	}

	winner := res.WinnerName()
	if winner == "" {
		// Resolved but the winner is not published yet; retry next tick.
		r.logger.Debug("winner-not-yet-published",
			zap.String("position-id", pos.PositionID),
			zap.String("condition-id", pos.ConditionID))
		return
	}

	pnl := r.computePnL(pos, winner)

	now := time.Now().UTC()
	pos.Status = types.PositionClosed
	pos.ClosedAt = now
	pos.RealizedPnL = pnl
	pos.Winner = winner

	if err := r.cfg.Store.UpdatePosition(ctx, pos); err != nil {
		r.logger.Error("position-close-failed",
			zap.String("position-id", pos.PositionID), zap.Error(err))
		return
	}

	if err := r.updateRollup(ctx, pos, now); err != nil {
		r.logger.Error("pnl-rollup-update-failed",
			zap.String("position-id", pos.PositionID), zap.Error(err))
	}

	if err := r.cfg.Store.LogEvent(ctx, "info", "position_resolved", map[string]interface{}{
		"position_id":  pos.PositionID,
		"strategy":     string(pos.Strategy),
		"winner":       winner,
		"realized_pnl": pnl,
	}); err != nil {
		r.logger.Warn("event-log-failed", zap.Error(err))
	}

	ResolvedTotal.WithLabelValues(string(pos.Strategy)).Inc()
	RealizedPnLTotal.Add(pnl)

	r.logger.Info("position-resolved",
		zap.String("position-id", pos.PositionID),
		zap.String("strategy", string(pos.Strategy)),
		zap.String("winner", winner),
		zap.Float64("realized-pnl", pnl))

	if r.cfg.Alerts != nil {
		r.cfg.Alerts.NotifyResolution(ctx, pos)
	}
}

// computePnL settles a position against the winning outcome. Each
// winning token redeems for 1 USD; a position holding no winning leg
// loses its full cost.
func (r *Resolver) computePnL(pos *types.Position, winner string) float64 {
	switch pos.Strategy {
	case types.StrategyOneOfMany, types.StrategyYesNo, types.StrategyLateMarket:
		for _, leg := range pos.Legs {
			if strings.EqualFold(strings.TrimSpace(leg.Outcome), strings.TrimSpace(winner)) {
				return leg.SizeTokens*1.0 - pos.ActualTotalCost
			}
		}
		r.logger.Warn("no-leg-matches-winner",
			zap.String("position-id", pos.PositionID),
			zap.String("winner", winner))
		return -pos.ActualTotalCost

	default:
		r.logger.Error("unknown-strategy",
			zap.String("position-id", pos.PositionID),
			zap.String("strategy", string(pos.Strategy)))
		return 0
	}
}

// updateRollup folds a settled position into the day's rollup,
// keyed by the close date.
func (r *Resolver) updateRollup(ctx context.Context, pos *types.Position, closedAt time.Time) error {
	date := closedAt.Format("2006-01-02")

	rollup, err := r.cfg.Store.DailyPnL(ctx, date)
	if err != nil {
		return err
	}
	if rollup.StrategyPnL == nil {
		rollup.StrategyPnL = make(map[string]float64)
	}

	rollup.Date = date
	rollup.TotalPnL += pos.RealizedPnL
	rollup.TotalTrades++
	if pos.RealizedPnL > 0 {
		rollup.WinningTrades++
	}
	rollup.WinRate = float64(rollup.WinningTrades) / float64(rollup.TotalTrades) * 100.0
	rollup.StrategyPnL[string(pos.Strategy)] += pos.RealizedPnL
	rollup.UpdatedAt = closedAt

	return r.cfg.Store.UpsertDailyPnL(ctx, rollup)
}
