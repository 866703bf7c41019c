// Package risk gates every trade signal before execution and owns the
// sticky trading halt.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/internal/storage"
	"github.com/quantfold/polymarket-bot/pkg/alerts"
	"github.com/quantfold/polymarket-bot/pkg/types"
)

// costTolerance absorbs float noise when a signal's cost sits exactly
// on its per-strategy cap.
const costTolerance = 1e-6

// RejectionError is returned by Validate when a signal fails a check.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("signal rejected: %s", e.Reason)
}

// Config holds risk guard configuration.
type Config struct {
	Store  storage.Store
	Alerts *alerts.Notifier

	MaxArbPositionSize  float64
	MaxLatePositionSize float64
	MaxOpenPositions    int
	MaxDailyExposure    float64
	DailyLossHaltAmount float64
	MaxConsecutiveFails int

	Logger *zap.Logger
}

// Guard validates signals against position, exposure, and loss limits.
// Once halted it stays halted until an operator calls Resume.
type Guard struct {
	cfg    Config
	logger *zap.Logger

	mu                  sync.Mutex
	halted              bool
	haltReason          string
	consecutiveFailures int
}

// New creates a risk guard.
func New(cfg Config) *Guard {
	return &Guard{cfg: cfg, logger: cfg.Logger}
}

// Validate runs the pre-trade checks in order and returns a
// *RejectionError naming the first one that fails.
func (g *Guard) Validate(ctx context.Context, sig *types.TradeSignal) error {
	g.mu.Lock()
	halted, reason := g.halted, g.haltReason
	g.mu.Unlock()

	if halted {
		return g.reject(sig, fmt.Sprintf("trading halted: %s", reason))
	}

	sizeCap := g.cfg.MaxArbPositionSize
	if sig.Strategy == types.StrategyLateMarket {
		sizeCap = g.cfg.MaxLatePositionSize
	}
	if sig.TotalCost > sizeCap+costTolerance {
		return g.reject(sig, fmt.Sprintf("position size %.2f exceeds cap %.2f", sig.TotalCost, sizeCap))
	}

	openCount, err := g.cfg.Store.CountOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("counting open positions: %w", err)
	}
	if openCount >= g.cfg.MaxOpenPositions {
		return g.reject(sig, fmt.Sprintf("open position limit reached (%d)", openCount))
	}

	exposure, err := g.cfg.Store.TotalOpenExposure(ctx)
	if err != nil {
		return fmt.Errorf("reading open exposure: %w", err)
	}
	if exposure+sig.TotalCost > g.cfg.MaxDailyExposure+costTolerance {
		return g.reject(sig, fmt.Sprintf("exposure %.2f + cost %.2f exceeds daily limit %.2f",
			exposure, sig.TotalCost, g.cfg.MaxDailyExposure))
	}

	today, err := g.cfg.Store.DailyPnL(ctx, time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("reading daily pnl: %w", err)
	}
	if today.TotalPnL < -g.cfg.DailyLossHaltAmount {
		g.halt(ctx, "daily loss exceeded")
		return g.reject(sig, "daily loss exceeded")
	}

	ValidationsTotal.WithLabelValues("accepted").Inc()
	return nil
}

func (g *Guard) reject(sig *types.TradeSignal, reason string) error {
	ValidationsTotal.WithLabelValues("rejected").Inc()
	g.logger.Warn("signal-rejected",
		zap.String("position-id", sig.PositionID),
		zap.String("strategy", string(sig.Strategy)),
		zap.String("reason", reason))
	return &RejectionError{Reason: reason}
}

// RecordResult tracks the outcome of an execution attempt. Three
// consecutive failures trigger a halt; any success resets the streak.
func (g *Guard) RecordResult(ctx context.Context, success bool) {
	g.mu.Lock()
	if success {
		g.consecutiveFailures = 0
		g.mu.Unlock()
		ConsecutiveFailuresGauge.Set(0)
		return
	}

	g.consecutiveFailures++
	failures := g.consecutiveFailures
	g.mu.Unlock()

	ConsecutiveFailuresGauge.Set(float64(failures))
	if failures >= g.cfg.MaxConsecutiveFails {
		g.halt(ctx, fmt.Sprintf("%d consecutive trade failures", failures))
	}
}

func (g *Guard) halt(ctx context.Context, reason string) {
	g.mu.Lock()
	if g.halted {
		g.mu.Unlock()
		return
	}
	g.halted = true
	g.haltReason = reason
	g.mu.Unlock()

	HaltedGauge.Set(1)
	g.logger.Error("trading-halted", zap.String("reason", reason))

	if err := g.cfg.Store.LogEvent(ctx, "error", "trading_halted",
		map[string]interface{}{"reason": reason}); err != nil {
		g.logger.Warn("halt-event-log-failed", zap.Error(err))
	}
	if g.cfg.Alerts != nil {
		g.cfg.Alerts.NotifyHalt(ctx, reason)
	}
}

// Halted reports whether trading is halted and why.
func (g *Guard) Halted() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted, g.haltReason
}

// Resume lifts the halt and resets the failure streak. Operator action
// through the dashboard.
func (g *Guard) Resume() {
	g.mu.Lock()
	wasHalted := g.halted
	g.halted = false
	g.haltReason = ""
	g.consecutiveFailures = 0
	g.mu.Unlock()

	HaltedGauge.Set(0)
	ConsecutiveFailuresGauge.Set(0)
	if wasHalted {
		g.logger.Info("trading-resumed")
	}
}
