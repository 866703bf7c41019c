// Package signal consumes market snapshots and runs the three
// strategy detectors: one-of-many arbitrage, binary arbitrage, and
// late-market directional.
package signal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

const (
	enqueueGrace       = 200 * time.Millisecond
	dedupClearInterval = 200 // processed snapshots
	dedupIdleTimeout   = 30 * time.Second
)

// PriceSource exposes the spot-feed reads used by the late-market
// detector.
type PriceSource interface {
	Latest(symbol string) (float64, bool)
	Volatility(symbol string) float64
	History(symbol string) []float64
}

// Config holds signal engine configuration.
type Config struct {
	Feed        PriceSource
	MarketQueue <-chan *types.MarketSnapshot
	SignalQueue chan<- *types.TradeSignal

	MinArbEdgePct       float64
	MaxArbPositionSize  float64
	MaxLatePositionSize float64
	MinTimeToClose      time.Duration

	MaxSpreadOneOfMany  float64
	MaxSpreadYesNo      float64
	MaxSpreadLateMarket float64

	LateWindowStart      time.Duration
	LateWindowEnd        time.Duration
	LateMinDeviationPct  float64
	LateMaxVolatilityPct float64
	LateMaxPrice         float64

	EnableOneOfMany  bool
	EnableYesNo      bool
	EnableLateMarket bool
	LateMarketOnly   bool

	Logger *zap.Logger
}

// Engine runs the detectors over the market queue and emits trade
// signals.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	// Late-market dedup: markets the late detector already fired for.
	// Cleared every dedupClearInterval snapshots or after an idle
	// timeout, so a persisting market can re-qualify in a later window.
	lateEmitted    map[string]struct{}
	processedCount int

	done chan struct{}
}

// New creates a new signal engine.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:         cfg,
		logger:      cfg.Logger,
		lateEmitted: make(map[string]struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the consume loop.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("signal-engine-starting",
		zap.Bool("one-of-many", e.cfg.EnableOneOfMany),
		zap.Bool("yes-no", e.cfg.EnableYesNo),
		zap.Bool("late-market", e.cfg.EnableLateMarket),
		zap.Bool("late-only", e.cfg.LateMarketOnly))

	go e.run(ctx)
}

// Close waits for the consume loop to exit.
func (e *Engine) Close() {
	<-e.done
	e.logger.Info("signal-engine-stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	idle := time.NewTimer(dedupIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-idle.C:
			e.clearDedup("idle")
			idle.Reset(dedupIdleTimeout)

		case snap, ok := <-e.cfg.MarketQueue:
			if !ok {
				return
			}

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(dedupIdleTimeout)

			for _, sig := range e.process(snap) {
				e.emit(ctx, sig)
			}
		}
	}
}

// process runs the detectors in fixed order and returns at most one
// signal per detector.
func (e *Engine) process(snap *types.MarketSnapshot) []*types.TradeSignal {
	SnapshotsProcessedTotal.Inc()

	e.processedCount++
	if e.processedCount >= dedupClearInterval {
		e.clearDedup("interval")
	}

	if e.cfg.LateMarketOnly && !snap.IsLateCandidate {
		return nil
	}

	var signals []*types.TradeSignal
	if sig := e.detectOneOfMany(snap); sig != nil {
		signals = append(signals, sig)
	}
	if sig := e.detectYesNo(snap); sig != nil {
		signals = append(signals, sig)
	}
	if sig := e.detectLateMarket(snap); sig != nil {
		signals = append(signals, sig)
	}
	return signals
}

func (e *Engine) clearDedup(cause string) {
	if len(e.lateEmitted) > 0 {
		e.logger.Debug("late-dedup-cleared",
			zap.Int("entries", len(e.lateEmitted)),
			zap.String("cause", cause))
	}
	e.lateEmitted = make(map[string]struct{})
	e.processedCount = 0
}

// emit pushes a signal onto the signal queue with the same
// block-then-drop policy as the market queue.
func (e *Engine) emit(ctx context.Context, sig *types.TradeSignal) {
	e.logger.Info("signal-detected",
		zap.String("strategy", string(sig.Strategy)),
		zap.String("market-id", sig.MarketID),
		zap.String("position-id", sig.PositionID),
		zap.Float64("total-cost", sig.TotalCost),
		zap.Float64("expected-edge", sig.ExpectedEdge),
		zap.Int("legs", len(sig.Legs)))

	select {
	case e.cfg.SignalQueue <- sig:
		SignalsEmittedTotal.WithLabelValues(string(sig.Strategy)).Inc()
		return
	default:
	}

	timer := time.NewTimer(enqueueGrace)
	defer timer.Stop()

	select {
	case e.cfg.SignalQueue <- sig:
		SignalsEmittedTotal.WithLabelValues(string(sig.Strategy)).Inc()
	case <-timer.C:
		SignalsDroppedTotal.Inc()
		e.logger.Warn("signal-queue-full", zap.String("position-id", sig.PositionID))
	case <-ctx.Done():
	}
}

// newPositionID generates a unique 16-hex-char position ID.
func newPositionID(marketID string, strategy types.Strategy) string {
	seed := fmt.Sprintf("%s_%s_%d_%s", marketID, strategy, time.Now().UnixNano(), uuid.NewString())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}
