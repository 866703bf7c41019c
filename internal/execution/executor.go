// Package execution consumes trade signals and turns them into
// positions: risk validation, multi-leg order placement (or synthetic
// dry-run fills), fill verification, and persistence.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/internal/risk"
	"github.com/quantfold/polymarket-bot/internal/storage"
	"github.com/quantfold/polymarket-bot/pkg/types"
)

// cancelTimeout bounds the cleanup pass after a failed execution. The
// order context is already dead by then, so cancels get their own.
const cancelTimeout = 10 * time.Second

// OrderPlacer is the exchange surface the executor needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, tokenID string, price, sizeTokens float64, negRisk bool) (*types.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string)
	CanTrade() bool
}

// Config holds executor configuration.
type Config struct {
	SignalQueue <-chan *types.TradeSignal
	Store       storage.Store
	Guard       *risk.Guard
	Exchange    OrderPlacer

	DryRun         bool
	OrderTimeout   time.Duration
	MaxSlippagePct float64

	Logger *zap.Logger
}

// Executor drains the signal queue and executes trades one at a time.
// Sequential on purpose: the risk guard's open-position and exposure
// reads stay consistent with what the executor has already committed.
type Executor struct {
	cfg    Config
	logger *zap.Logger
	done   chan struct{}
}

// New creates a new executor.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg, logger: cfg.Logger, done: make(chan struct{})}
}

// Start launches the consume loop.
func (x *Executor) Start(ctx context.Context) {
	x.logger.Info("executor-starting",
		zap.Bool("dry-run", x.cfg.DryRun),
		zap.Duration("order-timeout", x.cfg.OrderTimeout),
		zap.Float64("max-slippage-pct", x.cfg.MaxSlippagePct))

	go func() {
		defer close(x.done)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-x.cfg.SignalQueue:
				if !ok {
					return
				}
				x.Execute(ctx, sig)
			}
		}
	}()
}

// Close waits for the consume loop to exit.
func (x *Executor) Close() {
	<-x.done
	x.logger.Info("executor-stopped")
}

// Execute runs one signal through validation and placement.
func (x *Executor) Execute(ctx context.Context, sig *types.TradeSignal) {
	pos := positionFromSignal(sig)

	if err := x.cfg.Guard.Validate(ctx, sig); err != nil {
		var rej *risk.RejectionError
		if errors.As(err, &rej) {
			pos.Status = types.PositionFailed
			pos.FailReason = rej.Reason
			x.persistFailure(ctx, pos, rej.Reason, true)
			return
		}
		x.logger.Error("risk-validation-error",
			zap.String("position-id", sig.PositionID), zap.Error(err))
		return
	}

	if err := x.cfg.Store.CreatePosition(ctx, pos); err != nil {
		x.logger.Error("position-create-failed",
			zap.String("position-id", pos.PositionID), zap.Error(err))
		return
	}

	start := time.Now()
	if x.cfg.DryRun {
		x.executeDryRun(ctx, sig, pos)
	} else {
		x.executeLive(ctx, sig, pos)
	}
	ExecutionDuration.Observe(time.Since(start).Seconds())
}

func positionFromSignal(sig *types.TradeSignal) *types.Position {
	return &types.Position{
		PositionID:     sig.PositionID,
		MarketID:       sig.MarketID,
		ConditionID:    sig.ConditionID,
		Question:       sig.Question,
		Strategy:       sig.Strategy,
		Status:         types.PositionPending,
		Legs:           sig.Legs,
		TotalCost:      sig.TotalCost,
		ExpectedPayout: sig.ExpectedPayout,
		ExpectedEdge:   sig.ExpectedEdge,
		OpenedAt:       time.Now().UTC(),
		ExpiresAt:      sig.ExpiresAt,
	}
}

// executeDryRun fills every leg synthetically at its limit price with
// zero slippage.
func (x *Executor) executeDryRun(ctx context.Context, sig *types.TradeSignal, pos *types.Position) {
	orders := make([]types.OrderFill, 0, len(sig.Legs))
	for i, leg := range sig.Legs {
		orders = append(orders, types.OrderFill{
			Outcome:    leg.Outcome,
			TokenID:    leg.TokenID,
			OrderID:    fmt.Sprintf("dry-%s-%d", pos.PositionID, i),
			Status:     "filled",
			Price:      leg.Price,
			FillPrice:  leg.Price,
			SizeTokens: leg.SizeTokens,
		})
	}

	pos.Orders = orders
	pos.Status = types.PositionOpen
	pos.ActualTotalCost = sig.TotalCost
	pos.ActualEdge = sig.ExpectedEdge
	pos.AvgSlippagePct = 0

	if err := x.cfg.Store.UpdatePosition(ctx, pos); err != nil {
		x.logger.Error("position-update-failed",
			zap.String("position-id", pos.PositionID), zap.Error(err))
		return
	}

	if err := x.cfg.Store.LogEvent(ctx, "info", "dry_run_trade_executed", map[string]interface{}{
		"position_id": pos.PositionID,
		"strategy":    string(pos.Strategy),
		"total_cost":  pos.ActualTotalCost,
	}); err != nil {
		x.logger.Warn("event-log-failed", zap.Error(err))
	}

	TradesTotal.WithLabelValues(string(pos.Strategy), "executed").Inc()
	x.cfg.Guard.RecordResult(ctx, true)

	x.logger.Info("dry-run-trade-executed",
		zap.String("position-id", pos.PositionID),
		zap.String("strategy", string(pos.Strategy)),
		zap.Float64("total-cost", pos.ActualTotalCost),
		zap.Int("legs", len(pos.Orders)))
}

type legResult struct {
	index int
	resp  *types.OrderResponse
	err   error
}

// executeLive places every leg concurrently under one umbrella timeout.
// Any failed, timed-out, unfilled, or slipped leg fails the whole
// position and cancels every order we know about.
func (x *Executor) executeLive(ctx context.Context, sig *types.TradeSignal, pos *types.Position) {
	if !x.cfg.Exchange.CanTrade() {
		x.failPosition(ctx, pos, "order placement unavailable")
		return
	}

	orderCtx, cancel := context.WithTimeout(ctx, x.cfg.OrderTimeout)
	defer cancel()

	results := make(chan legResult, len(sig.Legs))
	for i, leg := range sig.Legs {
		go func(i int, leg types.Leg) {
			resp, err := x.cfg.Exchange.PlaceOrder(orderCtx, leg.TokenID, leg.Price, leg.SizeTokens, leg.NegRisk)
			results <- legResult{index: i, resp: resp, err: err}
		}(i, leg)
	}

	orders := make([]types.OrderFill, len(sig.Legs))
	var failReason string

	for range sig.Legs {
		res := <-results
		leg := sig.Legs[res.index]

		fill := types.OrderFill{
			Outcome:    leg.Outcome,
			TokenID:    leg.TokenID,
			Price:      leg.Price,
			SizeTokens: leg.SizeTokens,
		}

		switch {
		case res.err != nil:
			if failReason == "" {
				failReason = "order placement failed"
				if errors.Is(res.err, context.DeadlineExceeded) {
					failReason = "order timeout"
				}
			}
			x.logger.Warn("leg-order-failed",
				zap.String("position-id", pos.PositionID),
				zap.String("outcome", leg.Outcome),
				zap.Error(res.err))

		default:
			fill.OrderID = res.resp.OrderID
			fill.Status = res.resp.Status
			fill.FillPrice = res.resp.Price
			if fill.FillPrice == 0 {
				// Exchange did not report a fill price; assume the limit.
				fill.FillPrice = leg.Price
			}
			fill.SlippagePct = (fill.FillPrice - leg.Price) / leg.Price * 100.0
		}

		orders[res.index] = fill
	}
	pos.Orders = orders

	if failReason == "" {
		failReason = x.verifyFills(pos)
	}

	if failReason != "" {
		x.cancelAll(pos)
		x.failPosition(ctx, pos, failReason)
		return
	}

	var actualCost, perUnitCost, slippageSum float64
	for _, fill := range pos.Orders {
		actualCost += fill.FillPrice * fill.SizeTokens
		perUnitCost += fill.FillPrice
		slippageSum += fill.SlippagePct
	}

	pos.Status = types.PositionOpen
	pos.ActualTotalCost = actualCost
	pos.ActualEdge = (1.0 - perUnitCost) * 100.0
	pos.AvgSlippagePct = slippageSum / float64(len(pos.Orders))

	if err := x.cfg.Store.UpdatePosition(ctx, pos); err != nil {
		x.logger.Error("position-update-failed",
			zap.String("position-id", pos.PositionID), zap.Error(err))
		return
	}

	if err := x.cfg.Store.LogEvent(ctx, "info", "trade_executed", map[string]interface{}{
		"position_id":  pos.PositionID,
		"strategy":     string(pos.Strategy),
		"total_cost":   pos.ActualTotalCost,
		"avg_slippage": pos.AvgSlippagePct,
	}); err != nil {
		x.logger.Warn("event-log-failed", zap.Error(err))
	}

	TradesTotal.WithLabelValues(string(pos.Strategy), "executed").Inc()
	x.cfg.Guard.RecordResult(ctx, true)

	x.logger.Info("trade-executed",
		zap.String("position-id", pos.PositionID),
		zap.String("strategy", string(pos.Strategy)),
		zap.Float64("actual-total-cost", pos.ActualTotalCost),
		zap.Float64("avg-slippage-pct", pos.AvgSlippagePct))
}

// verifyFills checks that every leg filled within the slippage budget.
func (x *Executor) verifyFills(pos *types.Position) string {
	for _, fill := range pos.Orders {
		resp := types.OrderResponse{Status: fill.Status}
		if !resp.Filled() {
			return "fill verification failed"
		}
		if math.Abs(fill.SlippagePct) > x.cfg.MaxSlippagePct {
			return "excessive slippage"
		}
	}
	return ""
}

// cancelAll cancels every order ID collected so far, best-effort.
func (x *Executor) cancelAll(pos *types.Position) {
	cancelCtx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()

	for _, fill := range pos.Orders {
		if fill.OrderID != "" {
			x.cfg.Exchange.CancelOrder(cancelCtx, fill.OrderID)
		}
	}
}

// persistFailure records a failed position. needsCreate marks positions
// rejected before their pending record was written.
func (x *Executor) persistFailure(ctx context.Context, pos *types.Position, reason string, needsCreate bool) {
	var err error
	if needsCreate {
		err = x.cfg.Store.CreatePosition(ctx, pos)
	} else {
		err = x.cfg.Store.UpdatePosition(ctx, pos)
	}
	if err != nil {
		x.logger.Error("failed-position-persist-failed",
			zap.String("position-id", pos.PositionID), zap.Error(err))
	}

	if err := x.cfg.Store.LogEvent(ctx, "warn", "trade_failed", map[string]interface{}{
		"position_id": pos.PositionID,
		"strategy":    string(pos.Strategy),
		"reason":      reason,
	}); err != nil {
		x.logger.Warn("event-log-failed", zap.Error(err))
	}

	TradesTotal.WithLabelValues(string(pos.Strategy), "failed").Inc()
	x.cfg.Guard.RecordResult(ctx, false)
}

func (x *Executor) failPosition(ctx context.Context, pos *types.Position, reason string) {
	pos.Status = types.PositionFailed
	pos.FailReason = reason

	x.logger.Warn("trade-failed",
		zap.String("position-id", pos.PositionID),
		zap.String("strategy", string(pos.Strategy)),
		zap.String("reason", reason))

	x.persistFailure(ctx, pos, reason, false)
}
