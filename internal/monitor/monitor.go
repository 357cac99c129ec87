// Package monitor evaluates exit rules for the open position. Rules
// run in a fixed priority order and the first match wins; the engine
// acts on the verdict.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// Reversaler is the slice of the signal detector the monitor needs.
type Reversaler interface {
	HasReversal(ctx context.Context, symbol string, entry types.Direction) (bool, error)
}

// Verdict is one tick's evaluation of the open position.
type Verdict struct {
	// Reason is empty while the position should stay open.
	Reason       types.ExitReason
	CurrentPrice float64
	// PnLPct is the unrealized return as a decimal fraction.
	PnLPct float64
}

// Evaluator checks the exit conditions for an open position.
type Evaluator struct {
	broker   broker.Broker
	detector Reversaler
	cfg      config.TradingConfig

	profitTarget decimal.Decimal
	stopLoss     decimal.Decimal
	eodMinutes   int
	timeout      time.Duration
	now          func() time.Time
}

// NewEvaluator parses the session-end clock up front so a malformed
// config fails at startup.
func NewEvaluator(b broker.Broker, detector Reversaler, cfg config.TradingConfig) (*Evaluator, error) {
	eod, err := timeutil.ParseClock(cfg.EndOfDayExit)
	if err != nil {
		return nil, fmt.Errorf("monitor: end_of_day_exit: %w", err)
	}
	return &Evaluator{
		broker:       b,
		detector:     detector,
		cfg:          cfg,
		profitTarget: decimal.NewFromFloat(cfg.ProfitTargetPct),
		stopLoss:     decimal.NewFromFloat(cfg.StopLossPct),
		eodMinutes:   eod,
		timeout:      cfg.MaxHold(),
		now:          timeutil.EasternNow,
	}, nil
}

// Evaluate prices the position and checks the exit rules in priority
// order: profit target, stop loss, reversal, timeout, session end.
// Exactly one rule fires per tick.
func (e *Evaluator) Evaluate(ctx context.Context, pos types.Position) (Verdict, error) {
	price, err := e.optionPrice(ctx, pos.OptionSymbol)
	if err != nil {
		return Verdict{}, err
	}

	// Option premiums are small; the pennies matter, so the return is
	// computed in decimal rather than accumulating float error around
	// the thresholds.
	entry := decimal.NewFromFloat(pos.EntryPrice)
	current := decimal.NewFromFloat(price)
	if entry.IsZero() {
		return Verdict{}, fmt.Errorf("monitor: position %s has zero entry price", pos.OptionSymbol)
	}
	pnl := current.Sub(entry).Div(entry)
	pnlF, _ := pnl.Float64()

	v := Verdict{CurrentPrice: price, PnLPct: pnlF}
	logger.Debugf("monitor: %s at %.2f, pnl %.2f%%", pos.OptionSymbol, price, pnlF*100)

	if pnl.GreaterThanOrEqual(e.profitTarget) {
		v.Reason = types.ExitProfitTarget
		return v, nil
	}
	if pnl.LessThanOrEqual(e.stopLoss.Neg()) {
		v.Reason = types.ExitStopLoss
		return v, nil
	}

	rev, err := e.detector.HasReversal(ctx, pos.Underlying, pos.Direction)
	if err != nil {
		// A failed reversal read must not mask the time-based exits.
		logger.Warnf("monitor: reversal check for %s: %v", pos.Underlying, err)
	} else if rev {
		v.Reason = types.ExitReversal
		return v, nil
	}

	now := e.now()
	if e.timeout > 0 && now.Sub(pos.EntryTime) >= e.timeout {
		v.Reason = types.ExitTimeout
		return v, nil
	}
	if timeutil.AtOrPastClock(now, e.eodMinutes) {
		v.Reason = types.ExitSessionEnd
		return v, nil
	}
	return v, nil
}

func (e *Evaluator) optionPrice(ctx context.Context, optionSymbol string) (float64, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.BrokerTimeout())
	defer cancel()
	quote, err := e.broker.GetOptionQuote(cctx, optionSymbol)
	if err != nil {
		return 0, fmt.Errorf("monitor: quote for %s: %w", optionSymbol, err)
	}
	price := quote.Mid()
	if price <= 0 {
		return 0, fmt.Errorf("monitor: no usable price for %s", optionSymbol)
	}
	return price, nil
}
