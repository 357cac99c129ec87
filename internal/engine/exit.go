package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/CodeShali/scalp-bot/internal/executor"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/notify"
	"github.com/CodeShali/scalp-bot/internal/store"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// monitorTask checks exit rules for the open position and drives the
// closing retry loop. Exits run regardless of pause, breaker or daily
// limits: a held position must always be able to get out.
func (e *Engine) monitorTask(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case store.StateOpen:
		e.checkExit(ctx)
	case store.StateClosing:
		e.tryClose(ctx)
	}
}

// checkExit evaluates the exit rules and, if one fires, moves to
// closing and attempts the exit in the same tick. Callers hold mu.
func (e *Engine) checkExit(ctx context.Context) {
	v, err := e.evaluator.Evaluate(ctx, *e.position)
	if err != nil {
		logger.Warnf("engine: monitor %s: %v", e.position.OptionSymbol, err)
		e.breaker.RecordFailure()
		return
	}
	e.breaker.RecordSuccess()

	if v.Reason == "" {
		logger.Debugf("engine: %s holding at %.2f (%.1f%%)",
			e.position.OptionSymbol, v.CurrentPrice, v.PnLPct*100)
		return
	}

	logger.Infof("engine: exit condition %s on %s at %.2f (%.1f%%)",
		v.Reason, e.position.OptionSymbol, v.CurrentPrice, v.PnLPct*100)
	e.state = store.StateClosing
	e.exitReason = v.Reason
	e.persist(ctx)
	e.tryClose(ctx)
}

// tryClose submits the closing order. On failure the state stays
// closing so the next monitor tick retries; it never falls back to
// open. Callers hold mu.
func (e *Engine) tryClose(ctx context.Context) {
	fill, err := e.trader.SellToClose(ctx, *e.position)
	if err != nil {
		logger.Errorf("engine: close %s: %v", e.position.OptionSymbol, err)
		e.breaker.RecordFailure()
		e.publish(notify.Event{
			Kind:   notify.KindEngineError,
			Symbol: e.position.Underlying,
			Text:   fmt.Sprintf("exit order for %s failed, retrying: %v", e.position.OptionSymbol, err),
			At:     e.now(),
		})
		return
	}
	e.breaker.RecordSuccess()
	e.finalize(ctx, fill)
}

// finalize records the completed trade and returns to flat. A fill
// price of zero means the broker never reported an average price; the
// trade is recorded with what we have. Callers hold mu.
func (e *Engine) finalize(ctx context.Context, fill executor.Fill) {
	pos := e.position
	trade := types.Trade{
		ID:           uuid.NewString(),
		Underlying:   pos.Underlying,
		OptionSymbol: pos.OptionSymbol,
		Direction:    pos.Direction,
		Strike:       pos.Strike,
		Expiration:   pos.Expiration,
		Quantity:     pos.Quantity,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    fill.Price,
		EntryTime:    pos.EntryTime,
		ExitTime:     fill.FilledAt,
		ExitReason:   e.exitReason,
	}
	if pos.EntryPrice > 0 {
		trade.PnLPct = (fill.Price - pos.EntryPrice) / pos.EntryPrice
	}
	trade.PnLUSD = (fill.Price - pos.EntryPrice) * float64(pos.Quantity) * executor.ContractMultiplier

	if err := e.store.AppendTrade(ctx, trade); err != nil {
		logger.Errorf("engine: record trade %s: %v", trade.ID, err)
	}
	e.limits.RecordTrade(trade.PnLPct)

	e.state = store.StateNoPosition
	e.position = nil
	e.exitReason = ""
	e.persist(ctx)

	logger.Infof("engine: exited %s at %.2f (%s, %.1f%%, $%.2f)",
		trade.OptionSymbol, trade.ExitPrice, trade.ExitReason, trade.PnLPct*100, trade.PnLUSD)
	e.publish(notify.Event{
		Kind:   notify.KindExitFilled,
		Symbol: trade.Underlying,
		Text: fmt.Sprintf("EXIT: %d %s at %.2f (%s, %+.1f%%, $%+.2f)",
			trade.Quantity, trade.OptionSymbol, trade.ExitPrice,
			trade.ExitReason, trade.PnLPct*100, trade.PnLUSD),
		Payload: trade,
		At:      e.now(),
	})
}

// ForceClose exits the open position immediately, bypassing the exit
// rules. It is a no-op when flat; when already closing it only
// retries the order.
func (e *Engine) ForceClose(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case store.StateNoPosition:
		return fmt.Errorf("engine: no open position")
	case store.StateOpen:
		logger.Warnf("engine: force-closing %s", e.position.OptionSymbol)
		e.state = store.StateClosing
		e.exitReason = types.ExitForced
		e.persist(ctx)
	}
	e.tryClose(ctx)
	if e.state != store.StateNoPosition {
		return fmt.Errorf("engine: close order failed, will retry on next tick")
	}
	return nil
}
