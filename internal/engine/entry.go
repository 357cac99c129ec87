package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/CodeShali/scalp-bot/internal/executor"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/notify"
	"github.com/CodeShali/scalp-bot/internal/options"
	"github.com/CodeShali/scalp-bot/internal/safety"
	"github.com/CodeShali/scalp-bot/internal/signal"
	"github.com/CodeShali/scalp-bot/internal/store"
	"github.com/CodeShali/scalp-bot/internal/types"
)

const evalConcurrency = 4

// scanTask ranks the watchlist and installs the top names as the
// active set for the rest of the session. A failed scan keeps the
// previous active set.
func (e *Engine) scanTask(ctx context.Context) {
	watchlist := e.watchlist()
	ranked, err := e.scanner.Run(ctx, watchlist)
	if err != nil {
		logger.Errorf("engine: scan failed: %v", err)
		e.breaker.RecordFailure()
		e.publish(notify.Event{
			Kind: notify.KindEngineError,
			Text: fmt.Sprintf("scan failed: %v", err),
			At:   e.now(),
		})
		return
	}
	e.breaker.RecordSuccess()

	symbols := make([]string, len(ranked))
	for i, s := range ranked {
		symbols[i] = s.Symbol
	}

	e.mu.Lock()
	e.active = symbols
	e.lastScan = ranked
	e.mu.Unlock()

	logger.Infof("engine: scan complete, active set %v", symbols)
	e.publish(notify.Event{
		Kind:    notify.KindScanComplete,
		Text:    scanSummary(ranked),
		Payload: ranked,
		At:      e.now(),
	})
}

func scanSummary(ranked []types.ScoredSymbol) string {
	if len(ranked) == 0 {
		return "scan complete: no symbols qualified"
	}
	var b strings.Builder
	b.WriteString("scan complete, today's focus:")
	for i, s := range ranked {
		fmt.Fprintf(&b, "\n%d. %s (%.1f)", i+1, s.Symbol, s.Score)
	}
	return b.String()
}

// signalTask polls the active set for an entry. Symbols are evaluated
// concurrently; a winning signal is acted on under the decision lock,
// where the flat-state, pause, breaker and daily-limit gates are
// re-checked before any order goes out.
func (e *Engine) signalTask(ctx context.Context) {
	e.mu.Lock()
	if e.paused || e.state != store.StateNoPosition {
		e.mu.Unlock()
		return
	}
	if !e.breaker.Allow() {
		e.mu.Unlock()
		logger.Debugf("engine: entries blocked, breaker open")
		return
	}
	if ok, kind := e.limits.Check(); !ok {
		first := e.notifiedLimit != kind
		e.notifiedLimit = kind
		e.mu.Unlock()
		if first {
			e.reportLimit(kind)
		}
		return
	}
	e.notifiedLimit = safety.LimitNone
	active := e.active
	e.mu.Unlock()

	if len(active) == 0 {
		return
	}

	sig := e.firstSignal(ctx, active)
	if sig == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.enter(ctx, *sig)
}

// firstSignal evaluates every active symbol and returns the signal
// for the highest-ranked symbol that fired, or nil.
func (e *Engine) firstSignal(ctx context.Context, active []string) *types.Signal {
	results := make([]*types.Signal, len(active))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evalConcurrency)
	for i, symbol := range active {
		i, symbol := i, symbol
		g.Go(func() error {
			res, err := e.detector.Evaluate(gctx, symbol)
			if err != nil {
				logger.Warnf("engine: evaluate %s: %v", symbol, err)
				e.breaker.RecordFailure()
				return nil
			}
			e.breaker.RecordSuccess()
			if res.Reject != signal.RejectNone {
				logger.Debugf("engine: %s no entry (%s)", symbol, res.Reject)
				return nil
			}
			results[i] = res.Signal
			return nil
		})
	}
	_ = g.Wait()

	for _, sig := range results {
		if sig != nil {
			return sig
		}
	}
	return nil
}

// enter runs the entry pipeline for a confirmed signal. Callers hold
// mu; the gates were checked before evaluation and the flat state is
// implied by the lock being held since the check.
func (e *Engine) enter(ctx context.Context, sig types.Signal) {
	if e.paused || e.state != store.StateNoPosition {
		return
	}

	logger.Infof("engine: %s signal on %s at %.2f (ema %.3f/%.3f rsi %.1f)",
		sig.Direction, sig.Symbol, sig.Price, sig.EMAFast, sig.EMASlow, sig.RSI)
	e.publish(notify.Event{
		Kind:    notify.KindSignalDetected,
		Symbol:  sig.Symbol,
		Text:    fmt.Sprintf("%s signal on %s at %.2f", strings.ToUpper(string(sig.Direction)), sig.Symbol, sig.Price),
		Payload: sig,
		At:      e.now(),
	})

	contract, err := e.selector.Select(ctx, sig)
	if err != nil {
		if errors.Is(err, options.ErrNoEligibleContract) {
			logger.Infof("engine: %s: no eligible contract, passing", sig.Symbol)
			return
		}
		logger.Errorf("engine: select contract for %s: %v", sig.Symbol, err)
		e.breaker.RecordFailure()
		e.publish(notify.Event{
			Kind:   notify.KindEngineError,
			Symbol: sig.Symbol,
			Text:   fmt.Sprintf("contract selection for %s failed: %v", sig.Symbol, err),
			At:     e.now(),
		})
		return
	}

	fill, err := e.trader.BuyToOpen(ctx, contract)
	if err != nil {
		if errors.Is(err, executor.ErrInsufficientCapital) {
			logger.Warnf("engine: %s: insufficient capital for %s", sig.Symbol, contract.Symbol)
			return
		}
		logger.Errorf("engine: entry order for %s: %v", contract.Symbol, err)
		e.breaker.RecordFailure()
		e.publish(notify.Event{
			Kind:   notify.KindEngineError,
			Symbol: sig.Symbol,
			Text:   fmt.Sprintf("entry order for %s failed: %v", contract.Symbol, err),
			At:     e.now(),
		})
		return
	}
	e.breaker.RecordSuccess()

	e.position = &types.Position{
		OptionSymbol: contract.Symbol,
		Underlying:   contract.Underlying,
		Direction:    contract.Side,
		Strike:       contract.Strike,
		Expiration:   contract.Expiration,
		Quantity:     fill.Qty,
		EntryPrice:   fill.Price,
		EntryTime:    fill.FilledAt,
		EntryOrderID: fill.OrderID,
	}
	e.state = store.StateOpen
	e.persist(ctx)

	logger.Infof("engine: entered %s %dx at %.2f", contract.Symbol, fill.Qty, fill.Price)
	e.publish(notify.Event{
		Kind:   notify.KindEntryFilled,
		Symbol: contract.Underlying,
		Text: fmt.Sprintf("ENTRY: %d %s at %.2f (%s %s)",
			fill.Qty, contract.Symbol, fill.Price, sig.Direction, sig.Symbol),
		Payload: e.position,
		At:      e.now(),
	})
}

func (e *Engine) reportLimit(kind safety.LimitKind) {
	logger.Infof("engine: entries blocked, %s limit reached", kind)
	e.publish(notify.Event{
		Kind: notify.KindLimitReached,
		Text: fmt.Sprintf("daily limit reached (%s): no further entries today", kind),
		At:   e.now(),
	})
}
