// Package engine orchestrates the trading day: one scan, a signal
// loop, and a position-monitor loop, all funneled through a single
// decision lock so at most one position ever exists.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/executor"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/monitor"
	"github.com/CodeShali/scalp-bot/internal/notify"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/safety"
	"github.com/CodeShali/scalp-bot/internal/scheduler"
	"github.com/CodeShali/scalp-bot/internal/signal"
	"github.com/CodeShali/scalp-bot/internal/store"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// Scanner ranks the watchlist.
type Scanner interface {
	Run(ctx context.Context, watchlist []string) ([]types.ScoredSymbol, error)
}

// Detector evaluates entry conditions for one symbol.
type Detector interface {
	Evaluate(ctx context.Context, symbol string) (signal.EvalResult, error)
}

// Selector picks the contract for a signal.
type Selector interface {
	Select(ctx context.Context, sig types.Signal) (types.OptionContract, error)
}

// Trader submits entries and exits.
type Trader interface {
	BuyToOpen(ctx context.Context, contract types.OptionContract) (executor.Fill, error)
	SellToClose(ctx context.Context, pos types.Position) (executor.Fill, error)
}

// ExitEvaluator checks the exit rules for the open position.
type ExitEvaluator interface {
	Evaluate(ctx context.Context, pos types.Position) (monitor.Verdict, error)
}

// Publisher pushes engine events to the notification pipeline.
type Publisher interface {
	Publish(evt notify.Event)
}

// Deps wires the engine's collaborators.
type Deps struct {
	Config    *config.Config
	Scanner   Scanner
	Detector  Detector
	Selector  Selector
	Trader    Trader
	Evaluator ExitEvaluator
	Breaker   *safety.CircuitBreaker
	Limits    *safety.DailyLimits
	Store     store.Store
	Notify    Publisher
	// Watchlist returns the current symbol list; hot-reloads flow
	// through here.
	Watchlist func() []string
}

// Engine runs the scalping session. All Position and state-machine
// mutation happens under mu; the signal and monitor loops serialize
// through it.
type Engine struct {
	cfg       *config.Config
	scanner   Scanner
	detector  Detector
	selector  Selector
	trader    Trader
	evaluator ExitEvaluator
	breaker   *safety.CircuitBreaker
	limits    *safety.DailyLimits
	store     store.Store
	notify    Publisher
	watchlist func() []string

	mu         sync.Mutex
	state      store.PositionState
	position   *types.Position
	exitReason types.ExitReason
	paused     bool
	active     []string
	lastScan   []types.ScoredSymbol
	// notifiedLimit dedupes the limit-reached notification across
	// poll ticks.
	notifiedLimit safety.LimitKind

	now func() time.Time
}

func New(d Deps) *Engine {
	e := &Engine{
		cfg:       d.Config,
		scanner:   d.Scanner,
		detector:  d.Detector,
		selector:  d.Selector,
		trader:    d.Trader,
		evaluator: d.Evaluator,
		breaker:   d.Breaker,
		limits:    d.Limits,
		store:     d.Store,
		notify:    d.Notify,
		watchlist: d.Watchlist,
		state:     store.StateNoPosition,
		now:       timeutil.EasternNow,
	}
	if e.watchlist == nil {
		e.watchlist = func() []string { return d.Config.Watchlist.Symbols }
	}
	e.breaker.SetTripHandler(func(failures int) {
		e.publish(notify.Event{
			Kind: notify.KindBreakerTripped,
			Text: "CIRCUIT BREAKER TRIPPED: new entries halted until manual reset",
			Payload: map[string]int{
				"failures": failures,
			},
			At: e.now(),
		})
	})
	return e
}

// Run restores persisted state and drives the session loops until ctx
// is canceled. A task in flight when cancellation arrives finishes
// first, so an in-flight order is never orphaned.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.restore(ctx); err != nil {
		return err
	}

	scanAt, err := timeutil.ParseClock(e.cfg.Scanning.RunTime)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		scheduler.Daily{
			Name:                 "premarket-scan",
			ClockMinutes:         scanAt,
			RunImmediatelyIfPast: true,
		}.Run(ctx, e.scanTask)
	}()
	go func() {
		defer wg.Done()
		scheduler.Interval{
			Name:  "signal-poll",
			Every: e.cfg.Signals.PollInterval(),
		}.Run(ctx, e.signalTask)
	}()
	go func() {
		defer wg.Done()
		scheduler.Interval{
			Name:  "position-monitor",
			Every: e.cfg.Trading.MonitorInterval(),
		}.Run(ctx, e.monitorTask)
	}()

	wg.Wait()
	logger.Infof("engine: all loops stopped")
	return nil
}

// restore reloads the persisted snapshot so a restart resumes
// mid-position instead of re-entering.
func (e *Engine) restore(ctx context.Context) error {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = snap.State
	e.position = snap.Position
	e.exitReason = snap.ExitReason
	if e.state == "" {
		e.state = store.StateNoPosition
	}
	if e.position == nil && e.state != store.StateNoPosition {
		logger.Warnf("engine: snapshot state %s without position, resetting", e.state)
		e.state = store.StateNoPosition
	}
	if e.state == store.StateClosing && e.exitReason == "" {
		e.exitReason = types.ExitForced
	}
	if e.state != store.StateClosing {
		e.exitReason = ""
	}
	e.limits.Restore(e.todayCounters(ctx, snap.Counters))
	e.breaker.Restore(snap.Breaker)

	if e.position != nil {
		logger.Infof("engine: resuming %s position %s (%dx at %.2f)",
			e.state, e.position.OptionSymbol, e.position.Quantity, e.position.EntryPrice)
	}
	return nil
}

// todayCounters rebuilds the daily counters from the trade log, which
// is the source of truth when a crash separated AppendTrade from the
// snapshot write. The snapshot counters are the fallback.
func (e *Engine) todayCounters(ctx context.Context, fallback safety.Counters) safety.Counters {
	day := e.now().Format("2006-01-02")
	trades, err := e.store.ListTradesOn(ctx, day)
	if err != nil {
		logger.Warnf("engine: list today's trades: %v", err)
		return fallback
	}
	c := safety.Counters{Day: day, Trades: len(trades)}
	for _, t := range trades {
		c.PnLPct += t.PnLPct
	}
	return c
}

// persist writes the current snapshot. Callers hold mu. Persistence
// failures are logged, not fatal: the position is still real and the
// loops must keep driving it.
func (e *Engine) persist(ctx context.Context) {
	snap := store.Snapshot{
		State:      e.state,
		Position:   e.position,
		ExitReason: e.exitReason,
		Counters:   e.limits.Counters(),
		Breaker:    e.breaker.Snapshot(),
	}
	if err := e.store.Save(ctx, snap); err != nil {
		logger.Errorf("engine: persist snapshot: %v", err)
	}
}

func (e *Engine) publish(evt notify.Event) {
	if e.notify != nil {
		e.notify.Publish(evt)
	}
}
