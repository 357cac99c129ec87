package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/executor"
	"github.com/CodeShali/scalp-bot/internal/monitor"
	"github.com/CodeShali/scalp-bot/internal/notify"
	"github.com/CodeShali/scalp-bot/internal/options"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/safety"
	"github.com/CodeShali/scalp-bot/internal/signal"
	"github.com/CodeShali/scalp-bot/internal/store"
	"github.com/CodeShali/scalp-bot/internal/types"
)

type stubScanner struct {
	fn func(ctx context.Context, watchlist []string) ([]types.ScoredSymbol, error)
}

func (s stubScanner) Run(ctx context.Context, watchlist []string) ([]types.ScoredSymbol, error) {
	return s.fn(ctx, watchlist)
}

type stubDetector struct {
	mu    sync.Mutex
	calls []string
	fn    func(symbol string) (signal.EvalResult, error)
}

func (d *stubDetector) Evaluate(_ context.Context, symbol string) (signal.EvalResult, error) {
	d.mu.Lock()
	d.calls = append(d.calls, symbol)
	d.mu.Unlock()
	return d.fn(symbol)
}

type stubSelector struct {
	fn func(sig types.Signal) (types.OptionContract, error)
}

func (s stubSelector) Select(_ context.Context, sig types.Signal) (types.OptionContract, error) {
	return s.fn(sig)
}

type stubTrader struct {
	mu    sync.Mutex
	buys  int
	sells int

	buyFn  func(c types.OptionContract) (executor.Fill, error)
	sellFn func(pos types.Position) (executor.Fill, error)
}

func (t *stubTrader) BuyToOpen(_ context.Context, c types.OptionContract) (executor.Fill, error) {
	t.mu.Lock()
	t.buys++
	t.mu.Unlock()
	if t.buyFn == nil {
		return executor.Fill{}, errors.New("no buy stub")
	}
	return t.buyFn(c)
}

func (t *stubTrader) SellToClose(_ context.Context, pos types.Position) (executor.Fill, error) {
	t.mu.Lock()
	t.sells++
	t.mu.Unlock()
	if t.sellFn == nil {
		return executor.Fill{}, errors.New("no sell stub")
	}
	return t.sellFn(pos)
}

type stubEvaluator struct {
	calls int
	fn    func(pos types.Position) (monitor.Verdict, error)
}

func (e *stubEvaluator) Evaluate(_ context.Context, pos types.Position) (monitor.Verdict, error) {
	e.calls++
	return e.fn(pos)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(evt notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) kinds() []notify.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Kind, len(p.events))
	for i, evt := range p.events {
		out[i] = evt.Kind
	}
	return out
}

// memStore keeps snapshot and trades in memory for engine tests.
type memStore struct {
	mu     sync.Mutex
	snap   store.Snapshot
	saved  int
	trades []types.Trade
}

func (m *memStore) Load(context.Context) (store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *memStore) Save(_ context.Context, snap store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.saved++
	return nil
}

func (m *memStore) AppendTrade(_ context.Context, trade types.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, trade)
	return nil
}

func (m *memStore) ListTradesOn(context.Context, string) ([]types.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Trade(nil), m.trades...), nil
}

func (m *memStore) RecentTrades(context.Context, int) ([]types.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Trade(nil), m.trades...), nil
}

func (m *memStore) Close() error { return nil }

type fixture struct {
	engine    *Engine
	detector  *stubDetector
	trader    *stubTrader
	evaluator *stubEvaluator
	store     *memStore
	breaker   *safety.CircuitBreaker
	limits    *safety.DailyLimits
	events    *recordingPublisher
}

var testSignal = types.Signal{
	Symbol:    "SPY",
	Direction: types.DirectionCall,
	Price:     600,
	EMAFast:   600.2,
	EMASlow:   599.8,
	RSI:       65,
}

var testContract = types.OptionContract{
	Symbol:     "SPY250606C00600000",
	Underlying: "SPY",
	Side:       types.DirectionCall,
	Strike:     600,
	Expiration: time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC),
	Bid:        3.40,
	Ask:        3.45,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		detector: &stubDetector{fn: func(string) (signal.EvalResult, error) {
			return signal.EvalResult{Reject: signal.RejectNoCrossover}, nil
		}},
		trader:    &stubTrader{},
		evaluator: &stubEvaluator{},
		store:     &memStore{},
		breaker:   safety.NewCircuitBreaker("test", 5, 5*time.Minute),
		limits:    safety.NewDailyLimits(5, 0.10),
		events:    &recordingPublisher{},
	}
	f.engine = New(Deps{
		Config:  &config.Config{},
		Scanner: stubScanner{fn: func(context.Context, []string) ([]types.ScoredSymbol, error) { return nil, nil }},
		Detector: f.detector,
		Selector: stubSelector{fn: func(types.Signal) (types.OptionContract, error) {
			return testContract, nil
		}},
		Trader:    f.trader,
		Evaluator: f.evaluator,
		Breaker:   f.breaker,
		Limits:    f.limits,
		Store:     f.store,
		Notify:    f.events,
		Watchlist: func() []string { return []string{"SPY", "QQQ"} },
	})
	return f
}

func (f *fixture) setActive(symbols ...string) {
	f.engine.mu.Lock()
	f.engine.active = symbols
	f.engine.mu.Unlock()
}

func (f *fixture) fireSignalFor(symbol string) {
	f.detector.fn = func(s string) (signal.EvalResult, error) {
		if s == symbol {
			sig := testSignal
			sig.Symbol = s
			return signal.EvalResult{Signal: &sig}, nil
		}
		return signal.EvalResult{Reject: signal.RejectNoCrossover}, nil
	}
}

func TestSignalTaskOpensPosition(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY", "QQQ")
	f.fireSignalFor("SPY")
	f.trader.buyFn = func(c types.OptionContract) (executor.Fill, error) {
		return executor.Fill{OrderID: "ord-1", Symbol: c.Symbol, Qty: 5, Price: 3.45, FilledAt: time.Now()}, nil
	}

	f.engine.signalTask(context.Background())

	st := f.engine.Status()
	assert.Equal(t, store.StateOpen, st.State)
	require.NotNil(t, st.Position)
	assert.Equal(t, "SPY250606C00600000", st.Position.OptionSymbol)
	assert.Equal(t, 5, st.Position.Quantity)
	assert.InDelta(t, 3.45, st.Position.EntryPrice, 1e-9)
	assert.Equal(t, "ord-1", st.Position.EntryOrderID)
	assert.Equal(t, store.StateOpen, f.store.snap.State)
	assert.Equal(t, 1, f.store.saved)
}

func TestSignalTaskPrefersHigherRankedSymbol(t *testing.T) {
	f := newFixture(t)
	f.setActive("TSLA", "SPY", "QQQ")
	// both TSLA and QQQ fire; the scan ordering decides
	f.detector.fn = func(s string) (signal.EvalResult, error) {
		if s == "SPY" {
			return signal.EvalResult{Reject: signal.RejectNoCrossover}, nil
		}
		sig := testSignal
		sig.Symbol = s
		return signal.EvalResult{Signal: &sig}, nil
	}
	var bought types.Signal
	f.engine.selector = stubSelector{fn: func(sig types.Signal) (types.OptionContract, error) {
		bought = sig
		return testContract, nil
	}}
	f.trader.buyFn = func(c types.OptionContract) (executor.Fill, error) {
		return executor.Fill{Qty: 1, Price: 1.00, FilledAt: time.Now()}, nil
	}

	f.engine.signalTask(context.Background())

	assert.Equal(t, "TSLA", bought.Symbol)
	assert.Len(t, f.detector.calls, 3)
}

func TestSignalTaskSkipsWhenPositionOpen(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY")
	f.engine.state = store.StateOpen
	f.engine.position = &types.Position{OptionSymbol: "X"}

	f.engine.signalTask(context.Background())

	assert.Empty(t, f.detector.calls)
	assert.Zero(t, f.trader.buys)
}

func TestSignalTaskSkipsWhenPaused(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY")
	f.fireSignalFor("SPY")
	f.engine.Pause()

	f.engine.signalTask(context.Background())
	assert.Empty(t, f.detector.calls)

	f.engine.Resume()
	f.trader.buyFn = func(types.OptionContract) (executor.Fill, error) {
		return executor.Fill{Qty: 1, Price: 1, FilledAt: time.Now()}, nil
	}
	f.engine.signalTask(context.Background())
	assert.Equal(t, store.StateOpen, f.engine.Status().State)
}

func TestSignalTaskSkipsWhenBreakerOpen(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY")
	f.fireSignalFor("SPY")
	for i := 0; i < 5; i++ {
		f.breaker.RecordFailure()
	}
	require.True(t, f.breaker.IsOpen())

	f.engine.signalTask(context.Background())

	assert.Empty(t, f.detector.calls)
	assert.Zero(t, f.trader.buys)
}

func TestSignalTaskSkipsWhenDailyLimitHit(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY")
	f.fireSignalFor("SPY")
	for i := 0; i < 5; i++ {
		f.limits.RecordTrade(0.01)
	}

	f.engine.signalTask(context.Background())

	assert.Empty(t, f.detector.calls)
	assert.Zero(t, f.trader.buys)
}

func TestEntryOrderFailureStaysFlatAndCountsFailure(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY")
	f.fireSignalFor("SPY")
	f.trader.buyFn = func(types.OptionContract) (executor.Fill, error) {
		return executor.Fill{}, errors.New("broker down")
	}

	f.engine.signalTask(context.Background())

	st := f.engine.Status()
	assert.Equal(t, store.StateNoPosition, st.State)
	assert.Nil(t, st.Position)
	snap := f.breaker.Snapshot()
	assert.NotEmpty(t, snap.Failures)
}

func TestSelectorFailurePublishesErrorEvent(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY")
	f.fireSignalFor("SPY")
	f.engine.selector = stubSelector{fn: func(types.Signal) (types.OptionContract, error) {
		return types.OptionContract{}, errors.New("chain endpoint 500")
	}}

	f.engine.signalTask(context.Background())

	assert.Equal(t, store.StateNoPosition, f.engine.Status().State)
	assert.Zero(t, f.trader.buys)
	assert.NotEmpty(t, f.breaker.Snapshot().Failures)
	assert.Contains(t, f.events.kinds(), notify.KindEngineError)
}

func TestNoEligibleContractIsNotABreakerFailure(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY")
	f.fireSignalFor("SPY")
	f.engine.selector = stubSelector{fn: func(types.Signal) (types.OptionContract, error) {
		return types.OptionContract{}, options.ErrNoEligibleContract
	}}

	f.engine.signalTask(context.Background())

	assert.Equal(t, store.StateNoPosition, f.engine.Status().State)
	assert.Zero(t, f.trader.buys)
	assert.Empty(t, f.breaker.Snapshot().Failures)
}

func openPosition(f *fixture) *types.Position {
	pos := &types.Position{
		OptionSymbol: "SPY250606C00600000",
		Underlying:   "SPY",
		Direction:    types.DirectionCall,
		Strike:       600,
		Quantity:     5,
		EntryPrice:   3.45,
		EntryTime:    time.Now().Add(-2 * time.Minute),
		EntryOrderID: "ord-1",
	}
	f.engine.mu.Lock()
	f.engine.state = store.StateOpen
	f.engine.position = pos
	f.engine.mu.Unlock()
	return pos
}

func TestMonitorTaskExitsOnVerdict(t *testing.T) {
	f := newFixture(t)
	openPosition(f)
	f.evaluator.fn = func(types.Position) (monitor.Verdict, error) {
		return monitor.Verdict{Reason: types.ExitProfitTarget, CurrentPrice: 3.97, PnLPct: 0.1507}, nil
	}
	f.trader.sellFn = func(pos types.Position) (executor.Fill, error) {
		return executor.Fill{OrderID: "ord-2", Qty: pos.Quantity, Price: 3.97, FilledAt: time.Now()}, nil
	}

	f.engine.monitorTask(context.Background())

	st := f.engine.Status()
	assert.Equal(t, store.StateNoPosition, st.State)
	assert.Nil(t, st.Position)
	require.Len(t, f.store.trades, 1)
	trade := f.store.trades[0]
	assert.Equal(t, types.ExitProfitTarget, trade.ExitReason)
	assert.InDelta(t, (3.97-3.45)/3.45, trade.PnLPct, 1e-9)
	assert.InDelta(t, (3.97-3.45)*5*100, trade.PnLUSD, 1e-9)
	assert.Equal(t, 1, f.limits.Counters().Trades)
}

func TestMonitorTaskHoldsWithoutVerdict(t *testing.T) {
	f := newFixture(t)
	openPosition(f)
	f.evaluator.fn = func(types.Position) (monitor.Verdict, error) {
		return monitor.Verdict{CurrentPrice: 3.50, PnLPct: 0.0145}, nil
	}

	f.engine.monitorTask(context.Background())

	assert.Equal(t, store.StateOpen, f.engine.Status().State)
	assert.Zero(t, f.trader.sells)
}

func TestClosingRetriesUntilFilled(t *testing.T) {
	f := newFixture(t)
	openPosition(f)
	f.evaluator.fn = func(types.Position) (monitor.Verdict, error) {
		return monitor.Verdict{Reason: types.ExitStopLoss, CurrentPrice: 3.20, PnLPct: -0.072}, nil
	}
	f.trader.sellFn = func(types.Position) (executor.Fill, error) {
		return executor.Fill{}, errors.New("timeout")
	}

	f.engine.monitorTask(context.Background())
	assert.Equal(t, store.StateClosing, f.engine.Status().State)
	assert.Equal(t, 1, f.trader.sells)

	// next tick retries the order without re-evaluating
	f.engine.monitorTask(context.Background())
	assert.Equal(t, store.StateClosing, f.engine.Status().State)
	assert.Equal(t, 2, f.trader.sells)
	assert.Equal(t, 1, f.evaluator.calls)

	f.trader.sellFn = func(pos types.Position) (executor.Fill, error) {
		return executor.Fill{Qty: pos.Quantity, Price: 3.20, FilledAt: time.Now()}, nil
	}
	f.engine.monitorTask(context.Background())
	assert.Equal(t, store.StateNoPosition, f.engine.Status().State)
	require.Len(t, f.store.trades, 1)
	assert.Equal(t, types.ExitStopLoss, f.store.trades[0].ExitReason)
}

func TestMonitorEvaluateErrorKeepsPositionOpen(t *testing.T) {
	f := newFixture(t)
	openPosition(f)
	f.evaluator.fn = func(types.Position) (monitor.Verdict, error) {
		return monitor.Verdict{}, errors.New("quote unavailable")
	}

	f.engine.monitorTask(context.Background())

	assert.Equal(t, store.StateOpen, f.engine.Status().State)
	assert.Zero(t, f.trader.sells)
	assert.NotEmpty(t, f.breaker.Snapshot().Failures)
}

func TestMonitorExitRunsEvenWhenPausedAndTripped(t *testing.T) {
	f := newFixture(t)
	openPosition(f)
	f.engine.Pause()
	for i := 0; i < 5; i++ {
		f.breaker.RecordFailure()
	}
	f.evaluator.fn = func(types.Position) (monitor.Verdict, error) {
		return monitor.Verdict{Reason: types.ExitTimeout, CurrentPrice: 3.40, PnLPct: -0.014}, nil
	}
	f.trader.sellFn = func(pos types.Position) (executor.Fill, error) {
		return executor.Fill{Qty: pos.Quantity, Price: 3.40, FilledAt: time.Now()}, nil
	}

	f.engine.monitorTask(context.Background())

	assert.Equal(t, store.StateNoPosition, f.engine.Status().State)
	require.Len(t, f.store.trades, 1)
}

func TestForceClose(t *testing.T) {
	f := newFixture(t)
	openPosition(f)
	f.trader.sellFn = func(pos types.Position) (executor.Fill, error) {
		return executor.Fill{Qty: pos.Quantity, Price: 3.30, FilledAt: time.Now()}, nil
	}

	err := f.engine.ForceClose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.StateNoPosition, f.engine.Status().State)
	require.Len(t, f.store.trades, 1)
	assert.Equal(t, types.ExitForced, f.store.trades[0].ExitReason)
}

func TestForceCloseWithoutPosition(t *testing.T) {
	f := newFixture(t)
	err := f.engine.ForceClose(context.Background())
	assert.Error(t, err)
}

func TestForceCloseOrderFailureStaysClosing(t *testing.T) {
	f := newFixture(t)
	openPosition(f)
	f.trader.sellFn = func(types.Position) (executor.Fill, error) {
		return executor.Fill{}, errors.New("timeout")
	}

	err := f.engine.ForceClose(context.Background())
	assert.Error(t, err)
	assert.Equal(t, store.StateClosing, f.engine.Status().State)
}

func TestRestoreResumesOpenPosition(t *testing.T) {
	f := newFixture(t)
	pos := &types.Position{OptionSymbol: "SPY250606C00600000", Underlying: "SPY", Quantity: 3, EntryPrice: 2.10}
	f.store.snap = store.Snapshot{
		State:    store.StateOpen,
		Position: pos,
		Counters: safety.Counters{Day: timeutil.EasternNow().Format("2006-01-02"), Trades: 2},
	}

	require.NoError(t, f.engine.restore(context.Background()))

	st := f.engine.Status()
	assert.Equal(t, store.StateOpen, st.State)
	require.NotNil(t, st.Position)
	assert.Equal(t, 3, st.Position.Quantity)
}

func TestRestoreRebuildsCountersFromTradeLog(t *testing.T) {
	f := newFixture(t)
	f.store.trades = []types.Trade{
		{ID: "t1", PnLPct: 0.10},
		{ID: "t2", PnLPct: -0.03},
	}
	f.store.snap = store.Snapshot{State: store.StateNoPosition}

	require.NoError(t, f.engine.restore(context.Background()))

	c := f.limits.Counters()
	assert.Equal(t, 2, c.Trades)
	assert.InDelta(t, 0.07, c.PnLPct, 1e-9)
}

func TestRestoreResumesClosingWithExitReason(t *testing.T) {
	f := newFixture(t)
	f.store.snap = store.Snapshot{
		State:      store.StateClosing,
		Position:   &types.Position{OptionSymbol: "SPY250606C00600000", Underlying: "SPY", Quantity: 5, EntryPrice: 3.45},
		ExitReason: types.ExitStopLoss,
	}
	require.NoError(t, f.engine.restore(context.Background()))

	f.trader.sellFn = func(pos types.Position) (executor.Fill, error) {
		return executor.Fill{Qty: pos.Quantity, Price: 3.20, FilledAt: time.Now()}, nil
	}
	f.engine.monitorTask(context.Background())

	assert.Equal(t, store.StateNoPosition, f.engine.Status().State)
	require.Len(t, f.store.trades, 1)
	assert.Equal(t, types.ExitStopLoss, f.store.trades[0].ExitReason)
	assert.Zero(t, f.evaluator.calls)
}

func TestRestoreClosingWithoutReasonDefaultsToForced(t *testing.T) {
	f := newFixture(t)
	f.store.snap = store.Snapshot{
		State:    store.StateClosing,
		Position: &types.Position{OptionSymbol: "X", Quantity: 1, EntryPrice: 1},
	}
	require.NoError(t, f.engine.restore(context.Background()))

	f.trader.sellFn = func(pos types.Position) (executor.Fill, error) {
		return executor.Fill{Qty: pos.Quantity, Price: 1, FilledAt: time.Now()}, nil
	}
	f.engine.monitorTask(context.Background())

	require.Len(t, f.store.trades, 1)
	assert.Equal(t, types.ExitForced, f.store.trades[0].ExitReason)
}

func TestRestoreResetsInconsistentSnapshot(t *testing.T) {
	f := newFixture(t)
	f.store.snap = store.Snapshot{State: store.StateClosing}

	require.NoError(t, f.engine.restore(context.Background()))
	assert.Equal(t, store.StateNoPosition, f.engine.Status().State)
}

func TestScanTaskInstallsActiveSet(t *testing.T) {
	f := newFixture(t)
	f.engine.scanner = stubScanner{fn: func(_ context.Context, watchlist []string) ([]types.ScoredSymbol, error) {
		assert.Equal(t, []string{"SPY", "QQQ"}, watchlist)
		return []types.ScoredSymbol{
			{Symbol: "QQQ", Score: 80},
			{Symbol: "SPY", Score: 60},
		}, nil
	}}

	f.engine.scanTask(context.Background())

	st := f.engine.Status()
	assert.Equal(t, []string{"QQQ", "SPY"}, st.ActiveSymbols)
	require.Len(t, st.LastScan, 2)
	assert.Equal(t, "QQQ", st.LastScan[0].Symbol)
}

func TestScanFailureKeepsPreviousActiveSet(t *testing.T) {
	f := newFixture(t)
	f.setActive("SPY")
	f.engine.scanner = stubScanner{fn: func(context.Context, []string) ([]types.ScoredSymbol, error) {
		return nil, errors.New("data feed down")
	}}

	f.engine.scanTask(context.Background())

	assert.Equal(t, []string{"SPY"}, f.engine.Status().ActiveSymbols)
	assert.NotEmpty(t, f.breaker.Snapshot().Failures)
}
