// Package signal implements the intraday entry detector: an EMA
// crossover on 1-minute bars gated by an RSI filter and a volume
// surge filter, evaluated only inside configured trading windows.
package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	talib "github.com/markcheno/go-talib"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// RejectReason says why an evaluation produced no signal.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectOutsideWindow    RejectReason = "outside_window"
	RejectInsufficientBars RejectReason = "insufficient_bars"
	RejectNoCrossover      RejectReason = "no_crossover"
	RejectRSI              RejectReason = "rsi_reject"
	RejectVolume           RejectReason = "volume_reject"
	RejectDuplicate        RejectReason = "duplicate_bar"
)

// EvalResult carries either a signal or the reason there was none.
type EvalResult struct {
	Signal *types.Signal
	Reject RejectReason
}

// Detector evaluates entry conditions for one symbol at a time. It is
// safe for concurrent use across symbols.
type Detector struct {
	broker  broker.Broker
	cfg     config.SignalsConfig
	windows []timeutil.TimeWindow
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	lastBar map[string]time.Time
}

// NewDetector parses the configured trading windows up front so a
// malformed window fails at startup.
func NewDetector(b broker.Broker, cfg config.SignalsConfig, brokerTimeout time.Duration) (*Detector, error) {
	windows, err := timeutil.ParseWindows(cfg.TradingWindows)
	if err != nil {
		return nil, fmt.Errorf("signal: %w", err)
	}
	if brokerTimeout <= 0 {
		brokerTimeout = 10 * time.Second
	}
	return &Detector{
		broker:  b,
		cfg:     cfg,
		windows: windows,
		timeout: brokerTimeout,
		now:     timeutil.EasternNow,
		lastBar: make(map[string]time.Time),
	}, nil
}

// minBars is the bar count below which indicators are unreliable.
func (d *Detector) minBars() int {
	n := d.cfg.EMALongPeriod + 5
	if n < 30 {
		n = 30
	}
	return n
}

// Evaluate checks the latest bars for symbol and returns a signal when
// every condition holds. A crossover bar fires at most once: repeated
// polls inside the same minute report RejectDuplicate.
func (d *Detector) Evaluate(ctx context.Context, symbol string) (EvalResult, error) {
	now := d.now()
	if !timeutil.WithinAny(now, d.windows) {
		return EvalResult{Reject: RejectOutsideWindow}, nil
	}

	bars, err := d.recentBars(ctx, symbol)
	if err != nil {
		return EvalResult{}, err
	}
	if len(bars) < d.minBars() {
		return EvalResult{Reject: RejectInsufficientBars}, nil
	}

	ind := d.compute(bars)
	direction := ind.crossover()
	if !direction.Valid() {
		return EvalResult{Reject: RejectNoCrossover}, nil
	}
	if !d.rsiPasses(direction, ind.rsi) {
		logger.Debugf("signal: %s %s rejected by rsi %.2f", symbol, direction, ind.rsi)
		return EvalResult{Reject: RejectRSI}, nil
	}
	if !d.volumePasses(bars) {
		logger.Debugf("signal: %s %s rejected by volume filter", symbol, direction)
		return EvalResult{Reject: RejectVolume}, nil
	}

	last := bars[len(bars)-1]
	d.mu.Lock()
	dup := d.lastBar[symbol].Equal(last.Timestamp)
	if !dup {
		d.lastBar[symbol] = last.Timestamp
	}
	d.mu.Unlock()
	if dup {
		return EvalResult{Reject: RejectDuplicate}, nil
	}

	sig := &types.Signal{
		Symbol:    symbol,
		Direction: direction,
		Timestamp: last.Timestamp,
		Price:     last.Close,
		EMAFast:   ind.emaFast,
		EMASlow:   ind.emaSlow,
		RSI:       ind.rsi,
		Volume:    last.Volume,
		Reason:    fmt.Sprintf("EMA crossover confirmed with RSI %.2f and volume filter", ind.rsi),
	}
	logger.Infof("signal: %s %s at %.2f (rsi %.2f)", symbol, direction, sig.Price, sig.RSI)
	return EvalResult{Signal: sig}, nil
}

// HasReversal reports whether the market has turned against an open
// position: either a fresh crossover opposite the entry, or the EMA
// spread now sitting on the wrong side of zero.
func (d *Detector) HasReversal(ctx context.Context, symbol string, entry types.Direction) (bool, error) {
	bars, err := d.recentBars(ctx, symbol)
	if err != nil {
		return false, err
	}
	if len(bars) < d.minBars() {
		return false, nil
	}
	ind := d.compute(bars)
	if cur := ind.crossover(); cur.Valid() {
		return cur != entry, nil
	}
	diff := ind.emaFast - ind.emaSlow
	switch entry {
	case types.DirectionCall:
		return diff < 0, nil
	case types.DirectionPut:
		return diff > 0, nil
	}
	return false, nil
}

func (d *Detector) recentBars(ctx context.Context, symbol string) ([]types.Bar, error) {
	lookback := d.cfg.LookbackMinutes
	if lookback <= 0 {
		lookback = 120
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(lookback) * time.Minute)

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	bars, err := d.broker.GetBars(cctx, symbol, broker.TimeframeMinute, start, end, lookback)
	if err != nil {
		return nil, fmt.Errorf("signal: bars for %s: %w", symbol, err)
	}
	return bars, nil
}

type indicators struct {
	emaFast  float64
	emaSlow  float64
	prevDiff float64
	currDiff float64
	rsi      float64
}

func (d *Detector) compute(bars []types.Bar) indicators {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	fast := talib.Ema(closes, d.cfg.EMAShortPeriod)
	slow := talib.Ema(closes, d.cfg.EMALongPeriod)
	rsi := talib.Rsi(closes, d.cfg.RSIPeriod)

	n := len(bars)
	return indicators{
		emaFast:  fast[n-1],
		emaSlow:  slow[n-1],
		prevDiff: fast[n-2] - slow[n-2],
		currDiff: fast[n-1] - slow[n-1],
		rsi:      rsi[n-1],
	}
}

// crossover returns the direction of a fresh EMA cross between the
// previous and current bar, or "" when the spread did not change sign.
func (ind indicators) crossover() types.Direction {
	switch {
	case ind.prevDiff <= 0 && ind.currDiff > 0:
		return types.DirectionCall
	case ind.prevDiff >= 0 && ind.currDiff < 0:
		return types.DirectionPut
	}
	return ""
}

func (d *Detector) rsiPasses(direction types.Direction, rsi float64) bool {
	switch direction {
	case types.DirectionCall:
		return rsi >= d.cfg.RSICallMin
	case types.DirectionPut:
		return rsi <= d.cfg.RSIPutMax
	}
	return false
}

// volumePasses requires the latest bar's volume to exceed the average
// of the preceding lookback bars by the configured multiplier.
func (d *Detector) volumePasses(bars []types.Bar) bool {
	lookback := d.cfg.VolumeLookback
	if lookback <= 0 {
		lookback = 20
	}
	if len(bars) < lookback+1 {
		return false
	}
	var sum float64
	for _, b := range bars[len(bars)-1-lookback : len(bars)-1] {
		sum += b.Volume
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return false
	}
	return bars[len(bars)-1].Volume >= d.cfg.VolumeMultiplier*avg
}
