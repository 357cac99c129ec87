package safety

import (
	"sync"
	"time"

	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
)

// LimitKind names which daily limit blocked an entry.
type LimitKind string

const (
	LimitNone      LimitKind = ""
	LimitTrades    LimitKind = "daily_limit"
	LimitDailyLoss LimitKind = "daily_loss"
)

// Counters is the persistable per-day tally. Day is the Eastern
// trading date in 2006-01-02 form.
type Counters struct {
	Day    string  `json:"day"`
	Trades int     `json:"trades"`
	PnLPct float64 `json:"pnl_pct"`
}

// DailyLimits tracks the trade count and realized PnL for the current
// Eastern trading day. Counters roll over automatically at the first
// check of a new day.
type DailyLimits struct {
	mu         sync.Mutex
	maxTrades  int
	maxLossPct float64
	counters   Counters
	now        func() time.Time
}

func NewDailyLimits(maxTrades int, maxLossPct float64) *DailyLimits {
	return &DailyLimits{
		maxTrades:  maxTrades,
		maxLossPct: maxLossPct,
		now:        timeutil.EasternNow,
	}
}

// Check reports whether a new entry is allowed right now and, if not,
// which limit blocks it.
func (l *DailyLimits) Check() (bool, LimitKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	if l.maxTrades > 0 && l.counters.Trades >= l.maxTrades {
		return false, LimitTrades
	}
	if l.maxLossPct > 0 && l.counters.PnLPct <= -l.maxLossPct {
		return false, LimitDailyLoss
	}
	return true, LimitNone
}

// RecordTrade tallies one completed round trip. pnlPct is a decimal
// fraction (-0.07 for a 7% loss).
func (l *DailyLimits) RecordTrade(pnlPct float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	l.counters.Trades++
	l.counters.PnLPct += pnlPct
	logger.Infof("daily limits: %d trades, %.2f%% realized today",
		l.counters.Trades, l.counters.PnLPct*100)
}

// Counters returns the current tally for persistence and status.
func (l *DailyLimits) Counters() Counters {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.counters
}

// Restore loads persisted counters. Counters from a previous trading
// day are discarded.
func (l *DailyLimits) Restore(c Counters) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.Day == l.today() {
		l.counters = c
	}
}

// rollover resets the tally on a new trading day. Callers hold the
// mutex.
func (l *DailyLimits) rollover() {
	today := l.today()
	if l.counters.Day != today {
		if l.counters.Day != "" {
			logger.Infof("daily limits: new trading day %s, counters reset", today)
		}
		l.counters = Counters{Day: today}
	}
}

func (l *DailyLimits) today() string {
	return l.now().In(timeutil.Eastern()).Format("2006-01-02")
}
