package engine

import (
	"context"
	"time"

	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/notify"
	"github.com/CodeShali/scalp-bot/internal/safety"
	"github.com/CodeShali/scalp-bot/internal/store"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// Status is a point-in-time view of the engine for the control API.
type Status struct {
	State         store.PositionState  `json:"state"`
	Paused        bool                 `json:"paused"`
	BreakerOpen   bool                 `json:"breaker_open"`
	Counters      safety.Counters      `json:"counters"`
	Position      *types.Position      `json:"position,omitempty"`
	ActiveSymbols []string             `json:"active_symbols"`
	LastScan      []types.ScoredSymbol `json:"last_scan,omitempty"`
	At            time.Time            `json:"at"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		State:         e.state,
		Paused:        e.paused,
		BreakerOpen:   e.breaker.IsOpen(),
		Counters:      e.limits.Counters(),
		ActiveSymbols: append([]string(nil), e.active...),
		LastScan:      append([]types.ScoredSymbol(nil), e.lastScan...),
		At:            e.now(),
	}
	if e.position != nil {
		pos := *e.position
		st.Position = &pos
	}
	return st
}

// Pause stops new entries. Exit handling for an open position keeps
// running.
func (e *Engine) Pause() {
	e.mu.Lock()
	was := e.paused
	e.paused = true
	e.mu.Unlock()
	if was {
		return
	}
	logger.Infof("engine: paused, no new entries")
	e.publish(notify.Event{
		Kind: notify.KindPaused,
		Text: "engine paused: no new entries until resumed",
		At:   e.now(),
	})
}

func (e *Engine) Resume() {
	e.mu.Lock()
	was := e.paused
	e.paused = false
	e.mu.Unlock()
	if !was {
		return
	}
	logger.Infof("engine: resumed")
	e.publish(notify.Event{
		Kind: notify.KindResumed,
		Text: "engine resumed",
		At:   e.now(),
	})
}

// ResetBreaker is the manual close of the circuit breaker.
func (e *Engine) ResetBreaker() {
	e.breaker.Reset()
	logger.Warnf("engine: circuit breaker manually reset")
	e.publish(notify.Event{
		Kind: notify.KindResumed,
		Text: "circuit breaker reset: entries allowed again",
		At:   e.now(),
	})
}

// RecentTrades exposes the trade history for the control API.
func (e *Engine) RecentTrades(ctx context.Context, limit int) ([]types.Trade, error) {
	return e.store.RecentTrades(ctx, limit)
}
