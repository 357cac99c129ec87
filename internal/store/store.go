// Package store defines the durable state surface: one snapshot of
// the engine's mutable session state plus an append-only trade
// history. Implementations live in subpackages.
package store

import (
	"context"

	"github.com/CodeShali/scalp-bot/internal/safety"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// PositionState is the monitor state machine's persisted phase.
type PositionState string

const (
	StateNoPosition PositionState = "no_position"
	StateOpen       PositionState = "open"
	StateClosing    PositionState = "closing"
)

// Snapshot is everything needed to resume after a restart without
// double-entering a position or double-counting a trade.
type Snapshot struct {
	State    PositionState   `json:"state"`
	Position *types.Position `json:"position,omitempty"`
	// ExitReason is the pending exit condition while State is closing,
	// so a restart mid-close records the trade with the right reason.
	ExitReason types.ExitReason       `json:"exit_reason,omitempty"`
	Counters   safety.Counters        `json:"counters"`
	Breaker    safety.BreakerSnapshot `json:"breaker"`
}

// Store persists engine state. Save is called synchronously after
// every state-machine transition.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	AppendTrade(ctx context.Context, trade types.Trade) error
	// ListTradesOn returns trades whose exit fell on the given Eastern
	// day (2006-01-02), oldest first.
	ListTradesOn(ctx context.Context, day string) ([]types.Trade, error)
	// RecentTrades returns the newest trades, newest first.
	RecentTrades(ctx context.Context, limit int) ([]types.Trade, error)
	Close() error
}
