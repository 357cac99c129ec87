package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/safety"
	"github.com/CodeShali/scalp-bot/internal/store"
	"github.com/CodeShali/scalp-bot/internal/types"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.StateNoPosition, snap.State)
	assert.Nil(t, snap.Position)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := time.Date(2025, 6, 4, 10, 5, 0, 0, time.UTC)
	snap := store.Snapshot{
		State:      store.StateClosing,
		ExitReason: types.ExitStopLoss,
		Position: &types.Position{
			OptionSymbol: "SPY250604C00600000",
			Underlying:   "SPY",
			Direction:    types.DirectionCall,
			Strike:       600,
			Expiration:   entry.Add(6 * time.Hour),
			Quantity:     2,
			EntryPrice:   3.45,
			EntryTime:    entry,
			EntryOrderID: "ord-1",
		},
		Counters: safety.Counters{Day: "2025-06-04", Trades: 2, PnLPct: -0.03},
		Breaker:  safety.BreakerSnapshot{Open: true, Failures: []time.Time{entry}},
	}
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.State, got.State)
	assert.Equal(t, snap.ExitReason, got.ExitReason)
	require.NotNil(t, got.Position)
	assert.Equal(t, snap.Position.OptionSymbol, got.Position.OptionSymbol)
	assert.Equal(t, snap.Position.EntryPrice, got.Position.EntryPrice)
	assert.True(t, snap.Position.EntryTime.Equal(got.Position.EntryTime))
	assert.Equal(t, snap.Counters, got.Counters)
	assert.True(t, got.Breaker.Open)
	require.Len(t, got.Breaker.Failures, 1)
}

func TestSaveOverwritesSingleRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, store.Snapshot{State: store.StateOpen}))
	require.NoError(t, s.Save(ctx, store.Snapshot{State: store.StateNoPosition}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.StateNoPosition, got.State)
	assert.Nil(t, got.Position)
}

func sampleTrade(id string, exit time.Time, pnlPct float64) types.Trade {
	return types.Trade{
		ID:           id,
		Underlying:   "SPY",
		OptionSymbol: "SPY250604C00600000",
		Direction:    types.DirectionCall,
		Strike:       600,
		Quantity:     2,
		EntryPrice:   3.45,
		ExitPrice:    3.97,
		EntryTime:    exit.Add(-10 * time.Minute),
		ExitTime:     exit,
		ExitReason:   types.ExitProfitTarget,
		PnLPct:       pnlPct,
		PnLUSD:       pnlPct * 3.45 * 200,
	}
}

func TestAppendAndListTrades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day1 := time.Date(2025, 6, 4, 15, 0, 0, 0, timeutil.Eastern())
	day2 := day1.Add(24 * time.Hour)
	require.NoError(t, s.AppendTrade(ctx, sampleTrade("t1", day1, 0.15)))
	require.NoError(t, s.AppendTrade(ctx, sampleTrade("t2", day1.Add(30*time.Minute), -0.07)))
	require.NoError(t, s.AppendTrade(ctx, sampleTrade("t3", day2, 0.02)))

	trades, err := s.ListTradesOn(ctx, "2025-06-04")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "t1", trades[0].ID)
	assert.Equal(t, "t2", trades[1].ID)
	assert.Equal(t, types.ExitProfitTarget, trades[0].ExitReason)

	recent, err := s.RecentTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "t3", recent[0].ID)
}

func TestAppendTradeIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exit := time.Date(2025, 6, 4, 15, 0, 0, 0, timeutil.Eastern())
	require.NoError(t, s.AppendTrade(ctx, sampleTrade("t1", exit, 0.15)))
	require.NoError(t, s.AppendTrade(ctx, sampleTrade("t1", exit, 0.15)))

	trades, err := s.ListTradesOn(ctx, "2025-06-04")
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}
