// Package gormstore persists engine state in SQLite through gorm.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/safety"
	"github.com/CodeShali/scalp-bot/internal/store"
	"github.com/CodeShali/scalp-bot/internal/store/model"
	"github.com/CodeShali/scalp-bot/internal/types"
)

const snapshotRowID = 1

// GormStore implements store.Store on SQLite.
type GormStore struct {
	db *gorm.DB
}

var _ store.Store = (*GormStore)(nil)

// New opens (creating if needed) the SQLite database at path.
func New(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: path must not be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.SnapshotModel{}, &model.TradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for HTTP reads without lock
	// contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load returns the persisted snapshot, or a clean NO_POSITION snapshot
// when none has been saved yet.
func (s *GormStore) Load(ctx context.Context) (store.Snapshot, error) {
	var row model.SnapshotModel
	err := s.db.WithContext(ctx).First(&row, snapshotRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Snapshot{State: store.StateNoPosition}, nil
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("gorm store: load snapshot: %w", err)
	}

	snap := store.Snapshot{
		State:      store.PositionState(row.State),
		ExitReason: types.ExitReason(row.ExitReason),
		Counters: safety.Counters{
			Day:    row.CountersDay,
			Trades: row.CountersCount,
			PnLPct: row.CountersPnL,
		},
	}
	if len(row.Position) > 0 && string(row.Position) != "null" {
		var pos types.Position
		if err := json.Unmarshal(row.Position, &pos); err != nil {
			return store.Snapshot{}, fmt.Errorf("gorm store: decode position: %w", err)
		}
		snap.Position = &pos
	}
	if len(row.Breaker) > 0 {
		if err := json.Unmarshal(row.Breaker, &snap.Breaker); err != nil {
			return store.Snapshot{}, fmt.Errorf("gorm store: decode breaker: %w", err)
		}
	}
	if snap.State == "" {
		snap.State = store.StateNoPosition
	}
	return snap, nil
}

// Save upserts the single snapshot row.
func (s *GormStore) Save(ctx context.Context, snap store.Snapshot) error {
	posJSON := datatypes.JSON("null")
	if snap.Position != nil {
		raw, err := json.Marshal(snap.Position)
		if err != nil {
			return fmt.Errorf("gorm store: encode position: %w", err)
		}
		posJSON = datatypes.JSON(raw)
	}
	brkJSON, err := json.Marshal(snap.Breaker)
	if err != nil {
		return fmt.Errorf("gorm store: encode breaker: %w", err)
	}

	row := model.SnapshotModel{
		ID:            snapshotRowID,
		State:         string(snap.State),
		ExitReason:    string(snap.ExitReason),
		Position:      posJSON,
		CountersDay:   snap.Counters.Day,
		CountersCount: snap.Counters.Trades,
		CountersPnL:   snap.Counters.PnLPct,
		Breaker:       datatypes.JSON(brkJSON),
		UpdatedAtUnix: time.Now().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// AppendTrade inserts one trade record. Re-appending the same trade id
// upserts rather than duplicating, so a retried persist is harmless.
func (s *GormStore) AppendTrade(ctx context.Context, trade types.Trade) error {
	row := model.TradeModel{
		TradeID:      trade.ID,
		Underlying:   trade.Underlying,
		OptionSymbol: trade.OptionSymbol,
		Direction:    string(trade.Direction),
		Strike:       trade.Strike,
		Expiration:   trade.Expiration,
		Quantity:     trade.Quantity,
		EntryPrice:   trade.EntryPrice,
		ExitPrice:    trade.ExitPrice,
		EntryTime:    trade.EntryTime,
		ExitTime:     trade.ExitTime,
		ExitDay:      exitDay(trade.ExitTime),
		ExitReason:   string(trade.ExitReason),
		PnLPct:       trade.PnLPct,
		PnLUSD:       trade.PnLUSD,
		CreatedAt:    time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// ListTradesOn returns the trades exited on the given Eastern day,
// oldest first.
func (s *GormStore) ListTradesOn(ctx context.Context, day string) ([]types.Trade, error) {
	var rows []model.TradeModel
	if err := s.db.WithContext(ctx).
		Where("exit_day = ?", day).
		Order("exit_time ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toTrades(rows), nil
}

// RecentTrades returns the newest trades, newest first.
func (s *GormStore) RecentTrades(ctx context.Context, limit int) ([]types.Trade, error) {
	var rows []model.TradeModel
	q := s.db.WithContext(ctx).Order("exit_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toTrades(rows), nil
}

func toTrades(rows []model.TradeModel) []types.Trade {
	out := make([]types.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Trade{
			ID:           r.TradeID,
			Underlying:   r.Underlying,
			OptionSymbol: r.OptionSymbol,
			Direction:    types.Direction(r.Direction),
			Strike:       r.Strike,
			Expiration:   r.Expiration,
			Quantity:     r.Quantity,
			EntryPrice:   r.EntryPrice,
			ExitPrice:    r.ExitPrice,
			EntryTime:    r.EntryTime,
			ExitTime:     r.ExitTime,
			ExitReason:   types.ExitReason(r.ExitReason),
			PnLPct:       r.PnLPct,
			PnLUSD:       r.PnLUSD,
		})
	}
	return out
}

func exitDay(t time.Time) string {
	return t.In(timeutil.Eastern()).Format("2006-01-02")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
