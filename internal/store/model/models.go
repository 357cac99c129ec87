// Package model holds the gorm row types for the state store.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// SnapshotModel is the single-row engine snapshot. ID is always 1;
// saves upsert on it.
type SnapshotModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	State         string         `gorm:"column:state"`
	ExitReason    string         `gorm:"column:exit_reason"`
	Position      datatypes.JSON `gorm:"column:position"`
	CountersDay   string         `gorm:"column:counters_day"`
	CountersCount int            `gorm:"column:counters_count"`
	CountersPnL   float64        `gorm:"column:counters_pnl"`
	Breaker       datatypes.JSON `gorm:"column:breaker"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (SnapshotModel) TableName() string { return "engine_snapshot" }

// TradeModel is one completed round trip.
type TradeModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TradeID      string    `gorm:"column:trade_id;uniqueIndex"`
	Underlying   string    `gorm:"column:underlying"`
	OptionSymbol string    `gorm:"column:option_symbol"`
	Direction    string    `gorm:"column:direction"`
	Strike       float64   `gorm:"column:strike"`
	Expiration   time.Time `gorm:"column:expiration"`
	Quantity     int       `gorm:"column:quantity"`
	EntryPrice   float64   `gorm:"column:entry_price"`
	ExitPrice    float64   `gorm:"column:exit_price"`
	EntryTime    time.Time `gorm:"column:entry_time"`
	ExitTime     time.Time `gorm:"column:exit_time"`
	ExitDay      string    `gorm:"column:exit_day;index"`
	ExitReason   string    `gorm:"column:exit_reason"`
	PnLPct       float64   `gorm:"column:pnl_pct"`
	PnLUSD       float64   `gorm:"column:pnl_usd"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "trades" }
