package types

import (
	"time"
)

// Direction is the side of a trade as seen from the option buyer:
// a bullish signal buys calls, a bearish signal buys puts.
type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
)

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == DirectionCall {
		return DirectionPut
	}
	return DirectionCall
}

func (d Direction) Valid() bool {
	return d == DirectionCall || d == DirectionPut
}

// Bar is a single OHLCV candle.
type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// Quote is a two-sided market quote.
type Quote struct {
	BidPrice  float64   `json:"bid_price"`
	AskPrice  float64   `json:"ask_price"`
	Timestamp time.Time `json:"timestamp"`
}

// Mid returns the midpoint price, falling back to the populated side
// when the quote is one-sided. Returns 0 for an empty quote.
func (q Quote) Mid() float64 {
	switch {
	case q.AskPrice > 0 && q.BidPrice > 0:
		return (q.AskPrice + q.BidPrice) / 2
	case q.AskPrice > 0:
		return q.AskPrice
	case q.BidPrice > 0:
		return q.BidPrice
	default:
		return 0
	}
}

// TwoSided reports whether both bid and ask are usable.
func (q Quote) TwoSided() bool {
	return q.BidPrice > 0 && q.AskPrice > 0
}

// OptionContract describes one listed contract with its latest quote.
// Chains are fetched fresh per selection and never cached across cycles.
type OptionContract struct {
	Symbol       string    `json:"symbol"`
	Underlying   string    `json:"underlying"`
	Strike       float64   `json:"strike"`
	Expiration   time.Time `json:"expiration"`
	Side         Direction `json:"side"`
	Bid          float64   `json:"bid"`
	Ask          float64   `json:"ask"`
	OpenInterest float64   `json:"open_interest"`
	ImpliedVol   float64   `json:"implied_vol,omitempty"`
}

// Mid returns the contract midpoint price with one-sided fallbacks.
func (c OptionContract) Mid() float64 {
	return Quote{BidPrice: c.Bid, AskPrice: c.Ask}.Mid()
}

// DTE returns days to expiration, floored at zero.
func (c OptionContract) DTE(now time.Time) float64 {
	dte := c.Expiration.Sub(now).Hours() / 24
	if dte < 0 {
		return 0
	}
	return dte
}

// MetricSet maps metric name to a normalized value in [0,100].
type MetricSet map[string]float64

// ScoredSymbol is one watchlist entry with its scan result.
type ScoredSymbol struct {
	Symbol  string    `json:"symbol"`
	Metrics MetricSet `json:"metrics"`
	Score   float64   `json:"score"`
}

// Signal is an entry signal from the detector. It lives for one cycle:
// the engine either acts on it immediately or drops it.
type Signal struct {
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	EMAFast   float64   `json:"ema_fast"`
	EMASlow   float64   `json:"ema_slow"`
	RSI       float64   `json:"rsi"`
	Volume    float64   `json:"volume"`
	Reason    string    `json:"reason"`
}

// Position is the single open option position. At most one instance
// exists system-wide at any time.
type Position struct {
	OptionSymbol string    `json:"option_symbol"`
	Underlying   string    `json:"underlying"`
	Direction    Direction `json:"direction"`
	Strike       float64   `json:"strike"`
	Expiration   time.Time `json:"expiration"`
	Quantity     int       `json:"quantity"`
	EntryPrice   float64   `json:"entry_price"`
	EntryTime    time.Time `json:"entry_time"`
	EntryOrderID string    `json:"entry_order_id"`
}

// ExitReason identifies which exit rule closed a position.
type ExitReason string

const (
	ExitProfitTarget ExitReason = "profit_target"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitReversal     ExitReason = "reversal"
	ExitTimeout      ExitReason = "timeout"
	ExitSessionEnd   ExitReason = "session_end"
	ExitForced       ExitReason = "force_close"
)

// Trade is the immutable record of a completed round trip.
type Trade struct {
	ID           string     `json:"id"`
	Underlying   string     `json:"underlying"`
	OptionSymbol string     `json:"option_symbol"`
	Direction    Direction  `json:"direction"`
	Strike       float64    `json:"strike"`
	Expiration   time.Time  `json:"expiration"`
	Quantity     int        `json:"quantity"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    float64    `json:"exit_price"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     time.Time  `json:"exit_time"`
	ExitReason   ExitReason `json:"exit_reason"`
	PnLPct       float64    `json:"pnl_pct"`
	PnLUSD       float64    `json:"pnl_usd"`
}

// Account is the brokerage account snapshot.
type Account struct {
	Cash           float64 `json:"cash"`
	BuyingPower    float64 `json:"buying_power"`
	Equity         float64 `json:"equity"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// OrderStatus mirrors the brokerage order lifecycle.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusPending   OrderStatus = "pending_new"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusReplaced  OrderStatus = "replaced"
	OrderStatusPartially OrderStatus = "partially_filled"
)

// Terminal reports whether the order can no longer fill further.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Order is the brokerage view of a submitted order.
type Order struct {
	ID             string      `json:"id"`
	ClientOrderID  string      `json:"client_order_id"`
	Symbol         string      `json:"symbol"`
	Side           string      `json:"side"`
	Qty            float64     `json:"qty"`
	Status         OrderStatus `json:"status"`
	FilledQty      float64     `json:"filled_qty"`
	FilledAvgPrice float64     `json:"filled_avg_price"`
	SubmittedAt    time.Time   `json:"submitted_at"`
}

// NewsArticle is one headline used by the sentiment metric.
type NewsArticle struct {
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
