// Package broker defines the brokerage surface the engine consumes.
// Implementations live in subpackages; the engine only ever sees this
// interface so tests can substitute fakes.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/CodeShali/scalp-bot/internal/types"
)

// Bar timeframes understood by GetBars.
const (
	TimeframeMinute = "1Min"
	TimeframeDay    = "1Day"
)

// Order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// ErrOrderNotFound is returned when an order id is unknown upstream.
var ErrOrderNotFound = errors.New("broker: order not found")

// OrderRequest describes a market order submission. Limit orders are
// intentionally unsupported: the scalper always crosses the spread.
type OrderRequest struct {
	Symbol        string
	Qty           int
	Side          string
	TimeInForce   string
	ClientOrderID string
}

// Broker is the full brokerage contract. Every method blocks on the
// network and must be called with a deadline-carrying context.
type Broker interface {
	// GetBars returns OHLCV bars oldest-first.
	GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]types.Bar, error)
	// GetLatestQuote returns the freshest two-sided stock quote.
	GetLatestQuote(ctx context.Context, symbol string) (types.Quote, error)
	// GetOptionChain returns near-dated contracts for the underlying
	// with their latest quotes attached.
	GetOptionChain(ctx context.Context, underlying string) ([]types.OptionContract, error)
	// GetOptionQuote returns the latest quote for one option symbol.
	GetOptionQuote(ctx context.Context, optionSymbol string) (types.Quote, error)

	SubmitOrder(ctx context.Context, req OrderRequest) (types.Order, error)
	GetOrder(ctx context.Context, orderID string) (types.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	// ClosePosition liquidates the whole brokerage position in symbol.
	ClosePosition(ctx context.Context, symbol string) (types.Order, error)

	GetAccount(ctx context.Context) (types.Account, error)
	IsMarketOpen(ctx context.Context) (bool, error)
	// GetNews returns recent articles for the sentiment metrics.
	GetNews(ctx context.Context, symbol string, limit int) ([]types.NewsArticle, error)
}
