// Package brokertest provides a configurable in-memory Broker for
// tests. Every method delegates to an optional func field; unset
// fields return zero values without error.
package brokertest

import (
	"context"
	"sync"
	"time"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// Fake implements broker.Broker. Set the func fields you need; the
// Calls map counts invocations per method name.
type Fake struct {
	mu    sync.Mutex
	calls map[string]int

	GetBarsFunc        func(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]types.Bar, error)
	GetLatestQuoteFunc func(ctx context.Context, symbol string) (types.Quote, error)
	GetOptionChainFunc func(ctx context.Context, underlying string) ([]types.OptionContract, error)
	GetOptionQuoteFunc func(ctx context.Context, optionSymbol string) (types.Quote, error)
	SubmitOrderFunc    func(ctx context.Context, req broker.OrderRequest) (types.Order, error)
	GetOrderFunc       func(ctx context.Context, orderID string) (types.Order, error)
	CancelOrderFunc    func(ctx context.Context, orderID string) error
	ClosePositionFunc  func(ctx context.Context, symbol string) (types.Order, error)
	GetAccountFunc     func(ctx context.Context) (types.Account, error)
	IsMarketOpenFunc   func(ctx context.Context) (bool, error)
	GetNewsFunc        func(ctx context.Context, symbol string, limit int) ([]types.NewsArticle, error)
}

var _ broker.Broker = (*Fake)(nil)

func (f *Fake) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

// Calls returns how many times method has been invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]types.Bar, error) {
	f.record("GetBars")
	if f.GetBarsFunc != nil {
		return f.GetBarsFunc(ctx, symbol, timeframe, start, end, limit)
	}
	return nil, nil
}

func (f *Fake) GetLatestQuote(ctx context.Context, symbol string) (types.Quote, error) {
	f.record("GetLatestQuote")
	if f.GetLatestQuoteFunc != nil {
		return f.GetLatestQuoteFunc(ctx, symbol)
	}
	return types.Quote{}, nil
}

func (f *Fake) GetOptionChain(ctx context.Context, underlying string) ([]types.OptionContract, error) {
	f.record("GetOptionChain")
	if f.GetOptionChainFunc != nil {
		return f.GetOptionChainFunc(ctx, underlying)
	}
	return nil, nil
}

func (f *Fake) GetOptionQuote(ctx context.Context, optionSymbol string) (types.Quote, error) {
	f.record("GetOptionQuote")
	if f.GetOptionQuoteFunc != nil {
		return f.GetOptionQuoteFunc(ctx, optionSymbol)
	}
	return types.Quote{}, nil
}

func (f *Fake) SubmitOrder(ctx context.Context, req broker.OrderRequest) (types.Order, error) {
	f.record("SubmitOrder")
	if f.SubmitOrderFunc != nil {
		return f.SubmitOrderFunc(ctx, req)
	}
	return types.Order{}, nil
}

func (f *Fake) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	f.record("GetOrder")
	if f.GetOrderFunc != nil {
		return f.GetOrderFunc(ctx, orderID)
	}
	return types.Order{}, nil
}

func (f *Fake) CancelOrder(ctx context.Context, orderID string) error {
	f.record("CancelOrder")
	if f.CancelOrderFunc != nil {
		return f.CancelOrderFunc(ctx, orderID)
	}
	return nil
}

func (f *Fake) ClosePosition(ctx context.Context, symbol string) (types.Order, error) {
	f.record("ClosePosition")
	if f.ClosePositionFunc != nil {
		return f.ClosePositionFunc(ctx, symbol)
	}
	return types.Order{}, nil
}

func (f *Fake) GetAccount(ctx context.Context) (types.Account, error) {
	f.record("GetAccount")
	if f.GetAccountFunc != nil {
		return f.GetAccountFunc(ctx)
	}
	return types.Account{}, nil
}

func (f *Fake) IsMarketOpen(ctx context.Context) (bool, error) {
	f.record("IsMarketOpen")
	if f.IsMarketOpenFunc != nil {
		return f.IsMarketOpenFunc(ctx)
	}
	return true, nil
}

func (f *Fake) GetNews(ctx context.Context, symbol string, limit int) ([]types.NewsArticle, error) {
	f.record("GetNews")
	if f.GetNewsFunc != nil {
		return f.GetNewsFunc(ctx, symbol, limit)
	}
	return nil, nil
}
