// Package executor submits market orders and waits for fills. Entries
// size themselves from account cash; exits always flatten the whole
// position.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// Options settle per 100 shares of the underlying.
// ContractMultiplier is the share count behind one equity option
// contract.
const ContractMultiplier = 100

var (
	// ErrInsufficientCapital means the risk budget cannot buy even one
	// contract. The caller treats it as a no-op, not a failure.
	ErrInsufficientCapital = errors.New("executor: insufficient capital for one contract")
	// ErrFillTimeout means the order did not fill in time and was
	// canceled.
	ErrFillTimeout = errors.New("executor: order not filled before timeout")
)

// Fill is the realized result of an order.
type Fill struct {
	OrderID  string
	Symbol   string
	Qty      int
	Price    float64
	FilledAt time.Time
}

// Executor wraps the brokerage order flow.
type Executor struct {
	broker broker.Broker
	cfg    config.TradingConfig
	newID  func() string
}

func New(b broker.Broker, cfg config.TradingConfig) *Executor {
	return &Executor{
		broker: b,
		cfg:    cfg,
		newID:  uuid.NewString,
	}
}

// Quantity sizes an entry: floor of the per-trade risk budget divided
// by the full contract cost. Zero means skip the trade.
func (e *Executor) Quantity(cash, askPrice float64) int {
	if askPrice <= 0 || cash <= 0 {
		return 0
	}
	riskCapital := cash * e.cfg.MaxRiskPct
	return int(math.Floor(riskCapital / (askPrice * ContractMultiplier)))
}

// BuyToOpen buys the contract at market, sized from the current cash
// balance, and waits for the fill. Returns ErrInsufficientCapital when
// the budget floors to zero contracts.
func (e *Executor) BuyToOpen(ctx context.Context, contract types.OptionContract) (Fill, error) {
	acct, err := e.account(ctx)
	if err != nil {
		return Fill{}, err
	}
	qty := e.Quantity(acct.Cash, contract.Ask)
	if qty <= 0 {
		logger.Warnf("executor: cash %.2f cannot cover %s at %.2f", acct.Cash, contract.Symbol, contract.Ask)
		return Fill{}, ErrInsufficientCapital
	}

	logger.Infof("executor: buying %dx %s at ~%.2f", qty, contract.Symbol, contract.Ask)
	return e.submitAndWait(ctx, broker.OrderRequest{
		Symbol:        contract.Symbol,
		Qty:           qty,
		Side:          broker.SideBuy,
		TimeInForce:   "day",
		ClientOrderID: e.newID(),
	}, contract.Ask)
}

// SellToClose flattens the position at market and waits for the fill.
func (e *Executor) SellToClose(ctx context.Context, pos types.Position) (Fill, error) {
	logger.Infof("executor: selling %dx %s", pos.Quantity, pos.OptionSymbol)
	return e.submitAndWait(ctx, broker.OrderRequest{
		Symbol:        pos.OptionSymbol,
		Qty:           pos.Quantity,
		Side:          broker.SideSell,
		TimeInForce:   "day",
		ClientOrderID: e.newID(),
	}, 0)
}

func (e *Executor) account(ctx context.Context) (types.Account, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.BrokerTimeout())
	defer cancel()
	acct, err := e.broker.GetAccount(cctx)
	if err != nil {
		return types.Account{}, fmt.Errorf("executor: account: %w", err)
	}
	return acct, nil
}

// submitAndWait submits req and polls until the order settles. A stuck
// order is canceled at the deadline; if the cancel races a fill, the
// fill wins.
func (e *Executor) submitAndWait(ctx context.Context, req broker.OrderRequest, fallbackPrice float64) (Fill, error) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.BrokerTimeout())
	order, err := e.broker.SubmitOrder(sctx, req)
	cancel()
	if err != nil {
		return Fill{}, fmt.Errorf("executor: submit %s %s: %w", req.Side, req.Symbol, err)
	}

	final, err := e.waitForFill(ctx, order.ID)
	if err != nil {
		return Fill{}, err
	}
	price := final.FilledAvgPrice
	if price <= 0 {
		price = fallbackPrice
	}
	fill := Fill{
		OrderID:  final.ID,
		Symbol:   req.Symbol,
		Qty:      int(final.FilledQty),
		Price:    price,
		FilledAt: time.Now().UTC(),
	}
	logger.Infof("executor: filled %dx %s at %.2f", fill.Qty, fill.Symbol, fill.Price)
	return fill, nil
}

func (e *Executor) waitForFill(ctx context.Context, orderID string) (types.Order, error) {
	deadline := time.Now().Add(e.cfg.FillTimeout())
	ticker := time.NewTicker(e.cfg.FillPoll())
	defer ticker.Stop()

	for {
		order, err := e.getOrder(ctx, orderID)
		if err != nil {
			logger.Warnf("executor: poll order %s: %v", orderID, err)
		} else {
			switch order.Status {
			case types.OrderStatusFilled:
				return order, nil
			case types.OrderStatusCanceled, types.OrderStatusRejected, types.OrderStatusExpired:
				return types.Order{}, fmt.Errorf("executor: order %s ended %s", orderID, order.Status)
			}
		}

		if time.Now().After(deadline) {
			return e.cancelStuck(ctx, orderID)
		}
		select {
		case <-ctx.Done():
			// Shutdown must not orphan a live order.
			return e.cancelStuck(context.WithoutCancel(ctx), orderID)
		case <-ticker.C:
		}
	}
}

// cancelStuck cancels a timed-out order, then re-reads it once: a fill
// that raced the cancel is still a fill.
func (e *Executor) cancelStuck(ctx context.Context, orderID string) (types.Order, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.BrokerTimeout())
	defer cancel()
	if err := e.broker.CancelOrder(cctx, orderID); err != nil && !errors.Is(err, broker.ErrOrderNotFound) {
		logger.Errorf("executor: cancel order %s: %v", orderID, err)
	}
	order, err := e.getOrder(ctx, orderID)
	if err == nil && order.Status == types.OrderStatusFilled {
		logger.Warnf("executor: order %s filled during cancel", orderID)
		return order, nil
	}
	return types.Order{}, ErrFillTimeout
}

func (e *Executor) getOrder(ctx context.Context, orderID string) (types.Order, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.BrokerTimeout())
	defer cancel()
	return e.broker.GetOrder(cctx, orderID)
}
