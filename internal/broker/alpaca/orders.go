package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/types"

	"github.com/tidwall/gjson"
)

// SubmitOrder places a market order.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (types.Order, error) {
	if req.Qty <= 0 {
		return types.Order{}, fmt.Errorf("alpaca: order qty must be > 0, got %d", req.Qty)
	}
	tif := req.TimeInForce
	if tif == "" {
		tif = "day"
	}
	body, err := json.Marshal(map[string]any{
		"symbol":          req.Symbol,
		"qty":             fmt.Sprintf("%d", req.Qty),
		"side":            req.Side,
		"type":            "market",
		"time_in_force":   tif,
		"client_order_id": req.ClientOrderID,
	})
	if err != nil {
		return types.Order{}, fmt.Errorf("alpaca: encoding order: %w", err)
	}
	payload, err := c.do(ctx, http.MethodPost, c.tradingURL, "/v2/orders", nil, body)
	if err != nil {
		return types.Order{}, err
	}
	return parseOrder(gjson.ParseBytes(payload)), nil
}

// GetOrder fetches the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (types.Order, error) {
	payload, err := c.get(ctx, c.tradingURL, "/v2/orders/"+orderID, nil)
	if err != nil {
		return types.Order{}, err
	}
	return parseOrder(gjson.ParseBytes(payload)), nil
}

// CancelOrder cancels a pending order. Canceling an already-terminal
// order is not an error.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.tradingURL, "/v2/orders/"+orderID, nil, nil)
	return err
}

// ClosePosition liquidates the entire brokerage position in symbol and
// returns the closing order.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (types.Order, error) {
	payload, err := c.do(ctx, http.MethodDelete, c.tradingURL, "/v2/positions/"+symbol, nil, nil)
	if err != nil {
		return types.Order{}, err
	}
	return parseOrder(gjson.ParseBytes(payload)), nil
}

// GetAccount returns the cash and buying-power snapshot.
func (c *Client) GetAccount(ctx context.Context) (types.Account, error) {
	payload, err := c.get(ctx, c.tradingURL, "/v2/account", nil)
	if err != nil {
		return types.Account{}, err
	}
	doc := gjson.ParseBytes(payload)
	return types.Account{
		Cash:           doc.Get("cash").Float(),
		BuyingPower:    doc.Get("buying_power").Float(),
		Equity:         doc.Get("equity").Float(),
		PortfolioValue: doc.Get("portfolio_value").Float(),
	}, nil
}

// IsMarketOpen consults the exchange clock.
func (c *Client) IsMarketOpen(ctx context.Context) (bool, error) {
	payload, err := c.get(ctx, c.tradingURL, "/v2/clock", nil)
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(payload, "is_open").Bool(), nil
}

func parseOrder(doc gjson.Result) types.Order {
	submitted, _ := time.Parse(time.RFC3339, doc.Get("submitted_at").String())
	return types.Order{
		ID:             doc.Get("id").String(),
		ClientOrderID:  doc.Get("client_order_id").String(),
		Symbol:         doc.Get("symbol").String(),
		Side:           doc.Get("side").String(),
		Qty:            doc.Get("qty").Float(),
		Status:         types.OrderStatus(doc.Get("status").String()),
		FilledQty:      doc.Get("filled_qty").Float(),
		FilledAvgPrice: doc.Get("filled_avg_price").Float(),
		SubmittedAt:    submitted,
	}
}
