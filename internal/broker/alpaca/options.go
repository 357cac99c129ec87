package alpaca

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/CodeShali/scalp-bot/internal/types"

	"github.com/tidwall/gjson"
)

const quoteBatchSize = 100

// GetOptionChain lists active near-dated contracts for the underlying
// and attaches their latest quotes. Contracts without a quote come back
// with zero bid/ask; the selector discards them.
func (c *Client) GetOptionChain(ctx context.Context, underlying string) ([]types.OptionContract, error) {
	today := time.Now()
	q := url.Values{}
	q.Set("underlying_symbols", underlying)
	q.Set("status", "active")
	q.Set("expiration_date_gte", today.Format("2006-01-02"))
	q.Set("expiration_date_lte", today.AddDate(0, 0, chainLookaheadDays).Format("2006-01-02"))
	q.Set("limit", "200")

	contracts := make([]types.OptionContract, 0, 64)
	pageToken := ""
	for {
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}
		payload, err := c.get(ctx, c.tradingURL, "/v2/options/contracts", q)
		if err != nil {
			return nil, err
		}
		doc := gjson.ParseBytes(payload)
		for _, raw := range doc.Get("option_contracts").Array() {
			contract, ok := parseContract(raw, underlying)
			if !ok {
				continue
			}
			contracts = append(contracts, contract)
		}
		pageToken = doc.Get("next_page_token").String()
		if pageToken == "" {
			break
		}
	}

	if err := c.attachQuotes(ctx, contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

func parseContract(raw gjson.Result, underlying string) (types.OptionContract, bool) {
	symbol := raw.Get("symbol").String()
	if symbol == "" {
		return types.OptionContract{}, false
	}
	expiration, err := time.ParseInLocation("2006-01-02", raw.Get("expiration_date").String(), time.UTC)
	if err != nil {
		return types.OptionContract{}, false
	}
	var side types.Direction
	switch strings.ToLower(raw.Get("type").String()) {
	case "call", "c":
		side = types.DirectionCall
	case "put", "p":
		side = types.DirectionPut
	default:
		return types.OptionContract{}, false
	}
	return types.OptionContract{
		Symbol:       symbol,
		Underlying:   underlying,
		Strike:       raw.Get("strike_price").Float(),
		Expiration:   expiration,
		Side:         side,
		OpenInterest: raw.Get("open_interest").Float(),
		ImpliedVol:   raw.Get("implied_volatility").Float(),
	}, true
}

// attachQuotes fills bid/ask on the contracts in batches.
func (c *Client) attachQuotes(ctx context.Context, contracts []types.OptionContract) error {
	for lo := 0; lo < len(contracts); lo += quoteBatchSize {
		hi := lo + quoteBatchSize
		if hi > len(contracts) {
			hi = len(contracts)
		}
		batch := contracts[lo:hi]
		symbols := make([]string, len(batch))
		for i, contract := range batch {
			symbols[i] = contract.Symbol
		}

		q := url.Values{}
		q.Set("symbols", strings.Join(symbols, ","))
		payload, err := c.get(ctx, c.dataURL, "/v1beta1/options/quotes/latest", q)
		if err != nil {
			return err
		}
		quotes := gjson.GetBytes(payload, "quotes")
		for i := range batch {
			raw := quotes.Get(escapeKey(batch[i].Symbol))
			if !raw.Exists() {
				continue
			}
			batch[i].Bid = raw.Get("bp").Float()
			batch[i].Ask = raw.Get("ap").Float()
		}
	}
	return nil
}

// GetOptionQuote returns the latest quote for a single option symbol.
func (c *Client) GetOptionQuote(ctx context.Context, optionSymbol string) (types.Quote, error) {
	q := url.Values{}
	q.Set("symbols", optionSymbol)
	payload, err := c.get(ctx, c.dataURL, "/v1beta1/options/quotes/latest", q)
	if err != nil {
		return types.Quote{}, err
	}
	raw := gjson.GetBytes(payload, "quotes."+escapeKey(optionSymbol))
	if !raw.Exists() {
		return types.Quote{}, nil
	}
	ts, _ := time.Parse(time.RFC3339, raw.Get("t").String())
	return types.Quote{
		BidPrice:  raw.Get("bp").Float(),
		AskPrice:  raw.Get("ap").Float(),
		Timestamp: ts,
	}, nil
}

// escapeKey protects gjson path metacharacters in OCC symbols.
func escapeKey(key string) string {
	replacer := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return replacer.Replace(key)
}
