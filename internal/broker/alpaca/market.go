package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/CodeShali/scalp-bot/internal/types"

	"github.com/tidwall/gjson"
)

// GetBars fetches OHLCV bars for symbol, following the pagination
// token until limit (or the range) is exhausted. Bars come back
// oldest-first.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]types.Bar, error) {
	out := make([]types.Bar, 0, limit)
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("timeframe", timeframe)
		q.Set("start", fmtTime(start))
		if !end.IsZero() {
			q.Set("end", fmtTime(end))
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit-len(out)))
		}
		q.Set("adjustment", "raw")
		q.Set("feed", c.dataFeed)
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}

		payload, err := c.get(ctx, c.dataURL, "/v2/stocks/"+symbol+"/bars", q)
		if err != nil {
			return nil, err
		}
		doc := gjson.ParseBytes(payload)
		for _, raw := range doc.Get("bars").Array() {
			bar, err := parseBar(raw)
			if err != nil {
				return nil, fmt.Errorf("alpaca: bars for %s: %w", symbol, err)
			}
			out = append(out, bar)
		}
		pageToken = doc.Get("next_page_token").String()
		if pageToken == "" || (limit > 0 && len(out) >= limit) {
			break
		}
	}
	return out, nil
}

func parseBar(raw gjson.Result) (types.Bar, error) {
	ts, err := time.Parse(time.RFC3339, raw.Get("t").String())
	if err != nil {
		return types.Bar{}, fmt.Errorf("bad bar timestamp %q: %w", raw.Get("t").String(), err)
	}
	return types.Bar{
		Timestamp: ts,
		Open:      raw.Get("o").Float(),
		High:      raw.Get("h").Float(),
		Low:       raw.Get("l").Float(),
		Close:     raw.Get("c").Float(),
		Volume:    raw.Get("v").Float(),
	}, nil
}

// GetLatestQuote returns the freshest NBBO quote for a stock symbol.
func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (types.Quote, error) {
	q := url.Values{}
	q.Set("feed", c.dataFeed)
	payload, err := c.get(ctx, c.dataURL, "/v2/stocks/"+symbol+"/quotes/latest", q)
	if err != nil {
		return types.Quote{}, err
	}
	doc := gjson.GetBytes(payload, "quote")
	if !doc.Exists() {
		return types.Quote{}, fmt.Errorf("alpaca: no quote for %s", symbol)
	}
	ts, _ := time.Parse(time.RFC3339, doc.Get("t").String())
	return types.Quote{
		BidPrice:  doc.Get("bp").Float(),
		AskPrice:  doc.Get("ap").Float(),
		Timestamp: ts,
	}, nil
}

// GetNews returns articles from the last 24 hours, newest first.
func (c *Client) GetNews(ctx context.Context, symbol string, limit int) ([]types.NewsArticle, error) {
	now := time.Now()
	q := url.Values{}
	q.Set("symbols", symbol)
	q.Set("start", fmtTime(now.Add(-24*time.Hour)))
	q.Set("end", fmtTime(now))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	payload, err := c.get(ctx, c.dataURL, "/v1beta1/news", q)
	if err != nil {
		return nil, err
	}
	var out []types.NewsArticle
	for _, raw := range gjson.GetBytes(payload, "news").Array() {
		created, _ := time.Parse(time.RFC3339, raw.Get("created_at").String())
		out = append(out, types.NewsArticle{
			Headline:  raw.Get("headline").String(),
			Summary:   raw.Get("summary").String(),
			CreatedAt: created,
		})
	}
	return out, nil
}
