// Package alpaca implements the broker interface against the Alpaca
// trading and market-data REST APIs.
package alpaca

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/config"

	"golang.org/x/time/rate"
)

// Alpaca allows 200 data requests/min on the free feed; stay under it.
const dataRequestsPerMinute = 190

// chainLookaheadDays bounds the option chain fetch. Five days catches
// the weeklies even across a long weekend; the selector narrows to the
// configured DTE afterwards.
const chainLookaheadDays = 5

type Client struct {
	tradingURL *url.URL
	dataURL    *url.URL
	keyID      string
	secretKey  string
	dataFeed   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ broker.Broker = (*Client)(nil)

// NewClient builds a client for the given credential set. The feed
// defaults to iex when unset.
func NewClient(cfg config.AlpacaModeConfig) (*Client, error) {
	tradingURL, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("alpaca: parsing endpoint: %w", err)
	}
	dataURL, err := url.Parse(strings.TrimSpace(cfg.DataEndpoint))
	if err != nil {
		return nil, fmt.Errorf("alpaca: parsing data_endpoint: %w", err)
	}
	feed := strings.TrimSpace(cfg.DataFeed)
	if feed == "" {
		feed = "iex"
	}
	return &Client{
		tradingURL: tradingURL,
		dataURL:    dataURL,
		keyID:      strings.TrimSpace(cfg.APIKeyID),
		secretKey:  strings.TrimSpace(cfg.APISecretKey),
		dataFeed:   feed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(dataRequestsPerMinute)/60, 10),
	}, nil
}

// SetHTTPClient swaps the transport, for tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) get(ctx context.Context, base *url.URL, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, base, path, query, nil)
}

func (c *Client) do(ctx context.Context, method string, base *url.URL, path string, query url.Values, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := *base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("alpaca: building request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alpaca: reading %s response: %w", path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s %s", broker.ErrOrderNotFound, method, path)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("alpaca: %s %s: status %d: %s",
			method, path, resp.StatusCode, truncate(string(payload), 200))
	}
	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func fmtTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
