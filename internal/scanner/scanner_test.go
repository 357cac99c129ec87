package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/broker/brokertest"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/metrics"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// Wednesday 09:00 ET, mid-premarket.
var scanRef = time.Date(2025, 6, 4, 9, 0, 0, 0, timeutil.Eastern())

func scanConfig() config.ScanningConfig {
	return config.ScanningConfig{
		TopN: 2,
		Weights: map[string]float64{
			"premarket_volume":     0.3,
			"gap_percent":          0.3,
			"iv_rank":              0.1,
			"option_open_interest": 0.1,
			"atr":                  0.1,
			"news_sentiment":       0.05,
			"news_volume":          0.05,
		},
		Concurrency: 2,
	}
}

func newScanner(t *testing.T, fake *brokertest.Fake, cfg config.ScanningConfig) *Scanner {
	t.Helper()
	s, err := New(fake, cfg, time.Second)
	require.NoError(t, err)
	s.now = func() time.Time { return scanRef }
	return s
}

// volumeBroker serves 1-min premarket bars: symbol-specific per-bar
// volume on the scan day, a flat 100/bar on prior days. Everything
// else stays empty.
func volumeBroker(todayPerBar map[string]float64) *brokertest.Fake {
	return &brokertest.Fake{
		GetBarsFunc: func(_ context.Context, symbol, timeframe string, start, end time.Time, _ int) ([]types.Bar, error) {
			if timeframe != broker.TimeframeMinute {
				return nil, nil
			}
			perBar := 100.0
			if start.In(timeutil.Eastern()).Day() == scanRef.Day() {
				perBar = todayPerBar[symbol]
			}
			var bars []types.Bar
			for ts := start; ts.Before(end); ts = ts.Add(time.Minute) {
				bars = append(bars, types.Bar{Timestamp: ts, Volume: perBar})
			}
			return bars, nil
		},
	}
}

func TestRunRanksByScore(t *testing.T) {
	fake := volumeBroker(map[string]float64{"AAPL": 100, "TSLA": 500, "SPY": 10})
	s := newScanner(t, fake, scanConfig())

	got, err := s.Run(context.Background(), []string{"AAPL", "TSLA", "SPY"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "TSLA", got[0].Symbol)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	for _, sc := range got {
		assert.Len(t, sc.Metrics, 7)
	}
}

func TestRunTiesBreakLexically(t *testing.T) {
	// Identical data for every symbol forces identical scores.
	fake := volumeBroker(map[string]float64{"TSLA": 100, "AAPL": 100, "MSFT": 100})

	cfg := scanConfig()
	cfg.TopN = 3
	s := newScanner(t, fake, cfg)

	got, err := s.Run(context.Background(), []string{"TSLA", "AAPL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "MSFT", got[1].Symbol)
	assert.Equal(t, "TSLA", got[2].Symbol)
}

func TestRunMinVolumeDisqualifies(t *testing.T) {
	fake := volumeBroker(map[string]float64{"AAPL": 1000, "PENNY": 1})

	cfg := scanConfig()
	cfg.MinPremarketVolume = 5000
	s := newScanner(t, fake, cfg)

	got, err := s.Run(context.Background(), []string{"AAPL", "PENNY"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// PENNY totals about 300 shares over the premarket window, far
	// under the threshold, so every metric is zeroed.
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "PENNY", got[1].Symbol)
	assert.Zero(t, got[1].Score)
	for name, v := range got[1].Metrics {
		assert.Zerof(t, v, "metric %s", name)
	}
}

func TestRunFailedSymbolScoresZero(t *testing.T) {
	fake := &brokertest.Fake{
		GetBarsFunc: func(_ context.Context, symbol, timeframe string, start, _ time.Time, _ int) ([]types.Bar, error) {
			if symbol == "BAD" {
				return nil, errors.New("boom")
			}
			return []types.Bar{{Timestamp: start, Volume: 100}}, nil
		},
	}
	s := newScanner(t, fake, scanConfig())
	var failed []string
	s.SetFailureHandler(func(symbol string, err error) {
		failed = append(failed, symbol)
	})

	got, err := s.Run(context.Background(), []string{"BAD", "AAPL"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "BAD", got[1].Symbol)
	assert.Zero(t, got[1].Score)
	assert.Equal(t, metrics.EmptySet(), got[1].Metrics)
	assert.Equal(t, []string{"BAD"}, failed)
}

func TestRunAllSymbolsFailing(t *testing.T) {
	fake := &brokertest.Fake{
		GetBarsFunc: func(context.Context, string, string, time.Time, time.Time, int) ([]types.Bar, error) {
			return nil, errors.New("boom")
		},
	}
	s := newScanner(t, fake, scanConfig())
	failures := 0
	s.SetFailureHandler(func(string, error) { failures++ })

	got, err := s.Run(context.Background(), []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Zero(t, got[0].Score)
	assert.Zero(t, got[1].Score)
	assert.Equal(t, 2, failures)
}

func TestRunEmptyWatchlist(t *testing.T) {
	s := newScanner(t, &brokertest.Fake{}, scanConfig())
	_, err := s.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewRejectsZeroWeights(t *testing.T) {
	cfg := scanConfig()
	cfg.Weights = map[string]float64{"gap_percent": 0}
	_, err := New(&brokertest.Fake{}, cfg, time.Second)
	assert.Error(t, err)
}

func TestCollectUsesChainAndNews(t *testing.T) {
	exp := scanRef.Add(20 * time.Hour)
	fake := volumeBroker(map[string]float64{"AAPL": 100})
	fake.GetOptionChainFunc = func(context.Context, string) ([]types.OptionContract, error) {
		return []types.OptionContract{
			{Expiration: exp, OpenInterest: 30000, ImpliedVol: 0.2},
			{Expiration: exp, OpenInterest: 20000, ImpliedVol: 0.6},
		}, nil
	}
	fake.GetNewsFunc = func(context.Context, string, int) ([]types.NewsArticle, error) {
		return []types.NewsArticle{
			{Headline: "Company posts record profit, shares surge"},
			{Headline: "Analysts upgrade on strong growth"},
		}, nil
	}
	s := newScanner(t, fake, scanConfig())

	got, err := s.Run(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	set := got[0].Metrics
	assert.Equal(t, 50.0, set[metrics.MetricOpenInterest])
	assert.Equal(t, 100.0, set[metrics.MetricIVRank])
	assert.Equal(t, 100.0, set[metrics.MetricNewsSentiment])
	assert.Equal(t, 10.0, set[metrics.MetricNewsVolume])
}
