// Package scanner implements the pre-market watchlist scan. Each
// symbol is scored from normalized metrics and the top entries become
// the day's trading candidates.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/metrics"
	"github.com/CodeShali/scalp-bot/internal/news"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/types"
)

const (
	avgPremarketDays = 5
	dailyBarsDays    = 40
	atrPeriod        = 14
	newsFetchLimit   = 50
)

// Scanner scores watchlist symbols from pre-market data.
type Scanner struct {
	broker    broker.Broker
	cfg       config.ScanningConfig
	weights   map[string]float64
	timeout   time.Duration
	now       func() time.Time
	onFailure func(symbol string, err error)
}

// SetFailureHandler installs a callback fired for every symbol whose
// data fetch fails during a scan.
func (s *Scanner) SetFailureHandler(fn func(symbol string, err error)) {
	s.onFailure = fn
}

// New builds a Scanner. The raw weights are normalized once here so a
// bad weight table fails at startup, not at 8:30 in the morning.
func New(b broker.Broker, cfg config.ScanningConfig, brokerTimeout time.Duration) (*Scanner, error) {
	weights, err := cfg.NormalizedWeights()
	if err != nil {
		return nil, err
	}
	if brokerTimeout <= 0 {
		brokerTimeout = 10 * time.Second
	}
	return &Scanner{
		broker:  b,
		cfg:     cfg,
		weights: weights,
		timeout: brokerTimeout,
		now:     timeutil.EasternNow,
	}, nil
}

// Run scans the watchlist concurrently and returns the top candidates
// sorted by score descending, symbol ascending on ties. A symbol whose
// data cannot be fetched stays in the ranking with score zero, so the
// result is stable and the failure is visible; the failure handler
// fires for each one.
func (s *Scanner) Run(ctx context.Context, watchlist []string) ([]types.ScoredSymbol, error) {
	if len(watchlist) == 0 {
		return nil, fmt.Errorf("scanner: watchlist is empty")
	}
	now := s.now()
	logger.Infof("starting pre-market scan for %d symbols", len(watchlist))

	var (
		mu     sync.Mutex
		scored []types.ScoredSymbol
	)
	g, gctx := errgroup.WithContext(ctx)
	limit := s.cfg.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for _, symbol := range watchlist {
		symbol := symbol
		g.Go(func() error {
			set, err := s.collect(gctx, symbol, now)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warnf("scan: %s data fetch failed, scoring 0: %v", symbol, err)
				if s.onFailure != nil {
					s.onFailure(symbol, err)
				}
				mu.Lock()
				scored = append(scored, types.ScoredSymbol{Symbol: symbol, Metrics: metrics.EmptySet()})
				mu.Unlock()
				return nil
			}
			score := metrics.WeightedScore(set, s.weights)
			mu.Lock()
			scored = append(scored, types.ScoredSymbol{Symbol: symbol, Metrics: set, Score: score})
			mu.Unlock()
			logger.Debugf("scan: %s score=%.4f metrics=%v", symbol, score, set)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Symbol < scored[j].Symbol
	})

	topN := s.cfg.TopN
	if topN <= 0 || topN > len(scored) {
		topN = len(scored)
	}
	result := scored[:topN]
	logger.Infof("scan complete: top candidate %s (score %.4f)", result[0].Symbol, result[0].Score)
	return result, nil
}

// collect computes the full metric set for one symbol. Failures in
// auxiliary sources (chain, news) degrade to neutral values; only a
// failed volume fetch fails the symbol outright.
func (s *Scanner) collect(ctx context.Context, symbol string, now time.Time) (types.MetricSet, error) {
	premarketVol, err := s.premarketVolume(ctx, symbol, now)
	if err != nil {
		return nil, fmt.Errorf("premarket volume: %w", err)
	}
	avgVol := s.averagePremarketVolume(ctx, symbol, now)
	ratio := metrics.VolumeRatio(premarketVol, avgVol)

	dailyBars, err := s.dailyBars(ctx, symbol, now)
	if err != nil {
		logger.Warnf("scan: %s daily bars: %v", symbol, err)
	}
	gap := metrics.GapPercent(dailyBars)
	atr := metrics.ATR(dailyBars, atrPeriod)

	ivRank := 50.0
	var openInterest float64
	chain, err := s.optionChain(ctx, symbol)
	if err != nil {
		logger.Warnf("scan: %s option chain: %v", symbol, err)
	} else {
		ivRank = metrics.ChainIVRank(chain)
		openInterest = metrics.NearTermOpenInterest(chain, now)
	}

	sentiment, articleCount := s.newsSentiment(ctx, symbol)

	set := types.MetricSet{
		metrics.MetricPremarketVolume: metrics.NormPremarketVolume(ratio),
		metrics.MetricGapPercent:      metrics.NormGapPercent(gap),
		metrics.MetricIVRank:          ivRank,
		metrics.MetricOpenInterest:    metrics.NormOpenInterest(openInterest),
		metrics.MetricATR:             metrics.NormATR(atr),
		metrics.MetricNewsSentiment:   metrics.NormNewsSentiment(sentiment),
		metrics.MetricNewsVolume:      metrics.NormNewsVolume(articleCount),
	}

	// The minimum-volume threshold is a hard disqualifier: the symbol
	// keeps its metric keys but scores zero everywhere.
	if s.cfg.MinPremarketVolume > 0 && premarketVol < s.cfg.MinPremarketVolume {
		logger.Debugf("scan: %s disqualified, premarket volume %.0f below %.0f",
			symbol, premarketVol, s.cfg.MinPremarketVolume)
		return metrics.Zeroed(set), nil
	}
	return set, nil
}

// premarketVolume sums 1-minute volume between 04:00 ET and 09:30 ET
// on the trading day containing ref.
func (s *Scanner) premarketVolume(ctx context.Context, symbol string, ref time.Time) (float64, error) {
	day := ref.In(timeutil.Eastern())
	start := time.Date(day.Year(), day.Month(), day.Day(), 4, 0, 0, 0, timeutil.Eastern())
	end := time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, timeutil.Eastern())
	if ref.Before(end) {
		end = ref
	}
	if !end.After(start) {
		return 0, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	bars, err := s.broker.GetBars(cctx, symbol, broker.TimeframeMinute, start, end, 0)
	if err != nil {
		return 0, err
	}
	var total float64
	open := time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, timeutil.Eastern())
	for _, b := range bars {
		if b.Timestamp.In(timeutil.Eastern()).Before(open) {
			total += b.Volume
		}
	}
	return total, nil
}

// averagePremarketVolume averages the premarket volume over the prior
// trading days. Individual day failures are skipped; no usable history
// returns 0, which VolumeRatio treats as neutral.
func (s *Scanner) averagePremarketVolume(ctx context.Context, symbol string, ref time.Time) float64 {
	var (
		total float64
		count int
	)
	day := ref.In(timeutil.Eastern())
	for count < avgPremarketDays {
		day = day.AddDate(0, 0, -1)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		// Anchor at the session open so the whole premarket window is
		// in range.
		anchor := time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, timeutil.Eastern())
		vol, err := s.premarketVolume(ctx, symbol, anchor)
		if err != nil {
			logger.Debugf("scan: %s premarket volume on %s: %v", symbol, day.Format("2006-01-02"), err)
			if ctx.Err() != nil {
				return 0
			}
		} else {
			total += vol
		}
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func (s *Scanner) dailyBars(ctx context.Context, symbol string, ref time.Time) ([]types.Bar, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := ref.AddDate(0, 0, -dailyBarsDays)
	return s.broker.GetBars(cctx, symbol, broker.TimeframeDay, start, ref, 0)
}

func (s *Scanner) optionChain(ctx context.Context, symbol string) ([]types.OptionContract, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.broker.GetOptionChain(cctx, symbol)
}

func (s *Scanner) newsSentiment(ctx context.Context, symbol string) (float64, int) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	articles, err := s.broker.GetNews(cctx, symbol, newsFetchLimit)
	if err != nil {
		logger.Warnf("scan: %s news: %v", symbol, err)
		return 0, 0
	}
	return news.Score(articles)
}
