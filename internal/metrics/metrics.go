// Package metrics holds the pure per-symbol scan computations. Every
// function takes already-fetched data and returns a value normalized to
// the [0,100] scoring scale; nothing in here touches the network.
package metrics

import (
	"time"

	"github.com/CodeShali/scalp-bot/internal/types"

	talib "github.com/markcheno/go-talib"
)

// Metric names as they appear in MetricSet and scanning.weights.
const (
	MetricPremarketVolume = "premarket_volume"
	MetricGapPercent      = "gap_percent"
	MetricIVRank          = "iv_rank"
	MetricOpenInterest    = "option_open_interest"
	MetricATR             = "atr"
	MetricNewsSentiment   = "news_sentiment"
	MetricNewsVolume      = "news_volume"
)

// EmptySet returns a MetricSet with every recognized metric at zero,
// for symbols whose data could not be fetched at all.
func EmptySet() types.MetricSet {
	return types.MetricSet{
		MetricPremarketVolume: 0,
		MetricGapPercent:      0,
		MetricIVRank:          0,
		MetricOpenInterest:    0,
		MetricATR:             0,
		MetricNewsSentiment:   0,
		MetricNewsVolume:      0,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// VolumeRatio compares today's pre-market volume to its trailing
// average. A missing history reads as neutral 1.0 rather than zero so
// thin symbols are not artificially rewarded or punished.
func VolumeRatio(premarketVolume, avgPremarketVolume float64) float64 {
	if avgPremarketVolume <= 0 {
		return 1.0
	}
	return premarketVolume / avgPremarketVolume
}

// NormPremarketVolume scales a volume ratio onto [0,100]; a 2x ratio
// saturates the metric.
func NormPremarketVolume(ratio float64) float64 {
	return clamp(ratio * 50)
}

// GapPercent is the percent move from the previous close to the most
// recent open, computed on daily bars oldest-first. Fewer than two bars
// or a zero previous close yields 0.
func GapPercent(dailyBars []types.Bar) float64 {
	if len(dailyBars) < 2 {
		return 0
	}
	prevClose := dailyBars[len(dailyBars)-2].Close
	todayOpen := dailyBars[len(dailyBars)-1].Open
	if prevClose == 0 {
		return 0
	}
	return (todayOpen - prevClose) / prevClose * 100
}

// NormGapPercent scores the absolute gap; a 10% gap saturates.
func NormGapPercent(gapPercent float64) float64 {
	return clamp(gapPercent * 10 * sign(gapPercent))
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// IVRank places currentIV inside the [min,max] envelope of the sample,
// scaled to [0,100]. Empty or flat samples read as neutral 50.
func IVRank(ivs []float64, currentIV float64) float64 {
	if len(ivs) == 0 {
		return 50
	}
	min, max := ivs[0], ivs[0]
	for _, iv := range ivs[1:] {
		if iv < min {
			min = iv
		}
		if iv > max {
			max = iv
		}
	}
	if max == min {
		return 50
	}
	return clamp((currentIV - min) / (max - min) * 100)
}

// ChainIVRank extracts the implied-vol envelope from a chain. Chains
// without IV data are neutral.
func ChainIVRank(chain []types.OptionContract) float64 {
	var ivs []float64
	for _, c := range chain {
		if c.ImpliedVol > 0 {
			ivs = append(ivs, c.ImpliedVol)
		}
	}
	if len(ivs) == 0 {
		return 50
	}
	current := ivs[0]
	for _, iv := range ivs[1:] {
		if iv > current {
			current = iv
		}
	}
	return IVRank(ivs, current)
}

// NearTermOpenInterest totals open interest across 0DTE and 1DTE
// contracts, the expirations the bot actually trades.
func NearTermOpenInterest(chain []types.OptionContract, now time.Time) float64 {
	var total float64
	for _, c := range chain {
		dte := int(c.DTE(now))
		if dte == 0 || dte == 1 {
			total += c.OpenInterest
		}
	}
	return total
}

// NormOpenInterest scales total near-term OI; 100k contracts saturates.
func NormOpenInterest(openInterest float64) float64 {
	return clamp(openInterest / 1000)
}

// ATR computes the Wilder average true range over daily bars
// oldest-first. Returns 0 when the window is too short.
func ATR(dailyBars []types.Bar, period int) float64 {
	if period <= 0 || len(dailyBars) <= period {
		return 0
	}
	highs := make([]float64, len(dailyBars))
	lows := make([]float64, len(dailyBars))
	closes := make([]float64, len(dailyBars))
	for i, b := range dailyBars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	series := talib.Atr(highs, lows, closes, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// NormATR scales a dollar ATR; $10 of daily range saturates.
func NormATR(atr float64) float64 {
	return clamp(atr * 10)
}

// NormNewsSentiment maps sentiment in [-1,1] onto [0,100].
func NormNewsSentiment(sentiment float64) float64 {
	return clamp((sentiment + 1) * 50)
}

// NormNewsVolume scores article count; 20 articles saturates.
func NormNewsVolume(count int) float64 {
	return clamp(float64(count) * 5)
}

// WeightedScore folds a MetricSet into a [0,1] score using normalized
// weights (summing to 1). Metrics absent from the set contribute 0.
func WeightedScore(set types.MetricSet, normalizedWeights map[string]float64) float64 {
	var score float64
	for name, weight := range normalizedWeights {
		score += weight * set[name] / 100
	}
	return score
}

// Zeroed returns a MetricSet with every key of src forced to 0. Used by
// hard disqualifiers: the symbol stays in the ranking, scored to the
// bottom, so the result remains explainable.
func Zeroed(src types.MetricSet) types.MetricSet {
	out := make(types.MetricSet, len(src))
	for k := range src {
		out[k] = 0
	}
	return out
}
