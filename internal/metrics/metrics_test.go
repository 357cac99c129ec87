package metrics

import (
	"testing"
	"time"

	"github.com/CodeShali/scalp-bot/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestVolumeRatio(t *testing.T) {
	assert.Equal(t, 2.0, VolumeRatio(2000, 1000))
	// No history reads neutral, not zero.
	assert.Equal(t, 1.0, VolumeRatio(2000, 0))
}

func TestNormPremarketVolume(t *testing.T) {
	assert.Equal(t, 50.0, NormPremarketVolume(1.0))
	assert.Equal(t, 100.0, NormPremarketVolume(3.0))
	assert.Equal(t, 0.0, NormPremarketVolume(0))
}

func TestGapPercent(t *testing.T) {
	bars := []types.Bar{
		{Open: 99, Close: 100},
		{Open: 102, Close: 103},
	}
	assert.InDelta(t, 2.0, GapPercent(bars), 1e-9)

	assert.Zero(t, GapPercent(bars[:1]))
	assert.Zero(t, GapPercent([]types.Bar{{Close: 0}, {Open: 5}}))

	down := []types.Bar{{Close: 100}, {Open: 97}}
	assert.InDelta(t, -3.0, GapPercent(down), 1e-9)
}

func TestNormGapPercent(t *testing.T) {
	// Direction does not matter, magnitude does.
	assert.InDelta(t, 30.0, NormGapPercent(3), 1e-9)
	assert.InDelta(t, 30.0, NormGapPercent(-3), 1e-9)
	assert.Equal(t, 100.0, NormGapPercent(25))
}

func TestIVRank(t *testing.T) {
	assert.Equal(t, 50.0, IVRank(nil, 0.3))
	assert.Equal(t, 50.0, IVRank([]float64{0.2, 0.2}, 0.2))
	assert.InDelta(t, 50.0, IVRank([]float64{0.1, 0.3}, 0.2), 1e-9)
	assert.InDelta(t, 100.0, IVRank([]float64{0.1, 0.3}, 0.3), 1e-9)
}

func TestNearTermOpenInterest(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	chain := []types.OptionContract{
		{Expiration: now.Add(6 * time.Hour), OpenInterest: 100},        // 0DTE
		{Expiration: now.Add(30 * time.Hour), OpenInterest: 200},       // 1DTE
		{Expiration: now.Add(4 * 24 * time.Hour), OpenInterest: 5000},  // too far
		{Expiration: now.Add(-2 * 24 * time.Hour), OpenInterest: 9000}, // expired clamps to 0DTE
	}
	assert.Equal(t, 9300.0, NearTermOpenInterest(chain, now))
}

func TestATR(t *testing.T) {
	bars := make([]types.Bar, 0, 20)
	price := 100.0
	for i := 0; i < 20; i++ {
		bars = append(bars, types.Bar{
			High:  price + 2,
			Low:   price - 2,
			Close: price,
		})
		price += 0.5
	}
	atr := ATR(bars, 14)
	assert.Greater(t, atr, 0.0)
	assert.Less(t, atr, 10.0)

	assert.Zero(t, ATR(bars[:5], 14))
	assert.Zero(t, ATR(bars, 0))
}

func TestNormSentimentAndNewsVolume(t *testing.T) {
	assert.Equal(t, 50.0, NormNewsSentiment(0))
	assert.Equal(t, 100.0, NormNewsSentiment(1))
	assert.Equal(t, 0.0, NormNewsSentiment(-1))

	assert.Equal(t, 25.0, NormNewsVolume(5))
	assert.Equal(t, 100.0, NormNewsVolume(50))
}

func TestWeightedScore(t *testing.T) {
	set := types.MetricSet{
		MetricGapPercent: 80,
		MetricATR:        40,
	}
	weights := map[string]float64{
		MetricGapPercent: 0.75,
		MetricATR:        0.25,
	}
	// 0.75*0.8 + 0.25*0.4 = 0.7
	assert.InDelta(t, 0.7, WeightedScore(set, weights), 1e-9)

	// Metrics missing from the set contribute nothing.
	weights[MetricIVRank] = 0.5
	assert.InDelta(t, 0.7, WeightedScore(set, weights), 1e-9)
}

func TestZeroed(t *testing.T) {
	set := types.MetricSet{MetricATR: 40, MetricGapPercent: 80}
	zeroed := Zeroed(set)
	assert.Len(t, zeroed, 2)
	for k, v := range zeroed {
		assert.Zerof(t, v, "metric %s", k)
	}
	// Original untouched.
	assert.Equal(t, 40.0, set[MetricATR])
}
