package options

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeShali/scalp-bot/internal/broker/brokertest"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/types"
)

var selRef = time.Date(2025, 6, 4, 14, 0, 0, 0, time.UTC)

func tradingConfig() config.TradingConfig {
	return config.TradingConfig{
		MaxOptionDTEDays:     1,
		MaxOTMPct:            0.02,
		ATMTolerancePct:      0.005,
		BrokerTimeoutSeconds: 1,
	}
}

func chainBroker(spot float64, chain []types.OptionContract) *brokertest.Fake {
	return &brokertest.Fake{
		GetLatestQuoteFunc: func(context.Context, string) (types.Quote, error) {
			return types.Quote{BidPrice: spot - 0.05, AskPrice: spot + 0.05}, nil
		},
		GetOptionChainFunc: func(context.Context, string) ([]types.OptionContract, error) {
			return chain, nil
		},
	}
}

func newTestSelector(fake *brokertest.Fake) *Selector {
	s := NewSelector(fake, tradingConfig())
	s.now = func() time.Time { return selRef }
	return s
}

func contract(symbol string, side types.Direction, strike float64, exp time.Time) types.OptionContract {
	return types.OptionContract{
		Symbol:     symbol,
		Side:       side,
		Strike:     strike,
		Expiration: exp,
		Bid:        1.40,
		Ask:        1.50,
	}
}

func TestSelectPrefersNearestExpirationThenStrike(t *testing.T) {
	today := selRef.Add(6 * time.Hour)
	tomorrow := selRef.Add(26 * time.Hour)
	chain := []types.OptionContract{
		contract("C_TOMORROW_600", types.DirectionCall, 600, tomorrow),
		contract("C_TODAY_605", types.DirectionCall, 605, today),
		contract("C_TODAY_601", types.DirectionCall, 601, today),
	}
	s := newTestSelector(chainBroker(600, chain))

	got, err := s.Select(context.Background(), types.Signal{Symbol: "SPY", Direction: types.DirectionCall})
	require.NoError(t, err)
	assert.Equal(t, "C_TODAY_601", got.Symbol)
}

func TestSelectFiltersWrongSide(t *testing.T) {
	today := selRef.Add(6 * time.Hour)
	chain := []types.OptionContract{
		contract("P_600", types.DirectionPut, 600, today),
	}
	s := newTestSelector(chainBroker(600, chain))

	_, err := s.Select(context.Background(), types.Signal{Symbol: "SPY", Direction: types.DirectionCall})
	assert.ErrorIs(t, err, ErrNoEligibleContract)
}

func TestSelectFiltersFarExpiration(t *testing.T) {
	in3days := selRef.Add(72 * time.Hour)
	chain := []types.OptionContract{
		contract("C_600", types.DirectionCall, 600, in3days),
	}
	s := newTestSelector(chainBroker(600, chain))

	_, err := s.Select(context.Background(), types.Signal{Symbol: "SPY", Direction: types.DirectionCall})
	assert.ErrorIs(t, err, ErrNoEligibleContract)
}

func TestSelectRequiresTwoSidedQuote(t *testing.T) {
	today := selRef.Add(6 * time.Hour)
	oneSided := contract("C_600", types.DirectionCall, 600, today)
	oneSided.Bid = 0
	s := newTestSelector(chainBroker(600, []types.OptionContract{oneSided}))

	_, err := s.Select(context.Background(), types.Signal{Symbol: "SPY", Direction: types.DirectionCall})
	assert.ErrorIs(t, err, ErrNoEligibleContract)
}

func TestSelectStrikeBandCalls(t *testing.T) {
	// Spot 600: tolerance 3, OTM limit 12. Strikes below 597 are too
	// deep ITM, above 612 too far OTM.
	today := selRef.Add(6 * time.Hour)
	chain := []types.OptionContract{
		contract("C_590", types.DirectionCall, 590, today),
		contract("C_598", types.DirectionCall, 598, today),
		contract("C_615", types.DirectionCall, 615, today),
	}
	s := newTestSelector(chainBroker(600, chain))

	got, err := s.Select(context.Background(), types.Signal{Symbol: "SPY", Direction: types.DirectionCall})
	require.NoError(t, err)
	assert.Equal(t, "C_598", got.Symbol)
}

func TestSelectStrikeBandPuts(t *testing.T) {
	// The put band mirrors: OTM puts sit below spot.
	today := selRef.Add(6 * time.Hour)
	chain := []types.OptionContract{
		contract("P_610", types.DirectionPut, 610, today),
		contract("P_602", types.DirectionPut, 602, today),
		contract("P_585", types.DirectionPut, 585, today),
	}
	s := newTestSelector(chainBroker(600, chain))

	got, err := s.Select(context.Background(), types.Signal{Symbol: "SPY", Direction: types.DirectionPut})
	require.NoError(t, err)
	assert.Equal(t, "P_602", got.Symbol)
}

func TestSelectEmptyChain(t *testing.T) {
	s := newTestSelector(chainBroker(600, nil))
	_, err := s.Select(context.Background(), types.Signal{Symbol: "SPY", Direction: types.DirectionCall})
	assert.ErrorIs(t, err, ErrNoEligibleContract)
}

func TestSelectQuoteError(t *testing.T) {
	fake := &brokertest.Fake{
		GetLatestQuoteFunc: func(context.Context, string) (types.Quote, error) {
			return types.Quote{}, errors.New("boom")
		},
	}
	s := newTestSelector(fake)
	_, err := s.Select(context.Background(), types.Signal{Symbol: "SPY", Direction: types.DirectionCall})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoEligibleContract)
}
