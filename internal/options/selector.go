// Package options picks the contract to trade for a signal: the
// nearest expiration at or just out of the money on the signal's side.
package options

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/CodeShali/scalp-bot/internal/broker"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/types"
)

// ErrNoEligibleContract means the chain had nothing tradable for the
// signal. Callers treat it as "no trade this cycle", not a failure.
var ErrNoEligibleContract = errors.New("options: no eligible contract")

// dteSlack keeps a contract expiring a few hours past the cutoff
// eligible, matching how expiration dates round to midnight.
const dteSlack = 0.1

// Selector filters and ranks option chains.
type Selector struct {
	broker  broker.Broker
	cfg     config.TradingConfig
	timeout time.Duration
	now     func() time.Time
}

func NewSelector(b broker.Broker, cfg config.TradingConfig) *Selector {
	return &Selector{
		broker:  b,
		cfg:     cfg,
		timeout: cfg.BrokerTimeout(),
		now:     time.Now,
	}
}

// Select fetches the chain for the signal's underlying and returns the
// best contract: matching side, near-dated, strike at or slightly out
// of the money, ranked by expiration first and strike distance second.
func (s *Selector) Select(ctx context.Context, sig types.Signal) (types.OptionContract, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	quote, err := s.broker.GetLatestQuote(cctx, sig.Symbol)
	if err != nil {
		return types.OptionContract{}, fmt.Errorf("options: quote for %s: %w", sig.Symbol, err)
	}
	underlying := quote.Mid()
	if underlying <= 0 {
		return types.OptionContract{}, fmt.Errorf("options: no usable price for %s", sig.Symbol)
	}

	chain, err := s.broker.GetOptionChain(cctx, sig.Symbol)
	if err != nil {
		return types.OptionContract{}, fmt.Errorf("options: chain for %s: %w", sig.Symbol, err)
	}

	candidates := s.filter(chain, sig.Direction, underlying)
	if len(candidates) == 0 {
		logger.Infof("options: no eligible %s contract for %s at %.2f", sig.Direction, sig.Symbol, underlying)
		return types.OptionContract{}, ErrNoEligibleContract
	}

	now := s.now()
	sort.Slice(candidates, func(i, j int) bool {
		di, dj := candidates[i].DTE(now), candidates[j].DTE(now)
		if di != dj {
			return di < dj
		}
		return math.Abs(candidates[i].Strike-underlying) < math.Abs(candidates[j].Strike-underlying)
	})

	best := candidates[0]
	logger.Infof("options: selected %s (strike %.2f, exp %s) for %s %s",
		best.Symbol, best.Strike, best.Expiration.Format("2006-01-02"), sig.Symbol, sig.Direction)
	return best, nil
}

// filter keeps side-matching, near-dated contracts with a two-sided
// quote whose strike sits inside the ATM/OTM band.
func (s *Selector) filter(chain []types.OptionContract, direction types.Direction, underlying float64) []types.OptionContract {
	now := s.now()
	maxDTE := float64(s.cfg.MaxOptionDTEDays) + dteSlack

	var out []types.OptionContract
	for _, c := range chain {
		if c.Side != direction {
			continue
		}
		if c.DTE(now) > maxDTE {
			continue
		}
		if c.Bid <= 0 || c.Ask <= 0 {
			continue
		}
		if !s.strikeInBand(direction, c.Strike, underlying) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// strikeInBand accepts strikes from slightly in the money (within the
// ATM tolerance) out to the configured OTM limit, measured on the
// signal's side.
func (s *Selector) strikeInBand(direction types.Direction, strike, underlying float64) bool {
	tolerance := underlying * s.cfg.ATMTolerancePct
	otmLimit := underlying * s.cfg.MaxOTMPct

	// For calls OTM means strike above spot; for puts, below.
	diff := strike - underlying
	if direction == types.DirectionPut {
		diff = underlying - strike
	}
	return diff >= -tolerance && diff <= otmLimit
}
