package config

import (
	"fmt"
	"strings"

	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
)

func validate(c *Config) error {
	creds, err := c.Alpaca.ForMode(c.Mode)
	if err != nil {
		return err
	}
	if err := creds.validate(c.Mode); err != nil {
		return err
	}
	if err := c.Watchlist.validate(); err != nil {
		return err
	}
	if err := c.Scanning.validate(); err != nil {
		return err
	}
	if err := c.Signals.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Safety.validate(); err != nil {
		return err
	}
	if err := c.Notifications.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	return nil
}

func (a AlpacaModeConfig) validate(mode string) error {
	if strings.TrimSpace(a.APIKeyID) == "" || strings.TrimSpace(a.APISecretKey) == "" {
		return fmt.Errorf("alpaca.%s requires api_key_id and api_secret_key", mode)
	}
	if strings.TrimSpace(a.Endpoint) == "" {
		return fmt.Errorf("alpaca.%s.endpoint cannot be empty", mode)
	}
	if strings.TrimSpace(a.DataEndpoint) == "" {
		return fmt.Errorf("alpaca.%s.data_endpoint cannot be empty", mode)
	}
	return nil
}

func (w WatchlistConfig) validate() error {
	if len(w.Symbols) == 0 {
		return fmt.Errorf("watchlist.symbols requires at least one symbol")
	}
	seen := make(map[string]struct{}, len(w.Symbols))
	for _, s := range w.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return fmt.Errorf("watchlist.symbols contains an empty symbol")
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("watchlist.symbols contains duplicate %s", s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

func (s ScanningConfig) validate() error {
	if _, err := timeutil.ParseClock(s.RunTime); err != nil {
		return fmt.Errorf("scanning.run_time: %w", err)
	}
	if s.TopN <= 0 {
		return fmt.Errorf("scanning.top_n must be > 0")
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("scanning.concurrency must be > 0")
	}
	if s.MinPremarketVolume < 0 {
		return fmt.Errorf("scanning.min_premarket_volume must be >= 0")
	}
	recognized := make(map[string]struct{}, len(MetricWeightKeys))
	for _, k := range MetricWeightKeys {
		recognized[k] = struct{}{}
	}
	for k, w := range s.Weights {
		if _, ok := recognized[k]; !ok {
			return fmt.Errorf("scanning.weights contains unrecognized metric %q", k)
		}
		if w < 0 {
			return fmt.Errorf("scanning.weights.%s must be >= 0", k)
		}
	}
	if _, err := s.NormalizedWeights(); err != nil {
		return err
	}
	return nil
}

func (s SignalsConfig) validate() error {
	if s.EMAShortPeriod <= 0 || s.EMALongPeriod <= 0 {
		return fmt.Errorf("signals ema periods must be > 0")
	}
	if s.EMAShortPeriod >= s.EMALongPeriod {
		return fmt.Errorf("signals.ema_short_period must be < ema_long_period")
	}
	if s.RSIPeriod <= 0 {
		return fmt.Errorf("signals.rsi_period must be > 0")
	}
	if s.RSICallMin < 0 || s.RSICallMin > 100 || s.RSIPutMax < 0 || s.RSIPutMax > 100 {
		return fmt.Errorf("signals rsi thresholds must be in [0,100]")
	}
	if s.RSIPutMax >= s.RSICallMin {
		return fmt.Errorf("signals.rsi_put_max must be < rsi_call_min")
	}
	if s.VolumeLookback <= 0 {
		return fmt.Errorf("signals.volume_lookback must be > 0")
	}
	if s.VolumeMultiplier <= 0 {
		return fmt.Errorf("signals.volume_multiplier must be > 0")
	}
	if s.LookbackMinutes < s.EMALongPeriod+5 {
		return fmt.Errorf("signals.lookback_minutes must cover at least ema_long_period+5 bars")
	}
	if s.PollIntervalSeconds <= 0 {
		return fmt.Errorf("signals.poll_interval_seconds must be > 0")
	}
	if _, err := timeutil.ParseWindows(s.TradingWindows); err != nil {
		return fmt.Errorf("signals.trading_windows: %w", err)
	}
	return nil
}

func (t TradingConfig) validate() error {
	if t.MaxRiskPct <= 0 || t.MaxRiskPct > 1 {
		return fmt.Errorf("trading.max_risk_pct must be in (0,1]")
	}
	if t.ProfitTargetPct <= 0 {
		return fmt.Errorf("trading.profit_target_pct must be > 0")
	}
	if t.StopLossPct <= 0 {
		return fmt.Errorf("trading.stop_loss_pct must be > 0")
	}
	if t.TimeoutSeconds <= 0 {
		return fmt.Errorf("trading.timeout_seconds must be > 0")
	}
	if _, err := timeutil.ParseClock(t.EndOfDayExit); err != nil {
		return fmt.Errorf("trading.end_of_day_exit: %w", err)
	}
	if t.MaxOptionDTEDays < 0 {
		return fmt.Errorf("trading.max_option_dte_days must be >= 0")
	}
	if t.MaxOTMPct < 0 || t.ATMTolerancePct < 0 {
		return fmt.Errorf("trading moneyness bands must be >= 0")
	}
	if t.MonitorIntervalSeconds <= 0 {
		return fmt.Errorf("trading.monitor_interval_seconds must be > 0")
	}
	if t.FillTimeoutSeconds <= 0 || t.FillPollSeconds <= 0 {
		return fmt.Errorf("trading fill timeout and poll must be > 0")
	}
	if t.FillPollSeconds >= t.FillTimeoutSeconds {
		return fmt.Errorf("trading.fill_poll_seconds must be < fill_timeout_seconds")
	}
	if t.BrokerTimeoutSeconds <= 0 {
		return fmt.Errorf("trading.broker_timeout_seconds must be > 0")
	}
	if t.MaxTradesPerDay <= 0 {
		return fmt.Errorf("trading.max_trades_per_day must be > 0")
	}
	if t.MaxDailyLossPct <= 0 {
		return fmt.Errorf("trading.max_daily_loss_pct must be > 0")
	}
	return nil
}

func (s SafetyConfig) validate() error {
	if s.BreakerThreshold <= 0 {
		return fmt.Errorf("safety.breaker_threshold must be > 0")
	}
	if s.BreakerWindowSeconds <= 0 {
		return fmt.Errorf("safety.breaker_window_seconds must be > 0")
	}
	return nil
}

func (n NotifyConfig) validate() error {
	if n.Discord.Enabled && strings.TrimSpace(n.Discord.WebhookURL) == "" {
		return fmt.Errorf("notifications.discord enabled but webhook_url missing")
	}
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("notifications.telegram enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
