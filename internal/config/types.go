package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the validated configuration for the whole bot. It is built
// once at startup; the trading sections never change at runtime. Only
// the watchlist may be hot-reloaded (see Watch).
type Config struct {
	App           AppConfig       `mapstructure:"app"`
	Mode          string          `mapstructure:"mode"`
	Alpaca        AlpacaConfig    `mapstructure:"alpaca"`
	Watchlist     WatchlistConfig `mapstructure:"watchlist"`
	Scanning      ScanningConfig  `mapstructure:"scanning"`
	Signals       SignalsConfig   `mapstructure:"signals"`
	Trading       TradingConfig   `mapstructure:"trading"`
	Safety        SafetyConfig    `mapstructure:"safety"`
	Notifications NotifyConfig    `mapstructure:"notifications"`
	Store         StoreConfig     `mapstructure:"store"`
}

type AppConfig struct {
	LogLevel   string `mapstructure:"log_level"`
	LogPath    string `mapstructure:"log_path"`
	LogMaxMB   int    `mapstructure:"log_max_mb"`
	LogBackups int    `mapstructure:"log_backups"`
	HTTPAddr   string `mapstructure:"http_addr"`
}

// AlpacaModeConfig is one set of brokerage credentials.
type AlpacaModeConfig struct {
	APIKeyID     string `mapstructure:"api_key_id"`
	APISecretKey string `mapstructure:"api_secret_key"`
	Endpoint     string `mapstructure:"endpoint"`
	DataEndpoint string `mapstructure:"data_endpoint"`
	DataFeed     string `mapstructure:"data_feed"`
}

type AlpacaConfig struct {
	Paper AlpacaModeConfig `mapstructure:"paper"`
	Live  AlpacaModeConfig `mapstructure:"live"`
}

// ForMode returns the credentials matching mode ("paper" or "live").
func (a AlpacaConfig) ForMode(mode string) (AlpacaModeConfig, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "paper", "":
		return a.Paper, nil
	case "live":
		return a.Live, nil
	default:
		return AlpacaModeConfig{}, fmt.Errorf("unknown mode %q (want paper or live)", mode)
	}
}

type WatchlistConfig struct {
	Symbols []string `mapstructure:"symbols"`
}

// MetricWeightKeys enumerates the metric names the scanner recognizes
// in scanning.weights.
var MetricWeightKeys = []string{
	"premarket_volume",
	"gap_percent",
	"iv_rank",
	"option_open_interest",
	"atr",
	"news_sentiment",
	"news_volume",
}

type ScanningConfig struct {
	RunTime            string             `mapstructure:"run_time"`
	TopN               int                `mapstructure:"top_n"`
	Weights            map[string]float64 `mapstructure:"weights"`
	MinPremarketVolume float64            `mapstructure:"min_premarket_volume"`
	Concurrency        int                `mapstructure:"concurrency"`
}

// NormalizedWeights returns the weight mapping scaled so the values sum
// to 1. Raw weights need not sum to 1; a non-positive sum is a
// configuration error, never a division by zero.
func (s ScanningConfig) NormalizedWeights() (map[string]float64, error) {
	var sum float64
	for _, w := range s.Weights {
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("scanning.weights must have a positive sum, got %v", sum)
	}
	out := make(map[string]float64, len(s.Weights))
	for k, w := range s.Weights {
		out[k] = w / sum
	}
	return out, nil
}

type SignalsConfig struct {
	EMAShortPeriod      int      `mapstructure:"ema_short_period"`
	EMALongPeriod       int      `mapstructure:"ema_long_period"`
	RSIPeriod           int      `mapstructure:"rsi_period"`
	RSICallMin          float64  `mapstructure:"rsi_call_min"`
	RSIPutMax           float64  `mapstructure:"rsi_put_max"`
	VolumeLookback      int      `mapstructure:"volume_lookback"`
	VolumeMultiplier    float64  `mapstructure:"volume_multiplier"`
	LookbackMinutes     int      `mapstructure:"lookback_minutes"`
	PollIntervalSeconds int      `mapstructure:"poll_interval_seconds"`
	TradingWindows      []string `mapstructure:"trading_windows"`
}

func (s SignalsConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

type TradingConfig struct {
	MaxRiskPct             float64 `mapstructure:"max_risk_pct"`
	ProfitTargetPct        float64 `mapstructure:"profit_target_pct"`
	StopLossPct            float64 `mapstructure:"stop_loss_pct"`
	TimeoutSeconds         int     `mapstructure:"timeout_seconds"`
	EndOfDayExit           string  `mapstructure:"end_of_day_exit"`
	MaxOptionDTEDays       int     `mapstructure:"max_option_dte_days"`
	MaxOTMPct              float64 `mapstructure:"max_otm_pct"`
	ATMTolerancePct        float64 `mapstructure:"atm_tolerance_pct"`
	MonitorIntervalSeconds int     `mapstructure:"monitor_interval_seconds"`
	FillTimeoutSeconds     int     `mapstructure:"fill_timeout_seconds"`
	FillPollSeconds        int     `mapstructure:"fill_poll_seconds"`
	BrokerTimeoutSeconds   int     `mapstructure:"broker_timeout_seconds"`
	MaxTradesPerDay        int     `mapstructure:"max_trades_per_day"`
	MaxDailyLossPct        float64 `mapstructure:"max_daily_loss_pct"`
}

func (t TradingConfig) MaxHold() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

func (t TradingConfig) MonitorInterval() time.Duration {
	return time.Duration(t.MonitorIntervalSeconds) * time.Second
}

func (t TradingConfig) FillTimeout() time.Duration {
	return time.Duration(t.FillTimeoutSeconds) * time.Second
}

func (t TradingConfig) FillPoll() time.Duration {
	return time.Duration(t.FillPollSeconds) * time.Second
}

// BrokerTimeout bounds every individual brokerage call so a slow fetch
// cannot stall a later tick.
func (t TradingConfig) BrokerTimeout() time.Duration {
	return time.Duration(t.BrokerTimeoutSeconds) * time.Second
}

type SafetyConfig struct {
	BreakerThreshold     int `mapstructure:"breaker_threshold"`
	BreakerWindowSeconds int `mapstructure:"breaker_window_seconds"`
}

func (s SafetyConfig) BreakerWindow() time.Duration {
	return time.Duration(s.BreakerWindowSeconds) * time.Second
}

type NotifyConfig struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type StoreConfig struct {
	Path         string `mapstructure:"path"`
	EventLogPath string `mapstructure:"event_log_path"`
}
