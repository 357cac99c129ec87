package config

import "github.com/spf13/viper"

// setDefaults registers the default for every recognized option so a
// minimal config file still yields a fully specified engine.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "paper")

	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")
	v.SetDefault("app.log_max_mb", 5)
	v.SetDefault("app.log_backups", 5)
	v.SetDefault("app.http_addr", ":8001")

	v.SetDefault("alpaca.paper.endpoint", "https://paper-api.alpaca.markets")
	v.SetDefault("alpaca.paper.data_endpoint", "https://data.alpaca.markets")
	v.SetDefault("alpaca.paper.data_feed", "iex")
	v.SetDefault("alpaca.live.endpoint", "https://api.alpaca.markets")
	v.SetDefault("alpaca.live.data_endpoint", "https://data.alpaca.markets")
	v.SetDefault("alpaca.live.data_feed", "iex")

	v.SetDefault("scanning.run_time", "08:30")
	v.SetDefault("scanning.top_n", 3)
	v.SetDefault("scanning.min_premarket_volume", 0)
	v.SetDefault("scanning.concurrency", 4)
	v.SetDefault("scanning.weights", map[string]float64{
		"premarket_volume":     0.2,
		"gap_percent":          0.2,
		"iv_rank":              0.15,
		"option_open_interest": 0.15,
		"atr":                  0.1,
		"news_sentiment":       0.1,
		"news_volume":          0.1,
	})

	v.SetDefault("signals.ema_short_period", 9)
	v.SetDefault("signals.ema_long_period", 21)
	v.SetDefault("signals.rsi_period", 14)
	v.SetDefault("signals.rsi_call_min", 60)
	v.SetDefault("signals.rsi_put_max", 40)
	v.SetDefault("signals.volume_lookback", 20)
	v.SetDefault("signals.volume_multiplier", 1.2)
	v.SetDefault("signals.lookback_minutes", 120)
	v.SetDefault("signals.poll_interval_seconds", 15)
	v.SetDefault("signals.trading_windows", []string{})

	v.SetDefault("trading.max_risk_pct", 0.01)
	v.SetDefault("trading.profit_target_pct", 0.15)
	v.SetDefault("trading.stop_loss_pct", 0.07)
	v.SetDefault("trading.timeout_seconds", 300)
	v.SetDefault("trading.end_of_day_exit", "15:55")
	v.SetDefault("trading.max_option_dte_days", 1)
	v.SetDefault("trading.max_otm_pct", 0.02)
	v.SetDefault("trading.atm_tolerance_pct", 0.005)
	v.SetDefault("trading.monitor_interval_seconds", 5)
	v.SetDefault("trading.fill_timeout_seconds", 60)
	v.SetDefault("trading.fill_poll_seconds", 2)
	v.SetDefault("trading.broker_timeout_seconds", 10)
	v.SetDefault("trading.max_trades_per_day", 5)
	v.SetDefault("trading.max_daily_loss_pct", 0.10)

	v.SetDefault("safety.breaker_threshold", 5)
	v.SetDefault("safety.breaker_window_seconds", 300)

	v.SetDefault("notifications.discord.enabled", false)
	v.SetDefault("notifications.telegram.enabled", false)

	v.SetDefault("store.path", "data/scalpbot.db")
	v.SetDefault("store.event_log_path", "data/events.db")
}
