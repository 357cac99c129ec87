package app

import (
	"fmt"

	"github.com/CodeShali/scalp-bot/internal/broker/alpaca"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/engine"
	"github.com/CodeShali/scalp-bot/internal/executor"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/monitor"
	"github.com/CodeShali/scalp-bot/internal/notify"
	"github.com/CodeShali/scalp-bot/internal/options"
	"github.com/CodeShali/scalp-bot/internal/pkg/timeutil"
	"github.com/CodeShali/scalp-bot/internal/safety"
	"github.com/CodeShali/scalp-bot/internal/scanner"
	"github.com/CodeShali/scalp-bot/internal/signal"
	"github.com/CodeShali/scalp-bot/internal/store/eventlog"
	"github.com/CodeShali/scalp-bot/internal/store/gormstore"
	apihttp "github.com/CodeShali/scalp-bot/internal/transport/http"
)

func build(cfg *config.Config, cfgPath string) (*App, error) {
	creds, err := cfg.Alpaca.ForMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	client, err := alpaca.NewClient(creds)
	if err != nil {
		return nil, fmt.Errorf("alpaca client: %w", err)
	}
	logger.Infof("app: broker mode %s", cfg.Mode)

	st, err := gormstore.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	events, err := eventlog.Open(cfg.Store.EventLogPath)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	brokerTimeout := cfg.Trading.BrokerTimeout()
	scan, err := scanner.New(client, cfg.Scanning, brokerTimeout)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	detector, err := signal.NewDetector(client, cfg.Signals, brokerTimeout)
	if err != nil {
		return nil, fmt.Errorf("signal detector: %w", err)
	}
	evaluator, err := monitor.NewEvaluator(client, detector, cfg.Trading)
	if err != nil {
		return nil, fmt.Errorf("exit evaluator: %w", err)
	}

	breaker := safety.NewCircuitBreaker("broker", cfg.Safety.BreakerThreshold, cfg.Safety.BreakerWindow())
	limits := safety.NewDailyLimits(cfg.Trading.MaxTradesPerDay, cfg.Trading.MaxDailyLossPct)
	notifier := notify.NewDispatcher(events, buildSinks(cfg.Notifications)...)
	scan.SetFailureHandler(func(symbol string, err error) {
		breaker.RecordFailure()
		notifier.Publish(notify.Event{
			Kind:   notify.KindEngineError,
			Symbol: symbol,
			Text:   fmt.Sprintf("scan data fetch for %s failed: %v", symbol, err),
			At:     timeutil.EasternNow(),
		})
	})

	watcher, err := config.NewWatcher(cfgPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("watchlist watcher: %w", err)
	}
	watcher.OnChange(func(snap config.WatchlistSnapshot) {
		logger.Infof("app: watchlist reloaded, %d symbols", len(snap.Symbols))
	})

	eng := engine.New(engine.Deps{
		Config:    cfg,
		Scanner:   scan,
		Detector:  detector,
		Selector:  options.NewSelector(client, cfg.Trading),
		Trader:    executor.New(client, cfg.Trading),
		Evaluator: evaluator,
		Breaker:   breaker,
		Limits:    limits,
		Store:     st,
		Notify:    notifier,
		Watchlist: func() []string { return watcher.Snapshot().Symbols },
	})

	server, err := apihttp.NewServer(cfg.App.HTTPAddr, eng, events)
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	return &App{
		cfg:      cfg,
		engine:   eng,
		server:   server,
		notifier: notifier,
		store:    st,
		events:   events,
		watcher:  watcher,
	}, nil
}

func buildSinks(cfg config.NotifyConfig) []notify.TextSink {
	var sinks []notify.TextSink
	if cfg.Discord.Enabled {
		sinks = append(sinks, notify.NewDiscord(cfg.Discord.WebhookURL))
		logger.Infof("app: discord notifications enabled")
	}
	if cfg.Telegram.Enabled {
		sinks = append(sinks, notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
		logger.Infof("app: telegram notifications enabled")
	}
	if len(sinks) == 0 {
		logger.Infof("app: no notification sinks configured, journal only")
	}
	return sinks
}
