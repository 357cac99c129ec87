// Package app wires the configured components into a running session.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/engine"
	"github.com/CodeShali/scalp-bot/internal/logger"
	"github.com/CodeShali/scalp-bot/internal/notify"
	"github.com/CodeShali/scalp-bot/internal/store"
	"github.com/CodeShali/scalp-bot/internal/store/eventlog"
	apihttp "github.com/CodeShali/scalp-bot/internal/transport/http"
)

// App owns the built components and their lifecycle.
type App struct {
	cfg      *config.Config
	engine   *engine.Engine
	server   *apihttp.Server
	notifier *notify.Dispatcher
	store    store.Store
	events   *eventlog.Store
	watcher  *config.Watcher
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg, cfgPath)
}

// Run starts the engine and the control API and blocks until ctx is
// canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}

	a.notifier.Start()
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	if a.server != nil {
		group.Go(func() error {
			if err := a.server.Start(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		logger.Infof("app: control API on %s", a.server.Addr())
	}

	group.Go(func() error {
		return a.engine.Run(ctx)
	})

	return group.Wait()
}

// Engine exposes the engine instance for test harnesses.
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) close() {
	a.notifier.Stop()
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			logger.Warnf("app: close event log: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("app: close store: %v", err)
		}
	}
}
