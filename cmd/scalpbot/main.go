package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/CodeShali/scalp-bot/internal/app"
	"github.com/CodeShali/scalp-bot/internal/config"
	"github.com/CodeShali/scalp-bot/internal/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfgPath := os.Getenv("SCALPBOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	closer := setupLogOutput(cfg.App)
	if closer != nil {
		defer closer.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ config loaded (mode=%s, watchlist=%d symbols)", cfg.Mode, len(cfg.Watchlist.Symbols))

	application, err := app.NewApp(cfg, cfgPath)
	if err != nil {
		log.Fatalf("init app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("run: %v", err)
	}
	logger.Infof("shutdown complete")
}

func setupLogOutput(cfg config.AppConfig) io.Closer {
	path := strings.TrimSpace(cfg.LogPath)
	if path == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.LogMaxMB,
		MaxBackups: cfg.LogBackups,
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return rotator
}
