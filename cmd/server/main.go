package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/dispatch"
	"github.com/betbot/golighter/internal/gateway"
	"github.com/betbot/golighter/internal/health"
	"github.com/betbot/golighter/internal/markets"
	"github.com/betbot/golighter/internal/metrics"
	"github.com/betbot/golighter/internal/notify"
	"github.com/betbot/golighter/internal/ports"
	"github.com/betbot/golighter/internal/registry"
	"github.com/betbot/golighter/internal/retry"
	"github.com/betbot/golighter/internal/risk"
	"github.com/betbot/golighter/internal/server"
	"github.com/betbot/golighter/internal/services"
	"github.com/betbot/golighter/internal/sizing"
	"github.com/betbot/golighter/internal/stoploss"
	"github.com/betbot/golighter/pkg/config"
	"github.com/betbot/golighter/pkg/logger"
	"github.com/betbot/golighter/pkg/shutdown"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", getenv("CONFIG_FILE", ""), "path to YAML/JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		logrus.Fatalf("init logger: %v", err)
	}
	log := logrus.WithField("component", "main")

	reg := registry.New(cfg.Accounts)
	gw, err := gateway.New(cfg.BaseURL, reg)
	if err != nil {
		log.Fatalf("init gateway: %v", err)
	}

	resolver := markets.NewResolver(gw)
	retrier := retry.New(cfg.MaxRetries, cfg.RetryInterval)
	sizer := sizing.New(cfg.ScalingFactor)
	guard := risk.NewSlippageGuard(cfg.MaxSlippage)
	stops := stoploss.NewManager(gw, retrier, cfg.StopLossRatio)
	tracker := dispatch.NewTracker()
	dispatcher := dispatch.New(cfg.QueueBound, cfg.WorkerPoolSize, tracker)

	var notifier ports.Notifier
	if cfg.Telegram.BotAPIKey != "" && cfg.Telegram.GroupID != "" {
		notifier = notify.NewTelegram(cfg.Telegram)
		log.Info("telegram notifications enabled")
	} else {
		notifier = notify.NewLog()
		log.Info("telegram not configured, logging outcomes only")
	}

	trading := services.NewTradingService(reg, resolver, gw, retrier, sizer, guard, stops, dispatcher, tracker, notifier)
	monitor := health.NewMonitor(gw)
	srv := server.New(trading, monitor, cfg.APIKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go monitor.Start(ctx)

	if cfg.DebugAddr != "" {
		if _, err := metrics.StartAsync(ctx, cfg.DebugAddr); err != nil {
			log.Warnf("debug server failed to start on %s: %v", cfg.DebugAddr, err)
		} else {
			log.Infof("debug server on %s", cfg.DebugAddr)
		}
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnf("http shutdown: %v", err)
		}
	})
	mgr.OnShutdown(func(ctx context.Context) {
		dispatcher.Shutdown(ctx)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ListenAddr)
	}()

	log.Infof("managing %d accounts against %s", reg.Len(), cfg.BaseURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case sig := <-sigCh:
		log.Infof("received %v, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Errorf("http server: %v", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mgr.Shutdown(shutdownCtx)
}
