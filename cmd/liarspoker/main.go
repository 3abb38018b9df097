// cmd/liarspoker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/liarspoker/internal/alert"
	"github.com/jason-s-yu/liarspoker/internal/config"
	"github.com/jason-s-yu/liarspoker/internal/engine"
	"github.com/jason-s-yu/liarspoker/internal/events"
	"github.com/jason-s-yu/liarspoker/internal/history"
	"github.com/jason-s-yu/liarspoker/internal/ledger/httprpc"
	"github.com/jason-s-yu/liarspoker/internal/ledger/wsfeed"
	"github.com/jason-s-yu/liarspoker/internal/mirror"
	"github.com/jason-s-yu/liarspoker/internal/pipeline"
	"github.com/jason-s-yu/liarspoker/internal/turn"
	"github.com/jason-s-yu/liarspoker/internal/wallet"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpc := httprpc.New(cfg.LedgerRPCURL, logger)
	feed := wsfeed.New(cfg.EventFeedURL, logger)

	alerts := alert.NewChannel()
	rooms := mirror.New(rpc, logger)
	registry := events.NewRegistry(feed, cfg.FeedRetryDelay, logger)
	defer registry.Close()

	spec := wallet.ChainSpec{
		ChainID:  cfg.ChainID,
		Name:     cfg.ChainName,
		Symbol:   cfg.ChainSymbol,
		Decimals: cfg.ChainDecimals,
		RPCURL:   cfg.ChainRPCURL,
	}
	var agent wallet.Agent
	if acct := os.Getenv("WALLET_ACCOUNT"); acct != "" {
		agent = wallet.NewEnvAgent(acct, cfg.ChainID)
	}
	provider := wallet.NewProvider(agent, spec, alerts, rooms.PurgeAll, logger)

	var recorder *history.Recorder
	if cfg.RedisAddr != "" {
		recorder, err = history.Connect(cfg.RedisAddr, cfg.RedisDB, cfg.HistoryQueue, logger)
		if err != nil {
			logger.Warnf("history recorder disabled: %v", err)
		} else {
			defer recorder.Close()
		}
	}

	turns := turn.NewCoordinator(rooms, alerts)
	actions := pipeline.New(rpc, rpc, rooms, turns, provider, alerts, recorder, cfg.ConfirmWindow, logger)
	eng := engine.New(provider, registry, rooms, turns, actions, alerts, logger)

	if err := provider.Connect(ctx); err != nil {
		logger.Fatalf("connect: %v", err)
	}
	if err := eng.Init(ctx); err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer eng.Teardown()

	go provider.Watch(ctx, func() { eng.Reset(ctx) })

	// Surface alerts on the terminal until interrupted. A real UI renders
	// from Session + Mirror + Alerts instead.
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-alerts.Changes():
			a := alerts.Current()
			logger.WithField("kind", a.Kind).Info(a.Message)
		}
	}
}
