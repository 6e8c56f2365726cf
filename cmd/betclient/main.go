// betclient logs the configured account into the platform and, when an
// outcome is given, places a single bet on it. Without an outcome it only
// verifies the login and prints the balance.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	pkgconfig "github.com/phoenixbet/phoenix/internal/pkg/config"
	"github.com/phoenixbet/phoenix/internal/pkg/logging"
	"github.com/phoenixbet/phoenix/internal/pkg/notify"
	"github.com/phoenixbet/phoenix/internal/unibet"
)

const defaultConfigPath = "configs/production.yaml"

type cliConfig struct {
	configPath string
	outcomeID  int64
	odds       int64
	betOfferID int64
	eventID    int64
	stake      int64
}

func main() {
	if err := run(); err != nil {
		slog.Error("Bet client failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()

	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := logging.SetupLogger(&appConfig.Logging, "betclient"); err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := notify.NewNotifier(appConfig.Telegram.BotToken, appConfig.Telegram.ChatID)

	client, err := unibet.NewClient(appConfig.Client, appConfig.Proxy, notifier)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if err := client.Login(ctx); err != nil {
		return err
	}

	balance, err := client.Balance(ctx)
	if err != nil {
		slog.Warn("Balance unavailable", "error", err)
	} else {
		slog.Info("Account balance", "username", client.Username(), "balance", balance)
	}

	if cfg.outcomeID == 0 {
		return nil
	}
	if cfg.odds == 0 {
		return fmt.Errorf("-odds is required when placing a bet")
	}

	selections := []unibet.Selection{{
		OutcomeID:  cfg.outcomeID,
		Odds:       cfg.odds,
		BetOfferID: cfg.betOfferID,
		EventID:    cfg.eventID,
	}}
	res := client.PlaceBet(ctx, selections, cfg.stake)
	slog.Info("Placement finished", "status", res.Status, "stake", res.Stake)
	if res.Status == unibet.PlacementFatal {
		return res.Err
	}
	return nil
}

func parseFlags() cliConfig {
	var cfg cliConfig
	flag.StringVar(&cfg.configPath, "config", defaultConfigPath, "Path to YAML config")
	flag.Int64Var(&cfg.outcomeID, "outcome", 0, "Outcome id to bet on (0 = login check only)")
	flag.Int64Var(&cfg.odds, "odds", 0, "Quoted odds at 1/1000 scale, e.g. 2040 for 2.04")
	flag.Int64Var(&cfg.betOfferID, "betoffer", 0, "Bet offer id the outcome belongs to")
	flag.Int64Var(&cfg.eventID, "event", 0, "Event id the outcome belongs to")
	flag.Int64Var(&cfg.stake, "stake", 0, "Stake at 1/1000 scale (0 = randomized below the ceiling)")
	flag.Parse()
	return cfg
}
