// history-crawler logs in, crawls the account's bet history for the last N
// days and stores new records in PostgreSQL. With Redis enabled, bets already
// seen by an earlier crawl skip the database round trip.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgconfig "github.com/phoenixbet/phoenix/internal/pkg/config"
	"github.com/phoenixbet/phoenix/internal/pkg/logging"
	"github.com/phoenixbet/phoenix/internal/pkg/models"
	"github.com/phoenixbet/phoenix/internal/pkg/notify"
	"github.com/phoenixbet/phoenix/internal/pkg/storage"
	"github.com/phoenixbet/phoenix/internal/unibet"
)

const defaultConfigPath = "configs/production.yaml"

func main() {
	if err := run(); err != nil {
		slog.Error("History crawler failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath, "Path to YAML config")
	days := flag.Int("days", 7, "How many days back to crawl")
	status := flag.String("status", "", "Optional platform bet status filter")
	flag.Parse()

	appConfig, err := pkgconfig.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := logging.SetupLogger(&appConfig.Logging, "history-crawler"); err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewPostgresBetStorage(&appConfig.Postgres)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	var seen *storage.SeenBetCache
	if appConfig.Redis.Enabled {
		seen, err = storage.NewSeenBetCache(&appConfig.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, crawling without seen-bet cache", "error", err)
		} else {
			defer seen.Close()
		}
	}

	notifier := notify.NewNotifier(appConfig.Telegram.BotToken, appConfig.Telegram.ChatID)

	client, err := unibet.NewClient(appConfig.Client, appConfig.Proxy, notifier)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err := client.Login(ctx); err != nil {
		return err
	}

	end := time.Now()
	start := end.AddDate(0, 0, -*days)
	records, err := client.BetHistory(ctx, start, end, *status)
	if err != nil {
		return fmt.Errorf("crawl history: %w", err)
	}

	fresh := records
	if seen != nil {
		fresh = filterSeen(ctx, seen, records)
	}

	stored, err := store.StoreBets(ctx, fresh)
	if err != nil {
		return fmt.Errorf("store bets: %w", err)
	}
	slog.Info("Crawl finished", "crawled", len(records), "fresh", len(fresh), "stored", stored)
	return nil
}

func filterSeen(ctx context.Context, seen *storage.SeenBetCache, records []models.BetRecord) []models.BetRecord {
	fresh := make([]models.BetRecord, 0, len(records))
	for _, rec := range records {
		isNew, err := seen.MarkSeen(ctx, rec.ID)
		if err != nil {
			// cache trouble must not lose records, postgres dedupes anyway
			fresh = append(fresh, rec)
			continue
		}
		if isNew {
			fresh = append(fresh, rec)
		}
	}
	return fresh
}
