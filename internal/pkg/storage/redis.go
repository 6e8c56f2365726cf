package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phoenixbet/phoenix/internal/pkg/config"
)

const defaultSeenTTL = 30 * 24 * time.Hour

// SeenBetCache remembers which bet ids a history crawl has already handed to
// persistent storage, so repeated crawls of overlapping windows skip the
// postgres round trip for known rows.
type SeenBetCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSeenBetCache(cfg *config.RedisConfig) (*SeenBetCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSeenTTL
	}
	return &SeenBetCache{client: client, ttl: ttl}, nil
}

// MarkSeen records a bet id and reports whether it was new.
func (c *SeenBetCache) MarkSeen(ctx context.Context, betID string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(betID), 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	return ok, nil
}

// IsSeen reports whether a bet id was already marked.
func (c *SeenBetCache) IsSeen(ctx context.Context, betID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(betID)).Result()
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return n > 0, nil
}

func (c *SeenBetCache) key(betID string) string {
	return fmt.Sprintf("bets:seen:%s", betID)
}

func (c *SeenBetCache) Close() error {
	return c.client.Close()
}
