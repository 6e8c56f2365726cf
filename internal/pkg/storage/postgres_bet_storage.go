package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/phoenixbet/phoenix/internal/pkg/config"
	"github.com/phoenixbet/phoenix/internal/pkg/models"
)

// Ensure PostgresBetStorage implements BetStorage
var _ BetStorage = (*PostgresBetStorage)(nil)

// PostgresBetStorage stores bet history records in PostgreSQL.
type PostgresBetStorage struct {
	db *sql.DB
}

// NewPostgresBetStorage opens the connection and creates the schema.
func NewPostgresBetStorage(cfg *config.PostgresConfig) (*PostgresBetStorage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	storage := &PostgresBetStorage{db: db}

	if err := storage.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL bet storage initialized")
	return storage, nil
}

func (s *PostgresBetStorage) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS bet_history (
		id VARCHAR(64) PRIMARY KEY,
		owner VARCHAR(100) NOT NULL,
		bookmaker VARCHAR(100) NOT NULL,
		username VARCHAR(200) NOT NULL,
		placed_at TIMESTAMP NOT NULL,
		stake DECIMAL(12, 3) NOT NULL,
		event VARCHAR(500) NOT NULL,
		odds DECIMAL(10, 4) NOT NULL,
		result DECIMAL(12, 3),
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_bet_history_username ON bet_history(username);
	CREATE INDEX IF NOT EXISTS idx_bet_history_placed_at ON bet_history(placed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_bet_history_owner ON bet_history(owner);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// StoreBets inserts records, relying on the primary key to drop rows from
// earlier crawls of the same window.
func (s *PostgresBetStorage) StoreBets(ctx context.Context, bets []models.BetRecord) (int, error) {
	if len(bets) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bet_history (id, owner, bookmaker, username, placed_at, stake, event, odds, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, bet := range bets {
		var result sql.NullFloat64
		if bet.Result != nil {
			result = sql.NullFloat64{Float64: *bet.Result, Valid: true}
		}
		res, err := stmt.ExecContext(ctx, bet.ID, bet.Owner, bet.Bookmaker, bet.Username,
			bet.PlacedAt, bet.Stake, bet.Event, bet.Odds, result)
		if err != nil {
			return stored, fmt.Errorf("insert bet %s: %w", bet.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			stored += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return stored, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

func (s *PostgresBetStorage) Close() error {
	return s.db.Close()
}
