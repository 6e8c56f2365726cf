package storage

import (
	"context"

	"github.com/phoenixbet/phoenix/internal/pkg/models"
)

// BetStorage persists crawled betting history. Implementations must be safe
// to call with records the store has already seen; duplicates are dropped,
// not errored.
type BetStorage interface {
	// StoreBets inserts records, skipping already-stored ids, and returns
	// how many rows were actually written.
	StoreBets(ctx context.Context, bets []models.BetRecord) (int, error)
	Close() error
}
