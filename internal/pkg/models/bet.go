package models

import "time"

// BetRecord is a normalized row of betting history, ready for persistence.
type BetRecord struct {
	// ID is a stable identifier derived from the account and the
	// platform-assigned bet id; history crawls deduplicate on it.
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Bookmaker string    `json:"bookmaker"`
	Username  string    `json:"username"`
	PlacedAt  time.Time `json:"placed_at"`
	Stake     float64   `json:"stake"`
	Event     string    `json:"event"`
	Odds      float64   `json:"odds"`
	// Result is the payout for a settled bet (0 for a loss, the stake for a
	// void) and nil while the bet is pending.
	Result *float64 `json:"result,omitempty"`
}
