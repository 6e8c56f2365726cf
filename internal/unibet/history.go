package unibet

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/phoenixbet/phoenix/internal/pkg/models"
)

const historyPageSize = 50

// BetHistory crawls the account's settled and open coupons between start and
// end. status optionally narrows the crawl to one platform bet status. Pages
// are walked newest first until the window start, an empty page or a 404.
func (c *Client) BetHistory(ctx context.Context, start, end time.Time, status string) ([]models.BetRecord, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}

	var coupons []historyCoupon
	for page := 0; ; page++ {
		params := c.kambiQuery()
		params.Set("range_size", strconv.Itoa(historyPageSize))
		params.Set("range_start", strconv.Itoa(page*historyPageSize))
		params.Set("toDate", end.Format("2006-01-02"))
		if status != "" {
			params.Set("status", status)
		}

		u := fmt.Sprintf("%s/player/api/v2/%s/coupon/summary.json;jsessionid=%s?%s",
			c.authBase(), c.offering, c.sid, params.Encode())
		httpStatus, body, err := c.get(ctx, u, map[string]string{
			"Accept":  "application/json, text/javascript, */*; q=0.01",
			"Origin":  "https://" + kambiClientHost,
			"Referer": "https://" + kambiClientHost + "/",
		})
		if err != nil {
			return nil, err
		}
		// The platform 404s past the last page instead of returning an empty
		// list.
		if httpStatus == http.StatusNotFound {
			break
		}
		if httpStatus != http.StatusOK {
			return nil, &ProtocolError{Op: "coupon summary", Body: string(body),
				Err: fmt.Errorf("unexpected status %d", httpStatus)}
		}

		var resp historyResponse
		if jerr := json.Unmarshal(body, &resp); jerr != nil {
			return nil, &ProtocolError{Op: "coupon summary", Body: string(body), Err: jerr}
		}
		if len(resp.HistorySummaryCoupons) == 0 {
			break
		}
		coupons = append(coupons, resp.HistorySummaryCoupons...)

		oldest := resp.HistorySummaryCoupons[len(resp.HistorySummaryCoupons)-1]
		placedAt, perr := parsePlacedDate(oldest.PlacedDate)
		if perr != nil {
			// without a readable boundary date the window check cannot run;
			// stop rather than page through the whole account
			slog.Warn("Stopping crawl on unreadable boundary date",
				"username", c.Username(), "date", oldest.PlacedDate, "error", perr)
			break
		}
		if placedAt.Before(start) {
			break
		}
	}

	records := make([]models.BetRecord, 0, len(coupons))
	for _, coupon := range coupons {
		record, err := c.convertBet(coupon)
		if err != nil {
			slog.Warn("Skipping unconvertible coupon", "username", c.Username(), "error", err)
			continue
		}
		if record.PlacedAt.Before(start) || record.PlacedAt.After(end) {
			continue
		}
		records = append(records, record)
	}

	slog.Info("Crawled bet history", "username", c.Username(),
		"from", start.Format("2006-01-02"), "to", end.Format("2006-01-02"),
		"records", len(records))
	return records, nil
}

// convertBet maps a platform coupon to a storage record. Monetary values and
// odds come off the wire at 1/1000 scale.
func (c *Client) convertBet(coupon historyCoupon) (models.BetRecord, error) {
	if len(coupon.Bets) == 0 {
		return models.BetRecord{}, fmt.Errorf("coupon without bets, placed %s", coupon.PlacedDate)
	}
	placedAt, err := parsePlacedDate(coupon.PlacedDate)
	if err != nil {
		return models.BetRecord{}, fmt.Errorf("parse placed date %q: %w", coupon.PlacedDate, err)
	}

	bet := coupon.Bets[0]
	betID := bet.BetID
	if coupon.SingleBetID != nil {
		betID = *coupon.SingleBetID
	}

	stake := float64(coupon.Stake) / 1000
	var odds float64
	var result *float64
	switch bet.BetStatus {
	case 1: // open
		odds = float64(bet.BetOdds) / 1000
	case 2: // won
		odds = float64(bet.BetOdds) / 1000
		payout := float64(coupon.Payout) / 1000
		result = &payout
	case 3: // lost
		odds = playedOdds(coupon) / 1000
		lost := 0.0
		result = &lost
	default: // voided, stake returned
		odds = playedOdds(coupon) / 1000
		refund := stake
		result = &refund
	}

	event := ""
	if len(coupon.Outcomes) > 0 {
		event = coupon.Outcomes[0].EventName
	}

	sum := md5.Sum([]byte(c.username + strconv.FormatInt(betID, 10)))
	return models.BetRecord{
		ID:        hex.EncodeToString(sum[:]),
		Owner:     c.cfg.Owner,
		Bookmaker: "unibet",
		Username:  c.Username(),
		PlacedAt:  placedAt,
		Stake:     stake,
		Event:     event,
		Odds:      odds,
		Result:    result,
	}, nil
}

func playedOdds(coupon historyCoupon) float64 {
	if len(coupon.Outcomes) > 0 {
		return float64(coupon.Outcomes[0].PlayedOdds)
	}
	return 0
}

func parsePlacedDate(s string) (time.Time, error) {
	if len(s) < 19 {
		return time.Time{}, fmt.Errorf("date too short: %q", s)
	}
	return time.Parse("2006-01-02T15:04:05", s[:19])
}
