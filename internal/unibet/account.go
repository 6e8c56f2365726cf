package unibet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// IsLoggedIn probes the platform session with the lightweight authenticate
// echo endpoint. A transport hiccup gets one retry before reporting false.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	want := strings.ToLower(c.username + "@unibet is authenticated")
	for attempt := 0; attempt < 2; attempt++ {
		status, body, err := c.get(ctx, c.xnsURL(), map[string]string{
			"Accept":  "*/*",
			"Origin":  c.siteBaseURL,
			"Referer": c.siteBaseURL + "/",
		})
		if err != nil {
			slog.Debug("Login probe failed", "username", c.Username(), "error", err)
			continue
		}
		if status != http.StatusOK {
			return false
		}
		return strings.Contains(strings.ToLower(string(body)), want)
	}
	return false
}

// Balance returns the account's cash balance in whole currency units.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		status, body, err := c.get(ctx, c.siteBaseURL+"/wallitt/mainbalance", map[string]string{
			"Accept":           "application/json, text/plain, */*",
			"Referer":          c.siteBaseURL + "/betting/sports/home",
			"X-Requested-With": "XMLHttpRequest",
		})
		if err != nil {
			lastErr = err
			continue
		}
		if status != http.StatusOK {
			return 0, &ProtocolError{Op: "balance", Body: string(body),
				Err: fmt.Errorf("unexpected status %d", status)}
		}
		var resp balanceResponse
		if jerr := json.Unmarshal(body, &resp); jerr != nil {
			return 0, &ProtocolError{Op: "balance", Body: string(body), Err: jerr}
		}
		return resp.Balance.Cash, nil
	}
	return 0, fmt.Errorf("balance unavailable: %w", lastErr)
}

// Deposits lists deposit transactions since the given time. Rows are opaque
// platform JSON; callers pick the fields they need.
func (c *Client) Deposits(ctx context.Context, since time.Time) ([]json.RawMessage, error) {
	return c.transactions(ctx, "DEPOSIT", since)
}

// Withdrawals lists withdrawal transactions since the given time.
func (c *Client) Withdrawals(ctx context.Context, since time.Time) ([]json.RawMessage, error) {
	return c.transactions(ctx, "WITHDRAWAL", since)
}

func (c *Client) transactions(ctx context.Context, txType string, since time.Time) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("fromDate", strconv.FormatInt(since.UnixMilli(), 10))
	params.Set("toDate", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("pageIndex", "0")
	params.Set("pageSize", "20")
	params.Set("sysName", "CMS")
	params.Set("type", txType)

	u := c.siteBaseURL + "/payment-history/external-api/transaction/list?" + params.Encode()
	status, body, err := c.get(ctx, u, map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"Referer":          c.siteBaseURL + "/myaccount/accounthistory",
		"X-Requested-With": "XMLHttpRequest",
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &ProtocolError{Op: "transaction list", Body: string(body),
			Err: fmt.Errorf("unexpected status %d", status)}
	}

	var resp transactionsResponse
	if jerr := json.Unmarshal(body, &resp); jerr != nil {
		return nil, &ProtocolError{Op: "transaction list", Body: string(body), Err: jerr}
	}
	return resp.Transactions, nil
}
