package unibet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/phoenixbet/phoenix/internal/unibet/fetch"
)

// PlaceBet places a coupon over the given selections. stake is in the
// platform's 1/1000 scale; pass 0 to let the client derive a randomized
// stake below the configured ceiling. The call may be dropped by the
// configured skip gate before any network traffic happens.
func (c *Client) PlaceBet(ctx context.Context, selections []Selection, stake int64) PlacementResult {
	res := c.placeBet(ctx, selections, stake, true)
	if res.Status == PlacementAccepted || res.Status == PlacementStakeAdjusted {
		c.maybePlaceSecondary(ctx)
	}
	return res
}

func (c *Client) placeBet(ctx context.Context, selections []Selection, stake int64, skipGate bool) PlacementResult {
	if len(selections) == 0 {
		return fatalResult(errors.New("no selections"))
	}

	if skipGate && c.cfg.SkipPercent > 0 && c.rng.Intn(100) < c.cfg.SkipPercent {
		slog.Info("Skipped over this bet", "username", c.Username(), "skip_percent", c.cfg.SkipPercent)
		return PlacementResult{Status: PlacementSkipped}
	}

	if stake <= 0 {
		stake = c.randomStake()
	}
	if c.domain == "it" && stake < italianMinStake {
		stake = italianMinStake
	}

	if err := c.ensureReady(ctx); err != nil {
		return fatalResult(err)
	}

	slip, err := c.prepareSlip(ctx, selections)
	if err != nil {
		return fatalResult(err)
	}
	return c.submitCoupon(ctx, selections, slip, stake, true, true)
}

// randomStake picks a whole-unit stake in a small band below the configured
// ceiling so repeated bets do not all land on the exact maximum.
func (c *Client) randomStake() int64 {
	max := c.cfg.MaxStake
	if max <= 0 {
		max = 1
	}
	band := int64(stakeBand)
	if band >= max {
		band = max - 1
	}
	units := max
	if band > 0 {
		units = max - c.rng.Int63n(band+1)
	}
	return units * 1000
}

// prepareSlip replays the staged browsing sequence the web client produces
// while a user builds a betslip: after each added outcome, a price preview
// over the cumulative set and a coupon validation. The final preview supplies
// the market and event linkage for the tracking slip.
func (c *Client) prepareSlip(ctx context.Context, selections []Selection) ([]selectedOutcome, error) {
	var lastOffers betOffersResponse

	ids := make([]string, 0, len(selections))
	for i, sel := range selections {
		ids = append(ids, strconv.FormatInt(sel.OutcomeID, 10))

		params := c.kambiQuery()
		params.Set("id", strings.Join(ids, ","))
		u := fmt.Sprintf("%s/offering/v2018/%s/betoffer/outcome.json?%s",
			c.offeringBase(), c.offering, params.Encode())
		status, body, err := c.get(ctx, u, map[string]string{
			"Accept": "application/json, text/javascript, */*; q=0.01",
			"Origin": "https://" + kambiClientHost,
		})
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, &ProtocolError{Op: "outcome preview", Body: string(body),
				Err: fmt.Errorf("unexpected status %d", status)}
		}
		if i == len(selections)-1 {
			if jerr := json.Unmarshal(body, &lastOffers); jerr != nil {
				return nil, &ProtocolError{Op: "outcome preview", Body: string(body), Err: jerr}
			}
		}

		if err := c.validateCoupon(ctx, selections[:i+1]); err != nil {
			return nil, err
		}
	}

	slip := make([]selectedOutcome, 0, len(selections))
	for i, sel := range selections {
		betOfferID, eventID := sel.BetOfferID, sel.EventID
		if i < len(lastOffers.BetOffers) {
			betOfferID = lastOffers.BetOffers[i].ID
			eventID = lastOffers.BetOffers[i].EventID
		}
		slip = append(slip, selectedOutcome{
			EachWayApproved:    true,
			FromBetBuilder:     false,
			IsPrematchBetoffer: true,
			OddsApproved:       true,
			IsLiveBetoffer:     false,
			Source:             "Event List View",
			BetofferID:         betOfferID,
			EventID:            eventID,
			OutcomeID:          sel.OutcomeID,
			ID:                 sel.OutcomeID,
			ApprovedOdds:       sel.Odds,
		})
	}
	return slip, nil
}

// validateCoupon runs the system-coupon dry check over the first n staged
// selections. Rejections here are advisory, only transport failures abort.
func (c *Client) validateCoupon(ctx context.Context, staged []Selection) error {
	u := fmt.Sprintf("%s/player/api/v2/%s/coupon/validate.json;jsessionid=%s?%s",
		c.authBase(), c.offering, c.sid, c.kambiQuery().Encode())

	if err := c.preflight(ctx, u, http.MethodPost); err != nil {
		return err
	}

	coupon := requestCoupon{
		Type:          "RCT_SYSTEM",
		Odds:          make([]int64, 0, len(staged)),
		OutcomeIds:    make([][]int64, 0, len(staged)),
		BetsPattern:   betsPattern(len(staged)),
		CouponRewards: []any{},
		Selection:     make([][]any, 0, len(staged)),
	}
	for _, sel := range staged {
		coupon.Odds = append(coupon.Odds, sel.Odds)
		coupon.OutcomeIds = append(coupon.OutcomeIds, []int64{sel.OutcomeID})
		coupon.Selection = append(coupon.Selection, []any{})
	}

	status, body, err := c.postJSON(ctx, u, couponRequest{ID: 1, RequestCoupon: coupon}, map[string]string{
		"Accept": "application/json, text/javascript, */*; q=0.01",
		"Origin": "https://" + kambiClientHost,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		slog.Debug("Coupon validation not clean", "status", status, "body", preview(string(body)))
	}
	return nil
}

// betsPattern is the system-coupon bet mask for n selections: every one of
// the 2^n-1 sub-combinations marked active.
func betsPattern(n int) string {
	return strings.Repeat("1", (1<<n)-1)
}

// submitCoupon performs the money-moving PUT and classifies the response.
// allowStakeRetry permits one resubmission at a platform-suggested stake;
// allowAuthRetry permits one relogin-and-replace on a dead session. Both are
// single-shot, the nested calls always pass false.
func (c *Client) submitCoupon(ctx context.Context, selections []Selection, slip []selectedOutcome, stake int64, allowStakeRetry, allowAuthRetry bool) PlacementResult {
	u := fmt.Sprintf("%s/player/api/v2/%s/coupon.json;jsessionid=%s?%s",
		c.authBase(), c.offering, c.sid, c.kambiQuery().Encode())

	if err := c.preflight(ctx, u, http.MethodPut); err != nil {
		return fatalResult(err)
	}

	couponType := "RCT_SINGLE"
	if len(selections) > 1 {
		couponType = "RCT_COMBINATION"
	}
	coupon := requestCoupon{
		Type:            couponType,
		AllowOddsChange: "AOCT_NO",
		Odds:            make([]int64, 0, len(selections)),
		Stakes:          []int64{stake},
		OutcomeIds:      make([][]int64, 0, len(selections)),
		CouponRewards:   []any{},
		Selection:       make([][]any, 0, len(selections)),
	}
	for _, sel := range selections {
		coupon.Odds = append(coupon.Odds, sel.Odds)
		coupon.OutcomeIds = append(coupon.OutcomeIds, []int64{sel.OutcomeID})
		coupon.Selection = append(coupon.Selection, []any{})
	}

	payload := couponRequest{
		ID:            1,
		RequestCoupon: coupon,
		TrackingData: &trackingData{
			HasTeaser:               false,
			IsBetBuilderCombination: false,
			SelectedOutcomes:        slip,
		},
	}

	// Transport failures from here on are fatal: the coupon may or may not
	// have been booked and a blind retry could double-spend.
	status, body, err := c.sendJSON(ctx, http.MethodPut, u, payload, map[string]string{
		"Accept": "application/json, text/javascript, */*; q=0.01",
		"Origin": "https://" + kambiClientHost,
	})
	if err != nil {
		return fatalResult(err)
	}

	return c.interpretSubmit(ctx, selections, slip, stake, status, body, allowStakeRetry, allowAuthRetry)
}

func (c *Client) interpretSubmit(ctx context.Context, selections []Selection, slip []selectedOutcome, stake int64, status int, body []byte, allowStakeRetry, allowAuthRetry bool) PlacementResult {
	var parsed couponResponse
	if jerr := json.Unmarshal(body, &parsed); jerr != nil {
		switch status {
		case http.StatusConflict:
			return PlacementResult{Status: PlacementOddsChanged}
		case http.StatusCreated:
			// Booked but the receipt is unreadable. Treat as accepted, the
			// money moved either way.
			c.zeroBets = 0
			slog.Warn("Coupon accepted with unreadable receipt", "username", c.Username())
			return PlacementResult{Status: PlacementAccepted, Stake: stake}
		default:
			return fatalResult(&ProtocolError{Op: "coupon submit", Body: string(body),
				Err: fmt.Errorf("unparseable response, status %d: %w", status, jerr)})
		}
	}

	if status/100 == 2 {
		c.zeroBets = 0
		slog.Info("Bet accepted", "username", c.Username(), "stake", stake)
		return PlacementResult{Status: PlacementAccepted, Stake: stake, Receipt: string(body)}
	}

	switch status {
	case http.StatusConflict:
		if firstCouponErrorType(&parsed) == "VET_STAKE_TOO_HIGH" {
			c.zeroBets++
			slog.Warn("Stake rejected as too high", "username", c.Username(),
				"stake", stake, "consecutive", c.zeroBets)
			if c.zeroBets >= zeroBetLimit {
				c.notifier.AccountLimited("unibet", c.Username())
				return PlacementResult{Status: PlacementAccountLimited}
			}
			return PlacementResult{Status: PlacementStakeLimited}
		}
		return PlacementResult{Status: PlacementOddsChanged}

	case http.StatusMultipleChoices:
		suggested, err := suggestedStake(&parsed)
		if err != nil {
			return fatalResult(&ProtocolError{Op: "coupon submit", Body: string(body), Err: err})
		}
		if suggested == 0 || !allowStakeRetry {
			return PlacementResult{Status: PlacementStakeLimited}
		}
		slog.Info("Resubmitting at suggested stake", "username", c.Username(),
			"requested", stake, "suggested", suggested)
		// the slip is already prepared and the session unchanged, so the
		// staged preview is not replayed
		res := c.submitCoupon(ctx, selections, slip, suggested, false, allowAuthRetry)
		if res.Status == PlacementAccepted {
			res.Status = PlacementStakeAdjusted
		}
		return res

	default:
		if parsed.Error != nil && parsed.Error.Message == "Unauthorized" {
			if !allowAuthRetry {
				return fatalResult(&ProtocolError{Op: "coupon submit", Body: string(body),
					Err: errors.New("unauthorized after relogin")})
			}
			slog.Warn("Platform session expired mid-placement, logging in again",
				"username", c.Username())
			if err := c.Login(ctx); err != nil {
				return fatalResult(err)
			}
			return c.resubmit(ctx, selections, stake, allowStakeRetry, false)
		}
		return fatalResult(&ProtocolError{Op: "coupon submit", Body: string(body),
			Err: fmt.Errorf("unexpected status %d", status)})
	}
}

// resubmit re-runs the staged preview and submits again. Used after a
// relogin, where the old slip was validated against a dead session.
func (c *Client) resubmit(ctx context.Context, selections []Selection, stake int64, allowStakeRetry, allowAuthRetry bool) PlacementResult {
	slip, err := c.prepareSlip(ctx, selections)
	if err != nil {
		return fatalResult(err)
	}
	return c.submitCoupon(ctx, selections, slip, stake, allowStakeRetry, allowAuthRetry)
}

func firstCouponErrorType(resp *couponResponse) string {
	if resp.ResponseCoupon == nil {
		return ""
	}
	for _, betErr := range resp.ResponseCoupon.BetErrors {
		for _, e := range betErr.Errors {
			return e.Type
		}
	}
	return ""
}

// suggestedStake extracts the platform's counter-offer from a 300 response
// and floors it to whole currency units.
func suggestedStake(resp *couponResponse) (int64, error) {
	if resp.ResponseCoupon == nil {
		return 0, errors.New("no response coupon in 300 reply")
	}
	for _, betErr := range resp.ResponseCoupon.BetErrors {
		for _, e := range betErr.Errors {
			if len(e.Arguments) == 0 {
				continue
			}
			f, err := strconv.ParseFloat(e.Arguments[0], 64)
			if err != nil {
				return 0, fmt.Errorf("parse suggested stake %q: %w", e.Arguments[0], err)
			}
			return int64(f/1000) * 1000, nil
		}
	}
	return 0, errors.New("no suggested stake in 300 reply")
}

func fatalResult(err error) PlacementResult {
	return PlacementResult{Status: PlacementFatal, Err: err}
}

// --- secondary randomized bet ---

func (c *Client) maybePlaceSecondary(ctx context.Context) {
	sb := c.cfg.SecondaryBet
	if !sb.Enabled {
		return
	}
	if c.rng.Float64()*100 >= sb.Percent {
		return
	}
	slog.Info("Placing secondary randomized bet", "username", c.Username())
	res := c.RandomBet(ctx, sb.MinOptions, sb.MaxOptions, sb.MinQuote, sb.MaxQuote, sb.Stake)
	if res.Status != PlacementAccepted && res.Status != PlacementStakeAdjusted {
		slog.Warn("Secondary bet not accepted", "username", c.Username(),
			"status", res.Status, "error", res.Err)
	}
}

// RandomBet assembles a small prematch football combination from the live
// offering and places it, bypassing the skip gate. Quotes and stake are in
// whole units (2.0 decimal odds, 5.0 currency).
func (c *Client) RandomBet(ctx context.Context, minOptions, maxOptions int, minQuote, maxQuote, stake float64) PlacementResult {
	if minOptions < 1 {
		minOptions = 1
	}
	if maxOptions < minOptions {
		maxOptions = minOptions
	}
	minOdds := int64(minQuote * 1000)
	maxOdds := int64(maxQuote * 1000)

	if err := c.ensureReady(ctx); err != nil {
		return fatalResult(err)
	}

	views, err := c.ListViews(ctx, []string{"football"})
	if err != nil {
		return fatalResult(err)
	}

	var prematch []ListViewEvent
	for _, view := range views {
		for _, ev := range view.Events {
			if !ev.Live() {
				prematch = append(prematch, ev)
			}
		}
	}
	if len(prematch) == 0 {
		return fatalResult(errors.New("no prematch events in offering"))
	}

	wanted := minOptions + c.rng.Intn(maxOptions-minOptions+1)
	c.rng.Shuffle(len(prematch), func(i, j int) {
		prematch[i], prematch[j] = prematch[j], prematch[i]
	})

	var selections []Selection
	seenEvents := make(map[int64]bool)
	for _, ev := range prematch {
		if len(selections) == wanted {
			break
		}
		sel, ok := pickOutcome(ev, minOdds, maxOdds)
		if !ok || seenEvents[sel.EventID] {
			continue
		}
		seenEvents[sel.EventID] = true
		selections = append(selections, sel)
	}
	if len(selections) < minOptions {
		return fatalResult(fmt.Errorf("only %d outcomes in quote band, need %d",
			len(selections), minOptions))
	}

	return c.placeBet(ctx, selections, int64(stake*1000), false)
}

// pickOutcome returns the first outcome of the event's markets whose price
// falls inside the quote band.
func pickOutcome(ev ListViewEvent, minOdds, maxOdds int64) (Selection, bool) {
	for _, offer := range ev.BetOffers {
		for _, out := range offer.Outcomes {
			if out.Odds >= minOdds && out.Odds <= maxOdds {
				return Selection{
					OutcomeID:  out.ID,
					Odds:       out.Odds,
					BetOfferID: offer.ID,
					EventID:    offer.EventID,
				}, true
			}
		}
	}
	return Selection{}, false
}

// ListViews fetches the event listings for the given sports concurrently and
// returns them in request order.
func (c *Client) ListViews(ctx context.Context, sports []string) ([]ListView, error) {
	urls := make([]string, 0, len(sports))
	for _, sport := range sports {
		params := c.kambiQuery()
		params.Set("useCombined", "true")
		urls = append(urls, fmt.Sprintf("%s/offering/v2018/%s/listView/%s.json?%s",
			c.offeringBase(), c.offering, sport, params.Encode()))
	}

	workers := c.cfg.Workers
	results := fetch.All(ctx, c.httpClient, urls, workers)

	views := make([]ListView, 0, len(results))
	for i, res := range results {
		if res.Err != nil {
			return nil, &TransportError{Op: "list view " + sports[i], Err: res.Err}
		}
		if res.Status != http.StatusOK {
			return nil, &ProtocolError{Op: "list view " + sports[i], Body: string(res.Body),
				Err: fmt.Errorf("unexpected status %d", res.Status)}
		}
		var view ListView
		if jerr := json.Unmarshal(res.Body, &view); jerr != nil {
			return nil, &ProtocolError{Op: "list view " + sports[i], Body: string(res.Body), Err: jerr}
		}
		views = append(views, view)
	}
	return views, nil
}
