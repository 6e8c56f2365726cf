package unibet

import (
	"context"
	"net/http"
	"testing"
)

func oneSelection() []Selection {
	return []Selection{{OutcomeID: 111, Odds: 2040, BetOfferID: 900, EventID: 100}}
}

func TestBetsPattern(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{1, "1"},
		{2, "111"},
		{3, "1111111"},
	}
	for _, tc := range cases {
		if got := betsPattern(tc.n); got != tc.want {
			t.Errorf("betsPattern(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestPlaceBet_Accepted(t *testing.T) {
	h := newHarness(t)
	h.primeReady()

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementAccepted {
		t.Fatalf("status = %s (err %v), want accepted", res.Status, res.Err)
	}
	if res.Stake != 5000 {
		t.Errorf("stake = %d, want 5000", res.Stake)
	}
	if len(h.puts) != 1 {
		t.Fatalf("coupon PUTs = %d, want 1", len(h.puts))
	}

	coupon := h.puts[0].RequestCoupon
	if coupon.Type != "RCT_SINGLE" {
		t.Errorf("type = %q, want RCT_SINGLE", coupon.Type)
	}
	if coupon.AllowOddsChange != "AOCT_NO" {
		t.Errorf("allowOddsChange = %q, want AOCT_NO", coupon.AllowOddsChange)
	}
	if len(coupon.Stakes) != 1 || coupon.Stakes[0] != 5000 {
		t.Errorf("stakes = %v, want [5000]", coupon.Stakes)
	}
	if len(coupon.OutcomeIds) != 1 || coupon.OutcomeIds[0][0] != 111 {
		t.Errorf("outcomeIds = %v, want [[111]]", coupon.OutcomeIds)
	}

	slip := h.puts[0].TrackingData.SelectedOutcomes
	if len(slip) != 1 || slip[0].BetofferID != 900 || slip[0].EventID != 100 {
		t.Errorf("slip linkage = %+v, want betoffer 900 event 100 from the preview", slip)
	}

	// staged browsing: one preview and one validation per selection
	if h.previewHits != 1 || h.validateHits != 1 {
		t.Errorf("preview=%d validate=%d, want 1 each", h.previewHits, h.validateHits)
	}
}

func TestPlaceBet_CombinationType(t *testing.T) {
	h := newHarness(t)
	h.primeReady()

	sels := []Selection{
		{OutcomeID: 111, Odds: 2040, BetOfferID: 900, EventID: 100},
		{OutcomeID: 222, Odds: 1800, BetOfferID: 901, EventID: 101},
	}
	res := h.c.PlaceBet(context.Background(), sels, 3000)
	if res.Status != PlacementAccepted {
		t.Fatalf("status = %s (err %v)", res.Status, res.Err)
	}
	if h.puts[0].RequestCoupon.Type != "RCT_COMBINATION" {
		t.Errorf("type = %q, want RCT_COMBINATION", h.puts[0].RequestCoupon.Type)
	}
	if h.previewHits != 2 || h.validateHits != 2 {
		t.Errorf("preview=%d validate=%d, want 2 each", h.previewHits, h.validateHits)
	}
}

func TestPlaceBet_SkipGate(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.c.cfg.SkipPercent = 100

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementSkipped {
		t.Fatalf("status = %s, want skipped", res.Status)
	}
	if len(h.puts) != 0 || h.previewHits != 0 {
		t.Error("skip gate must fire before any network traffic")
	}
}

func TestPlaceBet_SkipPercentZeroNeverSkips(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.c.cfg.SkipPercent = 0

	for i := 0; i < 10; i++ {
		res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
		if res.Status == PlacementSkipped {
			t.Fatalf("bet %d skipped with skip_percent=0", i)
		}
	}
}

func TestPlaceBet_ZeroStakeEscalatesToAccountLimited(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	reject := couponScript{status: http.StatusConflict,
		body: `{"responseCoupon":{"betErrors":[{"errors":[{"type":"VET_STAKE_TOO_HIGH"}]}]}}`}
	h.script = []couponScript{reject, reject, reject}

	for i, want := range []PlacementStatus{PlacementStakeLimited, PlacementStakeLimited, PlacementAccountLimited} {
		res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
		if res.Status != want {
			t.Fatalf("attempt %d: status = %s, want %s", i+1, res.Status, want)
		}
	}
}

func TestPlaceBet_AcceptanceResetsZeroBetCounter(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	reject := couponScript{status: http.StatusConflict,
		body: `{"responseCoupon":{"betErrors":[{"errors":[{"type":"VET_STAKE_TOO_HIGH"}]}]}}`}
	accept := couponScript{status: http.StatusCreated, body: `{"responseCoupon":{}}`}
	h.script = []couponScript{reject, reject, accept, reject}

	statuses := []PlacementStatus{}
	for i := 0; i < 4; i++ {
		statuses = append(statuses, h.c.PlaceBet(context.Background(), oneSelection(), 5000).Status)
	}
	want := []PlacementStatus{PlacementStakeLimited, PlacementStakeLimited, PlacementAccepted, PlacementStakeLimited}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("attempt %d: status = %s, want %s", i+1, statuses[i], want[i])
		}
	}
}

func TestPlaceBet_AnySuccessStatusIsAccepted(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	reject := couponScript{status: http.StatusConflict,
		body: `{"responseCoupon":{"betErrors":[{"errors":[{"type":"VET_STAKE_TOO_HIGH"}]}]}}`}
	h.script = []couponScript{
		reject,
		{status: http.StatusOK, body: `{"responseCoupon":{}}`},
		reject,
	}

	statuses := []PlacementStatus{}
	for i := 0; i < 3; i++ {
		statuses = append(statuses, h.c.PlaceBet(context.Background(), oneSelection(), 5000).Status)
	}
	// a 200 receipt counts as acceptance and resets the zero-stake counter
	want := []PlacementStatus{PlacementStakeLimited, PlacementAccepted, PlacementStakeLimited}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("attempt %d: status = %s, want %s", i+1, statuses[i], want[i])
		}
	}
}

func TestPlaceBet_OddsChanged(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.script = []couponScript{{status: http.StatusConflict,
		body: `{"responseCoupon":{"betErrors":[{"errors":[{"type":"VET_ODDS_OUT_OF_DATE"}]}]}}`}}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementOddsChanged {
		t.Fatalf("status = %s, want odds_changed", res.Status)
	}
}

func TestPlaceBet_SuggestedStakeResubmittedOnce(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.script = []couponScript{
		{status: http.StatusMultipleChoices,
			body: `{"responseCoupon":{"betErrors":[{"errors":[{"type":"VET_STAKE_TOO_HIGH","arguments":["2500.0"]}]}]}}`},
		{status: http.StatusCreated, body: `{"responseCoupon":{}}`},
	}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementStakeAdjusted {
		t.Fatalf("status = %s (err %v), want stake_adjusted", res.Status, res.Err)
	}
	if len(h.puts) != 2 {
		t.Fatalf("coupon PUTs = %d, want 2", len(h.puts))
	}
	// 2500 floored to whole units
	if got := h.puts[1].RequestCoupon.Stakes[0]; got != 2000 {
		t.Errorf("resubmitted stake = %d, want 2000", got)
	}
	if res.Stake != 2000 {
		t.Errorf("result stake = %d, want 2000", res.Stake)
	}
	// the slip is already prepared, the resubmission must not replay the
	// staged preview
	if h.previewHits != 1 || h.validateHits != 1 {
		t.Errorf("preview=%d validate=%d, want 1 each", h.previewHits, h.validateHits)
	}
}

func TestPlaceBet_SuggestedStakeZeroIsLimited(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.script = []couponScript{{status: http.StatusMultipleChoices,
		body: `{"responseCoupon":{"betErrors":[{"errors":[{"type":"VET_STAKE_TOO_HIGH","arguments":["0"]}]}]}}`}}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementStakeLimited {
		t.Fatalf("status = %s, want stake_limited", res.Status)
	}
	if len(h.puts) != 1 {
		t.Errorf("coupon PUTs = %d, want 1 (zero suggestion is never resubmitted)", len(h.puts))
	}
}

func TestPlaceBet_SuggestedStakeNotRetriedTwice(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	suggest := couponScript{status: http.StatusMultipleChoices,
		body: `{"responseCoupon":{"betErrors":[{"errors":[{"type":"VET_STAKE_TOO_HIGH","arguments":["2500.0"]}]}]}}`}
	h.script = []couponScript{suggest, suggest}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementStakeLimited {
		t.Fatalf("status = %s, want stake_limited after exhausted retry", res.Status)
	}
	if len(h.puts) != 2 {
		t.Errorf("coupon PUTs = %d, want 2", len(h.puts))
	}
}

func TestPlaceBet_UnauthorizedTriggersOneRelogin(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.script = []couponScript{
		{status: http.StatusUnauthorized, body: `{"error":{"message":"Unauthorized"}}`},
		{status: http.StatusCreated, body: `{"responseCoupon":{}}`},
	}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementAccepted {
		t.Fatalf("status = %s (err %v), want accepted after relogin", res.Status, res.Err)
	}
	if h.loginHits != 1 {
		t.Errorf("password logins = %d, want exactly 1", h.loginHits)
	}
	if len(h.puts) != 2 {
		t.Errorf("coupon PUTs = %d, want 2", len(h.puts))
	}
}

func TestPlaceBet_UnauthorizedTwiceIsFatal(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	unauth := couponScript{status: http.StatusUnauthorized, body: `{"error":{"message":"Unauthorized"}}`}
	h.script = []couponScript{unauth, unauth}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementFatal {
		t.Fatalf("status = %s, want fatal", res.Status)
	}
	if h.loginHits != 1 {
		t.Errorf("password logins = %d, want 1", h.loginHits)
	}
}

func TestPlaceBet_TransportFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.script = []couponScript{{drop: true}}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementFatal {
		t.Fatalf("status = %s, want fatal", res.Status)
	}
	if res.Err == nil {
		t.Error("fatal result must carry the transport error")
	}
	if len(h.puts) != 1 {
		t.Errorf("coupon PUTs = %d, want 1 (money-moving calls are never retried blind)", len(h.puts))
	}
}

func TestPlaceBet_UnreadableConflictIsOddsChanged(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.script = []couponScript{{status: http.StatusConflict, body: `<html>proxy error</html>`}}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementOddsChanged {
		t.Fatalf("status = %s, want odds_changed", res.Status)
	}
}

func TestPlaceBet_UnreadableCreatedIsAccepted(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.script = []couponScript{{status: http.StatusCreated, body: `not json`}}

	res := h.c.PlaceBet(context.Background(), oneSelection(), 5000)
	if res.Status != PlacementAccepted {
		t.Fatalf("status = %s, want accepted (the money moved either way)", res.Status)
	}
}

func TestRandomStake_Band(t *testing.T) {
	h := newHarness(t)
	h.c.cfg.MaxStake = 10

	seen := map[int64]bool{}
	for i := 0; i < 50; i++ {
		stake := h.c.randomStake()
		if stake < 7000 || stake > 10000 || stake%1000 != 0 {
			t.Fatalf("stake %d outside whole-unit band [7000,10000]", stake)
		}
		seen[stake] = true
	}
	if len(seen) < 2 {
		t.Error("expected stake randomization to produce more than one value")
	}
}

func TestPlaceBet_ItalianMinimumStake(t *testing.T) {
	h := newHarness(t)
	h.primeReady()
	h.c.domain = "it"

	res := h.c.PlaceBet(context.Background(), oneSelection(), 1000)
	if res.Status != PlacementAccepted {
		t.Fatalf("status = %s (err %v)", res.Status, res.Err)
	}
	if got := h.puts[0].RequestCoupon.Stakes[0]; got != italianMinStake {
		t.Errorf("stake = %d, want raised to %d", got, italianMinStake)
	}
}

func TestRandomBet_PicksPrematchInQuoteBand(t *testing.T) {
	h := newHarness(t)
	h.primeReady()

	res := h.c.RandomBet(context.Background(), 1, 1, 2.0, 2.5, 2.0)
	if res.Status != PlacementAccepted {
		t.Fatalf("status = %s (err %v)", res.Status, res.Err)
	}
	coupon := h.puts[0].RequestCoupon
	if len(coupon.OutcomeIds) != 1 || coupon.OutcomeIds[0][0] != 101 {
		t.Errorf("outcomeIds = %v, want [[101]] (the only prematch outcome in band)", coupon.OutcomeIds)
	}
	if coupon.Stakes[0] != 2000 {
		t.Errorf("stake = %d, want 2000", coupon.Stakes[0])
	}
}

func TestRandomBet_NoEventsInBand(t *testing.T) {
	h := newHarness(t)
	h.primeReady()

	res := h.c.RandomBet(context.Background(), 1, 1, 5.0, 6.0, 2.0)
	if res.Status != PlacementFatal {
		t.Fatalf("status = %s, want fatal when nothing fits the band", res.Status)
	}
}
