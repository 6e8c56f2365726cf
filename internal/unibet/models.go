package unibet

import "encoding/json"

// Selection is one bettable outcome. Odds use the platform's 1/1000 fixed
// point scale (2.04 decimal odds = 2040). BetOfferID and EventID are the
// market and event the outcome belongs to.
type Selection struct {
	OutcomeID  int64
	Odds       int64
	BetOfferID int64
	EventID    int64
}

// PlacementStatus classifies how a placement attempt ended.
type PlacementStatus string

const (
	// PlacementAccepted means the coupon was booked at the requested stake.
	PlacementAccepted PlacementStatus = "accepted"
	// PlacementSkipped means the randomized skip gate dropped the bet before
	// any network traffic.
	PlacementSkipped PlacementStatus = "skipped"
	// PlacementOddsChanged means the platform rejected the coupon because the
	// quoted price moved.
	PlacementOddsChanged PlacementStatus = "odds_changed"
	// PlacementStakeLimited means the platform capped the stake below the
	// request and no acceptable resubmission was possible.
	PlacementStakeLimited PlacementStatus = "stake_limited"
	// PlacementStakeAdjusted means the coupon was booked after one resubmission
	// at the platform's suggested lower stake.
	PlacementStakeAdjusted PlacementStatus = "stake_adjusted"
	// PlacementAccountLimited means repeated zero-stake rejections indicate the
	// account itself is limited.
	PlacementAccountLimited PlacementStatus = "account_limited"
	// PlacementFatal means a transport failure or unclassifiable response; the
	// caller must not assume anything about the coupon's fate.
	PlacementFatal PlacementStatus = "fatal"
)

// PlacementResult is the outcome of one PlaceBet call. Stake is the amount
// actually submitted (1/1000 scale); Receipt is the raw acceptance body when
// the platform returned one.
type PlacementResult struct {
	Status  PlacementStatus
	Stake   int64
	Receipt string
	Err     error
}

// --- platform wire types ---

type loginResponse struct {
	Challenge json.RawMessage `json:"challenge"`
	Message   string          `json:"message"`
	UserName  string          `json:"userName"`
}

// launcherResponse is the real-money game launcher descriptor binding the
// account to its sportsbook market.
type launcherResponse struct {
	Market       string `json:"market"`
	AuthToken    string `json:"authtoken"`
	Offering     string `json:"offering"`
	Jurisdiction string `json:"jurisdiction"`
}

type punterLoginResponse struct {
	SessionID string `json:"sessionId"`
}

type balanceResponse struct {
	Balance struct {
		Cash float64 `json:"cash"`
	} `json:"balance"`
}

type betOffersResponse struct {
	BetOffers []struct {
		ID      int64 `json:"id"`
		EventID int64 `json:"eventId"`
	} `json:"betOffers"`
}

type requestCoupon struct {
	Type            string    `json:"type"`
	AllowOddsChange string    `json:"allowOddsChange,omitempty"`
	Odds            []int64   `json:"odds"`
	Stakes          []int64   `json:"stakes,omitempty"`
	OutcomeIds      [][]int64 `json:"outcomeIds"`
	BetsPattern     string    `json:"betsPattern,omitempty"`
	CouponRewards   []any     `json:"couponRewards"`
	Selection       [][]any   `json:"selection"`
}

// selectedOutcome is the tracking slip entry the sportsbook frontend sends
// alongside a coupon.
type selectedOutcome struct {
	EachWayApproved    bool   `json:"eachWayApproved"`
	FromBetBuilder     bool   `json:"fromBetBuilder"`
	IsPrematchBetoffer bool   `json:"isPrematchBetoffer"`
	OddsApproved       bool   `json:"oddsApproved"`
	IsLiveBetoffer     bool   `json:"isLiveBetoffer"`
	Source             string `json:"source"`
	BetofferID         int64  `json:"betofferId"`
	EventID            int64  `json:"eventId"`
	OutcomeID          int64  `json:"outcomeId"`
	ID                 int64  `json:"id"`
	ApprovedOdds       int64  `json:"approvedOdds"`
}

type trackingData struct {
	HasTeaser               bool              `json:"hasTeaser"`
	IsBetBuilderCombination bool              `json:"isBetBuilderCombination"`
	SelectedOutcomes        []selectedOutcome `json:"selectedOutcomes"`
}

type couponRequest struct {
	ID            int64         `json:"id"`
	RequestCoupon requestCoupon `json:"requestCoupon"`
	TrackingData  *trackingData `json:"trackingData,omitempty"`
}

type couponError struct {
	Type      string   `json:"type"`
	Arguments []string `json:"arguments"`
}

type couponBetError struct {
	Errors []couponError `json:"errors"`
}

type couponResponse struct {
	ResponseCoupon *struct {
		BetErrors []couponBetError `json:"betErrors"`
	} `json:"responseCoupon"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ListView is the offering's event listing for one sport.
type ListView struct {
	Events []ListViewEvent `json:"events"`
}

type ListViewEvent struct {
	LiveData  json.RawMessage    `json:"liveData,omitempty"`
	BetOffers []ListViewBetOffer `json:"betOffers"`
}

type ListViewBetOffer struct {
	ID       int64             `json:"id"`
	EventID  int64             `json:"eventId"`
	Outcomes []ListViewOutcome `json:"outcomes"`
}

type ListViewOutcome struct {
	ID   int64 `json:"id"`
	Odds int64 `json:"odds"`
}

// Live reports whether the event is in play. Randomized secondary bets only
// target prematch markets.
func (e *ListViewEvent) Live() bool {
	return len(e.LiveData) > 0 && string(e.LiveData) != "null"
}

type historyResponse struct {
	HistorySummaryCoupons []historyCoupon `json:"historySummaryCoupons"`
}

type historyCoupon struct {
	PlacedDate  string `json:"placedDate"`
	Stake       int64  `json:"stake"`
	Payout      int64  `json:"payout"`
	SingleBetID *int64 `json:"singleBetId"`
	Outcomes    []struct {
		EventName  string `json:"eventName"`
		PlayedOdds int64  `json:"playedOdds"`
	} `json:"outcomes"`
	Bets []struct {
		BetID     int64 `json:"betId"`
		BetStatus int   `json:"betStatus"`
		BetOdds   int64 `json:"betOdds"`
	} `json:"bets"`
}

type transactionsResponse struct {
	Transactions []json.RawMessage `json:"transactions"`
}
