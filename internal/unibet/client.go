// Package unibet drives an authenticated betting session against the
// Unibet/Kambi platform: consent bootstrap, password login, market binding,
// sportsbook handshake, bet placement and history crawling.
package unibet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phoenixbet/phoenix/internal/pkg/config"
	"github.com/phoenixbet/phoenix/internal/pkg/notify"
	"github.com/phoenixbet/phoenix/internal/unibet/session"
)

// State is the login lifecycle position. Transitions only move forward within
// one login pass; any rebuild drops back to StateAnonymous.
type State int

const (
	StateAnonymous State = iota
	StateConsentEstablished
	StateAuthenticated
	StateMarketDataBound
	StateReady
)

const (
	loginAttempts   = 2
	zeroBetLimit    = 3
	italianMinStake = 2000 // 2 EUR at 1/1000 scale
	stakeBand       = 3    // whole units randomized below the ceiling
)

var regionSites = map[string]struct{ host, domain string }{
	"gb": {"www.unibet.co.uk", "uk"},
	"lt": {"lt.unibet-33.com", "lt"},
	"ro": {"www.unibet.ro", "ro"},
	"it": {"www.unibet.it", "it"},
	"at": {"de.unibet.com", "de"},
	"gr": {"gr.unibet-3.com", "gr"},
}

var (
	countryCodeRe  = regexp.MustCompile(`countryCode: '([^']*)'`)
	jurisdictionRe = regexp.MustCompile(`jurisdiction: '([^']*)'`)
	currencyRe     = regexp.MustCompile(`code: '([^']*)'`)
)

// Client is a stateful platform session bound to one account. Not safe for
// concurrent use; run one Client per account goroutine.
type Client struct {
	cfg      config.ClientConfig
	factory  *session.Factory
	useProxy bool

	identity Identity
	notifier *notify.Notifier
	rng      *rand.Rand

	httpClient *http.Client

	domain string // site tld group, e.g. "it", "uk", "com"

	// overridable in tests
	siteBaseURL     string
	authBaseURL     string
	offeringBaseURL string
	xnsBaseURL      string

	state        State
	username     string // canonical platform username
	email        string // original login id when it was an email address
	lang         string
	jurisdiction string
	currency     string
	market       string
	ticket       string
	offering     string
	kambiDomain  string
	sid          string

	zeroBets int
}

// NewClient builds a client for the configured account. The browser persona
// is derived here so an unsupported region fails before any network traffic.
func NewClient(cfg config.ClientConfig, proxyCfg config.ProxyConfig, notifier *notify.Notifier) (*Client, error) {
	identity, err := NewIdentity(cfg.Username, cfg.Password, cfg.Country)
	if err != nil {
		return nil, err
	}

	site, ok := regionSites[strings.ToLower(cfg.Country)]
	if !ok {
		site.host, site.domain = "www.unibet.com", "com"
	}

	c := &Client{
		cfg:      cfg,
		identity: identity,
		notifier: notifier,
		username: cfg.Username,
		domain:   site.domain,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		factory: &session.Factory{
			ProxyHost:     proxyCfg.Host,
			ProxyPort:     proxyCfg.Port,
			ProxyUser:     proxyCfg.Username,
			ProxyPassword: proxyCfg.Password,
			Timeout:       cfg.Timeout,
		},
		useProxy:        proxyCfg.Enabled,
		siteBaseURL:     "https://" + site.host,
		offeringBaseURL: "https://eu-offering.kambicdn.org",
	}
	if err := c.rebuildSession(); err != nil {
		return nil, err
	}
	return c, nil
}

// Username returns the account's display identity: the original email when
// the login id was one, otherwise the canonical platform username.
func (c *Client) Username() string {
	if c.email != "" {
		return c.email
	}
	return c.username
}

// State returns the current login lifecycle position.
func (c *Client) State() State { return c.state }

// SetRand replaces the randomness source. Used by tests to make skip gates
// and stake bands deterministic.
func (c *Client) SetRand(r *rand.Rand) { c.rng = r }

// rebuildSession discards all cookies and proxy affinity and drops back to
// the anonymous state.
func (c *Client) rebuildSession() error {
	headers := http.Header{}
	headers.Set("User-Agent", c.identity.UserAgent)
	headers.Set("Accept-Language", "en-US,en;q=0.9")
	headers.Set("Accept-Encoding", "gzip, deflate, br")
	headers.Set("DNT", "1")
	headers.Set("Pragma", "no-cache")
	headers.Set("Cache-Control", "no-cache")

	client, err := c.factory.Build(headers, c.useProxy, c.identity.Region)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}
	c.httpClient = client
	c.state = StateAnonymous
	c.sid, c.market, c.ticket, c.offering, c.kambiDomain = "", "", "", "", ""
	return nil
}

// Login runs the four-step login sequence. Transport and protocol failures
// get one full retry on a rebuilt session; credential rejections and bot
// challenges are terminal and never retried.
func (c *Client) Login(ctx context.Context) error {
	slog.Info("Logging in", "username", c.Username())

	var lastErr error
	for attempt := 0; attempt < loginAttempts; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying login on a fresh session", "username", c.Username())
			if err := c.rebuildSession(); err != nil {
				return err
			}
		}

		err := c.loginOnce(ctx)
		if err == nil {
			slog.Info("Successfully logged in", "username", c.Username())
			return nil
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			c.notifier.LoginFailed("unibet", c.Username(), authErr.Reason)
			return err
		}

		slog.Error("Login attempt failed", "username", c.Username(), "attempt", attempt+1, "error", err)
		lastErr = err
	}
	return fmt.Errorf("login failed after %d attempts: %w", loginAttempts, lastErr)
}

func (c *Client) loginOnce(ctx context.Context) error {
	if err := c.establishConsent(ctx); err != nil {
		return err
	}
	if err := c.authenticate(ctx); err != nil {
		return err
	}
	if err := c.bindMarketData(ctx); err != nil {
		return err
	}
	if err := c.bindPlatformSession(ctx); err != nil {
		return err
	}
	c.state = StateReady
	return nil
}

// establishConsent loads the public landing page, extracts the site locale
// block and plants the consent cookies an interactive visitor would have.
func (c *Client) establishConsent(ctx context.Context) error {
	landing := c.siteBaseURL + "/betting/sports/home"
	status, body, err := c.get(ctx, landing, map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Upgrade-Insecure-Requests": "1",
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &ProtocolError{Op: "consent page", Body: string(body),
			Err: fmt.Errorf("unexpected status %d", status)}
	}

	lang, jurisdiction, currency, perr := parseSiteConfig(body)
	if perr != nil {
		if !c.cfg.ConsentBrowserFallback {
			return &ProtocolError{Op: "consent page", Body: string(body), Err: perr}
		}
		slog.Warn("Static consent parse failed, falling back to headless browser",
			"username", c.Username(), "error", perr)
		lang, jurisdiction, currency, err = c.consentViaBrowser(ctx, landing)
		if err != nil {
			return fmt.Errorf("browser consent fallback: %w", err)
		}
	}
	c.lang, c.jurisdiction, c.currency = lang, jurisdiction, currency

	// Warm-up launcher call in play-money mode, same as the web client does
	// before showing the login form. The response is irrelevant.
	if _, err := c.fetchLauncher(ctx, false); err != nil {
		var protoErr *ProtocolError
		if !errors.As(err, &protoErr) {
			return err
		}
	}

	c.setCookie("rememberMeName", c.Username())
	c.setCookie("unibet.lang", c.lang)

	c.state = StateConsentEstablished
	slog.Debug("Consent established",
		"lang", c.lang, "jurisdiction", c.jurisdiction, "currency", c.currency)
	return nil
}

// parseSiteConfig pulls locale, jurisdiction and currency out of the inline
// site settings script on the landing page.
func parseSiteConfig(body []byte) (lang, jurisdiction, currency string, err error) {
	parts := strings.SplitN(string(body), "cms.site", 2)
	if len(parts) < 2 {
		return "", "", "", errors.New("site settings block not found")
	}
	settings := parts[1]

	langMatch := countryCodeRe.FindStringSubmatch(settings)
	jurMatch := jurisdictionRe.FindStringSubmatch(settings)
	curMatch := currencyRe.FindStringSubmatch(settings)
	if langMatch == nil || jurMatch == nil || curMatch == nil {
		return "", "", "", errors.New("site settings block incomplete")
	}
	return langMatch[1], jurMatch[1], curMatch[1], nil
}

// authenticate posts the password login and classifies the response.
func (c *Client) authenticate(ctx context.Context) error {
	payload := map[string]any{
		"brand":           "unibet",
		"captchaResponse": "",
		"captchaType":     "INVISIBLE",
		"channel":         "WEB",
		"client":          "polopoly",
		"clientVersion":   "desktop",
		"platform":        "desktop",
		"loginId":         c.identity.Username,
		"loginSecret":     c.identity.Secret,
	}

	status, body, err := c.postJSON(ctx, c.siteBaseURL+"/login-api/methods/password", payload, map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"Origin":           c.siteBaseURL,
		"Referer":          c.siteBaseURL + "/login",
		"X-Requested-With": "XMLHttpRequest",
		"TE":               "Trailers",
	})
	if err != nil {
		return err
	}

	var resp loginResponse
	if jerr := json.Unmarshal(body, &resp); jerr != nil {
		return &ProtocolError{Op: "password login", Body: string(body), Err: jerr}
	}

	if len(resp.Challenge) > 0 && string(resp.Challenge) != "null" {
		return &AuthError{Reason: "captcha challenge issued"}
	}
	if resp.Message != "" {
		return &AuthError{Reason: resp.Message}
	}
	if status != http.StatusOK {
		return &ProtocolError{Op: "password login", Body: string(body),
			Err: fmt.Errorf("unexpected status %d", status)}
	}

	// The platform echoes back its canonical username. Keep the original
	// login id around when it was an email, history and cookies use it.
	if resp.UserName != "" && !strings.EqualFold(resp.UserName, c.username) {
		if strings.Contains(c.username, "@") {
			c.email = c.username
		}
		c.username = resp.UserName
	}

	c.state = StateAuthenticated
	return nil
}

// bindMarketData fetches the real-money launcher descriptor that carries the
// market, the one-time sportsbook ticket and the offering id.
func (c *Client) bindMarketData(ctx context.Context) error {
	launcher, err := c.fetchLauncher(ctx, true)
	if err != nil {
		return err
	}
	if launcher.Market == "" || launcher.AuthToken == "" || launcher.Offering == "" {
		return &ProtocolError{Op: "game launcher",
			Err: errors.New("descriptor missing market, authtoken or offering")}
	}
	c.market = launcher.Market
	c.ticket = launcher.AuthToken
	c.offering = launcher.Offering
	c.kambiDomain = launcher.Jurisdiction
	c.state = StateMarketDataBound
	return nil
}

func (c *Client) fetchLauncher(ctx context.Context, realMoney bool) (*launcherResponse, error) {
	params := url.Values{}
	params.Set("useRealMoney", strconv.FormatBool(realMoney))
	params.Set("locale", c.lang)
	params.Set("jurisdiction", c.jurisdiction)
	params.Set("brand", "unibet")
	params.Set("currency", c.currency)
	params.Set("clientId", "polopoly_desktop")
	params.Set("deviceGroup", "desktop")
	params.Set("deviceOs", "")
	params.Set("loadHTML5client", "true")
	params.Set("enablePoolBetting", "false")
	params.Set("marketLocale", c.lang)
	params.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))

	u := c.siteBaseURL + "/kambi-rest-api/gameLauncher2.json?" + params.Encode()
	status, body, err := c.get(ctx, u, map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"Referer":          c.siteBaseURL + "/betting/sports/home",
		"X-Requested-With": "XMLHttpRequest",
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &ProtocolError{Op: "game launcher", Body: string(body),
			Err: fmt.Errorf("unexpected status %d", status)}
	}

	var launcher launcherResponse
	if jerr := json.Unmarshal(body, &launcher); jerr != nil {
		return nil, &ProtocolError{Op: "game launcher", Body: string(body), Err: jerr}
	}
	return &launcher, nil
}

// bindPlatformSession exchanges the launcher ticket for a sportsbook session
// id, presenting the fingerprint hash the way the embedded Kambi client does.
func (c *Client) bindPlatformSession(ctx context.Context) error {
	params := url.Values{}
	params.Set("settings", "true")
	params.Set("lang", c.lang)
	u := fmt.Sprintf("%s/player/api/v2/%s/punter/login.json?%s",
		c.authBase(), c.offering, params.Encode())

	if err := c.preflight(ctx, u, http.MethodPost); err != nil {
		return err
	}

	payload := map[string]any{
		"attributes":       map[string]string{"fingerprintHash": c.identity.Fingerprint},
		"punterId":         c.username + "@unibet",
		"streamingAllowed": true,
		"ticket":           c.ticket,
		"market":           c.market,
	}
	status, body, err := c.postJSON(ctx, u, payload, map[string]string{
		"Accept":  "application/json, text/javascript, */*; q=0.01",
		"Origin":  "https://" + kambiClientHost,
		"Referer": "https://" + kambiClientHost + "/",
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &ProtocolError{Op: "punter login", Body: string(body),
			Err: fmt.Errorf("unexpected status %d", status)}
	}

	var resp punterLoginResponse
	if jerr := json.Unmarshal(body, &resp); jerr != nil {
		return &ProtocolError{Op: "punter login", Body: string(body), Err: jerr}
	}
	if resp.SessionID == "" {
		return &ProtocolError{Op: "punter login", Body: string(body),
			Err: errors.New("no session id in response")}
	}
	c.sid = resp.SessionID
	return nil
}

const kambiClientHost = "c3-static.kambi.com"

func (c *Client) authBase() string {
	if c.authBaseURL != "" {
		return c.authBaseURL
	}
	return fmt.Sprintf("https://%s-auth.kambicdn.org", c.kambiDomain)
}

func (c *Client) offeringBase() string {
	return c.offeringBaseURL
}

func (c *Client) xnsURL() string {
	if c.xnsBaseURL != "" {
		return c.xnsBaseURL + "/xns-service/secure/authenticate"
	}
	host := "xns.unibet.com"
	switch c.domain {
	case "uk":
		host = "xns.unibet.co.uk"
	case "lt":
		host = "xns.unibet-33.com"
	case "ro":
		host = "xns.unibet.ro"
	case "it":
		host = "xns.unibet.it"
	}
	return "https://" + host + "/xns-service/secure/authenticate"
}

// kambiQuery is the query string suffix every sportsbook API call carries.
func (c *Client) kambiQuery() url.Values {
	params := url.Values{}
	params.Set("lang", c.lang)
	params.Set("market", c.market)
	params.Set("client_id", "2")
	params.Set("channel_id", "1")
	params.Set("ncid", strconv.FormatInt(time.Now().UnixMilli(), 10))
	return params
}

// ensureReady verifies the session is still authenticated and logs in again
// when it is not.
func (c *Client) ensureReady(ctx context.Context) error {
	if c.state == StateReady && c.IsLoggedIn(ctx) {
		return nil
	}
	return c.Login(ctx)
}

// --- HTTP plumbing ---

func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, rawURL string, payload any, headers map[string]string) (int, []byte, error) {
	return c.sendJSON(ctx, http.MethodPost, rawURL, payload, headers)
}

func (c *Client) sendJSON(ctx context.Context, method, rawURL string, payload any, headers map[string]string) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

// preflight mimics the browser's CORS preflight before a cross-origin
// sportsbook call. Responses are ignored; the call only has to happen.
func (c *Client) preflight(ctx context.Context, rawURL, method string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create preflight: %w", err)
	}
	req.Header.Set("Access-Control-Request-Method", method)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	req.Header.Set("Origin", "https://"+kambiClientHost)
	req.Header.Set("Accept", "*/*")

	_, _, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := readBodyDecode(resp)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: "read " + req.URL.Path, Err: err}
	}
	return resp.StatusCode, body, nil
}

func (c *Client) setCookie(name, value string) {
	u, err := url.Parse(c.siteBaseURL)
	if err != nil || c.httpClient.Jar == nil {
		return
	}
	c.httpClient.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}
