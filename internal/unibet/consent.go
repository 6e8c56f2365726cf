package unibet

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// chromeMu serializes all Chrome usage so only one instance runs at a time.
var chromeMu sync.Mutex

const browserConsentTimeout = 60 * time.Second

// consentViaBrowser loads the landing page in a headless browser when the
// static fetch came back without the site settings block (consent wall, bot
// interstitial). The rendered page is parsed the same way and the browser's
// cookies are imported into the session jar so the follow-up requests look
// like a continuation of the same visit.
func (c *Client) consentViaBrowser(ctx context.Context, landingURL string) (lang, jurisdiction, currency string, err error) {
	chromeMu.Lock()
	defer chromeMu.Unlock()

	chromeDir, err := os.MkdirTemp("", "unibet_chrome_")
	if err != nil {
		return "", "", "", fmt.Errorf("create chrome temp dir: %w", err)
	}
	defer os.RemoveAll(chromeDir)

	ctx, cancel := context.WithTimeout(ctx, browserConsentTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserDataDir(chromeDir),
		chromedp.UserAgent(c.identity.UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	ctx, cancel = chromedp.NewContext(allocCtx)
	defer cancel()

	var html string
	var cookies []*network.Cookie
	err = chromedp.Run(ctx,
		chromedp.Navigate(landingURL),
		chromedp.Sleep(3*time.Second),
		chromedp.OuterHTML("html", &html),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", "", "", fmt.Errorf("load landing page: %w", err)
	}

	lang, jurisdiction, currency, err = parseSiteConfig([]byte(html))
	if err != nil {
		return "", "", "", fmt.Errorf("rendered page: %w", err)
	}

	c.importBrowserCookies(cookies)
	return lang, jurisdiction, currency, nil
}

func (c *Client) importBrowserCookies(cookies []*network.Cookie) {
	if c.httpClient.Jar == nil {
		return
	}
	u, err := url.Parse(c.siteBaseURL)
	if err != nil {
		return
	}
	imported := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		imported = append(imported, &http.Cookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Path:   ck.Path,
			Domain: ck.Domain,
		})
	}
	c.httpClient.Jar.SetCookies(u, imported)
}
