// Package session builds the HTTP clients the betting client drives. A built
// client carries a fixed header profile, a cookie jar and, when requested, a
// country-specific proxy egress with a fresh session id per build.
package session

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// ErrProxyUnavailable is returned when the superproxy host cannot be
// resolved. The caller decides whether to retry or go direct; no automatic
// fallback happens here.
var ErrProxyUnavailable = errors.New("proxy unavailable")

const defaultTimeout = 10 * time.Second

// Factory builds configured *http.Client instances. The zero value builds
// direct clients; set the proxy fields to enable regional egress.
type Factory struct {
	// ProxyHost is the superproxy DNS name, e.g. "zproxy.lum-superproxy.io".
	ProxyHost string
	// ProxyPort is the superproxy port.
	ProxyPort int
	// ProxyUser is the account part of the proxy username; country and
	// session id are appended per build.
	ProxyUser string
	// ProxyPassword authenticates the proxy user.
	ProxyPassword string
	// Timeout applies per HTTP call. Defaults to 10s.
	Timeout time.Duration

	// lookupHost overrides DNS resolution in tests.
	lookupHost func(host string) ([]string, error)
}

// Build returns a client with the given default headers. When useProxy is
// set, HTTP and HTTPS traffic is routed through a regional exit node; the
// proxy session id is randomized per call so repeated builds do not reuse
// exit nodes.
func (f *Factory) Build(headers http.Header, useProxy bool, countryCode string) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Accept-Encoding is part of the header profile; bodies are decoded by
	// the caller, not the transport.
	transport.DisableCompression = true

	if useProxy {
		proxyURL, err := f.proxyURL(countryCode)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &headerTransport{
			base:    transport,
			headers: headers,
		},
	}, nil
}

// proxyURL resolves the superproxy and assembles the per-session proxy URL:
// http://<user>-country-<cc>-dns-remote-session-<rand>:<password>@<ip>:<port>
func (f *Factory) proxyURL(countryCode string) (*url.URL, error) {
	lookup := f.lookupHost
	if lookup == nil {
		lookup = net.LookupHost
	}
	addrs, err := lookup(f.ProxyHost)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrProxyUnavailable, f.ProxyHost, err)
	}

	sessionID := strings.ReplaceAll(uuid.NewString(), "-", "")
	username := fmt.Sprintf("%s-country-%s-dns-remote-session-%s",
		f.ProxyUser, strings.ToLower(countryCode), sessionID)

	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(username, f.ProxyPassword),
		Host:   net.JoinHostPort(addrs[0], fmt.Sprintf("%d", f.ProxyPort)),
	}, nil
}

// headerTransport applies the session's default headers to every request that
// does not already set them.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, vs := range t.headers {
		if req.Header.Get(k) == "" {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	return t.base.RoundTrip(req)
}
