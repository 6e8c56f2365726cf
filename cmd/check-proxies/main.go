// check-proxies builds a few proxied sessions from the configured superproxy
// and verifies each one gets a working exit node in the target country.
// Use to verify the proxy account works and payment has not expired.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	pkgconfig "github.com/phoenixbet/phoenix/internal/pkg/config"
	"github.com/phoenixbet/phoenix/internal/unibet/session"
)

const (
	checkURL = "https://api.ipify.org"
	sessions = 5
)

func main() {
	configPath := flag.String("config", "configs/production.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := pkgconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Proxy.Enabled {
		fmt.Println("Proxy is disabled in config, nothing to check.")
		os.Exit(0)
	}

	factory := &session.Factory{
		ProxyHost:     cfg.Proxy.Host,
		ProxyPort:     cfg.Proxy.Port,
		ProxyUser:     cfg.Proxy.Username,
		ProxyPassword: cfg.Proxy.Password,
		Timeout:       15 * time.Second,
	}

	fmt.Printf("Checking %d proxy sessions via %s for country %s...\n\n",
		sessions, cfg.Proxy.Host, cfg.Client.Country)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	type result struct {
		ip  string
		err error
	}
	results := make([]result, sessions)

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ip, err := checkSession(ctx, factory, cfg.Client.Country)
			results[i] = result{ip: ip, err: err}
		}(i)
	}
	wg.Wait()

	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			fmt.Printf("  session %d: FAIL %v\n", i+1, r.err)
			continue
		}
		fmt.Printf("  session %d: OK exit %s\n", i+1, r.ip)
	}
	fmt.Printf("\n%d/%d sessions working\n", sessions-failed, sessions)
	if failed == sessions {
		os.Exit(1)
	}
}

func checkSession(ctx context.Context, factory *session.Factory, country string) (string, error) {
	client, err := factory.Build(http.Header{}, true, country)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return string(body), nil
}
