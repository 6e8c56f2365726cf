package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	data := `
logging:
  level: debug
client:
  country: "it"
  username: "punter1"
  password: "secret"
  owner: "owner-1"
  max_stake: 30
  skip_percent: 10
  timeout: 10s
  workers: 5
  secondary_bet:
    enabled: true
    percent: 25
    min_options: 2
    max_options: 3
    min_quote: 1.5
    max_quote: 3.5
    stake: 2.0
proxy:
  enabled: true
  host: "proxy.example.com"
  port: 22225
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
	if cfg.Client.Country != "it" || cfg.Client.Username != "punter1" {
		t.Errorf("client = %q/%q", cfg.Client.Country, cfg.Client.Username)
	}
	if cfg.Client.MaxStake != 30 || cfg.Client.SkipPercent != 10 {
		t.Errorf("stakes = %d/%d", cfg.Client.MaxStake, cfg.Client.SkipPercent)
	}
	if cfg.Client.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Client.Timeout)
	}
	if !cfg.Client.SecondaryBet.Enabled || cfg.Client.SecondaryBet.MaxOptions != 3 {
		t.Errorf("secondary bet = %+v", cfg.Client.SecondaryBet)
	}
	if !cfg.Proxy.Enabled || cfg.Proxy.Port != 22225 {
		t.Errorf("proxy = %+v", cfg.Proxy)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
