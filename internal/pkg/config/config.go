package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Telegram TelegramConfig `yaml:"telegram"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Client   ClientConfig   `yaml:"client"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // optional log file, stdout only when empty
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // how long a seen-bet marker lives
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type ProxyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"` // superproxy DNS name
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type ClientConfig struct {
	Country  string `yaml:"country"` // two-letter region code, e.g. "it"
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Owner    string `yaml:"owner"` // account owner id stamped on history records

	MaxStake    int64         `yaml:"max_stake"`    // stake ceiling in whole currency units
	SkipPercent int           `yaml:"skip_percent"` // chance (0-100) a caller bet is deliberately skipped
	Timeout     time.Duration `yaml:"timeout"`
	Workers     int           `yaml:"workers"` // batch fetch concurrency

	// ConsentBrowserFallback loads the landing page in a headless browser
	// when the static bootstrap parse fails behind a bot wall.
	ConsentBrowserFallback bool `yaml:"consent_browser_fallback"`

	SecondaryBet SecondaryBetConfig `yaml:"secondary_bet"`
}

// SecondaryBetConfig drives the autonomous small combination bet that may
// follow a successful placement to diversify the account's pattern.
type SecondaryBetConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Percent    float64 `yaml:"percent"` // chance (0-100) of placing one
	MinOptions int     `yaml:"min_options"`
	MaxOptions int     `yaml:"max_options"`
	MinQuote   float64 `yaml:"min_quote"`
	MaxQuote   float64 `yaml:"max_quote"`
	Stake      float64 `yaml:"stake"` // whole currency units
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}
