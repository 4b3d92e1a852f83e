package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the main application configuration, loaded from a JSON file.
type Config struct {
	CredentialsPath    string          `json:"credentials_json"`
	USDTAmount         decimal.Decimal `json:"usdt_amount"`
	Leverage           decimal.Decimal `json:"leverage"`
	EstimatedPnL       decimal.Decimal `json:"estimated_pnl"`
	FundingTimeoutSecs int             `json:"funding_timeout_secs"`
	ChatID             string          `json:"chatid"`
	BotToken           string          `json:"bot_token"`
	DBConnectionString string          `json:"db_connection_string"`

	// HTTPPort comes from the environment, not the config file.
	HTTPPort string `json:"-"`
}

// VenueCredentials holds one venue's API access and endpoints.
type VenueCredentials struct {
	APIKey            string `json:"api_key"`
	APISecret         string `json:"api_sec"`
	Symbol            string `json:"symbol"`
	RecvWindow        int    `json:"recv_window"`
	BaseURL           string `json:"base_url"`
	WebsocketsBaseURL string `json:"websockets_base_url"`
}

// Credentials maps venue name to its credentials.
type Credentials map[string]VenueCredentials

// Load reads the main config file. A .env file, if present, supplies
// LOG_LEVEL and HTTP_PORT.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	err = json.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.HTTPPort = os.Getenv("HTTP_PORT")
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.CredentialsPath == "" {
		return fmt.Errorf("credentials_json cannot be empty")
	}

	if c.USDTAmount.Sign() <= 0 {
		return fmt.Errorf("usdt_amount must be positive, got %s", c.USDTAmount)
	}

	if c.Leverage.Sign() <= 0 {
		return fmt.Errorf("leverage must be positive, got %s", c.Leverage)
	}

	if c.FundingTimeoutSecs <= 0 {
		return fmt.Errorf("funding_timeout_secs must be positive, got %d", c.FundingTimeoutSecs)
	}

	return nil
}

// LoadCredentials reads the venue credentials file referenced by the
// main config.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}

	var creds Credentials
	err = json.Unmarshal(data, &creds)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}

	for venue, c := range creds {
		if c.Symbol == "" {
			return nil, fmt.Errorf("credentials for %s: symbol cannot be empty", venue)
		}
		if c.BaseURL == "" {
			return nil, fmt.Errorf("credentials for %s: base_url cannot be empty", venue)
		}
	}

	return creds, nil
}
