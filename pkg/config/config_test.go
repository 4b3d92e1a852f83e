package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main_config.json", `{
		"credentials_json": "credentials.json",
		"usdt_amount": "1000",
		"leverage": "2",
		"estimated_pnl": "0.05",
		"funding_timeout_secs": 300,
		"chatid": "42",
		"bot_token": "token",
		"db_connection_string": "postgres://localhost/arb"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "credentials.json", cfg.CredentialsPath)
	assert.True(t, cfg.USDTAmount.Equal(d("1000")))
	assert.True(t, cfg.Leverage.Equal(d("2")))
	assert.Equal(t, 300, cfg.FundingTimeoutSecs)
	assert.Equal(t, "8080", cfg.HTTPPort)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "zero usdt amount",
			body: `{"credentials_json":"c.json","usdt_amount":"0","leverage":"2","funding_timeout_secs":300}`,
		},
		{
			name: "missing credentials path",
			body: `{"usdt_amount":"1000","leverage":"2","funding_timeout_secs":300}`,
		},
		{
			name: "zero funding timeout",
			body: `{"credentials_json":"c.json","usdt_amount":"1000","leverage":"2","funding_timeout_secs":0}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "main_config.json", tt.body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	path := writeFile(t, t.TempDir(), "credentials.json", `{
		"Binance": {
			"api_key": "k1",
			"api_sec": "s1",
			"symbol": "BTCUSDT",
			"recv_window": 59999,
			"base_url": "fapi.binance.com",
			"websockets_base_url": "fstream.binance.com"
		},
		"ByBit": {
			"api_key": "k2",
			"api_sec": "s2",
			"symbol": "BTCUSDT",
			"recv_window": 5000,
			"base_url": "https://api.bybit.com",
			"websockets_base_url": "wss://stream.bybit.com"
		}
	}`)

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "BTCUSDT", creds["Binance"].Symbol)
	assert.Equal(t, 59999, creds["Binance"].RecvWindow)
	assert.Equal(t, "s2", creds["ByBit"].APISecret)
}

func TestLoadCredentials_MissingSymbol(t *testing.T) {
	path := writeFile(t, t.TempDir(), "credentials.json",
		`{"Binance": {"api_key": "k", "api_sec": "s", "base_url": "fapi.binance.com"}}`)

	_, err := LoadCredentials(path)
	assert.Error(t, err)
}
