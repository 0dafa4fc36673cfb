package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
exchange:
  simulated: true
trading:
  max_position_size: 2.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Exchange.Simulated)
	assert.Equal(t, 3, cfg.Trading.DefaultLeverage)
	assert.InDelta(t, 2.5, cfg.Trading.MaxPositionSize, 1e-12)
	assert.InDelta(t, 5.0, cfg.Trading.EmergencyStopLossPct, 1e-12)
	assert.Equal(t, 5*time.Minute, cfg.Trading.MonitorInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.Trading.OrderPacing())
	assert.Equal(t, 10*time.Second, cfg.Exchange.RequestTimeout())
	assert.Equal(t, "https://pro.edgex.exchange/api/v1/public", cfg.Exchange.PublicURL())
	assert.Equal(t, "https://pro.edgex.exchange/api/v1/private", cfg.Exchange.PrivateURL())
	assert.Equal(t, "ema", cfg.Trend.Provider)
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	t.Setenv("EDGEX_SIMULATED", "true")
	cfg, err := Load(writeFile(t, "config.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, "edgex", cfg.Exchange.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLiveExchangeRequiresCredentials(t *testing.T) {
	path := writeFile(t, "config.yaml", "exchange:\n  simulated: false\n")
	t.Setenv("EDGEX_API_KEY", "")
	t.Setenv("EDGEX_API_SECRET", "")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EDGEX_API_KEY")

	t.Setenv("EDGEX_API_KEY", "k")
	t.Setenv("EDGEX_API_SECRET", "s")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.Exchange.APIKey)
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"EDGEX_DEFAULT_LEVERAGE":    "5",
		"EDGEX_MAX_POSITION_SIZE":   "0.75",
		"EDGEX_EMERGENCY_STOP_LOSS": "2.5",
		"EDGEX_SIMULATED":           "1",
		"EDGEX_LOG_LEVEL":           "debug",
		"EDGEX_HTTP_PORT":           "8088",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	assert.Equal(t, 5, cfg.Trading.DefaultLeverage)
	assert.InDelta(t, 0.75, cfg.Trading.MaxPositionSize, 1e-12)
	assert.InDelta(t, 2.5, cfg.Trading.EmergencyStopLossPct, 1e-12)
	assert.True(t, cfg.Exchange.Simulated)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestApplyEnvReportsBadNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		switch k {
		case "EDGEX_DEFAULT_LEVERAGE":
			return "three", true
		case "EDGEX_MAX_POSITION_SIZE":
			return "lots", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EDGEX_DEFAULT_LEVERAGE")
	assert.Contains(t, err.Error(), "EDGEX_MAX_POSITION_SIZE")
	assert.Equal(t, 3, cfg.Trading.DefaultLeverage)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Exchange.Simulated = true
	cfg.Trading.DefaultLeverage = 0
	cfg.Trading.EmergencyStopLossPct = -1
	cfg.Trend.Provider = "astrology"
	cfg.Server.Port = 70000
	cfg.Trading.OrderPacingMs = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "default_leverage")
	assert.Contains(t, msg, "emergency_stop_loss_pct")
	assert.Contains(t, msg, "astrology")
	assert.Contains(t, msg, "server.port")
	assert.Contains(t, msg, "order_pacing_ms")
}

func TestLoadEnvIgnoresMissingFile(t *testing.T) {
	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), ".env")))

	path := writeFile(t, ".env", "EDGEX_TEST_ONLY_KEY=abc\n")
	t.Setenv("EDGEX_TEST_ONLY_KEY", "")
	os.Unsetenv("EDGEX_TEST_ONLY_KEY")
	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "abc", os.Getenv("EDGEX_TEST_ONLY_KEY"))
}

func TestShippedConfigIsPaperReady(t *testing.T) {
	t.Setenv("EDGEX_SIMULATED", "")
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	require.True(t, cfg.Exchange.Simulated)
	// paper candles are too short for the EMA provider
	assert.Equal(t, "random", cfg.Trend.Provider)
	assert.Positive(t, cfg.Trading.OrderPacingMs)
}
