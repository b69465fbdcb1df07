package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"BASE_URL", "E2E_EMAIL", "E2E_PASSWORD", "E2E_DRIVER", "HEADLESS",
	"DEFAULT_TIMEOUT", "NAV_TIMEOUT", "SETTLE_TIMEOUT", "STEP_PAUSE", "ASSERT_TIMEOUT",
	"RESULTS_DIR", "FIXTURES_DIR", "SCENARIOS_DIR", "PARALLEL", "ALLOW_DESTRUCTIVE",
	"CHROMEDRIVER_PATH", "CHROME_BINARY_PATH", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Empty(t, cfg.Email)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, "playwright", cfg.Driver)
	assert.True(t, cfg.Headless)
	assert.False(t, cfg.AllowDestructive)
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 10*time.Second, cfg.NavTimeout)
	assert.Equal(t, 3*time.Second, cfg.SettleTimeout)
	assert.Equal(t, 3*time.Second, cfg.StepPause)
	assert.Equal(t, 3*time.Second, cfg.AssertTimeout)
	assert.Equal(t, 1, cfg.Parallel)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASE_URL", "https://staging.example.com/")
	t.Setenv("E2E_DRIVER", "Selenium")
	t.Setenv("HEADLESS", "false")
	t.Setenv("STEP_PAUSE", "250")
	t.Setenv("ASSERT_TIMEOUT", "7s")
	t.Setenv("PARALLEL", "4")
	t.Setenv("ALLOW_DESTRUCTIVE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", cfg.BaseURL)
	assert.Equal(t, "selenium", cfg.Driver)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.StepPause)
	assert.Equal(t, 7*time.Second, cfg.AssertTimeout)
	assert.Equal(t, 4, cfg.Parallel)
	assert.True(t, cfg.AllowDestructive)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"BASE_URL":        "localhost:5173",
		"E2E_DRIVER":      "lynx",
		"HEADLESS":        "maybe",
		"DEFAULT_TIMEOUT": "soon",
		"PARALLEL":        "0",
		"LOG_LEVEL":       "loud",
		"STEP_PAUSE":      "-1s",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("E2E_EMAIL", "qa@example.com")
	t.Setenv("E2E_PASSWORD", "s3cret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	vars := cfg.Vars()
	assert.Equal(t, "qa@example.com", vars["E2E_EMAIL"])
	assert.Equal(t, "s3cret", vars["E2E_PASSWORD"])
	assert.Equal(t, DefaultBaseURL, vars["BASE_URL"])
	assert.Contains(t, vars, "FIXTURES_DIR")
}

func TestVars_OmitsUnsetCredentials(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	vars := cfg.Vars()
	assert.NotContains(t, vars, "E2E_EMAIL")
	assert.NotContains(t, vars, "E2E_PASSWORD")
}
