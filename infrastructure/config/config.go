package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "http://localhost:5173"

// Config holds runner configuration resolved from the environment
type Config struct {
	BaseURL  string
	Email    string
	Password string

	Driver   string // playwright or selenium
	Headless bool

	DefaultTimeout time.Duration
	NavTimeout     time.Duration
	SettleTimeout  time.Duration
	StepPause      time.Duration
	AssertTimeout  time.Duration

	ResultsDir   string
	FixturesDir  string
	ScenariosDir string

	Parallel         int
	AllowDestructive bool

	ChromeDriverPath string
	ChromeBinaryPath string

	LogLevel logrus.Level
}

// Load - reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv - builds a Config from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		BaseURL:          strings.TrimRight(getEnv("BASE_URL", DefaultBaseURL), "/"),
		Email:            strings.TrimSpace(os.Getenv("E2E_EMAIL")),
		Password:         os.Getenv("E2E_PASSWORD"),
		Driver:           strings.ToLower(getEnv("E2E_DRIVER", "playwright")),
		ResultsDir:       getEnv("RESULTS_DIR", "test-results"),
		FixturesDir:      getEnv("FIXTURES_DIR", "test-results/fixtures"),
		ScenariosDir:     os.Getenv("SCENARIOS_DIR"),
		ChromeDriverPath: os.Getenv("CHROMEDRIVER_PATH"),
		ChromeBinaryPath: os.Getenv("CHROME_BINARY_PATH"),
	}

	var err error
	if cfg.Headless, err = getBool("HEADLESS", true); err != nil {
		return nil, err
	}
	if cfg.AllowDestructive, err = getBool("ALLOW_DESTRUCTIVE", false); err != nil {
		return nil, err
	}
	if cfg.DefaultTimeout, err = getDuration("DEFAULT_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.NavTimeout, err = getDuration("NAV_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SettleTimeout, err = getDuration("SETTLE_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.StepPause, err = getDuration("STEP_PAUSE", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.AssertTimeout, err = getDuration("ASSERT_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}

	parallel := getEnv("PARALLEL", "1")
	if cfg.Parallel, err = strconv.Atoi(parallel); err != nil {
		return nil, fmt.Errorf("PARALLEL: invalid integer %q: %w", parallel, err)
	}

	level := getEnv("LOG_LEVEL", "info")
	if cfg.LogLevel, err = logrus.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate - checks cross-field constraints
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("BASE_URL must be an http(s) url, got %q", c.BaseURL)
	}
	switch c.Driver {
	case "playwright", "selenium":
	default:
		return fmt.Errorf("E2E_DRIVER must be playwright or selenium, got %q", c.Driver)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("PARALLEL must be at least 1, got %d", c.Parallel)
	}
	if c.StepPause < 0 {
		return fmt.Errorf("STEP_PAUSE must not be negative")
	}
	return nil
}

// Vars returns the placeholder values scenarios may reference. Unset
// credentials are left out so scenarios that sign in fail to load.
func (c *Config) Vars() map[string]string {
	vars := map[string]string{
		"BASE_URL":     c.BaseURL,
		"FIXTURES_DIR": c.FixturesDir,
	}
	if c.Email != "" {
		vars["E2E_EMAIL"] = c.Email
	}
	if c.Password != "" {
		vars["E2E_PASSWORD"] = c.Password
	}
	return vars
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

// getDuration accepts Go durations ("3s") or bare milliseconds ("3000")
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
