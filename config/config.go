// Package config loads the scanner configuration from the environment.
// Every threshold lives here; components receive the value at construction
// and never read ambient state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/vkulagin/stockscan/internal/detect"
	"github.com/vkulagin/stockscan/internal/model"
)

// Config holds all application configuration
type Config struct {
	// Data source
	DataBaseURL    string
	RequestTimeout int // seconds
	RequestsPerSec int
	LookbackDays   int
	MinHistoryRows int

	// Scan
	ScanMode         string // "setup" or "strategy"
	Concurrency      int
	PerSymbolTimeout int // seconds, 0 disables
	Symbols          []string

	// Staged strategy run thresholds, stage 0 through 6
	StageRuns [7]int

	// Detectors
	LimitMoveWindow int
	LimitMovePct    float64
	MinUpRun        int
	GapWindow       int
	GapMinFraction  float64
	VolumeWindow    int
	VolumeRatio     float64
	RunGainCaps     []detect.RunGainCap
	SeatAllowlist   []string

	// Logging
	LogLevel string

	// Optional Redis history cache
	RedisAddr       string
	RedisPassword   string
	CacheTTLMinutes int

	// Optional Postgres scan archive
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Optional Telegram summary
	TelegramToken  string
	TelegramChatID int64
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := Config{
		DataBaseURL:    getEnvWithDefault("DATA_BASE_URL", "https://quotes.example.cn"),
		RequestTimeout: getEnvIntWithDefault("REQUEST_TIMEOUT", 30),
		RequestsPerSec: getEnvIntWithDefault("REQUESTS_PER_SEC", 5),
		LookbackDays:   getEnvIntWithDefault("LOOKBACK_DAYS", 180),
		MinHistoryRows: getEnvIntWithDefault("MIN_HISTORY_ROWS", 30),

		ScanMode:         getEnvWithDefault("SCAN_MODE", "setup"),
		Concurrency:      getEnvIntWithDefault("SCAN_CONCURRENCY", 8),
		PerSymbolTimeout: getEnvIntWithDefault("PER_SYMBOL_TIMEOUT", 60),
		Symbols:          getEnvListWithDefault("SYMBOLS", nil),

		LimitMoveWindow: getEnvIntWithDefault("LIMIT_MOVE_WINDOW", 20),
		LimitMovePct:    getEnvFloatWithDefault("LIMIT_MOVE_PCT", 9.5),
		MinUpRun:        getEnvIntWithDefault("MIN_UP_RUN", 3),
		GapWindow:       getEnvIntWithDefault("GAP_WINDOW", 30),
		GapMinFraction:  getEnvFloatWithDefault("GAP_MIN_FRACTION", 0),
		VolumeWindow:    getEnvIntWithDefault("VOLUME_WINDOW", 20),
		VolumeRatio:     getEnvFloatWithDefault("VOLUME_RATIO", 3.0),
		SeatAllowlist:   getEnvListWithDefault("SEAT_ALLOWLIST", nil),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		CacheTTLMinutes: getEnvIntWithDefault("CACHE_TTL_MINUTES", 240),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnvWithDefault("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),
	}

	stageRuns, err := parseStageRuns(getEnvWithDefault("STAGE_RUNS", "14,3,2,3,7,7,14"))
	if err != nil {
		return nil, err
	}
	cfg.StageRuns = stageRuns

	caps, err := parseRunGainCaps(getEnvWithDefault("RUN_GAIN_CAPS", "7:22.5,5:17.5,3:12.5"))
	if err != nil {
		return nil, err
	}
	cfg.RunGainCaps = caps

	return &cfg, nil
}

// Validate checks the configuration before any scan work is submitted.
func (c *Config) Validate() error {
	if c.ScanMode != "setup" && c.ScanMode != "strategy" {
		return fmt.Errorf("%w: SCAN_MODE must be setup or strategy, got %q", model.ErrConfiguration, c.ScanMode)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: SCAN_CONCURRENCY must be at least 1, got %d", model.ErrConfiguration, c.Concurrency)
	}
	if c.LookbackDays < 2 {
		return fmt.Errorf("%w: LOOKBACK_DAYS must be at least 2, got %d", model.ErrConfiguration, c.LookbackDays)
	}
	if c.MinHistoryRows < 2 {
		return fmt.Errorf("%w: MIN_HISTORY_ROWS must be at least 2, got %d", model.ErrConfiguration, c.MinHistoryRows)
	}
	if c.LimitMovePct <= 0 || c.VolumeRatio <= 0 {
		return fmt.Errorf("%w: detector thresholds must be positive", model.ErrConfiguration)
	}
	for i, n := range c.StageRuns {
		if n < 1 {
			return fmt.Errorf("%w: stage %d run threshold must be at least 1, got %d", model.ErrConfiguration, i, n)
		}
	}
	for _, rc := range c.RunGainCaps {
		if rc.Length < 1 || rc.CapPct <= 0 {
			return fmt.Errorf("%w: malformed run-gain cap %d:%v", model.ErrConfiguration, rc.Length, rc.CapPct)
		}
	}
	return nil
}

// DetectorParams builds the detector parameter set from the configuration.
func (c *Config) DetectorParams() detect.Params {
	return detect.Params{
		LimitMoveWindow: c.LimitMoveWindow,
		LimitMovePct:    c.LimitMovePct,
		MinUpRun:        c.MinUpRun,
		GapWindow:       c.GapWindow,
		GapMinFraction:  c.GapMinFraction,
		VolumeWindow:    c.VolumeWindow,
		VolumeRatio:     c.VolumeRatio,
		RunGainCaps:     c.RunGainCaps,
	}
}

// parseStageRuns parses "14,3,2,3,7,7,14" into the seven stage thresholds.
func parseStageRuns(s string) ([7]int, error) {
	var runs [7]int
	parts := strings.Split(s, ",")
	if len(parts) != 7 {
		return runs, fmt.Errorf("%w: STAGE_RUNS needs 7 values, got %d", model.ErrConfiguration, len(parts))
	}
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return runs, fmt.Errorf("%w: STAGE_RUNS value %q: %v", model.ErrConfiguration, part, err)
		}
		runs[i] = n
	}
	return runs, nil
}

// parseRunGainCaps parses "7:22.5,5:17.5,3:12.5" keeping the given order,
// longest first by convention.
func parseRunGainCaps(s string) ([]detect.RunGainCap, error) {
	var caps []detect.RunGainCap
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		fields := strings.SplitN(pair, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: RUN_GAIN_CAPS pair %q", model.ErrConfiguration, pair)
		}
		length, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: RUN_GAIN_CAPS length %q: %v", model.ErrConfiguration, fields[0], err)
		}
		capPct, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: RUN_GAIN_CAPS cap %q: %v", model.ErrConfiguration, fields[1], err)
		}
		caps = append(caps, detect.RunGainCap{Length: length, CapPct: capPct})
	}
	return caps, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
