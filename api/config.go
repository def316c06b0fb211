package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"portsight/logging"
	"portsight/scanner"
)

// Config holds the API server settings read from the environment.
type Config struct {
	Addr        string
	RedisAddr   string
	APIKey      string
	APIWorkers  int
	ScanWorkers int
	RateLimit   int64
	RateWindow  time.Duration
	TaskTTL     time.Duration
	LogLevel    slog.Level
}

// LoadConfig reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		Addr:      getenv("API_ADDR", ":8080"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		APIKey:    os.Getenv("API_KEY"),
		LogLevel:  logging.ParseLevel(getenv("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.APIWorkers, err = getenvInt("API_WORKERS", 5); err != nil {
		return Config{}, err
	}
	if cfg.ScanWorkers, err = getenvInt("SCAN_WORKERS", scanner.DefaultWorkers); err != nil {
		return Config{}, err
	}
	limit, err := getenvInt("RATE_LIMIT", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit = int64(limit)
	if cfg.RateWindow, err = getenvDuration("RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.TaskTTL, err = getenvDuration("TASK_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.APIWorkers <= 0 {
		return Config{}, fmt.Errorf("API_WORKERS must be positive, got %d", cfg.APIWorkers)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a number: %s", key, raw)
	}
	return v, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s is not a duration: %s", key, raw)
	}
	return d, nil
}
