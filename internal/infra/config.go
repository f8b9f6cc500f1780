package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Mediator credential and endpoint. The API key doubles as the credit
	// account identifier in the ledger.
	GeckoAPIKey      string
	GeckoBaseURL     string
	GeckoTimeout     time.Duration
	DefaultPrompt    string
	TargetItemIDs    []string
	TargetCategories []string
	SetFeatured      bool
	WaveSize         int

	StoragePath    string
	StorageBaseURL string
	AdminToken     string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		GeckoAPIKey:      os.Getenv("GECKO_API_KEY"),
		GeckoBaseURL:     getEnv("GECKO_API_BASE_URL", "https://api.contentgecko.io"),
		GeckoTimeout:     time.Second * time.Duration(getEnvInt("GECKO_TIMEOUT_SECONDS", 120)),
		DefaultPrompt:    getEnv("GECKO_DEFAULT_PROMPT", "Studio lit product photo with professional lighting and clean background"),
		TargetItemIDs:    splitCSV(os.Getenv("GECKO_TARGET_ITEM_IDS")),
		TargetCategories: splitCSV(os.Getenv("GECKO_TARGET_CATEGORY_IDS")),
		SetFeatured:      getEnvBool("GECKO_SET_FEATURED", true),
		WaveSize:         getEnvInt("GECKO_WAVE_SIZE", 10),

		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
