package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"authflow/internal/logging"
)

type Config struct {
	Port           string
	Env            string
	BaseURL        string
	DatabaseURL    string
	RedisURL       string
	SessionSecret  string
	SessionTTL     time.Duration
	BcryptCost     int
	LogFile        string
	LogMaxBytes    int64
	LogMaxBackups  int
	Email          EmailConfig
	TrustedProxies []string
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Secure   bool
	Timeout  time.Duration
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

// Production controls the Secure flag on cookies.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func Load() (Config, error) {
	clean := func(val string) string {
		return strings.Trim(val, "\"' \t\r\n")
	}

	rawPort := strings.Trim(getenvDefault("EMAIL_SERVER_PORT", "587"), "\"' ")
	emailPort, err := strconv.Atoi(rawPort)
	if err != nil {
		emailPort = 587
	}

	cfg := Config{
		Port:           getenvDefault("PORT", "3000"),
		Env:            getenvDefault("APP_ENV", "development"),
		BaseURL:        getenvDefault("APP_BASE_URL", "http://localhost:3000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getenvDefault("REDIS_URL", "redis://localhost:6379"),
		SessionSecret:  clean(os.Getenv("SESSION_SECRET")),
		SessionTTL:     parseDuration(os.Getenv("SESSION_TTL"), 30*24*time.Hour),
		BcryptCost:     parseCost(os.Getenv("BCRYPT_COST")),
		LogFile:        getenvDefault("LOG_FILE", "logs/server.log"),
		LogMaxBytes:    parseInt64(os.Getenv("LOG_MAX_BYTES"), logging.DefaultMaxBytes),
		LogMaxBackups:  parseInt(os.Getenv("LOG_MAX_BACKUPS"), logging.DefaultMaxBackups),
		TrustedProxies: parseList(os.Getenv("TRUSTED_PROXIES")),
	}

	cfg.Email = EmailConfig{
		Host:     clean(os.Getenv("EMAIL_SERVER_HOST")),
		Port:     emailPort,
		Username: clean(os.Getenv("EMAIL_SERVER_USER")),
		Password: clean(os.Getenv("EMAIL_SERVER_PASSWORD")),
		From:     clean(os.Getenv("EMAIL_FROM")),
		Secure:   parseBool(os.Getenv("EMAIL_SERVER_SECURE")),
		Timeout:  parseDuration(os.Getenv("EMAIL_TIMEOUT"), 10*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func parseBool(val string) bool {
	if val == "" {
		return false
	}
	val = strings.ToLower(strings.Trim(val, "\"' "))
	return val == "1" || val == "true" || val == "yes"
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func parseInt64(val string, def int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseCost(val string) int {
	cost, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}
