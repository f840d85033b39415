package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment surface of the service. Provider order is an
// explicit value here so business logic never reads env vars at call time.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string // optional; stats cache disabled when empty

	JWTSecret     string
	EncryptionKey string // 32 bytes, hex or raw
	BlindIndexKey string // 32 bytes, hex or raw

	// ReferenceOffset is the fixed UTC offset the product defines "a day" in.
	// A constant offset, not a named timezone, so DST never shifts day keys.
	ReferenceOffset time.Duration

	RapidAPIKey string
	// AIProviders is the ordered fallback chain, e.g. ["chatgpt", "gemini"].
	AIProviders []string
	AITimeout   time.Duration

	BatchSize  int
	BatchPause time.Duration
	CronSpec   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		EncryptionKey:   os.Getenv("ENCRYPTION_KEY"),
		BlindIndexKey:   os.Getenv("BLIND_INDEX_KEY"),
		RapidAPIKey:     os.Getenv("RAPIDAPI_KEY"),
		AITimeout:       getDuration("AI_TIMEOUT", 30*time.Second),
		BatchSize:       getInt("INSIGHT_BATCH_SIZE", 5),
		BatchPause:      getDuration("INSIGHT_BATCH_PAUSE", 2*time.Second),
		CronSpec:        getEnv("INSIGHT_CRON", "0 3 1 * *"),
	}

	offset, err := parseOffset(getEnv("REFERENCE_UTC_OFFSET", "+07:00"))
	if err != nil {
		return nil, err
	}
	cfg.ReferenceOffset = offset

	primary := strings.ToLower(getEnv("AI_PROVIDER", "chatgpt"))
	switch primary {
	case "gemini":
		cfg.AIProviders = []string{"gemini", "chatgpt"}
	case "chatgpt":
		cfg.AIProviders = []string{"chatgpt", "gemini"}
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", primary)
	}

	return cfg, nil
}

// DecodeKey accepts a 32-byte key either raw or hex-encoded.
func DecodeKey(s string) ([]byte, error) {
	if len(s) == 32 {
		return []byte(s), nil
	}
	if len(s) == 64 {
		return hex.DecodeString(s)
	}
	return nil, fmt.Errorf("key must be 32 bytes (raw or hex)")
}

// parseOffset reads a fixed offset like "+07:00" or "-05:30".
func parseOffset(s string) (time.Duration, error) {
	if len(s) != 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return 0, fmt.Errorf("invalid REFERENCE_UTC_OFFSET %q; expected ±HH:MM", s)
	}
	h, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, fmt.Errorf("invalid REFERENCE_UTC_OFFSET %q: %w", s, err)
	}
	m, err := strconv.Atoi(s[4:6])
	if err != nil {
		return 0, fmt.Errorf("invalid REFERENCE_UTC_OFFSET %q: %w", s, err)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if s[0] == '-' {
		d = -d
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
