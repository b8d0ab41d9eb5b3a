package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	LogLevel    string

	CacheTTL  time.Duration
	CacheSize int

	RateLimit    int
	RateWindow   time.Duration
	RateLimitKey string

	ProbeTimeout   time.Duration
	ScanBudget     time.Duration
	RDAPRPS        float64
	SweepInterval  time.Duration
	MaxURLLength   int
	Blocklist      []string
	PersistTimeout time.Duration
	AdminEmails    []string
	CORSOrigins    []string
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	TrustProxy     bool
}

const devSecret = "dev-secret-change-me"

var defaults = map[string]any{
	"APP_ENV":         "development",
	"LISTEN_ADDR":     ":8080",
	"DATABASE_URL":    "",
	"REDIS_URL":       "",
	"JWT_SECRET":      "",
	"LOG_LEVEL":       "info",
	"CACHE_TTL":       time.Hour,
	"CACHE_SIZE":      10000,
	"RATE_LIMIT":      5,
	"RATE_WINDOW":     time.Minute,
	"RATE_LIMIT_KEY":  "ip",
	"PROBE_TIMEOUT":   5 * time.Second,
	"SCAN_BUDGET":     8 * time.Second,
	"RDAP_RPS":        2.0,
	"SWEEP_INTERVAL":  5 * time.Minute,
	"MAX_URL_LENGTH":  2048,
	"BLOCKLIST":       "",
	"PERSIST_TIMEOUT": 3 * time.Second,
	"ADMIN_EMAILS":    "",
	"CORS_ORIGINS":    "*",
	"TRUST_PROXY":     false,
}

// New returns a viper instance reading the environment, after loading a
// .env file when one exists. Cobra flags may be bound to it before Load.
func New() *viper.Viper {
	_ = godotenv.Load()
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	return v
}

func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:            v.GetString("APP_ENV"),
		ListenAddr:     v.GetString("LISTEN_ADDR"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisURL:       v.GetString("REDIS_URL"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		CacheTTL:       v.GetDuration("CACHE_TTL"),
		CacheSize:      v.GetInt("CACHE_SIZE"),
		RateLimit:      v.GetInt("RATE_LIMIT"),
		RateWindow:     v.GetDuration("RATE_WINDOW"),
		RateLimitKey:   v.GetString("RATE_LIMIT_KEY"),
		ProbeTimeout:   v.GetDuration("PROBE_TIMEOUT"),
		ScanBudget:     v.GetDuration("SCAN_BUDGET"),
		RDAPRPS:        v.GetFloat64("RDAP_RPS"),
		SweepInterval:  v.GetDuration("SWEEP_INTERVAL"),
		MaxURLLength:   v.GetInt("MAX_URL_LENGTH"),
		Blocklist:      splitList(v.GetString("BLOCKLIST")),
		PersistTimeout: v.GetDuration("PERSIST_TIMEOUT"),
		AdminEmails:    splitList(v.GetString("ADMIN_EMAILS")),
		CORSOrigins:    strings.Fields(strings.ReplaceAll(v.GetString("CORS_ORIGINS"), ",", " ")),
		TrustProxy:     v.GetBool("TRUST_PROXY"),
	}

	if cfg.JWTSecret == "" {
		if cfg.Env != "development" {
			return cfg, errors.New("JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = devSecret
	}
	if cfg.RateLimit < 1 {
		return cfg, errors.Errorf("RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}
	for name, d := range map[string]time.Duration{
		"CACHE_TTL":       cfg.CacheTTL,
		"RATE_WINDOW":     cfg.RateWindow,
		"PROBE_TIMEOUT":   cfg.ProbeTimeout,
		"SCAN_BUDGET":     cfg.ScanBudget,
		"SWEEP_INTERVAL":  cfg.SweepInterval,
		"PERSIST_TIMEOUT": cfg.PersistTimeout,
	} {
		if d <= 0 {
			return cfg, errors.Errorf("%s must be a positive duration", name)
		}
	}
	return cfg, nil
}

// Development reports whether the service runs with local defaults.
func (c Config) Development() bool { return c.Env == "development" }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
