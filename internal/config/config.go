package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	infisical "github.com/infisical/go-sdk"
)

// FallbackPolicy controls what the fetcher does when every upstream and the
// cache are exhausted. It is fixed per deployment, never mixed per call.
type FallbackPolicy string

const (
	// FallbackStale returns stale cache entries or hard-coded defaults.
	FallbackStale FallbackPolicy = "stale"
	// FallbackStrict propagates a no-data error so callers can answer 503.
	FallbackStrict FallbackPolicy = "strict"
)

type Config struct {
	Port           string
	Env            string // "production" enables the SMTP notifier and hides error detail
	FrontendOrigin string

	// Persistence: "sqlite" (embedded, file-based) or "postgres".
	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	// Cache: Redis when RedisURL is set, in-memory otherwise.
	RedisURL      string
	RedisPassword string
	CacheTTL      time.Duration

	CollectInterval time.Duration
	AlertInterval   time.Duration

	FallbackPolicy FallbackPolicy
	ScrapeFallback bool

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

func Load() Config {
	cfg := Config{
		Port:            envOr("PORT", "8080"),
		Env:             envOr("APP_ENV", "development"),
		FrontendOrigin:  envOr("FRONTEND_ORIGIN", "*"),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      envOr("SQLITE_PATH", "pool-dashboard.db"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		CacheTTL:        durationOr("CACHE_TTL", 30*time.Second),
		CollectInterval: durationOr("COLLECT_INTERVAL", 30*time.Second),
		AlertInterval:   durationOr("ALERT_INTERVAL", 60*time.Second),
		FallbackPolicy:  FallbackPolicy(envOr("FALLBACK_POLICY", string(FallbackStale))),
		ScrapeFallback:  boolOr("SCRAPE_FALLBACK", false),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        envOr("SMTP_PORT", "587"),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:        envOr("SMTP_FROM", "alerts@pool-dashboard.local"),
	}

	if cfg.FallbackPolicy != FallbackStrict {
		cfg.FallbackPolicy = FallbackStale
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func (c Config) Production() bool { return c.Env == "production" }

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"SMTP_PASSWORD":  &cfg.SMTPPassword,
		"REDIS_PASSWORD": &cfg.RedisPassword,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

func boolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
