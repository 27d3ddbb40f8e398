package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the process-level environment. The VAT authority credentials are
// not here: they live in the vendor_configurations table.
type Settings struct {
	Port                    string
	GoEnv                   string
	CorsAllowedOrigins      []string
	SyncTopic               string
	CreateSyncTopic         bool
	EnablePubSubPush        bool
	PubSubDispatch          bool
	ReferenceCacheTTL       time.Duration
	SkipMigrations          bool
	SecretKey               string
	APISecret               string
	TokenLifespan           time.Duration
	AutoSyncIntervalMinutes int
	PhoneRegion             string
}

func init() {
	// Load env from .env
	godotenv.Load()
}

func Load() Settings {
	port := os.Getenv("VSCHALLAN_PORT")
	if port == "" {
		port = getEnv("PORT", "8080")
	}
	return Settings{
		Port:                    port,
		GoEnv:                   strings.TrimSpace(os.Getenv("GO_ENV")),
		CorsAllowedOrigins:      splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		SyncTopic:               getEnv("VSCHALLAN_SYNC_TOPIC", "vschallan-sync"),
		CreateSyncTopic:         envBoolDefault("VSCHALLAN_SYNC_CREATE_TOPIC", false),
		EnablePubSubPush:        envBoolDefault("ENABLE_VSCHALLAN_PUBSUB_PUSH_ENDPOINT", true),
		PubSubDispatch:          envBoolDefault("VSCHALLAN_PUBSUB_DISPATCH", getPubSubProjectID() != ""),
		ReferenceCacheTTL:       time.Duration(intFromEnv("VSCHALLAN_REFERENCE_CACHE_TTL_MINUTES", 24*60)) * time.Minute,
		SkipMigrations:          envBoolDefault("SKIP_MIGRATIONS", false),
		SecretKey:               strings.TrimSpace(os.Getenv("VSCHALLAN_SECRET_KEY")),
		APISecret:               strings.TrimSpace(os.Getenv("API_SECRET")),
		TokenLifespan:           time.Duration(intFromEnv("TOKEN_HOUR_LIFESPAN", 12)) * time.Hour,
		AutoSyncIntervalMinutes: intFromEnv("AUTO_SYNC_INTERVAL_MINUTES", 60),
		PhoneRegion:             getEnv("VSCHALLAN_PHONE_REGION", "BD"),
	}
}

func (s Settings) IsProduction() bool {
	return strings.EqualFold(s.GoEnv, "production")
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
