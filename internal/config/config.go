package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Destinations is the static fan-out configuration. It is resolved once at
// startup and injected; the coordinator never reads ambient environment.
type Destinations struct {
	NearSocialEnabled bool
	TwitterEnabled    bool
}

// Config contains runtime configuration values.
type Config struct {
	Environment  string
	HTTPPort     string
	BaseURL      string
	ServiceName  string
	DatabasePath string

	// OAuth 2.0 credentials for the user-context connection flow.
	TwitterClientID     string
	TwitterClientSecret string
	TwitterScopes       []string

	// OAuth 1.0a app credentials, required only for media uploads (the v1.1
	// media endpoint does not accept OAuth 2.0 user tokens).
	TwitterConsumerKey    string
	TwitterConsumerSecret string
	TwitterUploadToken    string
	TwitterUploadSecret   string

	Destinations       Destinations
	NearNetworkID      string
	NearAccountID      string
	NearRelayerURL     string
	AutosaveDebounce   time.Duration
	RateLimitRPM       int
	TelemetryEndpoint  string
	TelemetryInsecure  bool
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:           getEnv("APP_ENV", "development"),
		HTTPPort:              getEnv("HTTP_PORT", "3000"),
		BaseURL:               getEnv("BASE_URL", "http://localhost:3000"),
		ServiceName:           getEnv("SERVICE_NAME", "crosspost"),
		DatabasePath:          getEnv("DATABASE_PATH", "crosspost.db"),
		TwitterClientID:       os.Getenv("TWITTER_CLIENT_ID"),
		TwitterClientSecret:   os.Getenv("TWITTER_CLIENT_SECRET"),
		TwitterScopes:         getList("TWITTER_SCOPES", []string{"tweet.read", "tweet.write", "users.read", "offline.access"}),
		TwitterConsumerKey:    os.Getenv("TWITTER_CONSUMER_KEY"),
		TwitterConsumerSecret: os.Getenv("TWITTER_CONSUMER_SECRET"),
		TwitterUploadToken:    os.Getenv("TWITTER_ACCESS_TOKEN"),
		TwitterUploadSecret:   os.Getenv("TWITTER_ACCESS_SECRET"),
		Destinations: Destinations{
			NearSocialEnabled: getBool("NEAR_SOCIAL_ENABLED", true),
			TwitterEnabled:    getBool("TWITTER_ENABLED", true),
		},
		NearNetworkID:      getEnv("NEAR_NETWORK_ID", "mainnet"),
		NearAccountID:      os.Getenv("NEAR_ACCOUNT_ID"),
		NearRelayerURL:     os.Getenv("NEAR_RELAYER_URL"),
		AutosaveDebounce:   getDuration("AUTOSAVE_DEBOUNCE", time.Second),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.Destinations.TwitterEnabled {
		if strings.TrimSpace(cfg.TwitterClientID) == "" || strings.TrimSpace(cfg.TwitterClientSecret) == "" {
			return Config{}, fmt.Errorf("TWITTER_CLIENT_ID and TWITTER_CLIENT_SECRET are required when Twitter is enabled")
		}
	}

	switch cfg.NearNetworkID {
	case "mainnet", "testnet":
	default:
		return Config{}, fmt.Errorf("NEAR_NETWORK_ID must be mainnet or testnet")
	}

	if cfg.Destinations.NearSocialEnabled {
		if strings.TrimSpace(cfg.NearAccountID) == "" || strings.TrimSpace(cfg.NearRelayerURL) == "" {
			return Config{}, fmt.Errorf("NEAR_ACCOUNT_ID and NEAR_RELAYER_URL are required when NEAR Social is enabled")
		}
	}

	return cfg, nil
}

// CallbackURL is the registered OAuth redirect URI.
func (c Config) CallbackURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/twitter/callback"
}

// UploadCredentialsConfigured reports whether the OAuth 1.0a media upload
// credentials are all present.
func (c Config) UploadCredentialsConfigured() bool {
	return c.TwitterConsumerKey != "" && c.TwitterConsumerSecret != "" &&
		c.TwitterUploadToken != "" && c.TwitterUploadSecret != ""
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
