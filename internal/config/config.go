// Package config loads application configuration from environment
// variables. Each concern gets its own loader file; helpers shared by
// them live in this one.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fanoutlabs/graph-broker/internal/graph"
)

// Config holds the broker's runtime configuration. Strings are ids
// and secrets; anything optional documents its default here.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	AppID        string // upstream OAuth application id
	AppSecret    string // upstream OAuth application secret
	GraphBaseURL string // upstream API root, defaults to graph.DefaultBaseURL
	BaseURL      string // public base URL used to build the OAuth redirect

	WebhookVerifyToken string // handshake verify-token
	WebhookSecret      string // HMAC signing secret for deliveries

	AdminJWTSecret string // signs/verifies admin bearer tokens

	// Optional MySQL archive. Disabled when DBHost is empty.
	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string
}

// Load reads configuration from the environment. Required variables
// halt startup with a fatal log when missing; optional ones fall back
// to their documented defaults.
func Load() Config {
	return Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "8080"),

		AppID:        must("FB_APP_ID"),
		AppSecret:    must("FB_APP_SECRET"),
		GraphBaseURL: envStr("GRAPH_BASE_URL", graph.DefaultBaseURL),
		BaseURL:      must("BASE_URL"),

		WebhookVerifyToken: must("WEBHOOK_VERIFY_TOKEN"),
		WebhookSecret:      must("WEBHOOK_APP_SECRET"),

		AdminJWTSecret: must("ADMIN_JWT_SECRET"),

		DBUser: os.Getenv("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: os.Getenv("DB_HOST"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: os.Getenv("DB_NAME"),
	}
}

// ArchiveEnabled reports whether the optional MySQL archive is
// configured.
func (c Config) ArchiveEnabled() bool { return c.DBHost != "" && c.DBName != "" }

// RedirectURI is the OAuth callback URL registered with the upstream
// application.
func (c Config) RedirectURI() string { return c.BaseURL + "/oauth/callback" }

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("var", key).Msg("missing required env var")
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
