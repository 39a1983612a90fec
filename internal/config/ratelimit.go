package config

import "time"

// RateLimitConfig drives the sliding-window limiter gating the public
// ingress. Window and Capacity define the nominal cap (defaults: 60
// requests per 60 seconds). TrustedProxyHeader, when set, names the
// header the fronting proxy writes the real client address into; it
// takes precedence over the forwarded-for chain.
type RateLimitConfig struct {
	Enabled            bool
	Window             time.Duration
	Capacity           int
	TrustedProxyHeader string
	Debug              bool
}

// LoadRateLimitConfig reads the RATE_LIMIT_* environment variables,
// clamping nonsense values back to the defaults.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:            envBool("RATE_LIMIT_ENABLED", true),
		Window:             envDur("RATE_LIMIT_WINDOW", time.Minute),
		Capacity:           envInt("RATE_LIMIT_CAPACITY", 60),
		TrustedProxyHeader: envStr("RATE_LIMIT_TRUSTED_HEADER", ""),
		Debug:              envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	return cfg
}
