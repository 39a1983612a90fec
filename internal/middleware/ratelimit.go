package middleware

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/fanoutlabs/graph-broker/internal/config"
	"github.com/fanoutlabs/graph-broker/internal/model"
	"github.com/fanoutlabs/graph-broker/internal/store"
)

// SlidingWindow returns an Echo middleware that throttles each client
// to cfg.Capacity requests per cfg.Window, keyed by network identity.
// The window record is a read-prune-append-write cycle against the
// durable store; there is no compare-and-swap, so two requests landing
// in the same instant can both be admitted. The cap is a soft limit.
// Any store error fails open: ingress availability outranks throttling
// precision here.
func SlidingWindow(cfg config.RateLimitConfig, s store.Store) echo.MiddlewareFunc {
	return slidingWindow(cfg, s, time.Now)
}

func slidingWindow(cfg config.RateLimitConfig, s store.Store, now func() time.Time) echo.MiddlewareFunc {
	if !cfg.Enabled || s == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := clientIdentity(cfg, c)
			key := store.RateKey(clientID)
			ctx := c.Request().Context()
			nowMs := now().UnixMilli()
			windowMs := cfg.Window.Milliseconds()

			entry := model.RateWindowEntry{ClientID: clientID}
			raw, err := s.Get(ctx, key)
			switch {
			case err == nil:
				if err := json.Unmarshal(raw, &entry); err != nil {
					// A corrupt record is replaced by a fresh window.
					entry = model.RateWindowEntry{ClientID: clientID}
				}
			case !errors.Is(err, store.ErrNotFound):
				log.Warn().Err(err).Str("client", clientID).Msg("rate limit store read failed, allowing request")
				return next(c)
			}

			kept := entry.Timestamps[:0]
			for _, ts := range entry.Timestamps {
				if nowMs-ts < windowMs {
					kept = append(kept, ts)
				}
			}
			entry.Timestamps = kept

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))

			if len(entry.Timestamps) >= cfg.Capacity {
				oldest := entry.Timestamps[0]
				retryMs := windowMs - (nowMs - oldest)
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					log.Info().Str("client", clientID).Int("retry_after", secs).Msg("rate limit exceeded")
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}

			entry.Timestamps = append(entry.Timestamps, nowMs)
			remaining := cfg.Capacity - len(entry.Timestamps)
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			buf, err := json.Marshal(entry)
			if err == nil {
				// TTL twice the window: the record self-expires well after
				// its entries stop mattering.
				if err := s.Put(ctx, key, buf, 2*cfg.Window); err != nil {
					log.Warn().Err(err).Str("client", clientID).Msg("rate limit store write failed, allowing request")
				}
			}
			return next(c)
		}
	}
}

// clientIdentity resolves the throttling key for a request: the
// trusted proxy header when configured and present, else the first
// hop of the forwarded-for chain, else a shared "unknown" bucket.
func clientIdentity(cfg config.RateLimitConfig, c echo.Context) string {
	if cfg.TrustedProxyHeader != "" {
		if v := strings.TrimSpace(c.Request().Header.Get(cfg.TrustedProxyHeader)); v != "" {
			return v
		}
	}
	if fwd := c.Request().Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}
