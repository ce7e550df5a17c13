package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/observability"
)

// unobservedSuffixes are API paths that would only add scrape noise.
var unobservedSuffixes = []string{"/metrics", "/health"}

// Observability records request counters and latency per route template and
// writes one structured log line per API request. Server errors log at error
// level, client errors at warn and the rest at debug.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		if !observed(c.Path()) {
			return err
		}

		elapsed := time.Since(start)
		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		if fiberErr, ok := err.(*fiber.Error); ok {
			status = fiberErr.Code
		}
		statusLabel := strconv.Itoa(status)

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.HTTPLatency().WithLabelValues(method, route).Observe(elapsed.Seconds())

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
			event = logger.Error().Err(err)
		case status >= fiber.StatusBadRequest:
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
			event = logger.Warn()
		default:
			event = logger.Debug()
		}

		if userID, ok := CurrentUserID(c); ok {
			event = event.Uint("user_id", userID)
		}
		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Msg("request handled")

		return err
	}
}

func observed(path string) bool {
	if !strings.HasPrefix(path, "/api/") {
		return false
	}
	for _, suffix := range unobservedSuffixes {
		if strings.HasSuffix(path, suffix) {
			return false
		}
	}
	return true
}

func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return c.Path()
}
