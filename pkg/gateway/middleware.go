package gateway

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"
)

// securityHeaders sets standard security response headers on every route.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// bodyLimit rejects requests whose declared length exceeds max and caps
// streamed bodies so a lying Content-Length cannot get around the limit.
func bodyLimit(max int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			req := c.Request()
			if req.ContentLength > max {
				return jsonError(c, http.StatusRequestEntityTooLarge, "request body too large")
			}
			req.Body = http.MaxBytesReader(c.Response(), req.Body, max)
			return next(c)
		}
	}
}

// requestTimeout puts a hard deadline on the request context. Handlers observe
// the deadline through their upstream calls; an expired context surfaces as a
// 408 instead of whatever the upstream error would have mapped to.
func requestTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if ctx.Err() == context.DeadlineExceeded && !responseCommitted(c) {
				return jsonError(c, http.StatusRequestTimeout, "request timed out")
			}
			return err
		}
	}
}

// clientKey derives the rate-limit and lockout key for a request. With
// forwarded-header trust enabled, the first parseable X-Forwarded-For entry
// wins, then X-Real-IP; otherwise the peer socket IP is authoritative.
func clientKey(c *echo.Context, trustForwarded bool) string {
	if trustForwarded {
		if ip := forwardedClientIP(c.Request()); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil || host == "" {
		if ip := net.ParseIP(strings.TrimSpace(c.Request().RemoteAddr)); ip != nil {
			return ip.String()
		}
		return "unknown"
	}
	return host
}

func forwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(candidate)); ip != nil {
				return ip.String()
			}
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return ""
}
