package gateway

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nightjar-ai/nightjar/pkg/security"
)

// pairHandler handles POST /pair: exchange the one-time code from the
// X-Pairing-Code header for a fresh bearer token.
func (s *Server) pairHandler(c *echo.Context) error {
	key := clientKey(c, s.deps.Config.Gateway.TrustForwardedHeaders)
	if !s.deps.Limiters.Pair.Allow(key) {
		s.logger.Warn("/pair rate limit exceeded")
		return c.JSON(http.StatusTooManyRequests, map[string]any{
			"error":       "Too many pairing requests. Please retry later.",
			"retry_after": int(s.deps.Limiters.Pair.Window().Seconds()),
		})
	}

	code := c.Request().Header.Get("X-Pairing-Code")
	token, err := s.deps.Guard.TryPair(code, key)
	if err != nil {
		var lockout *security.LockoutError
		if errors.As(err, &lockout) {
			s.logger.Warn("pairing locked out", "retry_after_secs", int(lockout.RetryAfter.Seconds()))
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       lockout.Error(),
				"retry_after": int(lockout.RetryAfter.Seconds()),
			})
		}
		s.logger.Warn("pairing attempt with invalid code")
		return jsonError(c, http.StatusForbidden, "Invalid pairing code")
	}

	s.logger.Info("new client paired")
	if err := s.persistTokens(); err != nil {
		s.logger.Error("pairing succeeded but token persistence failed", "error", err)
		return c.JSON(http.StatusOK, map[string]any{
			"paired":    true,
			"persisted": false,
			"token":     token,
			"message": "Paired for this process, but failed to persist token to config.toml. " +
				"Check config path and write permissions.",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"paired":    true,
		"persisted": true,
		"token":     token,
		"message":   "Save this token — use it as Authorization: Bearer <token>",
	})
}

// pairNewCodeHandler handles POST /pair/new-code: an already-paired client
// mints a fresh one-time code so another device can pair.
func (s *Server) pairNewCodeHandler(c *echo.Context) error {
	if !s.requireAuth(c, "pair new code") {
		return nil
	}
	if !s.deps.Guard.RequirePairing() {
		return jsonError(c, http.StatusBadRequest, "Pairing is disabled in config")
	}

	code := s.deps.Guard.RegenerateCode()
	if code == "" {
		return jsonError(c, http.StatusInternalServerError, "Failed to generate pairing code")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":      true,
		"code":    code,
		"message": "New one-time pairing code generated",
	})
}
