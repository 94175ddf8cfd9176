package gateway

import (
	"context"
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// jsonError writes the uniform failure shape. Every user-visible error is a
// JSON object with an "error" string; raw upstream bodies never pass through.
func jsonError(c *echo.Context, code int, message string) error {
	return c.JSON(code, map[string]string{"error": message})
}

// responseCommitted reports whether a handler already wrote the response
// status. Response() hands back an http.ResponseWriter; the commitment flag
// lives on the echo.Response underneath.
func responseCommitted(c *echo.Context) bool {
	res, _ := echo.UnwrapResponse(c.Response())
	return res != nil && res.Committed
}

// httpErrorHandler is the fallback for errors handlers did not map themselves.
func httpErrorHandler(c *echo.Context, err error) {
	if responseCommitted(c) {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"

	var maxBytes *http.MaxBytesError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &maxBytes):
		code = http.StatusRequestEntityTooLarge
		message = "request body too large"
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusRequestTimeout
		message = "request timed out"
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if httpErr.Message != "" {
			message = httpErr.Message
		}
	}

	_ = jsonError(c, code, message)
}
