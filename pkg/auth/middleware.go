package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bparpette/MistralHackathon/internal/logging"
)

// contextKey is the type for context keys to avoid collisions.
type contextKey string

// requesterIDKey stores the validated requester in the Echo context.
const requesterIDKey contextKey = "requester_id"

// RequesterMiddleware reads the requester identity from the X-Requester-ID
// header, stores it in the Echo context and tags the request context for
// logging. Requests without a valid identity get 401 Unauthorized.
//
// Example usage:
//
//	api := e.Group("/api/v1")
//	api.Use(auth.RequesterMiddleware())
//	api.POST("/memories", handler)
func RequesterMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderRequesterID)
			if err := ValidateRequesterID(id); err != nil {
				message := "authentication required"
				if errors.Is(err, ErrInvalidRequester) {
					message = err.Error()
				}
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": map[string]interface{}{
						"code":    "unauthorized",
						"message": message,
					},
				})
			}

			c.Set(string(requesterIDKey), id)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequester(req.Context(), id)))
			return next(c)
		}
	}
}

// RequesterID returns the identity set by RequesterMiddleware, or "".
func RequesterID(c echo.Context) string {
	id, _ := c.Get(string(requesterIDKey)).(string)
	return id
}
