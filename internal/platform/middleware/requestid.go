package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKeyRequestID is where the request id lives on the echo context.
const ContextKeyRequestID = "request_id"

// HeaderRequestID is the wire header for request correlation.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns every request a correlation id, honoring one supplied
// by the caller, and echoes it back on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(HeaderRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(ContextKeyRequestID, rid)
			c.Response().Header().Set(HeaderRequestID, rid)
			return next(c)
		}
	}
}
