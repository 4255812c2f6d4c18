package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/chatrelay/internal/present/rest/presenter"
)

var tracer = otel.Tracer("middleware")

type AuthMiddleware struct {
	adminToken string
}

func NewAuthMiddleware(adminToken string) *AuthMiddleware {
	return &AuthMiddleware{
		adminToken: adminToken,
	}
}

// RequireAdmin guards admin routes with a bearer token. Without a configured
// token the route stays open.
func (s *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminToken == "" {
			return next(c)
		}

		_, span := tracer.Start(c.Request().Context(), "Auth.Middleware.RequireAdmin")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")
		split := strings.Split(authHeader, " ")
		if len(split) != 2 {
			span.RecordError(fmt.Errorf("invalid authentication header"))
			return presenter.Unauthorized(c, "invalid authentication header")
		}

		authType, token := split[0], split[1]
		if authType != "Bearer" {
			span.RecordError(fmt.Errorf("only Bearer is acceptable"))
			return presenter.Unauthorized(c, "only Bearer is acceptable")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			span.RecordError(fmt.Errorf("invalid admin token"))
			return presenter.Unauthorized(c, "invalid admin token")
		}

		return next(c)
	}
}
