package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spartan-crm/pkg/jwtutil"
	"spartan-crm/pkg/logger"
	"spartan-crm/prometheus"
)

// Context keys set by AuthMiddleware
const (
	UserIDKey      = "user_id"
	EmailKey       = "email"
	CompanyIDKey   = "company_id"
	RoleKey        = "user_role"
	PermissionsKey = "permissions"
)

// AuthMiddleware validates the bearer token and stores the caller's identity in the context
func AuthMiddleware(j *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := j.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(EmailKey, claims.Email)
			c.Set(RoleKey, claims.Role)
			c.Set(PermissionsKey, claims.Permissions)
			if claims.CompanyID != nil {
				c.Set(CompanyIDKey, *claims.CompanyID)
			}

			return next(c)
		}
	}
}

// CompanyID returns the caller's company from the token, if it carries one
func CompanyID(c echo.Context) (uint, bool) {
	id, ok := c.Get(CompanyIDKey).(uint)
	return id, ok && id != 0
}

// Role returns the caller's role from the token
func Role(c echo.Context) string {
	role, _ := c.Get(RoleKey).(string)
	return role
}
