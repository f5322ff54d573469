package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spartan-crm/pkg/logger"
	"spartan-crm/prometheus"
)

// Permissions
const (
	PermManageCompanies   = "companies:manage"
	PermManageUsers       = "users:manage"
	PermManageMobileUsers = "mobile_users:manage"
	PermReadLeads         = "leads:read"
	PermWriteLeads        = "leads:write"
)

// RoleAdmin is the demo administrator, which is not tied to a company
const RoleAdmin = "admin"

var rolePermissions = map[string][]string{
	RoleAdmin:     {PermManageCompanies, PermManageUsers, PermManageMobileUsers, PermReadLeads, PermWriteLeads},
	"owner":       {PermManageUsers, PermManageMobileUsers, PermReadLeads, PermWriteLeads},
	"manager":     {PermManageMobileUsers, PermReadLeads, PermWriteLeads},
	"salesperson": {PermReadLeads, PermWriteLeads},
}

// DefaultPermissions lists the grants a role carries before per-user extras
func DefaultPermissions(role string) []string {
	return append([]string(nil), rolePermissions[role]...)
}

// HasPermission checks role defaults and then per-user grants
func HasPermission(role string, extra []string, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	for _, p := range extra {
		if p == perm {
			return true
		}
	}
	return false
}

// RequirePermission rejects callers lacking perm. It must run after AuthMiddleware.
func RequirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			extra, _ := c.Get(PermissionsKey).([]string)
			if !HasPermission(Role(c), extra, perm) {
				logger.FromContext(c).Warn("Permission denied",
					zap.String("role", Role(c)),
					zap.String("permission", perm))
				prometheus.RecordAuthError("permission_denied")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
			}
			return next(c)
		}
	}
}
