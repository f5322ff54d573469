package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"spartan-crm/internal/middleware"
	"spartan-crm/pkg/logger"
	"spartan-crm/prometheus"
)

// Login handles POST /auth/login
func (h *Handler) Login(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	if h.isDemoAdmin(req.Email, req.Password) {
		token, err := h.JWT.GenerateToken(req.Email, 0, nil, middleware.RoleAdmin, middleware.DefaultPermissions(middleware.RoleAdmin))
		if err != nil {
			log.Error("Failed to generate token", zap.Error(err))
			prometheus.RecordAuthError("token_generation_failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
		}
		log.Info("Admin logged in", zap.String("email", req.Email))
		return c.JSON(http.StatusOK, echo.Map{
			"token": token,
			"user": echo.Map{
				"email": req.Email,
				"role":  middleware.RoleAdmin,
			},
		})
	}

	user, err := h.Users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !user.IsActive {
		prometheus.RecordAuthError("inactive_user")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	}

	companyID := user.CompanyID
	token, err := h.JWT.GenerateToken(user.Email, user.ID, &companyID, user.Role, user.Permissions)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	if err := h.Users.TouchLastLogin(c.Request().Context(), user.ID, time.Now()); err != nil {
		log.Warn("Failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.Uint("company_id", user.CompanyID),
		zap.String("role", user.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": echo.Map{
			"id":          user.ID,
			"email":       user.Email,
			"name":        user.Name,
			"role":        user.Role,
			"company_id":  user.CompanyID,
			"permissions": user.Permissions,
		},
	})
}

func (h *Handler) isDemoAdmin(email, password string) bool {
	if h.Admin.Password == "" {
		return false
	}
	if !strings.EqualFold(email, h.Admin.Email) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(h.Admin.Password)) == 1
}
