package handler

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"spartan-crm/internal/model"
	"spartan-crm/pkg/logger"
)

var userRoles = []string{model.UserRoleOwner, model.UserRoleManager, model.UserRoleSalesperson}

type userRequest struct {
	CompanyID   uint     `json:"company_id"`
	Name        *string  `json:"name"`
	Email       *string  `json:"email"`
	Password    *string  `json:"password"`
	Role        *string  `json:"role"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"is_active"`
}

// ListUsers handles GET /api/users
func (h *Handler) ListUsers(c echo.Context) error {
	log := logger.FromContext(c)

	companyID, ok := listScope(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company context required"})
	}
	users, err := h.Users.List(c.Request().Context(), companyID)
	if err != nil {
		return storeError(c, log, err, "user")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": users})
}

// CreateUser handles POST /api/users
func (h *Handler) CreateUser(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	var req userRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse user creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	companyID, ok := companyScope(c)
	if !ok {
		companyID = req.CompanyID
	}
	if companyID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company_id is required"})
	}

	name, email, password := strings.TrimSpace(deref(req.Name)), strings.ToLower(strings.TrimSpace(deref(req.Email))), deref(req.Password)
	role := model.UserRoleSalesperson
	if req.Role != nil {
		role = *req.Role
	}
	if msg := validateUser(name, email, password, role, true); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	taken, err := h.Users.EmailTaken(ctx, email, 0)
	if err != nil {
		return storeError(c, log, err, "user")
	}
	if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "user creation failed"})
	}

	user := model.User{
		CompanyID:    companyID,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Permissions:  req.Permissions,
		IsActive:     true,
	}
	if err := h.Users.Create(ctx, &user); err != nil {
		return storeError(c, log, err, "user")
	}

	log.Info("User created",
		zap.Uint("id", user.ID),
		zap.String("email", user.Email),
		zap.Uint("company_id", user.CompanyID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"data":    user,
	})
}

// UpdateUser handles PUT /api/users/:id
func (h *Handler) UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}
	var req userRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse user update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	user, err := h.ownedUser(c, id)
	if err != nil {
		return respond(c, err)
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Permissions != nil {
		user.Permissions = req.Permissions
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if msg := validateUser(user.Name, user.Email, deref(req.Password), user.Role, req.Password != nil); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	if req.Email != nil {
		taken, err := h.Users.EmailTaken(ctx, user.Email, user.ID)
		if err != nil {
			return storeError(c, log, err, "user")
		}
		if taken {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "user update failed"})
		}
		user.PasswordHash = string(hash)
	}

	if err := h.Users.Update(ctx, user); err != nil {
		return storeError(c, log, err, "user")
	}

	log.Info("User updated", zap.Uint("id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "User updated successfully",
		"data":    user,
	})
}

// DeleteUser handles DELETE /api/users/:id
func (h *Handler) DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}
	if _, err := h.ownedUser(c, id); err != nil {
		return respond(c, err)
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		return storeError(c, log, err, "user")
	}

	log.Info("User deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

// ownedUser loads a user, hiding users of other companies behind a 404
func (h *Handler) ownedUser(c echo.Context, id uint) (*model.User, error) {
	user, err := h.Users.Get(c.Request().Context(), id)
	if err != nil {
		return nil, lookupError(c, err, "user")
	}
	if companyID, ok := companyScope(c); ok && user.CompanyID != companyID {
		return nil, fail(http.StatusNotFound, "user not found")
	}
	return user, nil
}

func validateUser(name, email, password, role string, checkPassword bool) string {
	switch {
	case name == "":
		return "name is required"
	case !validEmail(email):
		return "a valid email is required"
	case checkPassword && len(password) < 8:
		return "password must be at least 8 characters"
	case !oneOf(role, userRoles):
		return "role must be one of " + strings.Join(userRoles, ", ")
	}
	return ""
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
