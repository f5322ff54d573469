package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"spartan-crm/internal/model"
	"spartan-crm/internal/repository"
	"spartan-crm/pkg/logger"
)

type mobileUserRequest struct {
	CompanyID      uint    `json:"companyId"`
	Username       *string `json:"username"`
	Email          *string `json:"email"`
	Password       *string `json:"password"`
	Role           *string `json:"role"`
	SalesRep       *string `json:"salesRep"`
	Canvasser      *string `json:"canvasser"`
	OfficeManager  *string `json:"officeManager"`
	ProjectManager *string `json:"projectManager"`
	IsActive       *bool   `json:"isActive"`
}

func (r mobileUserRequest) apply(u *model.MobileUser) {
	trim := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	trim(&u.Username, r.Username)
	trim(&u.Role, r.Role)
	trim(&u.SalesRep, r.SalesRep)
	trim(&u.Canvasser, r.Canvasser)
	trim(&u.OfficeManager, r.OfficeManager)
	trim(&u.ProjectManager, r.ProjectManager)
	if r.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
	if r.IsActive != nil {
		u.IsActive = *r.IsActive
	}
}

// validateMobileUser checks the account fields. password is only checked when
// checkPassword is set, so updates may leave it unchanged.
func validateMobileUser(u *model.MobileUser, password string, checkPassword bool) string {
	switch {
	case len(u.Username) < 3:
		return "username must be at least 3 characters"
	case !validEmail(u.Email):
		return "a valid email is required"
	case checkPassword && len(password) < 8:
		return "password must be at least 8 characters"
	case !oneOf(u.Role, model.MobileRoles):
		return "role must be one of " + strings.Join(model.MobileRoles, ", ")
	case u.Role == model.MobileRoleSalesRep && u.SalesRep == "":
		return "salesRep is required for the sales_rep role"
	case u.Role == model.MobileRoleCanvasser && u.Canvasser == "":
		return "canvasser is required for the canvasser role"
	}
	return ""
}

// checkMobileConflicts rejects duplicate identities and CRM labels already
// claimed by another account of the same company
func (h *Handler) checkMobileConflicts(ctx context.Context, u *model.MobileUser) error {
	existing, err := h.MobileUsers.FindByIdentity(ctx, u.Username, u.Email, u.ID)
	switch {
	case err == nil:
		field := "email"
		if strings.EqualFold(existing.Username, u.Username) {
			field = "username"
		}
		return fail(http.StatusConflict, fmt.Sprintf("%s already registered to %s", field, existing.Username))
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	labels := []struct {
		column, value, name string
	}{
		{repository.LabelSalesRep, u.SalesRep, "sales rep"},
		{repository.LabelCanvasser, u.Canvasser, "canvasser"},
	}
	for _, l := range labels {
		if l.value == "" {
			continue
		}
		existing, err := h.MobileUsers.FindByLabel(ctx, u.CompanyID, l.column, l.value, u.ID)
		switch {
		case err == nil:
			return fail(http.StatusConflict, fmt.Sprintf("%s %q is already linked to user %s", l.name, l.value, existing.Username))
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
	}
	return nil
}

// ListMobileUsers handles GET /api/mobile-users
func (h *Handler) ListMobileUsers(c echo.Context) error {
	log := logger.FromContext(c)

	companyID, ok := listScope(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company context required"})
	}
	users, err := h.MobileUsers.List(c.Request().Context(), companyID)
	if err != nil {
		return storeError(c, log, err, "mobile user")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": users})
}

// RegisterMobileUser handles POST /api/mobile-users and POST /api/mobile-users/register
func (h *Handler) RegisterMobileUser(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	var req mobileUserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse mobile user registration", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	companyID, ok := companyScope(c)
	if !ok {
		companyID = req.CompanyID
	}
	if companyID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "companyId is required"})
	}

	user := model.MobileUser{CompanyID: companyID, IsActive: true}
	req.apply(&user)
	password := deref(req.Password)
	if msg := validateMobileUser(&user, password, true); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	if _, err := h.Companies.Get(ctx, companyID); err != nil {
		return storeError(c, log, err, "company")
	}
	if err := h.checkMobileConflicts(ctx, &user); err != nil {
		return h.conflictResponse(c, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}
	user.PasswordHash = string(hash)

	if err := h.MobileUsers.Create(ctx, &user); err != nil {
		return storeError(c, log, err, "mobile user")
	}

	log.Info("Mobile user registered",
		zap.Uint("id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", user.Role),
		zap.Uint("company_id", user.CompanyID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Mobile user registered successfully",
		"data":    user,
	})
}

// UpdateMobileUser handles PUT /api/mobile-users/:id
func (h *Handler) UpdateMobileUser(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid mobile user ID"})
	}
	var req mobileUserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse mobile user update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	user, err := h.ownedMobileUser(c, id)
	if err != nil {
		return respond(c, err)
	}
	req.apply(user)
	if msg := validateMobileUser(user, deref(req.Password), req.Password != nil); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if err := h.checkMobileConflicts(ctx, user); err != nil {
		return h.conflictResponse(c, err)
	}

	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "mobile user update failed"})
		}
		user.PasswordHash = string(hash)
	}

	if err := h.MobileUsers.Update(ctx, user); err != nil {
		return storeError(c, log, err, "mobile user")
	}

	log.Info("Mobile user updated", zap.Uint("id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Mobile user updated successfully",
		"data":    user,
	})
}

// DeleteMobileUser handles DELETE /api/mobile-users/:id
func (h *Handler) DeleteMobileUser(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid mobile user ID"})
	}
	if _, err := h.ownedMobileUser(c, id); err != nil {
		return respond(c, err)
	}
	if err := h.MobileUsers.Delete(c.Request().Context(), id); err != nil {
		return storeError(c, log, err, "mobile user")
	}

	log.Info("Mobile user deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Mobile user deleted successfully"})
}

func (h *Handler) ownedMobileUser(c echo.Context, id uint) (*model.MobileUser, error) {
	user, err := h.MobileUsers.Get(c.Request().Context(), id)
	if err != nil {
		return nil, lookupError(c, err, "mobile user")
	}
	if companyID, ok := companyScope(c); ok && user.CompanyID != companyID {
		return nil, fail(http.StatusNotFound, "mobile user not found")
	}
	return user, nil
}

func (h *Handler) conflictResponse(c echo.Context, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		logger.FromContext(c).Warn("Mobile user conflict", zap.Any("error", ae.body["error"]))
		return c.JSON(ae.status, ae.body)
	}
	return storeError(c, logger.FromContext(c), err, "mobile user")
}
