package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spartan-crm/internal/model"
	"spartan-crm/pkg/logger"
	"spartan-crm/pkg/secret"
)

type companyRequest struct {
	Name         *string `json:"name"`
	ContactName  *string `json:"contact_name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	ZipCode      *string `json:"zip_code"`
	TwentyAPIURL *string `json:"twenty_api_url"`
	TwentyAPIKey *string `json:"twenty_api_key"`
	SupabaseURL  *string `json:"supabase_url"`
	SupabaseKey  *string `json:"supabase_key"`
	IsActive     *bool   `json:"is_active"`
}

// companyView is the outward shape of a company. Stored keys are never
// returned; a freshly submitted key is echoed back masked.
type companyView struct {
	model.Company
	TwentyAPIKeySet    bool   `json:"twenty_api_key_set"`
	TwentyAPIKeyMasked string `json:"twenty_api_key_masked,omitempty"`
	SupabaseKeySet     bool   `json:"supabase_key_set"`
}

func viewCompany(c model.Company, submittedKey string) companyView {
	return companyView{
		Company:            c,
		TwentyAPIKeySet:    c.TwentyAPIKey != "",
		TwentyAPIKeyMasked: secret.Mask(submittedKey),
		SupabaseKeySet:     c.SupabaseKey != "",
	}
}

// apply copies the request onto company, encrypting credentials
func (r companyRequest) apply(company *model.Company) error {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&company.Name, r.Name)
	set(&company.ContactName, r.ContactName)
	set(&company.Email, r.Email)
	set(&company.Phone, r.Phone)
	set(&company.Address, r.Address)
	set(&company.City, r.City)
	set(&company.State, r.State)
	set(&company.ZipCode, r.ZipCode)
	set(&company.TwentyAPIURL, r.TwentyAPIURL)
	set(&company.SupabaseURL, r.SupabaseURL)
	if r.IsActive != nil {
		company.IsActive = *r.IsActive
	}

	if r.TwentyAPIKey != nil {
		enc, err := encryptOptional(*r.TwentyAPIKey)
		if err != nil {
			return err
		}
		company.TwentyAPIKey = enc
	}
	if r.SupabaseKey != nil {
		enc, err := encryptOptional(*r.SupabaseKey)
		if err != nil {
			return err
		}
		company.SupabaseKey = enc
	}
	return nil
}

func encryptOptional(plain string) (string, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return "", nil
	}
	return secret.Encrypt(plain)
}

// ListCompanies handles GET /api/companies
func (h *Handler) ListCompanies(c echo.Context) error {
	log := logger.FromContext(c)

	if c.Param("id") != "" || c.QueryParam("id") != "" {
		return h.GetCompany(c)
	}

	companies, err := h.Companies.List(c.Request().Context())
	if err != nil {
		return storeError(c, log, err, "company")
	}

	views := make([]companyView, 0, len(companies))
	for _, company := range companies {
		views = append(views, viewCompany(company, ""))
	}
	return c.JSON(http.StatusOK, echo.Map{"data": views})
}

// GetCompany handles GET /api/companies/:id
func (h *Handler) GetCompany(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid company ID"})
	}
	company, err := h.Companies.Get(c.Request().Context(), id)
	if err != nil {
		return storeError(c, log, err, "company")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": viewCompany(*company, "")})
}

// CreateCompany handles POST /api/companies
func (h *Handler) CreateCompany(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	var req companyRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse company creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	taken, err := h.Companies.NameTaken(ctx, strings.TrimSpace(*req.Name), 0)
	if err != nil {
		return storeError(c, log, err, "company")
	}
	if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "company name already exists"})
	}

	company := model.Company{IsActive: true}
	if err := req.apply(&company); err != nil {
		log.Error("Failed to encrypt company credentials", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to encrypt credentials"})
	}

	if err := h.Companies.Create(ctx, &company); err != nil {
		return storeError(c, log, err, "company")
	}

	log.Info("Company created", zap.Uint("id", company.ID), zap.String("name", company.Name))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Company created successfully",
		"data":    viewCompany(company, deref(req.TwentyAPIKey)),
	})
}

// UpdateCompany handles PUT /api/companies?id= and PUT /api/companies/:id
func (h *Handler) UpdateCompany(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid company ID"})
	}

	var req companyRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse company update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	company, err := h.Companies.Get(ctx, id)
	if err != nil {
		return storeError(c, log, err, "company")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
		}
		if !strings.EqualFold(name, company.Name) {
			taken, err := h.Companies.NameTaken(ctx, name, id)
			if err != nil {
				return storeError(c, log, err, "company")
			}
			if taken {
				return c.JSON(http.StatusConflict, echo.Map{"error": "company name already exists"})
			}
		}
	}

	if err := req.apply(company); err != nil {
		log.Error("Failed to encrypt company credentials", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to encrypt credentials"})
	}
	if err := h.Companies.Update(ctx, company); err != nil {
		return storeError(c, log, err, "company")
	}
	h.dropDashboards(id)

	log.Info("Company updated", zap.Uint("id", company.ID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Company updated successfully",
		"data":    viewCompany(*company, deref(req.TwentyAPIKey)),
	})
}

// DeleteCompany handles DELETE /api/companies?id= and DELETE /api/companies/:id
func (h *Handler) DeleteCompany(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid company ID"})
	}
	if err := h.Companies.Delete(c.Request().Context(), id); err != nil {
		return storeError(c, log, err, "company")
	}
	h.dropDashboards(id)

	log.Info("Company deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Company deleted successfully"})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
