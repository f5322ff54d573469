package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/model"
	"spartan-crm/internal/repository"
	"spartan-crm/pkg/logger"
	"spartan-crm/prometheus"
)

type leadRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	ZipCode    *string `json:"zip_code"`
	Status     *string `json:"status"`
	Source     *string `json:"source"`
	Notes      *string `json:"notes"`
	AssignedTo *string `json:"assigned_to"`
	TwentyID   *string `json:"twenty_id"`
}

// apply copies the request onto lead and returns the remote-visible changes
func (r leadRequest) apply(lead *model.LeadRecord) domain.LeadPatch {
	var patch domain.LeadPatch
	set := func(dst *string, v *string, changed **string) {
		if v == nil {
			return
		}
		s := strings.TrimSpace(*v)
		if s == *dst {
			return
		}
		*dst = s
		if changed != nil {
			*changed = &s
		}
	}
	set(&lead.Name, r.Name, &patch.Name)
	set(&lead.Email, r.Email, &patch.Email)
	set(&lead.Phone, r.Phone, &patch.Phone)
	set(&lead.Address, r.Address, &patch.Address)
	set(&lead.City, r.City, &patch.City)
	set(&lead.State, r.State, &patch.State)
	set(&lead.ZipCode, r.ZipCode, &patch.ZipCode)
	set(&lead.Source, r.Source, nil)
	set(&lead.Notes, r.Notes, nil)
	set(&lead.AssignedTo, r.AssignedTo, nil)

	if r.Status != nil && *r.Status != lead.Status {
		lead.Status = *r.Status
		st := domain.Status(lead.Status)
		patch.Status = &st
	}
	if r.TwentyID != nil {
		if id := strings.TrimSpace(*r.TwentyID); id != "" {
			lead.TwentyID = &id
		} else {
			lead.TwentyID = nil
		}
	}
	return patch
}

func validateLead(l *model.LeadRecord) string {
	switch {
	case l.Name == "":
		return "name is required"
	case l.Email != "" && !validEmail(l.Email):
		return "email is invalid"
	case !domain.Status(l.Status).Valid():
		return "invalid status"
	case !domain.Source(l.Source).Valid():
		return "invalid source"
	}
	return ""
}

// recordToDomain is the remote view of a relational lead
func recordToDomain(l model.LeadRecord) domain.Lead {
	out := domain.Lead{
		Name:      l.Name,
		Email:     l.Email,
		Phone:     l.Phone,
		Address:   l.Address,
		City:      l.City,
		State:     l.State,
		ZipCode:   l.ZipCode,
		Status:    domain.Status(l.Status),
		Source:    domain.Source(l.Source),
		Notes:     l.Notes,
		SalesRep:  l.AssignedTo,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if l.TwentyID != nil {
		out.ID = *l.TwentyID
	}
	return out
}

// ListLeads handles GET /api/leads
func (h *Handler) ListLeads(c echo.Context) error {
	log := logger.FromContext(c)

	companyID, ok := companyScope(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company context required"})
	}

	if c.Param("id") != "" || c.QueryParam("id") != "" {
		id, err := idParam(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lead ID"})
		}
		lead, err := h.Leads.Get(c.Request().Context(), companyID, id)
		if err != nil {
			return storeError(c, log, err, "lead")
		}
		return c.JSON(http.StatusOK, echo.Map{"data": lead})
	}

	leads, err := h.Leads.List(c.Request().Context(), companyID, repository.LeadQuery{
		Status:     c.QueryParam("status"),
		AssignedTo: c.QueryParam("assignedTo"),
		Search:     c.QueryParam("search"),
	})
	if err != nil {
		return storeError(c, log, err, "lead")
	}
	return c.JSON(http.StatusOK, echo.Map{"data": leads})
}

// CreateLead handles POST /api/leads
func (h *Handler) CreateLead(c echo.Context) error {
	log := logger.FromContext(c)

	companyID, ok := companyScope(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company context required"})
	}
	var req leadRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse lead creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	lead := model.LeadRecord{CompanyID: companyID, Status: string(domain.StatusNew)}
	req.apply(&lead)
	if msg := validateLead(&lead); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	if err := h.Leads.Create(c.Request().Context(), &lead); err != nil {
		return storeError(c, log, err, "lead")
	}

	log.Info("Lead created", zap.Uint("id", lead.ID), zap.Uint("company_id", companyID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Lead created successfully",
		"data":    lead,
	})
}

// UpdateLead handles PATCH /api/leads/:id. When the lead is linked to the
// remote CRM the changed contact and status fields are pushed best-effort.
func (h *Handler) UpdateLead(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	companyID, ok := companyScope(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company context required"})
	}
	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lead ID"})
	}
	var req leadRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse lead update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	lead, err := h.Leads.Get(ctx, companyID, id)
	if err != nil {
		return storeError(c, log, err, "lead")
	}
	before := recordToDomain(*lead)
	patch := req.apply(lead)
	if msg := validateLead(lead); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	if err := h.Leads.Update(ctx, lead); err != nil {
		return storeError(c, log, err, "lead")
	}

	if lead.TwentyID != nil && patch.ContentChanged() {
		before.ID = *lead.TwentyID
		h.pushLeadPatch(c, *lead.TwentyID, patch, before)
	}

	log.Info("Lead updated", zap.Uint("id", lead.ID), zap.Uint("company_id", companyID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Lead updated successfully",
		"data":    lead,
	})
}

func (h *Handler) pushLeadPatch(c echo.Context, remoteID string, patch domain.LeadPatch, current domain.Lead) {
	log := logger.FromContext(c).With(zap.String("twenty_id", remoteID))

	remote, _, err := h.remoteFor(c)
	if err != nil {
		log.Warn("Skipping remote lead push", zap.Error(err))
		prometheus.RecordRemotePushFailure("lead")
		return
	}
	if _, err := remote.PatchLead(c.Request().Context(), remoteID, patch, current); err != nil {
		log.Warn("Remote lead push failed", zap.Error(err))
		prometheus.RecordRemotePushFailure("lead")
	}
}

// DeleteLead handles DELETE /api/leads/:id
func (h *Handler) DeleteLead(c echo.Context) error {
	log := logger.FromContext(c)

	companyID, ok := companyScope(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company context required"})
	}
	id, err := idParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lead ID"})
	}
	if err := h.Leads.Delete(c.Request().Context(), companyID, id); err != nil {
		return storeError(c, log, err, "lead")
	}

	log.Info("Lead deleted", zap.Uint("id", id), zap.Uint("company_id", companyID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Lead deleted successfully"})
}
