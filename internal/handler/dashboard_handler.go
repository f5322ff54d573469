package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/leadstore"
	"spartan-crm/internal/twenty"
	"spartan-crm/pkg/logger"
)

type remoteCtxKey struct{}

// contextRemote resolves the remote client from the call's context. Cached
// views hold one of these instead of a client, so decrypted credentials
// never outlive the request that produced them.
type contextRemote struct{}

var errNoRemote = errors.New("no remote client in context")

func withRemote(ctx context.Context, r RemoteCRM) context.Context {
	return context.WithValue(ctx, remoteCtxKey{}, r)
}

func remoteFrom(ctx context.Context) (RemoteCRM, error) {
	r, ok := ctx.Value(remoteCtxKey{}).(RemoteCRM)
	if !ok {
		return nil, errNoRemote
	}
	return r, nil
}

func (contextRemote) ListLeads(ctx context.Context, filter *twenty.LeadFilter) ([]domain.Lead, error) {
	r, err := remoteFrom(ctx)
	if err != nil {
		return nil, err
	}
	return r.ListLeads(ctx, filter)
}

func (contextRemote) CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	r, err := remoteFrom(ctx)
	if err != nil {
		return nil, err
	}
	return r.CreateLead(ctx, lead)
}

func (contextRemote) UpdateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	r, err := remoteFrom(ctx)
	if err != nil {
		return nil, err
	}
	return r.UpdateLead(ctx, lead)
}

func (contextRemote) DeleteLead(ctx context.Context, id string) error {
	r, err := remoteFrom(ctx)
	if err != nil {
		return err
	}
	return r.DeleteLead(ctx, id)
}

func dashboardKey(companyID uint, salesRep string) string {
	return fmt.Sprintf("dashboard:%d:%s", companyID, strings.ToLower(strings.TrimSpace(salesRep)))
}

// dropDashboards evicts every cached view of companyID
func (h *Handler) dropDashboards(companyID uint) {
	prefix := fmt.Sprintf("dashboard:%d:", companyID)
	for key := range h.dashboards.Items() {
		if strings.HasPrefix(key, prefix) {
			h.dashboards.Delete(key)
		}
	}
}

// dashboard returns the cached view for the request, loading it on first use.
// The returned context carries the request's remote client.
func (h *Handler) dashboard(c echo.Context) (*leadstore.Store, context.Context, error) {
	remote, companyID, err := h.remoteFor(c)
	if err != nil {
		return nil, nil, err
	}
	ctx := withRemote(c.Request().Context(), remote)

	rep := c.QueryParam("salesRep")
	key := dashboardKey(companyID, rep)
	if cached, ok := h.dashboards.Get(key); ok {
		return cached.(*leadstore.Store), ctx, nil
	}

	var scope *twenty.LeadFilter
	if rep != "" {
		scope = &twenty.LeadFilter{SalesRep: rep}
	}
	store := leadstore.New(contextRemote{}, scope, zap.L().With(zap.Uint("company_id", companyID)))
	if err := store.Load(ctx); err != nil {
		return nil, nil, remoteFailure(err, "failed to load leads")
	}
	h.dashboards.Set(key, store, cache.DefaultExpiration)
	return store, ctx, nil
}

func remoteFailure(err error, msg string) *apiError {
	details := twenty.Detail(err)
	if details == "" {
		details = err.Error()
	}
	status := http.StatusInternalServerError
	if errors.Is(err, twenty.ErrNotFound) {
		status = http.StatusNotFound
	}
	return &apiError{status: status, body: echo.Map{"error": msg, "details": details}}
}

// dashboardFilters reads the filter query. Dates are YYYY-MM-DD or RFC 3339;
// a bare "to" date includes the whole day.
func dashboardFilters(c echo.Context) (leadstore.Filters, error) {
	var f leadstore.Filters
	for _, s := range splitList(c.QueryParam("status")) {
		st := domain.Status(s)
		if !st.Valid() {
			return f, fmt.Errorf("invalid status %q", s)
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, s := range splitList(c.QueryParam("source")) {
		f.Sources = append(f.Sources, domain.Source(s))
	}
	for _, s := range splitList(c.QueryParam("syncStatus")) {
		st := domain.SyncStatus(s)
		if !st.Valid() {
			return f, fmt.Errorf("invalid syncStatus %q", s)
		}
		f.SyncStatuses = append(f.SyncStatuses, st)
	}
	f.PropertyType = domain.PropertyType(c.QueryParam("propertyType"))
	f.AssignedTo = strings.TrimSpace(c.QueryParam("assignedTo"))
	f.Search = strings.TrimSpace(c.QueryParam("search"))

	if raw := c.QueryParam("from"); raw != "" {
		t, _, err := parseDay(raw)
		if err != nil {
			return f, fmt.Errorf("invalid from date %q", raw)
		}
		f.From = &t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, dayOnly, err := parseDay(raw)
		if err != nil {
			return f, fmt.Errorf("invalid to date %q", raw)
		}
		if dayOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &t
	}
	return f, nil
}

func parseDay(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DashboardLeads handles GET /api/dashboard/leads
func (h *Handler) DashboardLeads(c echo.Context) error {
	filters, err := dashboardFilters(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	store, _, err := h.dashboard(c)
	if err != nil {
		return respond(c, err)
	}

	snap := store.Snapshot()
	leads := store.FilteredBy(filters)
	return c.JSON(http.StatusOK, echo.Map{
		"data":     leads,
		"total":    len(snap.Leads),
		"filtered": len(leads),
		"filters":  filters,
		"loadedAt": snap.LoadedAt,
		"error":    snap.Error,
	})
}

// RefreshDashboard handles POST /api/dashboard/leads/refresh
func (h *Handler) RefreshDashboard(c echo.Context) error {
	log := logger.FromContext(c)

	store, ctx, err := h.dashboard(c)
	if err != nil {
		return respond(c, err)
	}
	if err := store.Load(ctx); err != nil {
		return remoteError(c, log, err, "failed to refresh leads")
	}
	snap := store.Snapshot()
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Leads refreshed",
		"total":    len(snap.Leads),
		"loadedAt": snap.LoadedAt,
	})
}

// CreateDashboardLead handles POST /api/dashboard/leads
func (h *Handler) CreateDashboardLead(c echo.Context) error {
	log := logger.FromContext(c)

	var lead domain.Lead
	if err := c.Bind(&lead); err != nil {
		log.Error("Failed to parse lead request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	lead.ID = ""
	lead.Name = strings.TrimSpace(lead.Name)
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}
	if msg := validateDomainLead(lead); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	store, ctx, err := h.dashboard(c)
	if err != nil {
		return respond(c, err)
	}
	created, err := store.AddLead(ctx, lead)
	if err != nil {
		return remoteError(c, log, err, "failed to create lead")
	}

	log.Info("Remote lead created", zap.String("lead_id", created.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Lead created successfully",
		"data":    created,
	})
}

// UpdateDashboardLead handles PUT /api/dashboard/leads/:id
func (h *Handler) UpdateDashboardLead(c echo.Context) error {
	log := logger.FromContext(c)

	id := c.Param("id")
	var patch domain.LeadPatch
	if err := c.Bind(&patch); err != nil {
		log.Error("Failed to parse lead update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if msg := validateLeadPatch(patch); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	store, ctx, err := h.dashboard(c)
	if err != nil {
		return respond(c, err)
	}
	updated, err := store.UpdateLead(ctx, id, patch)
	if errors.Is(err, leadstore.ErrUnknownLead) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "lead not found"})
	}
	if err != nil {
		return remoteError(c, log, err, "failed to update lead")
	}

	log.Info("Remote lead updated", zap.String("lead_id", id))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Lead updated successfully",
		"data":    updated,
	})
}

// DeleteDashboardLead handles DELETE /api/dashboard/leads/:id
func (h *Handler) DeleteDashboardLead(c echo.Context) error {
	log := logger.FromContext(c)

	id := c.Param("id")
	store, ctx, err := h.dashboard(c)
	if err != nil {
		return respond(c, err)
	}
	if err := store.DeleteLead(ctx, id); err != nil {
		return remoteError(c, log, err, "failed to delete lead")
	}

	log.Info("Remote lead deleted", zap.String("lead_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Lead deleted successfully"})
}

func validateDomainLead(l domain.Lead) string {
	switch {
	case l.Name == "":
		return "name is required"
	case !l.Status.Valid():
		return "invalid status"
	case !l.Source.Valid():
		return "invalid source"
	case !l.Medium.Valid():
		return "invalid medium"
	case l.EstimatedValue < 0:
		return "estimatedValue cannot be negative"
	}
	return ""
}

// validateLeadPatch applies the full lead rules to the fields p sets
func validateLeadPatch(p domain.LeadPatch) string {
	switch {
	case p.Name != nil && strings.TrimSpace(*p.Name) == "":
		return "name is required"
	case p.Status != nil && !p.Status.Valid():
		return "invalid status"
	case p.Source != nil && !p.Source.Valid():
		return "invalid source"
	case p.Medium != nil && !p.Medium.Valid():
		return "invalid medium"
	case p.EstimatedValue != nil && *p.EstimatedValue < 0:
		return "estimatedValue cannot be negative"
	}
	return ""
}
