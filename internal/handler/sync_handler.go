package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/offline"
	"spartan-crm/internal/syncer"
	"spartan-crm/pkg/logger"
)

// FieldSync serves the field agent's local API over the offline store
type FieldSync struct {
	Store   offline.Store
	Engine  *syncer.Engine
	Service string
	Now     func() time.Time
}

func (f *FieldSync) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func offlineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, offline.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "lead not found"})
	case errors.Is(err, offline.ErrMissingID), errors.Is(err, offline.ErrInvalidSyncStatus):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		logger.FromContext(c).Error("Offline store operation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "offline store error"})
	}
}

// HealthCheck reports the agent as healthy along with its connectivity
func (f *FieldSync) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": f.Service,
		"online":  f.Engine.Status().Online,
	})
}

// ListLeads handles GET /leads with optional ?syncStatus= and ?name=
func (f *FieldSync) ListLeads(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		leads []domain.Lead
		err   error
	)
	switch {
	case c.QueryParam("name") != "":
		leads, err = f.Store.FindByName(ctx, c.QueryParam("name"))
	case c.QueryParam("syncStatus") != "":
		var statuses []domain.SyncStatus
		for _, s := range splitList(c.QueryParam("syncStatus")) {
			st := domain.SyncStatus(s)
			if !st.Valid() {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid syncStatus"})
			}
			statuses = append(statuses, st)
		}
		leads, err = f.Store.ListBySyncStatus(ctx, statuses...)
	default:
		leads, err = f.Store.List(ctx)
	}
	if err != nil {
		return offlineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": leads})
}

// GetLead handles GET /leads/:id
func (f *FieldSync) GetLead(c echo.Context) error {
	lead, err := f.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return offlineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": lead})
}

// CreateLead handles POST /leads. New leads get a local id and wait for the next push.
func (f *FieldSync) CreateLead(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	var lead domain.Lead
	if err := c.Bind(&lead); err != nil {
		log.Error("Failed to parse lead request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	lead.Name = strings.TrimSpace(lead.Name)
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}
	if msg := validateDomainLead(lead); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	status, err := syncer.Transition(ctx, domain.SyncPending, syncer.EventEdit)
	if err != nil {
		return offlineError(c, err)
	}
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	} else if _, err := f.Store.Get(ctx, lead.ID); err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "lead already exists"})
	} else if !errors.Is(err, offline.ErrNotFound) {
		return offlineError(c, err)
	}
	now := f.now()
	lead.CreatedAt, lead.UpdatedAt = now, now
	lead.SyncStatus = status
	lead.LastSyncedAt = nil
	lead.SyncError = ""

	if err := f.Store.Put(ctx, lead); err != nil {
		return offlineError(c, err)
	}

	log.Info("Local lead created", zap.String("lead_id", lead.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Lead saved locally",
		"data":    lead,
	})
}

// UpdateLead handles PATCH /leads/:id. Any content change marks the lead pending.
func (f *FieldSync) UpdateLead(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()
	id := c.Param("id")

	var patch domain.LeadPatch
	if err := c.Bind(&patch); err != nil {
		log.Error("Failed to parse lead update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if msg := validateLeadPatch(patch); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	// sync bookkeeping belongs to the engine
	patch.SyncStatus, patch.LastSyncedAt, patch.SyncError, patch.UpdatedAt = nil, nil, nil, nil

	current, err := f.Store.Get(ctx, id)
	if err != nil {
		return offlineError(c, err)
	}
	if !patch.ContentChanged() {
		return c.JSON(http.StatusOK, echo.Map{"message": "No changes", "data": current})
	}

	status, err := syncer.Transition(ctx, current.SyncStatus, syncer.EventEdit)
	if err != nil {
		return offlineError(c, err)
	}
	now := f.now()
	noError := ""
	patch.SyncStatus = &status
	patch.SyncError = &noError
	patch.UpdatedAt = &now

	updated, err := f.Store.Update(ctx, id, patch)
	if err != nil {
		return offlineError(c, err)
	}

	log.Info("Local lead updated", zap.String("lead_id", id))
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Lead updated locally",
		"data":    updated,
	})
}

// DeleteLead handles DELETE /leads/:id. The remote copy is left untouched.
func (f *FieldSync) DeleteLead(c echo.Context) error {
	id := c.Param("id")
	if err := f.Store.Delete(c.Request().Context(), id); err != nil {
		return offlineError(c, err)
	}
	logger.FromContext(c).Info("Local lead deleted", zap.String("lead_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Lead deleted locally"})
}

// Push handles POST /sync/push
func (f *FieldSync) Push(c echo.Context) error {
	res := f.Engine.SyncLeads(c.Request().Context())
	return c.JSON(http.StatusOK, res)
}

// Pull handles POST /sync/pull
func (f *FieldSync) Pull(c echo.Context) error {
	log := logger.FromContext(c)

	if !f.Engine.Status().Online {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "remote CRM unreachable"})
	}
	n, err := f.Engine.PullLeads(c.Request().Context())
	if err != nil {
		log.Error("Pull failed", zap.Int("pulled", n), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "pull failed",
			"details": err.Error(),
			"pulled":  n,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Pull complete", "pulled": n})
}

// Status handles GET /sync/status
func (f *FieldSync) Status(c echo.Context) error {
	st := f.Engine.Status()

	pending, err := f.Store.ListBySyncStatus(c.Request().Context(), domain.SyncPending, domain.SyncError)
	if err != nil {
		return offlineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"online":     st.Online,
		"lastPush":   st.LastPush,
		"lastResult": st.LastResult,
		"lastPull":   st.LastPull,
		"unsynced":   len(pending),
	})
}
