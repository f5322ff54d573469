package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/middleware"
	"spartan-crm/internal/model"
	"spartan-crm/internal/repository"
	"spartan-crm/internal/twenty"
	"spartan-crm/pkg/config"
	"spartan-crm/pkg/jwtutil"
	"spartan-crm/pkg/logger"
)

// CompanyStore persists tenants
type CompanyStore interface {
	List(ctx context.Context) ([]model.Company, error)
	Get(ctx context.Context, id uint) (*model.Company, error)
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	Create(ctx context.Context, company *model.Company) error
	Update(ctx context.Context, company *model.Company) error
	Delete(ctx context.Context, id uint) error
}

// UserStore persists web login accounts
type UserStore interface {
	List(ctx context.Context, companyID uint) ([]model.User, error)
	Get(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
}

// MobileUserStore persists field accounts
type MobileUserStore interface {
	List(ctx context.Context, companyID uint) ([]model.MobileUser, error)
	Get(ctx context.Context, id uint) (*model.MobileUser, error)
	FindByIdentity(ctx context.Context, username, email string, excludeID uint) (*model.MobileUser, error)
	FindByLabel(ctx context.Context, companyID uint, column, label string, excludeID uint) (*model.MobileUser, error)
	Create(ctx context.Context, user *model.MobileUser) error
	Update(ctx context.Context, user *model.MobileUser) error
	Delete(ctx context.Context, id uint) error
}

// LeadStore persists relational leads, scoped per company
type LeadStore interface {
	List(ctx context.Context, companyID uint, query repository.LeadQuery) ([]model.LeadRecord, error)
	Get(ctx context.Context, companyID, id uint) (*model.LeadRecord, error)
	Create(ctx context.Context, lead *model.LeadRecord) error
	Update(ctx context.Context, lead *model.LeadRecord) error
	Delete(ctx context.Context, companyID, id uint) error
}

// RemoteCRM is the remote CRM surface the API uses
type RemoteCRM interface {
	ListLeads(ctx context.Context, filter *twenty.LeadFilter) ([]domain.Lead, error)
	CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	UpdateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	PatchLead(ctx context.Context, id string, patch domain.LeadPatch, current domain.Lead) (*domain.Lead, error)
	DeleteLead(ctx context.Context, id string) error
	GetNotesForLead(ctx context.Context, leadID string) ([]twenty.Note, error)
	CreateNoteForLead(ctx context.Context, leadID, title, body string) (*twenty.Note, error)
	GetTasksForLead(ctx context.Context, leadID string) ([]twenty.Task, error)
	CreateTask(ctx context.Context, in twenty.TaskInput) (*twenty.Task, error)
	UpdateTask(ctx context.Context, id string, upd twenty.TaskUpdate) (*twenty.Task, error)
	GetAttachmentsForLead(ctx context.Context, leadID string) ([]twenty.Attachment, error)
	UploadAttachment(ctx context.Context, leadID, fileName, contentType string, content []byte) (*twenty.Attachment, error)
}

// RemoteFactory builds a remote client for one tenant's decrypted credentials
type RemoteFactory func(cfg twenty.Config, log *zap.Logger) RemoteCRM

// NewTwentyRemote is the production RemoteFactory
func NewTwentyRemote(cfg twenty.Config, log *zap.Logger) RemoteCRM {
	return twenty.NewClient(cfg, log)
}

// Deps wires the API handlers
type Deps struct {
	Companies   CompanyStore
	Users       UserStore
	MobileUsers MobileUserStore
	Leads       LeadStore
	JWT         *jwtutil.JWTUtil
	Admin       config.AdminConfig
	Remote      RemoteFactory
	// RemoteTimeout bounds each remote client; zero uses the client default
	RemoteTimeout time.Duration
	// DashboardTTL is how long a tenant's dashboard view stays cached
	DashboardTTL time.Duration
	ServiceName  string
}

// Handler serves the admin and dashboard API
type Handler struct {
	Deps
	dashboards *cache.Cache
}

func New(deps Deps) *Handler {
	if deps.Remote == nil {
		deps.Remote = NewTwentyRemote
	}
	if deps.DashboardTTL <= 0 {
		deps.DashboardTTL = 10 * time.Minute
	}
	if deps.ServiceName == "" {
		deps.ServiceName = "crm-api"
	}
	return &Handler{
		Deps:       deps,
		dashboards: cache.New(deps.DashboardTTL, 2*deps.DashboardTTL),
	}
}

// companyScope resolves which company a request acts on. Tokens carrying a
// company are pinned to it; the admin picks one with ?companyId=.
func companyScope(c echo.Context) (uint, bool) {
	if id, ok := middleware.CompanyID(c); ok {
		return id, true
	}
	if middleware.Role(c) != middleware.RoleAdmin {
		return 0, false
	}
	raw := c.QueryParam("companyId")
	if raw == "" {
		raw = c.QueryParam("company_id")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// listScope is companyScope for list endpoints, where the admin may omit the company
func listScope(c echo.Context) (uint, bool) {
	if id, ok := companyScope(c); ok {
		return id, true
	}
	return 0, middleware.Role(c) == middleware.RoleAdmin
}

// idParam reads the numeric id from the path, falling back to ?id=
func idParam(c echo.Context) (uint, error) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.QueryParam("id")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// storeError maps repository sentinels to responses
func storeError(c echo.Context, log *zap.Logger, err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": what + " not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": what + " already exists"})
	default:
		log.Error("Database operation failed", zap.String("resource", what), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

// lookupError is storeError for helpers that return before writing
func lookupError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail(http.StatusNotFound, what+" not found")
	case errors.Is(err, repository.ErrConflict):
		return fail(http.StatusConflict, what+" already exists")
	default:
		logger.FromContext(c).Error("Database operation failed", zap.String("resource", what), zap.Error(err))
		return fail(http.StatusInternalServerError, "database error")
	}
}

// remoteError reports a remote CRM failure with its detail message
func remoteError(c echo.Context, log *zap.Logger, err error, msg string) error {
	log.Error(msg, zap.Error(err))
	if errors.Is(err, twenty.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": msg, "details": twenty.Detail(err)})
	}
	details := twenty.Detail(err)
	if details == "" {
		details = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg, "details": details})
}
