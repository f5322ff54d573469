package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/model"
)

func seedRemote(env *testEnv) {
	day := func(d, h int) time.Time { return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC) }
	env.remote.leads = []domain.Lead{
		{ID: "r1", Name: "Sarah Smith", Status: domain.StatusNew, Source: domain.SourceReferral, SalesRep: "John Smith", CreatedAt: day(9, 12)},
		{ID: "r2", Name: "Tom Jones", Status: domain.StatusNew, City: "Smithville", SalesRep: "Maria Lopez", CreatedAt: day(10, 23)},
		{ID: "r3", Name: "Ann Smith", Status: domain.StatusWon, SalesRep: "John Smith", CreatedAt: day(11, 8)},
	}
}

func ids(t *testing.T, v any) []string {
	t.Helper()
	var out []string
	for _, item := range v.([]any) {
		out = append(out, item.(map[string]any)["id"].(string))
	}
	return out
}

func TestDashboardLeads(t *testing.T) {
	env := newEnv(t)
	seedRemote(env)
	owner := env.token(t, model.UserRoleOwner, 1)

	t.Run("status and search filters", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/dashboard/leads?status=new&search=smith", nil, owner)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, []string{"r1", "r2"}, ids(t, body["data"]))
		assert.Equal(t, float64(3), body["total"])
	})

	t.Run("view is cached between requests", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/dashboard/leads", nil, owner)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, env.remote.listCalls)
	})

	t.Run("bare to date covers the whole day", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/dashboard/leads?from=2026-03-10&to=2026-03-10", nil, owner)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"r2"}, ids(t, decode(t, rec)["data"]))
	})

	t.Run("assigned to", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/dashboard/leads?assignedTo=John%20Smith", nil, owner)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"r1", "r3"}, ids(t, decode(t, rec)["data"]))
	})

	t.Run("invalid filter", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/dashboard/leads?status=pending", nil, owner)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/dashboard/leads?from=yesterday", nil, owner)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDashboardMutationsReload(t *testing.T) {
	env := newEnv(t)
	seedRemote(env)
	owner := env.token(t, model.UserRoleOwner, 1)

	rec := env.do(t, http.MethodGet, "/api/dashboard/leads", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/dashboard/leads", echo.Map{"name": "New Roof", "estimatedValue": 15}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, env.remote.listCalls)

	rec = env.do(t, http.MethodPut, "/api/dashboard/leads/r2", echo.Map{"status": "contacted"}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "contacted", decode(t, rec)["data"].(map[string]any)["status"])
	assert.Equal(t, 3, env.remote.listCalls)

	rec = env.do(t, http.MethodPut, "/api/dashboard/leads/r2", echo.Map{"estimatedValue": -500, "source": "bogus"}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 3, env.remote.listCalls)

	rec = env.do(t, http.MethodPut, "/api/dashboard/leads/missing", echo.Map{"status": "contacted"}, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/dashboard/leads/missing", nil, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/dashboard/leads/r1", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/dashboard/leads", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decode(t, rec)["total"])

	rec = env.do(t, http.MethodPost, "/api/dashboard/leads/refresh", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardScopedBySalesRep(t *testing.T) {
	env := newEnv(t)
	seedRemote(env)
	owner := env.token(t, model.UserRoleOwner, 1)

	rec := env.do(t, http.MethodGet, "/api/dashboard/leads?salesRep=maria%20lopez", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"r2"}, ids(t, decode(t, rec)["data"]))

	// a company change evicts every cached view of it
	rec = env.do(t, http.MethodPut, "/api/companies/1", echo.Map{"city": "Austin"}, env.token(t, "admin", 0))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.h.dashboards.Items())
}
