package handler

import (
	"github.com/labstack/echo/v4"

	"spartan-crm/internal/middleware"
	"spartan-crm/prometheus"
)

// Register mounts the admin and dashboard API on e
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	auth := e.Group("/auth")
	auth.POST("/login", h.Login)

	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware(h.JWT))

	companies := api.Group("/companies", middleware.RequirePermission(middleware.PermManageCompanies))
	companies.GET("", h.ListCompanies)
	companies.GET("/:id", h.GetCompany)
	companies.POST("", h.CreateCompany)
	companies.PUT("", h.UpdateCompany)
	companies.PUT("/:id", h.UpdateCompany)
	companies.DELETE("", h.DeleteCompany)
	companies.DELETE("/:id", h.DeleteCompany)

	users := api.Group("/users", middleware.RequirePermission(middleware.PermManageUsers))
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.PUT("", h.UpdateUser)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("", h.DeleteUser)
	users.DELETE("/:id", h.DeleteUser)

	mobile := api.Group("/mobile-users", middleware.RequirePermission(middleware.PermManageMobileUsers))
	mobile.GET("", h.ListMobileUsers)
	mobile.POST("", h.RegisterMobileUser)
	mobile.POST("/register", h.RegisterMobileUser)
	mobile.PUT("", h.UpdateMobileUser)
	mobile.PUT("/:id", h.UpdateMobileUser)
	mobile.DELETE("", h.DeleteMobileUser)
	mobile.DELETE("/:id", h.DeleteMobileUser)

	read := middleware.RequirePermission(middleware.PermReadLeads)
	write := middleware.RequirePermission(middleware.PermWriteLeads)

	api.GET("/leads", h.ListLeads, read)
	api.GET("/leads/export", h.ExportLeads, read)
	api.GET("/leads/:id", h.ListLeads, read)
	api.POST("/leads", h.CreateLead, write)
	api.PATCH("/leads", h.UpdateLead, write)
	api.PATCH("/leads/:id", h.UpdateLead, write)
	api.DELETE("/leads", h.DeleteLead, write)
	api.DELETE("/leads/:id", h.DeleteLead, write)

	api.GET("/notes", h.ListNotes, read)
	api.POST("/notes", h.CreateNote, write)
	api.GET("/tasks", h.ListTasks, read)
	api.POST("/tasks", h.CreateTask, write)
	api.PATCH("/tasks/:id", h.UpdateTask, write)
	api.GET("/files", h.ListFiles, read)
	api.POST("/files", h.UploadFile, write)

	dash := api.Group("/dashboard/leads")
	dash.GET("", h.DashboardLeads, read)
	dash.POST("", h.CreateDashboardLead, write)
	dash.POST("/refresh", h.RefreshDashboard, read)
	dash.PUT("/:id", h.UpdateDashboardLead, write)
	dash.DELETE("/:id", h.DeleteDashboardLead, write)
}

// Register mounts the field agent's local API on e
func (f *FieldSync) Register(e *echo.Echo) {
	e.GET("/health", f.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	e.GET("/leads", f.ListLeads)
	e.POST("/leads", f.CreateLead)
	e.GET("/leads/:id", f.GetLead)
	e.PATCH("/leads/:id", f.UpdateLead)
	e.DELETE("/leads/:id", f.DeleteLead)

	e.POST("/sync/push", f.Push)
	e.POST("/sync/pull", f.Pull)
	e.GET("/sync/status", f.Status)
}
