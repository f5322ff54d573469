package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"spartan-crm/internal/handler"
	mid "spartan-crm/internal/middleware"
	"spartan-crm/internal/repository"
	"spartan-crm/pkg/config"
	"spartan-crm/pkg/database"
	"spartan-crm/pkg/jwtutil"
	"spartan-crm/pkg/logger"
	"spartan-crm/pkg/secret"
	"spartan-crm/prometheus"
)

func main() {
	// Load configuration
	appConfig, err := config.Load("crm-api")
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting crm-api", appConfig.LogConfig()...)

	if appConfig.EncryptionKey == "" {
		log.Warn("ENCRYPTION_KEY is not set, tenant CRM credentials cannot be stored or used")
	}
	key := appConfig.EncryptionKey
	secret.SetKeySource(func() string { return key })

	if appConfig.Admin.Password == "" {
		log.Warn("ADMIN_PASSWORD is not set, demo admin login is disabled")
	}

	// Initialize database
	db, err := database.InitDB(&appConfig.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()
	log.Info("Database connection established")

	h := handler.New(handler.Deps{
		Companies:     repository.NewCompanies(db),
		Users:         repository.NewUsers(db),
		MobileUsers:   repository.NewMobileUsers(db),
		Leads:         repository.NewLeads(db),
		JWT:           jwtutil.NewJWTUtil(&appConfig.JWT),
		Admin:         appConfig.Admin,
		RemoteTimeout: appConfig.Twenty.Timeout,
		DashboardTTL:  appConfig.DashboardCacheTTL,
		ServiceName:   appConfig.ServiceName,
	})

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	h.Register(e)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server
	port := appConfig.Server.Port
	go func() {
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
