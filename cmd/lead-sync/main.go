package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"spartan-crm/internal/handler"
	mid "spartan-crm/internal/middleware"
	"spartan-crm/internal/offline"
	"spartan-crm/internal/repository"
	"spartan-crm/internal/syncer"
	"spartan-crm/internal/twenty"
	"spartan-crm/pkg/config"
	"spartan-crm/pkg/database"
	"spartan-crm/pkg/logger"
	"spartan-crm/pkg/secret"
	"spartan-crm/prometheus"
)

func main() {
	// Load configuration
	appConfig, err := config.Load("lead-sync")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting lead-sync",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Sync.Port),
		zap.String("store", appConfig.Sync.Store))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, appConfig)
	if err != nil {
		log.Fatal("Failed to open offline store", zap.Error(err))
	}
	defer closeStore()

	remoteCfg, err := remoteConfig(ctx, appConfig)
	if err != nil {
		log.Fatal("Failed to resolve remote CRM credentials", zap.Error(err))
	}
	remote := twenty.NewClient(remoteCfg, log)

	monitor := syncer.NewMonitor(remoteCfg.BaseURL, appConfig.Sync.ProbeInterval, remoteCfg.Timeout, log)
	go monitor.Run(ctx)

	engine := syncer.NewEngine(store, remote, monitor, syncer.Options{
		RemoteTimeout: appConfig.Sync.RemoteTimeout,
		Logger:        log,
	})
	controller := syncer.Start(ctx, engine, monitor, appConfig.Sync.Interval)

	fs := &handler.FieldSync{
		Store:   store,
		Engine:  engine,
		Service: appConfig.ServiceName,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())
	fs.Register(e)

	go func() {
		log.Info("Starting server", zap.String("port", appConfig.Sync.Port))
		if err := e.Start(":" + appConfig.Sync.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	controller.Stop()
}

func openStore(ctx context.Context, cfg *config.Config) (offline.Store, func(), error) {
	if cfg.Sync.Store == "memory" {
		zap.L().Warn("Using in-memory offline store, local changes are lost on restart")
		return offline.NewMemoryStore(), func() {}, nil
	}

	client := offline.NewRedisClient(&cfg.Redis)
	store := offline.NewRedisStore(client, "")
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}
	return store, func() { client.Close() }, nil
}

// remoteConfig uses the company's stored credentials when SYNC_COMPANY_ID is
// set, otherwise the TWENTY_* environment
func remoteConfig(ctx context.Context, cfg *config.Config) (twenty.Config, error) {
	rc := twenty.Config{
		BaseURL: cfg.Twenty.BaseURL,
		APIKey:  cfg.Twenty.APIKey,
		Timeout: cfg.Twenty.Timeout,
	}
	if cfg.Sync.CompanyID == 0 {
		if rc.APIKey == "" {
			return rc, errors.New("TWENTY_API_KEY is not set and no SYNC_COMPANY_ID given")
		}
		return rc, nil
	}

	key := cfg.EncryptionKey
	secret.SetKeySource(func() string { return key })

	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		return rc, err
	}
	defer database.Close()

	company, err := repository.NewCompanies(db).Get(ctx, cfg.Sync.CompanyID)
	if err != nil {
		return rc, fmt.Errorf("company %d: %w", cfg.Sync.CompanyID, err)
	}
	if company.TwentyAPIURL == "" || company.TwentyAPIKey == "" {
		return rc, fmt.Errorf("company %d has no CRM credentials configured", company.ID)
	}
	apiKey, err := secret.Decrypt(company.TwentyAPIKey)
	if err != nil {
		return rc, fmt.Errorf("decrypt company %d credentials: %w", company.ID, err)
	}
	rc.BaseURL, rc.APIKey = company.TwentyAPIURL, apiKey
	return rc, nil
}
