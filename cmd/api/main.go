package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realestate/internal/cache"
	"realestate/internal/config"
	"realestate/internal/database"
	"realestate/internal/gateway"
	"realestate/internal/httpapi"
	"realestate/internal/jobs"
	"realestate/internal/services"
	"realestate/internal/storage"
	"realestate/internal/util"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
)

func main() {
	log.SetPrefix("[API] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Starting %s v%s", cfg.App.Name, cfg.App.Version)
	log.Printf("Environment: debug=%v, port=%s, host=%s", cfg.App.Debug, cfg.App.Port, cfg.App.Host)

	log.Println("Initializing database connection...")
	if err := database.Init(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		log.Println("Closing database connections...")
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	db := database.GetDB()
	if err := database.RegisterMetrics(db); err != nil {
		log.Printf("Warning: query metrics disabled: %v", err)
	}

	log.Printf("Opening settings cache at %s...", cfg.Settings.CacheDir)
	settingsCache, err := cache.Open(cfg.Settings.CacheDir)
	if err != nil {
		log.Fatalf("Failed to open settings cache: %v", err)
	}
	defer func() {
		if err := settingsCache.Close(); err != nil {
			log.Printf("Error closing settings cache: %v", err)
		}
	}()

	log.Println("Initializing services...")
	tasks := services.NewTasks()
	settingsSvc := services.NewSettingsService(db, settingsCache, cfg.Gateway)
	templateSvc := services.NewTemplateService(db)
	analyticsSvc := services.NewAnalyticsService(db, settingsSvc)
	webhookSvc := services.NewWebhookService(db, cfg.Webhooks)
	emailSvc := services.NewEmailService(&cfg.Email)
	notifier := services.NewLeadNotifier(settingsSvc, templateSvc, gateway.NewClient(cfg.Gateway.Timeout))
	effects := services.NewLeadSideEffects(notifier, analyticsSvc, emailSvc, settingsSvc, webhookSvc)
	leadSvc := services.NewLeadService(db, effects, webhookSvc, tasks)
	images := storage.NewSupabaseStorage(cfg.Storage.URL, cfg.Storage.ServiceRoleKey, cfg.Storage.Bucket)
	if !images.Configured() {
		log.Println("Warning: object storage not configured, image uploads are disabled")
	}
	limiter := util.NewRateLimiter(cfg.App.SubmissionsPerMinute, time.Minute)

	if _, err := settingsSvc.Get(context.Background()); err != nil {
		log.Printf("Warning: settings not loaded at startup: %v", err)
	}

	server := httpapi.New(httpapi.Deps{
		Config:     cfg,
		Leads:      leadSvc,
		Calculator: services.NewCalculatorService(leadSvc, analyticsSvc, webhookSvc, tasks),
		Properties: services.NewPropertyService(db, images, analyticsSvc, webhookSvc, tasks),
		Settings:   settingsSvc,
		Notifier:   notifier,
		Analytics:  analyticsSvc,
		Templates:  templateSvc,
		Webhooks:   webhookSvc,
		Inbound:    services.NewInboundService(db, gateway.PlaceholderResolver{}),
		Auth:       services.NewAuthService(db, cfg.Auth),
		Health:     services.NewHealthService(db, cfg.App.Name, cfg.App.Version),
		Limiter:    limiter,
	})

	scheduler, err := jobs.New(jobs.Options{
		SettingsSpec: cfg.Settings.RefreshCron,
		Settings:     settingsSvc,
		DB:           db,
		Limiter:      limiter,
	})
	if err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}
	scheduler.Start()

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ErrorLog:     log.New(os.Stderr, "[HTTP] ", log.LstdFlags),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server failed to start: %v", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v. Starting graceful shutdown...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Error during graceful shutdown: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Println("Shutdown timeout exceeded, forcing close...")
			_ = httpServer.Close()
		}
	}

	scheduler.Stop()

	// Lead notifications and fan-outs already started must finish before the database closes
	done := make(chan struct{})
	go func() {
		tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Println("Background tasks did not finish before the shutdown deadline")
	}

	log.Println("Server shutdown complete")
}

// validateConfig validates critical configuration values
func validateConfig(cfg *config.Config) error {
	if cfg.Auth.SecretKey == "" || cfg.Auth.SecretKey == "your-secret-key-change-in-production" {
		return fmt.Errorf("SECRET_KEY must be set and changed from default value")
	}
	if len(cfg.Auth.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 characters for security")
	}
	if cfg.App.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	return nil
}
