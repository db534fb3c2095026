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

	"github.com/SherClockHolmes/webpush-go"

	"door-access-backend/config"
	"door-access-backend/internal/api"
	"door-access-backend/internal/clock"
	"door-access-backend/internal/db"
	"door-access-backend/internal/emergency"
	"door-access-backend/internal/engine"
	"door-access-backend/internal/notify"
	"door-access-backend/internal/relay"
	"door-access-backend/internal/schedule"
	"door-access-backend/internal/store"
	"door-access-backend/internal/tempcode"
)

func main() {
	logger := log.New(os.Stdout, "accessd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	sysClock, err := clock.NewSystemClock(cfg.Engine.Timezone)
	if err != nil {
		logger.Fatalf("failed to initialize clock: %v", err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	emergencySvc := emergency.NewService(appStore, sysClock)
	resolver := schedule.NewResolver(appStore, sysClock)
	tempCodes := tempcode.NewService(appStore, sysClock)

	dispatcher := relay.NewDispatcher(cfg.WorkerPool.Size, cfg.Engine.RelayPulseTimeout)
	dispatcher.Start(ctx)

	authEngine := engine.New(appStore, sysClock, emergencySvc, resolver, tempCodes, dispatcher)

	// Operator push alerts are optional; without VAPID keys the service
	// runs with alerts disabled.
	var notifyPool *notify.WorkerPool
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		notifyPool = notify.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		notifyPool.Start(ctx)
		logger.Println("operator push alerts enabled")
	} else {
		logger.Println("VAPID keys not configured, operator push alerts disabled")
	}

	handler := api.NewHandler(appStore, sysClock, authEngine, emergencySvc, resolver, tempCodes, notifyPool, webpushOptions, &cfg.Engine)
	router := api.NewRouter(handler, cfg.Server.RateLimitPerSec, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
