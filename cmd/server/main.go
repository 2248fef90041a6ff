package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"carhire/internal/config"
	handlers "carhire/internal/handlers/shared"
	"carhire/internal/middleware"
	"carhire/internal/repositories/documents"
	"carhire/internal/services"
	"carhire/pkg/logger"
	"carhire/pkg/websocket"
	"carhire/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  "stdout",
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	audit := logger.NewAuditLoggerFrom(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var nrApp *newrelic.Application
	if cfg.Monitoring.NewRelicEnabled && cfg.Monitoring.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.Monitoring.NewRelicAppName),
			newrelic.ConfigLicense(cfg.Monitoring.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
		)
		if err != nil {
			appLogger.WithError(err).Warn("Failed to initialize New Relic")
		}
	}

	store, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open document store")
	}
	defer store.Close()

	cacheStore := newCache(cfg, appLogger)
	publisher := newPublisher(cfg, appLogger)
	defer publisher.Close()

	// Repositories
	userRepo := documents.NewUserRepository(store)
	tripRepo := documents.NewTripRepository(store)
	chatRepo := documents.NewChatRepository(store)
	codeRepo := documents.NewReferralCodeRepository(store)
	tokenRepo := documents.NewTrackingTokenRepository(store)

	// Realtime
	hub := websocket.NewHub(appLogger)
	wsHandler := websocket.NewHandler(hub, websocket.Options{
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		SendBufferSize:    cfg.WebSocket.SendBufferSize,
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout,
		WriteTimeout:      cfg.WebSocket.WriteTimeout,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		PingInterval:      cfg.WebSocket.PingInterval,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		EnableCompression: cfg.WebSocket.EnableCompression,
		AllowedOrigins:    cfg.WebSocket.AllowedOrigins,
	}, appLogger)

	// Services
	notifications := services.NewNotificationService(userRepo, newPushRouter(ctx, cfg, appLogger), hub, appLogger)
	sharingState := services.NewSharingStateStore(cacheStore, cfg.Location.ResumeStateTTL)
	location := services.NewLocationService(cfg, userRepo, tripRepo, newGeocoder(cfg, cacheStore, appLogger), sharingState, appLogger)
	tracker := services.NewTripTracker(tripRepo, userRepo, appLogger)
	trips := services.NewTripService(store, tripRepo, userRepo, location, publisher, appLogger)
	chats := services.NewChatService(cfg, store, chatRepo, userRepo, notifications, hub, publisher, appLogger)
	referrals := services.NewReferralService(cfg, store, userRepo, codeRepo, notifications, publisher, audit, appLogger)
	vip := services.NewVIPService(cfg, store, newPaymentProvider(cfg, appLogger), publisher, audit, appLogger)
	users := services.NewUserService(userRepo, referrals, appLogger)
	contacts := services.NewContactService(cfg, userRepo, cacheStore, newSMSProvider(ctx, cfg, appLogger), appLogger)
	links := services.NewTrackingLinkService(cfg, tokenRepo, userRepo, appLogger)

	go hub.Run(ctx)
	go chats.Run(ctx)

	// Router
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		appLogger.WithError(err).Warn("Invalid trusted proxies")
	}
	if nrApp != nil {
		router.Use(nrgin.Middleware(nrApp))
	}
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.LoggingMiddleware(appLogger))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	v1 := router.Group("/api/v1")
	routes.Setup(v1, routes.Handlers{
		Profile:  handlers.NewProfileHandler(users, contacts, referrals, cfg.App.BaseURL, appLogger),
		Trips:    handlers.NewTripHandler(trips, location, appLogger),
		Chats:    handlers.NewChatHandler(chats, appLogger),
		VIP:      handlers.NewVIPHandler(vip, appLogger),
		Tracking: handlers.NewTrackingHandler(links, wsHandler, appLogger),
		Realtime: handlers.NewRealtimeHandler(location, tracker, chats, appLogger),
		Socket:   wsHandler,
	}, cfg.Security.JWTSecret, appLogger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		})
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Infof("Starting server on port %d", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Server error")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	appLogger.Info("Server exited")
}
