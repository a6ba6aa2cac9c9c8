package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rental_app_backend/internal/autosave"
	"rental_app_backend/internal/config"
	"rental_app_backend/internal/middleware"
	"rental_app_backend/internal/notifications"
	"rental_app_backend/internal/router"
	"rental_app_backend/internal/services"
	"rental_app_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Initialize Logger
	utils.InitLogger(cfg.App.LogLevel, cfg.App.IsDevelopment())

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := buildInfrastructure(ctx, cfg)
	if err != nil {
		return err
	}
	defer infra.Close()

	dispatcher := notifications.NewDispatcher(infra.Sender, notifications.DispatcherConfig{
		Workers:     cfg.Notifications.Workers,
		QueueSize:   cfg.Notifications.QueueSize,
		MaxAttempts: cfg.Notifications.MaxAttempts,
		RetryDelay:  cfg.Notifications.RetryDelay,
		SendTimeout: cfg.Notifications.SendTimeout,
	})
	dispatcher.Start(context.Background())

	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(utils.GinLogger())
	engine.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup all application routes
	debouncer := autosave.NewDebouncer(cfg.Autosave.QuietPeriod)
	streams, endStreams := context.WithCancel(context.Background())
	defer endStreams()
	svcs := router.Setup(engine, router.Dependencies{
		Applications:   infra.Applications,
		Admins:         infra.Admins,
		Drafts:         infra.Drafts,
		Blobs:          infra.Blobs,
		Broker:         infra.Broker,
		Notifier:       dispatcher,
		Geo:            infra.Geo,
		Tokens:         utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Debouncer:      debouncer,
		AdminAllowlist: cfg.Auth.AdminAllowlist,
		Dashboard: services.DashboardOptions{
			ApplicationFee:      cfg.Dashboard.ApplicationFee,
			PaymentMethods:      cfg.Dashboard.PaymentMethods,
			PaymentInstructions: cfg.Dashboard.PaymentInstructions,
			DocumentURLTTL:      cfg.Dashboard.DocumentURLTTL,
		},
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Streams:        streams,
	})

	if cfg.Auth.BootstrapEmail != "" && cfg.Auth.BootstrapPassword != "" {
		if _, err := svcs.Auth.EnsureAdmin(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword, ""); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	srv.RegisterOnShutdown(endStreams)

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Server.Port, "backend": cfg.App.Backend})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		utils.LogInfo("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err, "HTTP shutdown incomplete")
	}
	svcs.Drafts.FlushAll()
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		utils.LogError(err, "Notification queue not drained")
	}
	utils.LogInfo("Server stopped")
	return nil
}
