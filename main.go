// api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"foodcost/api/analytics"
	"foodcost/api/config"
	"foodcost/api/database"
	"foodcost/api/handlers"
	"foodcost/api/logger"
	"foodcost/api/metrics"
	"foodcost/api/middleware"
	"foodcost/api/notify"
	"foodcost/api/objectstore"
	"foodcost/api/store"
	"foodcost/api/utils"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	logger.Initialize(cfg.Log.Level, cfg.Log.Pretty)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("No .env file loaded")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- PostgreSQL (leads, operators) ---
	dbClient, err := database.NewPostgresDB(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL database")
	}
	defer dbClient.Close()

	// --- ClickHouse (page views, events) ---
	chClient, err := database.NewClickHouseDB(cfg.ClickHouse)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ClickHouse database")
	}
	defer chClient.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsurePostgresSchema(schemaCtx, dbClient.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply PostgreSQL schema")
	}
	if err := database.EnsureClickHouseSchema(schemaCtx, chClient.Conn); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply ClickHouse schema")
	}
	cancelSchema()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid analytics timezone")
	}

	tokens, err := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.SessionTTL())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session tokens")
	}

	images, err := objectstore.NewS3Store(cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}

	leadAlerts := notify.NewTelegram(cfg.Telegram)

	metrics.Register(prometheus.DefaultRegisterer)

	// --- Stores ---
	userStore := store.NewUserStore(dbClient.DB)
	leadStore := store.NewLeadStore(dbClient.DB)
	analyticsStore := store.NewAnalyticsStore(chClient)

	collector := analytics.NewCollector(analyticsStore)
	reports := analytics.NewService(analyticsStore, analyticsStore, leadStore, analytics.ServiceConfig{
		RowLimit: cfg.Analytics.RowLimit,
		MaxDays:  cfg.Analytics.MaxDays,
		Location: loc,
	})

	// --- Handlers ---
	authHandlers := handlers.NewAuthHandlers(userStore, tokens, cfg.Auth.CookieSecure)
	analyticsHandlers := handlers.NewAnalyticsHandlers(collector, reports, cfg.Analytics.DefaultDays)
	leadHandlers := handlers.NewLeadHandlers(leadStore, leadAlerts)
	uploadHandlers := handlers.NewUploadHandlers(images)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.HealthCheck{Name: "postgres", Pinger: dbClient},
		handlers.HealthCheck{Name: "clickhouse", Pinger: chClient},
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	requireAdmin := middleware.AuthRequired(tokens)

	r := gin.New()
	r.MaxMultipartMemory = handlers.MaxUploadSize + 1<<20
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics())
	r.Use(middleware.CORSMiddleware(cfg.Server.FrontendOrigin))

	r.GET("/health", healthHandlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/login", authHandlers.Login)
		auth.POST("/logout", authHandlers.Logout)
		auth.GET("/check", requireAdmin, authHandlers.Check)

		api.POST("/analytics/track", limiter.Limit(), analyticsHandlers.TrackEvent)
		api.GET("/analytics", requireAdmin, analyticsHandlers.GetReport)

		api.POST("/leads", limiter.Limit(), leadHandlers.CreateLead)
		leads := api.Group("/leads", requireAdmin)
		leads.GET("", leadHandlers.ListLeads)
		leads.PUT("/:id", leadHandlers.UpdateLead)
		leads.DELETE("/:id", leadHandlers.DeleteLead)

		api.POST("/upload", requireAdmin, uploadHandlers.UploadImage)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	leadAlerts.Wait()

	log.Info().Msg("Server exiting")
}
