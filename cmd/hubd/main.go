package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/auditlog"
	"github.com/techastra/studyhub/internal/authz"
	"github.com/techastra/studyhub/internal/catalog"
	"github.com/techastra/studyhub/internal/docstore"
	"github.com/techastra/studyhub/internal/hub/handler"
	"github.com/techastra/studyhub/internal/identity"
	"github.com/techastra/studyhub/internal/profile"
	"github.com/techastra/studyhub/internal/stats"
	"github.com/techastra/studyhub/internal/workspace"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("hub exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("hub")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("hub.port", 8080)
	viper.SetDefault("hub.frontend_url", "http://localhost:3000")
	viper.SetDefault("hub.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("hub.rate_limit_rps", 20)
	viper.SetDefault("hub.session_secret", "")
	viper.SetDefault("hub.session_ttl", "24h")
	viper.SetDefault("hub.issuer_url", "")
	viper.SetDefault("hub.admin_emails", []string{})
	viper.SetDefault("database.url", "")
	viper.SetDefault("oauth.google.client_id", "")
	viper.SetDefault("oauth.google.client_secret", "")
	viper.SetDefault("oauth.google.redirect_url", "")
	viper.SetDefault("firebase.credentials_json", "")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Document store ───────────────────────────────────────────────────────
	var db docstore.Store
	dbURL := viper.GetString("database.url")
	if dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		pg, err := docstore.NewPostgres(context.Background(), pool, logger)
		if err != nil {
			return fmt.Errorf("init document store: %w", err)
		}
		db = pg
		logger.Info("document store: postgres")
	} else {
		db = docstore.NewMemory()
		logger.Warn("document store: in-memory (set DATABASE_URL for persistence)")
	}
	defer db.Close()

	// ── Sessions and sign-in providers ───────────────────────────────────────
	secret := viper.GetString("hub.session_secret")
	if secret == "" {
		return fmt.Errorf("hub.session_secret is required (set HUB_SESSION_SECRET)")
	}
	httpPort := viper.GetInt("hub.port")
	issuerURL := viper.GetString("hub.issuer_url")
	if issuerURL == "" {
		issuerURL = fmt.Sprintf("http://localhost:%d", httpPort)
	}
	sessionTTL, _ := time.ParseDuration(viper.GetString("hub.session_ttl"))
	tokens := identity.NewTokenIssuer([]byte(secret), issuerURL, sessionTTL)

	session := identity.NewSession(db, nil, logger)

	var google *identity.GoogleOAuth
	if id := viper.GetString("oauth.google.client_id"); id != "" {
		redirect := viper.GetString("oauth.google.redirect_url")
		if redirect == "" {
			redirect = fmt.Sprintf("%s/api/v1/auth/google/callback", issuerURL)
		}
		google = identity.NewGoogleOAuth(id, viper.GetString("oauth.google.client_secret"), redirect)
		logger.Info("google sign-in configured")
	}

	var firebase *identity.FirebaseVerifier
	if creds := viper.GetString("firebase.credentials_json"); creds != "" {
		v, err := identity.NewFirebaseVerifier(context.Background(), []byte(creds))
		if err != nil {
			return fmt.Errorf("init firebase verifier: %w", err)
		}
		firebase = v
		logger.Info("firebase token exchange configured")
	}
	if google == nil && firebase == nil {
		logger.Warn("no sign-in provider configured; only existing tokens will work")
	}

	policy := authz.NewPolicy(viper.GetStringSlice("hub.admin_emails"))
	logger.Info("admin policy loaded", zap.Int("admins", policy.Len()))

	// ── Domain services ──────────────────────────────────────────────────────
	profiles := profile.NewManager(db)
	registry := workspace.NewRegistry(db, logger)
	defer registry.Close()
	cat := catalog.New(db, logger)
	audit := auditlog.NewRecorder(db, logger)

	agg := stats.NewAggregator(db, logger)
	if err := agg.Start(context.Background()); err != nil {
		return fmt.Errorf("start stats aggregator: %w", err)
	}
	defer agg.Stop()
	stopTotals := agg.Watch(func(t stats.Totals) {
		handler.ObserveTotals(t.TotalViews, t.TotalResources, t.TotalVerifiedUsers)
	})
	defer stopTotals()

	// ── Handlers ─────────────────────────────────────────────────────────────
	var fbVerifier interface {
		Verify(ctx context.Context, idToken string) (*identity.ProviderUser, error)
	}
	if firebase != nil {
		fbVerifier = firebase
	}
	authHandler := handler.NewAuthHandler(session, google, fbVerifier, tokens, policy, profiles, logger)
	authHandler.SetFrontendURL(viper.GetString("hub.frontend_url"))
	wsHandler := handler.NewWorkspaceHandler(registry, tokens, logger)
	catHandler := handler.NewCatalogHandler(cat, audit, tokens, logger)
	statsHandler := handler.NewStatsHandler(agg, audit, tokens, logger)
	adminHandler := handler.NewAdminHandler(db, audit, tokens, logger)
	eventsHandler := handler.NewEventsHandler(registry, cat, agg, tokens, logger)

	// ── HTTP router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("hub.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if rps := viper.GetInt("hub.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	authHandler.Register(v1)
	wsHandler.Register(v1)
	catHandler.Register(v1)
	statsHandler.Register(v1)
	adminHandler.Register(v1)
	eventsHandler.Register(v1)

	// ── Serve ────────────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("hub HTTP listening", zap.Int("port", httpPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down hub...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("hub stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
