package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karuppusamybecse-eng/CleanMaduraiAi/mailer"
)

const (
	maxUploadBytes             = 10 * 1024 * 1024
	submitRateLimit            = 8
	magicLinkRateLimit         = 5
	adminLoginRateLimit        = 10
	submitRateLimitWindow      = 5 * time.Minute
	rateLimiterCleanupInterval = time.Minute
	userCookieName             = "cleanmadurai_user_session"
	userSessionDuration        = 180 * 24 * time.Hour
	adminCookieName            = "cleanmadurai_admin_session"
	adminSessionDuration       = 8 * time.Hour
	magicLinkTokenExpiry       = 15 * time.Minute
	geocodeTimeout             = 10 * time.Second
	statusPending              = "Pending"
	statusResolved             = "Resolved"
	locationDeniedMessage      = "Location access denied. Please add notes."
	locationUnsupportedMessage = "Geolocation not supported."
	defaultMockPlaceName       = "Goripalayam, Madurai (approx)"
	devCORSOriginLocalhost     = "http://localhost:5173"
	devCORSOriginLoopback      = "http://127.0.0.1:5173"
	trustedProxyLoopbackIPv4   = "127.0.0.1"
	trustedProxyLoopbackIPv6   = "::1"
)

var wasteCategories = []string{"Plastic", "Organic", "Metal", "E-waste", "Mixed Waste"}

type Config struct {
	Addr                string
	Env                 string
	DataRoot            string
	PublicBaseURL       string
	AppSigningSecret    string
	StoreBackend        string
	MongoURI            string
	MongoDatabase       string
	DatabaseURL         string
	GeocoderProvider    string
	MockPlaceName       string
	GeocodeDelay        time.Duration
	ClassifierDelay     time.Duration
	ResendAPIKey        string
	MailerFromAddresses map[string]string
	AdminEmail          string
	AdminPasswordHash   string
}

type App struct {
	cfg *Config
	log *slog.Logger

	store      ReportStore
	geocoder   Geocoder
	classifier Classifier
	mailer     *mailer.Mailer
	drafts     *draftTable
	magicLinks *magicLinkTable

	submitMu        sync.Mutex
	submitsInFlight map[string]bool

	rateLimiterMu sync.Mutex
	rateBuckets   map[string]rateBucket
}

func main() {
	if err := loadDotEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()

	store, backend, err := buildReportStore(ctx, cfg, logger)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error("failed to close report store", "err", err)
		}
	}()
	logger.Info("report store initialized", "backend", backend)

	app := &App{
		cfg:             cfg,
		log:             logger,
		store:           store,
		geocoder:        buildGeocoder(cfg),
		classifier:      newStubClassifier(cfg.ClassifierDelay),
		drafts:          newDraftTable(),
		magicLinks:      newMagicLinkTable(),
		submitsInFlight: make(map[string]bool),
		rateBuckets:     make(map[string]rateBucket),
	}

	var mailProvider mailer.Provider
	if cfg.ResendAPIKey != "" {
		mailProvider = mailer.NewResendProvider(cfg.ResendAPIKey)
		logger.Info("mailer initialized", "provider", "resend")
	} else {
		mailProvider = mailer.NewLogProvider(logger)
		logger.Info("mailer initialized", "provider", "log")
	}
	app.mailer = mailer.New(mailProvider, cfg.MailerFromAddresses[mailProvider.Name()])

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	app.startRateLimiterCleanup(cleanupCtx, rateLimiterCleanupInterval)

	logger.Info("runtime configuration", "env", cfg.Env, "addr", cfg.Addr, "geocoder", cfg.GeocoderProvider)

	mediaDir := ""
	if backend != "local" {
		mediaDir = uploadsDir(cfg.DataRoot)
		if err := os.MkdirAll(mediaDir, 0o755); err != nil {
			panic(err)
		}
	}

	r := app.buildRouter(mediaDir)

	app.log.Info("starting gin API", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		panic(err)
	}
}

// buildRouter wires middleware and routes. mediaDir is served under
// /media when non-empty; the local store inlines images and needs no
// media route.
func (a *App) buildRouter(mediaDir string) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		panic(err)
	}
	r.Use(gin.Recovery())
	r.Use(a.loggingMiddleware())
	r.Use(a.corsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if mediaDir != "" {
		r.Static("/media", mediaDir)
	}

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/request-magic-link", a.requestMagicLinkHandler)
			auth.GET("/verify", a.verifyMagicLinkHandler)
			auth.POST("/logout", a.userLogoutHandler)
			auth.GET("/session", a.userSessionHandler)
		}

		draft := api.Group("/draft")
		draft.Use(a.requireUserSession())
		{
			draft.GET("", a.draftStateHandler)
			draft.POST("/image", a.draftImageHandler)
			draft.PUT("/category", a.draftCategoryHandler)
			draft.PUT("/location", a.draftLocationHandler)
			draft.DELETE("", a.draftResetHandler)
		}

		api.POST("/reports", a.requireUserSession(), a.submitReportHandler)

		adminAuth := api.Group("/admin/auth")
		{
			adminAuth.POST("/login", a.adminLoginHandler)
			adminAuth.POST("/logout", a.adminLogoutHandler)
		}

		admin := api.Group("/admin")
		admin.Use(a.requireAdminSession())
		{
			admin.GET("/reports", a.adminReportsHandler)
			admin.POST("/reports/:id/resolve", a.adminResolveHandler)
			admin.GET("/reports/export", a.adminExportHandler)
		}
	}

	return r
}

// buildReportStore selects the persistence backend. An explicit
// STORE_BACKEND wins; otherwise the presence of a connection string
// picks the remote store, and a plain local JSON store is the fallback
// so the app still works with zero configuration.
func buildReportStore(ctx context.Context, cfg *Config, logger *slog.Logger) (ReportStore, string, error) {
	backend := cfg.StoreBackend
	if backend == "" {
		switch {
		case cfg.MongoURI != "":
			backend = "mongo"
		case cfg.DatabaseURL != "":
			backend = "postgres"
		default:
			backend = "local"
		}
	}

	switch backend {
	case "mongo":
		docs, err := newMongoDocumentStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, "", fmt.Errorf("mongo document store: %w", err)
		}
		objects, err := newDiskObjectStorage(uploadsDir(cfg.DataRoot), cfg.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return newRemoteReportStore(docs, objects, logger), backend, nil
	case "postgres":
		docs, err := newPostgresDocumentStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("postgres document store: %w", err)
		}
		objects, err := newDiskObjectStorage(uploadsDir(cfg.DataRoot), cfg.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return newRemoteReportStore(docs, objects, logger), backend, nil
	case "local":
		store, err := newLocalReportStore(cfg.DataRoot)
		if err != nil {
			return nil, "", err
		}
		return store, backend, nil
	default:
		return nil, "", fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

func buildGeocoder(cfg *Config) Geocoder {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	static := &staticGeocoder{place: cfg.MockPlaceName, delay: cfg.GeocodeDelay}
	nominatim := &NominatimGeocoder{UserAgent: "CleanMaduraiAI-API/1.0", Client: httpClient}

	switch cfg.GeocoderProvider {
	case "nominatim":
		return nominatim
	case "fallback":
		return &FallbackGeocoder{Primary: nominatim, Secondary: static}
	default:
		return static
	}
}

func loadConfig() (*Config, error) {
	secret := strings.TrimSpace(os.Getenv("APP_SIGNING_SECRET"))
	if len(secret) < 16 {
		return nil, fmt.Errorf("APP_SIGNING_SECRET must be at least 16 characters")
	}

	publicBase := strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))
	if publicBase == "" {
		publicBase = "http://localhost:8080"
	}
	publicBase = strings.TrimRight(publicBase, "/")

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	storeBackend := strings.TrimSpace(os.Getenv("STORE_BACKEND"))
	if storeBackend != "" && storeBackend != "mongo" && storeBackend != "postgres" && storeBackend != "local" {
		return nil, fmt.Errorf("STORE_BACKEND must be one of mongo, postgres, local")
	}

	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPasswordHash := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))
	if adminEmail == "" || adminPasswordHash == "" {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD_HASH must be configured")
	}

	cfg := &Config{
		Addr:              valueOrDefault("GIN_ADDR", ":8080"),
		Env:               env,
		DataRoot:          valueOrDefault("DATA_ROOT", "/var/lib/cleanmadurai"),
		PublicBaseURL:     publicBase,
		AppSigningSecret:  secret,
		StoreBackend:      storeBackend,
		MongoURI:          valueFromEnvKeys("MONGO_URI", "MONGODB_URI"),
		MongoDatabase:     valueOrDefault("MONGO_DATABASE", "cleanmadurai"),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		GeocoderProvider:  strings.TrimSpace(os.Getenv("GEOCODER_PROVIDER")),
		MockPlaceName:     valueOrDefault("MOCK_PLACE_NAME", defaultMockPlaceName),
		GeocodeDelay:      1500 * time.Millisecond,
		ClassifierDelay:   2 * time.Second,
		ResendAPIKey:      strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		AdminEmail:        adminEmail,
		AdminPasswordHash: adminPasswordHash,
		MailerFromAddresses: map[string]string{
			"resend": valueOrDefault("MAILER_FROM_ADDRESS_RESEND", "noreply@mail.cleanmadurai.org"),
			"log":    valueOrDefault("MAILER_FROM_ADDRESS_LOG", "noreply@cleanmadurai.local"),
		},
	}

	if raw := strings.TrimSpace(os.Getenv("GEOCODE_DELAY_MS")); raw != "" {
		parsed, err := time.ParseDuration(raw + "ms")
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("GEOCODE_DELAY_MS must be a non-negative number of milliseconds")
		}
		cfg.GeocodeDelay = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("CLASSIFIER_DELAY_MS")); raw != "" {
		parsed, err := time.ParseDuration(raw + "ms")
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("CLASSIFIER_DELAY_MS must be a non-negative number of milliseconds")
		}
		cfg.ClassifierDelay = parsed
	}

	return cfg, nil
}

func loadDotEnvFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), "\"")
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func valueFromEnvKeys(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" {
			return value
		}
	}
	return ""
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func (a *App) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if a.isAllowedCORSOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *App) isAllowedCORSOrigin(origin string) bool {
	if origin == "" || a.cfg == nil {
		return false
	}
	if a.cfg.PublicBaseURL != "" && origin == a.cfg.PublicBaseURL {
		return true
	}
	if !strings.EqualFold(a.cfg.Env, "development") {
		return false
	}
	return origin == devCORSOriginLocalhost || origin == devCORSOriginLoopback
}
