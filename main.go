package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/cache"
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/handler"
	"github.com/prepvault/storefront/internal/logging"
	"github.com/prepvault/storefront/internal/service"
	"github.com/prepvault/storefront/internal/storage"
	"go.uber.org/zap"
)

type eventCloser interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// @title Storefront API
// @version 1.0
// @description Digital study material storefront: catalog, checkout and protected delivery.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger depends on config
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Server, cfg.Log)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	dsn, err := db.BuildPostgresURL(cfg.Postgres)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx, dsn); err != nil {
		return err
	}

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	database := db.New(pool)
	defer database.Close()
	logger.Info("database connected")

	local, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		return err
	}
	var objects storage.Store
	if cfg.Storage.S3Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		objects = s3Store
		logger.Info("object storage enabled", zap.String("bucket", cfg.Storage.S3Bucket))
	} else {
		logger.Info("object storage disabled, using local uploads", zap.String("dir", local.Dir()))
	}
	blobs := storage.NewResolver(objects, local)

	var materialsCache cache.Cache = cache.NewMemory()
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("redis unavailable, using in-process cache", zap.Error(err))
		} else {
			defer redisCache.Close()
			materialsCache = redisCache
		}
	}

	var events eventCloser = client.NopPublisher{}
	if cfg.Events.AMQPURL != "" {
		events = client.NewAMQPPublisher(cfg.Events, logger)
	}
	defer events.Close()

	scanner := client.NewClamAVScanner(cfg.Scanner)
	if err := scanner.Ping(); err != nil {
		// uploads fail closed until the daemon is reachable
		logger.Warn("clamav not reachable", zap.String("address", cfg.Scanner.Address), zap.Error(err))
	}
	gateway := client.NewRazorpayClient(cfg.Razorpay)

	tokens, err := service.NewTokenService(database, cfg.Auth)
	if err != nil {
		return err
	}
	accounts := service.NewAuthService(database, tokens)
	admins := service.NewAdminService(database, cfg.Admin, cfg.Auth.JWTSecret, logger)
	verifier := service.NewPaymentVerifier(gateway, cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)
	purchases := service.NewPurchaseService(database, gateway, verifier, events, logger)
	catalog := service.NewCatalogService(database, materialsCache, cfg.Cache, logger)
	entitlements := service.NewEntitlementService(database)
	delivery := service.NewDeliveryService(database, entitlements, blobs)
	reviews := service.NewReviewService(database, entitlements, logger)
	uploads := service.NewUploadService(database, scanner, blobs, catalog, events, cfg.Storage.MaxUploadBytes, logger)
	cleanup := service.NewCleanupService(database, cfg.Server.CleanupInterval, logger)

	cookies := handler.NewCookieSettings(cfg.Auth, cfg.Server.IsProduction())
	authHandler := handler.NewAuthHandler(accounts, tokens, nil, cookies, cfg.Cache.SiteURL, logger)
	if cfg.OIDC.Enabled() {
		provider, err := client.NewOIDCProvider(ctx, cfg.OIDC)
		if err != nil {
			return err
		}
		authHandler = handler.NewAuthHandler(accounts, tokens, provider, cookies, cfg.Cache.SiteURL, logger)
		logger.Info("single sign-on enabled", zap.String("issuer", cfg.OIDC.IssuerURL))
	}

	stats := handler.NewRateLimitStats()
	router := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
	}, tokens, admins, handler.Handlers{
		Auth:      authHandler,
		Admin:     handler.NewAdminHandler(admins, uploads, cookies, logger),
		Materials: handler.NewMaterialHandler(catalog, delivery, logger),
		Cart:      handler.NewCartHandler(catalog),
		Payment:   handler.NewPaymentHandler(purchases, logger),
		Reviews:   handler.NewReviewHandler(reviews),
		Health:    handler.NewHealthHandler(database, stats, logger),
	}, stats, logger)

	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()
	go cleanup.Run(cleanupCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	cleanupCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
