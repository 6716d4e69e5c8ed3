package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/handler"
	"github.com/aryan0dhankhar/productcatalog/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/productcatalog/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/productcatalog/internal/infrastructure/s3"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/metrics"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/tracing"
	"github.com/aryan0dhankhar/productcatalog/internal/realtime"
	"github.com/aryan0dhankhar/productcatalog/internal/repository"
	"github.com/aryan0dhankhar/productcatalog/internal/security/audit"
	"github.com/aryan0dhankhar/productcatalog/internal/security/auth"
	"github.com/aryan0dhankhar/productcatalog/internal/security/middleware"
	"github.com/aryan0dhankhar/productcatalog/internal/security/ratelimit"
	"github.com/aryan0dhankhar/productcatalog/internal/service"
	"github.com/aryan0dhankhar/productcatalog/internal/worker"
	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
	"github.com/aryan0dhankhar/productcatalog/pkg/config"
	"github.com/aryan0dhankhar/productcatalog/pkg/database"
)

const serviceName = "productcatalog"

type limiter interface {
	Allow(key string) bool
	AllowStrict(identifier string, maxReqs int, window time.Duration) bool
	Stop()
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting product catalog server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Entity store
	checks := map[string]handler.Pinger{}
	var (
		productRepo domain.ProductRepository
		userRepo    domain.UserRepository
	)
	if cfg.StoreDriver == config.StoreMemory {
		productRepo = repository.NewMemoryProductRepository()
		userRepo = repository.NewMemoryUserRepository()
		checks["store"] = handler.PingFunc(func(context.Context) error { return nil })
		log.Warn("using in-memory store, data is lost on restart")
	} else {
		pool, err := database.NewConnectionPool(ctx, cfg.Database(), log)
		if err != nil {
			log.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		dialect := repository.Dialect(pool.Driver())
		productRepo = repository.NewSQLProductRepository(pool.GetDB(), dialect, log)
		userRepo = repository.NewSQLUserRepository(pool.GetDB(), dialect, log)
		checks["store"] = handler.PingFunc(pool.Health)
	}

	// 5. Optional Redis: shared tag versions, rate limits and invalidation relay
	var (
		versions cache.VersionStore
		relay    realtime.Relay
		rl       limiter
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		versions = cache.NewRedisVersionStore(redisClient.Raw(), "")
		relay = redisClient
		rl = ratelimit.NewRedisLimiter(redisClient.Raw(), cfg.APIRateLimit, time.Minute, log)
		checks["redis"] = redisClient
	} else {
		rl = ratelimit.NewLimiter(cfg.APIRateLimit, time.Minute)
		checks["redis"] = nil
	}
	defer rl.Stop()

	// 6. Invalidation feed
	hub := realtime.NewHub(relay, log)
	if err := hub.Start(ctx); err != nil {
		log.Error("failed to start invalidation relay", slog.String("error", err.Error()))
		os.Exit(1)
	}
	queryCache := cache.New(versions, 10*time.Minute, cache.WithLogger(log))
	queryCache.OnInvalidate(hub.Publish)
	queryCache.OnInvalidateFailure(func(context.Context, []cache.Tag, error) {
		metrics.ObserveInvalidationFailure()
	})

	// 7. Blob store
	var blobs service.BlobStore
	if cfg.S3Bucket != "" {
		store, err := s3.NewBlobStore(ctx, s3.Config{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
		}, log)
		if err != nil {
			log.Error("failed to initialize blob store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		blobs = store
	} else {
		log.Warn("S3_BUCKET_NAME not set, image uploads are disabled")
	}

	// 8. Services
	auditLogger := audit.NewLogger(log)
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry)
	productService := service.NewProductService(productRepo, nil, queryCache, log)
	userService := service.NewUserService(userRepo, auth.NewPasswordHasher(auth.DefaultCost), nil, queryCache, log)
	authService := service.NewAuthService(userService, tokenManager, auditLogger, log)
	uploadService := service.NewUploadService(blobs, cfg.UploadMaxBytes, log)

	if err := bootstrapAdmin(ctx, userService, cfg, log); err != nil {
		log.Error("failed to create bootstrap admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. HTTP routes and middleware
	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Error("invalid TRUSTED_PROXIES", slog.String("error", err.Error()))
		os.Exit(1)
	}
	router := handler.NewRouter(handler.Routes{
		Products:       handler.NewProductHandler(productService, log),
		Users:          handler.NewUserHandler(userService, log),
		Auth:           handler.NewAuthHandler(authService, log),
		Upload:         handler.NewUploadHandler(uploadService, log),
		Health:         handler.NewHealthHandler(checks, log),
		Invalidations:  handler.NewInvalidationsHandler(hub, log, cfg.CORSAllowedOrigins),
		Verifier:       authService,
		Limiter:        rl,
		TrustedProxies: proxies,
		LoginLimit:     cfg.LoginRateLimit,
		AuditLog:       auditLogger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
	})

	// 10. Stats worker
	statsWorker := worker.NewStatsWorker(productRepo, userRepo, log, cfg.StatsInterval)
	go statsWorker.Start(ctx)

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Bool("uploads", blobs != nil),
		slog.Int("rate_limit", cfg.APIRateLimit),
		slog.Int("login_rate_limit", cfg.LoginRateLimit),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop the stats worker and relay subscription
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// bootstrapAdmin creates the configured admin account once
func bootstrapAdmin(ctx context.Context, users *service.UserService, cfg *config.Config, log *slog.Logger) error {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	_, err := users.Create(ctx, &domain.UserInput{
		Email:    cfg.BootstrapAdminEmail,
		Name:     "Administrator",
		Password: cfg.BootstrapAdminPassword,
		Role:     domain.RoleAdmin,
	})
	if errors.Is(err, domain.ErrConflict) {
		log.Debug("bootstrap admin already exists", slog.String("email", cfg.BootstrapAdminEmail))
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("bootstrap admin created", slog.String("email", cfg.BootstrapAdminEmail))
	return nil
}
