package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcAdapter "github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/grpc"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/http/handler"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/http/middleware"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/http/router"
	natsAdapter "github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/messaging/nats"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/repository/cache"
	mongoRepo "github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/repository/mongodb"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/storage/local"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/storage/s3"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/auth"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/mailer"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/tracer"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const (
	serviceName     = "marketplace-service"
	shutdownTimeout = 15 * time.Second
)

func main() {
	// 1. Logger
	appLogger := logger.NewLogger()
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Application starting...", zap.String("service_name", serviceName))

	// 2. Configuration
	cfg, err := config.LoadConfig(appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// 3. Tracing
	tp := tracer.InitTracer(cfg.ServiceName, cfg.OTExporterOTLPEndpoint, appLogger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			appLogger.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}()

	// 4. Metrics
	metricsManager := metrics.NewMetricsManager("marketplace")

	// 5. MongoDB
	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		appLogger.Info("Disconnecting from MongoDB...")
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			appLogger.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		cancelPing()
		appLogger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}
	cancelPing()
	db := mongoClient.Database(cfg.MongoDatabase)
	appLogger.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	listingRepo := mongoRepo.NewListingRepository(db, appLogger)
	userRepo := mongoRepo.NewUserRepository(db, appLogger)

	// 6. Redis: filter-options cache and OTP store, with in-process fallbacks
	var (
		filterCache domain.FilterOptionsCache = cache.NewNoop()
		otpStore    auth.OTPStore             = auth.NewMemoryOTPStore()
	)
	if cfg.RedisAddress != "" {
		redisClient, err := cache.NewRedisClient(context.Background(), cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			appLogger.Warn("Redis unavailable, falling back to in-process cache and OTP store", zap.Error(err))
		} else {
			defer redisClient.Close()
			filterCache = cache.NewFilterOptionsCache(redisClient, cfg.FiltersCacheTTL)
			otpStore = cache.NewOTPStore(redisClient)
			appLogger.Info("Connected to Redis", zap.String("address", cfg.RedisAddress))
		}
	} else {
		appLogger.Info("REDIS_ADDRESS not set, filter options are not cached")
	}

	// 7. Media storage
	var mediaStorage domain.MediaStorage
	switch cfg.MediaBackend {
	case "minio":
		mediaStorage, err = s3.NewS3Storage(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL, appLogger)
	default:
		mediaStorage, err = local.NewStorage(afero.NewOsFs(), cfg.UploadDir, appLogger)
	}
	if err != nil {
		appLogger.Fatal("Failed to initialize media storage", zap.String("backend", cfg.MediaBackend), zap.Error(err))
	}
	appLogger.Info("Media storage initialized", zap.String("backend", cfg.MediaBackend))

	// 8. NATS
	var publisher domain.EventPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := natsAdapter.NewPublisher(cfg.NATSURL, appLogger, serviceName)
		if err != nil {
			appLogger.Warn("NATS unavailable, listing events disabled", zap.Error(err))
		} else {
			defer natsPublisher.Close()
			publisher = natsPublisher
		}
	}

	// 9. Mailer
	var codeSender auth.CodeSender
	if cfg.SMTPHost != "" {
		codeSender = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.OTPTTL, appLogger)
	} else {
		codeSender = mailer.NewLogMailer(appLogger)
	}

	// 10. Usecases
	mediaUsecase := usecase.NewMediaUsecase(mediaStorage, metricsManager, appLogger)
	listingUsecase := usecase.NewListingUsecase(listingRepo, mediaUsecase, publisher, filterCache, metricsManager, appLogger)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, serviceName)
	authService := auth.NewService(otpStore, codeSender, userRepo, tokens, cfg.AdminEmailList(), cfg.OTPTTL, appLogger)

	// 11. HTTP server
	validate := validator.New()
	httpHandler := router.NewRouter(
		handler.NewListingHandler(listingUsecase, mediaUsecase, validate, appLogger),
		handler.NewAuthHandler(authService, validate, appLogger),
		tokens,
		middleware.NewRateLimiter(cfg.OTPRateLimit, cfg.OTPRateWindow),
		metricsManager,
		appLogger,
	)
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 12. Prometheus metrics server
	go func() {
		if err := metrics.StartMetricsServer(cfg.PrometheusMetricsPort, appLogger, metricsManager); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Prometheus metrics server failed", zap.Error(err))
		}
	}()

	// 13. gRPC health server
	var grpcSrv *grpc.Server
	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			appLogger.Fatal("Failed to listen for gRPC", zap.String("port", cfg.GRPCHealthPort), zap.Error(err))
		}
		srv, healthServer := grpcAdapter.NewGRPCServer(appLogger, serviceName)
		grpcSrv = srv
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
		defer healthServer.Shutdown()

		go func() {
			appLogger.Info("Starting gRPC health server", zap.String("port", cfg.GRPCHealthPort))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				appLogger.Error("gRPC server failed", zap.Error(err))
			}
		}()
	}

	// 14. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	appLogger.Info("Application shutting down...")
}
