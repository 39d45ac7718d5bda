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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/cdm-registrar/registrar-api/api/swagger"
	"github.com/cdm-registrar/registrar-api/internal/handler"
	"github.com/cdm-registrar/registrar-api/internal/middleware"
	"github.com/cdm-registrar/registrar-api/internal/mongostore"
	"github.com/cdm-registrar/registrar-api/internal/repository"
	"github.com/cdm-registrar/registrar-api/internal/service"
	"github.com/cdm-registrar/registrar-api/internal/store"
	"github.com/cdm-registrar/registrar-api/pkg/cache"
	"github.com/cdm-registrar/registrar-api/pkg/config"
	"github.com/cdm-registrar/registrar-api/pkg/database"
	"github.com/cdm-registrar/registrar-api/pkg/jobs"
	"github.com/cdm-registrar/registrar-api/pkg/logger"
	"github.com/cdm-registrar/registrar-api/pkg/mailer"
	corsmiddleware "github.com/cdm-registrar/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cdm-registrar/registrar-api/pkg/middleware/requestid"
	"github.com/cdm-registrar/registrar-api/pkg/storage"
)

// @title CDM Registrar API
// @version 1.0.0
// @description Campus registrar document-request portal
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := buildStores(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage", "driver", cfg.StoreDriver, "error", err)
	}
	defer closeStores()

	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, catalog caching disabled", zap.Error(err))
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}

	proofStore, err := storage.NewProofStorage(cfg.Uploads.Dir, cfg.Uploads.MaxFileSizeBytes)
	if err != nil {
		logr.Sugar().Fatalw("failed to init proof storage", "dir", cfg.Uploads.Dir, "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	metricsSvc := service.NewMetricsService()

	var sender service.Sender
	if cfg.Notifications.Enabled {
		sender = mailer.New(cfg.SMTP, cfg.Notifications)
	}
	notifSvc := service.NewNotificationService(sender, jobs.QueueConfig{
		Workers:    cfg.Queue.Workers,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		Logger:     logr,
	}, logr)
	notifSvc.Start(ctx)
	defer notifSvc.Stop()

	authSvc := service.NewAuthService(stores.Users, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "registrar-api",
	})

	docTypeSvc := newDocumentTypeService(stores, cacheRepo, cfg, logr)
	requestSvc := service.NewRequestService(stores.Requests, stores.Workflow, docTypeSvc, stores.Payments, stores.Users, notifSvc, metricsSvc, logr)
	paymentSvc := service.NewPaymentService(stores.Payments, stores.Requests, stores.Workflow, stores.Users, proofStore, signer, notifSvc, metricsSvc, logr)
	exportSvc := service.NewExportService(stores.Requests, stores.Users, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	docTypeHandler := handler.NewDocumentTypeHandler(docTypeSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, proofStore)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

		authed := api.Group("")
		authed.Use(middleware.JWT(authSvc))

		authed.GET("/document-types", docTypeHandler.List)

		requests := authed.Group("/requests")
		requests.POST("", requestHandler.Submit)
		requests.GET("/mine", requestHandler.ListMine)
		requests.GET("/history", requestHandler.History)
		requests.GET("/stats", requestHandler.QueueStats)
		requests.GET("/:id", requestHandler.Detail)
		requests.GET("/:id/workflow", requestHandler.Workflow)
		requests.GET("/:id/claim-stub", exportHandler.ClaimStub)
		requests.POST("/:id/payment", paymentHandler.UploadProof)
		requests.PUT("/:id/status", middleware.Staff(), requestHandler.AdvanceStatus)

		payments := authed.Group("/payments")
		payments.GET("/pending", middleware.Officers(), paymentHandler.ListPending)
		payments.PUT("/:id/verify", middleware.Officers(), paymentHandler.Verify)
		payments.PUT("/:id/reject", middleware.Officers(), paymentHandler.Reject)
		payments.GET("/:id/proof-url", middleware.Officers(), paymentHandler.ProofURL)

		// Token-gated; the signed URL is the credential.
		api.GET("/payments/proof", paymentHandler.ProofFile)

		admin := authed.Group("/admin", middleware.Staff())
		admin.GET("/requests", requestHandler.List)
		admin.GET("/overview", requestHandler.Overview)
		admin.GET("/requests/export", exportHandler.Requests)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "store_driver", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
}

func newDocumentTypeService(stores store.Stores, cacheRepo *repository.CacheRepository, cfg *config.Config, logr *zap.Logger) *service.DocumentTypeService {
	if cacheRepo == nil {
		return service.NewDocumentTypeService(stores.DocumentTypes, nil, cfg.Catalog.CacheTTL, logr)
	}
	return service.NewDocumentTypeService(stores.DocumentTypes, cacheRepo, cfg.Catalog.CacheTTL, logr)
}

// buildStores selects the persistence adapter from configuration.
func buildStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (store.Stores, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		db, closeFn, err := database.NewMongo(cfg.Mongo)
		if err != nil {
			return store.Stores{}, nil, err
		}
		base := mongostore.New(db)
		if err := base.EnsureIndexes(ctx); err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = closeFn(closeCtx)
			return store.Stores{}, nil, err
		}
		stores := store.Stores{
			DocumentTypes: mongostore.NewDocumentTypeStore(base),
			Requests:      mongostore.NewRequestStore(base),
			Payments:      mongostore.NewPaymentStore(base),
			Workflow:      mongostore.NewWorkflowHistoryStore(base),
			Users:         mongostore.NewUserStore(base),
		}
		cleanup := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := closeFn(closeCtx); err != nil {
				logr.Warn("mongo disconnect failed", zap.Error(err))
			}
		}
		return stores, cleanup, nil

	case config.StorePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return store.Stores{}, nil, err
		}
		stores := store.Stores{
			DocumentTypes: repository.NewDocumentTypeRepository(db),
			Requests:      repository.NewRequestRepository(db),
			Payments:      repository.NewPaymentRepository(db),
			Workflow:      repository.NewWorkflowHistoryRepository(db),
			Users:         repository.NewUserRepository(db),
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logr.Warn("postgres close failed", zap.Error(err))
			}
		}
		return stores, cleanup, nil

	default:
		return store.Stores{}, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
