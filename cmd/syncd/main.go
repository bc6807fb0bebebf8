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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/koclink/coachsync/internal/handler"
	"github.com/koclink/coachsync/internal/identity"
	"github.com/koclink/coachsync/internal/middleware"
	"github.com/koclink/coachsync/internal/remote"
	"github.com/koclink/coachsync/internal/repository"
	"github.com/koclink/coachsync/internal/service"
	syncengine "github.com/koclink/coachsync/internal/sync"
	"github.com/koclink/coachsync/pkg/cache"
	"github.com/koclink/coachsync/pkg/config"
	"github.com/koclink/coachsync/pkg/database"
	"github.com/koclink/coachsync/pkg/logger"
	corsmiddleware "github.com/koclink/coachsync/pkg/middleware/cors"
	reqidmiddleware "github.com/koclink/coachsync/pkg/middleware/requestid"
	"github.com/koclink/coachsync/pkg/storage"
)

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	examRepo := repository.NewExamRepository(db)
	perfRepo := repository.NewPerformanceRepository(db)
	pendingRepo := repository.NewPendingRequestRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	stateRepo := repository.NewStateRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	// Remote document store.
	store := remote.NewHTTPStore(cfg.Remote)
	watcher := remote.NewWSWatcher(cfg.Remote, logr)
	gateway := remote.NewGateway(store, cfg.Sync.BatchLimit, logr)

	// Sync engine.
	metricsSvc := service.NewMetricsService()
	bus := syncengine.NewEventBus()
	notifier := syncengine.NewChannelNotifier(cacheRepo, cfg.Sync.NotifyChannel, logr)
	reconciler := syncengine.NewReconciler(db, studentRepo, examRepo, perfRepo,
		gateway, cacheRepo, stateRepo, bus, metricsSvc, logr)
	listeners := syncengine.NewListenerManager(watcher, reconciler, studentRepo,
		pendingRepo, gateway, notifier, metricsSvc, logr,
		syncengine.ListenerManagerConfig{QueueBuffer: cfg.Sync.QueueBuffer})

	// Bridge store-change events onto the Redis event channel so UI
	// processes can refresh without polling.
	events, cancelEvents := bus.Subscribe(64)
	defer cancelEvents()
	go func() {
		for event := range events {
			if err := cacheRepo.Publish(context.Background(), cfg.Sync.EventChannel, event); err != nil {
				logr.Warn("failed to publish store event", zap.Error(err))
			}
		}
	}()

	// Services.
	validate := validator.New()
	gate := identity.NewGate(gateway, teacherRepo, stateRepo, validate, logr, identity.Config{
		JWTSecret:     cfg.JWT.Secret,
		JWTExpiration: cfg.JWT.Expiration,
		Issuer:        cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(db, studentRepo, examRepo, perfRepo,
		gateway, cacheRepo, validate, logr, cfg.Sync.SummaryTTL)
	examSvc := service.NewExamService(db, examRepo, studentRepo, gateway, cacheRepo, validate, logr)
	perfSvc := service.NewPerformanceService(db, perfRepo, studentRepo, gateway, cacheRepo, validate, logr)
	pendingSvc := service.NewPendingRequestService(pendingRepo, studentRepo, gateway, logr)
	syncSvc := service.NewSyncService(reconciler, listeners, gateway, studentRepo, examRepo, perfRepo, logr)
	exportStore, err := storage.NewLocalStorage(cfg.Export.StorageDir)
	if err != nil {
		logr.Warn("export storage unavailable, on-disk copies disabled", zap.Error(err))
		exportStore = nil
	}
	exportSvc := service.NewExportService(studentRepo, examRepo, perfRepo,
		exportStore, cfg.Export.ResultTTL, logr)
	importSvc := service.NewImportService(reconciler, validate, logr)

	// Resume listening for the persisted scope on boot.
	if cfg.Sync.ListenOnStart {
		if scope, err := gate.CurrentScope(context.Background()); err != nil {
			logr.Warn("failed to read active scope", zap.Error(err))
		} else if scope != "" {
			if err := listeners.StartListening(context.Background(), scope); err != nil {
				logr.Warn("failed to start listeners", zap.String("teacher_id", scope), zap.Error(err))
			}
		}
	}
	defer listeners.StopListening()

	router := buildRouter(cfg, logr, metricsSvc, gate, handlerSet{
		auth:     handler.NewAuthHandler(gate, syncSvc, logr),
		students: handler.NewStudentHandler(studentSvc),
		exams:    handler.NewExamHandler(examSvc),
		perfs:    handler.NewPerformanceHandler(perfSvc),
		pending:  handler.NewPendingRequestHandler(pendingSvc),
		syncing:  handler.NewSyncHandler(syncSvc),
		exports:  handler.NewExportHandler(exportSvc, studentSvc, examSvc),
		imports:  handler.NewImportHandler(importSvc),
		health:   handler.NewHealthHandler(db),
		metrics:  handler.NewMetricsHandler(metricsSvc),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logr.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type handlerSet struct {
	auth     *handler.AuthHandler
	students *handler.StudentHandler
	exams    *handler.ExamHandler
	perfs    *handler.PerformanceHandler
	pending  *handler.PendingRequestHandler
	syncing  *handler.SyncHandler
	exports  *handler.ExportHandler
	imports  *handler.ImportHandler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
}

func buildRouter(cfg *config.Config, logr *zap.Logger, metricsSvc *service.MetricsService,
	gate *identity.Gate, h handlerSet) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", h.health.Health)
	r.GET("/ready", h.health.Ready)
	r.GET("/metrics", h.metrics.Scrape)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", h.auth.Register)
	auth.POST("/login", h.auth.Login)
	auth.POST("/logout", middleware.Scope(gate), h.auth.Logout)

	scoped := api.Group("", middleware.Scope(gate))

	students := scoped.Group("/students")
	students.GET("", h.students.List)
	students.POST("", h.students.Create)
	students.GET("/:id", h.students.Get)
	students.PUT("/:id", h.students.Update)
	students.DELETE("/:id", h.students.Delete)
	students.GET("/:id/summary", h.students.Summary)
	students.GET("/:id/exams", h.exams.ListByStudent)
	students.GET("/:id/performances", h.perfs.ListByStudent)
	students.GET("/:id/progress", h.exports.Progress)

	exams := scoped.Group("/exams")
	exams.POST("", h.exams.Create)
	exams.PUT("/:id", h.exams.Update)
	exams.DELETE("/:id", h.exams.Delete)

	perfs := scoped.Group("/performances")
	perfs.POST("", h.perfs.Create)
	perfs.PUT("/:id", h.perfs.Update)
	perfs.DELETE("/:id", h.perfs.Delete)

	pending := scoped.Group("/pending-requests")
	pending.GET("", h.pending.List)
	pending.POST("/:id/approve", h.pending.Approve)
	pending.POST("/:id/reject", h.pending.Reject)

	syncGroup := scoped.Group("/sync")
	syncGroup.POST("/import", h.syncing.Import)
	syncGroup.POST("/push", h.syncing.Push)
	syncGroup.GET("/status", h.syncing.Status)
	syncGroup.POST("/listeners/start", h.syncing.StartListeners)
	syncGroup.POST("/listeners/stop", h.syncing.StopListeners)

	exports := scoped.Group("/export")
	exports.GET("/students", h.exports.Students)
	exports.GET("/exams", h.exports.Exams)
	exports.GET("/performances", h.exports.Performances)

	scoped.POST("/import", h.imports.Import)

	return r
}
