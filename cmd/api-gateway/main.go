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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-ledger-api/api/swagger"
	"github.com/noah-isme/sma-ledger-api/internal/handler"
	"github.com/noah-isme/sma-ledger-api/internal/middleware"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/repository"
	"github.com/noah-isme/sma-ledger-api/internal/scoring"
	"github.com/noah-isme/sma-ledger-api/internal/service"
	"github.com/noah-isme/sma-ledger-api/pkg/assistant"
	"github.com/noah-isme/sma-ledger-api/pkg/cache"
	"github.com/noah-isme/sma-ledger-api/pkg/config"
	"github.com/noah-isme/sma-ledger-api/pkg/database"
	"github.com/noah-isme/sma-ledger-api/pkg/export"
	"github.com/noah-isme/sma-ledger-api/pkg/jobs"
	"github.com/noah-isme/sma-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-ledger-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-ledger-api/pkg/storage"
)

// @title SMA Ledger API
// @version 1.0.0
// @description School fee ledger, payroll and exam scoring service
// @BasePath /api/v1
// @schemes http https
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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to apply schema", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if created, err := authSvc.BootstrapAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
		logr.Fatal("failed to bootstrap admin", zap.Error(err))
	} else if created {
		logr.Info("bootstrapped administrator", zap.String("email", cfg.Admin.Email))
	}

	var generator service.TextGenerator
	gemini, err := assistant.NewGemini(ctx, cfg.Assistant)
	switch {
	case errors.Is(err, assistant.ErrNotConfigured):
		logr.Warn("assistant api key missing, using fallback texts")
	case err != nil:
		logr.Warn("assistant unavailable, using fallback texts", zap.Error(err))
	default:
		generator = gemini
		defer gemini.Close() //nolint:errcheck
	}
	assistantSvc := service.NewAssistantService(generator, metricsSvc, validate, logr)

	rule, err := scoring.NewPromotionRule(cfg.Exams.PromotionRule)
	if err != nil {
		logr.Fatal("invalid promotion rule", zap.String("rule", cfg.Exams.PromotionRule), zap.Error(err))
	}

	studentSvc := service.NewStudentService(studentRepo, cacheSvc, cfg.Exams.DefaultSubjects, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, cacheSvc, validate, logr)
	feeSvc := service.NewFeeService(studentRepo, cacheSvc, metricsSvc, cfg.Fees.CurrencySymbol, validate, logr)
	payrollSvc := service.NewPayrollService(teacherRepo, cacheSvc, metricsSvc, cfg.Fees.CurrencySymbol, validate, logr)
	examSvc := service.NewExamService(studentRepo, cacheSvc, rule, assistantSvc, service.ExamServiceConfig{
		StandingsTTL:   cfg.Exams.StandingsTTL,
		RemarksEnabled: cfg.Exams.RemarksEnabled,
	}, validate, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, cacheSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, teacherRepo, settingsSvc, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	searchSvc := service.NewSearchService(studentRepo, teacherRepo, logr)

	var reportHandler *handler.ReportHandler
	if cfg.Exports.Enabled {
		store, err := newExportStorage(cfg.Exports)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(service.ExportSources{
			Fees:      feeSvc,
			Standings: examSvc,
			Payroll:   payrollSvc,
		}, export.DefaultRegistry(), store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)

		jobRepo := repository.NewExportJobRepository(db)
		worker := service.NewReportWorker(jobRepo, exportSvc, metricsSvc, logr)
		queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 2 * time.Second,
			Logger:     logr,
			OnGiveUp:   worker.GiveUp,
		})
		for _, jobType := range []models.ExportType{models.ExportTypeFeeLedger, models.ExportTypeStandings, models.ExportTypePayroll} {
			queue.Handle(string(jobType), worker.Handle)
		}

		reportSvc := service.NewReportService(jobRepo, queue, exportSvc, validate, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		})
		queue.Start(ctx)
		defer queue.Stop()
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler = handler.NewReportHandler(reportSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Students:  handler.NewStudentHandler(studentSvc),
		Teachers:  handler.NewTeacherHandler(teacherSvc),
		Fees:      handler.NewFeeHandler(feeSvc),
		Payroll:   handler.NewPayrollHandler(payrollSvc),
		Exams:     handler.NewExamHandler(examSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Settings:  handler.NewSettingsHandler(settingsSvc),
		Search:    handler.NewSearchHandler(searchSvc),
		Assistant: handler.NewAssistantHandler(assistantSvc),
		Reports:   reportHandler,
		System:    handler.NewSystemHandler(metricsSvc.Handler(), db),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newExportStorage(cfg config.ExportsConfig) (service.FileStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverS3:
		return storage.NewS3Storage(cfg.S3)
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.StorageDir)
	default:
		return nil, fmt.Errorf("unknown export storage driver %q", cfg.StorageDriver)
	}
}
