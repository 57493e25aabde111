package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/interpreter-booking-api/api/swagger"
	"github.com/noah-isme/interpreter-booking-api/internal/handler"
	"github.com/noah-isme/interpreter-booking-api/internal/middleware"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	"github.com/noah-isme/interpreter-booking-api/internal/service"
	"github.com/noah-isme/interpreter-booking-api/pkg/config"
	"github.com/noah-isme/interpreter-booking-api/pkg/fhir"
	"github.com/noah-isme/interpreter-booking-api/pkg/jobs"
	"github.com/noah-isme/interpreter-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/interpreter-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/interpreter-booking-api/pkg/middleware/requestid"
)

const reconcileJob = "reconcile"

type patientRegistry interface {
	GetPatient(ctx context.Context, id string) (*fhir.Patient, error)
	SearchPatients(ctx context.Context, name, language string) ([]fhir.Patient, error)
	CreatePatient(ctx context.Context, patient fhir.Patient) (*fhir.Patient, error)
}

// app holds the wired services.
type app struct {
	auth         *service.AuthService
	patients     *service.PatientService
	interpreters *service.InterpreterService
	assignments  *service.AssignmentService
	metrics      *service.MetricsService
	logger       *zap.Logger
}

func newApp(cfg *config.Config, store *stores, registry patientRegistry, cacheSvc *service.CacheService, metricsSvc *service.MetricsService, logr *zap.Logger) *app {
	validate := service.NewValidator()
	assignments := service.NewAssignmentService(store.requests, store.interpreters, store.patients, store.users, service.NewMatchingIndex(), validate, metricsSvc, logr)
	// postgres may be shared by several replicas, each with its own index
	assignments.ServePendingFromStore(cfg.StoreDriver == config.StoreDriverPostgres)
	return &app{
		auth: service.NewAuthService(store.users, validate, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		patients:     service.NewPatientService(store.patients, registry, store.users, cacheSvc, cfg.FHIR.SearchCacheTTL, validate, metricsSvc, logr),
		interpreters: service.NewInterpreterService(store.interpreters, store.users, validate, logr),
		assignments:  assignments,
		metrics:      metricsSvc,
		logger:       logr,
	}
}

// reconciler runs index rebuild and availability repair as queue jobs.
func (a *app) reconciler(cfg config.ReconcileConfig) *jobs.Queue {
	return jobs.NewQueue(reconcileJob, func(ctx context.Context, job jobs.Job) error {
		report, err := a.assignments.Reconcile(ctx)
		if err != nil {
			return err
		}
		if report.Total() > 0 {
			a.logger.Warn("reconcile repaired drift", zap.String("job_id", job.ID), zap.Any("repairs", report.Repairs))
		}
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     a.logger,
	})
}

func (a *app) router(cfg *config.Config, checks map[string]handler.ReadinessCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if a.metrics != nil {
		r.Use(middleware.Metrics(a.metrics))
	}
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(a.metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if a.metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authHandler := handler.NewAuthHandler(a.auth)
	patients := handler.NewPatientHandler(a.patients)
	interpreters := handler.NewInterpreterHandler(a.interpreters, a.assignments)
	requests := handler.NewRequestHandler(a.assignments)

	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))
	secured.GET("/auth/me", authHandler.Me)

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin)
	interpreter := middleware.RequireRoles(models.RoleInterpreter)
	anyone := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin, models.RoleInterpreter)

	secured.POST("/users", admin, authHandler.CreateUser)
	secured.GET("/admin/metrics", admin, metricsHandler.Snapshot)

	secured.GET("/fhir/patients/search", staff, patients.Search)
	secured.GET("/fhir/patients/:fhirId", staff, patients.FetchExternal)
	secured.POST("/patients/sync/:fhirId", staff, patients.Sync)
	secured.POST("/patients", staff, patients.Create)
	secured.GET("/patients", staff, patients.List)
	secured.GET("/patients/:id", anyone, patients.Get)

	secured.POST("/interpreters", staff, interpreters.Create)
	secured.GET("/interpreters", staff, interpreters.List)
	secured.GET("/interpreters/me", interpreter, interpreters.Me)
	secured.PATCH("/interpreters/me", interpreter, interpreters.UpdateMe)
	secured.PATCH("/interpreters/me/availability", interpreter, interpreters.SetMyAvailability)
	secured.PATCH("/interpreters/:id/availability", staff, interpreters.SetAvailability)

	secured.GET("/requests", staff, requests.List)
	secured.POST("/requests", staff, requests.Create)
	secured.GET("/requests/:id", anyone, requests.Get)
	secured.POST("/requests/:id/cancel", staff, requests.Cancel)

	secured.GET("/interpreter/requests/pending", interpreter, requests.Pending)
	secured.GET("/interpreter/requests/my", interpreter, requests.Mine)
	secured.POST("/interpreter/requests/:id/accept", interpreter, requests.Accept)
	secured.POST("/interpreter/requests/:id/complete", interpreter, requests.Complete)

	return r
}
