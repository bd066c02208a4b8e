package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/app"
	iauth "github.com/entrelaunch/platform/internal/auth"
	"github.com/entrelaunch/platform/internal/crud"
	"github.com/entrelaunch/platform/internal/handlers"
	"github.com/entrelaunch/platform/internal/middleware"
	"github.com/entrelaunch/platform/internal/proxy"
	"github.com/entrelaunch/platform/internal/services"
	"github.com/entrelaunch/platform/internal/tasks"
)

// Deps bundles the constructed services the router mounts. Optional entries
// may be nil; their routes are skipped.
type Deps struct {
	DB      *gorm.DB
	Config  *app.Config
	JWT     *iauth.JWTService
	Refresh *iauth.RefreshService
	Checker middleware.PermissionChecker

	Users    *services.UserService
	Payments *services.PaymentService
	Exams    *services.ExamService
	Otp      *services.OtpService

	Runner *tasks.Runner
	Status *tasks.StatusService
	Proxy  *proxy.Proxy

	CrudOptions []crud.Option
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil || deps.Refresh == nil {
		return nil, fmt.Errorf("auth services must be provided")
	}
	if deps.Checker == nil {
		return nil, fmt.Errorf("permission checker must be provided")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user service must be provided")
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.NoRoute(middleware.NotFoundHandler)

	// Proxied prefixes bypass the API middleware entirely.
	if deps.Proxy != nil {
		deps.Proxy.Mount(r)
	}

	r.GET("/health", handlers.Health())
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	guard := func(permission string) gin.HandlerFunc {
		return middleware.RequirePermission(deps.Checker, permission)
	}

	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT, deps.Refresh)

	// Public routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	if deps.Otp != nil {
		otpHandler := handlers.NewOtpHandler(deps.Otp)
		otp := r.Group("/api/otp")
		{
			otp.POST("/request", otpHandler.Request)
			otp.POST("/verify", otpHandler.Verify)
		}
	}

	var paymentHandler *handlers.PaymentHandler
	if deps.Payments != nil {
		paymentHandler = handlers.NewPaymentHandler(deps.Payments)
		// The gateway posts settlements here without a bearer token.
		r.POST("/api/payments/callback", paymentHandler.Callback)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/logout", authHandler.Logout)

	handlers.NewUserHandler(deps.Users).Register(api.Group("/users"), guard)

	// The cached checker can drop stale permission sets on role changes.
	invalidator, _ := deps.Checker.(handlers.RoleCacheInvalidator)
	handlers.NewRoleHandler(deps.DB, invalidator).Register(api.Group("/roles"), guard)

	subscriptions, err := handlers.NewSubscriptionController(deps.DB, deps.CrudOptions...)
	if err != nil {
		return nil, err
	}
	subscriptions.RegisterGuarded(api, "subscription", guard)

	exams, err := handlers.NewExamController(deps.DB, deps.CrudOptions...)
	if err != nil {
		return nil, err
	}
	exams.RegisterGuarded(api, "exam", guard)

	if deps.Exams != nil {
		generation := handlers.NewExamGenerationHandler(deps.Exams)
		api.POST("/exams/generate", guard("exam.generate"), generation.Generate)
	}

	if paymentHandler != nil {
		paymentHandler.Register(api.Group("/payments"), guard)
	}

	if deps.Runner != nil && deps.Status != nil {
		taskHandler := handlers.NewTaskHandler(deps.DB, deps.Runner, deps.Status)
		taskHandler.Register(api.Group("/tasks"), guard)
	}

	return r, nil
}
