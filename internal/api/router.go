package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/maintlog/logbook-gateway/internal/api/handler"
	gwmiddleware "github.com/maintlog/logbook-gateway/internal/api/middleware"
	"github.com/maintlog/logbook-gateway/internal/core/domain"
	"github.com/maintlog/logbook-gateway/internal/core/ports"
	"github.com/maintlog/logbook-gateway/internal/core/rbac"
	"github.com/maintlog/logbook-gateway/internal/infrastructure/http/handlers"
	"github.com/maintlog/logbook-gateway/internal/upstream"
)

// Dependencies carries everything the router needs, built by the
// composition root in cmd. The session store is deliberately not a
// singleton: the resolver threads the per-browser store through the context.
type Dependencies struct {
	Log          zerolog.Logger
	Resolver     *gwmiddleware.SessionResolver
	Limiter      ports.LoginLimiter
	AuditRepo    ports.AuditRepository
	PublicClient *upstream.Client
	Mongo        *mongo.Database
	Redis        *redis.Client
	LoginPath    string
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("logbook_gateway"))

	// --- Operational endpoints (no session resolution) ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)
	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	guard := func(g rbac.Gate) echo.MiddlewareFunc {
		return gwmiddleware.RouteGuard(rbac.Guard{Gate: g}, deps.LoginPath)
	}

	// --- Session lifecycle ---
	sessionHandler := handler.NewSessionHandler(deps.Resolver, deps.Limiter, deps.AuditRepo, deps.Log)
	session := e.Group("/session", deps.Resolver.Middleware())
	session.POST("/login", sessionHandler.Login)
	session.POST("/logout", sessionHandler.Logout)
	session.GET("", sessionHandler.Session)
	session.POST("/check", sessionHandler.Check)
	session.POST("/refresh", sessionHandler.Refresh)
	session.GET("/policy", sessionHandler.Policy)
	session.POST("/gate", sessionHandler.Gate)
	session.GET("/audit", sessionHandler.Audit,
		guard(rbac.Gate{Permission: domain.PermManageUsers}))

	// --- Guarded proxy to the upstream logbook API ---
	proxyHandler := handler.NewProxyHandler(deps.PublicClient, "/api", deps.Log)
	apiGroup := e.Group("/api", deps.Resolver.Middleware())

	apiGroup.Any("/dashboard*", proxyHandler.Forward,
		guard(rbac.Gate{Permission: domain.PermViewDashboard}))
	apiGroup.Any("/settings*", proxyHandler.Forward,
		guard(rbac.Gate{Permissions: []domain.Permission{domain.PermConfigureLimits, domain.PermManageUsers}}))
	apiGroup.Any("/users*", proxyHandler.Forward,
		guard(rbac.Gate{Permission: domain.PermManageUsers}))
	apiGroup.Any("/reports*", proxyHandler.Forward,
		guard(rbac.Gate{Permission: domain.PermGenerateReports}))
	// Issues and nested remedies are publicly browsable and anonymously
	// reportable; the remedy-edit carve-out lives inside the guard itself.
	apiGroup.Any("/issues*", proxyHandler.Forward,
		guard(rbac.Gate{AllowPublic: true}))

	return e
}
