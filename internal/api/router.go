package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/taxtooter/support-api/internal/api/handler"
	"github.com/taxtooter/support-api/internal/api/middleware"
	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
	"github.com/taxtooter/support-api/internal/infrastructure/http/handlers"
)

const defaultBodyLimit = "12M"

// Deps carries everything the router wires into handlers and middleware.
type Deps struct {
	Log       zerolog.Logger
	JWTSecret string

	Auth    ports.AuthService
	Users   ports.UserService
	Queries ports.QueryService
	Files   ports.FileService

	// Resolver re-loads the token subject on every request. Optional.
	Resolver middleware.UserResolver
	// Limiter throttles login and registration. Optional.
	Limiter middleware.Limiter
	// Checks are run by the readiness probe.
	Checks map[string]handlers.CheckFunc

	CORSOrigins []string
	BodyLimit   string
	// UploadDir is served at UploadPath when local storage is in use.
	UploadDir  string
	UploadPath string
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	bodyLimit := d.BodyLimit
	if bodyLimit == "" {
		bodyLimit = defaultBodyLimit
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(middleware.Metrics())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit))

	auth := middleware.Auth(d.JWTSecret, d.Resolver)
	var throttle echo.MiddlewareFunc = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if d.Limiter != nil {
		throttle = middleware.RateLimit(d.Limiter, d.Log)
	}

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth)
	authGroup := e.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register, throttle, middleware.OptionalAuth(d.JWTSecret, d.Resolver))
	authGroup.POST("/login", authHandler.Login, throttle)
	authGroup.GET("/me", authHandler.Me, auth)

	// --- Queries ---
	queryHandler := handler.NewQueryHandler(d.Queries)
	queries := e.Group("/api/queries", auth)
	queries.POST("", queryHandler.Create, middleware.RBAC(domain.RoleCustomer))
	queries.GET("", queryHandler.List, middleware.RBAC(domain.RoleAdmin))
	queries.GET("/my-queries", queryHandler.MyQueries, middleware.RBAC(domain.RoleCustomer))
	queries.GET("/assigned", queryHandler.Assigned, middleware.RBAC(domain.RoleConsultant))
	queries.GET("/:id", queryHandler.Get)
	queries.POST("/:id/assign", queryHandler.Assign, middleware.RBAC(domain.RoleAdmin))
	queries.POST("/:id/respond", queryHandler.Respond)
	queries.POST("/:id/resolve", queryHandler.Resolve,
		middleware.RBAC(domain.RoleAdmin, domain.RoleConsultant, domain.RoleCustomer))

	// --- Users ---
	userHandler := handler.NewUserHandler(d.Users)
	users := e.Group("/api/users", auth)
	users.GET("", userHandler.List, middleware.RBAC(domain.RoleAdmin))
	users.GET("/consultants", userHandler.Consultants, middleware.RBAC(domain.RoleAdmin))
	users.GET("/profile", userHandler.Profile)
	users.PUT("/profile", userHandler.UpdateProfile)
	users.PUT("/:id", userHandler.AdminUpdate, middleware.RBAC(domain.RoleAdmin))
	users.DELETE("/:id", userHandler.Delete, middleware.RBAC(domain.RoleAdmin))

	// --- Uploads ---
	uploadHandler := handler.NewUploadHandler(d.Files)
	upload := e.Group("/api/upload", auth)
	upload.POST("", uploadHandler.Upload)
	upload.GET("/signed-url", uploadHandler.SignedURL)

	if d.UploadDir != "" {
		path := d.UploadPath
		if path == "" {
			path = "/uploads"
		}
		e.Static(path, d.UploadDir)
	}

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Ops ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api-docs/*", echoSwagger.WrapHandler)

	return e
}
