package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/medivex/identity-service/docs"
	"github.com/medivex/identity-service/internal/api/handler"
	"github.com/medivex/identity-service/internal/api/middleware"
	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
	"github.com/medivex/identity-service/internal/infrastructure/http/handlers"
)

const defaultAuthRateLimit = 10

// Dependencies is everything the router needs to serve requests.
type Dependencies struct {
	Guard  middleware.Guard
	Auth   ports.AuthService
	Admin  ports.IdentityAdminService
	Access ports.AccessControlService
	// Readiness lists the dependencies pinged by /health/ready.
	Readiness map[string]handlers.Pinger
	// AuthRateLimit is requests per second per client IP on the public auth
	// routes.
	AuthRateLimit float64
	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// Forwarding headers are client controlled; rate limits key on the peer address.
	e.IPExtractor = echo.ExtractIPDirect()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echomiddleware.BodyLimit("1M"))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "identity",
		Subsystem:  "http",
		Registerer: registerer,
	}))
	e.Use(middleware.Authenticate(deps.Guard))

	requireAuth := middleware.RequireAuth()
	limiter := authRateLimiter(deps.AuthRateLimit)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	auth := e.Group("/api/auth")
	auth.POST("/register", authHandler.Register, limiter)
	auth.POST("/login", authHandler.Login, limiter)
	auth.POST("/refresh", authHandler.Refresh, limiter)
	auth.POST("/verify-email", authHandler.VerifyEmail, limiter)
	auth.POST("/request-password-reset", authHandler.RequestPasswordReset, limiter)
	auth.POST("/reset-password", authHandler.ResetPassword, limiter)
	auth.POST("/logout", authHandler.Logout, requireAuth)
	auth.GET("/me", authHandler.Me, requireAuth)

	// --- Users ---
	userHandler := handler.NewUserHandler(deps.Auth, deps.Admin)
	users := e.Group("/api/users", requireAuth)
	users.GET("/me", userHandler.Me)
	users.PUT("/me", userHandler.UpdateMe)
	users.POST("/me/change-password", userHandler.ChangePassword)
	users.GET("", userHandler.List, middleware.RequirePermission(domain.PermUserRead))
	users.GET("/:id", userHandler.Get, middleware.RequirePermission(domain.PermUserRead))
	users.PUT("/:id", userHandler.Update, middleware.RequirePermission(domain.PermUserUpdate))
	users.DELETE("/:id", userHandler.Deactivate, middleware.RequirePermission(domain.PermUserDelete))
	users.PUT("/:id/activate", userHandler.Activate, middleware.RequirePermission(domain.PermUserUpdate))
	users.POST("/:id/roles/:roleId", userHandler.AssignRole, middleware.RequirePermission(domain.PermUserUpdate))
	users.DELETE("/:id/roles/:roleId", userHandler.RemoveRole, middleware.RequirePermission(domain.PermUserUpdate))

	// --- Roles & permissions ---
	roleHandler := handler.NewRoleHandler(deps.Access)
	roles := e.Group("/api/roles", requireAuth)
	roles.GET("", roleHandler.ListRoles, middleware.RequirePermission(domain.PermRoleRead))
	roles.GET("/:id", roleHandler.GetRole, middleware.RequirePermission(domain.PermRoleRead))
	roles.POST("", roleHandler.CreateRole, middleware.RequirePermission(domain.PermRoleCreate))
	roles.PUT("/:id", roleHandler.UpdateRole, middleware.RequirePermission(domain.PermRoleUpdate))
	roles.DELETE("/:id", roleHandler.DeleteRole, middleware.RequirePermission(domain.PermRoleDelete))
	roles.POST("/:id/permissions/:permissionId", roleHandler.AssignPermission, middleware.RequirePermission(domain.PermRoleUpdate))
	roles.DELETE("/:id/permissions/:permissionId", roleHandler.RevokePermission, middleware.RequirePermission(domain.PermRoleUpdate))

	perms := e.Group("/api/permissions", requireAuth)
	perms.GET("", roleHandler.ListPermissions, middleware.RequirePermission(domain.PermRoleRead))
	perms.GET("/:id", roleHandler.GetPermission, middleware.RequirePermission(domain.PermRoleRead))
	perms.POST("", roleHandler.CreatePermission, middleware.RequirePermission(domain.PermRoleCreate))
	perms.PUT("/:id", roleHandler.UpdatePermission, middleware.RequirePermission(domain.PermRoleUpdate))
	perms.DELETE("/:id", roleHandler.DeletePermission, middleware.RequirePermission(domain.PermRoleDelete))

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)            // liveness: is the process alive?
	e.GET("/api/health", healthHandler.Liveness)        // liveness under the API prefix
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness: are dependencies up?

	// --- Metrics & docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// authRateLimiter throttles the unauthenticated auth routes per client IP.
func authRateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = defaultAuthRateLimit
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}

// requestLogger bridges echo's request logger to zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	log = log.With().Str("component", "http").Logger()
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
