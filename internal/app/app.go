package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/todo-session/internal/config"
	"github.com/prperemyshlev/todo-session/internal/handler"
	"github.com/prperemyshlev/todo-session/internal/repository"
	"github.com/prperemyshlev/todo-session/internal/service"
	"github.com/prperemyshlev/todo-session/internal/utils"
	"github.com/prperemyshlev/todo-session/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	serviceName     = "todo-backend"
	shutdownTimeout = 5 * time.Second
	sweepInterval   = time.Hour
)

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
	tokens repository.TokenRepository
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry.Duration,
		cfg.JWT.RefreshTokenExpiry.Duration,
	)

	metrics, err := observability.NewAuthMetrics(infra.MeterProvider().Meter(serviceName))
	if err != nil {
		return nil, fmt.Errorf("failed to register auth metrics: %w", err)
	}

	blacklistService := service.NewTokenBlacklistService(infra.Redis())
	resetTokens := service.NewRedisResetTokenStore(infra.Redis())
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	authService := service.NewAuthService(
		repos.User,
		repos.Token,
		jwtManager,
		blacklistService,
		resetTokens,
		service.NewLogMailer(logger),
		metrics,
		logger,
		service.AuthOptions{
			BCryptCost:       cfg.Security.BCryptCost,
			ResetTokenExpiry: cfg.Security.ResetTokenExpiry.Duration,
			ResetLinkBaseURL: cfg.Security.ResetLinkBaseURL,
		},
	)

	handlers := routeHandlers{
		auth:    handler.NewAuthHandler(authService, logger),
		profile: handler.NewProfileHandler(service.NewProfileService(repos.Profile), logger),
		todo:    handler.NewTodoHandler(service.NewTodoService(repos.Todo), logger),
		health:  healthChecker,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, handlers, authService, rateLimiter, logger, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
		tokens: repos.Token,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

type routeHandlers struct {
	auth    *handler.AuthHandler
	profile *handler.ProfileHandler
	todo    *handler.TodoHandler
	health  *HealthChecker
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	h routeHandlers,
	authService service.AuthService,
	rateLimiter handler.Limiter,
	logger *zap.Logger,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", h.health.Handler)

	limited := handler.RateLimitMiddleware(
		rateLimiter,
		cfg.Security.RateLimitRequests,
		cfg.Security.RateLimitWindow.Duration,
		handler.IPBasedKey,
		logger,
	)
	requireAuth := handler.AuthMiddleware(authService)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", limited, h.auth.Register)
			auth.POST("/login", limited, h.auth.Login)
			auth.POST("/refresh", h.auth.Refresh)
			auth.POST("/password-reset", limited, h.auth.RequestPasswordReset)
			auth.POST("/password-reset/confirm", limited, h.auth.ConfirmPasswordReset)
			auth.POST("/logout", requireAuth, h.auth.Logout)
			auth.GET("/me", requireAuth, h.auth.GetMe)
			auth.PATCH("/me", requireAuth, h.auth.UpdateMe)
		}

		profiles := api.Group("/profiles", requireAuth)
		{
			profiles.GET("/:id", h.profile.Get)
			profiles.PUT("/:id", h.profile.Put)
			profiles.PATCH("/:id", h.profile.Patch)
		}

		todos := api.Group("/todos", requireAuth)
		{
			todos.GET("", h.todo.List)
			todos.POST("", h.todo.Create)
			todos.GET("/:id", h.todo.Get)
			todos.PATCH("/:id", h.todo.Update)
			todos.DELETE("/:id", h.todo.Delete)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweepExpiredTokens(sweepCtx)

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

// sweepExpiredTokens deletes expired refresh tokens until ctx is done
func (a *App) sweepExpiredTokens(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.tokens.DeleteExpired(ctx); err != nil {
				a.infra.Logger().Warn("Failed to delete expired refresh tokens", zap.Error(err))
			}
		}
	}
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
