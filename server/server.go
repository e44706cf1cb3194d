package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/UnKnowSoDev/pianissimo-gacha/auth"
	"github.com/UnKnowSoDev/pianissimo-gacha/config"
	"github.com/UnKnowSoDev/pianissimo-gacha/db/docstore"
	"github.com/UnKnowSoDev/pianissimo-gacha/middleware"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/broadcast"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/providers"
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/userlock"
)

// App represents the gacha service application
type App struct {
	engine          *gin.Engine
	config          *config.Config
	logger          zerolog.Logger
	store           *docstore.Store
	hub             *broadcast.Hub
	locker          userlock.Locker
	balanceProvider providers.BalanceProvider
	notifyProvider  providers.NotifyProvider
	spinService     SpinService
	httpServer      *http.Server
	onShutdown      []func()

	gachaHandler  *GachaHandler
	adminHandler  *AdminHandler
	eventsHandler *EventsHandler
}

// Options holds server construction options
type Options struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  *docstore.Store
	// Locker defaults to an in-process keyed mutex when nil.
	Locker userlock.Locker
}

// Router is an alias for gin.Engine for convenience
type Router = gin.Engine

// New creates a new gacha service application
func New(opts Options) *App {
	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	locker := opts.Locker
	if locker == nil {
		locker = userlock.NewKeyedMutex()
	}

	app := &App{
		engine: gin.New(),
		config: opts.Config,
		logger: opts.Logger,
		store:  opts.Store,
		hub:    broadcast.NewHub(16, opts.Logger),
		locker: locker,
	}

	app.gachaHandler = NewGachaHandler(app)
	app.adminHandler = NewAdminHandler(app)
	app.eventsHandler = NewEventsHandler(app, app.hub)

	return app
}

// SetBalanceProvider sets the provider that resolves and rewrites label
// balances. Must be called before RegisterRoutes.
func (a *App) SetBalanceProvider(provider providers.BalanceProvider) {
	a.balanceProvider = provider
}

// SetNotifyProvider sets the provider that announces spin results. Optional.
func (a *App) SetNotifyProvider(provider providers.NotifyProvider) {
	a.notifyProvider = provider
}

// SetSpinService injects a custom SpinService implementation. When unset,
// RegisterRoutes builds the default GachaService.
func (a *App) SetSpinService(svc SpinService) {
	a.spinService = svc
}

// Hub returns the broadcast hub so event sources (the Kafka member feed) can
// publish into it.
func (a *App) Hub() *broadcast.Hub {
	return a.hub
}

// Store returns the document store.
func (a *App) Store() *docstore.Store {
	return a.store
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	// Recovery middleware (must be first)
	a.engine.Use(middleware.Recovery(a.logger))

	// Trace ID middleware
	a.engine.Use(middleware.TraceID())

	// Logging middleware
	a.engine.Use(middleware.Logging(a.logger))

	// CORS middleware if enabled
	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// UseMiddleware adds a custom middleware
func (a *App) UseMiddleware(m gin.HandlerFunc) {
	a.engine.Use(m)
}

// RegisterHealthCheck adds health check endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)
}

func (a *App) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now(),
		"service":     a.config.Environment,
		"store_ready": !a.store.ReadOnly(),
	})
}

// RegisterGachaRoutes registers the gacha API routes
//
// Flow: HTTP Request -> gachaRoutes -> handlers -> GachaService -> providers/store
//
// Routes registered:
//   - POST   /api/gacha/spin                  -> GachaHandler.Spin
//   - GET    /api/gacha/rewards               -> GachaHandler.ListRewards
//   - GET    /api/gacha/history               -> GachaHandler.History
//   - GET    /api/gacha/events                -> EventsHandler.Stream (SSE)
//   - GET    /api/gacha/events/ws             -> EventsHandler.StreamWebSocket
//   - PUT    /api/gacha/admin/cost            -> AdminHandler.SetCost
//   - PUT    /api/gacha/admin/rewards         -> AdminHandler.UpsertReward
//   - DELETE /api/gacha/admin/rewards/:name   -> AdminHandler.DeleteReward
//   - POST   /api/gacha/admin/grants          -> AdminHandler.GrantPoints
func (a *App) RegisterGachaRoutes() {
	if a.balanceProvider == nil {
		a.logger.Fatal().Msg("No balance provider configured. Call SetBalanceProvider() first.")
		return
	}

	if a.spinService == nil {
		a.spinService = NewGachaService(
			a.store,
			a.balanceProvider,
			a.notifyProvider,
			a.hub,
			a.locker,
			a.logger,
		)
	}

	api := a.engine.Group("/api/gacha")
	api.Use(auth.JWTMiddleware(a.config.JWT.Secret, a.logger))
	{
		api.POST("/spin", middleware.Timeout(30*time.Second), a.gachaHandler.Spin)
		api.GET("/rewards", a.gachaHandler.ListRewards)
		api.GET("/history", a.gachaHandler.History)
		api.GET("/events", a.eventsHandler.Stream)
		api.GET("/events/ws", a.eventsHandler.StreamWebSocket)

		admin := api.Group("/admin")
		admin.Use(auth.RequireAdmin(a.logger))
		admin.Use(middleware.Timeout(30 * time.Second))
		{
			admin.PUT("/cost", a.adminHandler.SetCost)
			admin.PUT("/rewards", a.adminHandler.UpsertReward)
			admin.DELETE("/rewards/:name", a.adminHandler.DeleteReward)
			admin.POST("/grants", a.adminHandler.GrantPoints)
		}
	}

	a.logger.Info().Msg("Gacha routes registered: /api/gacha")
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// Group creates a route group
func (a *App) Group(path string, handlers ...gin.HandlerFunc) *gin.RouterGroup {
	return a.engine.Group(path, handlers...)
}

// AuthGroup creates a route group with JWT authentication
func (a *App) AuthGroup(path string) *gin.RouterGroup {
	return a.engine.Group(path, auth.JWTMiddleware(a.config.JWT.Secret, a.logger))
}

// OnShutdown registers a function to be called on shutdown
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Run starts the HTTP server and blocks until an interrupt signal
func (a *App) Run() error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	return a.waitForShutdown()
}

// RunWithContext starts the HTTP server and shuts down when ctx is done
func (a *App) RunWithContext(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.config.Server.Port)

	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return a.shutdown()
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, fn := range a.onShutdown {
		fn()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	a.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() zerolog.Logger {
	return a.logger
}
