package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"contrib.go.opencensus.io/integrations/ocsql"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/ticketpulse/ticketpulse/config"
	"github.com/ticketpulse/ticketpulse/internal/database"
	"github.com/ticketpulse/ticketpulse/internal/domain"
	httpHandler "github.com/ticketpulse/ticketpulse/internal/http"
	"github.com/ticketpulse/ticketpulse/internal/http/middleware"
	"github.com/ticketpulse/ticketpulse/internal/repository"
	"github.com/ticketpulse/ticketpulse/internal/service"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/ratelimiter"
	"github.com/ticketpulse/ticketpulse/pkg/tracing"
)

// AppInterface defines the interface for the App
type AppInterface interface {
	Initialize() error
	Start() error
	Shutdown(ctx context.Context) error

	// Getters for app components accessed in tests
	GetConfig() *config.Config
	GetLogger() logger.Logger
	GetMux() *http.ServeMux
	GetDB() *sql.DB
	GetAnalyticsService() domain.AnalyticsService

	// Server status methods
	IsServerCreated() bool
	WaitForServerStart(ctx context.Context) bool

	// Methods for initialization steps
	InitTracing() error
	InitDB() error
	InitRepositories() error
	InitServices() error
	InitHandlers() error

	// Graceful shutdown methods
	SetShutdownTimeout(timeout time.Duration)
	GetActiveRequestCount() int64
	GetShutdownContext() context.Context
}

// App encapsulates the application dependencies and configuration
type App struct {
	config      *config.Config
	logger      logger.Logger
	clock       clockwork.Clock
	db          *sql.DB
	dialect     analytics.Dialect
	stopDBStats func()
	telemetry   *tracing.Telemetry

	// Repositories
	analyticsRepo domain.AnalyticsRepository

	// Services
	textGenerator    domain.TextGenerator
	queryInterpreter *service.QueryInterpreter
	analyticsService domain.AnalyticsService

	// HTTP
	limiter *ratelimiter.RateLimiter
	mux     *http.ServeMux
	server  *http.Server

	// Server synchronization
	serverMu      sync.RWMutex
	serverStarted chan struct{}

	// Graceful shutdown management
	shutdownCtx     context.Context
	shutdownCancel  context.CancelFunc
	activeRequests  int64          // atomic counter for active HTTP requests
	requestWg       sync.WaitGroup // wait group for active requests
	shutdownTimeout time.Duration
}

// AppOption defines a functional option for configuring the App
type AppOption func(*App)

// WithMockDB configures the app to use a mock database
func WithMockDB(db *sql.DB) AppOption {
	return func(a *App) {
		a.db = db
	}
}

// WithLogger sets a custom logger
func WithLogger(logger logger.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// WithClock sets the clock behind the default lookback window and rate limiting
func WithClock(clock clockwork.Clock) AppOption {
	return func(a *App) {
		a.clock = clock
	}
}

// WithTextGenerator replaces the configured LLM backend
func WithTextGenerator(generator domain.TextGenerator) AppOption {
	return func(a *App) {
		a.textGenerator = generator
	}
}

type shutdownCtxKey struct{}

// NewApp creates a new application instance
func NewApp(cfg *config.Config, opts ...AppOption) AppInterface {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	app := &App{
		config:          cfg,
		logger:          logger.NewLoggerWithLevel(cfg.LogLevel),
		clock:           clockwork.NewRealClock(),
		mux:             http.NewServeMux(),
		serverStarted:   make(chan struct{}),
		shutdownCtx:     shutdownCtx,
		shutdownCancel:  shutdownCancel,
		shutdownTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

// InitTracing initializes OpenCensus tracing and metrics exporters
func (a *App) InitTracing() error {
	telemetry, err := tracing.InitTracing(&a.config.Tracing, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.telemetry = telemetry

	if a.config.Tracing.Enabled {
		a.logger.WithField("trace_exporter", a.config.Tracing.TraceExporter).
			WithField("metrics_exporter", a.config.Tracing.MetricsExporter).
			WithField("sampling_rate", a.config.Tracing.SamplingProbability).
			Info("Tracing initialized successfully")
	}

	return nil
}

// InitDB initializes the database connection
func (a *App) InitDB() error {
	dialect, err := analytics.DialectForDriver(a.config.Database.Driver)
	if err != nil {
		return err
	}
	a.dialect = dialect

	// Skip if db already set (e.g., by mock)
	if a.db != nil {
		return nil
	}

	if a.config.Database.Driver == "sqlite3" {
		a.logger.WithField("path", a.config.Database.Path).Info("Opening SQLite database")
	} else {
		a.logger.Info(fmt.Sprintf("Connecting to database %s:%d, user %s, sslmode %s, dbname: %s",
			a.config.Database.Host, a.config.Database.Port, a.config.Database.User,
			a.config.Database.SSLMode, a.config.Database.DBName))
	}

	// If tracing is enabled, wrap the driver
	driverName := a.config.Database.Driver
	if a.config.Tracing.Enabled {
		driverName, err = ocsql.Register(driverName, ocsql.WithAllTraceOptions())
		if err != nil {
			return fmt.Errorf("failed to register opencensus sql driver: %w", err)
		}
		a.logger.Info("Database driver wrapped with OpenCensus tracing")
	}

	db, err := database.Open(driverName, &a.config.Database, a.config.Environment)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// The SQLite file is local, so the table is bootstrapped on start.
	// Postgres schemas are owned by the ingestion pipeline.
	if dialect == analytics.DialectSQLite {
		if err := database.InitializeDatabase(context.Background(), db, dialect); err != nil {
			db.Close()
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}
	}

	if a.config.Tracing.Enabled {
		a.stopDBStats = ocsql.RecordStats(db, 5*time.Second)
	}

	a.db = db
	return nil
}

// InitRepositories initializes all repositories
func (a *App) InitRepositories() error {
	if a.db == nil {
		return fmt.Errorf("database must be initialized before repositories")
	}

	a.analyticsRepo = repository.NewAnalyticsRepository(a.db, a.dialect, a.logger)
	return nil
}

// InitServices initializes all application services
func (a *App) InitServices() error {
	if a.analyticsRepo == nil {
		return fmt.Errorf("repositories must be initialized before services")
	}

	if a.textGenerator == nil {
		generator, err := a.newTextGenerator()
		if err != nil {
			return err
		}
		a.textGenerator = generator
	}

	resolver, err := analytics.NewFieldResolver(a.dialect)
	if err != nil {
		return fmt.Errorf("failed to build field resolver: %w", err)
	}

	analyticsCfg := a.config.Analytics
	postprocessor := analytics.NewPostprocessor(analyticsCfg.DefaultDaysRange, analyticsCfg.MaxRows, a.clock)
	compiler := analytics.NewCompiler(resolver, analyticsCfg.DefaultDaysRange, analyticsCfg.MaxRows, analytics.WithClock(a.clock))

	a.queryInterpreter = service.NewQueryInterpreter(a.textGenerator, postprocessor, a.logger)
	a.analyticsService = service.NewAnalyticsService(service.AnalyticsServiceConfig{
		Interpreter:   a.queryInterpreter,
		Repository:    a.analyticsRepo,
		Compiler:      compiler,
		SQLTimeout:    analyticsCfg.SQLTimeout,
		SummaryLocale: analyticsCfg.SummaryLocale,
		Logger:        a.logger,
	})

	return nil
}

// newTextGenerator builds the LLM backend selected by LLM_PROVIDER
func (a *App) newTextGenerator() (domain.TextGenerator, error) {
	llm := a.config.LLM

	switch llm.Provider {
	case "", service.ProviderOllama:
		a.logger.WithField("model", llm.OllamaModel).WithField("base_url", llm.OllamaBaseURL).Info("Using Ollama text generator")
		return service.NewOllamaService(service.OllamaServiceConfig{
			BaseURL:     llm.OllamaBaseURL,
			Model:       llm.OllamaModel,
			Timeout:     llm.Timeout,
			MaxAttempts: llm.MaxAttempts,
			Logger:      a.logger,
		}), nil
	case service.ProviderAnthropic:
		a.logger.WithField("model", llm.AnthropicModel).Info("Using Anthropic text generator")
		return service.NewAnthropicService(service.AnthropicServiceConfig{
			APIKey:      llm.AnthropicAPIKey,
			Model:       llm.AnthropicModel,
			BaseURL:     llm.AnthropicBaseURL,
			Timeout:     llm.Timeout,
			MaxAttempts: llm.MaxAttempts,
			Logger:      a.logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llm.Provider)
	}
}

// InitHandlers initializes all HTTP handlers and routes
func (a *App) InitHandlers() error {
	if a.analyticsService == nil {
		return fmt.Errorf("services must be initialized before handlers")
	}

	// Create a new ServeMux to avoid route conflicts on restart
	a.mux = http.NewServeMux()

	if a.limiter != nil {
		a.limiter.Stop()
		a.limiter = nil
	}
	if perMinute := a.config.RateLimit.RequestsPerMinute; perMinute > 0 {
		a.limiter = ratelimiter.New(a.clock, perMinute, time.Minute)
		a.logger.WithField("requests_per_minute", perMinute).Info("Rate limiting enabled")
	}

	analyticsHandler := httpHandler.NewAnalyticsHandler(a.analyticsService, a.limiter, a.logger)
	healthHandler := httpHandler.NewHealthHandler(a.db, a.config.Version, a.logger)

	analyticsHandler.RegisterRoutes(a.mux)
	healthHandler.RegisterRoutes(a.mux)

	return nil
}

// Handler returns the mux wrapped in the middleware chain
func (a *App) Handler() http.Handler {
	var handler http.Handler = a.mux

	// Apply graceful shutdown middleware first (innermost)
	handler = a.gracefulShutdownMiddleware(handler)

	if a.config.Tracing.Enabled {
		handler = middleware.TracingMiddleware(handler)
	}

	return middleware.CORSMiddleware(handler)
}

// Start starts the HTTP server
func (a *App) Start() error {
	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	a.logger.WithField("address", addr).Info(fmt.Sprintf("Server starting on %s", addr))

	a.serverMu.Lock()
	if a.serverStarted != nil {
		select {
		case <-a.serverStarted:
		default:
			close(a.serverStarted)
		}
	}
	a.serverStarted = make(chan struct{})

	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverStarted := a.serverStarted
	server := a.server
	a.serverMu.Unlock()

	close(serverStarted)

	if a.telemetry != nil {
		a.telemetry.StartMetricsServer()
	}

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Starting graceful shutdown...")

	// Signal shutdown to all components
	a.shutdownCancel()

	a.serverMu.RLock()
	server := a.server
	a.serverMu.RUnlock()

	shutdownTimeout := a.shutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < shutdownTimeout {
			shutdownTimeout = max(remaining-time.Second, 0)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.WithField("active_requests", a.getActiveRequestCount()).
		WithField("timeout", shutdownTimeout.String()).
		Info("Shutting down HTTP and metrics servers")

	g, gctx := errgroup.WithContext(shutdownCtx)
	if server != nil {
		g.Go(func() error {
			if err := server.Shutdown(gctx); err != nil {
				return fmt.Errorf("failed to shut down HTTP server: %w", err)
			}
			return a.waitForRequests(gctx)
		})
	}
	if a.telemetry != nil {
		g.Go(func() error {
			return a.telemetry.Shutdown(gctx)
		})
	}
	shutdownErr := g.Wait()

	if cleanupErr := a.cleanupResources(); cleanupErr != nil {
		shutdownErr = errors.Join(shutdownErr, cleanupErr)
	}

	if shutdownErr != nil {
		a.logger.WithField("error", shutdownErr.Error()).Error("Graceful shutdown completed with errors")
		return shutdownErr
	}

	a.logger.Info("Graceful shutdown completed successfully")
	return nil
}

// waitForRequests blocks until tracked requests finish or ctx expires
func (a *App) waitForRequests(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.requestWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		a.logger.WithField("active_requests", a.getActiveRequestCount()).Warn("Shutdown timeout reached, forcing shutdown")
		return fmt.Errorf("shutdown timeout exceeded: %w", ctx.Err())
	}
}

// cleanupResources stops the limiter and closes the database
func (a *App) cleanupResources() error {
	a.logger.Info("Cleaning up resources...")

	if a.limiter != nil {
		a.limiter.Stop()
	}

	if a.stopDBStats != nil {
		a.stopDBStats()
	}

	if a.db != nil {
		a.logger.Info("Closing database connection")
		if err := a.db.Close(); err != nil {
			a.logger.WithField("error", err.Error()).Error("Error closing database connection")
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	a.logger.Info("Resource cleanup completed")
	return nil
}

// IsServerCreated safely checks if the server has been created
func (a *App) IsServerCreated() bool {
	a.serverMu.RLock()
	defer a.serverMu.RUnlock()
	return a.server != nil
}

// WaitForServerStart waits for the server to be created and initialized.
// Returns true if the server started successfully, false if context expired.
func (a *App) WaitForServerStart(ctx context.Context) bool {
	a.serverMu.RLock()
	started := a.serverStarted
	a.serverMu.RUnlock()

	if started == nil {
		a.logger.Error("serverStarted channel is nil - server initialization error")
		<-ctx.Done()
		return false
	}

	select {
	case <-started:
		return a.IsServerCreated()
	case <-ctx.Done():
		return false
	}
}

// Initialize sets up all components of the application
func (a *App) Initialize() error {
	a.logger.WithField("version", a.config.Version).Info("Starting TicketPulse analytics")

	if err := a.InitTracing(); err != nil {
		return err
	}

	if err := a.InitDB(); err != nil {
		return err
	}

	if err := a.InitRepositories(); err != nil {
		return err
	}

	if err := a.InitServices(); err != nil {
		return err
	}

	if err := a.InitHandlers(); err != nil {
		return err
	}

	a.logger.Info("Application successfully initialized")
	return nil
}

// GetConfig returns the app's configuration
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetLogger returns the app's logger
func (a *App) GetLogger() logger.Logger {
	return a.logger
}

// GetMux returns the app's HTTP multiplexer
func (a *App) GetMux() *http.ServeMux {
	return a.mux
}

// GetDB returns the app's database connection
func (a *App) GetDB() *sql.DB {
	return a.db
}

// GetAnalyticsService returns the analytics orchestrator
func (a *App) GetAnalyticsService() domain.AnalyticsService {
	return a.analyticsService
}

// incrementActiveRequests atomically increments the active request counter
func (a *App) incrementActiveRequests() {
	atomic.AddInt64(&a.activeRequests, 1)
	a.requestWg.Add(1)
}

// decrementActiveRequests atomically decrements the active request counter
func (a *App) decrementActiveRequests() {
	atomic.AddInt64(&a.activeRequests, -1)
	a.requestWg.Done()
}

func (a *App) getActiveRequestCount() int64 {
	return atomic.LoadInt64(&a.activeRequests)
}

// GetActiveRequestCount returns the current number of active requests
func (a *App) GetActiveRequestCount() int64 {
	return a.getActiveRequestCount()
}

// SetShutdownTimeout sets the timeout for graceful shutdown
func (a *App) SetShutdownTimeout(timeout time.Duration) {
	a.shutdownTimeout = timeout
	a.logger.WithField("shutdown_timeout", timeout.String()).Info("Shutdown timeout configured")
}

// GetShutdownContext returns the shutdown context for components that need to watch for shutdown
func (a *App) GetShutdownContext() context.Context {
	return a.shutdownCtx
}

func (a *App) isShuttingDown() bool {
	select {
	case <-a.shutdownCtx.Done():
		return true
	default:
		return false
	}
}

// gracefulShutdownMiddleware tracks active requests and rejects new ones
// once shutdown has started
func (a *App) gracefulShutdownMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isShuttingDown() {
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}

		a.incrementActiveRequests()
		defer a.decrementActiveRequests()

		ctx := context.WithValue(r.Context(), shutdownCtxKey{}, a.shutdownCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Ensure App implements AppInterface
var _ AppInterface = (*App)(nil)
