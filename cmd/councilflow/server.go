package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/api/handlers"
	"github.com/BaSui01/councilflow/config"
	"github.com/BaSui01/councilflow/conversation"
	"github.com/BaSui01/councilflow/council"
	"github.com/BaSui01/councilflow/internal/metrics"
	"github.com/BaSui01/councilflow/internal/server"
	"github.com/BaSui01/councilflow/internal/telemetry"
	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/llm/factory"
	"github.com/BaSui01/councilflow/llm/retry"
)

// =============================================================================
// Server
// =============================================================================

// Server wires the council engine, conversation service and HTTP surface
// together and manages their lifecycle.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	otel       *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	// Deliberation pipeline
	gateway *llm.Gateway
	engine  *council.Engine
	store   conversation.Store
	service *conversation.Service

	// Handlers
	healthHandler       *handlers.HealthHandler
	councilHandler      *handlers.CouncilHandler
	conversationHandler *handlers.ConversationHandler

	metricsCollector *metrics.Collector

	hotReloadManager *config.HotReloadManager
	configAPIHandler *config.ConfigAPIHandler

	rateLimiterCancel context.CancelFunc
}

// NewServer creates the server. The configuration must already be validated
// and its council roster resolved.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		otel:       otel,
	}
}

// =============================================================================
// Startup
// =============================================================================

// Start brings up the deliberation pipeline, both HTTP servers and the hot
// reload watcher. It returns once everything is listening.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("councilflow", s.logger)

	if err := s.initCouncil(); err != nil {
		return fmt.Errorf("failed to init council: %w", err)
	}

	s.initHandlers()

	if err := s.initHotReloadManager(); err != nil {
		return fmt.Errorf("failed to init hot reload manager: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Int("council_size", len(s.cfg.Council.Members)),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	return nil
}

// =============================================================================
// Pipeline construction
// =============================================================================

// initCouncil builds registry, gateway, engine, store and service.
func (s *Server) initCouncil() error {
	registry, err := factory.NewRegistryFromConfig(s.cfg.LLM.Registry(), s.logger)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}

	// Pre-parse every configured model identifier once.
	refs := make(map[string]llm.ModelRef)
	models := append([]string{}, s.cfg.Council.Members...)
	models = append(models, s.cfg.Council.Chairman, s.cfg.Council.TitleModel)
	for _, model := range models {
		if model == "" {
			continue
		}
		ref, err := llm.ParseModelRef(model)
		if err != nil {
			return fmt.Errorf("invalid model %q: %w", model, err)
		}
		refs[model] = ref
	}

	gatewayOpts := []llm.GatewayOption{
		llm.WithTimeout(s.cfg.LLM.Timeout),
		llm.WithMaxTokens(s.cfg.LLM.MaxTokens),
		llm.WithTemperature(float32(s.cfg.LLM.Temperature)),
		llm.WithLogger(s.logger),
	}
	if s.cfg.LLM.MaxRetries > 0 {
		policy := retry.DefaultRetryPolicy()
		policy.MaxRetries = s.cfg.LLM.MaxRetries
		policy.RetryIf = factory.RetryableUpstream
		gatewayOpts = append(gatewayOpts, llm.WithRetryer(retry.NewBackoffRetryer(policy, s.logger)))
	}

	s.gateway = llm.NewGateway(registry, factory.Builder(s.cfg.LLM.Providers), refs, gatewayOpts...)

	s.engine, err = council.NewEngine(s.gateway, s.cfg.Council.Members, s.cfg.Council.Chairman,
		council.WithPerCallTimeout(s.cfg.Council.PerCallTimeout),
		council.WithLogger(s.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to build council engine: %w", err)
	}

	s.store, err = conversation.NewStore(s.cfg.Conversation.Store)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	if ds, ok := s.store.(*conversation.DatabaseStore); ok {
		if err := ds.AutoMigrate(); err != nil {
			s.logger.Error("Archive schema migration failed", zap.Error(err))
		}
	}

	titler := conversation.NewTitler(s.gateway, s.cfg.Council.TitleModel, s.logger)
	s.service = conversation.NewService(s.store, s.engine,
		conversation.WithTitler(titler),
		conversation.WithServiceLogger(s.logger),
	)

	return nil
}

// initHandlers builds the HTTP handlers on top of the pipeline.
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewStoreHealthCheck("store", s.store.Ping))
	s.healthHandler.RegisterCheck(handlers.NewProviderHealthCheck("providers", s.gateway.HealthCheck))

	s.councilHandler = handlers.NewCouncilHandler(s.service, s.logger)
	s.councilHandler.SetWSOrigins(s.cfg.Server.CORSOrigins)

	s.conversationHandler = handlers.NewConversationHandler(s.store, s.logger)

	s.logger.Info("Handlers initialized")
}

// initHotReloadManager starts watching the config file for changes.
func (s *Server) initHotReloadManager() error {
	opts := []config.HotReloadOption{
		config.WithHotReloadLogger(s.logger),
	}

	if s.configPath != "" {
		opts = append(opts, config.WithConfigPath(s.configPath))
	}

	s.hotReloadManager = config.NewHotReloadManager(s.cfg, opts...)

	s.hotReloadManager.OnChange(func(change config.ConfigChange) {
		s.logger.Info("Configuration changed",
			zap.String("path", change.Path),
			zap.String("source", change.Source),
			zap.Bool("requires_restart", change.RequiresRestart),
		)
	})

	s.hotReloadManager.OnReload(func(oldConfig, newConfig *config.Config) {
		s.logger.Info("Configuration reloaded")
		s.cfg = newConfig
	})

	ctx := context.Background()
	if err := s.hotReloadManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hot reload manager: %w", err)
	}

	s.configAPIHandler = config.NewConfigAPIHandler(s.hotReloadManager, s.cfg.Server.CORSOrigins...)

	return nil
}

// =============================================================================
// HTTP server
// =============================================================================

// startHTTPServer registers routes, wraps them in the middleware chain and
// starts the public listener.
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// Health and version
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// Council deliberation
	mux.HandleFunc("POST /api/v1/council/ask", s.councilHandler.HandleAsk)
	mux.HandleFunc("POST /api/v1/council/ask/stream", s.councilHandler.HandleAskStream)
	mux.HandleFunc("GET /api/v1/council/ws", s.councilHandler.HandleWS)

	// Conversation archive
	mux.HandleFunc("GET /api/v1/conversations", s.conversationHandler.HandleList)
	mux.HandleFunc("POST /api/v1/conversations", s.conversationHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/conversations/{id}", s.conversationHandler.HandleGet)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", s.conversationHandler.HandleDelete)

	// Token exchange for browser clients
	mux.HandleFunc("POST /api/v1/auth/token", s.handleToken)

	// Config management API. A sensitive admin surface: wrap each route in an
	// explicit auth check instead of relying on the global chain's ordering.
	if s.configAPIHandler != nil {
		configAuth := config.NewConfigAPIMiddleware(s.configAPIHandler, s.cfg.Auth.APIKey)
		mux.HandleFunc("/api/v1/config", configAuth.RequireAuth(s.configAPIHandler.HandleConfig))
		mux.HandleFunc("/api/v1/config/reload", configAuth.RequireAuth(s.configAPIHandler.HandleReload))
		mux.HandleFunc("/api/v1/config/fields", configAuth.RequireAuth(s.configAPIHandler.HandleFields))
		mux.HandleFunc("/api/v1/config/changes", configAuth.RequireAuth(s.configAPIHandler.HandleChanges))
		s.logger.Info("Configuration API registered with authentication")
	}

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares,
		CORS(s.cfg.Server.CORSOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		Auth(s.cfg.Auth, skipAuthPaths, s.logger),
	)
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// Metrics server
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// Token endpoint
// =============================================================================

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleToken mints a short-lived bearer token for clients already holding
// the API key. Browsers cannot attach headers to WebSocket handshakes, so
// they exchange the key here and pass the token in the api_key query
// parameter instead.
//
// @Summary Issue a short-lived bearer token
// @Tags auth
// @Produce json
// @Success 200 {object} handlers.Response
// @Router /api/v1/auth/token [post]
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Auth.JWTSecret == "" {
		handlers.WriteErrorMessage(w, http.StatusBadRequest, llm.ErrInvalidRequest,
			"token signing is not configured", s.logger)
		return
	}

	token, expiresAt, err := IssueToken(s.cfg.Auth, "api-client")
	if err != nil {
		handlers.WriteErrorMessage(w, http.StatusInternalServerError, llm.ErrUpstreamError,
			"failed to sign token", s.logger)
		return
	}

	handlers.WriteSuccess(w, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

// =============================================================================
// Shutdown
// =============================================================================

// WaitForShutdown blocks until a termination signal arrives, then shuts
// everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown stops all components in reverse dependency order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.hotReloadManager != nil {
		if err := s.hotReloadManager.Stop(); err != nil {
			s.logger.Error("Hot reload manager shutdown error", zap.Error(err))
		}
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.otel != nil {
		otelCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.otel.Shutdown(otelCtx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
		cancel()
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Conversation store close error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
