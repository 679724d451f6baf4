// Copyright (C) 2025 Ezaz Ahamad (ezazahamad2003@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gateway assembles the streaming completion gateway service.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the completion gateway with model fallback,
// the embedded chat store, optional blob storage, and observability
// infrastructure.
//
// # Deployment Integration
//
// The service supports dependency injection via extensions.ServiceOptions,
// letting hosted deployments provide custom implementations of:
//   - AuthProvider: admin authentication (OIDC, API-key stores)
//
// # Usage
//
// Local (uses no-op defaults):
//
//	cfg := gateway.Config{Port: 8000, OpenAIAPIKey: key}
//	svc, err := gateway.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// Hosted (with custom implementations):
//
//	opts := &extensions.ServiceOptions{
//	    AuthProvider: oidcProvider,
//	}
//	svc, err := gateway.New(cfg, opts)
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ezazahamad2003/founder-llm/pkg/extensions"
	"github.com/ezazahamad2003/founder-llm/services/gateway/blobstore"
	"github.com/ezazahamad2003/founder-llm/services/gateway/handlers"
	"github.com/ezazahamad2003/founder-llm/services/gateway/middleware"
	"github.com/ezazahamad2003/founder-llm/services/gateway/observability"
	"github.com/ezazahamad2003/founder-llm/services/gateway/routes"
	"github.com/ezazahamad2003/founder-llm/services/gateway/store"
	"github.com/ezazahamad2003/founder-llm/services/gateway/telemetry"
	"github.com/ezazahamad2003/founder-llm/services/llm"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the gateway service.
//
// # Description
//
// Service abstracts the gateway lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or encounters a
	//     fatal error
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Assumptions
	//
	//   - Caller will not modify the router
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds gateway service configuration options.
//
// # Description
//
// Config centralizes all configuration for the gateway service. Values
// can be populated from environment variables, config files, or
// programmatically for testing.
//
// # Required Fields
//
//   - OpenAIAPIKey: credential for the upstream provider
//
// # Optional Fields
//
// Everything else has defaults applied by New().
//
// # Examples
//
//	// Minimal config
//	cfg := Config{OpenAIAPIKey: key}
//
//	// Full configuration
//	cfg := Config{
//	    Port:           8000,
//	    DataDir:        "/var/lib/founder-llm",
//	    GCSBucket:      "founder-files",
//	    GCSCredentials: "/etc/founder/sa.json",
//	    AllowedOrigins: "http://localhost:3000,https://app.example.com",
//	    AdminToken:     adminSecret,
//	    OpenAIAPIKey:   key,
//	    EnableMetrics:  true,
//	}
type Config struct {
	// Port is the HTTP server port. Default: 8000
	Port int

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// OTelEndpoint overrides the OTLP trace collector endpoint.
	// Default: OTEL_EXPORTER_OTLP_ENDPOINT env var or "localhost:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus /metrics endpoint and the
	// streaming metric collectors.
	EnableMetrics bool

	// DataDir is the directory for the embedded chat store.
	// Default: "./data/gateway"
	DataDir string

	// GCSBucket is the bucket for uploaded documents.
	// If empty, file upload endpoints respond 503.
	GCSBucket string

	// GCSCredentials is the path to the service account key file.
	GCSCredentials string

	// AllowedOrigins is the comma-separated CORS allowlist.
	// Default: "http://localhost:3000"
	AllowedOrigins string

	// AdminToken guards the /v1/admin routes. When empty and no
	// AuthProvider is injected, admin routes stay open for local
	// single-user use.
	AdminToken string

	// OpenAIAPIKey is the upstream provider credential. Required.
	OpenAIAPIKey string

	// OpenAIBaseURL overrides the upstream API base URL.
	// Default: "https://api.openai.com/v1"
	OpenAIBaseURL string

	// DefaultModel is used when a request names no model.
	// Default: "gpt-5"
	DefaultModel string

	// FallbackModels are tried in order after the requested model fails.
	// Default: ["gpt-4o", "gpt-4o-mini"]
	FallbackModels []string

	// ProbeModel is the model the connectivity probe targets.
	// Default: DefaultModel
	ProbeModel string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Fields
//
//   - config: Service configuration
//   - opts: Extension options for hosted deployments
//   - router: Gin HTTP engine
//   - store: Embedded chat store
//   - blobs: Blob storage client (may be nil)
//   - gateway: Completion gateway with model fallback
//   - metrics: OTel metric instruments (nil when metrics disabled)
//   - sizeReg: Store size gauge registration
//   - telemetryShutdown: Flushes exporters on exit
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config            Config
	opts              extensions.ServiceOptions
	router            *gin.Engine
	store             *store.Store
	blobs             *blobstore.Client
	gateway           *llm.Gateway
	metrics           *telemetry.Metrics
	sizeReg           metric.Registration
	telemetryShutdown func(context.Context) error
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a gateway Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and metrics
//  3. Opens the embedded chat store
//  4. Creates the blob storage client if a bucket is configured
//  5. Creates the completion gateway
//  6. Resolves the admin auth provider
//  7. Sets up HTTP routes
//
// If opts is nil, DefaultOptions() is used (no-op implementations).
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//   - opts: Extension options for hosted deployments. May be nil.
//
// # Outputs
//
//   - Service: Ready-to-run gateway service
//   - error: Non-nil if initialization fails
//
// # Limitations
//
//   - Blob storage failure is non-fatal; file endpoints degrade to 503
//
// # Assumptions
//
//   - The data directory is writable
//   - The OTel collector is reachable if tracing is configured
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	// Apply extension options (use defaults if nil)
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	// Initialize OpenTelemetry tracing and metrics
	if err := s.initTelemetry(); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Initialize Prometheus metrics for streaming
	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for streaming")
	}

	// Open the embedded chat store
	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open chat store: %w", err)
	}

	// Initialize blob storage (optional)
	if err := s.initBlobStore(); err != nil {
		slog.Warn("Blob storage initialization failed, file endpoints disabled",
			"error", err)
		// Not fatal - continue without blob storage
	}

	// Initialize the completion gateway
	gw, err := llm.New(llm.Config{
		APIKey:         s.config.OpenAIAPIKey,
		BaseURL:        s.config.OpenAIBaseURL,
		DefaultModel:   s.config.DefaultModel,
		FallbackModels: s.config.FallbackModels,
		ProbeModel:     s.config.ProbeModel,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize completion gateway: %w", err)
	}
	s.gateway = gw

	// Setup HTTP router
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting gateway server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/gateway"
	}
	if cfg.AllowedOrigins == "" {
		cfg.AllowedOrigins = "http://localhost:3000"
	}
	// Model defaults live in llm.New; repeating them here would let the
	// two drift apart.
	return cfg
}

// initTelemetry initializes OpenTelemetry tracing and metrics export.
func (s *service) initTelemetry() error {
	tcfg := telemetry.DefaultConfig()
	if s.config.OTelEndpoint != "" {
		tcfg.OTLPEndpoint = s.config.OTelEndpoint
	}
	if !s.config.EnableMetrics {
		tcfg.MetricExporter = "none"
	}

	shutdown, err := telemetry.Init(context.Background(), tcfg)
	if err != nil {
		return err
	}
	s.telemetryShutdown = shutdown

	if s.config.EnableMetrics {
		meter := otel.Meter("founder.gateway")
		metrics, err := telemetry.NewMetrics(meter)
		if err != nil {
			return fmt.Errorf("create metric instruments: %w", err)
		}
		s.metrics = metrics
	}

	return nil
}

// initStore opens the embedded BadgerDB chat store.
func (s *service) initStore() error {
	cfg := store.DefaultConfig()
	cfg.Path = s.config.DataDir

	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	s.store = st

	// Export store size as a gauge once metrics are up
	if s.metrics != nil {
		reg, err := s.metrics.RegisterStoreSize(otel.Meter("founder.gateway"), st.Size)
		if err != nil {
			slog.Warn("Failed to register store size gauge", "error", err)
		} else {
			s.sizeReg = reg
		}
	}

	slog.Info("Chat store opened", "path", s.config.DataDir)
	return nil
}

// initBlobStore initializes the GCS client for document uploads.
//
// Returns nil without a client when no bucket is configured; file
// endpoints then respond 503.
func (s *service) initBlobStore() error {
	if s.config.GCSBucket == "" {
		slog.Info("Blob storage not configured, file endpoints disabled")
		return nil
	}

	client, err := blobstore.NewClient(context.Background(),
		s.config.GCSBucket, s.config.GCSCredentials)
	if err != nil {
		return err
	}
	s.blobs = client

	slog.Info("Blob storage initialized", "bucket", s.config.GCSBucket)
	return nil
}

// adminAuthProvider resolves the provider guarding /v1/admin routes.
//
// An injected provider takes precedence. A configured AdminToken upgrades
// the default no-op provider to a static-token check; with neither, admin
// routes stay open for local single-user use.
func (s *service) adminAuthProvider() extensions.AuthProvider {
	provider := s.opts.AuthProvider
	if provider == nil {
		provider = &extensions.NopAuthProvider{}
	}

	_, isNop := provider.(*extensions.NopAuthProvider)
	if isNop && s.config.AdminToken != "" {
		static, err := extensions.NewStaticTokenProvider(s.config.AdminToken)
		if err != nil {
			slog.Warn("Invalid admin token, keeping default provider", "error", err)
			return provider
		}
		return static
	}

	return provider
}

// initRouter sets up the Gin HTTP router with middleware and all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("founder-llm-gateway"))
	s.router.Use(middleware.CORS(middleware.SplitOrigins(s.config.AllowedOrigins)))
	if s.metrics != nil {
		s.router.Use(telemetry.MetricsMiddleware(s.metrics))
	}

	// The handlers take the BlobStore interface; a nil *Client must stay
	// a nil interface value.
	var blobs handlers.BlobStore
	if s.blobs != nil {
		blobs = s.blobs
	}

	routes.SetupRoutes(s.router, s.store, s.gateway, blobs, s.metrics,
		s.adminAuthProvider())

	if s.config.EnableMetrics {
		if handler := telemetry.MetricsHandler(); handler != nil {
			s.router.GET("/metrics", gin.WrapH(handler))
		}
	}
}

// cleanup releases all resources held by the service.
//
// Called when Run() exits or on initialization failure. Safe to call
// with partially initialized fields.
func (s *service) cleanup() {
	if s.sizeReg != nil {
		if err := s.sizeReg.Unregister(); err != nil {
			slog.Warn("Store size gauge unregister error", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Chat store close error", "error", err)
		}
	}

	if s.blobs != nil {
		if err := s.blobs.Close(); err != nil {
			slog.Warn("Blob storage close error", "error", err)
		}
	}

	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			slog.Error("Telemetry shutdown error", "error", err)
		}
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
