// Package main is the entry point for the BloomWatch API server.
//
// The cold start wires the full assessment stack: the site catalog, the
// observation cache, the land-use source, the upstream Open-Meteo and
// NASA POWER clients, the optional Postgres registry, the optional SQS
// job queue, and the risk model. Everything converges on the assessment
// service, which the HTTP handlers expose under /v1.
//
// Postgres and SQS are optional: without a DATABASE_URL the API serves
// on-demand assessments from the bundled catalog, and without an
// SQS_ASSESSMENTS URL async submission returns 503. The server runs as a
// standard HTTP listener with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/api/handlers"
	"bloomwatch/internal/assessment"
	"bloomwatch/internal/cache"
	"bloomwatch/internal/catalog"
	"bloomwatch/internal/config"
	"bloomwatch/internal/core"
	"bloomwatch/internal/db"
	"bloomwatch/internal/external"
	"bloomwatch/internal/ingest"
	"bloomwatch/internal/landuse"
	"bloomwatch/internal/metrics"
	"bloomwatch/internal/notify"
	"bloomwatch/internal/queue"
	"bloomwatch/internal/risk"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("bloomwatch API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires the dependency graph and mounts the routes. Resources
// needing teardown (cache, database pool) are registered as closers on the
// server so Shutdown releases them in reverse order.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	// Site catalog: the bundled registry, or an operator-supplied YAML.
	cat, err := catalog.Load(cfg.Ingest.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading site catalog: %w", err)
	}
	logger.Info("site catalog loaded", "sites", cat.Len(), "path", cfg.Ingest.CatalogPath)

	obsCache, err := cache.New(cache.Config{
		TTL:    cfg.Ingest.CacheTTL,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating observation cache: %w", err)
	}
	srv.RegisterCloser(obsCache)

	land, err := landuse.New(landuse.Config{
		ShapefilePath: cfg.Ingest.ShapefilePath,
		Catalog:       cat,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating land-use source: %w", err)
	}

	// Telemetry. Without CloudWatch access everything records into a noop.
	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.Observability.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS SDK config: %w", err)
		}
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		recorder = metrics.NewCollector(cwClient, logger)
	}
	srv.Metrics = recorder

	// Upstream providers share one HTTP client; per-provider circuit
	// breakers live inside the clients.
	httpClient := &http.Client{Timeout: cfg.Ingest.RequestTimeout}

	weather := external.NewWeatherClient(httpClient, external.WeatherClientConfig{
		BaseURL:   cfg.Ingest.ForecastBaseURL,
		UserAgent: cfg.Ingest.UserAgent,
		Logger:    logger,
	})
	archive := external.NewArchiveClient(httpClient, external.ArchiveClientConfig{
		BaseURL:   cfg.Ingest.ArchiveBaseURL,
		UserAgent: cfg.Ingest.UserAgent,
		Logger:    logger,
	})
	thermal := external.NewThermalClient(httpClient, external.ThermalClientConfig{
		ForecastBaseURL: cfg.Ingest.ForecastBaseURL,
		MarineBaseURL:   cfg.Ingest.MarineBaseURL,
		ArchiveBaseURL:  cfg.Ingest.ArchiveBaseURL,
		NASAPowerURL:    cfg.Ingest.NASAPowerURL,
		UserAgent:       cfg.Ingest.UserAgent,
		Logger:          logger,
	})

	pipelineCfg := ingest.Config{
		Weather: weather,
		Archive: archive,
		Thermal: thermal,
		Land:    land,
		Catalog: cat,
		Cache:   obsCache,
		Metrics: recorder,
		Logger:  logger,
	}
	if cfg.Ingest.DensityURL != "" {
		pipelineCfg.Density = external.NewDensityClient(httpClient, external.DensityClientConfig{
			EndpointURL: cfg.Ingest.DensityURL,
			UserAgent:   cfg.Ingest.UserAgent,
			Logger:      logger,
		})
	}
	pipeline := ingest.NewPipeline(pipelineCfg)

	svcCfg := assessment.Config{
		Pipeline:    pipeline,
		Model:       risk.New(risk.DefaultCalibration()),
		Catalog:     cat,
		Notifier:    notify.New(cfg.Webhook, logger),
		Metrics:     recorder,
		Logger:      logger,
		HistoryDays: cfg.Assess.HistoryDays,
	}

	// Postgres registry, when configured.
	if cfg.Database.URL.IsSet() {
		pool, err := db.Connect(ctx, cfg.Database.URL.Unmask(), int32(cfg.Database.MaxConns))
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		srv.RegisterCloser(closerFunc(func() error {
			pool.Close()
			return nil
		}))

		if err := db.EnsureSchema(ctx, pool); err != nil {
			return nil, fmt.Errorf("applying database schema: %w", err)
		}

		siteRepo := db.NewSiteRepository(pool)
		seeded, err := siteRepo.Seed(ctx, cat.Sites())
		if err != nil {
			return nil, fmt.Errorf("seeding site registry: %w", err)
		}
		logger.Info("site registry seeded", "inserted", seeded)

		svcCfg.Sites = siteRepo
		svcCfg.Assessments = db.NewAssessmentRepository(pool)
		srv.HealthProbes = append(srv.HealthProbes, db.NewProbe(pool))
	} else {
		logger.Warn("no DATABASE_URL configured; persistence and history endpoints degrade")
	}

	// Async job queue, when configured.
	var publisher *queue.Publisher
	if cfg.AWS.AssessQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS SDK config: %w", err)
		}
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		publisher = queue.NewPublisher(sqsClient, cfg.AWS, logger)
		srv.HealthProbes = append(srv.HealthProbes, queue.NewProbe(sqsClient, cfg.AWS))
	} else {
		publisher = queue.NewPublisher(nil, cfg.AWS, logger)
	}

	svc, err := assessment.NewService(svcCfg)
	if err != nil {
		return nil, fmt.Errorf("creating assessment service: %w", err)
	}

	srv.Limiter = core.NewMemoryRateLimiter(cfg.Security.RateLimitMax, cfg.Security.RateLimitWindow)

	sitesHandler := handlers.NewSitesHandler(svc, logger)
	assessHandler := handlers.NewAssessmentsHandler(svc, publisher, srv.Validator, logger)
	gridHandler := handlers.NewGridHandler(thermal, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		sitesHandler.RegisterRoutes,
		gridHandler.RegisterRoutes,
		func(r chi.Router) {
			// Assessments call out to every upstream provider, so they
			// sit behind the API key and the per-key rate limit.
			r.Group(func(r chi.Router) {
				r.Use(srv.RequireAPIKey)
				r.Use(srv.RateLimit("assessments"))
				assessHandler.RegisterRoutes(r)
			})
		},
	)

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the listener and blocks until a shutdown signal or a
// server error, then drains in-flight requests and releases resources.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// closerFunc adapts a teardown function to io.Closer for RegisterCloser.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }
