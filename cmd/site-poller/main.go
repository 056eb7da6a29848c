// Package main is the entrypoint for the Site Poller.
//
// The poller sweeps every active site on a fixed interval, runs a full
// assessment for each with bounded parallelism, and persists the results
// so the history and trend endpoints have data to serve. A retention
// sweep purges assessments older than the configured window once a day.
//
// It runs in two modes:
//
//   - Inside AWS Lambda (EventBridge schedule), each invocation performs
//     one sweep. The event payload is a scheduler.SweepInput, so manual
//     invocations can target specific sites, cap the batch, or dry-run.
//   - As a long-running container or process, it loops on the configured
//     POLL_INTERVAL with a jittered start until SIGINT/SIGTERM.
//
// This file handles dependency wiring; the sweep logic lives in
// internal/scheduler.
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

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"golang.org/x/sync/errgroup"

	"bloomwatch/internal/assessment"
	"bloomwatch/internal/cache"
	"bloomwatch/internal/catalog"
	"bloomwatch/internal/config"
	"bloomwatch/internal/db"
	"bloomwatch/internal/external"
	"bloomwatch/internal/ingest"
	"bloomwatch/internal/landuse"
	"bloomwatch/internal/metrics"
	"bloomwatch/internal/notify"
	"bloomwatch/internal/risk"
	"bloomwatch/internal/scheduler"
)

// maintenanceCheckInterval is how often the local loop asks the
// maintenance job whether a retention purge is due. The job itself
// throttles actual purges to one per day.
const maintenanceCheckInterval = time.Hour

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("site poller initializing")

	poller, maintenance, err := buildPoller(context.Background(), logger)
	if err != nil {
		logger.Error("site poller initialization failed", "error", err)
		os.Exit(1)
	}

	if isLambdaEnvironment() {
		lambda.Start(newSweepHandler(poller, maintenance, logger))
		return
	}

	if err := runLoop(poller, maintenance, logger); err != nil {
		logger.Error("site poller stopped", "error", err)
		os.Exit(1)
	}
}

// isLambdaEnvironment reports whether the process runs inside the AWS
// Lambda runtime.
func isLambdaEnvironment() bool {
	_, ok := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	return ok
}

// newSweepHandler wraps one sweep per Lambda invocation. Errors propagate
// so EventBridge records the failed invocation.
func newSweepHandler(poller *scheduler.SitePoller, maintenance *scheduler.Maintenance, logger *slog.Logger) func(context.Context, scheduler.SweepInput) (scheduler.SweepReport, error) {
	return func(ctx context.Context, input scheduler.SweepInput) (scheduler.SweepReport, error) {
		report, err := poller.Sweep(ctx, input)
		if err != nil {
			return scheduler.SweepReport{}, err
		}

		maintenance.RunIfDue(ctx)

		logger.InfoContext(ctx, "sweep invocation complete",
			"sites", report.Sites,
			"assessed", report.Assessed,
			"failed", report.Failed,
			"duration", report.Duration,
		)
		return report, nil
	}
}

// runLoop runs the poll cycle and the retention check side by side until
// a shutdown signal arrives.
func runLoop(poller *scheduler.SitePoller, maintenance *scheduler.Maintenance, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return poller.Run(ctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(maintenanceCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				maintenance.RunIfDue(ctx)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("site poller stopped cleanly")
		return nil
	}
	return err
}

// buildPoller wires the poller's dependency graph. The database is
// required: a poller that cannot persist sweeps produces nothing.
func buildPoller(ctx context.Context, logger *slog.Logger) (*scheduler.SitePoller, *scheduler.Maintenance, error) {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	if !cfg.Database.URL.IsSet() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for the site poller")
	}

	cat, err := catalog.Load(cfg.Ingest.CatalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading site catalog: %w", err)
	}

	obsCache, err := cache.New(cache.Config{
		TTL:    cfg.Ingest.CacheTTL,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating observation cache: %w", err)
	}

	land, err := landuse.New(landuse.Config{
		ShapefilePath: cfg.Ingest.ShapefilePath,
		Catalog:       cat,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating land-use source: %w", err)
	}

	var recorder metrics.Recorder = metrics.Noop{}
	if cfg.Observability.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("loading AWS SDK config: %w", err)
		}
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		recorder = metrics.NewCollector(cwClient, logger)
	}

	httpClient := &http.Client{Timeout: cfg.Ingest.RequestTimeout}

	pipelineCfg := ingest.Config{
		Weather: external.NewWeatherClient(httpClient, external.WeatherClientConfig{
			BaseURL:   cfg.Ingest.ForecastBaseURL,
			UserAgent: cfg.Ingest.UserAgent,
			Logger:    logger,
		}),
		Archive: external.NewArchiveClient(httpClient, external.ArchiveClientConfig{
			BaseURL:   cfg.Ingest.ArchiveBaseURL,
			UserAgent: cfg.Ingest.UserAgent,
			Logger:    logger,
		}),
		Thermal: external.NewThermalClient(httpClient, external.ThermalClientConfig{
			ForecastBaseURL: cfg.Ingest.ForecastBaseURL,
			MarineBaseURL:   cfg.Ingest.MarineBaseURL,
			ArchiveBaseURL:  cfg.Ingest.ArchiveBaseURL,
			NASAPowerURL:    cfg.Ingest.NASAPowerURL,
			UserAgent:       cfg.Ingest.UserAgent,
			Logger:          logger,
		}),
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

	pool, err := db.Connect(ctx, cfg.Database.URL.Unmask(), int32(cfg.Database.MaxConns))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		return nil, nil, fmt.Errorf("applying database schema: %w", err)
	}

	siteRepo := db.NewSiteRepository(pool)
	seeded, err := siteRepo.Seed(ctx, cat.Sites())
	if err != nil {
		return nil, nil, fmt.Errorf("seeding site registry: %w", err)
	}

	assessRepo := db.NewAssessmentRepository(pool)

	svc, err := assessment.NewService(assessment.Config{
		Pipeline:    ingest.NewPipeline(pipelineCfg),
		Model:       risk.New(risk.DefaultCalibration()),
		Sites:       siteRepo,
		Assessments: assessRepo,
		Catalog:     cat,
		Notifier:    notify.New(cfg.Webhook, logger),
		Metrics:     recorder,
		Logger:      logger,
		HistoryDays: cfg.Assess.HistoryDays,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating assessment service: %w", err)
	}

	poller, err := scheduler.NewSitePoller(scheduler.SitePollerConfig{
		Runner:      svc,
		Metrics:     recorder,
		Interval:    cfg.Assess.PollInterval,
		Concurrency: cfg.Assess.PollConcurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating site poller: %w", err)
	}

	maintenance := scheduler.NewMaintenance(assessRepo, cfg.Assess.RetentionDays, logger, nil)

	logger.Info("site poller initialized",
		"environment", cfg.Environment,
		"catalog_sites", cat.Len(),
		"seeded", seeded,
		"interval", cfg.Assess.PollInterval,
		"concurrency", cfg.Assess.PollConcurrency,
		"retention_days", cfg.Assess.RetentionDays,
	)

	return poller, maintenance, nil
}
