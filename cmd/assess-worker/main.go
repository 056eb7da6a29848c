// Package main is the entrypoint for the Assess Worker Lambda function.
//
// The worker consumes assessment jobs from the SQS queue that the API
// fills on async POST /v1/assessments submissions. Each record carries an
// AssessmentJob; the worker runs the full pipeline-model-forecast chain
// for it, persists the result when the job asks for it, and reports
// per-record failures through the Lambda partial batch response so SQS
// redrives only what actually failed.
//
// Cold start wires the same assessment stack as the API server, minus the
// HTTP chassis. The database is required here: a worker that cannot
// persist has no reason to consume jobs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

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
	"bloomwatch/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("assess worker initializing (cold start)")

	h, err := buildHandler(context.Background(), logger)
	if err != nil {
		logger.Error("assess worker initialization failed", "error", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

// buildHandler wires the worker's dependency graph during cold start.
func buildHandler(ctx context.Context, logger *slog.Logger) (*worker.Handler, error) {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if !cfg.Database.URL.IsSet() {
		return nil, fmt.Errorf("DATABASE_URL is required for the assess worker")
	}

	cat, err := catalog.Load(cfg.Ingest.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading site catalog: %w", err)
	}

	obsCache, err := cache.New(cache.Config{
		TTL:    cfg.Ingest.CacheTTL,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating observation cache: %w", err)
	}

	land, err := landuse.New(landuse.Config{
		ShapefilePath: cfg.Ingest.ShapefilePath,
		Catalog:       cat,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating land-use source: %w", err)
	}

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
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("applying database schema: %w", err)
	}

	siteRepo := db.NewSiteRepository(pool)
	if _, err := siteRepo.Seed(ctx, cat.Sites()); err != nil {
		return nil, fmt.Errorf("seeding site registry: %w", err)
	}

	svc, err := assessment.NewService(assessment.Config{
		Pipeline:    ingest.NewPipeline(pipelineCfg),
		Model:       risk.New(risk.DefaultCalibration()),
		Sites:       siteRepo,
		Assessments: db.NewAssessmentRepository(pool),
		Catalog:     cat,
		Notifier:    notify.New(cfg.Webhook, logger),
		Metrics:     recorder,
		Logger:      logger,
		HistoryDays: cfg.Assess.HistoryDays,
	})
	if err != nil {
		return nil, fmt.Errorf("creating assessment service: %w", err)
	}

	logger.Info("assess worker initialized",
		"environment", cfg.Environment,
		"catalog_sites", cat.Len(),
		"queue_url", cfg.AWS.AssessQueueURL,
	)

	return worker.NewHandler(worker.Config{
		Runner:  svc,
		Metrics: recorder,
		Logger:  logger,
	})
}
