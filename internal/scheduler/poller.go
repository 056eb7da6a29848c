// Package scheduler implements the periodic jobs of the BloomWatch
// platform.
//
// This file implements the site poller: the loop that keeps every
// enabled site freshly assessed. Each cycle sweeps the active site list
// with bounded parallelism, isolating per-site failures so one broken
// upstream or bad site record never starves the rest of the sweep.
//
// Key behaviors:
//   - Sites are assessed concurrently up to a configured limit.
//   - A site failure is recorded in the sweep report, not propagated.
//   - Manual invocations (Lambda payloads, ops tooling) can restrict the
//     sweep to named sites, cap the number of assessments, or run dry.
//   - Cycle duration is emitted as telemetry for dead-sweep alarms.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bloomwatch/internal/assessment"
	"bloomwatch/internal/types"
)

// DefaultPollConcurrency bounds the parallel site assessments when the
// configuration leaves the limit unset.
const DefaultPollConcurrency = 4

// AssessmentRunner is the slice of the assessment service the poller
// needs. *assessment.Service satisfies it.
type AssessmentRunner interface {
	// ActiveSites returns the sites the poller should sweep.
	ActiveSites(ctx context.Context) ([]types.Site, error)
	// AssessSite runs a full assessment for one registered site.
	AssessSite(ctx context.Context, key string, persist bool) (*assessment.Result, error)
}

// SweepMetrics is the slice of the telemetry surface the poller needs.
type SweepMetrics interface {
	RecordPollCycle(ctx context.Context, duration time.Duration)
}

// SweepInput tunes a single sweep. The zero value assesses every active
// site and persists the results. Manual Lambda invocations use it for
// targeted re-runs and disaster recovery.
type SweepInput struct {
	// SiteKeys restricts the sweep to the named sites. Empty sweeps all
	// active sites.
	SiteKeys []string `json:"site_keys,omitempty"`
	// Limit caps the number of sites assessed this cycle. Zero means
	// unlimited.
	Limit int `json:"limit,omitempty"`
	// DryRun evaluates without persisting or escalating.
	DryRun bool `json:"dry_run,omitempty"`
}

// SweepReport summarizes one completed sweep.
type SweepReport struct {
	Sites    int           `json:"sites"`
	Assessed int           `json:"assessed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`

	// Errors maps site key to the failure that skipped it.
	Errors map[string]string `json:"errors,omitempty"`
}

// SitePollerConfig holds the configuration for creating a SitePoller.
type SitePollerConfig struct {
	Runner  AssessmentRunner
	Metrics SweepMetrics

	// Interval is the cycle period for Run. Zero disables the loop;
	// Sweep stays usable for one-shot invocations.
	Interval time.Duration
	// Concurrency bounds parallel site assessments. Zero means
	// DefaultPollConcurrency.
	Concurrency int

	Logger *slog.Logger
	Clock  types.Clock
}

// SitePoller sweeps the registered sites on a schedule. It is the core
// service behind both the site-poller container loop and its manual
// Lambda invocations.
type SitePoller struct {
	runner      AssessmentRunner
	metrics     SweepMetrics
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	clock       types.Clock
}

// NewSitePoller creates a SitePoller with the given configuration.
func NewSitePoller(cfg SitePollerConfig) (*SitePoller, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("site poller: runner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultPollConcurrency
	}
	return &SitePoller{
		runner:      cfg.Runner,
		metrics:     cfg.Metrics,
		interval:    cfg.Interval,
		concurrency: concurrency,
		logger:      logger,
		clock:       clock,
	}, nil
}

// Sweep assesses the selected sites once and reports the outcome. The
// only hard failure is being unable to list the sites; everything after
// that degrades into the report's error map so a single bad site cannot
// abort the cycle.
func (p *SitePoller) Sweep(ctx context.Context, input SweepInput) (SweepReport, error) {
	started := p.clock.Now()

	sites, err := p.selectSites(ctx, input)
	if err != nil {
		return SweepReport{}, fmt.Errorf("listing sites for sweep: %w", err)
	}

	report := SweepReport{Sites: len(sites)}
	if len(sites) == 0 {
		p.logger.InfoContext(ctx, "no sites to sweep")
		return report, nil
	}

	var mu sync.Mutex
	sweepErrs := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, site := range sites {
		site := site
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := p.runner.AssessSite(gctx, site.Key, !input.DryRun)
			if err != nil {
				p.logger.ErrorContext(gctx, "site assessment failed",
					"site", site.Key,
					"error", err.Error(),
				)
				mu.Lock()
				sweepErrs[site.Key] = err.Error()
				mu.Unlock()
			}
			// Per-site failures are isolated; only cancellation aborts
			// the group.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepReport{}, err
	}

	report.Failed = len(sweepErrs)
	report.Assessed = len(sites) - report.Failed
	report.Duration = p.clock.Now().Sub(started)
	if len(sweepErrs) > 0 {
		report.Errors = sweepErrs
	}

	if p.metrics != nil {
		p.metrics.RecordPollCycle(ctx, report.Duration)
	}
	p.logger.InfoContext(ctx, "poll cycle complete",
		"sites", report.Sites,
		"assessed", report.Assessed,
		"failed", report.Failed,
		"dry_run", input.DryRun,
		"duration", report.Duration,
	)
	return report, nil
}

// selectSites resolves the sweep's site list from the active registry,
// applying the input's key filter and limit.
func (p *SitePoller) selectSites(ctx context.Context, input SweepInput) ([]types.Site, error) {
	sites, err := p.runner.ActiveSites(ctx)
	if err != nil {
		return nil, err
	}

	if len(input.SiteKeys) > 0 {
		wanted := make(map[string]bool, len(input.SiteKeys))
		for _, key := range input.SiteKeys {
			wanted[key] = true
		}
		filtered := sites[:0]
		for _, site := range sites {
			if wanted[site.Key] {
				filtered = append(filtered, site)
			}
		}
		sites = filtered
	}

	if input.Limit > 0 && len(sites) > input.Limit {
		sites = sites[:input.Limit]
	}
	return sites, nil
}

// Run sweeps on the configured interval until the context is cancelled.
// The first sweep is delayed by a random fraction of the interval so a
// fleet of pollers restarting together does not stampede the upstream
// providers.
func (p *SitePoller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("site poller: interval must be positive to run the loop")
	}

	jitter := time.Duration(rand.Int64N(int64(p.interval / 10)))
	p.logger.InfoContext(ctx, "site poller starting",
		"interval", p.interval,
		"concurrency", p.concurrency,
		"initial_delay", jitter,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Sweep(ctx, SweepInput{}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.ErrorContext(ctx, "sweep failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
